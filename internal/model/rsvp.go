package model

import "time"

// RSVPStatus is the state of a player's seat in a game.
type RSVPStatus string

const (
	RSVPConfirmed  RSVPStatus = "confirmed"
	RSVPWaitlisted RSVPStatus = "waitlisted"
	RSVPCancelled  RSVPStatus = "cancelled"
)

// Active reports whether the RSVP still holds a seat or a waitlist spot.
func (s RSVPStatus) Active() bool {
	return s == RSVPConfirmed || s == RSVPWaitlisted
}

// RSVP links a user to a game.  There is at most one row per
// (GameID, UserID); leaving flips the row to cancelled and rejoining
// reuses it.
//
// Fields:
//
//	ID        – primary key.
//	GameID    – game the RSVP belongs to.
//	UserID    – player.
//	Status    – confirmed, waitlisted or cancelled.
//	Position  – per-game sequence number taken at the last join; the
//	            waitlist is promoted in ascending Position order.
//	CreatedAt – time of the last join.
//	UpdatedAt – time of the last status change.
type RSVP struct {
	ID        string     `json:"id"`
	GameID    string     `json:"gameId"`
	UserID    string     `json:"userId"`
	Status    RSVPStatus `json:"status"`
	Position  int64      `json:"position"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Participant is an active RSVP joined with the player's public identity.
type Participant struct {
	RSVP
	User PublicUser `json:"user"`
}
