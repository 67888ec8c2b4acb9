package model

import "time"

// Sport enumerates the sports a game can be hosted for.
type Sport string

const (
	SportFootball   Sport = "football"
	SportCricket    Sport = "cricket"
	SportBasketball Sport = "basketball"
	SportVolleyball Sport = "volleyball"
	SportBadminton  Sport = "badminton"
)

// SkillLevel is the skill bracket a host advertises for a game.
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillAny          SkillLevel = "any"
)

// GameStatus is the lifecycle state of a game.  Only upcoming games
// accept new RSVPs.
type GameStatus string

const (
	GameUpcoming   GameStatus = "upcoming"
	GameInProgress GameStatus = "in_progress"
	GameCompleted  GameStatus = "completed"
	GameCancelled  GameStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s GameStatus) Valid() bool {
	switch s {
	case GameUpcoming, GameInProgress, GameCompleted, GameCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further status change is allowed.
func (s GameStatus) Terminal() bool {
	return s == GameCompleted || s == GameCancelled
}

// CanTransitionTo reports whether a game may move from s to next.
// Progress is forward only (upcoming, in_progress, completed) and
// cancellation is reachable from any non-terminal state.  Staying in the
// same state is always allowed.
func (s GameStatus) CanTransitionTo(next GameStatus) bool {
	if s == next {
		return true
	}
	if s.Terminal() || !next.Valid() {
		return false
	}
	switch next {
	case GameCancelled:
		return true
	case GameInProgress:
		return s == GameUpcoming
	case GameCompleted:
		return s == GameUpcoming || s == GameInProgress
	}
	return false
}

// Game is a scheduled pickup game.  A game is located either at a
// partner venue (VenueID) or at a free-text location (CustomLocation);
// coordinates are always present.
//
// RSVPSeq is the per-game counter used to hand out RSVP positions.  It is
// only advanced while the game row is locked and is never exposed.
type Game struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Sport          Sport      `json:"sport"`
	HostID         string     `json:"hostId"`
	VenueID        *string    `json:"venueId,omitempty"`
	CustomLocation *string    `json:"customLocation,omitempty"`
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	DateTime       time.Time  `json:"dateTime"`
	Duration       int        `json:"duration"` // minutes
	MaxPlayers     int        `json:"maxPlayers"`
	MinPlayers     int        `json:"minPlayers"`
	SkillLevel     SkillLevel `json:"skillLevel"`
	Description    *string    `json:"description,omitempty"`
	Price          *int       `json:"price,omitempty"`
	Status         GameStatus `json:"status"`
	RSVPSeq        int64      `json:"-"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// GameSummary is a game together with its confirmed head count and, for
// listings scoped to a user, that user's RSVP status.
type GameSummary struct {
	Game
	CurrentPlayers int        `json:"currentPlayers"`
	MyStatus       RSVPStatus `json:"myStatus,omitempty"`
}
