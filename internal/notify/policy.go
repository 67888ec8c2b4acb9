// Package notify decides which notifications a game or RSVP change
// produces and for whom.  Plan is pure; delivery is behind Dispatcher.
package notify

import (
	"context"
	"fmt"

	"github.com/iliyamo/matchup/internal/model"
)

// Kind names a lifecycle event notifications are planned for.
type Kind string

const (
	PlayerJoined    Kind = "player_joined"
	PlayerPromoted  Kind = "player_promoted"
	PlayerLeft      Kind = "player_left"
	GameRescheduled Kind = "game_rescheduled"
	GameCancelled   Kind = "game_cancelled"
)

// Event describes one committed change.  Which fields matter depends on
// Kind:
//
//	PlayerJoined    – Player and Status (confirmed or waitlisted).
//	PlayerPromoted  – Player is the promoted user.
//	PlayerLeft      – Player is the leaving user.
//	GameRescheduled – Confirmed, ActorID.
//	GameCancelled   – Confirmed, Waitlisted, ActorID.
type Event struct {
	Kind       Kind
	Game       model.Game
	ActorID    string
	Player     model.PublicUser
	Status     model.RSVPStatus
	Confirmed  []string
	Waitlisted []string
}

// Intent is one notification to deliver.
type Intent struct {
	RecipientID string                 `json:"recipientId"`
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	Type        model.NotificationType `json:"type"`
	Data        map[string]any         `json:"data"`
}

// Dispatcher hands intents to the delivery pipeline.  Dispatch must
// return promptly and never fail the caller; implementations log and drop
// what they cannot deliver.
type Dispatcher interface {
	Dispatch(ctx context.Context, intents []Intent)
}

// Plan returns the notifications for ev.  The actor of a change is never
// notified about it.
func Plan(ev Event) []Intent {
	data := map[string]any{"gameId": ev.Game.ID}

	switch ev.Kind {
	case PlayerJoined:
		if ev.Player.ID == ev.Game.HostID {
			return nil
		}
		body := fmt.Sprintf("%s joined %s", displayName(ev.Player), ev.Game.Title)
		if ev.Status == model.RSVPWaitlisted {
			body = fmt.Sprintf("%s is on the waitlist for %s", displayName(ev.Player), ev.Game.Title)
		}
		return []Intent{{
			RecipientID: ev.Game.HostID,
			Title:       "New Player Joined",
			Body:        body,
			Type:        model.NotificationRSVPUpdate,
			Data:        data,
		}}

	case PlayerPromoted:
		return []Intent{{
			RecipientID: ev.Player.ID,
			Title:       "Spot Available!",
			Body:        fmt.Sprintf("You've been moved from the waitlist to confirmed for %s", ev.Game.Title),
			Type:        model.NotificationRSVPUpdate,
			Data:        data,
		}}

	case GameRescheduled:
		return fanOut(ev.Confirmed, ev.ActorID, func(id string) Intent {
			return Intent{
				RecipientID: id,
				Title:       "Game Updated",
				Body:        fmt.Sprintf("%s has been updated. Check the new details.", ev.Game.Title),
				Type:        model.NotificationGameUpdate,
				Data:        data,
			}
		})

	case GameCancelled:
		recipients := append(append([]string{}, ev.Confirmed...), ev.Waitlisted...)
		return fanOut(recipients, ev.ActorID, func(id string) Intent {
			return Intent{
				RecipientID: id,
				Title:       "Game Cancelled",
				Body:        fmt.Sprintf("%s has been cancelled", ev.Game.Title),
				Type:        model.NotificationGameUpdate,
				Data:        data,
			}
		})
	}
	// PlayerLeft and unknown kinds notify nobody.
	return nil
}

func fanOut(ids []string, actorID string, build func(string) Intent) []Intent {
	seen := make(map[string]bool, len(ids))
	out := make([]Intent, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == actorID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, build(id))
	}
	return out
}

func displayName(u model.PublicUser) string {
	if u.Name != "" {
		return u.Name
	}
	return "A player"
}
