package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/matchup/internal/model"
	"github.com/iliyamo/matchup/internal/notify"
	"github.com/iliyamo/matchup/internal/repository"
)

// Realtime event names broadcast on a game's channel.
const (
	EventPlayerJoined   = "player-joined"
	EventPlayerLeft     = "player-left"
	EventPlayerPromoted = "player-promoted"
	EventGameUpdated    = "game-updated"
)

// PlayerJoinedPayload is the body of a player-joined event.
type PlayerJoinedPayload struct {
	User   model.PublicUser `json:"user"`
	Status model.RSVPStatus `json:"status"`
}

// PlayerPayload is the body of player-left and player-promoted events.
type PlayerPayload struct {
	UserID string `json:"userId"`
}

// Publisher broadcasts an event to everyone watching a game.  Publishing
// happens after commit and is best effort.
type Publisher interface {
	Publish(ctx context.Context, gameID, event string, payload any) error
}

// effects collects what a committed transaction has to announce.
type effects struct {
	log        *logrus.Entry
	publisher  Publisher
	dispatcher notify.Dispatcher
}

func (e effects) notify(ctx context.Context, ev notify.Event) {
	intents := notify.Plan(ev)
	if len(intents) == 0 {
		return
	}
	e.dispatcher.Dispatch(ctx, intents)
}

func (e effects) publish(ctx context.Context, gameID, event string, payload any) {
	if err := e.publisher.Publish(ctx, gameID, event, payload); err != nil {
		e.log.WithFields(logrus.Fields{"game_id": gameID, "event": event}).
			WithError(err).Warn("realtime publish failed")
	}
}

// runGameTx runs fn inside the store's per-game transaction, bounded by
// timeout.
func runGameTx(ctx context.Context, store repository.RecordStore, timeout time.Duration, gameID string,
	fn func(ctx context.Context, tx repository.GameTx) error) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := store.WithinGameTx(tctx, gameID, func(tx repository.GameTx) error {
		return fn(tctx, tx)
	})
	return translate(err)
}

// publicUser resolves a player's public identity; unknown users are shown
// by id only.
func publicUser(ctx context.Context, tx repository.GameTx, userID string) (model.PublicUser, error) {
	u, err := tx.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.PublicUser{ID: userID}, nil
		}
		return model.PublicUser{}, err
	}
	return u.Public(), nil
}
