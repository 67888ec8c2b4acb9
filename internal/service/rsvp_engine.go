// Package service holds the RSVP engine and the game lifecycle manager.
// Every mutation of a game's RSVP set runs inside one per-game storage
// transaction; notifications and realtime events go out only after it
// commits.
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

// Messages returned with join and leave results.
const (
	MsgJoined     = "You have joined the game"
	MsgWaitlisted = "You have been added to the waitlist"
	MsgLeft       = "You have left the game"
)

// JoinResult is the outcome of a successful join.
type JoinResult struct {
	Status  model.RSVPStatus `json:"status"`
	Message string           `json:"message"`
}

// LeaveResult is the outcome of a successful leave.  PromotedUserID is set
// when the freed seat went to the head of the waitlist.
type LeaveResult struct {
	Message        string `json:"message"`
	PromotedUserID string `json:"promotedUserId,omitempty"`
}

// RSVPService implements join and leave for a single game.
type RSVPService struct {
	store     repository.RecordStore
	txTimeout time.Duration
	effects
}

// NewRSVPService wires the engine to its store and side-effect ports.
func NewRSVPService(store repository.RecordStore, pub Publisher, disp notify.Dispatcher, txTimeout time.Duration) *RSVPService {
	return &RSVPService{
		store:     store,
		txTimeout: txTimeout,
		effects: effects{
			log:        logrus.WithField("component", "rsvp"),
			publisher:  pub,
			dispatcher: disp,
		},
	}
}

// Join adds userID to the game: confirmed while seats remain, otherwise at
// the back of the waitlist.  A user with an active RSVP gets
// ErrAlreadyJoined; a cancelled RSVP is reused with a fresh position.
func (s *RSVPService) Join(ctx context.Context, gameID, userID string) (JoinResult, error) {
	var (
		game   model.Game
		status model.RSVPStatus
		player model.PublicUser
	)
	err := runGameTx(ctx, s.store, s.txTimeout, gameID, func(ctx context.Context, tx repository.GameTx) error {
		g, err := tx.FindGame(ctx, gameID)
		if err != nil {
			return err
		}
		if g.Status != model.GameUpcoming {
			return ErrGameNotJoinable
		}

		existing, err := tx.FindRSVP(ctx, gameID, userID)
		switch {
		case err == nil && existing.Status.Active():
			return ErrAlreadyJoined
		case err != nil && !errors.Is(err, repository.ErrRSVPNotFound):
			return err
		}

		confirmed, err := tx.CountConfirmedRSVPs(ctx, gameID)
		if err != nil {
			return err
		}
		status = model.RSVPWaitlisted
		if confirmed < g.MaxPlayers {
			status = model.RSVPConfirmed
		}

		// A rejoin goes to the back of the line: new position, new join time.
		pos, err := tx.NextPosition(ctx, gameID)
		if err != nil {
			return err
		}
		r := &model.RSVP{GameID: gameID, UserID: userID, Status: status, Position: pos}
		if existing != nil {
			r.ID = existing.ID
		}
		if err := tx.UpsertRSVP(ctx, r); err != nil {
			return err
		}

		if player, err = publicUser(ctx, tx, userID); err != nil {
			return err
		}
		game = *g
		return nil
	})
	if err != nil {
		return JoinResult{}, err
	}

	s.log.WithFields(logrus.Fields{"game_id": gameID, "user_id": userID, "status": status}).Info("player joined")
	s.notify(ctx, notify.Event{Kind: notify.PlayerJoined, Game: game, ActorID: userID, Player: player, Status: status})
	s.publish(ctx, gameID, EventPlayerJoined, PlayerJoinedPayload{User: player, Status: status})

	msg := MsgJoined
	if status == model.RSVPWaitlisted {
		msg = MsgWaitlisted
	}
	return JoinResult{Status: status, Message: msg}, nil
}

// Leave cancels userID's RSVP.  When a confirmed player leaves, the oldest
// waitlisted RSVP is promoted into the freed seat unless the game is
// already completed or cancelled.
func (s *RSVPService) Leave(ctx context.Context, gameID, userID string) (LeaveResult, error) {
	var (
		game     model.Game
		promoted *model.RSVP
	)
	err := runGameTx(ctx, s.store, s.txTimeout, gameID, func(ctx context.Context, tx repository.GameTx) error {
		g, err := tx.FindGame(ctx, gameID)
		if err != nil {
			return err
		}
		if g.HostID == userID {
			return ErrHostCannotLeave
		}

		r, err := tx.FindRSVP(ctx, gameID, userID)
		if errors.Is(err, repository.ErrRSVPNotFound) {
			return ErrNotJoined
		}
		if err != nil {
			return err
		}
		if !r.Status.Active() {
			return ErrNotJoined
		}

		prior := r.Status
		r.Status = model.RSVPCancelled
		if err := tx.UpsertRSVP(ctx, r); err != nil {
			return err
		}

		if prior == model.RSVPConfirmed && !g.Status.Terminal() {
			next, err := tx.OldestWaitlisted(ctx, gameID)
			switch {
			case err == nil:
				next.Status = model.RSVPConfirmed
				if err := tx.UpsertRSVP(ctx, next); err != nil {
					return err
				}
				promoted = next
			case !errors.Is(err, repository.ErrRSVPNotFound):
				return err
			}
		}
		game = *g
		return nil
	})
	if err != nil {
		return LeaveResult{}, err
	}

	res := LeaveResult{Message: MsgLeft}
	fields := logrus.Fields{"game_id": gameID, "user_id": userID}
	s.notify(ctx, notify.Event{Kind: notify.PlayerLeft, Game: game, ActorID: userID, Player: model.PublicUser{ID: userID}})
	s.publish(ctx, gameID, EventPlayerLeft, PlayerPayload{UserID: userID})
	if promoted != nil {
		res.PromotedUserID = promoted.UserID
		fields["promoted_user_id"] = promoted.UserID
		s.notify(ctx, notify.Event{Kind: notify.PlayerPromoted, Game: game, ActorID: userID, Player: model.PublicUser{ID: promoted.UserID}})
		s.publish(ctx, gameID, EventPlayerPromoted, PlayerPayload{UserID: promoted.UserID})
	}
	s.log.WithFields(fields).Info("player left")
	return res, nil
}
