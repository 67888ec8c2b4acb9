package repository

import (
	"context"

	"github.com/iliyamo/matchup/internal/model"
)

// RecordStore is the transactional store behind the RSVP engine.  All
// mutations of a game's RSVP set go through WithinGameTx so that they are
// serialized per game, including across server processes.
type RecordStore interface {
	// WithinGameTx locks the game row, runs fn and commits.  If the game
	// does not exist it returns ErrGameNotFound without calling fn.  If fn
	// returns an error, or the context expires before commit, nothing fn
	// wrote is kept.
	WithinGameTx(ctx context.Context, gameID string, fn func(tx GameTx) error) error

	// CreateGame inserts the game and the host's RSVP in one transaction.
	CreateGame(ctx context.Context, g *model.Game, host *model.RSVP) error

	GetGame(ctx context.Context, id string) (*model.Game, error)

	// ListParticipants returns the confirmed and waitlisted RSVPs of a game
	// with the players' public identity, ordered by position.
	ListParticipants(ctx context.Context, gameID string) ([]model.Participant, error)

	ListHostedGames(ctx context.Context, userID string) ([]model.GameSummary, error)
	ListJoinedGames(ctx context.Context, userID string) ([]model.GameSummary, error)

	GetUser(ctx context.Context, id string) (*model.User, error)
}

// GameTx is the view of the store available inside WithinGameTx.  Values
// returned are copies; changes are persisted only through the Upsert and
// Update methods.
type GameTx interface {
	FindGame(ctx context.Context, id string) (*model.Game, error)
	UpdateGame(ctx context.Context, g *model.Game) error
	DeleteGame(ctx context.Context, id string) error

	CountConfirmedRSVPs(ctx context.Context, gameID string) (int, error)
	// FindRSVP returns ErrRSVPNotFound when the user never joined.
	FindRSVP(ctx context.Context, gameID, userID string) (*model.RSVP, error)
	// UpsertRSVP inserts the row or, when (GameID, UserID) exists,
	// overwrites its status, position and timestamps.
	UpsertRSVP(ctx context.Context, r *model.RSVP) error
	// NextPosition advances and returns the game's RSVP sequence.
	NextPosition(ctx context.Context, gameID string) (int64, error)
	// OldestWaitlisted returns the waitlisted RSVP with the lowest
	// position, or ErrRSVPNotFound.
	OldestWaitlisted(ctx context.Context, gameID string) (*model.RSVP, error)
	// ListRSVPs returns the game's RSVPs in the given statuses (all when
	// none given), ordered by position.
	ListRSVPs(ctx context.Context, gameID string, statuses ...model.RSVPStatus) ([]model.RSVP, error)

	FindUser(ctx context.Context, id string) (*model.User, error)
}

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]model.Notification, error)
	CountNotifications(ctx context.Context, userID string, unreadOnly bool) (int, error)
	// MarkRead returns ErrNotificationNotFound when the notification does
	// not exist or belongs to another user.
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

var (
	_ RecordStore       = (*MySQLStore)(nil)
	_ RecordStore       = (*MemoryStore)(nil)
	_ NotificationStore = (*NotificationRepo)(nil)
	_ NotificationStore = (*MemoryStore)(nil)
)
