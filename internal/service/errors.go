package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/matchup/internal/repository"
)

// Domain errors returned by the RSVP engine and the game lifecycle
// manager.  Callers match them with errors.Is; the HTTP layer maps each to
// a status code and a stable message.
var (
	ErrGameNotFound      = errors.New("game not found")
	ErrGameNotJoinable   = errors.New("cannot join this game")
	ErrAlreadyJoined     = errors.New("you have already joined this game")
	ErrHostCannotLeave   = errors.New("host cannot leave the game, cancel it instead")
	ErrNotJoined         = errors.New("you are not in this game")
	ErrForbidden         = errors.New("not allowed to modify this game")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrGameHasPlayers    = errors.New("game still has players")
	ErrVenueNotFound     = errors.New("venue not found")
)

// Storage failures.  Both are safe to retry: nothing was written.
var (
	ErrStorageTimeout  = errors.New("storage timeout")
	ErrStorageConflict = errors.New("storage conflict")
)

// translate maps repository errors onto domain errors.  Domain errors
// raised inside a transaction callback pass through untouched.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrGameNotFound):
		return ErrGameNotFound
	case errors.Is(err, repository.ErrVenueNotFound):
		return ErrVenueNotFound
	case errors.Is(err, repository.ErrLockTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrStorageTimeout, err)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %w", ErrStorageConflict, err)
	}
	return err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
