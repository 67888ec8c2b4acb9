// Package repository defines the record store used by the RSVP engine and
// the error values shared by its implementations.  Higher layers match
// these sentinels with errors.Is to tell a missing row apart from a
// serialization failure.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrGameNotFound         = errors.New("game not found")
	ErrRSVPNotFound         = errors.New("rsvp not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrVenueNotFound        = errors.New("venue not found")
	ErrNotificationNotFound = errors.New("notification not found")
)

// ErrLockTimeout is returned when the per-game lock or the surrounding
// transaction could not complete before the context deadline.  Callers
// may retry.
var ErrLockTimeout = errors.New("storage lock timeout")

// ErrConflict is returned when the store rejected a write because of a
// concurrent one (deadlock victim, unique key race).  Callers may retry.
var ErrConflict = errors.New("storage conflict")

// MySQL server error numbers we classify.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
	mysqlErrDuplicateEntry  = 1062
)

// classify maps driver and context errors onto the storage sentinels while
// keeping the original error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrLockTimeout) || errors.Is(err, ErrConflict) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrLockTimeout, err)
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlErrLockWaitTimeout:
			return fmt.Errorf("%w: %w", ErrLockTimeout, err)
		case mysqlErrDeadlock, mysqlErrDuplicateEntry:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
	}
	return err
}
