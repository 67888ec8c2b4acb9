package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/matchup/internal/model"
)

const lockQuery = `SELECT id FROM games WHERE id = ? FOR UPDATE`

func newMockStore(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := NewMySQLStore(db)
	s.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s, mock
}

func TestMySQLStore_WithinGameTx_LocksGameRow(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("g1"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM rsvps WHERE game_id = ? AND status = 'confirmed'`)).
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(3))
	mock.ExpectCommit()

	var count int
	err := s.WithinGameTx(context.Background(), "g1", func(tx GameTx) error {
		n, err := tx.CountConfirmedRSVPs(context.Background(), "g1")
		count = n
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_WithinGameTx_Errors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name   string
		setup  func(mock sqlmock.Sqlmock)
		fnErr  error
		wantIs error
	}{
		{
			name: "missing game",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs("g1").
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
				mock.ExpectRollback()
			},
			wantIs: ErrGameNotFound,
		},
		{
			name: "lock wait timeout",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs("g1").
					WillReturnError(&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"})
				mock.ExpectRollback()
			},
			wantIs: ErrLockTimeout,
		},
		{
			name: "callback error rolls back",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs("g1").
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("g1"))
				mock.ExpectRollback()
			},
			fnErr:  boom,
			wantIs: boom,
		},
		{
			name: "deadlock on commit",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs("g1").
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("g1"))
				mock.ExpectCommit().WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})
			},
			wantIs: ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			tt.setup(mock)
			err := s.WithinGameTx(context.Background(), "g1", func(GameTx) error { return tt.fnErr })
			assert.ErrorIs(t, err, tt.wantIs)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMySQLStore_WithinGameTx_DeadlineBeforeCommit(t *testing.T) {
	tests := []struct {
		name  string
		fnErr error
	}{
		{"callback succeeds late", nil},
		{"statement after rollback", sql.ErrTxDone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			mock.ExpectBegin()
			mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs("g1").
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("g1"))
			// database/sql rolls the tx back itself once ctx expires
			mock.ExpectRollback()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()
			err := s.WithinGameTx(ctx, "g1", func(GameTx) error {
				time.Sleep(80 * time.Millisecond)
				return tt.fnErr
			})
			assert.ErrorIs(t, err, ErrLockTimeout)
			assert.NotErrorIs(t, err, sql.ErrTxDone)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func withLock(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("g1"))
}

func TestMySQLStore_UpsertRSVP_RejoinKeepsRowID(t *testing.T) {
	s, mock := newMockStore(t)
	now := s.now()

	withLock(mock)
	mock.ExpectExec(regexp.QuoteMeta(`ON DUPLICATE KEY UPDATE status = VALUES(status), position = VALUES(position), created_at = VALUES(created_at)`)).
		WithArgs(sqlmock.AnyArg(), "g1", "u1", "waitlisted", int64(9), now, now).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM rsvps WHERE game_id = ? AND user_id = ?`)).
		WithArgs("g1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r-old"))
	mock.ExpectCommit()

	r := &model.RSVP{GameID: "g1", UserID: "u1", Status: model.RSVPWaitlisted, Position: 9}
	err := s.WithinGameTx(context.Background(), "g1", func(tx GameTx) error {
		return tx.UpsertRSVP(context.Background(), r)
	})
	require.NoError(t, err)
	assert.Equal(t, "r-old", r.ID)
	assert.Equal(t, now, r.CreatedAt)
	assert.Equal(t, now, r.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_OldestWaitlisted(t *testing.T) {
	const q = `WHERE r.game_id = ? AND r.status = 'waitlisted' ORDER BY r.position ASC LIMIT 1`
	cols := []string{"id", "game_id", "user_id", "status", "position", "created_at", "updated_at"}
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	t.Run("lowest position", func(t *testing.T) {
		s, mock := newMockStore(t)
		withLock(mock)
		mock.ExpectQuery(regexp.QuoteMeta(q)).WithArgs("g1").
			WillReturnRows(sqlmock.NewRows(cols).AddRow("r2", "g1", "u2", "waitlisted", int64(4), at, at))
		mock.ExpectCommit()

		var got *model.RSVP
		err := s.WithinGameTx(context.Background(), "g1", func(tx GameTx) error {
			r, err := tx.OldestWaitlisted(context.Background(), "g1")
			got = r
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, "u2", got.UserID)
		assert.Equal(t, model.RSVPWaitlisted, got.Status)
		assert.Equal(t, int64(4), got.Position)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty waitlist", func(t *testing.T) {
		s, mock := newMockStore(t)
		withLock(mock)
		mock.ExpectQuery(regexp.QuoteMeta(q)).WithArgs("g1").WillReturnRows(sqlmock.NewRows(cols))
		mock.ExpectRollback()

		err := s.WithinGameTx(context.Background(), "g1", func(tx GameTx) error {
			_, err := tx.OldestWaitlisted(context.Background(), "g1")
			return err
		})
		assert.ErrorIs(t, err, ErrRSVPNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMySQLStore_UpdateGame(t *testing.T) {
	const q = `UPDATE games SET title = ?, date_time = ?, duration = ?, max_players = ?, min_players = ?, skill_level = ?, description = ?, price = ?, status = ?, updated_at = ? WHERE id = ?`
	start := time.Date(2026, 5, 3, 18, 0, 0, 0, time.UTC)
	game := func() *model.Game {
		return &model.Game{
			ID: "g1", Title: "Sunday Hoops", DateTime: start, Duration: 90,
			MaxPlayers: 10, MinPlayers: 4, SkillLevel: model.SkillAny, Status: model.GameInProgress,
		}
	}

	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"updated", 1, nil},
		{"row gone", 0, ErrGameNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			withLock(mock)
			mock.ExpectExec(regexp.QuoteMeta(q)).
				WithArgs("Sunday Hoops", start, 90, 10, 4, "any", nil, nil, "in_progress", s.now(), "g1").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			if tt.wantErr == nil {
				mock.ExpectCommit()
			} else {
				mock.ExpectRollback()
			}

			g := game()
			err := s.WithinGameTx(context.Background(), "g1", func(tx GameTx) error {
				return tx.UpdateGame(context.Background(), g)
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, s.now(), g.UpdatedAt)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMySQLStore_NextPosition(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("g1"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE games SET rsvp_seq = rsvp_seq + 1 WHERE id = ?`)).WithArgs("g1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT rsvp_seq FROM games WHERE id = ?`)).WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"rsvp_seq"}).AddRow(int64(8)))
	mock.ExpectCommit()

	var pos int64
	err := s.WithinGameTx(context.Background(), "g1", func(tx GameTx) error {
		p, err := tx.NextPosition(context.Background(), "g1")
		pos = p
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), pos)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_GetUser_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT id, name, email, avatar, phone, role, push_token, created_at FROM users`).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "avatar", "phone", "role", "push_token", "created_at"}))

	_, err := s.GetUser(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"deadline", context.DeadlineExceeded, ErrLockTimeout},
		{"duplicate", &mysql.MySQLError{Number: 1062}, ErrConflict},
		{"deadlock", &mysql.MySQLError{Number: 1213}, ErrConflict},
		{"lock wait", &mysql.MySQLError{Number: 1205}, ErrLockTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tt.in), tt.want)
		})
	}

	other := &mysql.MySQLError{Number: 1146}
	assert.Same(t, other, classify(other))
	assert.NoError(t, classify(nil))
}
