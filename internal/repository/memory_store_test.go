package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/matchup/internal/model"
)

func seedGame(t *testing.T, s *MemoryStore, id, host string, at time.Time) {
	t.Helper()
	g := &model.Game{
		ID: id, Title: "Sunday kickabout", Sport: model.SportFootball, HostID: host,
		DateTime: at, Duration: 90, MaxPlayers: 4, MinPlayers: 2,
		SkillLevel: model.SkillAny, Status: model.GameUpcoming, RSVPSeq: 1,
	}
	hostRSVP := &model.RSVP{UserID: host, Status: model.RSVPConfirmed, Position: 1}
	require.NoError(t, s.CreateGame(context.Background(), g, hostRSVP))
}

func TestMemoryStore_WithinGameTx_UnknownGame(t *testing.T) {
	s := NewMemoryStore()
	called := false
	err := s.WithinGameTx(context.Background(), "missing", func(GameTx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrGameNotFound)
	assert.False(t, called)
}

func TestMemoryStore_WithinGameTx_RollsBackOnError(t *testing.T) {
	s := NewMemoryStore()
	seedGame(t, s, "g1", "host", time.Now())
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithinGameTx(ctx, "g1", func(tx GameTx) error {
		pos, err := tx.NextPosition(ctx, "g1")
		require.NoError(t, err)
		require.NoError(t, tx.UpsertRSVP(ctx, &model.RSVP{GameID: "g1", UserID: "u1", Status: model.RSVPConfirmed, Position: pos}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.WithinGameTx(ctx, "g1", func(tx GameTx) error {
		_, err := tx.FindRSVP(ctx, "g1", "u1")
		assert.ErrorIs(t, err, ErrRSVPNotFound)
		n, err := tx.CountConfirmedRSVPs(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		pos, err := tx.NextPosition(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), pos)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_WithinGameTx_LockTimeout(t *testing.T) {
	s := NewMemoryStore()
	seedGame(t, s, "g1", "host", time.Now())
	seedGame(t, s, "g2", "host", time.Now())

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.WithinGameTx(context.Background(), "g1", func(GameTx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.WithinGameTx(ctx, "g1", func(GameTx) error { return nil })
	assert.ErrorIs(t, err, ErrLockTimeout)

	// another game is not blocked
	err = s.WithinGameTx(context.Background(), "g2", func(GameTx) error { return nil })
	assert.NoError(t, err)

	close(release)
	assert.NoError(t, <-done)
}

func TestMemoryStore_UpsertRSVP_KeepsRowID(t *testing.T) {
	s := NewMemoryStore()
	seedGame(t, s, "g1", "host", time.Now())
	ctx := context.Background()

	var firstID string
	require.NoError(t, s.WithinGameTx(ctx, "g1", func(tx GameTx) error {
		r := &model.RSVP{GameID: "g1", UserID: "u1", Status: model.RSVPConfirmed, Position: 2}
		if err := tx.UpsertRSVP(ctx, r); err != nil {
			return err
		}
		firstID = r.ID
		return nil
	}))
	require.NotEmpty(t, firstID)

	require.NoError(t, s.WithinGameTx(ctx, "g1", func(tx GameTx) error {
		r := &model.RSVP{GameID: "g1", UserID: "u1", Status: model.RSVPWaitlisted, Position: 3}
		if err := tx.UpsertRSVP(ctx, r); err != nil {
			return err
		}
		assert.Equal(t, firstID, r.ID)
		got, err := tx.FindRSVP(ctx, "g1", "u1")
		require.NoError(t, err)
		assert.Equal(t, model.RSVPWaitlisted, got.Status)
		assert.Equal(t, int64(3), got.Position)
		return nil
	}))
}

func TestMemoryStore_OldestWaitlistedAndListing(t *testing.T) {
	s := NewMemoryStore()
	s.PutUser(model.User{ID: "u2", Name: "Bea"})
	now := time.Now()
	seedGame(t, s, "g1", "host", now.Add(time.Hour))
	seedGame(t, s, "g2", "host", now.Add(2*time.Hour))
	ctx := context.Background()

	require.NoError(t, s.WithinGameTx(ctx, "g1", func(tx GameTx) error {
		for _, r := range []model.RSVP{
			{GameID: "g1", UserID: "u3", Status: model.RSVPWaitlisted, Position: 7},
			{GameID: "g1", UserID: "u2", Status: model.RSVPWaitlisted, Position: 5},
			{GameID: "g1", UserID: "u4", Status: model.RSVPCancelled, Position: 3},
		} {
			r := r
			if err := tx.UpsertRSVP(ctx, &r); err != nil {
				return err
			}
		}
		oldest, err := tx.OldestWaitlisted(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, "u2", oldest.UserID)

		active, err := tx.ListRSVPs(ctx, "g1", model.RSVPConfirmed, model.RSVPWaitlisted)
		require.NoError(t, err)
		require.Len(t, active, 3)
		assert.Equal(t, []string{"host", "u2", "u3"}, []string{active[0].UserID, active[1].UserID, active[2].UserID})
		return nil
	}))

	parts, err := s.ListParticipants(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.Equal(t, "Bea", parts[1].User.Name)
	assert.Equal(t, "u3", parts[2].User.ID)

	hosted, err := s.ListHostedGames(ctx, "host")
	require.NoError(t, err)
	require.Len(t, hosted, 2)
	assert.Equal(t, "g2", hosted[0].ID)
	assert.Equal(t, 1, hosted[0].CurrentPlayers)

	joined, err := s.ListJoinedGames(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, joined, 1)
	assert.Equal(t, model.RSVPWaitlisted, joined[0].MyStatus)

	joined, err = s.ListJoinedGames(ctx, "u4")
	require.NoError(t, err)
	assert.Empty(t, joined)
}

func TestMemoryStore_DeleteGame(t *testing.T) {
	s := NewMemoryStore()
	seedGame(t, s, "g1", "host", time.Now())
	ctx := context.Background()

	require.NoError(t, s.WithinGameTx(ctx, "g1", func(tx GameTx) error {
		return tx.DeleteGame(ctx, "g1")
	}))
	_, err := s.GetGame(ctx, "g1")
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestMemoryStore_CreateGame_UnknownVenue(t *testing.T) {
	s := NewMemoryStore()
	venue := "v1"
	g := &model.Game{ID: "g1", HostID: "host", VenueID: &venue}
	err := s.CreateGame(context.Background(), g, &model.RSVP{UserID: "host", Status: model.RSVPConfirmed, Position: 1})
	assert.ErrorIs(t, err, ErrVenueNotFound)

	s.PutVenue(model.Venue{ID: venue, Name: "Riverside Courts"})
	assert.NoError(t, s.CreateGame(context.Background(), g, &model.RSVP{UserID: "host", Status: model.RSVPConfirmed, Position: 1}))
}

func TestMemoryStore_Notifications(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.InsertNotification(ctx, &model.Notification{
			UserID: "u1", Title: "t", Type: model.NotificationGeneral, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	other := &model.Notification{UserID: "u2", Title: "t"}
	require.NoError(t, s.InsertNotification(ctx, other))

	list, err := s.ListNotifications(ctx, "u1", false, 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))

	assert.ErrorIs(t, s.MarkRead(ctx, other.ID, "u1"), ErrNotificationNotFound)
	require.NoError(t, s.MarkRead(ctx, list[0].ID, "u1"))

	unread, err := s.CountNotifications(ctx, "u1", true)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	n, err := s.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	unread, err = s.CountNotifications(ctx, "u1", true)
	require.NoError(t, err)
	assert.Zero(t, unread)
}
