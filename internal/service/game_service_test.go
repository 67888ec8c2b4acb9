package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/matchup/internal/model"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func validCreateInput() CreateGameInput {
	return CreateGameInput{
		Title:          "Evening Badminton",
		Sport:          model.SportBadminton,
		CustomLocation: strPtr("Community hall, court 2"),
		Latitude:       51.5,
		Longitude:      -0.12,
		DateTime:       time.Now().Add(48 * time.Hour),
		Duration:       90,
		MaxPlayers:     4,
	}
}

func TestCreate_HostAutoConfirmed(t *testing.T) {
	f := newFixture(t)
	g, err := f.games.Create(context.Background(), Actor{UserID: "host"}, validCreateInput())
	require.NoError(t, err)
	assert.Equal(t, model.GameUpcoming, g.Status)
	assert.Equal(t, 2, g.MinPlayers)
	assert.Equal(t, model.SkillAny, g.SkillLevel)

	assert.Equal(t, model.RSVPConfirmed, f.statusOf(t, g.ID, "host"))
	assert.Equal(t, model.RSVPConfirmed, f.join(t, g.ID, "a"))

	d, err := f.games.Get(context.Background(), g.ID, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, d.CurrentPlayers)
	assert.Equal(t, "Hana", d.Host.Name)
	require.NotNil(t, d.UserRSVPStatus)
	assert.Equal(t, model.RSVPConfirmed, *d.UserRSVPStatus)
	assert.False(t, d.IsHost)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateGameInput)
	}{
		{"short title", func(in *CreateGameInput) { in.Title = "ab" }},
		{"unknown sport", func(in *CreateGameInput) { in.Sport = "curling" }},
		{"latitude out of range", func(in *CreateGameInput) { in.Latitude = 91 }},
		{"duration too short", func(in *CreateGameInput) { in.Duration = 15 }},
		{"too many players", func(in *CreateGameInput) { in.MaxPlayers = 51 }},
		{"min above max", func(in *CreateGameInput) { in.MinPlayers = 6 }},
		{"negative price", func(in *CreateGameInput) { in.Price = intPtr(-1) }},
		{"no location", func(in *CreateGameInput) { in.CustomLocation = nil }},
		{"in the past", func(in *CreateGameInput) { in.DateTime = time.Now().Add(-time.Hour) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := validCreateInput()
			tt.mutate(&in)
			_, err := f.games.Create(context.Background(), Actor{UserID: "host"}, in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestCreate_UnknownVenue(t *testing.T) {
	f := newFixture(t)
	in := validCreateInput()
	in.VenueID = strPtr("venue-1")
	_, err := f.games.Create(context.Background(), Actor{UserID: "host"}, in)
	assert.ErrorIs(t, err, ErrVenueNotFound)
}

// fullGame returns a game with host, a and b confirmed and c, d waitlisted.
func fullGame(t *testing.T, f *fixture) string {
	t.Helper()
	gameID := f.seedGame(t, 3)
	for _, u := range []string{"a", "b", "c", "d"} {
		f.join(t, gameID, u)
	}
	f.pub.reset()
	f.disp.reset()
	return gameID
}

func TestCancel_NotifiesEveryPlayerButActor(t *testing.T) {
	tests := []struct {
		name  string
		actor Actor
		want  int
	}{
		{"admin", Actor{UserID: "admin", Role: model.RoleAdmin}, 5},
		{"host", Actor{UserID: "host", Role: model.RoleUser}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			gameID := fullGame(t, f)

			g, err := f.games.Cancel(context.Background(), tt.actor, gameID)
			require.NoError(t, err)
			assert.Equal(t, model.GameCancelled, g.Status)

			intents := f.disp.all()
			assert.Len(t, intents, tt.want)
			for _, it := range intents {
				assert.Equal(t, "Game Cancelled", it.Title)
				assert.NotEqual(t, tt.actor.UserID, it.RecipientID)
			}
			assert.Equal(t, []string{EventGameUpdated}, f.pub.names())
		})
	}
}

func TestUpdate_Forbidden(t *testing.T) {
	f := newFixture(t)
	gameID := fullGame(t, f)

	_, err := f.games.Update(context.Background(), Actor{UserID: "a"}, gameID, UpdateGameInput{Title: strPtr("Taken over")})
	assert.ErrorIs(t, err, ErrForbidden)
	err = f.games.Delete(context.Background(), Actor{UserID: "a"}, gameID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, f.pub.names())
}

func TestUpdate_StatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []model.GameStatus
		ok   bool
	}{
		{"forward", []model.GameStatus{model.GameInProgress, model.GameCompleted}, true},
		{"skip to completed", []model.GameStatus{model.GameCompleted}, true},
		{"cancel in progress", []model.GameStatus{model.GameInProgress, model.GameCancelled}, true},
		{"back to upcoming", []model.GameStatus{model.GameInProgress, model.GameUpcoming}, false},
		{"reopen cancelled", []model.GameStatus{model.GameCancelled, model.GameUpcoming}, false},
		{"cancel completed", []model.GameStatus{model.GameCompleted, model.GameCancelled}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			gameID := f.seedGame(t, 4)
			var err error
			for _, st := range tt.path {
				st := st
				_, err = f.games.Update(context.Background(), Actor{UserID: "host"}, gameID, UpdateGameInput{Status: &st})
				if err != nil {
					break
				}
			}
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			}
		})
	}
}

func TestUpdate_Reschedule(t *testing.T) {
	f := newFixture(t)
	gameID := fullGame(t, f)

	later := time.Now().Add(72 * time.Hour)
	_, err := f.games.Update(context.Background(), Actor{UserID: "host"}, gameID, UpdateGameInput{DateTime: &later})
	require.NoError(t, err)

	intents := f.disp.all()
	require.Len(t, intents, 2)
	assert.ElementsMatch(t, []string{"a", "b"}, []string{intents[0].RecipientID, intents[1].RecipientID})
	assert.Equal(t, "Game Updated", intents[0].Title)
	assert.Equal(t, []string{EventGameUpdated}, f.pub.names())

	f.disp.reset()
	_, err = f.games.Update(context.Background(), Actor{UserID: "host"}, gameID, UpdateGameInput{Title: strPtr("Renamed game")})
	require.NoError(t, err)
	assert.Empty(t, f.disp.all())
}

func TestUpdate_MaxPlayers(t *testing.T) {
	f := newFixture(t)
	gameID := fullGame(t, f)

	_, err := f.games.Update(context.Background(), Actor{UserID: "host"}, gameID, UpdateGameInput{MaxPlayers: intPtr(2)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.games.Update(context.Background(), Actor{UserID: "host"}, gameID, UpdateGameInput{MaxPlayers: intPtr(4)})
	require.NoError(t, err)
	assert.Equal(t, model.RSVPConfirmed, f.statusOf(t, gameID, "c"))
	assert.Equal(t, model.RSVPWaitlisted, f.statusOf(t, gameID, "d"))
	assert.Equal(t, []string{EventPlayerPromoted, EventGameUpdated}, f.pub.names())

	intents := f.disp.all()
	require.Len(t, intents, 1)
	assert.Equal(t, "c", intents[0].RecipientID)
	assert.Equal(t, "Spot Available!", intents[0].Title)
}

func TestUpdate_MaxPlayersRaisePromotesWhileInProgress(t *testing.T) {
	f := newFixture(t)
	gameID := fullGame(t, f)
	st := model.GameInProgress
	_, err := f.games.Update(context.Background(), Actor{UserID: "host"}, gameID, UpdateGameInput{Status: &st})
	require.NoError(t, err)
	f.pub.reset()

	_, err = f.games.Update(context.Background(), Actor{UserID: "host"}, gameID, UpdateGameInput{MaxPlayers: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, model.RSVPConfirmed, f.statusOf(t, gameID, "c"))
	assert.Equal(t, model.RSVPConfirmed, f.statusOf(t, gameID, "d"))
	assert.Equal(t, []string{EventPlayerPromoted, EventPlayerPromoted, EventGameUpdated}, f.pub.names())
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	gameID := f.seedGame(t, 4)
	f.join(t, gameID, "a")

	err := f.games.Delete(context.Background(), Actor{UserID: "host"}, gameID)
	assert.ErrorIs(t, err, ErrGameHasPlayers)

	_, err = f.rsvp.Leave(context.Background(), gameID, "a")
	require.NoError(t, err)
	require.NoError(t, f.games.Delete(context.Background(), Actor{UserID: "host"}, gameID))

	_, err = f.games.Get(context.Background(), gameID, "")
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestListHostedAndJoined(t *testing.T) {
	f := newFixture(t)
	gameID := fullGame(t, f)

	hosted, err := f.games.ListHosted(context.Background(), "host")
	require.NoError(t, err)
	require.Len(t, hosted, 1)
	assert.Equal(t, 3, hosted[0].CurrentPlayers)

	joined, err := f.games.ListJoined(context.Background(), "d")
	require.NoError(t, err)
	require.Len(t, joined, 1)
	assert.Equal(t, gameID, joined[0].ID)
	assert.Equal(t, model.RSVPWaitlisted, joined[0].MyStatus)
}
