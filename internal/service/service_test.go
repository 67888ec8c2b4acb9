package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/matchup/internal/model"
	"github.com/iliyamo/matchup/internal/notify"
	"github.com/iliyamo/matchup/internal/repository"
)

type published struct {
	GameID  string
	Event   string
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(ctx context.Context, gameID, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{GameID: gameID, Event: event, Payload: payload})
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Event
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type recordingDispatcher struct {
	mu      sync.Mutex
	intents []notify.Intent
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, intents []notify.Intent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.intents = append(d.intents, intents...)
}

func (d *recordingDispatcher) all() []notify.Intent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notify.Intent(nil), d.intents...)
}

func (d *recordingDispatcher) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.intents = nil
}

type fixture struct {
	store *repository.MemoryStore
	pub   *recordingPublisher
	disp  *recordingDispatcher
	rsvp  *RSVPService
	games *GameService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	for _, u := range []model.User{
		{ID: "host", Name: "Hana", Role: model.RoleUser},
		{ID: "a", Name: "Ana", Role: model.RoleUser},
		{ID: "b", Name: "Ben", Role: model.RoleUser},
		{ID: "c", Name: "Cai", Role: model.RoleUser},
		{ID: "d", Name: "Dev", Role: model.RoleUser},
		{ID: "admin", Name: "Ops", Role: model.RoleAdmin},
	} {
		store.PutUser(u)
	}
	pub := &recordingPublisher{}
	disp := &recordingDispatcher{}
	return &fixture{
		store: store,
		pub:   pub,
		disp:  disp,
		rsvp:  NewRSVPService(store, pub, disp, time.Second),
		games: NewGameService(store, pub, disp, time.Second),
	}
}

// seedGame stores an upcoming game hosted by "host" without input
// validation so capacities below the creation minimum can be exercised.
func (f *fixture) seedGame(t *testing.T, maxPlayers int) string {
	t.Helper()
	g := &model.Game{
		ID: "game-" + t.Name(), Title: "Park Run Football", Sport: model.SportFootball, HostID: "host",
		DateTime: time.Now().Add(24 * time.Hour), Duration: 60, MaxPlayers: maxPlayers, MinPlayers: 1,
		SkillLevel: model.SkillAny, Status: model.GameUpcoming, RSVPSeq: 1,
	}
	host := &model.RSVP{UserID: "host", Status: model.RSVPConfirmed, Position: 1}
	require.NoError(t, f.store.CreateGame(context.Background(), g, host))
	return g.ID
}

func (f *fixture) join(t *testing.T, gameID, userID string) model.RSVPStatus {
	t.Helper()
	res, err := f.rsvp.Join(context.Background(), gameID, userID)
	require.NoError(t, err)
	return res.Status
}

func (f *fixture) statusOf(t *testing.T, gameID, userID string) model.RSVPStatus {
	t.Helper()
	var st model.RSVPStatus
	err := f.store.WithinGameTx(context.Background(), gameID, func(tx repository.GameTx) error {
		r, err := tx.FindRSVP(context.Background(), gameID, userID)
		if err != nil {
			return err
		}
		st = r.Status
		return nil
	})
	require.NoError(t, err)
	return st
}

func (f *fixture) confirmedCount(t *testing.T, gameID string) int {
	t.Helper()
	var n int
	err := f.store.WithinGameTx(context.Background(), gameID, func(tx repository.GameTx) error {
		var err error
		n, err = tx.CountConfirmedRSVPs(context.Background(), gameID)
		return err
	})
	require.NoError(t, err)
	return n
}
