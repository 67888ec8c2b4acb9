package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/matchup/internal/model"
)

// MemoryStore is an in-process implementation of RecordStore and
// NotificationStore.  Each game carries a capacity-1 channel used as its
// lock so that WithinGameTx calls for one game run one at a time while
// other games proceed in parallel.  A transaction works on a private copy
// of the game's rows and publishes it only on success.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[string]model.User
	venues        map[string]model.Venue
	games         map[string]*memGame
	notifications map[string]model.Notification
	now           func() time.Time
}

type memGame struct {
	lock  chan struct{}
	game  model.Game
	rsvps map[string]model.RSVP // keyed by user id
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]model.User),
		venues:        make(map[string]model.Venue),
		games:         make(map[string]*memGame),
		notifications: make(map[string]model.Notification),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// PutUser inserts or replaces a user.
func (s *MemoryStore) PutUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// PutVenue inserts or replaces a venue.
func (s *MemoryStore) PutVenue(v model.Venue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.venues[v.ID] = v
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// WithinGameTx implements RecordStore.
func (s *MemoryStore) WithinGameTx(ctx context.Context, gameID string, fn func(tx GameTx) error) error {
	s.mu.Lock()
	rec, ok := s.games[gameID]
	s.mu.Unlock()
	if !ok {
		return ErrGameNotFound
	}

	select {
	case rec.lock <- struct{}{}:
	case <-ctx.Done():
		return classify(ctx.Err())
	}
	defer func() { <-rec.lock }()

	s.mu.Lock()
	if cur, ok := s.games[gameID]; !ok || cur != rec {
		s.mu.Unlock()
		return ErrGameNotFound
	}
	tx := &memTx{
		store: s,
		game:  rec.game,
		rsvps: make(map[string]model.RSVP, len(rec.rsvps)),
	}
	for k, v := range rec.rsvps {
		tx.rsvps[k] = v
	}
	s.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return classify(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.deleted {
		delete(s.games, gameID)
		return nil
	}
	rec.game = tx.game
	rec.rsvps = tx.rsvps
	return nil
}

// CreateGame implements RecordStore.
func (s *MemoryStore) CreateGame(ctx context.Context, g *model.Game, host *model.RSVP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[g.ID]; ok {
		return fmt.Errorf("%w: game %s exists", ErrConflict, g.ID)
	}
	if g.VenueID != nil {
		if _, ok := s.venues[*g.VenueID]; !ok {
			return ErrVenueNotFound
		}
	}
	now := s.now()
	g.CreatedAt, g.UpdatedAt = now, now
	if host.ID == "" {
		host.ID = uuid.NewString()
	}
	host.GameID = g.ID
	host.CreatedAt, host.UpdatedAt = now, now
	s.games[g.ID] = &memGame{
		lock:  make(chan struct{}, 1),
		game:  *g,
		rsvps: map[string]model.RSVP{host.UserID: *host},
	}
	return nil
}

// GetGame implements RecordStore.
func (s *MemoryStore) GetGame(ctx context.Context, id string) (*model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	g := rec.game
	return &g, nil
}

// ListParticipants implements RecordStore.
func (s *MemoryStore) ListParticipants(ctx context.Context, gameID string) ([]model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.games[gameID]
	if !ok {
		return nil, ErrGameNotFound
	}
	out := make([]model.Participant, 0, len(rec.rsvps))
	for _, r := range sortedRSVPs(rec.rsvps) {
		if !r.Status.Active() {
			continue
		}
		p := model.Participant{RSVP: r, User: model.PublicUser{ID: r.UserID}}
		if u, ok := s.users[r.UserID]; ok {
			p.User = u.Public()
		}
		out = append(out, p)
	}
	return out, nil
}

// ListHostedGames implements RecordStore.  Most recent date first.
func (s *MemoryStore) ListHostedGames(ctx context.Context, userID string) ([]model.GameSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.GameSummary
	for _, rec := range s.games {
		if rec.game.HostID != userID {
			continue
		}
		out = append(out, model.GameSummary{Game: rec.game, CurrentPlayers: confirmedIn(rec.rsvps)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateTime.After(out[j].DateTime) })
	return out, nil
}

// ListJoinedGames implements RecordStore.  Soonest date first.
func (s *MemoryStore) ListJoinedGames(ctx context.Context, userID string) ([]model.GameSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.GameSummary
	for _, rec := range s.games {
		r, ok := rec.rsvps[userID]
		if !ok || !r.Status.Active() {
			continue
		}
		out = append(out, model.GameSummary{
			Game:           rec.game,
			CurrentPlayers: confirmedIn(rec.rsvps),
			MyStatus:       r.Status,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateTime.Before(out[j].DateTime) })
	return out, nil
}

// GetUser implements RecordStore.
func (s *MemoryStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// InsertNotification implements NotificationStore.
func (s *MemoryStore) InsertNotification(ctx context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.notifications[n.ID] = *n
	return nil
}

// ListNotifications implements NotificationStore.  Newest first.
func (s *MemoryStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.userNotifications(userID, unreadOnly)
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return []model.Notification{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// CountNotifications implements NotificationStore.
func (s *MemoryStore) CountNotifications(ctx context.Context, userID string, unreadOnly bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.userNotifications(userID, unreadOnly)), nil
}

// MarkRead implements NotificationStore.
func (s *MemoryStore) MarkRead(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotificationNotFound
	}
	n.Read = true
	s.notifications[id] = n
	return nil
}

// MarkAllRead implements NotificationStore.
func (s *MemoryStore) MarkAllRead(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for id, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			s.notifications[id] = n
			updated++
		}
	}
	return updated, nil
}

// caller holds s.mu
func (s *MemoryStore) userNotifications(userID string, unreadOnly bool) []model.Notification {
	var out []model.Notification
	for _, n := range s.notifications {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func sortedRSVPs(m map[string]model.RSVP) []model.RSVP {
	out := make([]model.RSVP, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func confirmedIn(m map[string]model.RSVP) int {
	n := 0
	for _, r := range m {
		if r.Status == model.RSVPConfirmed {
			n++
		}
	}
	return n
}

// memTx is the working copy of one game handed to WithinGameTx callbacks.
type memTx struct {
	store   *MemoryStore
	game    model.Game
	rsvps   map[string]model.RSVP
	deleted bool
}

func (t *memTx) FindGame(ctx context.Context, id string) (*model.Game, error) {
	if t.deleted || id != t.game.ID {
		return nil, ErrGameNotFound
	}
	g := t.game
	return &g, nil
}

func (t *memTx) UpdateGame(ctx context.Context, g *model.Game) error {
	if t.deleted || g.ID != t.game.ID {
		return ErrGameNotFound
	}
	g.UpdatedAt = t.store.now()
	g.CreatedAt = t.game.CreatedAt
	g.RSVPSeq = t.game.RSVPSeq
	t.game = *g
	return nil
}

func (t *memTx) DeleteGame(ctx context.Context, id string) error {
	if t.deleted || id != t.game.ID {
		return ErrGameNotFound
	}
	t.deleted = true
	t.rsvps = map[string]model.RSVP{}
	return nil
}

func (t *memTx) CountConfirmedRSVPs(ctx context.Context, gameID string) (int, error) {
	if gameID != t.game.ID {
		return 0, ErrGameNotFound
	}
	return confirmedIn(t.rsvps), nil
}

func (t *memTx) FindRSVP(ctx context.Context, gameID, userID string) (*model.RSVP, error) {
	r, ok := t.rsvps[userID]
	if !ok || gameID != t.game.ID {
		return nil, ErrRSVPNotFound
	}
	return &r, nil
}

func (t *memTx) UpsertRSVP(ctx context.Context, r *model.RSVP) error {
	if t.deleted || r.GameID != t.game.ID {
		return ErrGameNotFound
	}
	now := t.store.now()
	if prev, ok := t.rsvps[r.UserID]; ok {
		r.ID = prev.ID
	} else if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	t.rsvps[r.UserID] = *r
	return nil
}

func (t *memTx) NextPosition(ctx context.Context, gameID string) (int64, error) {
	if t.deleted || gameID != t.game.ID {
		return 0, ErrGameNotFound
	}
	t.game.RSVPSeq++
	return t.game.RSVPSeq, nil
}

func (t *memTx) OldestWaitlisted(ctx context.Context, gameID string) (*model.RSVP, error) {
	if gameID != t.game.ID {
		return nil, ErrRSVPNotFound
	}
	for _, r := range sortedRSVPs(t.rsvps) {
		if r.Status == model.RSVPWaitlisted {
			return &r, nil
		}
	}
	return nil, ErrRSVPNotFound
}

func (t *memTx) ListRSVPs(ctx context.Context, gameID string, statuses ...model.RSVPStatus) ([]model.RSVP, error) {
	if gameID != t.game.ID {
		return nil, ErrGameNotFound
	}
	var out []model.RSVP
	for _, r := range sortedRSVPs(t.rsvps) {
		if len(statuses) == 0 || hasStatus(statuses, r.Status) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *memTx) FindUser(ctx context.Context, id string) (*model.User, error) {
	return t.store.GetUser(ctx, id)
}

func hasStatus(list []model.RSVPStatus, s model.RSVPStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
