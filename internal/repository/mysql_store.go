package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/matchup/internal/model"
)

// MySQLStore implements RecordStore on top of MySQL.  Per-game
// serialization comes from locking the game row with SELECT ... FOR UPDATE
// at the start of every WithinGameTx, so concurrent joins and leaves for
// the same game queue up in the database even when they arrive at
// different server processes.
type MySQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewMySQLStore returns a MySQLStore bound to the given database.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *MySQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const gameColumns = `g.id, g.title, g.sport, g.host_id, g.venue_id, g.custom_location, g.latitude, g.longitude,
	g.date_time, g.duration, g.max_players, g.min_players, g.skill_level, g.description, g.price, g.status,
	g.rsvp_seq, g.created_at, g.updated_at`

const rsvpColumns = `r.id, r.game_id, r.user_id, r.status, r.position, r.created_at, r.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanGame reads gameColumns followed by any extra destinations.
func scanGame(row rowScanner, extra ...any) (*model.Game, error) {
	var (
		g                         model.Game
		venueID, customLoc, descr sql.NullString
		price                     sql.NullInt64
	)
	dest := []any{
		&g.ID, &g.Title, &g.Sport, &g.HostID, &venueID, &customLoc, &g.Latitude, &g.Longitude,
		&g.DateTime, &g.Duration, &g.MaxPlayers, &g.MinPlayers, &g.SkillLevel, &descr, &price, &g.Status,
		&g.RSVPSeq, &g.CreatedAt, &g.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	g.VenueID = nullString(venueID)
	g.CustomLocation = nullString(customLoc)
	g.Description = nullString(descr)
	if price.Valid {
		p := int(price.Int64)
		g.Price = &p
	}
	return &g, nil
}

func scanRSVP(row rowScanner, extra ...any) (*model.RSVP, error) {
	var r model.RSVP
	dest := []any{&r.ID, &r.GameID, &r.UserID, &r.Status, &r.Position, &r.CreatedAt, &r.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &r, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

// WithinGameTx implements RecordStore.  The transaction runs at READ
// COMMITTED; the row lock on the game is what orders competing callers.
func (s *MySQLStore) WithinGameTx(ctx context.Context, gameID string, fn func(tx GameTx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM games WHERE id = ? FOR UPDATE`, gameID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrGameNotFound
	}
	if err != nil {
		return classify(err)
	}

	if err := fn(&mysqlTx{tx: tx, now: s.now}); err != nil {
		return expired(ctx, err)
	}
	if err := tx.Commit(); err != nil {
		if ctx.Err() != nil {
			return classify(ctx.Err())
		}
		return classify(err)
	}
	committed = true
	return nil
}

// expired reports a statement that failed because database/sql already
// rolled the transaction back on ctx expiry as a lock timeout.
func expired(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, sql.ErrTxDone) {
		return classify(ctx.Err())
	}
	return err
}

// CreateGame implements RecordStore.
func (s *MySQLStore) CreateGame(ctx context.Context, g *model.Game, host *model.RSVP) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if g.VenueID != nil {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM venues WHERE id = ?`, *g.VenueID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrVenueNotFound
		}
		if err != nil {
			return classify(err)
		}
	}

	now := s.now()
	g.CreatedAt, g.UpdatedAt = now, now
	const insGame = `INSERT INTO games (id, title, sport, host_id, venue_id, custom_location, latitude, longitude,
		date_time, duration, max_players, min_players, skill_level, description, price, status, rsvp_seq,
		created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insGame,
		g.ID, g.Title, g.Sport, g.HostID, g.VenueID, g.CustomLocation, g.Latitude, g.Longitude,
		g.DateTime, g.Duration, g.MaxPlayers, g.MinPlayers, g.SkillLevel, g.Description, nullInt(g.Price), g.Status,
		g.RSVPSeq, g.CreatedAt, g.UpdatedAt,
	); err != nil {
		return classify(err)
	}

	if host.ID == "" {
		host.ID = uuid.NewString()
	}
	host.GameID = g.ID
	host.CreatedAt, host.UpdatedAt = now, now
	const insRSVP = `INSERT INTO rsvps (id, game_id, user_id, status, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insRSVP,
		host.ID, host.GameID, host.UserID, host.Status, host.Position, host.CreatedAt, host.UpdatedAt,
	); err != nil {
		return classify(err)
	}

	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	committed = true
	return nil
}

// GetGame implements RecordStore.
func (s *MySQLStore) GetGame(ctx context.Context, id string) (*model.Game, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games g WHERE g.id = ?`, id)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return g, nil
}

// ListParticipants implements RecordStore.  Players whose user row is
// missing are returned with their id only.
func (s *MySQLStore) ListParticipants(ctx context.Context, gameID string) ([]model.Participant, error) {
	q := `SELECT ` + rsvpColumns + `, u.name, u.avatar
		FROM rsvps r LEFT JOIN users u ON u.id = r.user_id
		WHERE r.game_id = ? AND r.status IN ('confirmed', 'waitlisted')
		ORDER BY r.position ASC`
	rows, err := s.db.QueryContext(ctx, q, gameID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := []model.Participant{}
	for rows.Next() {
		var name, avatar sql.NullString
		r, err := scanRSVP(rows, &name, &avatar)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Participant{
			RSVP: *r,
			User: model.PublicUser{ID: r.UserID, Name: name.String, Avatar: nullString(avatar)},
		})
	}
	return out, rows.Err()
}

// ListHostedGames implements RecordStore.
func (s *MySQLStore) ListHostedGames(ctx context.Context, userID string) ([]model.GameSummary, error) {
	q := `SELECT ` + gameColumns + `,
		(SELECT COUNT(*) FROM rsvps c WHERE c.game_id = g.id AND c.status = 'confirmed')
		FROM games g WHERE g.host_id = ? ORDER BY g.date_time DESC`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := []model.GameSummary{}
	for rows.Next() {
		var current int
		g, err := scanGame(rows, &current)
		if err != nil {
			return nil, err
		}
		out = append(out, model.GameSummary{Game: *g, CurrentPlayers: current})
	}
	return out, rows.Err()
}

// ListJoinedGames implements RecordStore.
func (s *MySQLStore) ListJoinedGames(ctx context.Context, userID string) ([]model.GameSummary, error) {
	q := `SELECT ` + gameColumns + `,
		(SELECT COUNT(*) FROM rsvps c WHERE c.game_id = g.id AND c.status = 'confirmed'), r.status
		FROM rsvps r JOIN games g ON g.id = r.game_id
		WHERE r.user_id = ? AND r.status IN ('confirmed', 'waitlisted')
		ORDER BY g.date_time ASC`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := []model.GameSummary{}
	for rows.Next() {
		var (
			current int
			status  model.RSVPStatus
		)
		g, err := scanGame(rows, &current, &status)
		if err != nil {
			return nil, err
		}
		out = append(out, model.GameSummary{Game: *g, CurrentPlayers: current, MyStatus: status})
	}
	return out, rows.Err()
}

// GetUser implements RecordStore.
func (s *MySQLStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return findUser(ctx, s.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findUser(ctx context.Context, q queryRower, id string) (*model.User, error) {
	const sel = `SELECT id, name, email, avatar, phone, role, push_token, created_at FROM users WHERE id = ?`
	var (
		u                        model.User
		avatar, phone, pushToken sql.NullString
	)
	err := q.QueryRowContext(ctx, sel, id).Scan(&u.ID, &u.Name, &u.Email, &avatar, &phone, &u.Role, &pushToken, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	u.Avatar = nullString(avatar)
	u.Phone = nullString(phone)
	u.PushToken = nullString(pushToken)
	return &u, nil
}

// mysqlTx is the GameTx handed to WithinGameTx callbacks.  Every error it
// returns has been through classify.
type mysqlTx struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *mysqlTx) FindGame(ctx context.Context, id string) (*model.Game, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games g WHERE g.id = ?`, id)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return g, nil
}

func (t *mysqlTx) UpdateGame(ctx context.Context, g *model.Game) error {
	g.UpdatedAt = t.now()
	const q = `UPDATE games SET title = ?, date_time = ?, duration = ?, max_players = ?, min_players = ?,
		skill_level = ?, description = ?, price = ?, status = ?, updated_at = ? WHERE id = ?`
	res, err := t.tx.ExecContext(ctx, q,
		g.Title, g.DateTime, g.Duration, g.MaxPlayers, g.MinPlayers,
		g.SkillLevel, g.Description, nullInt(g.Price), g.Status, g.UpdatedAt, g.ID,
	)
	if err != nil {
		return classify(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrGameNotFound
	}
	return nil
}

func (t *mysqlTx) DeleteGame(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, id)
	if err != nil {
		return classify(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrGameNotFound
	}
	return nil
}

func (t *mysqlTx) CountConfirmedRSVPs(ctx context.Context, gameID string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rsvps WHERE game_id = ? AND status = 'confirmed'`, gameID).Scan(&n)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

func (t *mysqlTx) FindRSVP(ctx context.Context, gameID, userID string) (*model.RSVP, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+rsvpColumns+` FROM rsvps r WHERE r.game_id = ? AND r.user_id = ?`, gameID, userID)
	r, err := scanRSVP(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRSVPNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return r, nil
}

// UpsertRSVP relies on the unique (game_id, user_id) key: a returning
// player keeps the row id while status, position and timestamps are
// replaced.
func (t *mysqlTx) UpsertRSVP(ctx context.Context, r *model.RSVP) error {
	now := t.now()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	const q = `INSERT INTO rsvps (id, game_id, user_id, status, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE status = VALUES(status), position = VALUES(position),
			created_at = VALUES(created_at), updated_at = VALUES(updated_at)`
	if _, err := t.tx.ExecContext(ctx, q,
		r.ID, r.GameID, r.UserID, r.Status, r.Position, r.CreatedAt, r.UpdatedAt,
	); err != nil {
		return classify(err)
	}
	err := t.tx.QueryRowContext(ctx,
		`SELECT id FROM rsvps WHERE game_id = ? AND user_id = ?`, r.GameID, r.UserID).Scan(&r.ID)
	return classify(err)
}

func (t *mysqlTx) NextPosition(ctx context.Context, gameID string) (int64, error) {
	if _, err := t.tx.ExecContext(ctx, `UPDATE games SET rsvp_seq = rsvp_seq + 1 WHERE id = ?`, gameID); err != nil {
		return 0, classify(err)
	}
	var seq int64
	if err := t.tx.QueryRowContext(ctx, `SELECT rsvp_seq FROM games WHERE id = ?`, gameID).Scan(&seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrGameNotFound
		}
		return 0, classify(err)
	}
	return seq, nil
}

func (t *mysqlTx) OldestWaitlisted(ctx context.Context, gameID string) (*model.RSVP, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+rsvpColumns+` FROM rsvps r
		WHERE r.game_id = ? AND r.status = 'waitlisted' ORDER BY r.position ASC LIMIT 1`, gameID)
	r, err := scanRSVP(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRSVPNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return r, nil
}

func (t *mysqlTx) ListRSVPs(ctx context.Context, gameID string, statuses ...model.RSVPStatus) ([]model.RSVP, error) {
	q := `SELECT ` + rsvpColumns + ` FROM rsvps r WHERE r.game_id = ?`
	args := []any{gameID}
	if len(statuses) > 0 {
		q += ` AND r.status IN (?` + strings.Repeat(", ?", len(statuses)-1) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	q += ` ORDER BY r.position ASC`
	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []model.RSVP
	for rows.Next() {
		r, err := scanRSVP(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, classify(rows.Err())
}

func (t *mysqlTx) FindUser(ctx context.Context, id string) (*model.User, error) {
	return findUser(ctx, t.tx, id)
}
