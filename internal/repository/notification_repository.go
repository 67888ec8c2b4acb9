package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/matchup/internal/model"
)

// NotificationRepo persists in-app notifications in the 'notifications'
// table.  The data payload is stored as a JSON column.
type NotificationRepo struct{ DB *sql.DB }

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{DB: db} }

// InsertNotification assigns an id and creation time when missing.
func (r *NotificationRepo) InsertNotification(ctx context.Context, n *model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	var data []byte
	if n.Data != nil {
		b, err := json.Marshal(n.Data)
		if err != nil {
			return err
		}
		data = b
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO notifications (id, user_id, title, body, type, data, is_read, created_at) VALUES (?,?,?,?,?,?,?,?)",
		n.ID, n.UserID, n.Title, n.Body, n.Type, data, n.Read, n.CreatedAt)
	return classify(err)
}

// ListNotifications returns a page of the user's notifications, newest first.
func (r *NotificationRepo) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]model.Notification, error) {
	q := "SELECT id, user_id, title, body, type, data, is_read, created_at FROM notifications WHERE user_id=?"
	if unreadOnly {
		q += " AND is_read=FALSE"
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := r.DB.QueryContext(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := []model.Notification{}
	for rows.Next() {
		var (
			n    model.Notification
			data []byte
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Type, &data, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return nil, err
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountNotifications counts the user's notifications, or only the unread ones.
func (r *NotificationRepo) CountNotifications(ctx context.Context, userID string, unreadOnly bool) (int, error) {
	q := "SELECT COUNT(*) FROM notifications WHERE user_id=?"
	if unreadOnly {
		q += " AND is_read=FALSE"
	}
	var n int
	if err := r.DB.QueryRowContext(ctx, q, userID).Scan(&n); err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// MarkRead flags one notification as read.  Marking an already read
// notification succeeds.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, userID string) error {
	var exists int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM notifications WHERE id=? AND user_id=? LIMIT 1", id, userID).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrNotificationNotFound
	}
	if err != nil {
		return classify(err)
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE notifications SET is_read=TRUE WHERE id=? AND user_id=?", id, userID)
	return classify(err)
}

// MarkAllRead flags every unread notification of the user and returns how
// many changed.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID string) (int, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE notifications SET is_read=TRUE WHERE user_id=? AND is_read=FALSE", userID)
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
