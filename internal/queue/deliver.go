package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/matchup/internal/model"
	"github.com/iliyamo/matchup/internal/notify"
	"github.com/iliyamo/matchup/internal/repository"
)

// Pusher sends a push notification to a device token.
type Pusher interface {
	Push(ctx context.Context, token string, n model.Notification) error
}

// LogPusher records pushes in the log instead of calling a push provider.
type LogPusher struct{}

func (LogPusher) Push(ctx context.Context, token string, n model.Notification) error {
	logrus.WithFields(logrus.Fields{
		"component": "push",
		"user_id":   n.UserID,
		"title":     n.Title,
	}).Info("push sent")
	return nil
}

// UserLookup resolves recipients to find their push token.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// Deliverer persists the in-app notification and then pushes it to the
// recipient's device when one is registered.
type Deliverer struct {
	store  repository.NotificationStore
	users  UserLookup
	pusher Pusher
	log    *logrus.Entry
}

func NewDeliverer(store repository.NotificationStore, users UserLookup, pusher Pusher) *Deliverer {
	if pusher == nil {
		pusher = LogPusher{}
	}
	return &Deliverer{store: store, users: users, pusher: pusher, log: logrus.WithField("component", "notifications")}
}

// Deliver fails only when the in-app notification could not be stored.
// Push failures are logged.
func (d *Deliverer) Deliver(ctx context.Context, in notify.Intent) error {
	n := &model.Notification{
		UserID: in.RecipientID,
		Title:  in.Title,
		Body:   in.Body,
		Type:   in.Type,
		Data:   in.Data,
	}
	if n.Type == "" {
		n.Type = model.NotificationGeneral
	}
	if err := d.store.InsertNotification(ctx, n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	u, err := d.users.GetUser(ctx, in.RecipientID)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return nil
	case err != nil:
		d.log.WithError(err).WithField("user_id", in.RecipientID).Warn("push skipped: user lookup failed")
		return nil
	}
	if u.PushToken == nil || *u.PushToken == "" {
		return nil
	}
	if err := d.pusher.Push(ctx, *u.PushToken, *n); err != nil {
		d.log.WithError(err).WithField("user_id", in.RecipientID).Warn("push failed")
	}
	return nil
}
