// Package queue moves planned notifications from the request path to
// delivery, either through RabbitMQ or through an in-process worker.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/matchup/internal/notify"
)

// NotificationMessage is the body published to the notification queue.
// It carries everything the consumer needs, so delivery never reads the
// game back.
type NotificationMessage struct {
	notify.Intent
	QueuedAt string `json:"queued_at"`
}

func encodeMessage(in notify.Intent, now time.Time) ([]byte, error) {
	return json.Marshal(NotificationMessage{Intent: in, QueuedAt: now.UTC().Format(time.RFC3339Nano)})
}

func decodeMessage(body []byte) (notify.Intent, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return notify.Intent{}, fmt.Errorf("unmarshal: %w", err)
	}
	if msg.RecipientID == "" {
		return notify.Intent{}, errors.New("message has no recipient")
	}
	return msg.Intent, nil
}
