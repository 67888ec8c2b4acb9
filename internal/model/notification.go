package model

import "time"

// NotificationType classifies in-app notifications for client rendering.
type NotificationType string

const (
	NotificationGameReminder NotificationType = "game_reminder"
	NotificationGameUpdate   NotificationType = "game_update"
	NotificationRSVPUpdate   NotificationType = "rsvp_update"
	NotificationGeneral      NotificationType = "general"
)

// Notification is a persisted in-app notification.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Type      NotificationType `json:"type"`
	Data      map[string]any   `json:"data,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}
