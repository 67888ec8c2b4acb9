package model

import "time"

// Roles carried in access tokens.  Admins may update, cancel and delete
// any game.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User mirrors the `users` table.  Accounts are created and
// authenticated elsewhere; this service only reads them to resolve
// display names, roles and push tokens.
//
// Fields:
//
//	ID        – primary key.
//	Name      – display name shown to other players.
//	Email     – unique email address.
//	Avatar    – optional avatar URL.
//	Phone     – optional contact number.
//	Role      – user or admin.
//	PushToken – device token for push delivery, when registered.
//	CreatedAt – timestamp of creation.
type User struct {
	ID        string
	Name      string
	Email     string
	Avatar    *string
	Phone     *string
	Role      string
	PushToken *string
	CreatedAt time.Time
}

// Public returns the identity other players are allowed to see.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
}

// PublicUser is the subset of a user exposed in game payloads and
// realtime events.
type PublicUser struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar,omitempty"`
}

// Venue is a partner location games can be hosted at.
type Venue struct {
	ID        string
	Name      string
	Address   string
	Latitude  float64
	Longitude float64
}
