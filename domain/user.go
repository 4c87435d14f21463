// Package domain contains the core concepts of the chat system.
// No transport, storage, or UI logic should be added here.
package domain

import "time"

type UserID int64

// User is an account identity. The password hash is opaque to every
// layer except auth.
type User struct {
	ID           UserID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
