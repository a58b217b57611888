package models

import "time"

// User is an identity record owned by the external identity store.
// The service only ever reads it.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
