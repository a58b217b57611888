package models

import "time"

// RefreshToken is one issued refresh credential. A token is mutated exactly
// once in its life: Used flips to true when it is consumed for rotation.
type RefreshToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenPair is the result of a login or a rotation. Never persisted.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
