package service

import (
	"context"
	"time"

	"github.com/dkotelnikov/authd/internal/models"
)

// TokenMinter signs access tokens and mints opaque refresh tokens.
// The auth service never inspects how either is produced.
type TokenMinter interface {
	CreateAccessToken(userID string, now time.Time) (string, time.Time, error)
	NewRefreshToken(userID string, now time.Time) (models.RefreshToken, error)
}

// PasswordVerifier checks a plaintext secret against a stored hash.
// CompareDummy burns the cost of a real verification without one, so a
// lookup miss is not distinguishable from a wrong password by timing.
type PasswordVerifier interface {
	Verify(hashed, plain string) bool
	CompareDummy(plain string)
}

// ReplayNotifier is told when an already-used refresh token is presented
// again. Implementations must not block the calling request.
type ReplayNotifier interface {
	NotifyTokenReuse(ctx context.Context, userID, tokenPrefix string)
}
