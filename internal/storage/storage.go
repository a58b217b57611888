package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dkotelnikov/authd/internal/models"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
)

// DBTX is satisfied by *sql.DB and *sql.Tx so repositories can run both
// standalone and inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Storage interface {
	UserRepository
	RefreshTokenRepository

	// RotateTokenTx runs fn inside a single transaction. The refresh token
	// matching value is located and locked for the duration of the
	// transaction, then handed to fn together with a tx-scoped token
	// repository. If no row matches, ErrRefreshTokenNotFound is returned and
	// fn is never called. Any error from fn rolls the transaction back.
	RotateTokenTx(ctx context.Context, value string, fn RotateFunc) error
}

type RotateFunc func(old *models.RefreshToken, tokens RefreshTokenRepository) error

type UserRepository interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type RefreshTokenRepository interface {
	CreateRefreshToken(ctx context.Context, token models.RefreshToken) error
	GetRefreshToken(ctx context.Context, value string) (*models.RefreshToken, error)
	MarkRefreshTokenUsed(ctx context.Context, value string) error
}
