package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dkotelnikov/authd/internal/models"
	"github.com/dkotelnikov/authd/internal/storage"
)

type TokenRepository struct {
	db storage.DBTX
}

func NewTokenRepository(db storage.DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) CreateRefreshToken(ctx context.Context, token models.RefreshToken) error {
	query := `INSERT INTO refresh_tokens (token, user_id, expires_at, used, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, token.Token, token.UserID, token.ExpiresAt, token.Used, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepository) GetRefreshToken(ctx context.Context, value string) (*models.RefreshToken, error) {
	query := `SELECT token, user_id, expires_at, used, created_at FROM refresh_tokens WHERE token = $1`
	return r.scanRefreshToken(r.db.QueryRowContext(ctx, query, value))
}

// getRefreshTokenForUpdate блокирует строку токена до конца транзакции.
func (r *TokenRepository) getRefreshTokenForUpdate(ctx context.Context, value string) (*models.RefreshToken, error) {
	query := `SELECT token, user_id, expires_at, used, created_at FROM refresh_tokens WHERE token = $1 FOR UPDATE`
	return r.scanRefreshToken(r.db.QueryRowContext(ctx, query, value))
}

func (r *TokenRepository) MarkRefreshTokenUsed(ctx context.Context, value string) error {
	query := `UPDATE refresh_tokens SET used = TRUE WHERE token = $1`
	res, err := r.db.ExecContext(ctx, query, value)
	if err != nil {
		return fmt.Errorf("failed to mark refresh token used: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrRefreshTokenNotFound
	}
	return nil
}

func (r *TokenRepository) scanRefreshToken(row *sql.Row) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := row.Scan(&token.Token, &token.UserID, &token.ExpiresAt, &token.Used, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return &token, nil
}
