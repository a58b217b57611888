package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dkotelnikov/authd/internal/storage"
)

type Storage struct {
	db *sql.DB
	*UserRepository
	*TokenRepository
}

func NewStorage(db *sql.DB) *Storage {
	return &Storage{
		db:              db,
		UserRepository:  NewUserRepository(db),
		TokenRepository: NewTokenRepository(db),
	}
}

// RotateTokenTx выполняет транзакцию по ротации refresh-токена.
// Строка блокируется через SELECT ... FOR UPDATE, поэтому две конкурентные
// ротации одного токена сериализуются: вторая увидит used = true.
func (s *Storage) RotateTokenTx(ctx context.Context, value string, fn storage.RotateFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	tokenRepoTx := NewTokenRepository(tx)

	old, err := tokenRepoTx.getRefreshTokenForUpdate(ctx, value)
	if err != nil {
		return err
	}

	if err := fn(old, tokenRepoTx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
