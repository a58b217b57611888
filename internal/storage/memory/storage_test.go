package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkotelnikov/authd/internal/models"
	"github.com/dkotelnikov/authd/internal/storage"
)

func TestRotateTokenTxNotFound(t *testing.T) {
	t.Parallel()

	s := NewStorage()
	err := s.RotateTokenTx(context.Background(), "missing", func(*models.RefreshToken, storage.RefreshTokenRepository) error {
		t.Fatal("fn must not run when the token does not exist")
		return nil
	})
	assert.ErrorIs(t, err, storage.ErrRefreshTokenNotFound)
}

func TestRotateTokenTxCommit(t *testing.T) {
	t.Parallel()

	s := NewStorage()
	ctx := context.Background()
	require.NoError(t, s.CreateRefreshToken(ctx, models.RefreshToken{
		Token:     "old",
		UserID:    "u1",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	err := s.RotateTokenTx(ctx, "old", func(old *models.RefreshToken, tokens storage.RefreshTokenRepository) error {
		if err := tokens.MarkRefreshTokenUsed(ctx, old.Token); err != nil {
			return err
		}
		return tokens.CreateRefreshToken(ctx, models.RefreshToken{
			Token:     "new",
			UserID:    old.UserID,
			ExpiresAt: time.Now().Add(time.Hour),
		})
	})
	require.NoError(t, err)

	old, err := s.GetRefreshToken(ctx, "old")
	require.NoError(t, err)
	assert.True(t, old.Used)

	fresh, err := s.GetRefreshToken(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, "u1", fresh.UserID)
}

// Ошибка из fn откатывает все: промежуточные мутации не видны снаружи.
func TestRotateTokenTxRollback(t *testing.T) {
	t.Parallel()

	s := NewStorage()
	ctx := context.Background()
	require.NoError(t, s.CreateRefreshToken(ctx, models.RefreshToken{
		Token:     "old",
		UserID:    "u1",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	boom := errors.New("boom")
	err := s.RotateTokenTx(ctx, "old", func(old *models.RefreshToken, tokens storage.RefreshTokenRepository) error {
		if err := tokens.MarkRefreshTokenUsed(ctx, old.Token); err != nil {
			return err
		}
		if err := tokens.CreateRefreshToken(ctx, models.RefreshToken{Token: "new", UserID: old.UserID}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	old, err := s.GetRefreshToken(ctx, "old")
	require.NoError(t, err)
	assert.False(t, old.Used)

	_, err = s.GetRefreshToken(ctx, "new")
	assert.ErrorIs(t, err, storage.ErrRefreshTokenNotFound)
}

func TestCreateRefreshTokenDuplicate(t *testing.T) {
	t.Parallel()

	s := NewStorage()
	ctx := context.Background()
	token := models.RefreshToken{Token: "dup", UserID: "u1"}

	require.NoError(t, s.CreateRefreshToken(ctx, token))
	assert.Error(t, s.CreateRefreshToken(ctx, token))
}

func TestGetUserByEmail(t *testing.T) {
	t.Parallel()

	s := NewStorage()
	ctx := context.Background()

	created, err := s.CreateUser(ctx, "u1@example.com", "hash")
	require.NoError(t, err)

	found, err := s.GetUserByEmail(ctx, "u1@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}
