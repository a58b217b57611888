// Package memory provides an in-memory Storage implementation used by the
// test suite. RotateTokenTx serializes rotations with a single mutex, which
// models the row-level locking the postgres implementation relies on.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dkotelnikov/authd/internal/models"
	"github.com/dkotelnikov/authd/internal/storage"
)

type Storage struct {
	mu     sync.Mutex
	users  map[string]models.User         // keyed by user ID
	tokens map[string]models.RefreshToken // keyed by token value
}

func NewStorage() *Storage {
	return &Storage{
		users:  make(map[string]models.User),
		tokens: make(map[string]models.RefreshToken),
	}
}

func (s *Storage) CreateUser(_ context.Context, email, passwordHash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return nil, fmt.Errorf("user with email %s already exists", email)
		}
	}

	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
	}
	s.users[user.ID] = user
	return &user, nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (s *Storage) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return &user, nil
}

func (s *Storage) CreateRefreshToken(_ context.Context, token models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createRefreshTokenLocked(token)
}

func (s *Storage) GetRefreshToken(_ context.Context, value string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[value]
	if !ok {
		return nil, storage.ErrRefreshTokenNotFound
	}
	return &token, nil
}

func (s *Storage) MarkRefreshTokenUsed(_ context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markRefreshTokenUsedLocked(value)
}

func (s *Storage) RotateTokenTx(_ context.Context, value string, fn storage.RotateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[value]
	if !ok {
		return storage.ErrRefreshTokenNotFound
	}

	// The tx-scoped repository mutates staged copies; nothing becomes
	// visible unless fn succeeds.
	tx := &txRepository{parent: s, staged: make(map[string]models.RefreshToken)}
	old := token
	if err := fn(&old, tx); err != nil {
		return err
	}

	for v, t := range tx.staged {
		s.tokens[v] = t
	}
	return nil
}

func (s *Storage) createRefreshTokenLocked(token models.RefreshToken) error {
	if _, ok := s.tokens[token.Token]; ok {
		return fmt.Errorf("refresh token %s already exists", token.Token)
	}
	s.tokens[token.Token] = token
	return nil
}

func (s *Storage) markRefreshTokenUsedLocked(value string) error {
	token, ok := s.tokens[value]
	if !ok {
		return storage.ErrRefreshTokenNotFound
	}
	token.Used = true
	s.tokens[value] = token
	return nil
}

// txRepository implements storage.RefreshTokenRepository against a staging
// area so a failed RotateTokenTx leaves the parent maps untouched.
type txRepository struct {
	parent *Storage
	staged map[string]models.RefreshToken
}

func (tx *txRepository) CreateRefreshToken(_ context.Context, token models.RefreshToken) error {
	if _, ok := tx.parent.tokens[token.Token]; ok {
		return fmt.Errorf("refresh token %s already exists", token.Token)
	}
	if _, ok := tx.staged[token.Token]; ok {
		return fmt.Errorf("refresh token %s already exists", token.Token)
	}
	tx.staged[token.Token] = token
	return nil
}

func (tx *txRepository) GetRefreshToken(_ context.Context, value string) (*models.RefreshToken, error) {
	if token, ok := tx.staged[value]; ok {
		return &token, nil
	}
	token, ok := tx.parent.tokens[value]
	if !ok {
		return nil, storage.ErrRefreshTokenNotFound
	}
	return &token, nil
}

func (tx *txRepository) MarkRefreshTokenUsed(_ context.Context, value string) error {
	if token, ok := tx.staged[value]; ok {
		token.Used = true
		tx.staged[value] = token
		return nil
	}
	token, ok := tx.parent.tokens[value]
	if !ok {
		return storage.ErrRefreshTokenNotFound
	}
	token.Used = true
	tx.staged[value] = token
	return nil
}
