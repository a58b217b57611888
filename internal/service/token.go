package service

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dkotelnikov/authd/internal/models"
	"github.com/dkotelnikov/authd/internal/util"
)

var (
	ErrTokenInvalid         = errors.New("token invalid")
	ErrInvalidSigningMethod = errors.New("invalid signing method")
)

type TokenService struct {
	JwtSecretKey []byte
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

func NewTokenService(cfg *util.TokenConfig) *TokenService {
	return &TokenService{
		JwtSecretKey: cfg.JwtSecretKey,
		accessTTL:    cfg.AccessTTL,
		refreshTTL:   cfg.RefreshTTL,
	}
}

type jwtClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// CreateAccessToken создает SHA512 signed access токен с новым JTI.
func (ts *TokenService) CreateAccessToken(userID string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(ts.accessTTL)
	claims := &jwtClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signedToken, err := token.SignedString(ts.JwtSecretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signed string: %w", err)
	}

	return signedToken, expiresAt, nil
}

// NewRefreshToken выпускает новый opaque refresh токен: 256 бит из
// crypto/rand в URL-safe base64. Значение хранится как есть и служит ключом.
func (ts *TokenService) NewRefreshToken(userID string, now time.Time) (models.RefreshToken, error) {
	raw := make([]byte, util.RefreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return models.RefreshToken{}, fmt.Errorf("failed to read random bytes: %w", err)
	}

	return models.RefreshToken{
		Token:     base64.RawURLEncoding.EncodeToString(raw),
		UserID:    userID,
		ExpiresAt: now.Add(ts.refreshTTL),
		Used:      false,
		CreatedAt: now,
	}, nil
}

// ParseAccessToken проверяет подпись и срок действия access токена
// и возвращает userID из claims.
func (ts *TokenService) ParseAccessToken(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithLeeway(util.JWTLeeWay),
		jwt.WithExpirationRequired(),
	}

	parsedToken, err := jwt.ParseWithClaims(
		token,
		&jwtClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
				return nil, ErrInvalidSigningMethod
			}
			return ts.JwtSecretKey, nil
		},
		opts...,
	)
	if err != nil {
		return "", fmt.Errorf("parse token claims: %w", err)
	}

	if parsedToken == nil || !parsedToken.Valid {
		return "", ErrTokenInvalid
	}

	claims, ok := parsedToken.Claims.(*jwtClaims)
	if !ok || claims.UserID == "" {
		return "", ErrTokenInvalid
	}

	return claims.UserID, nil
}
