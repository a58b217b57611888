package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dkotelnikov/authd/internal/models"
	"github.com/dkotelnikov/authd/internal/storage"
)

var (
	// ErrInvalidCredentials covers both "no such user" and "wrong password".
	// The two branches must stay indistinguishable for the caller.
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
	ErrRefreshTokenUsed     = errors.New("refresh token already used")

	// ErrStoreUnavailable wraps infrastructure failures. The failed call left
	// no partial state behind, so retrying it verbatim is safe.
	ErrStoreUnavailable = errors.New("storage temporarily unavailable")
)

const reuseTokenPrefixLen = 8

type AuthService struct {
	tokens    TokenMinter
	passwords PasswordVerifier
	storage   storage.Storage
	replays   ReplayNotifier
	log       *zap.SugaredLogger
}

func NewAuthService(
	tokens TokenMinter,
	passwords PasswordVerifier,
	st storage.Storage,
	replays ReplayNotifier,
	log *zap.SugaredLogger,
) *AuthService {
	return &AuthService{
		tokens:    tokens,
		passwords: passwords,
		storage:   st,
		replays:   replays,
		log:       log,
	}
}

// Login проверяет пару email+пароль и выпускает новую пару токенов.
// Для несуществующего email сжигается такая же bcrypt-проверка по dummy
// хешу, чтобы по времени ответа нельзя было перечислять аккаунты.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.TokenPair, error) {
	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.passwords.CompareDummy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, s.transient("get user by email", err)
	}

	if !s.passwords.Verify(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return s.IssueTokens(ctx, user.ID)
}

// IssueTokens выпускает начальную пару токенов для пользователя.
// Access токен подписывается до вставки refresh строки: упавший signer
// не оставляет осиротевших строк в базе.
func (s *AuthService) IssueTokens(ctx context.Context, userID string) (*models.TokenPair, error) {
	now := time.Now()

	accessToken, accessExpiresAt, err := s.tokens.CreateAccessToken(userID, now)
	if err != nil {
		return nil, s.transient("create access token", err)
	}

	refreshToken, err := s.tokens.NewRefreshToken(userID, now)
	if err != nil {
		return nil, s.transient("mint refresh token", err)
	}

	if err := s.storage.CreateRefreshToken(ctx, refreshToken); err != nil {
		return nil, s.transient("persist refresh token", err)
	}

	return &models.TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken.Token,
		RefreshExpiresAt: refreshToken.ExpiresAt,
	}, nil
}

// Refresh ротирует refresh токен в одной транзакции: строка блокируется,
// старый токен помечается used, вставляется новый, подписывается access
// токен. Любая ошибка внутри откатывает все целиком.
//
// Проверка срока идет раньше проверки used: протухший и использованный
// токен отвечает "expired", не "already used".
func (s *AuthService) Refresh(ctx context.Context, presented string) (*models.TokenPair, error) {
	now := time.Now()

	var pair *models.TokenPair
	var reuseUserID string

	err := s.storage.RotateTokenTx(ctx, presented, func(old *models.RefreshToken, tokens storage.RefreshTokenRepository) error {
		if now.After(old.ExpiresAt) {
			return ErrRefreshTokenExpired
		}
		if old.Used {
			reuseUserID = old.UserID
			return ErrRefreshTokenUsed
		}

		if err := tokens.MarkRefreshTokenUsed(ctx, old.Token); err != nil {
			return fmt.Errorf("mark refresh token used: %w", err)
		}

		next, err := s.tokens.NewRefreshToken(old.UserID, now)
		if err != nil {
			return fmt.Errorf("mint refresh token: %w", err)
		}
		if err := tokens.CreateRefreshToken(ctx, next); err != nil {
			return fmt.Errorf("persist refresh token: %w", err)
		}

		accessToken, accessExpiresAt, err := s.tokens.CreateAccessToken(old.UserID, now)
		if err != nil {
			return fmt.Errorf("create access token: %w", err)
		}

		pair = &models.TokenPair{
			AccessToken:      accessToken,
			AccessExpiresAt:  accessExpiresAt,
			RefreshToken:     next.Token,
			RefreshExpiresAt: next.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrRefreshTokenNotFound):
			return nil, ErrRefreshTokenNotFound
		case errors.Is(err, ErrRefreshTokenExpired):
			return nil, ErrRefreshTokenExpired
		case errors.Is(err, ErrRefreshTokenUsed):
			s.log.Warnw("refresh token replay detected", "user_id", reuseUserID)
			if s.replays != nil {
				s.replays.NotifyTokenReuse(ctx, reuseUserID, tokenPrefix(presented))
			}
			return nil, ErrRefreshTokenUsed
		default:
			return nil, s.transient("rotate refresh token", err)
		}
	}

	return pair, nil
}

// transient логирует причину и возвращает наружу только retriable ошибку,
// не раскрывая деталей стораджа или signer-а.
func (s *AuthService) transient(op string, err error) error {
	s.log.Errorw(op, "error", err)
	return fmt.Errorf("%w: %s", ErrStoreUnavailable, op)
}

func tokenPrefix(token string) string {
	if len(token) <= reuseTokenPrefixLen {
		return token
	}
	return token[:reuseTokenPrefixLen]
}
