package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dkotelnikov/authd/internal/models"
	"github.com/dkotelnikov/authd/internal/storage/memory"
	"github.com/dkotelnikov/authd/internal/util"
)

// --- helpers ---

func newTestTokenService() *TokenService {
	return NewTokenService(&util.TokenConfig{
		JwtSecretKey: []byte("test-secret"),
		AccessTTL:    time.Minute,
		RefreshTTL:   time.Hour,
	})
}

func newTestAuthService(t *testing.T) (*AuthService, *memory.Storage, *BcryptVerifier) {
	t.Helper()

	store := memory.NewStorage()
	verifier, err := NewBcryptVerifier()
	require.NoError(t, err)

	svc := NewAuthService(newTestTokenService(), verifier, store, nil, zap.NewNop().Sugar())
	return svc, store, verifier
}

func createTestUser(t *testing.T, store *memory.Storage, verifier *BcryptVerifier, email, password string) *models.User {
	t.Helper()

	hash, err := verifier.Hash(password)
	require.NoError(t, err)

	user, err := store.CreateUser(context.Background(), email, hash)
	require.NoError(t, err)
	return user
}

type recordingVerifier struct {
	verifyResult bool
	verifyCalls  int
	dummyCalls   int
}

func (v *recordingVerifier) Verify(_, _ string) bool { v.verifyCalls++; return v.verifyResult }
func (v *recordingVerifier) CompareDummy(_ string)   { v.dummyCalls++ }

type replayRecorder struct {
	mu      sync.Mutex
	userIDs []string
}

func (r *replayRecorder) NotifyTokenReuse(_ context.Context, userID, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userIDs = append(r.userIDs, userID)
}

// failingSigner mints refresh tokens normally but cannot sign access tokens.
type failingSigner struct {
	*TokenService
}

func (f *failingSigner) CreateAccessToken(string, time.Time) (string, time.Time, error) {
	return "", time.Time{}, errors.New("signer down")
}

// --- login ---

func TestLoginSuccess(t *testing.T) {
	svc, store, verifier := newTestAuthService(t)
	user := createTestUser(t, store, verifier, "u1@example.com", "correct horse")

	pair, err := svc.Login(context.Background(), "u1@example.com", "correct horse")
	require.NoError(t, err)

	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.True(t, pair.AccessExpiresAt.After(time.Now()))
	assert.True(t, pair.RefreshExpiresAt.After(time.Now()))

	stored, err := store.GetRefreshToken(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.UserID)
	assert.False(t, stored.Used)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, store, verifier := newTestAuthService(t)
	createTestUser(t, store, verifier, "u1@example.com", "correct horse")

	pair, err := svc.Login(context.Background(), "u1@example.com", "battery staple")
	assert.Nil(t, pair)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	pair, err := svc.Login(context.Background(), "nobody@example.com", "whatever")
	assert.Nil(t, pair)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// Обе ветки отказа должны быть неотличимы: для неизвестного email
// выполняется dummy-проверка вместо настоящей.
func TestLoginUnknownEmailBurnsDummyCompare(t *testing.T) {
	store := memory.NewStorage()
	verifier := &recordingVerifier{}
	svc := NewAuthService(newTestTokenService(), verifier, store, nil, zap.NewNop().Sugar())

	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, verifier.dummyCalls)
	assert.Equal(t, 0, verifier.verifyCalls)
}

func TestLoginKnownEmailSkipsDummyCompare(t *testing.T) {
	store := memory.NewStorage()
	_, err := store.CreateUser(context.Background(), "u1@example.com", "irrelevant-hash")
	require.NoError(t, err)

	verifier := &recordingVerifier{verifyResult: false}
	svc := NewAuthService(newTestTokenService(), verifier, store, nil, zap.NewNop().Sugar())

	_, err = svc.Login(context.Background(), "u1@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, verifier.verifyCalls)
	assert.Equal(t, 0, verifier.dummyCalls)
}

// --- rotation state machine ---

func TestRefreshRoundTrip(t *testing.T) {
	svc, store, verifier := newTestAuthService(t)
	createTestUser(t, store, verifier, "u1@example.com", "correct horse")

	first, err := svc.Login(context.Background(), "u1@example.com", "correct horse")
	require.NoError(t, err)

	second, err := svc.Refresh(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEmpty(t, second.AccessToken)

	old, err := store.GetRefreshToken(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	assert.True(t, old.Used)

	// Rotating the consumed value again is the replay signal.
	_, err = svc.Refresh(context.Background(), first.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenUsed)

	// The freshly minted value is still good.
	third, err := svc.Refresh(context.Background(), second.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, second.RefreshToken, third.RefreshToken)
}

func TestRefreshUnknownToken(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	pair, err := svc.Refresh(context.Background(), "not-a-real-token")
	assert.Nil(t, pair)
	assert.ErrorIs(t, err, ErrRefreshTokenNotFound)
}

func TestRefreshExpiredToken(t *testing.T) {
	svc, store, verifier := newTestAuthService(t)
	user := createTestUser(t, store, verifier, "u1@example.com", "correct horse")

	expired := models.RefreshToken{
		Token:     "expired-token",
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, store.CreateRefreshToken(context.Background(), expired))

	_, err := svc.Refresh(context.Background(), "expired-token")
	assert.ErrorIs(t, err, ErrRefreshTokenExpired)

	// Terminal failure, no mutation.
	stored, err := store.GetRefreshToken(context.Background(), "expired-token")
	require.NoError(t, err)
	assert.False(t, stored.Used)
}

// Срок проверяется раньше used: протухший использованный токен
// отвечает expired, не already used.
func TestRefreshExpiredTakesPriorityOverUsed(t *testing.T) {
	svc, store, verifier := newTestAuthService(t)
	user := createTestUser(t, store, verifier, "u1@example.com", "correct horse")

	token := models.RefreshToken{
		Token:     "expired-and-used",
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(-time.Minute),
		Used:      true,
	}
	require.NoError(t, store.CreateRefreshToken(context.Background(), token))

	_, err := svc.Refresh(context.Background(), "expired-and-used")
	assert.ErrorIs(t, err, ErrRefreshTokenExpired)
}

func TestRefreshReplayNotifies(t *testing.T) {
	store := memory.NewStorage()
	verifier, err := NewBcryptVerifier()
	require.NoError(t, err)
	recorder := &replayRecorder{}
	svc := NewAuthService(newTestTokenService(), verifier, store, recorder, zap.NewNop().Sugar())

	used := models.RefreshToken{
		Token:     "already-used",
		UserID:    "u1",
		ExpiresAt: time.Now().Add(time.Hour),
		Used:      true,
	}
	require.NoError(t, store.CreateRefreshToken(context.Background(), used))

	_, err = svc.Refresh(context.Background(), "already-used")
	assert.ErrorIs(t, err, ErrRefreshTokenUsed)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Equal(t, []string{"u1"}, recorder.userIDs)
}

// Signer падает внутри транзакции ротации: вся ротация откатывается,
// старый токен остается валидным.
func TestRefreshSignerFailureRollsBack(t *testing.T) {
	store := memory.NewStorage()
	verifier, err := NewBcryptVerifier()
	require.NoError(t, err)
	signer := &failingSigner{TokenService: newTestTokenService()}
	svc := NewAuthService(signer, verifier, store, nil, zap.NewNop().Sugar())

	token := models.RefreshToken{
		Token:     "still-valid",
		UserID:    "u1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, store.CreateRefreshToken(context.Background(), token))

	_, err = svc.Refresh(context.Background(), "still-valid")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	stored, err := store.GetRefreshToken(context.Background(), "still-valid")
	require.NoError(t, err)
	assert.False(t, stored.Used)
}

func TestRefreshConcurrentRotationSingleWinner(t *testing.T) {
	svc, store, verifier := newTestAuthService(t)
	createTestUser(t, store, verifier, "u1@example.com", "correct horse")

	first, err := svc.Login(context.Background(), "u1@example.com", "correct horse")
	require.NoError(t, err)

	const workers = 8
	results := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refresh(context.Background(), first.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, replays int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrRefreshTokenUsed):
			replays++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, replays)
}

func TestIssueTokensPersistsRefreshToken(t *testing.T) {
	svc, store, verifier := newTestAuthService(t)
	user := createTestUser(t, store, verifier, "u1@example.com", "correct horse")

	pair, err := svc.IssueTokens(context.Background(), user.ID)
	require.NoError(t, err)

	stored, err := store.GetRefreshToken(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.UserID)
	assert.WithinDuration(t, pair.RefreshExpiresAt, stored.ExpiresAt, time.Second)
}
