package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raakeshmj/socialplane/internal/apierror"
	"github.com/raakeshmj/socialplane/internal/auth"
	"github.com/raakeshmj/socialplane/internal/cache"
	"github.com/raakeshmj/socialplane/internal/db"
	"github.com/raakeshmj/socialplane/internal/repository"
	"github.com/raakeshmj/socialplane/internal/repository/memory"
)

// countingKeys counts GetByHash calls to observe the cache.
type countingKeys struct {
	repository.APIKeyRepository
	getCalls int
}

func (c *countingKeys) GetByHash(ctx context.Context, keyHash string) (*db.APIKey, error) {
	c.getCalls++
	return c.APIKeyRepository.GetByHash(ctx, keyHash)
}

func newAuthService() (*AuthService, *countingKeys) {
	repo := memory.New()
	keys := &countingKeys{APIKeyRepository: repo}
	return NewAuthService(repo, keys, auth.NewJWTManager("secret", time.Hour), cache.NewMemoryCache[string]()), keys
}

func TestAuthService_RotateAPIKey(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()
	userID := "user-123"

	key1, err := svc.CreateAPIKey(ctx, userID, "initial-key", nil)
	require.NoError(t, err)

	verified, err := svc.VerifyAPIKey(ctx, key1.RawKey)
	require.NoError(t, err)
	assert.Equal(t, userID, verified)

	key2, err := svc.RotateAPIKey(ctx, userID)
	require.NoError(t, err)
	assert.NotEqual(t, key1.RawKey, key2.RawKey)

	_, err = svc.VerifyAPIKey(ctx, key1.RawKey)
	assert.ErrorIs(t, err, auth.ErrInvalidToken, "rotation evicts the cached key")

	verified, err = svc.VerifyAPIKey(ctx, key2.RawKey)
	require.NoError(t, err)
	assert.Equal(t, userID, verified)
}

func TestAuthService_Cache(t *testing.T) {
	svc, keys := newAuthService()
	ctx := context.Background()

	key, err := svc.CreateAPIKey(ctx, "user-cache", "cache-key", nil)
	require.NoError(t, err)

	_, err = svc.VerifyAPIKey(ctx, key.RawKey)
	require.NoError(t, err)
	assert.Equal(t, 1, keys.getCalls)

	_, err = svc.VerifyAPIKey(ctx, key.RawKey)
	require.NoError(t, err)
	assert.Equal(t, 1, keys.getCalls, "second lookup is served from cache")
}

func TestAuthService_UnknownKey(t *testing.T) {
	svc, _ := newAuthService()
	_, err := svc.VerifyAPIKey(context.Background(), "sp_unknown")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestAuthService_SignupAndLogin(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	session, err := svc.Signup(ctx, SignupRequest{Email: " ada@example.com ", Password: "lovelace1"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", session.User.Email)
	assert.NotEmpty(t, session.Token)

	claims, err := svc.JWTManager().Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, claims.UserID)

	_, err = svc.Signup(ctx, SignupRequest{Email: "ADA@example.com", Password: "lovelace2"})
	var appErr *apierror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apierror.CodeConflict, appErr.Code)

	login, err := svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "lovelace1"})
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, login.User.ID)

	_, err = svc.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "wrong-password"})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apierror.CodeAuth, appErr.Code)

	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "whatever1"})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Invalid email or password", appErr.Message)
}

func TestAuthService_AdminScope(t *testing.T) {
	repo := memory.New()
	svc := NewAuthService(repo, repo, auth.NewJWTManager("secret", time.Hour), cache.NewMemoryCache[string](),
		WithAdminEmails("Ops@Example.com"))
	ctx := context.Background()

	admin, err := svc.Signup(ctx, SignupRequest{Email: "ops@example.com", Password: "operator1"})
	require.NoError(t, err)
	claims, err := svc.JWTManager().Verify(admin.Token)
	require.NoError(t, err)
	assert.Equal(t, []string{auth.ScopeAdmin}, claims.Scopes)

	user, err := svc.Signup(ctx, SignupRequest{Email: "user@example.com", Password: "ordinary1"})
	require.NoError(t, err)
	claims, err = svc.JWTManager().Verify(user.Token)
	require.NoError(t, err)
	assert.Empty(t, claims.Scopes)
}

func TestAuthService_SignupValidation(t *testing.T) {
	svc, _ := newAuthService()

	_, err := svc.Signup(context.Background(), SignupRequest{Email: "not-an-email", Password: "short"})

	var issues apierror.IssueLister
	require.ErrorAs(t, err, &issues)
	body, status := apierror.Format(err)
	assert.Equal(t, 400, status)
	assert.Equal(t, "Validation failed", body.Error.Message)
	assert.Equal(t, []apierror.FieldIssue{
		{Path: "email", Message: "Invalid email format"},
		{Path: "password", Message: "password must be at least 8 characters"},
	}, issues.Issues())
}
