package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/raakeshmj/socialplane/internal/apierror"
	"github.com/raakeshmj/socialplane/internal/auth"
	"github.com/raakeshmj/socialplane/internal/cache"
	"github.com/raakeshmj/socialplane/internal/db"
	"github.com/raakeshmj/socialplane/internal/repository"
	"github.com/raakeshmj/socialplane/internal/validation"
)

const apiKeyCacheTTL = time.Minute

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Session struct {
	User      *db.User  `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IssuedKey is returned once, when the key is created. Only its hash is stored.
type IssuedKey struct {
	Key    *db.APIKey `json:"key"`
	RawKey string     `json:"rawKey"`
}

type AuthService struct {
	userRepo    repository.UserRepository
	apiKeyRepo  repository.APIKeyRepository
	jwtManager  *auth.JWTManager
	cache       *cache.MemoryCache[string]
	adminEmails map[string]struct{}
	now         func() time.Time
}

type AuthOption func(*AuthService)

// WithAdminEmails grants the admin scope to sessions of these accounts.
func WithAdminEmails(emails ...string) AuthOption {
	return func(s *AuthService) {
		for _, e := range emails {
			s.adminEmails[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
		}
	}
}

func NewAuthService(u repository.UserRepository, k repository.APIKeyRepository, j *auth.JWTManager, c *cache.MemoryCache[string], opts ...AuthOption) *AuthService {
	s := &AuthService{
		userRepo:    u,
		apiKeyRepo:  k,
		jwtManager:  j,
		cache:       c,
		adminEmails: map[string]struct{}{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuthService) JWTManager() *auth.JWTManager {
	return s.jwtManager
}

func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*Session, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &db.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, apierror.NewConflictError("An account with this email already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.session(user)
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apierror.NewAuthError("Invalid email or password")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, apierror.NewAuthError("Invalid email or password")
	}

	return s.session(user)
}

func (s *AuthService) session(user *db.User) (*Session, error) {
	var scopes []string
	if _, ok := s.adminEmails[strings.ToLower(user.Email)]; ok {
		scopes = append(scopes, auth.ScopeAdmin)
	}

	token, err := s.jwtManager.Generate(user.ID, user.Email, scopes)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{
		User:      user,
		Token:     token,
		ExpiresAt: s.now().UTC().Add(s.jwtManager.TokenDuration()),
	}, nil
}

// VerifyAPIKey verifies the API key and returns the UserID
func (s *AuthService) VerifyAPIKey(ctx context.Context, rawKey string) (string, error) {
	hashed := auth.HashAPIKey(rawKey)

	if userID, found := s.cache.Get(hashed); found {
		return userID, nil
	}

	apiKey, err := s.apiKeyRepo.GetByHash(ctx, hashed)
	if errors.Is(err, repository.ErrNotFound) {
		return "", auth.ErrInvalidToken
	}
	if err != nil {
		return "", err
	}

	if !apiKey.IsActive {
		return "", auth.ErrInvalidToken
	}

	s.cache.Set(hashed, apiKey.UserID, apiKeyCacheTTL)

	return apiKey.UserID, nil
}

// CreateAPIKey generates a new key for the user
func (s *AuthService) CreateAPIKey(ctx context.Context, userID, name string, scopes []string) (*IssuedKey, error) {
	if err := validation.Var("name", name, "required,max=100"); err != nil {
		return nil, err
	}

	rawKey, keyHash, prefix, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	apiKey := &db.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		KeyHash:   keyHash,
		Prefix:    prefix,
		Name:      name,
		Scopes:    scopes,
		CreatedAt: s.now().UTC(),
		IsActive:  true,
	}

	if err := s.apiKeyRepo.CreateAPIKey(ctx, apiKey); err != nil {
		return nil, fmt.Errorf("store api key: %w", err)
	}

	return &IssuedKey{Key: apiKey, RawKey: rawKey}, nil
}

// RotateAPIKey invalidates old keys and creates a new one. Revoked keys are evicted
// from the local cache right away; other instances see it when their entry expires.
func (s *AuthService) RotateAPIKey(ctx context.Context, userID string) (*IssuedKey, error) {
	hashes, err := s.apiKeyRepo.InvalidateAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("invalidate api keys: %w", err)
	}
	for _, h := range hashes {
		s.cache.Delete(h)
	}

	return s.CreateAPIKey(ctx, userID, "rotated-key", nil)
}
