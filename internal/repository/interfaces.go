package repository

import (
	"context"
	"errors"

	"github.com/raakeshmj/socialplane/internal/db"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

type UserRepository interface {
	Get(ctx context.Context, id string) (*db.User, error)
	GetByEmail(ctx context.Context, email string) (*db.User, error)
	CreateUser(ctx context.Context, user *db.User) error
}

type APIKeyRepository interface {
	GetByHash(ctx context.Context, keyHash string) (*db.APIKey, error)
	ListByUser(ctx context.Context, userID string) ([]*db.APIKey, error)
	CreateAPIKey(ctx context.Context, apiKey *db.APIKey) error
	// InvalidateAll deactivates every key of the user and returns the hashes it touched.
	InvalidateAll(ctx context.Context, userID string) ([]string, error)
}

type BusinessProfileRepository interface {
	GetByUser(ctx context.Context, userID string) (*db.BusinessProfile, error)
	CreateProfile(ctx context.Context, profile *db.BusinessProfile) error
	UpdateProfile(ctx context.Context, profile *db.BusinessProfile) error
}

// AssetFilter narrows ListAssets. Empty fields match everything.
type AssetFilter struct {
	UserID    string
	AssetType string
	Offset    int
	Limit     int
}

type BrandAssetRepository interface {
	GetAsset(ctx context.Context, id string) (*db.BrandAsset, error)
	// ListAssets returns one page, newest first, and the total number of matches.
	ListAssets(ctx context.Context, filter AssetFilter) ([]*db.BrandAsset, int, error)
	CreateAsset(ctx context.Context, asset *db.BrandAsset) error
	DeleteAsset(ctx context.Context, id string) error
}
