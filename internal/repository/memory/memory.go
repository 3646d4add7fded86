package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/raakeshmj/socialplane/internal/db"
	"github.com/raakeshmj/socialplane/internal/repository"
)

// MemoryRepository keeps every entity in maps. Reads return copies.
type MemoryRepository struct {
	mu       sync.RWMutex
	users    map[string]*db.User
	emails   map[string]string     // lower-cased email -> user id
	apiKeys  map[string]*db.APIKey // keyHash -> APIKey
	profiles map[string]*db.BusinessProfile
	assets   map[string]*db.BrandAsset
}

func New() *MemoryRepository {
	return &MemoryRepository{
		users:    make(map[string]*db.User),
		emails:   make(map[string]string),
		apiKeys:  make(map[string]*db.APIKey),
		profiles: make(map[string]*db.BusinessProfile),
		assets:   make(map[string]*db.BrandAsset),
	}
}

// User Repo Implementation
func (r *MemoryRepository) Get(ctx context.Context, id string) (*db.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, repository.ErrNotFound
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.emails[strings.ToLower(email)]; ok {
		c := *r.users[id]
		return &c, nil
	}
	return nil, repository.ErrNotFound
}

func (r *MemoryRepository) CreateUser(ctx context.Context, user *db.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := strings.ToLower(user.Email)
	if _, ok := r.emails[email]; ok {
		return repository.ErrAlreadyExists
	}
	if _, ok := r.users[user.ID]; ok {
		return repository.ErrAlreadyExists
	}
	c := *user
	r.users[user.ID] = &c
	r.emails[email] = user.ID
	return nil
}

// APIKey Repo Implementation
func (r *MemoryRepository) GetByHash(ctx context.Context, keyHash string) (*db.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if k, ok := r.apiKeys[keyHash]; ok {
		c := *k
		return &c, nil
	}
	return nil, repository.ErrNotFound
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID string) ([]*db.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []*db.APIKey
	for _, k := range r.apiKeys {
		if k.UserID == userID {
			c := *k
			list = append(list, &c)
		}
	}
	slices.SortFunc(list, func(a, b *db.APIKey) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return list, nil
}

func (r *MemoryRepository) CreateAPIKey(ctx context.Context, apiKey *db.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apiKeys[apiKey.KeyHash]; ok {
		return repository.ErrAlreadyExists
	}
	c := *apiKey
	r.apiKeys[apiKey.KeyHash] = &c
	return nil
}

func (r *MemoryRepository) InvalidateAll(ctx context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var hashes []string
	for h, k := range r.apiKeys {
		if k.UserID == userID && k.IsActive {
			k.IsActive = false
			hashes = append(hashes, h)
		}
	}
	return hashes, nil
}

// Business profile implementation
func (r *MemoryRepository) GetByUser(ctx context.Context, userID string) (*db.BusinessProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.profiles[userID]; ok {
		return cloneProfile(p), nil
	}
	return nil, repository.ErrNotFound
}

func (r *MemoryRepository) CreateProfile(ctx context.Context, profile *db.BusinessProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[profile.UserID]; ok {
		return repository.ErrAlreadyExists
	}
	r.profiles[profile.UserID] = cloneProfile(profile)
	return nil
}

func (r *MemoryRepository) UpdateProfile(ctx context.Context, profile *db.BusinessProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[profile.UserID]; !ok {
		return repository.ErrNotFound
	}
	r.profiles[profile.UserID] = cloneProfile(profile)
	return nil
}

func cloneProfile(p *db.BusinessProfile) *db.BusinessProfile {
	c := *p
	c.Services = slices.Clone(p.Services)
	c.PreferredLanguages = slices.Clone(p.PreferredLanguages)
	c.BrandColors = slices.Clone(p.BrandColors)
	c.BrandKeywords = slices.Clone(p.BrandKeywords)
	return &c
}

// Brand asset implementation
func (r *MemoryRepository) GetAsset(ctx context.Context, id string) (*db.BrandAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.assets[id]; ok {
		c := *a
		return &c, nil
	}
	return nil, repository.ErrNotFound
}

func (r *MemoryRepository) ListAssets(ctx context.Context, f repository.AssetFilter) ([]*db.BrandAsset, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*db.BrandAsset
	for _, a := range r.assets {
		if f.UserID != "" && a.UserID != f.UserID {
			continue
		}
		if f.AssetType != "" && a.AssetType != f.AssetType {
			continue
		}
		c := *a
		matched = append(matched, &c)
	}
	slices.SortFunc(matched, func(a, b *db.BrandAsset) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	total := len(matched)
	start := min(max(f.Offset, 0), total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return matched[start:end], total, nil
}

func (r *MemoryRepository) CreateAsset(ctx context.Context, asset *db.BrandAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assets[asset.ID]; ok {
		return repository.ErrAlreadyExists
	}
	c := *asset
	r.assets[asset.ID] = &c
	return nil
}

func (r *MemoryRepository) DeleteAsset(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assets[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.assets, id)
	return nil
}

// Interface check
var (
	_ repository.UserRepository            = (*MemoryRepository)(nil)
	_ repository.APIKeyRepository          = (*MemoryRepository)(nil)
	_ repository.BusinessProfileRepository = (*MemoryRepository)(nil)
	_ repository.BrandAssetRepository      = (*MemoryRepository)(nil)
)
