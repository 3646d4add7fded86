package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raakeshmj/socialplane/internal/apierror"
	"github.com/raakeshmj/socialplane/internal/db"
	"github.com/raakeshmj/socialplane/internal/repository"
	"github.com/raakeshmj/socialplane/internal/validation"
)

const (
	maxAssetSize  = 10 << 20
	assetTypesTag = "oneof=logo banner pattern other"
)

// CreateAssetRequest registers an uploaded file. The binary itself is stored by the
// client; only its metadata is kept here.
type CreateAssetRequest struct {
	AssetType string `json:"asset_type" validate:"required,oneof=logo banner pattern other"`
	FileName  string `json:"file_name" validate:"required,max=255"`
	PublicURL string `json:"public_url" validate:"required,url"`
	FileSize  int64  `json:"file_size" validate:"required,gt=0"`
	MimeType  string `json:"mime_type" validate:"required,oneof=image/jpeg image/png image/svg+xml"`
	IsPrimary bool   `json:"is_primary"`
}

type AssetService struct {
	assets   repository.BrandAssetRepository
	profiles repository.BusinessProfileRepository
	now      func() time.Time
}

func NewAssetService(assets repository.BrandAssetRepository, profiles repository.BusinessProfileRepository) *AssetService {
	return &AssetService{assets: assets, profiles: profiles, now: time.Now}
}

// List returns one page of the caller's assets, optionally of a single type.
func (s *AssetService) List(ctx context.Context, userID, assetType string, offset, limit int) ([]*db.BrandAsset, int, error) {
	if assetType != "" {
		if err := validation.Var("asset_type", assetType, assetTypesTag); err != nil {
			return nil, 0, err
		}
	}
	if _, err := s.profile(ctx, userID); err != nil {
		return nil, 0, err
	}

	items, total, err := s.assets.ListAssets(ctx, repository.AssetFilter{
		UserID:    userID,
		AssetType: assetType,
		Offset:    offset,
		Limit:     limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list brand assets: %w", err)
	}
	return items, total, nil
}

func (s *AssetService) Create(ctx context.Context, userID string, req CreateAssetRequest) (*db.BrandAsset, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if req.FileSize > maxAssetSize {
		return nil, validation.NewError(apierror.FieldIssue{Path: "file_size", Message: "File size cannot exceed 10MB"})
	}

	profile, err := s.profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	asset := &db.BrandAsset{
		ID:                uuid.NewString(),
		UserID:            userID,
		BusinessProfileID: profile.ID,
		AssetType:         req.AssetType,
		FileName:          req.FileName,
		PublicURL:         req.PublicURL,
		FileSize:          req.FileSize,
		MimeType:          req.MimeType,
		IsPrimary:         req.IsPrimary,
		CreatedAt:         s.now().UTC(),
	}
	if err := s.assets.CreateAsset(ctx, asset); err != nil {
		return nil, fmt.Errorf("create brand asset: %w", err)
	}
	return asset, nil
}

// Delete removes an asset owned by userID. Someone else's asset is Forbidden.
func (s *AssetService) Delete(ctx context.Context, userID, assetID string) error {
	asset, err := s.assets.GetAsset(ctx, assetID)
	if errors.Is(err, repository.ErrNotFound) {
		return apierror.NewNotFoundError("Brand asset")
	}
	if err != nil {
		return fmt.Errorf("load brand asset: %w", err)
	}
	if asset.UserID != userID {
		return apierror.NewForbiddenError("")
	}

	if err := s.assets.DeleteAsset(ctx, assetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apierror.NewNotFoundError("Brand asset")
		}
		return fmt.Errorf("delete brand asset: %w", err)
	}
	return nil
}

func (s *AssetService) profile(ctx context.Context, userID string) (*db.BusinessProfile, error) {
	p, err := s.profiles.GetByUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apierror.NewNotFoundError("Business profile")
	}
	if err != nil {
		return nil, fmt.Errorf("load business profile: %w", err)
	}
	return p, nil
}
