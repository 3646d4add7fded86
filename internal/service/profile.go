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

// CreateProfileRequest limits preferred languages to the eleven South African official languages.
type CreateProfileRequest struct {
	BusinessName       string   `json:"business_name" validate:"required,min=2,max=100"`
	Industry           string   `json:"industry" validate:"required,min=2,max=50"`
	Description        string   `json:"description" validate:"required,min=50,max=500"`
	TargetAudience     string   `json:"target_audience" validate:"required,min=20,max=300"`
	Services           []string `json:"services" validate:"required,min=1,max=20,dive,required"`
	PreferredLanguages []string `json:"preferred_languages" validate:"omitempty,dive,oneof=Afrikaans English isiNdebele isiXhosa isiZulu Sesotho Setswana Sepedi siSwati Tshivenda Xitsonga"`
	ContentTone        string   `json:"content_tone" validate:"required,oneof=professional friendly humorous inspirational"`
	BrandColors        []string `json:"brand_colors" validate:"max=10,dive,hexcolor6"`
	BrandKeywords      []string `json:"brand_keywords" validate:"max=20,dive,required"`
}

// UpdateProfileRequest is a partial update. Nil fields are left unchanged.
type UpdateProfileRequest struct {
	BusinessName       *string   `json:"business_name" validate:"omitnil,min=2,max=100"`
	Industry           *string   `json:"industry" validate:"omitnil,min=2,max=50"`
	Description        *string   `json:"description" validate:"omitnil,min=50,max=500"`
	TargetAudience     *string   `json:"target_audience" validate:"omitnil,min=20,max=300"`
	Services           *[]string `json:"services" validate:"omitnil,min=1,max=20,dive,required"`
	PreferredLanguages *[]string `json:"preferred_languages" validate:"omitnil,min=1,dive,oneof=Afrikaans English isiNdebele isiXhosa isiZulu Sesotho Setswana Sepedi siSwati Tshivenda Xitsonga"`
	ContentTone        *string   `json:"content_tone" validate:"omitnil,oneof=professional friendly humorous inspirational"`
	BrandColors        *[]string `json:"brand_colors" validate:"omitnil,max=10,dive,hexcolor6"`
	BrandKeywords      *[]string `json:"brand_keywords" validate:"omitnil,max=20,dive,required"`
}

type ProfileService struct {
	repo repository.BusinessProfileRepository
	now  func() time.Time
}

func NewProfileService(repo repository.BusinessProfileRepository) *ProfileService {
	return &ProfileService{repo: repo, now: time.Now}
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*db.BusinessProfile, error) {
	p, err := s.repo.GetByUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apierror.NewNotFoundError("Business profile")
	}
	if err != nil {
		return nil, fmt.Errorf("load business profile: %w", err)
	}
	return p, nil
}

func (s *ProfileService) Create(ctx context.Context, userID string, req CreateProfileRequest) (*db.BusinessProfile, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	languages := req.PreferredLanguages
	if len(languages) == 0 {
		languages = []string{"English"}
	}

	now := s.now().UTC()
	p := &db.BusinessProfile{
		ID:                 uuid.NewString(),
		UserID:             userID,
		BusinessName:       req.BusinessName,
		Industry:           req.Industry,
		Description:        req.Description,
		TargetAudience:     req.TargetAudience,
		Services:           req.Services,
		PreferredLanguages: languages,
		ContentTone:        req.ContentTone,
		BrandColors:        nonNil(req.BrandColors),
		BrandKeywords:      nonNil(req.BrandKeywords),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repo.CreateProfile(ctx, p); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, apierror.NewConflictError("Business profile already exists")
		}
		return nil, fmt.Errorf("create business profile: %w", err)
	}
	return p, nil
}

func (s *ProfileService) Update(ctx context.Context, userID string, req UpdateProfileRequest) (*db.BusinessProfile, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	setIf(&p.BusinessName, req.BusinessName)
	setIf(&p.Industry, req.Industry)
	setIf(&p.Description, req.Description)
	setIf(&p.TargetAudience, req.TargetAudience)
	setIf(&p.Services, req.Services)
	setIf(&p.PreferredLanguages, req.PreferredLanguages)
	setIf(&p.ContentTone, req.ContentTone)
	setIf(&p.BrandColors, req.BrandColors)
	setIf(&p.BrandKeywords, req.BrandKeywords)
	p.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateProfile(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apierror.NewNotFoundError("Business profile")
		}
		return nil, fmt.Errorf("update business profile: %w", err)
	}
	return p, nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
