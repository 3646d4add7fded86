package db

import (
	"time"
)

type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type APIKey struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	KeyHash   string    `json:"-" db:"key_hash"`    // SHA256 hash of the raw key
	Prefix    string    `json:"prefix" db:"prefix"` // First few chars clear for identification
	Name      string    `json:"name" db:"name"`
	Scopes    []string  `json:"scopes" db:"scopes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	IsActive  bool      `json:"is_active" db:"is_active"`
}

// BusinessProfile is the brand context content is generated from. One per user.
type BusinessProfile struct {
	ID                 string    `json:"id" db:"id"`
	UserID             string    `json:"user_id" db:"user_id"`
	BusinessName       string    `json:"business_name" db:"business_name"`
	Industry           string    `json:"industry" db:"industry"`
	Description        string    `json:"description" db:"description"`
	TargetAudience     string    `json:"target_audience" db:"target_audience"`
	Services           []string  `json:"services" db:"services"`
	PreferredLanguages []string  `json:"preferred_languages" db:"preferred_languages"`
	ContentTone        string    `json:"content_tone" db:"content_tone"`
	BrandColors        []string  `json:"brand_colors" db:"brand_colors"`
	BrandKeywords      []string  `json:"brand_keywords" db:"brand_keywords"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// BrandAsset is a registered logo, banner or pattern. The binary lives elsewhere.
type BrandAsset struct {
	ID                string    `json:"id" db:"id"`
	UserID            string    `json:"user_id" db:"user_id"`
	BusinessProfileID string    `json:"business_profile_id" db:"business_profile_id"`
	AssetType         string    `json:"asset_type" db:"asset_type"`
	FileName          string    `json:"file_name" db:"file_name"`
	PublicURL         string    `json:"public_url" db:"public_url"`
	FileSize          int64     `json:"file_size" db:"file_size"`
	MimeType          string    `json:"mime_type" db:"mime_type"`
	IsPrimary         bool      `json:"is_primary" db:"is_primary"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
