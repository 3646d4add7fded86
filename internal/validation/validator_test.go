package validation

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raakeshmj/socialplane/internal/apierror"
)

type signup struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type palette struct {
	Colors []string `json:"brand_colors" validate:"max=10,dive,hexcolor6"`
	Tone   string   `json:"content_tone" validate:"required,oneof=professional friendly"`
}

func TestStructReportsJSONPaths(t *testing.T) {
	err := Struct(signup{Email: "not-an-email", Password: "longenough"})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Issues(), 1)
	assert.Equal(t, "email", verr.Issues()[0].Path)
	assert.Equal(t, "Invalid email format", verr.Issues()[0].Message)
}

func TestStructFormatsAsValidationEnvelope(t *testing.T) {
	err := Struct(signup{Email: "bad", Password: "short"})

	resp, status := apierror.Format(err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apierror.CodeValidation, resp.Error.Code)

	details, ok := resp.Error.Details.([]apierror.FieldIssue)
	require.True(t, ok)
	require.Len(t, details, 2)
	assert.Equal(t, "email", details[0].Path)
	assert.Equal(t, "password", details[1].Path)
	assert.Equal(t, "password must be at least 8 characters", details[1].Message)
}

func TestStructNestedSliceIndexPath(t *testing.T) {
	err := Struct(palette{Colors: []string{"#8B5CF6", "purple"}, Tone: "friendly"})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Issues(), 1)
	assert.Equal(t, "brand_colors.1", verr.Issues()[0].Path)
	assert.Equal(t, "Invalid hex color format (e.g., #8B5CF6)", verr.Issues()[0].Message)
}

func TestStructOneOf(t *testing.T) {
	err := Struct(palette{Tone: "sarcastic"})
	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "content_tone must be one of: professional, friendly", verr.Issues()[0].Message)
}

func TestStructValid(t *testing.T) {
	assert.NoError(t, Struct(signup{Email: "owner@example.co.za", Password: "correct-horse"}))
}

func TestVar(t *testing.T) {
	assert.NoError(t, Var("asset_type", "logo", "oneof=logo banner pattern other"))

	err := Var("asset_type", "video", "oneof=logo banner pattern other")
	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "asset_type", verr.Issues()[0].Path)
	assert.Equal(t, "asset_type must be one of: logo, banner, pattern, other", verr.Issues()[0].Message)
}
