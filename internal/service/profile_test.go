package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raakeshmj/socialplane/internal/apierror"
	"github.com/raakeshmj/socialplane/internal/repository/memory"
)

func validProfile() CreateProfileRequest {
	return CreateProfileRequest{
		BusinessName:   "Karoo Coffee Roasters",
		Industry:       "Food & Beverage",
		Description:    "Small-batch coffee roastery in the Karoo supplying cafes and home brewers.",
		TargetAudience: "Coffee lovers aged 25-45 in Gauteng",
		Services:       []string{"roasting", "subscriptions"},
		ContentTone:    "friendly",
		BrandColors:    []string{"#8B5CF6"},
	}
}

func TestProfileService_CreateGetUpdate(t *testing.T) {
	svc := NewProfileService(memory.New())
	ctx := context.Background()

	_, err := svc.Get(ctx, "user-1")
	var appErr *apierror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Business profile not found", appErr.Message)

	created, err := svc.Create(ctx, "user-1", validProfile())
	require.NoError(t, err)
	assert.Equal(t, []string{"English"}, created.PreferredLanguages, "English is the default language")
	assert.Equal(t, []string{}, created.BrandKeywords)

	_, err = svc.Create(ctx, "user-1", validProfile())
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apierror.CodeConflict, appErr.Code)

	tone := "humorous"
	langs := []string{"isiZulu", "English"}
	updated, err := svc.Update(ctx, "user-1", UpdateProfileRequest{ContentTone: &tone, PreferredLanguages: &langs})
	require.NoError(t, err)
	assert.Equal(t, "humorous", updated.ContentTone)
	assert.Equal(t, langs, updated.PreferredLanguages)
	assert.Equal(t, created.BusinessName, updated.BusinessName, "unset fields are kept")

	got, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "humorous", got.ContentTone)
}

func TestProfileService_Validation(t *testing.T) {
	svc := NewProfileService(memory.New())

	req := validProfile()
	req.Description = "Too short"
	req.BrandColors = []string{"#8B5CF6", "purple"}
	req.ContentTone = "sarcastic"

	_, err := svc.Create(context.Background(), "user-1", req)
	var issues apierror.IssueLister
	require.ErrorAs(t, err, &issues)

	paths := map[string]string{}
	for _, is := range issues.Issues() {
		paths[is.Path] = is.Message
	}
	assert.Equal(t, "description must be at least 50 characters", paths["description"])
	assert.Equal(t, "Invalid hex color format (e.g., #8B5CF6)", paths["brand_colors.1"])
	assert.True(t, strings.HasPrefix(paths["content_tone"], "content_tone must be one of: professional"))
}

func TestProfileService_UpdateValidation(t *testing.T) {
	svc := NewProfileService(memory.New())
	ctx := context.Background()
	_, err := svc.Create(ctx, "user-1", validProfile())
	require.NoError(t, err)

	langs := []string{"Klingon"}
	_, err = svc.Update(ctx, "user-1", UpdateProfileRequest{PreferredLanguages: &langs})
	var issues apierror.IssueLister
	require.ErrorAs(t, err, &issues)
	require.Len(t, issues.Issues(), 1)
	assert.Equal(t, "preferred_languages.0", issues.Issues()[0].Path)
}
