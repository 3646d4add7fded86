package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raakeshmj/socialplane/internal/apierror"
	"github.com/raakeshmj/socialplane/internal/repository/memory"
)

func newAssetService(t *testing.T, owners ...string) *AssetService {
	t.Helper()
	repo := memory.New()
	profiles := NewProfileService(repo)
	for _, id := range owners {
		_, err := profiles.Create(context.Background(), id, validProfile())
		require.NoError(t, err)
	}
	return NewAssetService(repo, repo)
}

func logo() CreateAssetRequest {
	return CreateAssetRequest{
		AssetType: "logo",
		FileName:  "logo.png",
		PublicURL: "https://cdn.example.com/logo.png",
		FileSize:  2048,
		MimeType:  "image/png",
	}
}

func TestAssetService_RequiresProfile(t *testing.T) {
	svc := newAssetService(t)

	_, err := svc.Create(context.Background(), "user-1", logo())
	var appErr *apierror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apierror.CodeNotFound, appErr.Code)
	assert.Equal(t, "Business profile not found", appErr.Message)
}

func TestAssetService_CreateListDelete(t *testing.T) {
	svc := newAssetService(t, "user-1", "user-2")
	ctx := context.Background()

	a, err := svc.Create(ctx, "user-1", logo())
	require.NoError(t, err)
	banner := logo()
	banner.AssetType = "banner"
	_, err = svc.Create(ctx, "user-1", banner)
	require.NoError(t, err)

	items, total, err := svc.List(ctx, "user-1", "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)

	items, total, err = svc.List(ctx, "user-1", "logo", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, a.ID, items[0].ID)

	_, _, err = svc.List(ctx, "user-1", "poster", 0, 10)
	var issues apierror.IssueLister
	require.ErrorAs(t, err, &issues)

	err = svc.Delete(ctx, "user-2", a.ID)
	var appErr *apierror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apierror.CodeForbidden, appErr.Code)

	require.NoError(t, svc.Delete(ctx, "user-1", a.ID))

	err = svc.Delete(ctx, "user-1", a.ID)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Brand asset not found", appErr.Message)
}

func TestAssetService_Validation(t *testing.T) {
	svc := newAssetService(t, "user-1")
	ctx := context.Background()

	tooBig := logo()
	tooBig.FileSize = 11 << 20
	_, err := svc.Create(ctx, "user-1", tooBig)
	var issues apierror.IssueLister
	require.ErrorAs(t, err, &issues)
	assert.Equal(t, []apierror.FieldIssue{{Path: "file_size", Message: "File size cannot exceed 10MB"}}, issues.Issues())

	gif := logo()
	gif.MimeType = "image/gif"
	_, err = svc.Create(ctx, "user-1", gif)
	require.ErrorAs(t, err, &issues)
	assert.Equal(t, "mime_type", issues.Issues()[0].Path)
}
