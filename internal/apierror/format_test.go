package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type issueErr struct{ issues []FieldIssue }

func (e issueErr) Error() string        { return "schema" }
func (e issueErr) Issues() []FieldIssue { return e.issues }

func withDevelopment(t *testing.T, dev bool) {
	t.Helper()
	prev := Development()
	SetDevelopment(dev)
	t.Cleanup(func() { SetDevelopment(prev) })
}

func TestFormatNotFound(t *testing.T) {
	resp, status := Format(NewNotFoundError("Business profile"))

	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Business profile not found", resp.Error.Message)
	assert.Equal(t, CodeNotFound, resp.Error.Code)
	assert.Equal(t, http.StatusNotFound, resp.Error.StatusCode)
	assert.Nil(t, resp.Error.Details)
	assert.NotEmpty(t, resp.Error.Timestamp)
}

func TestFormatSchemaValidation(t *testing.T) {
	err := issueErr{issues: []FieldIssue{
		{Path: "email", Message: "Invalid email format"},
		{Path: "brand_colors.1", Message: "Invalid hex color format (e.g., #8B5CF6)"},
	}}

	resp, status := Format(fmt.Errorf("decode body: %w", err))

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", resp.Error.Message)
	assert.Equal(t, CodeValidation, resp.Error.Code)
	require.IsType(t, []FieldIssue{}, resp.Error.Details)
	details := resp.Error.Details.([]FieldIssue)
	require.Len(t, details, 2)
	assert.Equal(t, "email", details[0].Path)
	assert.Equal(t, "brand_colors.1", details[1].Path)
}

func TestFormatTypedErrorPassesThrough(t *testing.T) {
	cases := []struct {
		name   string
		err    *Error
		status int
		code   string
	}{
		{"auth", NewAuthError(""), 401, CodeAuth},
		{"forbidden", NewForbiddenError(""), 403, CodeForbidden},
		{"conflict", NewConflictError("Business profile already exists for this user"), 409, CodeConflict},
		{"rate limit", NewRateLimitError("", 42), 429, CodeRateLimit},
		{"identity", NewIdentityRequiredError(), 429, CodeIdentityRequired},
		{"external", NewExternalServiceError("gemini", ""), 502, CodeExternalService},
		{"custom", New(400, "MISSING_FILE", "No file provided", nil), 400, "MISSING_FILE"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, status := Format(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.status, resp.Error.StatusCode)
			assert.Equal(t, tc.code, resp.Error.Code)
			assert.Equal(t, tc.err.Message, resp.Error.Message)
			assert.Equal(t, tc.err.Details, resp.Error.Details)
		})
	}
}

func TestFormatDefaultMessages(t *testing.T) {
	assert.Equal(t, "Authentication required", NewAuthError("").Message)
	assert.Equal(t, "Rate limit exceeded", NewRateLimitError("", 1).Message)
	assert.Equal(t, "External service error: facebook", NewExternalServiceError("facebook", "").Message)
	assert.Equal(t, "token expired", NewAuthError("token expired").Message)
	assert.Equal(t, ServiceDetails{Service: "facebook"}, NewExternalServiceError("facebook", "").Details)
	assert.Equal(t, RetryDetails{RetryAfter: 7}, NewRateLimitError("", 7).Details)
}

func TestFormatGenericError(t *testing.T) {
	t.Run("development passes message through", func(t *testing.T) {
		withDevelopment(t, true)
		resp, status := Format(errors.New("pq: connection refused"))
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, CodeInternal, resp.Error.Code)
		assert.Equal(t, "pq: connection refused", resp.Error.Message)
	})

	t.Run("production redacts message", func(t *testing.T) {
		withDevelopment(t, false)
		resp, status := Format(errors.New("pq: connection refused"))
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, CodeInternal, resp.Error.Code)
		assert.Equal(t, "An internal error occurred", resp.Error.Message)
	})
}

func TestFormatUnknownValue(t *testing.T) {
	for _, v := range []any{"boom", 42, nil, struct{}{}} {
		resp, status := Format(v)
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, CodeUnknown, resp.Error.Code)
		assert.Equal(t, "An unexpected error occurred", resp.Error.Message)
	}
}

func TestFormatIsIdempotentApartFromTimestamp(t *testing.T) {
	err := NewRateLimitError("", 30)

	first, _ := FormatAt(err, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	second, _ := FormatAt(err, time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC))
	assert.NotEqual(t, first.Error.Timestamp, second.Error.Timestamp)

	first.Error.Timestamp, second.Error.Timestamp = "", ""
	a, errA := json.Marshal(first)
	b, errB := json.Marshal(second)
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, a, b)
}

func TestTimestampLayout(t *testing.T) {
	ts := Timestamp(time.Date(2025, 3, 4, 5, 6, 7, 891_000_000, time.FixedZone("SAST", 2*3600)))
	assert.Equal(t, "2025-03-04T03:06:07.891Z", ts)
}

func TestClassification(t *testing.T) {
	assert.True(t, IsOperational(NewNotFoundError("x")))
	assert.True(t, IsOperational(fmt.Errorf("wrap: %w", NewConflictError("dup"))))
	assert.True(t, IsOperational(issueErr{}))
	assert.False(t, IsOperational(errors.New("plain")))
	assert.False(t, IsOperational(nil))

	assert.True(t, IsCritical(errors.New("plain")))
	assert.True(t, IsCritical(NewExternalServiceError("gemini", "")))
	assert.True(t, IsCritical(New(500, "USER_CREATION_FAILED", "Failed to create user", nil)))
	assert.False(t, IsCritical(NewValidationError("bad", nil)))
	assert.False(t, IsCritical(NewRateLimitError("", 3)))
	assert.False(t, IsCritical(issueErr{}))
}

func TestEnvelopeJSONShape(t *testing.T) {
	resp, _ := FormatAt(NewNotFoundError("Brand asset"), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":{"message":"Brand asset not found","code":"NOT_FOUND","statusCode":404,"timestamp":"2025-01-01T00:00:00.000Z"}}`, string(raw))
}
