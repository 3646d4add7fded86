package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/raakeshmj/socialplane/internal/logging"
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

const (
	validationFailedMessage = "Validation failed"
	redactedMessage         = "An internal error occurred"
	unknownMessage          = "An unexpected error occurred"
)

// ErrorBody is the payload under the "error" key.
type ErrorBody struct {
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	StatusCode int    `json:"statusCode"`
	Details    any    `json:"details,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// ErrorResponse is the envelope every failed request returns.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

var development atomic.Bool

// SetDevelopment switches between development (verbose) and production (redacted) behaviour.
func SetDevelopment(dev bool) {
	development.Store(dev)
}

// Development reports the current mode.
func Development() bool {
	return development.Load()
}

// Timestamp formats t with TimestampLayout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Format maps any failure value to the error envelope and the HTTP status to send.
// The returned body's StatusCode always equals the returned status.
func Format(v any) (ErrorResponse, int) {
	return FormatAt(v, time.Now())
}

// FormatAt is Format with an explicit timestamp.
func FormatAt(v any, now time.Time) (ErrorResponse, int) {
	body := classify(v)
	body.Timestamp = Timestamp(now)
	return ErrorResponse{Error: body}, body.StatusCode
}

func classify(v any) ErrorBody {
	if issues, ok := asIssueLister(v); ok {
		details := issues.Issues()
		if details == nil {
			details = []FieldIssue{}
		}
		return ErrorBody{
			Message:    validationFailedMessage,
			Code:       CodeValidation,
			StatusCode: http.StatusBadRequest,
			Details:    details,
		}
	}

	err, isErr := v.(error)
	if !isErr || err == nil {
		return ErrorBody{Message: unknownMessage, Code: CodeUnknown, StatusCode: http.StatusInternalServerError}
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return ErrorBody{
			Message:    appErr.Message,
			Code:       appErr.Code,
			StatusCode: appErr.StatusCode,
			Details:    appErr.Details,
		}
	}

	msg := err.Error()
	if !Development() {
		msg = redactedMessage
	}
	return ErrorBody{Message: msg, Code: CodeInternal, StatusCode: http.StatusInternalServerError}
}

func asIssueLister(v any) (IssueLister, bool) {
	if err, ok := v.(error); ok && err != nil {
		var issues IssueLister
		if errors.As(err, &issues) {
			return issues, true
		}
		return nil, false
	}
	issues, ok := v.(IssueLister)
	return issues, ok
}

// LogError writes a diagnostic record for a failure. Development mode logs the full value
// and a stack trace; production logs only the message and the supplied context fields.
func LogError(ctx context.Context, v any, fields map[string]any) {
	logger := logging.Ctx(ctx)

	event := logger.Warn()
	if err, ok := v.(error); !ok || IsCritical(err) {
		event = logger.Error()
	}

	if Development() {
		event.
			Str("error_type", fmt.Sprintf("%T", v)).
			Interface("error_value", v).
			Fields(fields).
			Str("stack", string(debug.Stack())).
			Msg(describe(v))
		return
	}

	event.Interface("context", fields).Msg(describe(v))
}

func describe(v any) string {
	switch e := v.(type) {
	case nil:
		return unknownMessage
	case error:
		return e.Error()
	default:
		return fmt.Sprint(e)
	}
}
