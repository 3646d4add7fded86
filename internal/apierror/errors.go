// Package apierror defines the application error taxonomy and the single formatter that
// turns any failure into the canonical error envelope.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindAuth            Kind = "auth"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindRateLimit       Kind = "rate_limit"
	KindConflict        Kind = "conflict"
	KindExternalService Kind = "external_service"
	KindInternal        Kind = "internal"
	KindUnknown         Kind = "unknown"
)

// Machine-readable codes carried in the envelope.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeAuth             = "AUTH_ERROR"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeRateLimit        = "RATE_LIMIT_EXCEEDED"
	CodeIdentityRequired = "RATE_LIMIT_IDENTITY_REQUIRED"
	CodeLimiterDown      = "RATE_LIMITER_UNAVAILABLE"
	CodeExternalService  = "EXTERNAL_SERVICE_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
	CodeUnknown          = "UNKNOWN_ERROR"
)

// Error is a typed application error. Its message is always safe to show to clients.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Code       string
	Details    any
	// RetryAfter is set for KindRateLimit, in seconds.
	RetryAfter int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d %s)", e.Message, e.StatusCode, e.Code)
}

// New builds an application error with an explicit status and code.
func New(status int, code, message string, details any) *Error {
	return &Error{
		Kind:       kindForStatus(status),
		Message:    message,
		StatusCode: status,
		Code:       code,
		Details:    details,
	}
}

func NewValidationError(message string, details any) *Error {
	return &Error{Kind: KindValidation, Message: message, StatusCode: http.StatusBadRequest, Code: CodeValidation, Details: details}
}

func NewAuthError(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return &Error{Kind: KindAuth, Message: message, StatusCode: http.StatusUnauthorized, Code: CodeAuth}
}

func NewForbiddenError(message string) *Error {
	if message == "" {
		message = "You don't have permission to access this resource"
	}
	return &Error{Kind: KindForbidden, Message: message, StatusCode: http.StatusForbidden, Code: CodeForbidden}
}

// NewNotFoundError formats "{resource} not found".
func NewNotFoundError(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found", StatusCode: http.StatusNotFound, Code: CodeNotFound}
}

func NewConflictError(message string) *Error {
	return &Error{Kind: KindConflict, Message: message, StatusCode: http.StatusConflict, Code: CodeConflict}
}

// RetryDetails is the details payload of a rate-limit error.
type RetryDetails struct {
	RetryAfter int `json:"retryAfter,omitempty"`
}

func NewRateLimitError(message string, retryAfter int) *Error {
	if message == "" {
		message = "Rate limit exceeded"
	}
	return &Error{
		Kind:       KindRateLimit,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
		Code:       CodeRateLimit,
		Details:    RetryDetails{RetryAfter: retryAfter},
		RetryAfter: retryAfter,
	}
}

// NewIdentityRequiredError is returned when a rate-limited route is reached without a
// caller identity. Same status as an exceeded limit, different code.
func NewIdentityRequiredError() *Error {
	return &Error{
		Kind:       KindRateLimit,
		Message:    "User authentication required for rate limiting",
		StatusCode: http.StatusTooManyRequests,
		Code:       CodeIdentityRequired,
	}
}

// NewLimiterUnavailableError is returned when the rate-limit store is down and the
// limiter fails closed.
func NewLimiterUnavailableError() *Error {
	return &Error{
		Kind:       KindInternal,
		Message:    "Rate limiting is temporarily unavailable",
		StatusCode: http.StatusServiceUnavailable,
		Code:       CodeLimiterDown,
	}
}

// ServiceDetails is the details payload of an external-service error.
type ServiceDetails struct {
	Service string `json:"service"`
}

func NewExternalServiceError(service, message string) *Error {
	if message == "" {
		message = "External service error: " + service
	}
	return &Error{
		Kind:       KindExternalService,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Code:       CodeExternalService,
		Details:    ServiceDetails{Service: service},
	}
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusUnauthorized:
		return KindAuth
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusTooManyRequests:
		return KindRateLimit
	case http.StatusBadGateway:
		return KindExternalService
	}
	if status >= 500 {
		return KindInternal
	}
	return KindUnknown
}

// FieldIssue is one failed field of a schema validation.
type FieldIssue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// IssueLister is implemented by schema-validation failures.
type IssueLister interface {
	Issues() []FieldIssue
}

// IsOperational reports whether err is an expected, typed failure whose message is
// safe to show as-is.
func IsOperational(err error) bool {
	if err == nil {
		return false
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return true
	}
	var issues IssueLister
	return errors.As(err, &issues)
}

// IsCritical reports whether err should page someone: untyped errors and anything
// mapped to a 5xx status.
func IsCritical(err error) bool {
	if err == nil {
		return false
	}
	var issues IssueLister
	if errors.As(err, &issues) {
		return false
	}
	var appErr *Error
	if !errors.As(err, &appErr) {
		return true
	}
	return appErr.StatusCode >= 500
}
