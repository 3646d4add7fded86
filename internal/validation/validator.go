// Package validation wraps go-playground/validator and reports failures as an ordered list
// of field issues that the error formatter renders as a 400 VALIDATION_ERROR.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/raakeshmj/socialplane/internal/apierror"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

// Error is a failed struct validation.
type Error struct {
	issues []apierror.FieldIssue
}

func (e *Error) Issues() []apierror.FieldIssue {
	return e.issues
}

func (e *Error) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.issues))
	for i, is := range e.issues {
		parts[i] = is.Path + ": " + is.Message
	}
	return strings.Join(parts, "; ")
}

// NewError builds a validation failure from explicit issues, for checks the struct tags
// cannot express.
func NewError(issues ...apierror.FieldIssue) *Error {
	return &Error{issues: issues}
}

// Get returns the shared validator instance.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// Report JSON names so issue paths match the request body.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})

		_ = v.RegisterValidation("hexcolor6", func(fl validator.FieldLevel) bool {
			return hexColor.MatchString(fl.Field().String())
		})

		validate = v
	})
	return validate
}

// Struct validates s. It returns nil or an *Error.
func Struct(s any) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewError(apierror.FieldIssue{Path: "", Message: err.Error()})
	}

	issues := make([]apierror.FieldIssue, len(fieldErrs))
	for i, fe := range fieldErrs {
		issues[i] = apierror.FieldIssue{
			Path:    issuePath(fe.Namespace()),
			Message: translate(fe),
		}
	}
	return &Error{issues: issues}
}

// Var validates a single value against tag, reporting failures under path.
func Var(path string, value any, tag string) error {
	err := Get().Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return NewError(apierror.FieldIssue{Path: path, Message: err.Error()})
	}
	fe := fieldErrs[0]
	return NewError(apierror.FieldIssue{Path: path, Message: messageFor(path, fe)})
}

// issuePath drops the root struct name and turns "services[2]" into "services.2".
func issuePath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		namespace = namespace[i+1:]
	}
	namespace = strings.ReplaceAll(namespace, "[", ".")
	return strings.ReplaceAll(namespace, "]", "")
}

var simpleMessages = map[string]string{
	"required":  "%s is required",
	"email":     "Invalid email format",
	"url":       "%s must be a valid URL",
	"uuid":      "%s must be a valid UUID",
	"hexcolor6": "Invalid hex color format (e.g., #8B5CF6)",
}

var paramMessages = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

func translate(fe validator.FieldError) string {
	return messageFor(fe.Field(), fe)
}

func messageFor(field string, fe validator.FieldError) string {
	tag, param := fe.Tag(), fe.Param()

	if tmpl, ok := simpleMessages[tag]; ok {
		if strings.Contains(tmpl, "%s") {
			return fmt.Sprintf(tmpl, field)
		}
		return tmpl
	}
	if tmpl, ok := paramMessages[tag]; ok {
		return fmt.Sprintf(tmpl, field, strings.ReplaceAll(param, " ", ", "))
	}

	switch fe.Kind() {
	case reflect.String:
		switch tag {
		case "min":
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		case "max":
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
	case reflect.Slice, reflect.Array, reflect.Map:
		switch tag {
		case "min":
			return fmt.Sprintf("%s must contain at least %s items", field, param)
		case "max":
			return fmt.Sprintf("%s must contain at most %s items", field, param)
		}
	default:
		switch tag {
		case "min":
			return fmt.Sprintf("%s must be at least %s", field, param)
		case "max":
			return fmt.Sprintf("%s must be at most %s", field, param)
		}
	}
	return fmt.Sprintf("%s failed %s validation", field, tag)
}
