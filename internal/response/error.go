package response

import (
	"net/http"

	"github.com/raakeshmj/socialplane/internal/apierror"
)

// Error formats any failure value, logs it and writes the error envelope.
// Handlers return through here instead of writing their own error JSON.
func Error(w http.ResponseWriter, r *http.Request, v any) {
	body, status := apierror.FormatAt(v, now())

	apierror.LogError(r.Context(), v, map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
		"code":   body.Error.Code,
	})

	JSON(w, status, body)
}
