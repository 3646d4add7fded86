// Package middleware holds the HTTP pipeline: request ids, recovery, logging, policy
// lookup, authentication, rate limiting, audit and security headers.
//
// Middlewares that read the response status share one responseWriterInterceptor per request.
package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain wraps h so that middlewares[0] runs first.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for _, m := range slices.Backward(middlewares) {
		h = m(h)
	}
	return h
}

// routePattern is the matched chi pattern, or "unmatched" when routing found nothing.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// responseWriterInterceptor records the status code written downstream.
type responseWriterInterceptor struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func newInterceptor(w http.ResponseWriter) *responseWriterInterceptor {
	if rw, ok := w.(*responseWriterInterceptor); ok {
		return rw
	}
	return &responseWriterInterceptor{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriterInterceptor) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriterInterceptor) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriterInterceptor) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
