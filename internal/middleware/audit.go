package middleware

import (
	"net/http"
	"time"

	"github.com/raakeshmj/socialplane/internal/audit"
	"github.com/raakeshmj/socialplane/internal/logging"
)

// AuditMiddleware records mutating requests. Reads are covered by RequestLogger.
func AuditMiddleware(logger audit.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := newInterceptor(w)

			next.ServeHTTP(rw, r)

			actorID := "anonymous"
			if id, ok := UserID(r.Context()); ok {
				actorID = id
			}

			meta := map[string]any{
				"remote_addr": r.RemoteAddr,
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if p := GetPolicy(r.Context()); p != nil {
				meta["policy"] = p.ID
				if p.Rules.Bucket != "" {
					meta["bucket"] = p.Rules.Bucket
				}
			}

			logger.Log(audit.Entry{
				Timestamp: start,
				RequestID: logging.RequestID(r.Context()),
				ActorID:   actorID,
				Action:    r.Method + " " + routePattern(r),
				Resource:  r.URL.Path,
				Status:    rw.statusCode,
				Metadata:  meta,
			})
		})
	}
}
