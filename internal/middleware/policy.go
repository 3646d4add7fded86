package middleware

import (
	"context"
	"net/http"

	"github.com/raakeshmj/socialplane/internal/policy"
)

type policyContextKey struct{}

// PolicyEnforcer evaluates the request and attaches the policy to context.
// Unmatched requests get policy.Default.
func PolicyEnforcer(engine *policy.Engine) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := engine.Evaluate(r)
			if p == nil {
				fallback := policy.Default
				p = &fallback
			}

			ctx := context.WithValue(r.Context(), policyContextKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPolicy returns the policy attached by PolicyEnforcer, or nil.
func GetPolicy(ctx context.Context) *policy.Policy {
	if p, ok := ctx.Value(policyContextKey{}).(*policy.Policy); ok {
		return p
	}
	return nil
}
