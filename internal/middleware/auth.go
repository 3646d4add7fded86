package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/raakeshmj/socialplane/internal/apierror"
	"github.com/raakeshmj/socialplane/internal/auth"
	"github.com/raakeshmj/socialplane/internal/response"
)

type (
	userContextKey  struct{}
	scopeContextKey struct{}
)

// WithUserID stores the authenticated caller.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey{}, userID)
}

// UserID returns the authenticated caller, if any.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userContextKey{}).(string)
	return id, ok && id != ""
}

// WithScopes stores the scopes granted to the caller's credential.
func WithScopes(ctx context.Context, scopes []string) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scopes)
}

func HasScope(ctx context.Context, scope string) bool {
	scopes, _ := ctx.Value(scopeContextKey{}).([]string)
	return slices.Contains(scopes, scope)
}

// RequireScope rejects callers whose credential lacks scope with 403.
func RequireScope(scope string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := UserID(r.Context()); !ok {
				response.Error(w, r, apierror.NewAuthError(""))
				return
			}
			if !HasScope(r.Context(), scope) {
				response.Error(w, r, apierror.NewForbiddenError(""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type AuthProvider interface {
	VerifyAPIKey(ctx context.Context, key string) (string, error) // Returns UserID
}

type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	provider   AuthProvider
}

func NewAuth(jwtManager *auth.JWTManager, provider AuthProvider) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		provider:   provider,
	}
}

// Handle authenticates with a Bearer JWT, a Bearer API key or X-API-Key. Whether a
// credential is required comes from the request's policy; without one it is required.
// A credential that is present but invalid is always rejected.
func (m *AuthMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authRequired := true
		if p := GetPolicy(r.Context()); p != nil {
			authRequired = p.Rules.AuthRequired
		}

		credential, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			credential = r.Header.Get("X-API-Key")
		}

		if credential == "" {
			if authRequired {
				response.Error(w, r, apierror.NewAuthError(""))
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		userID, scopes, err := m.authenticate(r.Context(), credential)
		if err != nil {
			response.Error(w, r, err)
			return
		}

		ctx := WithScopes(WithUserID(r.Context(), userID), scopes)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate resolves a credential to a user. API keys carry no scopes.
func (m *AuthMiddleware) authenticate(ctx context.Context, credential string) (string, []string, error) {
	if auth.IsAPIKey(credential) {
		userID, err := m.provider.VerifyAPIKey(ctx, credential)
		if err != nil {
			return "", nil, apierror.NewAuthError("Invalid API key")
		}
		return userID, nil, nil
	}

	claims, err := m.jwtManager.Verify(credential)
	if errors.Is(err, auth.ErrExpiredToken) {
		return "", nil, apierror.NewAuthError("Token has expired")
	}
	if err != nil {
		return "", nil, apierror.NewAuthError("Invalid token")
	}
	return claims.UserID, claims.Scopes, nil
}
