package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/raakeshmj/socialplane/internal/apierror"
	"github.com/raakeshmj/socialplane/internal/limiter"
	"github.com/raakeshmj/socialplane/internal/logging"
	"github.com/raakeshmj/socialplane/internal/response"
)

const (
	headerLimit     = "X-RateLimit-Limit"
	headerRemaining = "X-RateLimit-Remaining"
	headerReset     = "X-RateLimit-Reset"
	headerDegraded  = "X-RateLimit-Degraded"
	headerRetry     = "Retry-After"

	// UserIDHeader carries a caller id from a trusted upstream.
	UserIDHeader = "X-User-ID"
)

// IdentityFunc returns the rate-limit identity of a request.
type IdentityFunc func(r *http.Request) (string, bool)

// ContextIdentity uses the caller authenticated by AuthMiddleware.
func ContextIdentity(r *http.Request) (string, bool) {
	return UserID(r.Context())
}

// HeaderIdentity uses the authenticated caller and falls back to X-User-ID.
// Only wire it behind a proxy that sets the header itself.
func HeaderIdentity(r *http.Request) (string, bool) {
	if id, ok := UserID(r.Context()); ok {
		return id, true
	}
	id := strings.TrimSpace(r.Header.Get(UserIDHeader))
	return id, id != ""
}

type RateLimit struct {
	limiter  *limiter.Limiter
	identity IdentityFunc
}

// NewRateLimit builds the middleware. A nil identity means ContextIdentity.
func NewRateLimit(l *limiter.Limiter, identity IdentityFunc) *RateLimit {
	if identity == nil {
		identity = ContextIdentity
	}
	return &RateLimit{limiter: l, identity: identity}
}

// For limits every request through the named bucket. It panics on an unknown name so
// a misspelt bucket fails at startup.
func (m *RateLimit) For(bucket string) Middleware {
	b := limiter.MustLookup(bucket)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.enforce(w, r, next, b)
		})
	}
}

// ByPolicy limits each request through the bucket named by its policy. Requests whose
// policy names no bucket pass untouched.
func (m *RateLimit) ByPolicy() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPolicy(r.Context())
			if p == nil || p.Rules.Bucket == "" {
				next.ServeHTTP(w, r)
				return
			}
			b, ok := limiter.Lookup(p.Rules.Bucket)
			if !ok {
				response.Error(w, r, errors.New("policy "+p.ID+" names unknown bucket "+p.Rules.Bucket))
				return
			}
			m.enforce(w, r, next, b)
		})
	}
}

func (m *RateLimit) enforce(w http.ResponseWriter, r *http.Request, next http.Handler, b limiter.Bucket) {
	userID, ok := m.identity(r)
	if !ok {
		response.Error(w, r, apierror.NewIdentityRequiredError())
		return
	}

	res, err := m.limiter.Check(r.Context(), userID, b)
	switch {
	case errors.Is(err, limiter.ErrMissingIdentity):
		response.Error(w, r, apierror.NewIdentityRequiredError())
		return
	case errors.Is(err, limiter.ErrStoreUnavailable):
		response.Error(w, r, apierror.NewLimiterUnavailableError())
		return
	case err != nil:
		response.Error(w, r, err)
		return
	}

	addRateLimitHeaders(w, res)

	if !res.Allowed {
		w.Header().Set(headerRetry, strconv.Itoa(res.RetryAfter))
		logging.Ctx(r.Context()).Info().
			Str("bucket", b.Name).
			Str("user_id", userID).
			Int("retry_after", res.RetryAfter).
			Msg("rate limit exceeded")
		response.Error(w, r, apierror.NewRateLimitError("", res.RetryAfter))
		return
	}

	next.ServeHTTP(w, r)
}

// addRateLimitHeaders advertises the caller's quota. Reset is a unix timestamp in seconds.
func addRateLimitHeaders(w http.ResponseWriter, res limiter.Result) {
	h := w.Header()
	h.Set(headerLimit, strconv.Itoa(res.Limit))
	h.Set(headerRemaining, strconv.Itoa(res.Remaining))
	h.Set(headerReset, strconv.FormatInt(res.ResetAt.Unix(), 10))
	if res.Degraded {
		h.Set(headerDegraded, "true")
	}
}
