package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/raakeshmj/socialplane/internal/apierror"
	"github.com/raakeshmj/socialplane/internal/audit"
	"github.com/raakeshmj/socialplane/internal/auth"
	"github.com/raakeshmj/socialplane/internal/config"
	"github.com/raakeshmj/socialplane/internal/logging"
	"github.com/raakeshmj/socialplane/internal/metrics"
	"github.com/raakeshmj/socialplane/internal/middleware"
	"github.com/raakeshmj/socialplane/internal/policy"
	"github.com/raakeshmj/socialplane/internal/reliability"
	"github.com/raakeshmj/socialplane/internal/response"
	"github.com/raakeshmj/socialplane/internal/validation"
)

// adminRoutes mounts key management for the caller and the operator endpoints, which
// need the admin scope.
func (s *Server) adminRoutes(r chi.Router) {
	r.Use(requireUser)
	r.Post("/keys", s.GenerateAPIKeyHandler)
	r.Post("/keys/rotate", s.RotateAPIKeyHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireScope(auth.ScopeAdmin))
		r.Get("/stats", s.StatsHandler)
		r.Get("/policies", s.ListPolicies)
		r.Put("/policies", s.ReloadPolicies)
		r.Get("/ratelimit/strategy", s.GetFailureStrategy)
		r.Put("/ratelimit/strategy", s.UpdateFailureStrategy)
	})
}

type rateLimitStats struct {
	Store           string                      `json:"store"`
	Breaker         string                      `json:"breaker,omitempty"`
	FailureStrategy reliability.FailureStrategy `json:"failureStrategy"`
}

type adminStats struct {
	Requests  metrics.Stats  `json:"requests"`
	RateLimit rateLimitStats `json:"rateLimit"`
}

// StatsHandler returns request statistics and the state of the rate-limit store.
func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := adminStats{
		Requests: s.metrics.Stats(),
		RateLimit: rateLimitStats{
			Store:           s.store.Kind,
			FailureStrategy: s.configManager.FailureStrategy(),
		},
	}
	if s.store.Breaker != nil {
		stats.RateLimit.Breaker = s.store.Breaker.State()
	}
	response.Success(w, stats, http.StatusOK)
}

// ListPolicies returns the current policy configuration
func (s *Server) ListPolicies(w http.ResponseWriter, r *http.Request) {
	response.Success(w, s.policyEngine.Policies(), http.StatusOK)
}

// ReloadPolicies replaces the route policies. A set with any invalid policy is
// rejected whole and the running set is kept.
func (s *Server) ReloadPolicies(w http.ResponseWriter, r *http.Request) {
	var policies []policy.Policy
	if err := decodeJSON(w, r, &policies); err != nil {
		response.Error(w, r, err)
		return
	}
	if err := s.policyEngine.LoadPolicies(policies); err != nil {
		response.Error(w, r, apierror.NewValidationError(err.Error(), nil))
		return
	}

	s.logAdmin(r, "policy_reload", "policies", map[string]any{"count": len(policies)})
	response.Success(w, s.policyEngine.Policies(), http.StatusOK)
}

func (s *Server) GetFailureStrategy(w http.ResponseWriter, r *http.Request) {
	response.Success(w, s.configManager.GetPolicy(), http.StatusOK)
}

// UpdateFailureStrategy switches between fail open and fail closed without a restart.
func (s *Server) UpdateFailureStrategy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FailureStrategy string `json:"failureStrategy"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	strategy, err := reliability.ParseFailureStrategy(req.FailureStrategy)
	if err != nil {
		response.Error(w, r, validation.NewError(apierror.FieldIssue{
			Path:    "failureStrategy",
			Message: "failureStrategy must be one of: fail_open, fail_closed",
		}))
		return
	}

	previous := s.configManager.FailureStrategy()
	s.configManager.UpdatePolicy(config.RateLimitPolicy{FailureStrategy: strategy})

	logging.Ctx(r.Context()).Warn().
		Str("from", string(previous)).
		Str("to", string(strategy)).
		Msg("rate limit failure strategy changed")
	s.logAdmin(r, "failure_strategy_update", "config:ratelimit", map[string]any{
		"from": string(previous),
		"to":   string(strategy),
	})

	response.Success(w, s.configManager.GetPolicy(), http.StatusOK)
}

// GenerateAPIKeyHandler issues a new API key to the caller. The raw key is only
// returned here.
func (s *Server) GenerateAPIKeyHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	issued, err := s.authService.CreateAPIKey(r.Context(), caller(r), req.Name, nil)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	// Don't log the key itself!
	s.logAdmin(r, "key_create", "apikey:"+issued.Key.ID, map[string]any{"key_name": req.Name, "prefix": issued.Key.Prefix})
	response.Created(w, issued, "API key created successfully")
}

// RotateAPIKeyHandler revokes all of the caller's keys and issues a replacement.
func (s *Server) RotateAPIKeyHandler(w http.ResponseWriter, r *http.Request) {
	issued, err := s.authService.RotateAPIKey(r.Context(), caller(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}

	s.logAdmin(r, "key_rotate", "apikey:"+issued.Key.ID, map[string]any{"prefix": issued.Key.Prefix})
	response.Created(w, issued, "All previous keys revoked")
}

func (s *Server) logAdmin(r *http.Request, action, resource string, meta map[string]any) {
	s.auditLogger.Log(audit.Entry{
		Timestamp: time.Now(),
		RequestID: logging.RequestID(r.Context()),
		ActorID:   caller(r),
		Action:    action,
		Resource:  resource,
		Status:    http.StatusOK,
		Metadata:  meta,
	})
}
