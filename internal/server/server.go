package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raakeshmj/socialplane/internal/apierror"
	"github.com/raakeshmj/socialplane/internal/audit"
	"github.com/raakeshmj/socialplane/internal/auth"
	"github.com/raakeshmj/socialplane/internal/cache"
	"github.com/raakeshmj/socialplane/internal/config"
	"github.com/raakeshmj/socialplane/internal/limiter"
	"github.com/raakeshmj/socialplane/internal/logging"
	"github.com/raakeshmj/socialplane/internal/metrics"
	"github.com/raakeshmj/socialplane/internal/middleware"
	"github.com/raakeshmj/socialplane/internal/platform"
	"github.com/raakeshmj/socialplane/internal/policy"
	"github.com/raakeshmj/socialplane/internal/reliability"
	"github.com/raakeshmj/socialplane/internal/repository/memory"
	"github.com/raakeshmj/socialplane/internal/response"
	"github.com/raakeshmj/socialplane/internal/service"
)

const (
	version      = "1.0.0"
	maxBodyBytes = 1 << 20
	latencyRing  = 1000
	readyTimeout = 2 * time.Second
)

type Server struct {
	cfg           *config.Config
	router        chi.Router
	store         *platform.Store
	limiter       *limiter.Limiter
	authService   *service.AuthService
	profiles      *service.ProfileService
	assets        *service.AssetService
	metrics       *metrics.Collector
	registry      *prometheus.Registry
	auditLogger   audit.Logger
	configManager *config.DynamicConfigManager
	policyEngine  *policy.Engine
}

type Option func(*Server)

// WithAuditLogger replaces the stdout audit trail.
func WithAuditLogger(l audit.Logger) Option {
	return func(s *Server) { s.auditLogger = l }
}

// WithRegistry exposes metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// DefaultPolicies maps the API surface onto auth requirements and rate-limit buckets.
// Anything under /api that matches none of them gets policy.Default.
func DefaultPolicies() []policy.Policy {
	return []policy.Policy{
		{ID: "auth", Matcher: policy.Matcher{Path: "/api/auth"}, Rules: policy.Rules{AuthRequired: false}},
		{
			ID:      "profile-create",
			Matcher: policy.Matcher{Method: http.MethodPost, Path: "/api/business-profiles"},
			Rules:   policy.Rules{AuthRequired: true, Bucket: limiter.BucketAPIPostCreation},
		},
		{
			ID:      "profiles",
			Matcher: policy.Matcher{Path: "/api/business-profiles"},
			Rules:   policy.Rules{AuthRequired: true, Bucket: limiter.BucketAPIDefault},
		},
		{
			ID:      "asset-upload",
			Matcher: policy.Matcher{Method: http.MethodPost, Path: "/api/brand-assets"},
			Rules:   policy.Rules{AuthRequired: true, Bucket: limiter.BucketAPIImageGeneration},
		},
		{
			ID:      "assets",
			Matcher: policy.Matcher{Path: "/api/brand-assets"},
			Rules:   policy.Rules{AuthRequired: true, Bucket: limiter.BucketAPIDefault},
		},
		{ID: "rate-limits", Matcher: policy.Matcher{Path: "/api/rate-limits"}, Rules: policy.Rules{AuthRequired: true}},
		{ID: "admin", Matcher: policy.Matcher{Path: "/api/admin"}, Rules: policy.Rules{AuthRequired: true}},
	}
}

func New(cfg *config.Config, store *platform.Store, opts ...Option) (*Server, error) {
	strategy, err := reliability.ParseFailureStrategy(cfg.RateLimit.FailureStrategy)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:           cfg,
		store:         store,
		auditLogger:   audit.NewJSONLogger(os.Stdout),
		configManager: config.NewDynamicConfigManager(strategy),
		policyEngine:  policy.NewEngine(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	if err := s.policyEngine.LoadPolicies(DefaultPolicies()); err != nil {
		return nil, fmt.Errorf("load default policies: %w", err)
	}

	repo := memory.New()
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	s.authService = service.NewAuthService(repo, repo, jwtManager, cache.NewMemoryCache[string](),
		service.WithAdminEmails(cfg.Auth.AdminEmails...))
	s.profiles = service.NewProfileService(repo)
	s.assets = service.NewAssetService(repo, repo)

	s.metrics = metrics.NewCollector(latencyRing, s.registry)
	s.limiter = limiter.New(store,
		limiter.WithStrategy(s.configManager.FailureStrategy),
		limiter.WithMetrics(limiter.NewMetrics(s.registry)),
	)

	s.routes()
	return s, nil
}

// Handler is the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	identity := middleware.IdentityFunc(middleware.ContextIdentity)
	if s.cfg.RateLimit.TrustUserHeader {
		identity = middleware.HeaderIdentity
	}
	rl := middleware.NewRateLimit(s.limiter, identity)
	authMw := middleware.NewAuth(s.authService.JWTManager(), s.authService)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.Server.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key", middleware.RequestIDHeader, middleware.TimestampHeader},
			ExposedHeaders: []string{
				"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "X-RateLimit-Degraded",
				"Retry-After", middleware.RequestIDHeader,
			},
			MaxAge: 300,
		}),
		middleware.Recover,
		middleware.RequestLogger,
		middleware.MetricsMiddleware(s.metrics),
		middleware.SecureHeaders(middleware.SecurityConfig{HSTS: s.cfg.IsProduction()}),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, apierror.NewNotFoundError("Route"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, apierror.New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil))
	})

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// Order: [Replay] -> Policy -> Auth -> Audit -> RateLimit -> Handler
	r.Route("/api", func(r chi.Router) {
		if s.cfg.Server.ReplayWindow > 0 {
			r.Use(middleware.ReplayGuard(s.cfg.Server.ReplayWindow))
		}
		r.Use(
			middleware.PolicyEnforcer(s.policyEngine),
			authMw.Handle,
			middleware.AuditMiddleware(s.auditLogger),
			rl.ByPolicy(),
		)

		r.Route("/auth", func(r chi.Router) {
			r.Use(s.ipThrottle())
			r.Post("/signup", s.handleSignup)
			r.Post("/login", s.handleLogin)
		})

		r.Route("/business-profiles", func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/", s.handleGetProfile)
			r.Post("/", s.handleCreateProfile)
			r.Patch("/", s.handleUpdateProfile)
		})

		r.Route("/brand-assets", func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/", s.handleListAssets)
			r.Post("/", s.handleCreateAsset)
			r.Delete("/{assetId}", s.handleDeleteAsset)
		})

		r.Get("/rate-limits", s.handleRateLimits)

		r.Route("/admin", s.adminRoutes)
	})

	s.router = r
}

// ipThrottle limits unauthenticated endpoints per client IP, ahead of any user identity.
func (s *Server) ipThrottle() func(http.Handler) http.Handler {
	return httprate.Limit(
		s.cfg.RateLimit.IPLimitPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
			if err != nil || retryAfter < 1 {
				retryAfter = 60
			}
			response.Error(w, r, apierror.NewRateLimitError("", retryAfter))
		}),
	)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.router,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: s.cfg.Server.ReadTimeout,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Str("environment", s.cfg.Server.Environment).Msg("server starting")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		logging.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}
	return nil
}

type healthReport struct {
	Status      string            `json:"status"`
	Timestamp   string            `json:"timestamp"`
	Environment string            `json:"environment"`
	Version     string            `json:"version"`
	Checks      map[string]string `json:"checks"`
}

// handleHealth is liveness. It always answers 200 and reports degraded dependencies.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := healthReport{
		Status:      "healthy",
		Timestamp:   apierror.Timestamp(time.Now()),
		Environment: s.cfg.Server.Environment,
		Version:     version,
		Checks: map[string]string{
			"jwt_secret":      "configured",
			"ratelimit_store": s.store.Kind,
		},
	}
	if s.cfg.Auth.JWTSecret == "" {
		report.Checks["jwt_secret"] = "missing"
		report.Status = "degraded"
	}
	if s.store.Breaker != nil {
		state := s.store.Breaker.State()
		report.Checks["ratelimit_breaker"] = state
		if state != "closed" {
			report.Status = "degraded"
		}
	}
	response.JSON(w, http.StatusOK, report)
}

// handleReady is readiness: 503 until the rate-limit store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("store", s.store.Kind).Msg("readiness check failed")
		response.Error(w, r, apierror.New(http.StatusServiceUnavailable, "NOT_READY", "Rate limit store unavailable", nil))
		return
	}
	response.Success(w, map[string]string{"status": "ready"}, http.StatusOK)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req service.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	session, err := s.authService.Signup(r.Context(), req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Created(w, session, "Account created successfully")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	session, err := s.authService.Login(r.Context(), req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, session, http.StatusOK)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Get(r.Context(), caller(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, p, http.StatusOK)
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req service.CreateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	p, err := s.profiles.Create(r.Context(), caller(r), req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Created(w, p, "Business profile created successfully")
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	p, err := s.profiles.Update(r.Context(), caller(r), req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, p, http.StatusOK)
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := response.ParsePagination(q, response.DefaultPageDefaults)

	items, total, err := s.assets.List(r.Context(), caller(r), q.Get("asset_type"), page.Offset, page.Limit)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Paginated(w, items, response.PageInfo{Total: total, Page: page.Page, PageSize: page.Limit})
}

func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var req service.CreateAssetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	a, err := s.assets.Create(r.Context(), caller(r), req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Created(w, a, "Brand asset uploaded successfully")
}

func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := s.assets.Delete(r.Context(), caller(r), chi.URLParam(r, "assetId")); err != nil {
		response.Error(w, r, err)
		return
	}
	response.Deleted(w, "Brand asset deleted successfully")
}

type bucketView struct {
	Name          string           `json:"name"`
	Platform      limiter.Platform `json:"platform"`
	LimitType     string           `json:"limitType"`
	CallsLimit    int              `json:"callsLimit"`
	WindowSeconds int64            `json:"windowSeconds"`
}

func (s *Server) handleRateLimits(w http.ResponseWriter, r *http.Request) {
	buckets := limiter.Buckets()
	views := make([]bucketView, 0, len(buckets))
	for _, b := range buckets {
		views = append(views, bucketView{
			Name:          b.Name,
			Platform:      b.Platform,
			LimitType:     b.LimitType,
			CallsLimit:    b.CallsLimit,
			WindowSeconds: int64(b.Window / time.Second),
		})
	}
	response.Success(w, views, http.StatusOK)
}

// requireUser rejects anonymous callers even when a reloaded policy drops AuthRequired.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := middleware.UserID(r.Context()); !ok {
			response.Error(w, r, apierror.NewAuthError(""))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// caller is the authenticated user. Routes that call it sit behind requireUser.
func caller(r *http.Request) string {
	id, _ := middleware.UserID(r.Context())
	return id
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apierror.NewValidationError("Invalid JSON body", nil)
	}
	return nil
}
