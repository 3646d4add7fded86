// Package limiter enforces fixed-window call quotas per (user, platform, limit type).
//
// A window opens on the first call, counts calls until the bucket's ceiling and refuses
// the rest until it resets. Clients can burst up to twice the ceiling across a window
// boundary; that is a property of fixed windows.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/raakeshmj/socialplane/internal/logging"
	"github.com/raakeshmj/socialplane/internal/reliability"
)

var (
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
	ErrUnknownBucket    = errors.New("unknown rate limit bucket")
	ErrMissingIdentity  = errors.New("rate limit requires a user id")
)

// Result is the outcome of one check.
type Result struct {
	Allowed bool
	Limit   int
	// Remaining calls in the current window after this one.
	Remaining int
	ResetAt   time.Time
	// RetryAfter is whole seconds until the window resets; set when denied.
	RetryAfter int
	// Degraded is set when the store failed and the call was let through.
	Degraded bool
}

// Limiter checks calls against a Store.
type Limiter struct {
	store    Store
	strategy func() reliability.FailureStrategy
	clock    func() time.Time
	metrics  *Metrics
	logger   zerolog.Logger
}

type Option func(*Limiter)

// WithStrategy sets where the failure strategy is read from on every store error.
func WithStrategy(fn func() reliability.FailureStrategy) Option {
	return func(l *Limiter) { l.strategy = fn }
}

func WithClock(fn func() time.Time) Option {
	return func(l *Limiter) { l.clock = fn }
}

func WithMetrics(m *Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

//nolint:gocritic // zerolog.Logger is passed by value
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// New builds a Limiter. Without WithStrategy it fails open.
func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:    store,
		strategy: func() reliability.FailureStrategy { return reliability.FailOpen },
		clock:    time.Now,
		logger:   logging.With().Str("component", "limiter").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckBucket resolves name in the registry and checks it.
func (l *Limiter) CheckBucket(ctx context.Context, userID, name string) (Result, error) {
	b, ok := Lookup(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownBucket, name)
	}
	return l.Check(ctx, userID, b)
}

// Check records one call by userID against bucket b.
func (l *Limiter) Check(ctx context.Context, userID string, b Bucket) (Result, error) {
	if userID == "" {
		return Result{}, ErrMissingIdentity
	}

	now := l.clock()
	key := WindowKey{UserID: userID, Platform: b.Platform, LimitType: b.LimitType}

	start := time.Now()
	w, allowed, err := l.store.Hit(ctx, key, b.CallsLimit, b.Window, now)
	l.metrics.observeStore(time.Since(start).Seconds())

	if err != nil {
		// The caller went away; the store is not at fault.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return l.storeFailure(b, userID, now, err)
	}

	if !allowed {
		l.metrics.decision(b.Name, outcomeDenied)
		return Result{
			Allowed:    false,
			Limit:      w.CallsLimit,
			Remaining:  0,
			ResetAt:    w.ResetsAt,
			RetryAfter: RetryAfter(w.ResetsAt, now),
		}, nil
	}

	l.metrics.decision(b.Name, outcomeAllowed)
	return Result{
		Allowed:   true,
		Limit:     w.CallsLimit,
		Remaining: max(w.CallsLimit-w.CallsMade, 0),
		ResetAt:   w.ResetsAt,
	}, nil
}

func (l *Limiter) storeFailure(b Bucket, userID string, now time.Time, err error) (Result, error) {
	l.metrics.storeError(b.Name)
	strategy := l.strategy()

	if reliability.ShouldAllow(strategy, err) {
		l.metrics.decision(b.Name, outcomeFailOpen)
		l.logger.Warn().Err(err).
			Str("bucket", b.Name).
			Str("user_id", userID).
			Msg("rate limit store failed, allowing request")
		return Result{
			Allowed:   true,
			Limit:     b.CallsLimit,
			Remaining: b.CallsLimit,
			ResetAt:   now.Add(b.Window),
			Degraded:  true,
		}, nil
	}

	l.metrics.decision(b.Name, outcomeFailClosed)
	l.logger.Error().Err(err).
		Str("bucket", b.Name).
		Str("user_id", userID).
		Msg("rate limit store failed, rejecting request")
	return Result{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// RetryAfter is the whole seconds from now until resetsAt, rounded up and at least 1.
func RetryAfter(resetsAt, now time.Time) int {
	secs := int(math.Ceil(resetsAt.Sub(now).Seconds()))
	return max(secs, 1)
}
