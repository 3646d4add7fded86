// Package circuitbreaker guards a rate-limit window store with a circuit breaker, so an
// unreachable backend fails fast and the limiter's failure strategy applies immediately.
package circuitbreaker

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/raakeshmj/socialplane/internal/limiter"
	"github.com/raakeshmj/socialplane/internal/logging"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config tunes the breaker.
type Config struct {
	Name string
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold uint32
	// SuccessThreshold trial calls are let through while half-open.
	SuccessThreshold uint32
	// Timeout is how long the circuit stays open before trying again.
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Name:             "ratelimit-store",
		FailureThreshold: 3,
		SuccessThreshold: 5,
		Timeout:          10 * time.Second,
	}
}

type hit struct {
	window  limiter.Window
	allowed bool
}

// Store decorates a limiter.Store.
type Store struct {
	next limiter.Store
	cb   *gobreaker.CircuitBreaker[hit]
}

func New(next limiter.Store, cfg Config) *Store {
	logger := logging.With().Str("component", "circuitbreaker").Str("breaker", cfg.Name).Logger()

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.SuccessThreshold,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// Cancelled requests say nothing about the store's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}

	return &Store{next: next, cb: gobreaker.NewCircuitBreaker[hit](settings)}
}

func (s *Store) Hit(ctx context.Context, key limiter.WindowKey, limit int, window time.Duration, now time.Time) (limiter.Window, bool, error) {
	res, err := s.cb.Execute(func() (hit, error) {
		w, ok, err := s.next.Hit(ctx, key, limit, window, now)
		return hit{window: w, allowed: ok}, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return limiter.Window{}, false, ErrCircuitOpen
	}
	if err != nil {
		return limiter.Window{}, false, err
	}
	return res.window, res.allowed, nil
}

// State is the breaker state: closed, half-open or open.
func (s *Store) State() string {
	return s.cb.State().String()
}
