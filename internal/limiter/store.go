package limiter

import (
	"context"
	"time"
)

// WindowKey identifies one quota counter.
type WindowKey struct {
	UserID    string
	Platform  Platform
	LimitType string
}

// Window is the persisted state of one fixed window. It covers [WindowStart, ResetsAt).
type Window struct {
	ID          string
	Key         WindowKey
	CallsMade   int
	CallsLimit  int
	WindowStart time.Time
	ResetsAt    time.Time
	Duration    time.Duration
}

// Expired reports whether the window no longer covers now.
func (w Window) Expired(now time.Time) bool {
	return !now.Before(w.ResetsAt)
}

// Store records one call against a window and decides it in a single atomic step:
// start a fresh window when none is live, increment while under the limit, refuse otherwise.
// The returned window reflects the state after the call.
type Store interface {
	Hit(ctx context.Context, key WindowKey, limit int, window time.Duration, now time.Time) (Window, bool, error)
}
