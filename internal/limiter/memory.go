package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps windows in process memory. It is exact for a single instance and is
// the default backend for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[WindowKey]*Window
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[WindowKey]*Window)}
}

func (s *MemoryStore) Hit(ctx context.Context, key WindowKey, limit int, window time.Duration, now time.Time) (Window, bool, error) {
	if err := ctx.Err(); err != nil {
		return Window{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || w.Expired(now) {
		w = &Window{
			ID:          uuid.NewString(),
			Key:         key,
			CallsMade:   1,
			CallsLimit:  limit,
			WindowStart: now,
			ResetsAt:    now.Add(window),
			Duration:    window,
		}
		s.windows[key] = w
		return *w, true, nil
	}

	if w.CallsMade < w.CallsLimit {
		w.CallsMade++
		return *w, true, nil
	}
	return *w, false, nil
}

// Sweep drops windows that expired before now and returns how many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, w := range s.windows {
		if w.Expired(now) {
			delete(s.windows, k)
			removed++
		}
	}
	return removed
}

// Len is the number of tracked windows.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// RunJanitor sweeps expired windows every interval until ctx is done.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			s.Sweep(t)
		}
	}
}
