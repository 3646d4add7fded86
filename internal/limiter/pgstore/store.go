// Package pgstore keeps rate-limit windows in the api_rate_limits table. Each
// (user, platform, limit type) owns one row that is reset in place when its window ends;
// the decision and the increment happen in a single INSERT .. ON CONFLICT statement.
package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // postgres driver

	"github.com/raakeshmj/socialplane/internal/limiter"
	"github.com/raakeshmj/socialplane/internal/logging"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Every SET expression reads the pre-update row (w.*), so last_allowed and calls_made
// are decided against the same snapshot. The conflicting row is locked for the statement.
const hitSQL = `
INSERT INTO api_rate_limits AS w
    (id, user_id, platform, limit_type, calls_made, calls_limit, window_duration_ms,
     window_start, resets_at, last_allowed, created_at, updated_at)
VALUES ($1, $2, $3, $4, 1, $5, $6, $7, $8, TRUE, $7, $7)
ON CONFLICT (user_id, platform, limit_type) DO UPDATE SET
    id = CASE WHEN w.resets_at <= EXCLUDED.window_start THEN EXCLUDED.id ELSE w.id END,
    calls_made = CASE
        WHEN w.resets_at <= EXCLUDED.window_start THEN 1
        WHEN w.calls_made < w.calls_limit THEN w.calls_made + 1
        ELSE w.calls_made
    END,
    last_allowed = (w.resets_at <= EXCLUDED.window_start OR w.calls_made < w.calls_limit),
    calls_limit = CASE WHEN w.resets_at <= EXCLUDED.window_start THEN EXCLUDED.calls_limit ELSE w.calls_limit END,
    window_duration_ms = CASE WHEN w.resets_at <= EXCLUDED.window_start THEN EXCLUDED.window_duration_ms ELSE w.window_duration_ms END,
    window_start = CASE WHEN w.resets_at <= EXCLUDED.window_start THEN EXCLUDED.window_start ELSE w.window_start END,
    resets_at = CASE WHEN w.resets_at <= EXCLUDED.window_start THEN EXCLUDED.resets_at ELSE w.resets_at END,
    updated_at = EXCLUDED.updated_at
RETURNING id, calls_made, calls_limit, window_duration_ms, window_start, resets_at, last_allowed`

const pruneSQL = `DELETE FROM api_rate_limits WHERE resets_at < $1`

// Store implements limiter.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects with lib/pq and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func (s *Store) Hit(ctx context.Context, key limiter.WindowKey, limit int, window time.Duration, now time.Time) (limiter.Window, bool, error) {
	now = now.UTC()

	var (
		w          = limiter.Window{Key: key}
		durationMs int64
		allowed    bool
	)
	err := s.db.QueryRowContext(ctx, hitSQL,
		uuid.New(), key.UserID, string(key.Platform), key.LimitType,
		limit, window.Milliseconds(), now, now.Add(window),
	).Scan(&w.ID, &w.CallsMade, &w.CallsLimit, &durationMs, &w.WindowStart, &w.ResetsAt, &allowed)
	if err != nil {
		return limiter.Window{}, false, fmt.Errorf("upsert rate limit window: %w", err)
	}

	w.Duration = time.Duration(durationMs) * time.Millisecond
	return w, allowed, nil
}

// Prune deletes rows whose window ended before the cutoff. Rows are reset in place, so
// pruning only reclaims space for callers that went quiet.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, pruneSQL, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune rate limit windows: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rate limit windows: %w", err)
	}
	return n, nil
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded migrations in lexical order. They are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		logging.Info().Str("migration", name).Msg("postgres migration applied")
	}
	return nil
}
