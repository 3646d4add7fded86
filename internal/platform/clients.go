// Package platform opens the external clients the process depends on and turns
// configuration into a rate-limit store.
package platform

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/raakeshmj/socialplane/internal/circuitbreaker"
	"github.com/raakeshmj/socialplane/internal/config"
	"github.com/raakeshmj/socialplane/internal/limiter"
	"github.com/raakeshmj/socialplane/internal/limiter/pgstore"
	"github.com/raakeshmj/socialplane/internal/limiter/redisstore"
	"github.com/raakeshmj/socialplane/internal/logging"
)

const pingTimeout = 2 * time.Second

// Clients opens Redis and Postgres on first use and closes whatever was opened.
type Clients struct {
	cfg *config.Config

	redisOnce sync.Once
	redis     *redis.Client
	redisErr  error

	pgOnce sync.Once
	pg     *sql.DB
	pgErr  error
}

func New(cfg *config.Config) *Clients {
	return &Clients{cfg: cfg}
}

// Redis returns the shared client, connecting on the first call.
func (c *Clients) Redis(ctx context.Context) (*redis.Client, error) {
	c.redisOnce.Do(func() {
		opts, err := redis.ParseURL(c.cfg.Redis.URL)
		if err != nil {
			c.redisErr = fmt.Errorf("parse redis url: %w", err)
			return
		}
		client := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			c.redisErr = fmt.Errorf("ping redis: %w", err)
			return
		}
		c.redis = client
		logging.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("connected to redis")
	})
	return c.redis, c.redisErr
}

// Postgres returns the shared pool, connecting on the first call.
func (c *Clients) Postgres(ctx context.Context) (*sql.DB, error) {
	c.pgOnce.Do(func() {
		c.pg, c.pgErr = pgstore.Open(ctx, c.cfg.Database.URL)
		if c.pgErr == nil {
			logging.Info().Msg("connected to postgres")
		}
	})
	return c.pg, c.pgErr
}

func (c *Clients) Close() error {
	var errs []error
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	if c.pg != nil {
		errs = append(errs, c.pg.Close())
	}
	return errors.Join(errs...)
}

// Store is the configured rate-limit store plus the hooks main and the server need.
type Store struct {
	limiter.Store

	// Kind is memory, redis or postgres.
	Kind string
	// Ping reports whether the backing service answers. Memory always does.
	Ping func(ctx context.Context) error
	// Breaker is set for remote stores.
	Breaker *circuitbreaker.Store
	// Memory is set for the in-process store so main can run its janitor.
	Memory *limiter.MemoryStore
	// Postgres is set for the postgres store so main can prune old windows.
	Postgres *pgstore.Store
}

// LimiterStore builds the store named by ratelimit.store. Remote stores sit behind a
// circuit breaker so an outage fails fast into the configured failure strategy.
func (c *Clients) LimiterStore(ctx context.Context) (*Store, error) {
	rl := c.cfg.RateLimit
	breakerCfg := circuitbreaker.DefaultConfig()
	breakerCfg.FailureThreshold = rl.BreakerFailures
	breakerCfg.Timeout = rl.BreakerTimeout

	switch rl.Store {
	case config.StoreMemory:
		mem := limiter.NewMemoryStore()
		return &Store{
			Store:  mem,
			Kind:   rl.Store,
			Ping:   func(context.Context) error { return nil },
			Memory: mem,
		}, nil

	case config.StoreRedis:
		client, err := c.Redis(ctx)
		if err != nil {
			return nil, err
		}
		rs := redisstore.New(client)
		breaker := circuitbreaker.New(rs, breakerCfg)
		return &Store{Store: breaker, Kind: rl.Store, Ping: rs.Ping, Breaker: breaker}, nil

	case config.StorePostgres:
		db, err := c.Postgres(ctx)
		if err != nil {
			return nil, err
		}
		ps := pgstore.New(db)
		if err := ps.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate rate limit table: %w", err)
		}
		breaker := circuitbreaker.New(ps, breakerCfg)
		return &Store{Store: breaker, Kind: rl.Store, Ping: ps.Ping, Breaker: breaker, Postgres: ps}, nil

	default:
		return nil, fmt.Errorf("unknown rate limit store %q", rl.Store)
	}
}
