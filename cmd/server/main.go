package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raakeshmj/socialplane/internal/apierror"
	"github.com/raakeshmj/socialplane/internal/config"
	"github.com/raakeshmj/socialplane/internal/logging"
	"github.com/raakeshmj/socialplane/internal/platform"
	"github.com/raakeshmj/socialplane/internal/server"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Timestamp: true,
		Caller:    cfg.IsDevelopment(),
		Output:    os.Stderr,
	})
	apierror.SetDevelopment(cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clients := platform.New(cfg)
	defer func() {
		if err := clients.Close(); err != nil {
			logging.Warn().Err(err).Msg("closing clients")
		}
	}()

	store, err := clients.LimiterStore(ctx)
	if err != nil {
		return err
	}
	logging.Info().
		Str("store", store.Kind).
		Str("failure_strategy", cfg.RateLimit.FailureStrategy).
		Msg("rate limiter ready")

	srv, err := server.New(cfg, store)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	if store.Memory != nil {
		g.Go(func() error {
			store.Memory.RunJanitor(ctx, cfg.RateLimit.SweepInterval)
			return nil
		})
	}
	if store.Postgres != nil {
		g.Go(func() error {
			prune(ctx, store, cfg.RateLimit.SweepInterval)
			return nil
		})
	}
	return g.Wait()
}

// prune drops postgres windows that ended over a day ago, once per interval.
func prune(ctx context.Context, store *platform.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			n, err := store.Postgres.Prune(ctx, t.Add(-24*time.Hour))
			if err != nil {
				logging.Warn().Err(err).Msg("pruning rate limit windows")
				continue
			}
			if n > 0 {
				logging.Debug().Int64("rows", n).Msg("pruned rate limit windows")
			}
		}
	}
}
