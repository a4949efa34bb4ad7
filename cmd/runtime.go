package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/synapse/internal/analytics"
	"github.com/abhisek/synapse/internal/config"
	"github.com/abhisek/synapse/internal/functions"
	"github.com/abhisek/synapse/internal/hints"
	"github.com/abhisek/synapse/internal/leaderboard"
	"github.com/abhisek/synapse/internal/llm"
	"github.com/abhisek/synapse/internal/logging"
	"github.com/abhisek/synapse/internal/metrics"
	"github.com/abhisek/synapse/internal/progress"
	"github.com/abhisek/synapse/internal/selection"
	"github.com/abhisek/synapse/internal/server"
	"github.com/abhisek/synapse/internal/store"
)

// runtime is the fully wired service shared by the subcommands.
type runtime struct {
	cfg         *config.Config
	logger      *zap.Logger
	store       *store.Store
	metrics     *metrics.Metrics
	cache       leaderboard.Cache
	leaderboard *leaderboard.Service
	registry    *functions.Registry
	health      map[string]server.Pinger
	closers     []func() error
}

// loadConfig applies the persistent flags on top of the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if p, _ := cmd.Flags().GetString("env-file"); p != "" {
		os.Setenv("SYNAPSE_ENV_FILE", p)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.Store.Backend = store.BackendSQLite
		cfg.Store.DSN = p
	}
	return cfg, nil
}

// openStore loads configuration and opens only the document store.
func openStore(cmd *cobra.Command) (*store.Store, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	s, err := store.Open(cmd.Context(), cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return s, cfg, nil
}

// openRuntime wires every service the functions depend on.
func openRuntime(cmd *cobra.Command) (*runtime, error) {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, logger: logger, metrics: metrics.New(), health: map[string]server.Pinger{}}
	rt.closers = append(rt.closers, func() error { _ = logger.Sync(); return nil })

	s, err := store.Open(ctx, cfg.Store)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	rt.store = s
	rt.closers = append(rt.closers, s.Close)
	rt.health["store"] = s

	if err := rt.openCache(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	rt.leaderboard = leaderboard.New(s, rt.cache, logger.Named("leaderboard"))

	progressSvc := progress.New(s, progress.Config{Policy: cfg.Policy, MaxCASAttempts: cfg.MaxCASAttempts},
		progress.WithLogger(logger.Named("progress")),
		progress.WithListener(rt.leaderboard),
		progress.WithListener(rt.metrics),
	)

	deps := functions.Deps{
		Docs:        s,
		Progress:    progressSvc,
		Selector:    selection.New(s, selection.WithLogger(logger.Named("selection"))),
		Leaderboard: rt.leaderboard,
		Analytics:   analytics.New(s, nil, logger.Named("analytics")),
		HintsConfig: hints.DefaultConfig(),
		Logger:      logger.Named("functions"),
	}
	if cfg.LLM != nil {
		provider, err := llm.NewProvider(ctx, *cfg.LLM, rt.metrics.WrapEvents(s.EventRepo()), logger.Named("llm"))
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("configure llm: %w", err)
		}
		deps.Hints = hints.New(provider, deps.HintsConfig)
	} else {
		logger.Info("no llm provider configured; hint and challenge generation are disabled")
	}

	rt.registry = functions.New(deps)
	rt.registry.AddObserver(rt.metrics)
	return rt, nil
}

func (rt *runtime) openCache(ctx context.Context) error {
	if rt.cfg.Redis.URL == "" {
		rt.cache = leaderboard.NewMemoryCache(rt.cfg.Redis.TTL)
		return nil
	}
	c, err := leaderboard.NewRedisCache(ctx, rt.cfg.Redis.URL, rt.cfg.Redis.TTL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	rt.cache = c
	rt.health["redis"] = c
	rt.closers = append(rt.closers, c.Close)
	return nil
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
