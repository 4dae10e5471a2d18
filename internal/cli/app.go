// Package cli wires configuration into a ready-to-use session controller and
// hosts the interactive terminal player.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/branchtale/internal/adapters/file"
	"github.com/aretw0/branchtale/internal/config"
	"github.com/aretw0/branchtale/internal/logging"
	"github.com/aretw0/branchtale/internal/stories"
	"github.com/aretw0/branchtale/pkg/adapters/memory"
	"github.com/aretw0/branchtale/pkg/adapters/openai"
	"github.com/aretw0/branchtale/pkg/adapters/redis"
	"github.com/aretw0/branchtale/pkg/adapters/sqlite"
	"github.com/aretw0/branchtale/pkg/domain"
	"github.com/aretw0/branchtale/pkg/graph"
	"github.com/aretw0/branchtale/pkg/observability"
	"github.com/aretw0/branchtale/pkg/persistence/middleware"
	"github.com/aretw0/branchtale/pkg/ports"
	"github.com/aretw0/branchtale/pkg/selector"
	"github.com/aretw0/branchtale/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// BuildOptions tweak how NewApp assembles the engine.
type BuildOptions struct {
	// Logger overrides the logger derived from the config log level.
	Logger *slog.Logger
	// Registerer enables Prometheus metrics when set.
	Registerer prometheus.Registerer
	// Offline forces the canned generator even if an OpenAI endpoint is configured.
	Offline bool
}

// App bundles the engine and the resources it owns.
type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Graph      *graph.Graph
	Store      ports.ProgressStore
	Controller *session.Controller
	Metrics    *observability.Metrics

	closers []func() error
}

// NewApp builds the store, story graph, generator and controller described by cfg.
// Callers must Close the App.
func NewApp(ctx context.Context, cfg config.Config, opts BuildOptions) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		logger = logging.New(level)
	}
	app := &App{Config: cfg, Logger: logger}

	if err := app.openStore(); err != nil {
		_ = app.Close()
		return nil, err
	}
	if err := app.loadGraph(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	hooks := []domain.LifecycleHooks{observability.LogHooks(logger)}
	selectorOpts := []selector.Option{
		selector.WithMaxAttempts(cfg.Generator.MaxAttempts),
		selector.WithAttemptTimeout(cfg.Generator.AttemptTimeout),
		selector.WithLogger(logger),
	}
	if opts.Registerer != nil {
		app.Metrics = observability.NewMetrics(opts.Registerer)
		hooks = append(hooks, app.Metrics.Hooks())
		selectorOpts = append(selectorOpts, selector.WithHooks(app.Metrics.SelectorHooks()))
	}

	ctrlOpts := []session.Option{
		session.WithGraph(app.Graph),
		session.WithGenerator(app.generator(opts.Offline)),
		session.WithSelector(selector.New(selectorOpts...)),
		session.WithLogger(logger),
		session.WithHooks(observability.Combine(hooks...)),
	}
	if locker := app.locker(); locker != nil {
		ctrlOpts = append(ctrlOpts, session.WithLocker(locker, 0))
	}
	if err := app.encrypt(); err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Controller = session.New(app.Store, ctrlOpts...)
	return app, nil
}

// Close releases the store connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openStore() error {
	sc := a.Config.Store
	switch sc.Backend {
	case config.BackendMemory:
		a.Store = memory.NewStore()
	case config.BackendFile:
		a.Store = file.New(sc.File.Dir)
	case config.BackendRedis:
		store := redis.New(sc.Redis.Addr, sc.Redis.Password, sc.Redis.DB,
			redis.WithPrefix(sc.Redis.Prefix),
			redis.WithTTL(sc.Redis.TTL),
		)
		a.Store = store
		a.closers = append(a.closers, store.Close)
	case config.BackendSQLite:
		if dir := filepath.Dir(sc.SQLite.Path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		store, err := sqlite.Open(sc.SQLite.Path)
		if err != nil {
			return err
		}
		a.Store = store
		a.closers = append(a.closers, store.Close)
	default:
		return fmt.Errorf("unknown store backend %q", sc.Backend)
	}
	a.Logger.Debug("progress store ready", "backend", sc.Backend)
	return nil
}

// loadGraph prefers an explicit story file, then a graph stored in SQLite,
// then the embedded demo. A SQLite store without stories is seeded with the demo.
func (a *App) loadGraph(ctx context.Context) error {
	if a.Config.Story != "" {
		g, err := graph.LoadFile(a.Config.Story)
		if err != nil {
			return fmt.Errorf("failed to load story %s: %w", a.Config.Story, err)
		}
		a.Graph = g
		return nil
	}

	demo, err := stories.Demo()
	if err != nil {
		return fmt.Errorf("failed to load demo story: %w", err)
	}

	db, ok := a.Store.(*sqlite.Store)
	if !ok {
		a.Graph = demo
		return nil
	}
	g, err := db.LoadGraph(ctx)
	switch {
	case err == nil:
		a.Graph = g
	case errors.Is(err, sqlite.ErrNoStories):
		if err := db.SeedGraph(ctx, demo); err != nil {
			return fmt.Errorf("failed to seed demo story: %w", err)
		}
		a.Logger.Info("seeded sqlite with the demo story", "nodes", demo.Len())
		a.Graph = demo
	default:
		return err
	}
	return nil
}

func (a *App) generator(offline bool) ports.ChoiceGenerator {
	gc := a.Config.Generator
	if offline || !gc.Enabled {
		return stories.OfflineGenerator()
	}
	return openai.New(gc.APIKey(), gc.BaseURL,
		openai.WithModel(gc.Model),
		openai.WithLogger(a.Logger),
	)
}

// encrypt wraps the store with at-rest encryption when a key is configured.
// It runs after the backend-specific wiring, which needs the concrete store.
func (a *App) encrypt() error {
	key, err := a.Config.Store.Key()
	if err != nil || key == nil {
		return err
	}
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
	if err != nil {
		return err
	}
	a.Store = middleware.Chain(a.Store, mw)
	a.Logger.Debug("progress encryption enabled")
	return nil
}

func (a *App) locker() ports.DistributedLocker {
	store, ok := a.Store.(*redis.Store)
	if !ok || !a.Config.Store.Redis.Lock {
		return nil
	}
	return redis.NewLocker(store.Client(), a.Config.Store.Redis.Prefix)
}
