package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/orgtree"
	"github.com/aretw0/orgtree/internal/config"
	redisAdapter "github.com/aretw0/orgtree/pkg/adapters/redis"
	"github.com/aretw0/orgtree/pkg/observability"
	"github.com/aretw0/orgtree/pkg/persistence/middleware"
	"github.com/aretw0/orgtree/pkg/ports"
	"github.com/aretw0/orgtree/pkg/registry"
	backend "github.com/redis/go-redis/v9"
)

// Options holds the resolved CLI settings.
type Options struct {
	Config config.Config
	Debug  bool
	// Quiet raises the log level to warn unless Debug is set.
	Quiet bool
}

// App owns the engine and the resources opened for one command.
type App struct {
	Opts     Options
	Out      io.Writer
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Registry *registry.Registry
	// Rich enables glamour rendering of markdown output.
	Rich bool

	engine  *orgtree.Engine
	closers []io.Closer
}

// NewApp prepares an App writing command output to out.
func NewApp(opts Options, out io.Writer) *App {
	return &App{
		Opts:     opts,
		Out:      out,
		Logger:   createLogger(opts),
		Registry: registry.Default(),
	}
}

// Engine opens the configured source and loads it on first use.
func (a *App) Engine(ctx context.Context) (*orgtree.Engine, error) {
	if a.engine != nil {
		return a.engine, nil
	}
	eng, err := a.createEngine(ctx)
	if err != nil {
		return nil, err
	}
	if err := eng.Load(ctx); err != nil {
		return nil, err
	}
	a.engine = eng
	return eng, nil
}

func (a *App) createEngine(ctx context.Context) (*orgtree.Engine, error) {
	cfg := a.Opts.Config

	src, err := a.Registry.OpenSource(ctx, cfg.Source, cfg.Mapping)
	if err != nil {
		return nil, fmt.Errorf("error opening source: %w", err)
	}
	a.track(src)

	engineOpts := []orgtree.Option{
		orgtree.WithSource(src),
		orgtree.WithLogger(a.Logger),
		orgtree.WithName(cfg.Source),
	}
	fields, err := cfg.FieldSchema()
	if err != nil {
		return nil, err
	}
	if fields != nil {
		engineOpts = append(engineOpts, orgtree.WithFieldSchema(fields))
	}
	if a.Metrics != nil {
		engineOpts = append(engineOpts, orgtree.WithMetrics(a.Metrics))
	}

	if cfg.SnapshotStore != "" {
		store, err := a.SnapshotStore(ctx)
		if err != nil {
			return nil, err
		}
		engineOpts = append(engineOpts, orgtree.WithSnapshotStore(store, cfg.SnapshotName))
	}

	engine, err := orgtree.New("", engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, nil
}

// SnapshotStore opens the configured store wrapped with redaction and encryption when configured.
func (a *App) SnapshotStore(ctx context.Context) (ports.SnapshotStore, error) {
	cfg := a.Opts.Config
	if cfg.SnapshotStore == "" {
		return nil, fmt.Errorf("no snapshot store configured")
	}

	store, err := a.Registry.OpenStore(ctx, cfg.SnapshotStore)
	if err != nil {
		return nil, fmt.Errorf("error opening snapshot store: %w", err)
	}
	a.track(store)

	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		redact, err := middleware.NewRedactionMiddleware(cfg.Redact)
		if err != nil {
			return nil, err
		}
		mws = append(mws, redact)
	}
	key, err := cfg.EncryptionKey(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if key != nil {
		encrypt, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, err
		}
		mws = append(mws, encrypt)
	}
	return middleware.Chain(store, mws...), nil
}

// Locker returns a redis lock when a redis address is configured, nil otherwise.
func (a *App) Locker() ports.DistributedLocker {
	r := a.Opts.Config.Redis
	if r.Addr == "" {
		return nil
	}
	client := backend.NewClient(&backend.Options{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
	})
	a.track(client)
	return redisAdapter.NewLocker(client, "orgtree:")
}

// Close releases every resource opened by the App.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

func (a *App) track(v any) {
	if c, ok := v.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
}
