package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/evanschultz/sprintboard/internal/adapters/storage/postgres"
	"github.com/evanschultz/sprintboard/internal/adapters/storage/sqlite"
	"github.com/evanschultz/sprintboard/internal/app"
	"github.com/evanschultz/sprintboard/internal/config"
	"github.com/evanschultz/sprintboard/internal/observability"
	"github.com/evanschultz/sprintboard/internal/platform"
)

// globalOptions carries the persistent root flags.
type globalOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
	actorID    string
}

// boardStore is what the runtime needs from either storage adapter.
type boardStore interface {
	app.Store
	Ping(context.Context) error
	Close() error
}

// boardRuntime holds the opened dependencies for one command invocation.
type boardRuntime struct {
	cfg        config.Config
	configPath string
	logger     *runtimeLogger
	store      boardStore
	service    *app.Service
	registry   *prometheus.Registry
}

// defaultGlobalOptions seeds flag defaults from the environment.
func defaultGlobalOptions() globalOptions {
	opts := globalOptions{
		appName: "sprintboard",
		devMode: version == "dev",
		actorID: strings.TrimSpace(os.Getenv("SPRINTBOARD_ACTOR")),
	}
	if envDev, ok := parseBoolEnv("SPRINTBOARD_DEV_MODE"); ok {
		opts.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("SPRINTBOARD_APP_NAME")); envApp != "" {
		opts.appName = envApp
	}
	return opts
}

// resolvePaths resolves platform paths for the selected app name and mode.
func resolvePaths(opts globalOptions) (platform.Paths, error) {
	return platform.Resolve(platform.Options{
		AppName: opts.appName,
		DevMode: opts.devMode,
	})
}

// loadRuntimeConfig layers defaults, the TOML file, SPRINTBOARD_* env, then flags.
func loadRuntimeConfig(opts globalOptions, paths platform.Paths) (config.Config, string, error) {
	configPath := strings.TrimSpace(opts.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("SPRINTBOARD_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}

	defaults := config.Default(paths.DBPath)
	cfg, err := config.Load(configPath, defaults)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("load config %q: %w", configPath, err)
	}
	cfg, err = config.ApplyEnv(cfg)
	if err != nil {
		return config.Config{}, "", err
	}
	if dbPath := strings.TrimSpace(opts.dbPath); dbPath != "" {
		cfg.Database.Driver = config.DriverSQLite
		cfg.Database.Path = dbPath
	}
	return cfg, configPath, nil
}

// openRuntime loads configuration and opens logging, storage, metrics, and the service.
func openRuntime(ctx context.Context, opts globalOptions, stderr io.Writer) (*boardRuntime, error) {
	paths, err := resolvePaths(opts)
	if err != nil {
		return nil, err
	}
	cfg, configPath, err := loadRuntimeConfig(opts, paths)
	if err != nil {
		return nil, err
	}

	logger, err := newRuntimeLogger(stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Info("configuration loaded", "config_path", configPath, "driver", cfg.Database.Driver, "log_level", cfg.Logging.Level)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	store, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	rt := &boardRuntime{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		store:      store,
	}
	serviceCfg := app.ServiceConfig{
		TicketPrefix: cfg.Board.TicketPrefix,
		TicketWidth:  cfg.Board.TicketWidth,
		CopySuffix:   cfg.Board.CopySuffix,
		Logger:       logger,
	}
	if cfg.Metrics.Enabled {
		rt.registry = prometheus.NewRegistry()
		rt.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		observer, err := observability.NewPrometheusObserver(cfg.Metrics.Namespace, rt.registry)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		serviceCfg.Observer = observer
	}
	rt.service = app.NewService(store, uuid.NewString, time.Now, serviceCfg)
	logger.Debug("application service initialized", "ticket_prefix", cfg.Board.TicketPrefix, "metrics", cfg.Metrics.Enabled)
	return rt, nil
}

// openStore opens the configured storage adapter.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *runtimeLogger) (boardStore, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		logger.Info("opening sqlite repository", "db_path", cfg.Path)
		repo, err := sqlite.Open(cfg.Path, sqlite.Options{BusyTimeout: cfg.BusyTimeout()})
		if err != nil {
			logger.Error("sqlite open failed", "db_path", cfg.Path, "err", err)
			return nil, fmt.Errorf("open sqlite repository: %w", err)
		}
		return repo, nil
	case config.DriverPostgres:
		logger.Info("opening postgres store")
		store, err := postgres.Open(ctx, cfg.DSN, postgres.Options{
			MaxTxAttempts: cfg.MaxTxAttempts,
			Logger:        logger,
		})
		if err != nil {
			logger.Error("postgres open failed", "err", err)
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Close releases the store and the dev log sink.
func (r *boardRuntime) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("store close failed", "err", err)
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if err := r.logger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close runtime log sink: %w", err))
	}
	return errors.Join(errs...)
}

// actorContext attaches the --actor identity, when set, to ctx.
func actorContext(ctx context.Context, actorID string) context.Context {
	if actorID = strings.TrimSpace(actorID); actorID == "" {
		return ctx
	}
	return app.WithActor(ctx, actorID)
}

// parseBoolEnv parses one boolean environment variable.
func parseBoolEnv(name string) (bool, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return false, false
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, false
	}
	return value, true
}
