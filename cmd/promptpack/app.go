package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/promptpack/internal/config"
	"github.com/fyrsmithlabs/promptpack/internal/logging"
	"github.com/fyrsmithlabs/promptpack/internal/metrics"
	"github.com/fyrsmithlabs/promptpack/internal/project"
	"github.com/fyrsmithlabs/promptpack/internal/secrets"
	"github.com/fyrsmithlabs/promptpack/internal/storage"
	"github.com/fyrsmithlabs/promptpack/internal/telemetry"
)

// app holds the wired dependencies of one command invocation.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	store     storage.Store
	manager   project.Manager
	metrics   *metrics.Metrics
	scrubber  secrets.Scrubber
	telemetry *telemetry.Telemetry
}

type appOptions struct {
	configPath string
	storage    string
	dataDir    string
	logLevel   string
	daemon     bool
}

// openApp loads configuration and wires storage, logging and the registry.
func openApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.LoadWithFile(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.storage != "" {
		cfg.Storage.Driver = opts.storage
	}
	if opts.dataDir != "" {
		cfg.Storage.Path = opts.dataDir
	}
	switch {
	case opts.logLevel != "":
		cfg.Logging.Level = opts.logLevel
	case !opts.daemon:
		cfg.Logging.Level = "warn"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
	if err != nil {
		return nil, err
	}

	lcfg, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return nil, err
	}
	provider := tel.LoggerProvider()
	lcfg.Output.OTEL = provider != nil
	logger, err := logging.NewLogger(lcfg, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := tel.Err(); err != nil {
		logger.Warn(ctx, "telemetry degraded", zap.Error(err))
	}

	scrubber, err := secrets.New(cfg.Secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secret scrubber: %w", err)
	}

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	logger.Debug(ctx, "storage opened",
		zap.String("driver", cfg.Storage.Driver),
		zap.String("path", cfg.Storage.Path),
		logging.Secret("dsn", cfg.Storage.DSN),
		zap.Int("cache_size", cfg.Storage.CacheSize))

	return newApp(ctx, cfg, logger, store, scrubber, tel), nil
}

// newApp builds the registry on an already opened store.
func newApp(ctx context.Context, cfg *config.Config, logger *logging.Logger, store storage.Store, scrubber secrets.Scrubber, tel *telemetry.Telemetry) *app {
	m := metrics.New()
	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		manager: project.NewManager(ctx, store,
			project.WithLogger(logger),
			project.WithMetrics(m),
		),
		metrics:   m,
		scrubber:  scrubber,
		telemetry: tel,
	}
}

// promptScrubber returns the scrubber when prompt scrubbing is on, else nil.
func (a *app) promptScrubber() secrets.Scrubber {
	if a.cfg.Prompt.ScrubSecrets {
		return a.scrubber
	}
	return nil
}

// Close releases storage and flushes logs and telemetry.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing storage: %w", err))
	}
	if err := a.telemetry.Shutdown(context.WithoutCancel(ctx)); err != nil {
		errs = append(errs, err)
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
