package main

import (
	"context"
	"fmt"

	"github.com/ozonscout/backend/config"
	"github.com/ozonscout/backend/internal/domain"
	"github.com/ozonscout/backend/internal/infrastructure/cache"
	"github.com/ozonscout/backend/internal/infrastructure/fetch"
	"github.com/ozonscout/backend/internal/infrastructure/headers"
	"github.com/ozonscout/backend/internal/infrastructure/ozon"
	"github.com/ozonscout/backend/internal/infrastructure/persistence"
	"github.com/ozonscout/backend/internal/logging"
	"github.com/ozonscout/backend/internal/usecase"
	"go.uber.org/zap"
)

// app is the wired pipeline shared by every command
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      persistence.Database
	service *usecase.SearchService
}

// loadConfig loads configuration from the .env file and environment variables.
func loadConfig(envFile string) (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

// openDatabase connects and applies the connection pool settings
func openDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (persistence.Database, error) {
	db, err := persistence.NewDatabase(ctx, cfg.Database.URL, logger)
	if err != nil {
		return persistence.Database{}, fmt.Errorf("open database: %w", err)
	}
	if !db.IsSQLite() {
		if err := db.ConfigurePool(cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime); err != nil {
			_ = db.Close()
			return persistence.Database{}, fmt.Errorf("configure pool: %w", err)
		}
	}
	return db, nil
}

// newApp wires the pipeline. Background work (header file watching, identity
// cache sweeping) stops when ctx is cancelled.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	headerProvider, err := newHeaderProvider(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	executor := fetch.NewExecutor(headerProvider, fetch.ExecutorConfig{
		Timeout:           cfg.Ozon.Timeout,
		RequestsPerSecond: cfg.RateLimit.Ozon,
		Burst:             1,
	}, logger.Named("fetch"))

	client, err := ozon.NewClient(executor, fetch.NewRetrier(logger.Named("fetch")), ozon.Config{
		BaseURL:       cfg.Ozon.BaseURL,
		RetryAttempts: cfg.Ozon.RetryAttempts,
		RetryDelay:    cfg.Ozon.RetryDelay,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create marketplace client: %w", err)
	}

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := persistence.AutoMigrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	identities := cache.NewMemoryCache[domain.Identity]()
	identities.StartCleanup(ctx, cache.DefaultCleanupInterval)

	service := usecase.NewSearchService(
		client,
		persistence.NewMatchStore(db, cfg.Cache.FreshnessWindow, logger),
		identities,
		usecase.SearchServiceConfig{IdentityTTL: cfg.Cache.IdentityTTL},
		logger,
	)

	return &app{cfg: cfg, logger: logger, db: db, service: service}, nil
}

// newHeaderProvider uses the configured headers alone, or layers the headers
// file over them and keeps it reloaded when one is configured
func newHeaderProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.HeaderProvider, error) {
	if cfg.Ozon.HeadersFile == "" {
		return headers.NewStatic(cfg.Ozon.Headers()), nil
	}

	provider, err := headers.NewFileProvider(cfg.Ozon.HeadersFile, cfg.Ozon.Headers(), logger.Named("headers"))
	if err != nil {
		return nil, fmt.Errorf("load headers file: %w", err)
	}
	if err := provider.Watch(ctx); err != nil {
		logger.Warn("headers file will not be reloaded", zap.Error(err))
	}
	return provider, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", zap.Error(err))
	}
}
