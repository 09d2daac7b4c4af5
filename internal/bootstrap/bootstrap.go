// Package bootstrap builds the service's collaborators from configuration.
// The server, the worker and editorialctl share it.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/helixir/editorial-workflow-service/internal/blob"
	"github.com/helixir/editorial-workflow-service/internal/cache"
	"github.com/helixir/editorial-workflow-service/internal/collector"
	"github.com/helixir/editorial-workflow-service/internal/config"
	"github.com/helixir/editorial-workflow-service/internal/dashboard"
	"github.com/helixir/editorial-workflow-service/internal/database"
	"github.com/helixir/editorial-workflow-service/internal/events"
	"github.com/helixir/editorial-workflow-service/internal/identity"
	"github.com/helixir/editorial-workflow-service/internal/locale"
	"github.com/helixir/editorial-workflow-service/internal/observability"
	"github.com/helixir/editorial-workflow-service/internal/repository"
	"github.com/helixir/editorial-workflow-service/internal/workflow"
)

// App holds the wired service.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *observability.Metrics

	DB        *database.DB
	Store     repository.Store
	Publisher events.Publisher
	Locales   *locale.Resolver
	Directory *identity.PgDirectory

	Intake    *workflow.Intake
	Versions  *workflow.Versioning
	Review    *workflow.Review
	Files     *workflow.Files
	Genres    *workflow.Genres
	Runner    *collector.Runner
	Dashboard *dashboard.Dashboard

	redis *redis.Client
}

// LoadConfig reads .env, loads configuration and builds the logger for component.
func LoadConfig(component string) (*config.Config, zerolog.Logger, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	return cfg, logger.With().Str("component", component).Logger(), nil
}

// New connects to PostgreSQL, optionally Redis and Kafka, and builds the
// workflow engines. Close releases everything New opened.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if cfg.Metrics.Enabled {
		a.Metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.DB = db
	logger.Info().Msg("database connection established")

	if cfg.Database.MigrationAutoRun {
		if err := a.migrate(); err != nil {
			a.Close()
			return nil, err
		}
	}

	var store repository.Store = repository.NewPgStore(db)
	if cfg.Redis.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			// The cache degrades to PostgreSQL reads on errors; keep going.
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable at startup")
		}
		store = cache.NewStore(store, cache.NewSubmissionCache(a.redis, cfg.Redis.TTL, cfg.Redis.KeyPrefix, logger, a.Metrics))
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("submission cache enabled")
	}
	a.Store = store

	blobs, err := blob.NewFromConfig(cfg.Blob)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	a.Publisher = events.New(cfg.Kafka, logger, a.Metrics)
	a.Locales = locale.NewResolver(cfg.Locale)
	a.Directory = identity.NewPgDirectory(db)

	a.Versions = workflow.NewVersioning(store, a.Publisher, logger, a.Metrics)
	a.Review = workflow.NewReview(store, a.Versions, a.Publisher, logger, a.Metrics)
	a.Intake = workflow.NewIntake(store, a.Locales, a.Publisher, logger, a.Metrics)
	a.Files = workflow.NewFiles(store, blobs, a.Publisher, logger, a.Metrics)
	a.Genres = workflow.NewGenres(store, logger)

	a.Runner = collector.NewRunner(db, a.Versions, logger, a.Metrics)
	a.Dashboard = dashboard.New(a.Directory, a.Runner, logger)

	return a, nil
}

func (a *App) migrate() error {
	migrator, err := database.NewMigrator(a.DB, a.Config.Database.MigrationPath, a.Logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			a.Logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close flushes the event publisher and closes connections.
func (a *App) Close() {
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("failed to close redis client")
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
