package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/helixir/editorial-workflow-service/migrations"
)

// EmbeddedMigrations selects the schema compiled into the binary.
const EmbeddedMigrations = "embedded"

// Migrator applies the golang-migrate schema over the service pool.
type Migrator struct {
	migrate *migrate.Migrate
	sqlDB   *sql.DB // sql.DB wrapper around pgx pool, must be closed
	logger  zerolog.Logger
}

// NewMigrator creates a new migrator instance.
// migrationsPath is a directory of SQL files, or EmbeddedMigrations to use the
// schema compiled into the binary.
func NewMigrator(db *DB, migrationsPath string, logger zerolog.Logger) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if db.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}
	if migrationsPath == "" {
		return nil, fmt.Errorf("migrations path is required")
	}

	if migrationsPath != EmbeddedMigrations {
		if _, err := os.Stat(migrationsPath); err != nil {
			return nil, fmt.Errorf("migrations path validation failed: %w", err)
		}
	}

	sqlDB := stdlib.OpenDBFromPool(db.pool)

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	var m *migrate.Migrate
	if migrationsPath == EmbeddedMigrations {
		src, srcErr := iofs.New(migrations.FS, ".")
		if srcErr != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to open embedded migrations: %w", srcErr)
		}
		m, err = migrate.NewWithInstance("iofs", src, "postgres", driver)
	} else {
		m, err = migrate.NewWithDatabaseInstance(
			fmt.Sprintf("file://%s", migrationsPath),
			"postgres",
			driver,
		)
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return &Migrator{
		migrate: m,
		sqlDB:   sqlDB,
		logger:  logger,
	}, nil
}

// Up runs all pending migrations.
func (m *Migrator) Up() error {
	m.logger.Info().Msg("applying schema migrations")

	if err := m.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("no migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if v, dirty, err := m.migrate.Version(); err == nil {
		m.logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("schema is up to date")
	}
	return nil
}

// Down rolls back all migrations.
func (m *Migrator) Down() error {
	m.logger.Warn().Msg("rolling back the whole schema")

	if err := m.migrate.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("no migrations to roll back")
			return nil
		}
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}

	m.logger.Info().Msg("schema rolled back")
	return nil
}

// Steps runs n migrations (positive = up, negative = down).
func (m *Migrator) Steps(n int) error {
	m.logger.Info().Int("steps", n).Msg("stepping schema migrations")

	if err := m.migrate.Steps(n); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("no migrations to apply")
			return nil
		}
		// golang-migrate reports a missing file when stepping past the newest version.
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Info().Msg("no more migrations available")
			return nil
		}
		return fmt.Errorf("failed to run migration steps: %w", err)
	}

	m.logger.Info().Int("steps", n).Msg("schema migration steps applied")
	return nil
}

// Version returns the current migration version.
func (m *Migrator) Version() (uint, bool, error) {
	return m.migrate.Version()
}

// Force records version as applied without running it, clearing the dirty flag
// left by a failed migration.
func (m *Migrator) Force(version int) error {
	m.logger.Warn().Int("version", version).Msg("forcing schema version")
	return m.migrate.Force(version)
}

// Close releases the migration source and the database/sql wrapper.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()

	if m.sqlDB != nil {
		if err := m.sqlDB.Close(); err != nil && dbErr == nil {
			dbErr = err
		}
	}

	if sourceErr != nil && dbErr != nil {
		return fmt.Errorf("failed to close migrator: source error: %v, database error: %w", sourceErr, dbErr)
	}
	if sourceErr != nil {
		return fmt.Errorf("failed to close source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}

// DropAll drops every object in the schema (cmd/migrate -drop).
func (m *Migrator) DropAll() error {
	m.logger.Warn().Msg("dropping all schema objects")
	return m.migrate.Drop()
}
