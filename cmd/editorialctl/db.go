package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/helixir/editorial-workflow-service/internal/bootstrap"
	"github.com/helixir/editorial-workflow-service/internal/database"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "db commands",
}

var migrationsPath string

func init() {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect schema migrations",
	}
	migrate.PersistentFlags().StringVar(&migrationsPath, "path", "", `migrations directory, or "embedded" (default from config)`)

	migrate.AddCommand(
		migrateAction("up", "Run all pending migrations", cobra.NoArgs, func(m *database.Migrator, _ []string) error {
			return m.Up()
		}),
		migrateAction("down", "Roll back all migrations", cobra.NoArgs, func(m *database.Migrator, _ []string) error {
			return m.Down()
		}),
		migrateAction("steps N", "Run N steps (positive=up, negative=down)", cobra.ExactArgs(1), func(m *database.Migrator, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n == 0 {
				return fmt.Errorf("steps must be a non-zero integer")
			}
			return m.Steps(n)
		}),
		migrateAction("force VERSION", "Force the recorded version after a failed migration", cobra.ExactArgs(1), func(m *database.Migrator, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 0 {
				return fmt.Errorf("version must be a non-negative integer")
			}
			return m.Force(v)
		}),
		migrateAction("drop", "Drop every object in the schema", cobra.NoArgs, func(m *database.Migrator, _ []string) error {
			return m.DropAll()
		}),
		migrateAction("version", "Print the current migration version", cobra.NoArgs, func(*database.Migrator, []string) error {
			return nil
		}),
	)
	dbCmd.AddCommand(migrate)
}

// migrateAction builds a migrate subcommand that runs action and then
// prints the schema version.
func migrateAction(use, short string, args cobra.PositionalArgs, action func(m *database.Migrator, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			cfg, logger, err := bootstrap.LoadConfig("migrate")
			if err != nil {
				return err
			}
			path := cfg.Database.MigrationPath
			if migrationsPath != "" {
				path = migrationsPath
			}

			db, err := database.New(cmd.Context(), &cfg.Database, logger)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer db.Close()

			migrator, err := database.NewMigrator(db, path, logger)
			if err != nil {
				return fmt.Errorf("create migrator: %w", err)
			}
			defer func() {
				if closeErr := migrator.Close(); closeErr != nil {
					logger.Error().Err(closeErr).Msg("failed to close migrator")
				}
			}()

			logger.Info().Str("action", cmd.Name()).Str("path", path).Msg("running migration action")
			if err := action(migrator, argv); err != nil {
				return fmt.Errorf("migrate %s: %w", cmd.Name(), err)
			}

			v, dirty, err := migrator.Version()
			if err != nil {
				logger.Warn().Err(err).Msg("could not determine migration version")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", v, dirty)
			return nil
		},
	}
}
