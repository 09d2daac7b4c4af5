//go:build integration

// Package pgtest starts a disposable PostgreSQL container with the service
// schema applied, for integration tests.
package pgtest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/helixir/editorial-workflow-service/internal/database"
)

// Image is the PostgreSQL image used for integration tests.
const Image = "postgres:16-alpine"

// Tables lists every table created by the migrations, children first.
var Tables = []string{
	"review_round_files",
	"submission_file_revisions",
	"submission_files",
	"files",
	"review_assignments",
	"stage_assignments",
	"user_user_groups",
	"user_groups",
	"edit_decisions",
	"review_rounds",
	"publication_categories",
	"authors",
	"publications",
	"submissions",
	"genres",
	"dois",
}

// Start runs a PostgreSQL container, applies the embedded migrations and
// returns a connected *database.DB. Container and pool are released with t.Cleanup.
func Start(t *testing.T) *database.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := postgres.Run(ctx, Image,
		postgres.WithDatabase("editorial_test"),
		postgres.WithUsername("editorial"),
		postgres.WithPassword("editorial"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	db := database.Wrap(pool, zerolog.Nop())
	migrator, err := database.NewMigrator(db, database.EmbeddedMigrations, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create migrator: %v", err)
	}
	defer func() { _ = migrator.Close() }()

	if err := migrator.Up(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	return db
}

// Truncate empties the given tables, or every table when none are named.
func Truncate(t *testing.T, db database.DBTX, tables ...string) {
	t.Helper()
	if len(tables) == 0 {
		tables = Tables
	}

	quoted := make([]string, len(tables))
	for i, table := range tables {
		quoted[i] = pq.QuoteIdentifier(table)
	}

	sql := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(quoted, ", "))
	if _, err := db.Exec(context.Background(), sql); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}
