//go:build integration

package database_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/editorial-workflow-service/internal/database"
	"github.com/helixir/editorial-workflow-service/internal/testutil/pgtest"
)

func TestMigrator_Integration(t *testing.T) {
	db := pgtest.Start(t)

	m, err := database.NewMigrator(db, database.EmbeddedMigrations, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = m.Close() }()

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(3), version)

	t.Run("up is idempotent", func(t *testing.T) {
		assert.NoError(t, m.Up())
	})

	t.Run("step down and back up", func(t *testing.T) {
		require.NoError(t, m.Steps(-1))
		v, _, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(2), v)

		require.NoError(t, m.Steps(1))
		v, _, err = m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(3), v)
	})

	t.Run("force clears version", func(t *testing.T) {
		require.NoError(t, m.Force(3))
		_, dirty, err := m.Version()
		require.NoError(t, err)
		assert.False(t, dirty)
	})
}
