package identity

import (
	"context"
	"errors"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/editorial-workflow-service/internal/domain"
)

func TestPgDirectory_IsAssigned(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		assigned bool
	}{
		{name: "assigned", assigned: true},
		{name: "not assigned", assigned: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			mock.ExpectQuery("FROM stage_assignments.*FROM review_assignments").
				WithArgs(int64(5), int64(10)).
				WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(tt.assigned))

			got, err := NewPgDirectory(mock).IsAssigned(ctx, 5, 10)
			require.NoError(t, err)
			assert.Equal(t, tt.assigned, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("query failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(5), int64(10)).WillReturnError(errors.New("gone"))

		_, err = NewPgDirectory(mock).IsAssigned(ctx, 5, 10)
		assert.ErrorContains(t, err, "gone")
	})
}

func TestPgDirectory_RoleIDsFor(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT DISTINCT ug.role_id").
		WithArgs(int64(5), int64(2), SiteContextID).
		WillReturnRows(pgxmock.NewRows([]string{"role_id"}).
			AddRow(int32(17)).
			AddRow(int32(4096)))

	roles, err := NewPgDirectory(mock).RoleIDsFor(ctx, 5, 2)
	require.NoError(t, err)
	assert.True(t, roles.Equal(mapset.NewSet(domain.RoleSubEditor, domain.RoleReviewer)))
	assert.False(t, IsPrivileged(roles))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasAnyRole(t *testing.T) {
	roles := mapset.NewSet(domain.RoleManager)

	assert.True(t, HasAnyRole(roles, domain.RoleSubEditor, domain.RoleManager))
	assert.False(t, HasAnyRole(roles, domain.RoleReviewer))
	assert.False(t, HasAnyRole(nil, domain.RoleManager))
	assert.True(t, IsPrivileged(roles))
	assert.True(t, IsPrivileged(mapset.NewSet(domain.RoleSiteAdmin)))
}
