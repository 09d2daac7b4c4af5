package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/editorial-workflow-service/internal/domain"
)

func TestWrapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"no rows maps to not found", pgx.ErrNoRows, domain.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "review_rounds_key"}, domain.ErrConstraintViolation},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, domain.ErrConstraintViolation},
		{"check violation", &pgconn.PgError{Code: "23514", ConstraintName: "edit_decisions_append_only"}, domain.ErrConstraintViolation},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, domain.ErrConflict},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, domain.ErrConflict},
		{"lock timeout", &pgconn.PgError{Code: "55P03"}, domain.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapError(tt.err, "do thing", "review_round", "7")
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
		})
	}

	t.Run("keeps the constraint name", func(t *testing.T) {
		err := wrapError(&pgconn.PgError{Code: "23505", ConstraintName: "genres_context_key"}, "create genre", "genre", "")

		var cv *domain.ConstraintViolationError
		require.True(t, errors.As(err, &cv))
		assert.Equal(t, "genres_context_key", cv.Constraint)
	})

	t.Run("wraps unknown errors with the action", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := wrapError(cause, "list genres", "genre", "")

		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "failed to list genres")
		assert.False(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("unknown pg code is wrapped", func(t *testing.T) {
		err := wrapError(&pgconn.PgError{Code: "42P01"}, "get submission", "submission", "1")
		assert.Contains(t, err.Error(), "failed to get submission")
		assert.False(t, errors.Is(err, domain.ErrConstraintViolation))
	})
}

func TestApplyPaginationDefaults(t *testing.T) {
	tests := []struct {
		name                  string
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{"zero limit uses default", 0, 0, defaultFilterLimit, 0},
		{"negative limit uses default", -5, 10, defaultFilterLimit, 10},
		{"limit above max is clamped", maxFilterLimit + 1, 0, maxFilterLimit, 0},
		{"negative offset is zeroed", 20, -3, 20, 0},
		{"valid values pass through", 50, 100, 50, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := tt.limit, tt.offset
			applyPaginationDefaults(&limit, &offset)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

func TestInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits when fn succeeds", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE genres").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err = inTx(ctx, mock, func(db DBTX) error {
			_, err := db.Exec(ctx, "UPDATE genres SET enabled = false")
			return err
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err = inTx(ctx, mock, func(db DBTX) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure is returned", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

		called := false
		err = inTx(ctx, mock, func(db DBTX) error {
			called = true
			return nil
		})
		assert.Error(t, err)
		assert.False(t, called)
		assert.Contains(t, err.Error(), "failed to begin transaction")
	})
}

func TestCollectRows(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT genre_id").
		WillReturnRows(pgxmock.NewRows([]string{"genre_id"}).AddRow(int64(1)).AddRow(int64(2)))

	rows, err := mock.Query(ctx, "SELECT genre_id FROM genres")
	require.NoError(t, err)

	ids, err := collectRows(rows, func(row pgx.Rows) (int64, error) {
		var id int64
		err := row.Scan(&id)
		return id, err
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
}

func TestNullString(t *testing.T) {
	assert.Nil(t, nullString(""))
	require.NotNil(t, nullString("0000-0002-1825-0097"))
	assert.Equal(t, "0000-0002-1825-0097", *nullString("0000-0002-1825-0097"))
}
