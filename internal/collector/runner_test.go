package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/observability"
)

type mapHydrator map[int64]*domain.Submission

func (h mapHydrator) Submission(_ context.Context, id int64) (*domain.Submission, error) {
	if s, ok := h[id]; ok {
		return s, nil
	}
	return nil, domain.NewNotFoundError("submission", "missing")
}

func TestRunner_Count(t *testing.T) {
	ctx := context.Background()

	t.Run("counts matches", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		q, err := New().FilterByContextIDs(1).FilterByStatus(domain.SubmissionStatusQueued).Build()
		require.NoError(t, err)

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM submissions s\s+LEFT JOIN publications pc .* WHERE s.context_id = ANY\(\$1\)\s+AND s.status = ANY\(\$2\)`).
			WithArgs([]int64{1}, []string{"queued"}).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

		n, err := NewRunner(mock, nil, zerolog.Nop(), nil).Count(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("records failures", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		metrics := observability.NewMetrics("test_collector_failures")

		q, err := New().AllContexts().Build()
		require.NoError(t, err)
		mock.ExpectQuery(`SELECT COUNT`).WillReturnError(errors.New("connection reset"))

		_, err = NewRunner(mock, nil, zerolog.Nop(), metrics).Count(ctx, q)
		assert.ErrorContains(t, err, "failed to count submissions")

		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CollectorQueriesFailed.WithLabelValues("count")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRunner_IDsAndSubmissions(t *testing.T) {
	ctx := context.Background()

	build := func(t *testing.T) *Query {
		q, err := New().FilterByContextIDs(1).OrderBy(SortLastActivity, true).Limit(3).Build()
		require.NoError(t, err)
		return q
	}
	expectIDs := func(mock pgxmock.PgxPoolIface, ids ...int64) {
		rows := pgxmock.NewRows([]string{"submission_id"})
		for _, id := range ids {
			rows.AddRow(id)
		}
		mock.ExpectQuery(`SELECT s.submission_id FROM submissions s .* ORDER BY s.date_last_activity DESC NULLS LAST, s.submission_id DESC\s+LIMIT \$2 OFFSET \$3`).
			WithArgs([]int64{1}, 3, 0).
			WillReturnRows(rows)
	}

	t.Run("ids in query order", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		expectIDs(mock, 9, 4, 7)

		ids, err := NewRunner(mock, nil, zerolog.Nop(), nil).IDs(ctx, build(t))
		require.NoError(t, err)
		assert.Equal(t, []int64{9, 4, 7}, ids)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("submissions are hydrated lazily", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		expectIDs(mock, 9, 4, 7)

		hydrator := mapHydrator{
			9: {ID: 9},
			7: {ID: 7},
		}
		var got []int64
		for sub, err := range NewRunner(mock, hydrator, zerolog.Nop(), nil).Submissions(ctx, build(t)) {
			require.NoError(t, err)
			got = append(got, sub.ID)
		}
		assert.Equal(t, []int64{9, 7}, got, "vanished submissions are skipped")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stops when the consumer stops", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		expectIDs(mock, 9, 7)

		calls := 0
		hydrator := countingHydrator{next: mapHydrator{9: {ID: 9}, 7: {ID: 7}}, calls: &calls}
		for range NewRunner(mock, hydrator, zerolog.Nop(), nil).Submissions(ctx, build(t)) {
			break
		}
		assert.Equal(t, 1, calls)
	})

	t.Run("query failure is yielded", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		mock.ExpectQuery(`SELECT s.submission_id`).WillReturnError(errors.New("boom"))

		n := 0
		for sub, err := range NewRunner(mock, mapHydrator{}, zerolog.Nop(), nil).Submissions(ctx, build(t)) {
			n++
			assert.Nil(t, sub)
			assert.ErrorContains(t, err, "failed to list submission ids")
		}
		assert.Equal(t, 1, n)
	})
}

type countingHydrator struct {
	next  Hydrator
	calls *int
}

func (h countingHydrator) Submission(ctx context.Context, id int64) (*domain.Submission, error) {
	*h.calls++
	return h.next.Submission(ctx, id)
}
