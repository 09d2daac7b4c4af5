package collector

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/observability"
	"github.com/helixir/editorial-workflow-service/internal/repository"
)

// Hydrator loads a submission with its publications.
type Hydrator interface {
	Submission(ctx context.Context, submissionID int64) (*domain.Submission, error)
}

// Runner executes built queries against PostgreSQL.
type Runner struct {
	db       repository.DBTX
	hydrator Hydrator
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewRunner creates a query runner. hydrator loads the submissions yielded
// by Submissions.
func NewRunner(db repository.DBTX, hydrator Hydrator, logger zerolog.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{
		db:       db,
		hydrator: hydrator,
		logger:   logger.With().Str("component", "collector").Logger(),
		metrics:  metrics,
	}
}

// Count returns the number of submissions matching q, ignoring pagination.
func (r *Runner) Count(ctx context.Context, q *Query) (n int64, err error) {
	defer r.observe("count", time.Now(), &err)

	sql, args := q.CountSQL()
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return n, nil
}

// IDs returns one page of matching submission ids in query order.
func (r *Runner) IDs(ctx context.Context, q *Query) (ids []int64, err error) {
	defer r.observe("ids", time.Now(), &err)

	sql, args := q.IDsSQL()
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list submission ids: %w", err)
	}
	defer rows.Close()

	ids = make([]int64, 0, q.Limit())
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan submission id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submission ids: %w", err)
	}
	return ids, nil
}

// Submissions yields the hydrated submissions of one page. Each submission
// is loaded only when the consumer reaches it. Submissions deleted between
// the id query and hydration are skipped.
func (r *Runner) Submissions(ctx context.Context, q *Query) iter.Seq2[*domain.Submission, error] {
	return func(yield func(*domain.Submission, error) bool) {
		ids, err := r.IDs(ctx, q)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, id := range ids {
			sub, err := r.hydrator.Submission(ctx, id)
			if errors.Is(err, domain.ErrNotFound) {
				r.logger.Debug().Int64("submission_id", id).Msg("submission vanished before hydration")
				continue
			}
			if !yield(sub, err) || err != nil {
				return
			}
		}
	}
}

func (r *Runner) observe(op string, start time.Time, err *error) {
	elapsed := time.Since(start)
	r.metrics.RecordCollectorQuery(op, elapsed.Seconds(), *err != nil)
	if *err != nil {
		r.logger.Error().Err(*err).Str("operation", op).Msg("collector query failed")
		return
	}
	r.logger.Debug().Str("operation", op).Dur("duration", elapsed).Msg("collector query")
}
