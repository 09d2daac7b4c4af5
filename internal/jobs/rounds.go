package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/helixir/editorial-workflow-service/internal/config"
	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/observability"
)

// Job names.
const (
	RoundRefreshJob = "round_status_refresh"
	OverdueGaugeJob = "overdue_gauge"
)

// RoundStatusRefresher recomputes cached review round statuses.
type RoundStatusRefresher interface {
	ActiveRounds(ctx context.Context, afterID int64, limit int) ([]*domain.ReviewRound, error)
	RefreshRoundStatus(ctx context.Context, roundID int64) (domain.RoundStatus, bool, error)
}

// RefreshResult summarizes one refresh run.
type RefreshResult struct {
	Scanned int
	Changed int
	Failed  int
}

// RoundRefresh recomputes the status of every active round, page by page,
// throttled to a fixed rate so the job never competes with request traffic.
type RoundRefresh struct {
	rounds   RoundStatusRefresher
	interval time.Duration
	batch    int
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

// NewRoundRefresh creates the refresh job from the jobs configuration.
func NewRoundRefresh(rounds RoundStatusRefresher, cfg config.JobsConfig, logger zerolog.Logger) *RoundRefresh {
	batch := cfg.RoundRefreshBatch
	if batch <= 0 {
		batch = 200
	}
	return &RoundRefresh{
		rounds:   rounds,
		interval: cfg.RoundRefreshInterval,
		batch:    batch,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RoundRefreshRPS), 1),
		logger:   logger.With().Str("job", RoundRefreshJob).Logger(),
	}
}

func (j *RoundRefresh) Name() string     { return RoundRefreshJob }
func (j *RoundRefresh) Schedule() string { return Every(j.interval) }

// Run refreshes all active rounds. Individual failures are logged and
// counted; the run fails if any round failed or ctx ends.
func (j *RoundRefresh) Run(ctx context.Context) error {
	res, err := j.Refresh(ctx)
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d review rounds failed to refresh", res.Failed, res.Scanned)
	}
	return nil
}

// Refresh performs one pass and reports what it did.
func (j *RoundRefresh) Refresh(ctx context.Context) (RefreshResult, error) {
	var (
		res     RefreshResult
		afterID int64
	)
	for {
		rounds, err := j.rounds.ActiveRounds(ctx, afterID, j.batch)
		if err != nil {
			return res, fmt.Errorf("failed to list active review rounds after %d: %w", afterID, err)
		}
		for _, round := range rounds {
			if err := j.limiter.Wait(ctx); err != nil {
				return res, err
			}
			res.Scanned++
			_, changed, err := j.rounds.RefreshRoundStatus(ctx, round.ID)
			switch {
			case err != nil:
				res.Failed++
				j.logger.Warn().Err(err).Int64("review_round_id", round.ID).Msg("failed to refresh review round")
			case changed:
				res.Changed++
			}
			afterID = round.ID
		}
		if len(rounds) < j.batch {
			break
		}
	}

	j.logger.Info().
		Int("scanned", res.Scanned).
		Int("changed", res.Changed).
		Int("failed", res.Failed).
		Msg("review round statuses refreshed")
	return res, nil
}

// OverdueCounter counts overdue review assignments.
type OverdueCounter interface {
	CountOverdue(ctx context.Context) (int, error)
}

// OverdueGauge publishes the number of overdue review assignments.
type OverdueGauge struct {
	counter  OverdueCounter
	interval time.Duration
	metrics  *observability.Metrics
}

// NewOverdueGauge creates the gauge job.
func NewOverdueGauge(counter OverdueCounter, interval time.Duration, metrics *observability.Metrics) *OverdueGauge {
	return &OverdueGauge{counter: counter, interval: interval, metrics: metrics}
}

func (j *OverdueGauge) Name() string     { return OverdueGaugeJob }
func (j *OverdueGauge) Schedule() string { return Every(j.interval) }

func (j *OverdueGauge) Run(ctx context.Context) error {
	n, err := j.counter.CountOverdue(ctx)
	if err != nil {
		return fmt.Errorf("failed to count overdue review assignments: %w", err)
	}
	j.metrics.SetOverdueAssignments(n)
	return nil
}
