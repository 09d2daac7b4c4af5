// Package jobs runs the periodic maintenance of the workflow: recomputing
// cached review round statuses and publishing the overdue review gauge.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/robfig/cron"
	"github.com/rs/zerolog"

	"github.com/helixir/editorial-workflow-service/internal/observability"
)

// ErrJobRunning is returned by RunNow when the job is already executing.
var ErrJobRunning = errors.New("job is already running")

// Job is a unit of scheduled maintenance.
type Job interface {
	// Name identifies the job in logs, metrics and RunNow.
	Name() string
	// Schedule is a cron expression such as "@every 15m".
	Schedule() string
	Run(ctx context.Context) error
}

// Every renders a fixed-interval schedule.
func Every(d time.Duration) string {
	return "@every " + d.String()
}

// Scheduler runs registered jobs on their schedules. A job never overlaps
// with itself: a tick that fires while the previous run is still executing
// is skipped.
type Scheduler struct {
	cron    *cron.Cron
	jobs    map[string]Job
	running mapset.Set[string]
	wg      sync.WaitGroup
	logger  zerolog.Logger
	metrics *observability.Metrics

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler without jobs.
func NewScheduler(logger zerolog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		jobs:    make(map[string]Job),
		running: mapset.NewSet[string](),
		logger:  logger.With().Str("component", "scheduler").Logger(),
		metrics: metrics,
	}
}

// Register adds a job. It fails on a duplicate name or an invalid schedule.
func (s *Scheduler) Register(job Job) error {
	if _, ok := s.jobs[job.Name()]; ok {
		return fmt.Errorf("job %s is already registered", job.Name())
	}
	if _, err := cron.Parse(job.Schedule()); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", job.Schedule(), job.Name(), err)
	}
	err := s.cron.AddFunc(job.Schedule(), func() {
		ctx := s.runContext()
		if ctx == nil {
			return
		}
		if err := s.execute(ctx, job); errors.Is(err, ErrJobRunning) {
			s.logger.Warn().Str("job", job.Name()).Msg("previous run still in progress, skipping tick")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name(), err)
	}
	s.jobs[job.Name()] = job
	return nil
}

// Start begins firing schedules. Jobs receive a context derived from ctx
// that is cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
}

// Stop halts the schedules, cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.ctx = nil
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// RunNow executes a registered job synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}
	return s.execute(ctx, job)
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	if !s.running.Add(job.Name()) {
		return ErrJobRunning
	}
	s.wg.Add(1)
	defer func() {
		s.running.Remove(job.Name())
		s.wg.Done()
	}()

	logger := observability.WithJobContext(s.logger, job.Name(), uuid.NewString())
	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)
	s.metrics.RecordJobRun(job.Name(), elapsed.Seconds(), err)

	if err != nil {
		logger.Error().Err(err).Dur("duration", elapsed).Msg("job failed")
		return err
	}
	logger.Debug().Dur("duration", elapsed).Msg("job completed")
	return nil
}
