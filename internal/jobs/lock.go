package jobs

import (
	"context"
	"hash/fnv"

	"github.com/rs/zerolog"
)

// Locker runs fn under a cluster-wide lock, reporting false when another
// worker holds it. database.DB implements it with advisory locks.
type Locker interface {
	TryJobLock(ctx context.Context, key int64, fn func(ctx context.Context) error) (bool, error)
}

// exclusiveJob wraps a job so only one worker process runs it at a time.
type exclusiveJob struct {
	Job
	locker Locker
	key    int64
	logger zerolog.Logger
}

// Exclusive wraps job with a cluster-wide lock derived from its name.
func Exclusive(job Job, locker Locker, logger zerolog.Logger) Job {
	return &exclusiveJob{
		Job:    job,
		locker: locker,
		key:    lockKey(job.Name()),
		logger: logger.With().Str("job", job.Name()).Logger(),
	}
}

func (j *exclusiveJob) Run(ctx context.Context) error {
	ran, err := j.locker.TryJobLock(ctx, j.key, j.Job.Run)
	if err == nil && !ran {
		j.logger.Debug().Msg("job lock held by another worker, skipping")
	}
	return err
}

func lockKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("editorial-job:" + name))
	return int64(h.Sum64())
}
