// Package cache provides a Redis read-through cache for submission rows.
//
// Store wraps a repository.Store. Submissions().Get outside a transaction is
// served from Redis when possible and filled on a miss. Every submission
// written through Update or Delete is invalidated once the write commits.
// Reads inside a transaction always go to the underlying store so row locks
// keep their meaning.
//
// Redis failures never fail a read or a write: they are logged, counted and
// treated as a miss.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/observability"
	"github.com/helixir/editorial-workflow-service/internal/repository"
)

// DefaultTTL is used when the configured TTL is not positive.
const DefaultTTL = 10 * time.Minute

// SubmissionCache stores JSON-encoded submissions under "<prefix>submission:<id>".
type SubmissionCache struct {
	client  redis.Cmdable
	ttl     time.Duration
	prefix  string
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewSubmissionCache creates a cache over client.
func NewSubmissionCache(client redis.Cmdable, ttl time.Duration, prefix string, logger zerolog.Logger, metrics *observability.Metrics) *SubmissionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SubmissionCache{
		client:  client,
		ttl:     ttl,
		prefix:  prefix,
		logger:  logger.With().Str("component", "submission_cache").Logger(),
		metrics: metrics,
	}
}

func (c *SubmissionCache) key(id int64) string {
	return c.prefix + "submission:" + strconv.FormatInt(id, 10)
}

// Get returns the cached submission. The second result is false on a miss or
// a backend failure.
func (c *SubmissionCache) Get(ctx context.Context, id int64) (*domain.Submission, bool) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.fail("get", id, err)
		}
		c.metrics.RecordCacheMiss()
		return nil, false
	}

	var sub domain.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		c.fail("decode", id, err)
		c.metrics.RecordCacheMiss()
		return nil, false
	}
	c.metrics.RecordCacheHit()
	return &sub, true
}

// Set stores a submission row. Hydrated publications are not cached.
func (c *SubmissionCache) Set(ctx context.Context, sub *domain.Submission) {
	row := *sub
	row.Publications = nil
	data, err := json.Marshal(row)
	if err != nil {
		c.fail("encode", sub.ID, err)
		return
	}
	if err := c.client.Set(ctx, c.key(sub.ID), data, c.ttl).Err(); err != nil {
		c.fail("set", sub.ID, err)
	}
}

// Invalidate drops the cached rows of the given submissions.
func (c *SubmissionCache) Invalidate(ctx context.Context, ids ...int64) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.fail("invalidate", ids[0], err)
	}
}

// ReadThrough returns the cached submission or loads, caches and returns it.
// Load errors are returned unchanged and nothing is cached.
func (c *SubmissionCache) ReadThrough(ctx context.Context, id int64, load func(context.Context, int64) (*domain.Submission, error)) (*domain.Submission, error) {
	if sub, ok := c.Get(ctx, id); ok {
		return sub, nil
	}
	sub, err := load(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Set(ctx, sub)
	return sub, nil
}

func (c *SubmissionCache) fail(op string, id int64, err error) {
	c.metrics.RecordCacheError(op)
	c.logger.Error().Err(err).Str("operation", op).Int64("submission_id", id).Msg("submission cache failure")
}

// Compile-time interface verification.
var _ repository.Store = (*Store)(nil)

// Store is a repository.Store whose submission reads go through a SubmissionCache.
type Store struct {
	repository.Store
	cache *SubmissionCache

	// touched collects submissions written inside the current transaction.
	// It is nil outside transactions.
	touched mapset.Set[int64]
}

// NewStore wraps inner. A nil cache disables caching.
func NewStore(inner repository.Store, cache *SubmissionCache) repository.Store {
	if cache == nil {
		return inner
	}
	return &Store{Store: inner, cache: cache}
}

// Submissions returns the cached submission repository.
func (s *Store) Submissions() repository.SubmissionRepository {
	return &submissions{inner: s.Store.Submissions(), store: s}
}

// WithTx runs fn in a transaction of the wrapped store and invalidates the
// submissions fn wrote once the transaction commits.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.touched != nil {
		return fn(s)
	}

	touched := mapset.NewSet[int64]()
	err := s.Store.WithTx(ctx, func(tx repository.Store) error {
		return fn(&Store{Store: tx, cache: s.cache, touched: touched})
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, touched.ToSlice()...)
	return nil
}

// written records a write: deferred to commit inside a transaction,
// immediate otherwise.
func (s *Store) written(ctx context.Context, id int64) {
	if s.touched != nil {
		s.touched.Add(id)
		return
	}
	s.cache.Invalidate(ctx, id)
}

type submissions struct {
	inner repository.SubmissionRepository
	store *Store
}

func (r *submissions) Create(ctx context.Context, sub *domain.Submission) error {
	return r.inner.Create(ctx, sub)
}

func (r *submissions) Get(ctx context.Context, id int64) (*domain.Submission, error) {
	if r.store.touched != nil {
		return r.inner.Get(ctx, id)
	}
	return r.store.cache.ReadThrough(ctx, id, r.inner.Get)
}

func (r *submissions) GetForUpdate(ctx context.Context, id int64) (*domain.Submission, error) {
	return r.inner.GetForUpdate(ctx, id)
}

func (r *submissions) Update(ctx context.Context, id int64, fn func(*domain.Submission) error) error {
	if err := r.inner.Update(ctx, id, fn); err != nil {
		return err
	}
	r.store.written(ctx, id)
	return nil
}

func (r *submissions) Delete(ctx context.Context, id int64) error {
	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}
	r.store.written(ctx, id)
	return nil
}
