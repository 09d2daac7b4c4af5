package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the editorial workflow service.
// Metrics are organized by subsystem: workflow, files, cache, collector, events
// and jobs. All collectors are registered via promauto with the default registry.
//
// Record methods are safe to call on a nil *Metrics.
type Metrics struct {
	// DecisionsRecorded counts editorial decisions, labeled by decision code.
	DecisionsRecorded *prometheus.CounterVec

	// VersionsCreated counts new publication versions.
	VersionsCreated prometheus.Counter

	// PublicationsPublished counts publish operations, labeled by resulting status.
	PublicationsPublished *prometheus.CounterVec

	// SubmissionsCreated counts submissions created at intake.
	SubmissionsCreated prometheus.Counter

	// SubmissionsDeleted counts cascading submission deletions.
	SubmissionsDeleted prometheus.Counter

	// FilesUploaded counts new submission files, labeled by file stage.
	FilesUploaded *prometheus.CounterVec

	// RevisionsAppended counts file revisions appended to existing files.
	RevisionsAppended prometheus.Counter

	// FileStageChanges counts file stage moves, labeled by source and target stage.
	FileStageChanges *prometheus.CounterVec

	// CacheHits counts submission cache hits.
	CacheHits prometheus.Counter

	// CacheMisses counts submission cache misses.
	CacheMisses prometheus.Counter

	// CacheErrors counts cache backend failures, labeled by operation.
	CacheErrors *prometheus.CounterVec

	// CollectorQueryDuration observes collector query duration in seconds, labeled by operation.
	CollectorQueryDuration *prometheus.HistogramVec

	// CollectorQueriesFailed counts failed collector queries, labeled by operation.
	CollectorQueriesFailed *prometheus.CounterVec

	// OverdueAssignments is the number of overdue review assignments at the last gauge run.
	OverdueAssignments prometheus.Gauge

	// RoundStatusRefreshes counts round status recomputations, labeled by result.
	RoundStatusRefreshes *prometheus.CounterVec

	// EventsPublished counts domain events delivered, labeled by event type.
	EventsPublished *prometheus.CounterVec

	// EventPublishFailures counts domain events that could not be delivered, labeled by event type.
	EventPublishFailures *prometheus.CounterVec

	// JobRuns counts scheduled job executions, labeled by job and result.
	JobRuns *prometheus.CounterVec

	// JobDuration observes scheduled job duration in seconds, labeled by job.
	JobDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Workflow
		DecisionsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "decisions_recorded_total",
			Help:      "Total number of editorial decisions recorded",
		}, []string{"decision"}),
		VersionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "versions_created_total",
			Help:      "Total number of publication versions created",
		}),
		PublicationsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "publications_published_total",
			Help:      "Total number of publish operations",
		}, []string{"status"}),
		SubmissionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "submissions_created_total",
			Help:      "Total number of submissions created",
		}),
		SubmissionsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "submissions_deleted_total",
			Help:      "Total number of submissions deleted",
		}),

		// Files
		FilesUploaded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "uploaded_total",
			Help:      "Total number of submission files uploaded",
		}, []string{"file_stage"}),
		RevisionsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "revisions_appended_total",
			Help:      "Total number of revisions appended to existing files",
		}),
		FileStageChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "stage_changes_total",
			Help:      "Total number of file stage changes",
		}, []string{"from", "to"}),

		// Cache
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of submission cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of submission cache misses",
		}),
		CacheErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "errors_total",
			Help:      "Total number of submission cache backend errors",
		}, []string{"operation"}),

		// Collector
		CollectorQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "query_duration_seconds",
			Help:      "Duration of collector queries in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),
		CollectorQueriesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "queries_failed_total",
			Help:      "Total number of failed collector queries",
		}, []string{"operation"}),

		// Review assignments
		OverdueAssignments: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "review",
			Name:      "overdue_assignments",
			Help:      "Number of overdue review assignments",
		}),
		RoundStatusRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "review",
			Name:      "round_status_refreshes_total",
			Help:      "Total number of review round status recomputations",
		}, []string{"result"}),

		// Events
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of domain events published",
		}, []string{"event_type"}),
		EventPublishFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "publish_failures_total",
			Help:      "Total number of domain events that failed to publish",
		}, []string{"event_type"}),

		// Jobs
		JobRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Total number of scheduled job runs",
		}, []string{"job", "result"}),
		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Duration of scheduled job runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
	}
}

// RecordDecision records an editorial decision.
func (m *Metrics) RecordDecision(decision string) {
	if m == nil {
		return
	}
	m.DecisionsRecorded.WithLabelValues(decision).Inc()
}

// RecordVersionCreated records a new publication version.
func (m *Metrics) RecordVersionCreated() {
	if m == nil {
		return
	}
	m.VersionsCreated.Inc()
}

// RecordPublished records a publish operation ending in status.
func (m *Metrics) RecordPublished(status string) {
	if m == nil {
		return
	}
	m.PublicationsPublished.WithLabelValues(status).Inc()
}

// RecordSubmissionCreated records a new submission.
func (m *Metrics) RecordSubmissionCreated() {
	if m == nil {
		return
	}
	m.SubmissionsCreated.Inc()
}

// RecordSubmissionDeleted records a cascading submission deletion.
func (m *Metrics) RecordSubmissionDeleted() {
	if m == nil {
		return
	}
	m.SubmissionsDeleted.Inc()
}

// RecordFileUploaded records a new submission file.
func (m *Metrics) RecordFileUploaded(fileStage string) {
	if m == nil {
		return
	}
	m.FilesUploaded.WithLabelValues(fileStage).Inc()
}

// RecordRevisionAppended records a revision appended to an existing file.
func (m *Metrics) RecordRevisionAppended() {
	if m == nil {
		return
	}
	m.RevisionsAppended.Inc()
}

// RecordFileStageChange records a file moving between stages.
func (m *Metrics) RecordFileStageChange(from, to string) {
	if m == nil {
		return
	}
	m.FileStageChanges.WithLabelValues(from, to).Inc()
}

// RecordCacheHit records a submission cache hit.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// RecordCacheMiss records a submission cache miss.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

// RecordCacheError records a cache backend failure.
func (m *Metrics) RecordCacheError(operation string) {
	if m == nil {
		return
	}
	m.CacheErrors.WithLabelValues(operation).Inc()
}

// RecordCollectorQuery records a collector query.
func (m *Metrics) RecordCollectorQuery(operation string, durationSeconds float64, failed bool) {
	if m == nil {
		return
	}
	m.CollectorQueryDuration.WithLabelValues(operation).Observe(durationSeconds)
	if failed {
		m.CollectorQueriesFailed.WithLabelValues(operation).Inc()
	}
}

// SetOverdueAssignments sets the overdue assignments gauge.
func (m *Metrics) SetOverdueAssignments(count int) {
	if m == nil {
		return
	}
	m.OverdueAssignments.Set(float64(count))
}

// RecordRoundStatusRefresh records one round status recomputation with result
// changed, unchanged or failed.
func (m *Metrics) RecordRoundStatusRefresh(result string) {
	if m == nil {
		return
	}
	m.RoundStatusRefreshes.WithLabelValues(result).Inc()
}

// RecordEventPublished records a delivered domain event.
func (m *Metrics) RecordEventPublished(eventType string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventPublishFailure records a domain event that could not be delivered.
func (m *Metrics) RecordEventPublishFailure(eventType string) {
	if m == nil {
		return
	}
	m.EventPublishFailures.WithLabelValues(eventType).Inc()
}

// RecordJobRun records a scheduled job run.
func (m *Metrics) RecordJobRun(job string, durationSeconds float64, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.JobRuns.WithLabelValues(job, result).Inc()
	m.JobDuration.WithLabelValues(job).Observe(durationSeconds)
}
