package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("test_editorial_new")

	assert.NotNil(t, m.DecisionsRecorded)
	assert.NotNil(t, m.VersionsCreated)
	assert.NotNil(t, m.PublicationsPublished)
	assert.NotNil(t, m.FilesUploaded)
	assert.NotNil(t, m.RevisionsAppended)
	assert.NotNil(t, m.CacheHits)
	assert.NotNil(t, m.CollectorQueryDuration)
	assert.NotNil(t, m.OverdueAssignments)
	assert.NotNil(t, m.EventPublishFailures)
	assert.NotNil(t, m.JobRuns)
}

func TestRecordDecision(t *testing.T) {
	m := NewMetrics("test_decision_recorded")

	m.RecordDecision("accept")
	m.RecordDecision("accept")
	m.RecordDecision("decline")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.DecisionsRecorded.WithLabelValues("accept")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DecisionsRecorded.WithLabelValues("decline")))
}

func TestRecordVersionsAndPublishing(t *testing.T) {
	m := NewMetrics("test_versions")

	m.RecordVersionCreated()
	m.RecordPublished("published")
	m.RecordSubmissionCreated()
	m.RecordSubmissionDeleted()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.VersionsCreated))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PublicationsPublished.WithLabelValues("published")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubmissionsCreated))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubmissionsDeleted))
}

func TestRecordFileMetrics(t *testing.T) {
	m := NewMetrics("test_files")

	m.RecordFileUploaded("review-file")
	m.RecordRevisionAppended()
	m.RecordFileStageChange("review-file", "review-revision")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.FilesUploaded.WithLabelValues("review-file")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RevisionsAppended))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FileStageChanges.WithLabelValues("review-file", "review-revision")))
}

func TestRecordCacheMetrics(t *testing.T) {
	m := NewMetrics("test_cache")

	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordCacheMiss()
	m.RecordCacheError("get")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheMisses))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheErrors.WithLabelValues("get")))
}

func TestRecordCollectorQuery(t *testing.T) {
	m := NewMetrics("test_collector")

	m.RecordCollectorQuery("count", 0.02, false)
	m.RecordCollectorQuery("ids", 0.5, true)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CollectorQueriesFailed.WithLabelValues("ids")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.CollectorQueriesFailed.WithLabelValues("count")))

	count, err := getHistogramSampleCount(m.CollectorQueryDuration.WithLabelValues("count").(prometheus.Histogram))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestReviewAndJobMetrics(t *testing.T) {
	m := NewMetrics("test_jobs")

	m.SetOverdueAssignments(7)
	m.RecordRoundStatusRefresh("changed")
	m.RecordJobRun("overdue_gauge", 0.1, nil)
	m.RecordJobRun("overdue_gauge", 0.1, errors.New("boom"))
	m.RecordEventPublished("decision.recorded")
	m.RecordEventPublishFailure("decision.recorded")

	assert.Equal(t, float64(7), testutil.ToFloat64(m.OverdueAssignments))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RoundStatusRefreshes.WithLabelValues("changed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.JobRuns.WithLabelValues("overdue_gauge", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.JobRuns.WithLabelValues("overdue_gauge", "failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsPublished.WithLabelValues("decision.recorded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventPublishFailures.WithLabelValues("decision.recorded")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordDecision("accept")
		m.RecordVersionCreated()
		m.RecordFileUploaded("submission")
		m.RecordCacheHit()
		m.RecordCollectorQuery("ids", 1, true)
		m.SetOverdueAssignments(1)
		m.RecordJobRun("x", 1, nil)
	})
}

func getHistogramSampleCount(h prometheus.Histogram) (uint64, error) {
	ch := make(chan prometheus.Metric, 1)
	h.Collect(ch)
	close(ch)

	var m prometheus.Metric
	for m = range ch {
		break
	}

	var metric = &dto.Metric{}
	if err := m.Write(metric); err != nil {
		return 0, err
	}

	return metric.Histogram.GetSampleCount(), nil
}
