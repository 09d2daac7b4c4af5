package collector

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/editorial-workflow-service/internal/domain"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestBuild_RequiresContextScope(t *testing.T) {
	_, err := New().FilterByStatus(domain.SubmissionStatusQueued).Build()
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)

	_, err = New().FilterByContextIDs().Build()
	assert.ErrorIs(t, err, domain.ErrInvalidQuery, "an empty id list is not a scope")

	_, err = New().AllContexts().FilterByContextIDs(0, -3).Build()
	assert.ErrorIs(t, err, domain.ErrInvalidQuery, "context ids replace the wildcard")

	q, err := New().AllContexts().Build()
	require.NoError(t, err)
	sql, args := q.CountSQL()
	assert.NotContains(t, sql, "WHERE")
	assert.Empty(t, args)
}

func TestBuild_RejectsInvalidFilters(t *testing.T) {
	tests := []struct {
		name string
		c    *Collector
	}{
		{"unknown status", New().FilterByContextIDs(1).FilterByStatus("archived")},
		{"unknown stage", New().FilterByContextIDs(1).FilterByStageIDs(9)},
		{"unknown DOI status", New().FilterByContextIDs(1).FilterByDOIStatuses("pending")},
		{"unknown sort", New().FilterByContextIDs(1).OrderBy("author", false)},
		{"limit too large", New().FilterByContextIDs(1).Limit(MaxLimit + 1)},
		{"negative offset", New().FilterByContextIDs(1).Offset(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.c.Build()
			assert.ErrorIs(t, err, domain.ErrInvalidQuery)
		})
	}
}

func TestBuild_SettersReplace(t *testing.T) {
	q, err := New().
		FilterByContextIDs(1, 2).
		FilterByContextIDs(3, 3).
		FilterByStatus(domain.SubmissionStatusQueued).
		FilterByStatus(domain.SubmissionStatusDeclined, domain.SubmissionStatusPublished).
		Build()
	require.NoError(t, err)

	_, args := q.CountSQL()
	require.Len(t, args, 2)
	assert.Equal(t, []int64{3}, args[0])
	assert.Equal(t, []string{"declined", "published"}, args[1])
}

func TestBuild_OrderIndependent(t *testing.T) {
	a, err := New().At(fixedNow).FilterByContextIDs(1).FilterByStageIDs(domain.StageExternalReview).FilterByIncomplete(false).Build()
	require.NoError(t, err)
	b, err := New().At(fixedNow).FilterByIncomplete(false).FilterByStageIDs(domain.StageExternalReview).FilterByContextIDs(1).Build()
	require.NoError(t, err)

	sqlA, argsA := a.IDsSQL()
	sqlB, argsB := b.IDsSQL()
	assert.Equal(t, sqlA, sqlB)
	assert.Equal(t, argsA, argsB)
}

func TestBuild_Filters(t *testing.T) {
	yes := true
	tests := []struct {
		name     string
		c        *Collector
		contains []string
		args     []any
	}{
		{
			name:     "categories",
			c:        New().FilterByContextIDs(1).FilterByCategoryIDs(7, 5),
			contains: []string{"pcat.category_id = ANY($2)"},
			args:     []any{[]int64{1}, []int64{5, 7}},
		},
		{
			name:     "stages",
			c:        New().FilterByContextIDs(1).FilterByStageIDs(domain.StageProduction, domain.StageCopyediting),
			contains: []string{"s.stage_id = ANY($2)"},
			args:     []any{[]int64{1}, []int32{4, 5}},
		},
		{
			name:     "incomplete",
			c:        New().FilterByContextIDs(1).FilterByIncomplete(yes),
			contains: []string{"s.submission_progress > 0"},
			args:     []any{[]int64{1}},
		},
		{
			name:     "days inactive",
			c:        New().At(fixedNow).FilterByContextIDs(1).FilterByDaysInactive(30),
			contains: []string{"s.date_last_activity < $2"},
			args:     []any{[]int64{1}, fixedNow.AddDate(0, 0, -30)},
		},
		{
			name:     "overdue",
			c:        New().At(fixedNow).FilterByContextIDs(1).FilterByOverdue(true),
			contains: []string{"JOIN review_rounds rr", "ra.date_due < $2", "ra.date_response_due < $2"},
			args:     []any{[]int64{1}, fixedNow},
		},
		{
			name:     "assigned to users",
			c:        New().FilterByContextIDs(1).AssignedTo(9, 4),
			contains: []string{"sa.user_id = ANY($2)", "ra.reviewer_id = ANY($2)", "NOT ra.declined AND NOT ra.cancelled"},
			args:     []any{[]int64{1}, []int64{4, 9}},
		},
		{
			name:     "unassigned",
			c:        New().FilterByContextIDs(1).Unassigned(),
			contains: []string{"s.submission_progress = 0 AND NOT EXISTS", "ug.role_id = ANY($2)"},
			args:     []any{[]int64{1}, managingRoles},
		},
		{
			name:     "DOI statuses",
			c:        New().FilterByContextIDs(1).FilterByDOIStatuses(domain.DOIStatusRegistered),
			contains: []string{"JOIN dois d", "d.status = ANY($2)"},
			args:     []any{[]int64{1}, []string{"registered"}},
		},
		{
			name:     "without DOIs",
			c:        New().FilterByContextIDs(1).FilterByHasDOIs(false),
			contains: []string{"NOT EXISTS (SELECT 1 FROM publications pd"},
			args:     []any{[]int64{1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := tt.c.Build()
			require.NoError(t, err)
			sql, args := q.CountSQL()
			for _, want := range tt.contains {
				assert.Contains(t, sql, want)
			}
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestBuild_AssignedToClears(t *testing.T) {
	q, err := New().FilterByContextIDs(1).Unassigned().AssignedTo().Build()
	require.NoError(t, err)
	sql, _ := q.CountSQL()
	assert.NotContains(t, sql, "stage_assignments")
}

func TestBuild_Search(t *testing.T) {
	t.Run("every token must match", func(t *testing.T) {
		q, err := New().FilterByContextIDs(1).SearchPhrase("  tidal   100%_mix ").Build()
		require.NoError(t, err)
		sql, args := q.CountSQL()

		assert.Equal(t, 2, strings.Count(sql, "jsonb_each_text(ps.title)"))
		assert.Equal(t, []any{[]int64{1}, "%tidal%", `%100\%\_mix%`}, args)
		assert.NotContains(t, sql, "s.submission_id = $")
		assert.NotContains(t, sql, "review_assignments rv", "no privacy rule without an assigned-to filter")
	})

	t.Run("numeric token matches the id", func(t *testing.T) {
		q, err := New().FilterByContextIDs(1).SearchPhrase("42").Build()
		require.NoError(t, err)
		sql, args := q.CountSQL()
		assert.Contains(t, sql, "s.submission_id = $3")
		assert.Equal(t, []any{[]int64{1}, "%42%", int64(42)}, args)
	})

	t.Run("author matches suppressed for assigned reviewers", func(t *testing.T) {
		q, err := New().FilterByContextIDs(1).AssignedTo(11).SearchPhrase("Smith").Build()
		require.NoError(t, err)
		sql, args := q.CountSQL()
		assert.Contains(t, sql, "rv.reviewer_id = ANY($3)")
		assert.Contains(t, sql, "NOT rv.declined AND NOT rv.cancelled")
		assert.Contains(t, sql, "gp.role_id = ANY($4)")
		assert.Equal(t, []any{[]int64{1}, []int64{11}, []int64{11}, managingRoles, "%Smith%"}, args)
	})

	t.Run("unassigned mode checks the searcher", func(t *testing.T) {
		q, err := New().FilterByContextIDs(1).Unassigned().SearchAs(11).SearchPhrase("Smith").Build()
		require.NoError(t, err)
		sql, args := q.CountSQL()
		assert.Contains(t, sql, "review_assignments rv")
		assert.Contains(t, args, []int64{11})

		q, err = New().FilterByContextIDs(1).Unassigned().SearchPhrase("Smith").Build()
		require.NoError(t, err)
		sql, _ = q.CountSQL()
		assert.NotContains(t, sql, "review_assignments rv")
	})
}

func TestBuild_Ordering(t *testing.T) {
	tests := []struct {
		name   string
		c      *Collector
		order  string
		nWhere int
	}{
		{"default", New(), "ORDER BY s.date_submitted DESC NULLS LAST, s.submission_id DESC", 1},
		{"last activity ascending", New().OrderBy(SortLastActivity, false), "ORDER BY s.date_last_activity ASC NULLS LAST, s.submission_id ASC", 1},
		{"sequence", New().OrderBy(SortSequence, false), "ORDER BY pc.seq ASC", 1},
		{"title in submission locale", New().OrderBy(SortTitle, false), "ORDER BY lower(pc.title ->> s.locale) ASC", 1},
		{"title with UI locale", New().OrderBy(SortTitle, false).InLocale("fr_CA"), "ORDER BY lower(COALESCE(NULLIF(pc.title ->> $2, ''), pc.title ->> s.locale)) ASC", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := tt.c.FilterByContextIDs(1).Build()
			require.NoError(t, err)

			sql, args := q.IDsSQL()
			assert.Contains(t, sql, tt.order)
			assert.Equal(t, DefaultLimit, args[len(args)-2])
			assert.Equal(t, 0, args[len(args)-1])

			_, countArgs := q.CountSQL()
			assert.Len(t, countArgs, tt.nWhere, "ordering arguments never reach the count")
		})
	}

	q, err := New().OrderBy(SortTitle, true).InLocale("fr_CA").FilterByContextIDs(1).Limit(10).Offset(20).Build()
	require.NoError(t, err)
	sql, args := q.IDsSQL()
	assert.Contains(t, sql, "LIMIT $3 OFFSET $4")
	assert.Equal(t, []any{[]int64{1}, "fr-CA", 10, 20}, args)
}

type recordingApp struct{ got AppFilters }

func (a *recordingApp) ApplyAppFilters(w *Where, f AppFilters) {
	a.got = f
	w.And("s.context_id <> " + w.Arg(int64(99)))
}

func TestBuild_AppFilterStrategy(t *testing.T) {
	app := &recordingApp{}
	q, err := New().
		FilterByContextIDs(1).
		FilterByHasDOIs(true).
		FilterByDOIStatuses(domain.DOIStatusStale, domain.DOIStatusError).
		WithAppFilter(app).
		Build()
	require.NoError(t, err)

	require.NotNil(t, app.got.HasDOIs)
	assert.True(t, *app.got.HasDOIs)
	assert.Equal(t, []domain.DOIStatus{domain.DOIStatusError, domain.DOIStatusStale}, app.got.DOIStatuses)

	sql, _ := q.CountSQL()
	assert.Contains(t, sql, "s.context_id <> $2")
	assert.NotContains(t, sql, "dois")

	q, err = New().FilterByContextIDs(1).FilterByHasDOIs(true).WithAppFilter(nil).Build()
	require.NoError(t, err)
	sql, _ = q.CountSQL()
	assert.NotContains(t, sql, "doi_id")
}
