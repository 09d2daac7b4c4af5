//go:build integration

package collector_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/editorial-workflow-service/internal/collector"
	"github.com/helixir/editorial-workflow-service/internal/config"
	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/locale"
	"github.com/helixir/editorial-workflow-service/internal/repository"
	"github.com/helixir/editorial-workflow-service/internal/testutil/pgtest"
	"github.com/helixir/editorial-workflow-service/internal/workflow"
)

const (
	reviewerID          = int64(11)
	cancelledReviewerID = int64(12)
	subEditorID         = int64(3)
)

func TestCollector_Integration(t *testing.T) {
	db := pgtest.Start(t)
	store := repository.NewPgStore(db)
	ctx := context.Background()
	logger := zerolog.Nop()

	locales := locale.NewResolver(config.LocaleConfig{Primary: "en", Supported: []string{"en"}})
	versions := workflow.NewVersioning(store, nil, logger, nil)
	review := workflow.NewReview(store, versions, nil, logger, nil)
	intake := workflow.NewIntake(store, locales, nil, logger, nil)

	submit := func(title, family string) *domain.Submission {
		sub, err := intake.Create(ctx, workflow.SubmissionInput{
			ContextID: 1,
			Title:     domain.LocalizedText{"en": title},
			Authors: []domain.Author{{
				GivenName:  domain.LocalizedText{"en": "Ada"},
				FamilyName: domain.LocalizedText{"en": family},
			}},
			SubmitterID: 7,
		})
		require.NoError(t, err)
		sub, err = intake.Finalize(ctx, sub.ID)
		require.NoError(t, err)
		return sub
	}

	// reviewed: in external review with reviewer 11 (overdue) and sub-editor 3.
	reviewed := submit("Coral reef acoustics", "Smith")
	res, err := review.RecordDecision(ctx, workflow.DecisionInput{SubmissionID: reviewed.ID, EditorID: subEditorID, Decision: domain.DecisionExternalReview})
	require.NoError(t, err)
	due := time.Now().UTC().Add(-48 * time.Hour)
	_, err = review.AssignReviewer(ctx, workflow.ReviewerInput{ReviewRoundID: res.NewRound.ID, ReviewerID: reviewerID, DateDue: &due})
	require.NoError(t, err)

	var groupID int64
	require.NoError(t, db.QueryRow(ctx,
		`INSERT INTO user_groups (context_id, role_id) VALUES (1, $1) RETURNING user_group_id`,
		int(domain.RoleSubEditor)).Scan(&groupID))
	_, err = review.AssignStage(ctx, workflow.StageAssignmentInput{
		SubmissionID: reviewed.ID, UserGroupID: groupID, UserID: subEditorID, RoleID: domain.RoleSubEditor,
	})
	require.NoError(t, err)

	// A cancelled reviewer no longer counts as reviewing the submission.
	cancelled, err := review.AssignReviewer(ctx, workflow.ReviewerInput{ReviewRoundID: res.NewRound.ID, ReviewerID: cancelledReviewerID})
	require.NoError(t, err)
	_, err = review.UpdateReviewer(ctx, cancelled.ID, workflow.ReviewerCancel, "")
	require.NoError(t, err)

	// open: submitted, nobody assigned.
	open := submit("Kelp forest survey", "Jones")

	// draft: never finalized.
	_, err = intake.Create(ctx, workflow.SubmissionInput{ContextID: 1, Title: domain.LocalizedText{"en": "Draft"}, SubmitterID: 7})
	require.NoError(t, err)

	runner := collector.NewRunner(db, versions, logger, nil)
	ids := func(t *testing.T, c *collector.Collector) []int64 {
		t.Helper()
		q, err := c.Build()
		require.NoError(t, err)
		got, err := runner.IDs(ctx, q)
		require.NoError(t, err)
		return got
	}

	t.Run("reviewers cannot find submissions by author name", func(t *testing.T) {
		assert.Equal(t, []int64{reviewed.ID}, ids(t, collector.New().FilterByContextIDs(1).SearchPhrase("smith")))
		assert.Empty(t, ids(t, collector.New().FilterByContextIDs(1).AssignedTo(reviewerID).SearchAs(reviewerID).SearchPhrase("Smith")))
		assert.Equal(t, []int64{reviewed.ID}, ids(t, collector.New().FilterByContextIDs(1).AssignedTo(reviewerID).SearchPhrase("coral")))
		assert.Equal(t, []int64{reviewed.ID}, ids(t, collector.New().FilterByContextIDs(1).AssignedTo(subEditorID).SearchPhrase("Smith")))
		assert.Equal(t, []int64{reviewed.ID}, ids(t, collector.New().FilterByContextIDs(1).AssignedTo(subEditorID).SearchAs(cancelledReviewerID).SearchPhrase("Smith")))
	})

	t.Run("every token must match", func(t *testing.T) {
		assert.Equal(t, []int64{open.ID}, ids(t, collector.New().FilterByContextIDs(1).SearchPhrase("kelp jones")))
		assert.Empty(t, ids(t, collector.New().FilterByContextIDs(1).SearchPhrase("kelp smith")))
		assert.Contains(t, ids(t, collector.New().FilterByContextIDs(1).SearchPhrase(idToken(open.ID))), open.ID)
	})

	t.Run("assignment modes", func(t *testing.T) {
		assert.Equal(t, []int64{open.ID}, ids(t, collector.New().FilterByContextIDs(1).Unassigned()))
		assert.Equal(t, []int64{reviewed.ID}, ids(t, collector.New().FilterByContextIDs(1).AssignedTo(reviewerID)))
	})

	t.Run("overdue and incomplete", func(t *testing.T) {
		assert.Equal(t, []int64{reviewed.ID}, ids(t, collector.New().FilterByContextIDs(1).FilterByOverdue(true)))
		assert.Len(t, ids(t, collector.New().FilterByContextIDs(1).FilterByIncomplete(true)), 1)
		assert.Empty(t, ids(t, collector.New().FilterByContextIDs(2)))
	})

	t.Run("title ordering and hydration", func(t *testing.T) {
		q, err := collector.New().
			FilterByContextIDs(1).
			FilterByIncomplete(false).
			OrderBy(collector.SortTitle, false).
			InLocale("en").
			Build()
		require.NoError(t, err)

		n, err := runner.Count(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		var titles []string
		for sub, err := range runner.Submissions(ctx, q) {
			require.NoError(t, err)
			current := domain.CurrentPublication(sub, sub.Publications)
			require.NotNil(t, current)
			titles = append(titles, current.Title["en"])
		}
		assert.Equal(t, []string{"Coral reef acoustics", "Kelp forest survey"}, titles)
	})

	t.Run("stage and status", func(t *testing.T) {
		assert.Equal(t, []int64{reviewed.ID}, ids(t, collector.New().FilterByContextIDs(1).FilterByStageIDs(domain.StageExternalReview)))
		assert.Empty(t, ids(t, collector.New().AllContexts().FilterByStatus(domain.SubmissionStatusPublished)))
		assert.Empty(t, ids(t, collector.New().FilterByContextIDs(1).FilterByHasDOIs(true)))
	})
}

func idToken(id int64) string {
	return strconv.FormatInt(id, 10)
}
