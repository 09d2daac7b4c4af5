package dashboard

import (
	"context"
	"errors"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/editorial-workflow-service/internal/collector"
	"github.com/helixir/editorial-workflow-service/internal/domain"
)

type fakeDirectory struct {
	roles map[int64][]domain.RoleID
	err   error
}

func (d fakeDirectory) IsAssigned(context.Context, int64, int64) (bool, error) {
	return false, nil
}

func (d fakeDirectory) RoleIDsFor(_ context.Context, userID, _ int64) (mapset.Set[domain.RoleID], error) {
	if d.err != nil {
		return nil, d.err
	}
	return mapset.NewSet(d.roles[userID]...), nil
}

type recordingCounter struct {
	sql []string
	n   int64
	err error
}

func (c *recordingCounter) Count(_ context.Context, q *collector.Query) (int64, error) {
	sql, _ := q.CountSQL()
	c.sql = append(c.sql, sql)
	return c.n, c.err
}

const (
	managerID  = int64(1)
	editorID   = int64(2)
	reviewerID = int64(3)
	authorID   = int64(4)
)

var directory = fakeDirectory{roles: map[int64][]domain.RoleID{
	managerID:  {domain.RoleManager},
	editorID:   {domain.RoleSubEditor},
	reviewerID: {domain.RoleReviewer},
	authorID:   {domain.RoleAuthor},
}}

func viewIDs(summaries []Summary) []ViewID {
	ids := make([]ViewID, len(summaries))
	for i, s := range summaries {
		ids[i] = s.ID
	}
	return ids
}

func TestDashboard_Views(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		userID   int64
		expected []ViewID
	}{
		{"manager", managerID, []ViewID{ViewAssignedToMe, ViewActive, ViewUnassigned, ViewIncomplete, ViewOverdue, ViewArchived}},
		{"sub-editor", editorID, []ViewID{ViewAssignedToMe, ViewOverdue}},
		{"reviewer", reviewerID, []ViewID{ViewNeedsReview}},
		{"author", authorID, []ViewID{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &recordingCounter{n: 5}
			summaries, err := New(directory, counter, zerolog.Nop()).Views(ctx, tt.userID, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, viewIDs(summaries))
			assert.Len(t, counter.sql, len(tt.expected))
			for _, s := range summaries {
				assert.Equal(t, int64(5), s.Count)
				assert.NotEmpty(t, s.Name)
			}
		})
	}
}

func TestDashboard_ViewsErrors(t *testing.T) {
	ctx := context.Background()

	_, err := New(fakeDirectory{err: errors.New("db down")}, &recordingCounter{}, zerolog.Nop()).Views(ctx, managerID, 1)
	assert.ErrorContains(t, err, "failed to resolve roles")

	_, err = New(directory, &recordingCounter{err: errors.New("timeout")}, zerolog.Nop()).Views(ctx, managerID, 1)
	assert.ErrorContains(t, err, "count view assigned-to-me")
}

func TestDashboard_Collector(t *testing.T) {
	ctx := context.Background()
	d := New(directory, &recordingCounter{}, zerolog.Nop())

	t.Run("unknown view", func(t *testing.T) {
		_, err := d.Collector(ctx, "starred", managerID, 1)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("role required", func(t *testing.T) {
		_, err := d.Collector(ctx, ViewUnassigned, reviewerID, 1)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("reviewer queue", func(t *testing.T) {
		c, err := d.Collector(ctx, ViewNeedsReview, reviewerID, 7)
		require.NoError(t, err)

		q, err := c.SearchPhrase("Smith").Build()
		require.NoError(t, err)
		sql, args := q.CountSQL()
		assert.Contains(t, sql, "s.stage_id = ANY($3)")
		assert.Contains(t, sql, "ra.reviewer_id = ANY($4)")
		assert.Contains(t, sql, "review_assignments rv", "author matches are hidden from the reviewer")
		assert.Equal(t, []int64{7}, args[0])
		assert.Equal(t, []int32{2, 3}, args[2])
		assert.Equal(t, []int64{reviewerID}, args[3])
	})

	t.Run("unassigned", func(t *testing.T) {
		c, err := d.Collector(ctx, ViewUnassigned, managerID, 1)
		require.NoError(t, err)
		q, err := c.Build()
		require.NoError(t, err)
		sql, _ := q.CountSQL()
		assert.Contains(t, sql, "s.submission_progress = 0 AND NOT EXISTS")
	})
}

func TestView_Allows(t *testing.T) {
	views := DefaultViews()
	require.Len(t, views, 7)

	seen := mapset.NewSet[ViewID]()
	for _, v := range views {
		assert.True(t, seen.Add(v.ID), "duplicate view %s", v.ID)
		assert.False(t, v.Allows(nil))
		assert.True(t, v.Allows(mapset.NewSet(domain.RoleAuthor, domain.RoleSiteAdmin)) || v.ID == ViewNeedsReview)

		_, err := v.Collector(managerID, 1).Build()
		assert.NoError(t, err, "view %s must build", v.ID)
	}
}
