// Package dashboard provides the named submission lists shown to editors and
// reviewers. Each view is a pre-configured collector restricted to the roles
// allowed to see it.
package dashboard

import (
	"context"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"

	"github.com/helixir/editorial-workflow-service/internal/collector"
	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/identity"
)

// ViewID names a dashboard view.
type ViewID string

const (
	ViewActive       ViewID = "active"
	ViewAssignedToMe ViewID = "assigned-to-me"
	ViewUnassigned   ViewID = "unassigned"
	ViewIncomplete   ViewID = "incomplete"
	ViewOverdue      ViewID = "overdue"
	ViewArchived     ViewID = "archived"
	ViewNeedsReview  ViewID = "needs-review"
)

// View is a named collector configuration.
type View struct {
	ID    ViewID
	Name  string
	roles mapset.Set[domain.RoleID]
	apply func(c *collector.Collector, userID int64) *collector.Collector
}

// Allows reports whether a user holding roles may open the view.
func (v View) Allows(roles mapset.Set[domain.RoleID]) bool {
	if roles == nil {
		return false
	}
	return v.roles.ContainsAny(roles.ToSlice()...)
}

// Collector returns the view's collector for a user in a context.
func (v View) Collector(userID, contextID int64) *collector.Collector {
	return v.apply(collector.New().FilterByContextIDs(contextID), userID)
}

var (
	editorial = []domain.RoleID{domain.RoleSiteAdmin, domain.RoleManager, domain.RoleSubEditor}
	managing  = []domain.RoleID{domain.RoleSiteAdmin, domain.RoleManager}
	inProcess = []domain.SubmissionStatus{domain.SubmissionStatusQueued, domain.SubmissionStatusScheduled}
)

// DefaultViews returns the standard views in display order.
func DefaultViews() []View {
	return []View{
		{
			ID:    ViewAssignedToMe,
			Name:  "Assigned to me",
			roles: mapset.NewSet(append(editorial, domain.RoleAssistant)...),
			apply: func(c *collector.Collector, userID int64) *collector.Collector {
				return c.FilterByStatus(inProcess...).AssignedTo(userID).SearchAs(userID).
					OrderBy(collector.SortLastActivity, true)
			},
		},
		{
			ID:    ViewActive,
			Name:  "Active submissions",
			roles: mapset.NewSet(managing...),
			apply: func(c *collector.Collector, userID int64) *collector.Collector {
				return c.FilterByStatus(inProcess...).FilterByIncomplete(false).
					OrderBy(collector.SortLastActivity, true)
			},
		},
		{
			ID:    ViewUnassigned,
			Name:  "Unassigned",
			roles: mapset.NewSet(managing...),
			apply: func(c *collector.Collector, userID int64) *collector.Collector {
				return c.FilterByStatus(inProcess...).Unassigned().SearchAs(userID)
			},
		},
		{
			ID:    ViewIncomplete,
			Name:  "Incomplete submissions",
			roles: mapset.NewSet(managing...),
			apply: func(c *collector.Collector, userID int64) *collector.Collector {
				return c.FilterByIncomplete(true).OrderBy(collector.SortLastModified, true)
			},
		},
		{
			ID:    ViewOverdue,
			Name:  "Overdue reviews",
			roles: mapset.NewSet(editorial...),
			apply: func(c *collector.Collector, userID int64) *collector.Collector {
				return c.FilterByStatus(inProcess...).FilterByOverdue(true)
			},
		},
		{
			ID:    ViewArchived,
			Name:  "Archived",
			roles: mapset.NewSet(managing...),
			apply: func(c *collector.Collector, userID int64) *collector.Collector {
				return c.FilterByStatus(domain.SubmissionStatusPublished, domain.SubmissionStatusDeclined).
					OrderBy(collector.SortLastModified, true)
			},
		},
		{
			ID:    ViewNeedsReview,
			Name:  "Needs review",
			roles: mapset.NewSet(domain.RoleReviewer),
			apply: func(c *collector.Collector, userID int64) *collector.Collector {
				return c.FilterByStatus(inProcess...).
					FilterByStageIDs(domain.StageInternalReview, domain.StageExternalReview).
					AssignedTo(userID).SearchAs(userID)
			},
		},
	}
}

// Counter counts the matches of a built query.
type Counter interface {
	Count(ctx context.Context, q *collector.Query) (int64, error)
}

// Summary is a view the user may open with its current number of submissions.
type Summary struct {
	ID    ViewID `json:"id"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Dashboard resolves views for users.
type Dashboard struct {
	views     []View
	directory identity.Directory
	counter   Counter
	logger    zerolog.Logger
}

// New creates a dashboard over the default views.
func New(directory identity.Directory, counter Counter, logger zerolog.Logger) *Dashboard {
	return &Dashboard{
		views:     DefaultViews(),
		directory: directory,
		counter:   counter,
		logger:    logger.With().Str("component", "dashboard").Logger(),
	}
}

// Views returns the views the user's roles in the context allow, with counts.
func (d *Dashboard) Views(ctx context.Context, userID, contextID int64) ([]Summary, error) {
	roles, err := d.directory.RoleIDsFor(ctx, userID, contextID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve roles for dashboard: %w", err)
	}

	summaries := make([]Summary, 0, len(d.views))
	for _, v := range d.views {
		if !v.Allows(roles) {
			continue
		}
		q, err := v.Collector(userID, contextID).Build()
		if err != nil {
			return nil, fmt.Errorf("build view %s: %w", v.ID, err)
		}
		n, err := d.counter.Count(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("count view %s: %w", v.ID, err)
		}
		summaries = append(summaries, Summary{ID: v.ID, Name: v.Name, Count: n})
	}

	d.logger.Debug().
		Int64("user_id", userID).
		Int64("context_id", contextID).
		Int("views", len(summaries)).
		Msg("dashboard resolved")
	return summaries, nil
}

// Collector returns the collector of one view, checking the user's roles.
// The caller may refine it further (search, paging, ordering).
func (d *Dashboard) Collector(ctx context.Context, id ViewID, userID, contextID int64) (*collector.Collector, error) {
	view, ok := d.view(id)
	if !ok {
		return nil, domain.NewNotFoundError("dashboard view", string(id))
	}
	roles, err := d.directory.RoleIDsFor(ctx, userID, contextID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve roles for dashboard: %w", err)
	}
	if !view.Allows(roles) {
		return nil, fmt.Errorf("%w: view %s requires one of %v", domain.ErrForbidden, id, view.roles.ToSlice())
	}
	return view.Collector(userID, contextID), nil
}

func (d *Dashboard) view(id ViewID) (View, bool) {
	for _, v := range d.views {
		if v.ID == id {
			return v, true
		}
	}
	return View{}, false
}
