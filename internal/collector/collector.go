// Package collector composes submission listing queries.
//
// A Collector accumulates filters through chained setters. Setters are
// order-independent and idempotent: calling one again replaces its previous
// value. Build turns the filters into a Query that a Runner executes for a
// count, a page of ids or a lazy sequence of hydrated submissions.
//
//	q, err := collector.New().
//	    FilterByContextIDs(1).
//	    FilterByStatus(domain.SubmissionStatusQueued).
//	    AssignedTo(userID).
//	    SearchPhrase("tidal 42").
//	    Build()
//
// Every query must be scoped: either FilterByContextIDs with at least one id
// or AllContexts. Build fails with domain.ErrInvalidQuery otherwise.
package collector

import (
	"slices"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/locale"
)

// SortKey names a supported ordering.
type SortKey string

const (
	SortDateSubmitted SortKey = "date_submitted"
	SortDatePublished SortKey = "date_published"
	SortLastActivity  SortKey = "last_activity"
	SortLastModified  SortKey = "last_modified"
	SortSequence      SortKey = "sequence"
	SortTitle         SortKey = "title"
)

// Valid reports whether k is a supported sort key.
func (k SortKey) Valid() bool {
	switch k {
	case SortDateSubmitted, SortDatePublished, SortLastActivity, SortLastModified, SortSequence, SortTitle:
		return true
	default:
		return false
	}
}

type assignedMode int

const (
	assignedAny assignedMode = iota
	assignedUsers
	assignedNone
)

// Collector accumulates submission filters. The zero value is not usable;
// call New.
type Collector struct {
	contextIDs   []int64
	allContexts  bool
	categoryIDs  []int64
	statuses     []domain.SubmissionStatus
	stageIDs     []domain.Stage
	incomplete   *bool
	overdue      bool
	daysInactive int

	assigned   assignedMode
	assignedTo []int64

	searchPhrase string
	searcherID   int64

	doiStatuses []domain.DOIStatus
	hasDOIs     *bool

	limit  int
	offset int

	sortKey  SortKey
	sortDesc bool
	uiLocale string

	now time.Time
	app AppFilter
}

// New returns a collector ordered by date submitted, newest first, with the
// DOI strategy for app-specific filters.
func New() *Collector {
	return &Collector{
		sortKey:  SortDateSubmitted,
		sortDesc: true,
		app:      DOIFilter{},
	}
}

// FilterByContextIDs scopes the query to contexts. It clears AllContexts.
func (c *Collector) FilterByContextIDs(ids ...int64) *Collector {
	c.contextIDs = uniqueIDs(ids)
	c.allContexts = false
	return c
}

// AllContexts deliberately lifts the context scope.
func (c *Collector) AllContexts() *Collector {
	c.contextIDs = nil
	c.allContexts = true
	return c
}

// FilterByCategoryIDs matches submissions whose current publication is in
// any of the categories.
func (c *Collector) FilterByCategoryIDs(ids ...int64) *Collector {
	c.categoryIDs = uniqueIDs(ids)
	return c
}

// FilterByStatus matches any of the statuses.
func (c *Collector) FilterByStatus(statuses ...domain.SubmissionStatus) *Collector {
	c.statuses = unique(statuses)
	return c
}

// FilterByStageIDs matches any of the stages.
func (c *Collector) FilterByStageIDs(stages ...domain.Stage) *Collector {
	c.stageIDs = unique(stages)
	return c
}

// FilterByIncomplete matches unfinalized submissions when true and
// finalized ones when false.
func (c *Collector) FilterByIncomplete(incomplete bool) *Collector {
	c.incomplete = &incomplete
	return c
}

// FilterByOverdue matches submissions with at least one overdue review assignment.
func (c *Collector) FilterByOverdue(overdue bool) *Collector {
	c.overdue = overdue
	return c
}

// FilterByDaysInactive matches submissions without activity for at least
// days days. Zero disables the filter.
func (c *Collector) FilterByDaysInactive(days int) *Collector {
	c.daysInactive = max(days, 0)
	return c
}

// AssignedTo matches submissions where any of the users holds a stage
// assignment or an open review assignment. No ids clears the filter.
func (c *Collector) AssignedTo(userIDs ...int64) *Collector {
	c.assignedTo = uniqueIDs(userIDs)
	c.assigned = assignedUsers
	if len(c.assignedTo) == 0 {
		c.assigned = assignedAny
	}
	return c
}

// Unassigned matches submitted submissions that have no manager or
// sub-editor assigned.
func (c *Collector) Unassigned() *Collector {
	c.assignedTo = nil
	c.assigned = assignedNone
	return c
}

// SearchPhrase matches submissions where every whitespace-separated token
// matches a title, an author name or ORCID, or the submission id.
func (c *Collector) SearchPhrase(phrase string) *Collector {
	c.searchPhrase = strings.TrimSpace(phrase)
	return c
}

// SearchAs names the user running the search. While an assigned-to filter
// is active, author matches are suppressed on submissions the searcher
// reviews without a managing role.
func (c *Collector) SearchAs(userID int64) *Collector {
	c.searcherID = userID
	return c
}

// FilterByDOIStatuses matches submissions with a publication DOI in any of the statuses.
func (c *Collector) FilterByDOIStatuses(statuses ...domain.DOIStatus) *Collector {
	c.doiStatuses = unique(statuses)
	return c
}

// FilterByHasDOIs matches submissions with (true) or without (false) any DOI.
func (c *Collector) FilterByHasDOIs(has bool) *Collector {
	c.hasDOIs = &has
	return c
}

// Limit sets the page size. Zero uses the default.
func (c *Collector) Limit(n int) *Collector {
	c.limit = n
	return c
}

// Offset skips n results.
func (c *Collector) Offset(n int) *Collector {
	c.offset = n
	return c
}

// OrderBy sets the sort key and direction.
func (c *Collector) OrderBy(key SortKey, desc bool) *Collector {
	c.sortKey = key
	c.sortDesc = desc
	return c
}

// InLocale sets the UI locale used to resolve titles for title ordering.
func (c *Collector) InLocale(tag string) *Collector {
	c.uiLocale = locale.Normalize(tag)
	return c
}

// WithAppFilter replaces the app-specific filter strategy. nil disables it.
func (c *Collector) WithAppFilter(app AppFilter) *Collector {
	c.app = app
	return c
}

// At fixes the reference time for overdue and inactivity filters.
func (c *Collector) At(now time.Time) *Collector {
	c.now = now
	return c
}

func uniqueIDs(ids []int64) []int64 {
	var kept []int64
	for _, id := range ids {
		if id > 0 {
			kept = append(kept, id)
		}
	}
	return unique(kept)
}

func unique[T interface{ ~int | ~int64 | ~string }](values []T) []T {
	if len(values) == 0 {
		return nil
	}
	out := mapset.NewThreadUnsafeSet(values...).ToSlice()
	slices.Sort(out)
	return out
}
