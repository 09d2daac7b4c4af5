package collector

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/repository"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// managingRoles are the roles whose stage assignment makes a submission
// assigned and exempts a reviewer from the search privacy rule.
var managingRoles = []int64{int64(domain.RoleManager), int64(domain.RoleSubEditor)}

var numericToken = regexp.MustCompile(`^[0-9]+$`)

// Where accumulates SQL conditions and their positional arguments.
type Where struct {
	conditions []string
	args       []any
}

// Arg appends a positional argument and returns its placeholder.
func (w *Where) Arg(v any) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

// And adds a condition. Conditions are joined with AND.
func (w *Where) And(condition string) {
	w.conditions = append(w.conditions, condition)
}

func (w *Where) clause() string {
	if len(w.conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conditions, "\n\t\tAND ")
}

// Query is a built submission query. It is immutable.
type Query struct {
	where   string
	orderBy string
	args    []any
	nWhere  int // args referenced by where; the rest belong to orderBy
	limit   int
	offset  int
}

const queryFrom = `FROM submissions s
		LEFT JOIN publications pc ON pc.publication_id = s.current_publication_id`

// CountSQL returns the statement counting all matches, ignoring pagination.
func (q *Query) CountSQL() (string, []any) {
	return fmt.Sprintf("SELECT COUNT(*) %s\n\t\t%s", queryFrom, q.where), q.args[:q.nWhere]
}

// IDsSQL returns the statement selecting one page of submission ids in order.
func (q *Query) IDsSQL() (string, []any) {
	n := len(q.args)
	sql := fmt.Sprintf("SELECT s.submission_id %s\n\t\t%s\n\t\tORDER BY %s\n\t\tLIMIT $%d OFFSET $%d",
		queryFrom, q.where, q.orderBy, n+1, n+2)
	args := make([]any, 0, n+2)
	args = append(args, q.args...)
	return sql, append(args, q.limit, q.offset)
}

// Limit is the page size.
func (q *Query) Limit() int { return q.limit }

// Offset is the number of skipped matches.
func (q *Query) Offset() int { return q.offset }

// Build validates the filters and renders the query.
func (c *Collector) Build() (*Query, error) {
	if !c.allContexts && len(c.contextIDs) == 0 {
		return nil, domain.NewInvalidQueryError("a context filter or the all-contexts wildcard is required")
	}
	if !c.sortKey.Valid() {
		return nil, domain.NewInvalidQueryError(fmt.Sprintf("unknown sort key %q", c.sortKey))
	}
	for _, s := range c.statuses {
		if !s.Valid() {
			return nil, domain.NewInvalidQueryError(fmt.Sprintf("unknown status %q", s))
		}
	}
	for _, s := range c.stageIDs {
		if !s.Valid() {
			return nil, domain.NewInvalidQueryError(fmt.Sprintf("unknown stage %d", s))
		}
	}
	for _, s := range c.doiStatuses {
		if !s.Valid() {
			return nil, domain.NewInvalidQueryError(fmt.Sprintf("unknown DOI status %q", s))
		}
	}
	if c.limit < 0 || c.limit > MaxLimit {
		return nil, domain.NewInvalidQueryError(fmt.Sprintf("limit must be between 0 and %d", MaxLimit))
	}
	if c.offset < 0 {
		return nil, domain.NewInvalidQueryError("offset must not be negative")
	}

	now := c.now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	w := &Where{}
	if !c.allContexts {
		w.And("s.context_id = ANY(" + w.Arg(c.contextIDs) + ")")
	}
	if len(c.statuses) > 0 {
		statuses := make([]string, len(c.statuses))
		for i, s := range c.statuses {
			statuses[i] = string(s)
		}
		w.And("s.status = ANY(" + w.Arg(statuses) + ")")
	}
	if len(c.stageIDs) > 0 {
		stages := make([]int32, len(c.stageIDs))
		for i, s := range c.stageIDs {
			stages[i] = int32(s)
		}
		w.And("s.stage_id = ANY(" + w.Arg(stages) + ")")
	}
	if len(c.categoryIDs) > 0 {
		w.And(`EXISTS (SELECT 1 FROM publication_categories pcat
			WHERE pcat.publication_id = s.current_publication_id AND pcat.category_id = ANY(` + w.Arg(c.categoryIDs) + `))`)
	}
	if c.incomplete != nil {
		if *c.incomplete {
			w.And("s.submission_progress > 0")
		} else {
			w.And("s.submission_progress = 0")
		}
	}
	if c.daysInactive > 0 {
		cutoff := now.AddDate(0, 0, -c.daysInactive)
		w.And("s.date_last_activity < " + w.Arg(cutoff))
	}
	if c.overdue {
		w.And(`EXISTS (SELECT 1 FROM review_assignments ra
			JOIN review_rounds rr ON rr.review_round_id = ra.review_round_id
			WHERE ra.submission_id = s.submission_id
			AND ` + fmt.Sprintf(repository.OverdueCondition, w.Arg(now)) + `)`)
	}

	switch c.assigned {
	case assignedUsers:
		users := w.Arg(c.assignedTo)
		w.And(`(EXISTS (SELECT 1 FROM stage_assignments sa
			WHERE sa.submission_id = s.submission_id AND sa.user_id = ANY(` + users + `))
		OR EXISTS (SELECT 1 FROM review_assignments ra
			WHERE ra.submission_id = s.submission_id AND ra.reviewer_id = ANY(` + users + `)
			AND NOT ra.declined AND NOT ra.cancelled))`)
	case assignedNone:
		w.And(`s.submission_progress = 0 AND NOT EXISTS (SELECT 1 FROM stage_assignments sa
			JOIN user_groups ug ON ug.user_group_id = sa.user_group_id
			WHERE sa.submission_id = s.submission_id AND ug.role_id = ANY(` + w.Arg(managingRoles) + `))`)
	}

	if c.searchPhrase != "" {
		c.addSearch(w)
	}
	if c.app != nil {
		c.app.ApplyAppFilters(w, AppFilters{DOIStatuses: c.doiStatuses, HasDOIs: c.hasDOIs})
	}

	limit := c.limit
	if limit == 0 {
		limit = DefaultLimit
	}
	q := &Query{
		where:  w.clause(),
		nWhere: len(w.args),
		limit:  limit,
		offset: c.offset,
	}
	q.orderBy = c.orderClause(w)
	q.args = w.args
	return q, nil
}

// addSearch ANDs one condition per token; each token matches a title, an
// author or the submission id.
func (c *Collector) addSearch(w *Where) {
	// Author matches are hidden from reviewers on the submissions they
	// review whenever an assigned-to filter is active.
	var suppress string
	if c.assigned != assignedAny {
		viewers := c.assignedTo
		if c.searcherID > 0 && !slices.Contains(viewers, c.searcherID) {
			viewers = append(append([]int64(nil), viewers...), c.searcherID)
		}
		if len(viewers) > 0 {
			suppress = ` AND NOT EXISTS (SELECT 1 FROM review_assignments rv
				WHERE rv.submission_id = s.submission_id AND rv.reviewer_id = ANY(` + w.Arg(viewers) + `)
				AND NOT rv.declined AND NOT rv.cancelled
				AND NOT EXISTS (SELECT 1 FROM stage_assignments sp
					JOIN user_groups gp ON gp.user_group_id = sp.user_group_id
					WHERE sp.submission_id = s.submission_id AND sp.user_id = rv.reviewer_id
					AND gp.role_id = ANY(` + w.Arg(managingRoles) + `)))`
		}
	}

	for _, token := range strings.Fields(c.searchPhrase) {
		pattern := w.Arg("%" + escapeLike(token) + "%")
		alternatives := []string{
			`EXISTS (SELECT 1 FROM publications ps, jsonb_each_text(ps.title) t
				WHERE ps.submission_id = s.submission_id AND t.value ILIKE ` + pattern + `)`,
			`(EXISTS (SELECT 1 FROM publications pa
				JOIN authors au ON au.publication_id = pa.publication_id
				WHERE pa.submission_id = s.submission_id
				AND (EXISTS (SELECT 1 FROM jsonb_each_text(au.given_name) gn WHERE gn.value ILIKE ` + pattern + `)
					OR EXISTS (SELECT 1 FROM jsonb_each_text(au.family_name) fn WHERE fn.value ILIKE ` + pattern + `)
					OR au.orcid ILIKE ` + pattern + `))` + suppress + `)`,
		}
		if numericToken.MatchString(token) {
			if id, err := strconv.ParseInt(token, 10, 64); err == nil {
				alternatives = append(alternatives, "s.submission_id = "+w.Arg(id))
			}
		}
		w.And("(" + strings.Join(alternatives, "\n\t\tOR ") + ")")
	}
}

// orderClause renders the ORDER BY expression with the submission id as tiebreaker.
func (c *Collector) orderClause(w *Where) string {
	dir := "ASC"
	if c.sortDesc {
		dir = "DESC"
	}
	var expr string
	switch c.sortKey {
	case SortDatePublished:
		expr = "pc.date_published"
	case SortLastActivity:
		expr = "s.date_last_activity"
	case SortLastModified:
		expr = "s.last_modified"
	case SortSequence:
		expr = "pc.seq"
	case SortTitle:
		// Current UI locale first, then the submission's own locale.
		expr = "lower(pc.title ->> s.locale)"
		if c.uiLocale != "" {
			expr = "lower(COALESCE(NULLIF(pc.title ->> " + w.Arg(c.uiLocale) + ", ''), pc.title ->> s.locale))"
		}
	default:
		expr = "s.date_submitted"
	}
	return fmt.Sprintf("%s %s NULLS LAST, s.submission_id %s", expr, dir, dir)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
