package httpserver

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/helixir/editorial-workflow-service/internal/collector"
	"github.com/helixir/editorial-workflow-service/internal/domain"
)

// listValues returns the values of a repeatable, comma-separated parameter.
func listValues(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func intValues(q url.Values, key string) ([]int64, error) {
	raw := listValues(q, key)
	out := make([]int64, 0, len(raw))
	for _, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, domain.NewValidationError(key, "must be a list of integers")
		}
		out = append(out, n)
	}
	return out, nil
}

func boolValue(q url.Values, key string) (value, set bool, err error) {
	v := q.Get(key)
	if v == "" {
		return false, false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false, domain.NewValidationError(key, "must be a boolean")
	}
	return b, true, nil
}

func intValue(q url.Values, key string) (int, bool, error) {
	v := q.Get(key)
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, domain.NewValidationError(key, "must be an integer")
	}
	return n, true, nil
}

// applyFilters sets collector filters from listing query parameters.
// Unknown enum values pass through and are rejected by Build.
func applyFilters(c *collector.Collector, q url.Values, userID int64) error {
	if v := listValues(q, "status"); len(v) > 0 {
		statuses := make([]domain.SubmissionStatus, len(v))
		for i, s := range v {
			statuses[i] = domain.SubmissionStatus(s)
		}
		c.FilterByStatus(statuses...)
	}

	stages, err := intValues(q, "stage_id")
	if err != nil {
		return err
	}
	if len(stages) > 0 {
		ids := make([]domain.Stage, len(stages))
		for i, s := range stages {
			ids[i] = domain.Stage(s)
		}
		c.FilterByStageIDs(ids...)
	}

	categories, err := intValues(q, "category_id")
	if err != nil {
		return err
	}
	if len(categories) > 0 {
		c.FilterByCategoryIDs(categories...)
	}

	if assigned := listValues(q, "assigned_to"); len(assigned) > 0 {
		ids := make([]int64, 0, len(assigned))
		for _, v := range assigned {
			if v == "me" {
				ids = append(ids, userID)
				continue
			}
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return domain.NewValidationError("assigned_to", `must be user ids or "me"`)
			}
			ids = append(ids, id)
		}
		c.AssignedTo(ids...)
	}
	if unassigned, _, err := boolValue(q, "unassigned"); err != nil {
		return err
	} else if unassigned {
		c.Unassigned()
	}

	if incomplete, set, err := boolValue(q, "incomplete"); err != nil {
		return err
	} else if set {
		c.FilterByIncomplete(incomplete)
	}
	if overdue, _, err := boolValue(q, "overdue"); err != nil {
		return err
	} else if overdue {
		c.FilterByOverdue(true)
	}
	if days, _, err := intValue(q, "days_inactive"); err != nil {
		return err
	} else if days > 0 {
		c.FilterByDaysInactive(days)
	}

	if v := listValues(q, "doi_status"); len(v) > 0 {
		statuses := make([]domain.DOIStatus, len(v))
		for i, s := range v {
			statuses[i] = domain.DOIStatus(s)
		}
		c.FilterByDOIStatuses(statuses...)
	}
	if has, set, err := boolValue(q, "has_dois"); err != nil {
		return err
	} else if set {
		c.FilterByHasDOIs(has)
	}

	return applyPaging(c, q)
}

// applyPaging sets search, ordering and pagination from query parameters.
func applyPaging(c *collector.Collector, q url.Values) error {
	if search := q.Get("search"); search != "" {
		c.SearchPhrase(search)
	}
	if orderBy := q.Get("order_by"); orderBy != "" {
		c.OrderBy(collector.SortKey(orderBy), !strings.EqualFold(q.Get("order_dir"), "asc"))
	}
	if limit, set, err := intValue(q, "limit"); err != nil {
		return err
	} else if set {
		c.Limit(limit)
	}
	if offset, set, err := intValue(q, "offset"); err != nil {
		return err
	} else if set {
		c.Offset(offset)
	}
	return nil
}
