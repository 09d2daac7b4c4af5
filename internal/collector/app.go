package collector

import "github.com/helixir/editorial-workflow-service/internal/domain"

// AppFilters carries the filters an application strategy may interpret.
type AppFilters struct {
	DOIStatuses []domain.DOIStatus
	HasDOIs     *bool
}

// AppFilter adds application-specific conditions to a query being built.
type AppFilter interface {
	ApplyAppFilters(w *Where, f AppFilters)
}

// DOIFilter matches on the DOIs of any publication of a submission.
type DOIFilter struct{}

// ApplyAppFilters implements AppFilter.
func (DOIFilter) ApplyAppFilters(w *Where, f AppFilters) {
	if len(f.DOIStatuses) > 0 {
		statuses := make([]string, len(f.DOIStatuses))
		for i, s := range f.DOIStatuses {
			statuses[i] = string(s)
		}
		w.And(`EXISTS (SELECT 1 FROM publications pd
			JOIN dois d ON d.doi_id = pd.doi_id
			WHERE pd.submission_id = s.submission_id AND d.status = ANY(` + w.Arg(statuses) + `))`)
	}
	if f.HasDOIs != nil {
		exists := `EXISTS (SELECT 1 FROM publications pd
			WHERE pd.submission_id = s.submission_id AND pd.doi_id IS NOT NULL)`
		if *f.HasDOIs {
			w.And(exists)
		} else {
			w.And("NOT " + exists)
		}
	}
}
