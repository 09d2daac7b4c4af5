package domain

import "time"

// Submission is the top-level scholarly work tracked through the editorial workflow.
type Submission struct {
	ID                   int64            `json:"id"`
	ContextID            int64            `json:"context_id"`
	Status               SubmissionStatus `json:"status"`
	StageID              Stage            `json:"stage_id"`
	SubmissionProgress   int              `json:"submission_progress"`
	Locale               string           `json:"locale"`
	DateSubmitted        *time.Time       `json:"date_submitted,omitempty"`
	DateLastActivity     time.Time        `json:"date_last_activity"`
	LastModified         time.Time        `json:"last_modified"`
	CurrentPublicationID *int64           `json:"current_publication_id,omitempty"`

	// Publications is populated when the submission is hydrated.
	Publications []*Publication `json:"publications,omitempty"`
}

// IsComplete returns true once the intake wizard has been finalized.
func (s *Submission) IsComplete() bool {
	return s.SubmissionProgress == 0
}

// IsSubmitted returns true if the submission has a submission date.
func (s *Submission) IsSubmitted() bool {
	return s.DateSubmitted != nil
}

// Touch records activity on the submission.
func (s *Submission) Touch(now time.Time) {
	s.DateLastActivity = now
	s.LastModified = now
}

// DaysInactive returns the number of whole days since the last activity.
func (s *Submission) DaysInactive(now time.Time) int {
	if now.Before(s.DateLastActivity) {
		return 0
	}
	return int(now.Sub(s.DateLastActivity).Hours() / 24)
}

// Genre classifies a file's purpose within a context.
type Genre struct {
	ID            int64         `json:"id"`
	ContextID     int64         `json:"context_id"`
	Key           string        `json:"key"`
	Name          LocalizedText `json:"name,omitempty"`
	Category      GenreCategory `json:"category"`
	Dependent     bool          `json:"dependent"`
	Supplementary bool          `json:"supplementary"`
	Sequence      int           `json:"sequence"`
	Enabled       bool          `json:"enabled"`
}

// GenreCategory is the broad classification of a genre.
type GenreCategory string

const (
	GenreCategoryDocument      GenreCategory = "document"
	GenreCategoryArtwork       GenreCategory = "artwork"
	GenreCategorySupplementary GenreCategory = "supplementary"
)

// Valid reports whether c is a known genre category.
func (c GenreCategory) Valid() bool {
	switch c {
	case GenreCategoryDocument, GenreCategoryArtwork, GenreCategorySupplementary:
		return true
	default:
		return false
	}
}
