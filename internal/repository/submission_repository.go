package repository

import (
	"context"

	"github.com/helixir/editorial-workflow-service/internal/domain"
)

// SubmissionRepository persists submissions.
type SubmissionRepository interface {
	// Create inserts a submission and sets its ID.
	Create(ctx context.Context, s *domain.Submission) error

	// Get retrieves a submission without its publications.
	// Returns domain.ErrNotFound if no matching submission exists.
	Get(ctx context.Context, id int64) (*domain.Submission, error)

	// GetForUpdate retrieves a submission and locks its row until the
	// surrounding transaction ends. Concurrent writers to the same
	// submission serialize here.
	GetForUpdate(ctx context.Context, id int64) (*domain.Submission, error)

	// Update locks the submission row, applies fn and persists the result.
	// An error from fn aborts the update and is returned unchanged.
	Update(ctx context.Context, id int64, fn func(*domain.Submission) error) error

	// Delete removes the submission and everything it owns: file revisions
	// and round associations, submission files, assignments, decisions,
	// review rounds, publications (with authors and categories) and finally
	// the submission row.
	// Returns domain.ErrNotFound if no matching submission exists.
	Delete(ctx context.Context, id int64) error
}

// PublicationRepository persists publication versions with their authors,
// categories and DOIs.
type PublicationRepository interface {
	// Create inserts a publication with its authors and category ids and sets
	// the generated IDs.
	Create(ctx context.Context, p *domain.Publication) error

	// Get retrieves a publication with authors and category ids.
	// Returns domain.ErrNotFound if no matching publication exists.
	Get(ctx context.Context, id int64) (*domain.Publication, error)

	// ListBySubmission returns every publication of a submission ordered by id.
	// A submission without publications yields an empty slice.
	ListBySubmission(ctx context.Context, submissionID int64) ([]*domain.Publication, error)

	// Update locks the publication row, applies fn and persists status,
	// dates, metadata, DOI and categories. Authors are replaced wholesale.
	Update(ctx context.Context, id int64, fn func(*domain.Publication) error) error

	// CreateDOI inserts a DOI record and sets its ID.
	CreateDOI(ctx context.Context, doi *domain.DOI) error

	// UpdateDOIStatus changes the registration status of a DOI.
	UpdateDOIStatus(ctx context.Context, id int64, status domain.DOIStatus) error
}
