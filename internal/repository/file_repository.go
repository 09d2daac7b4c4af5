package repository

import (
	"context"
	"time"

	"github.com/helixir/editorial-workflow-service/internal/domain"
)

// SubmissionFileRepository persists submission files, their blobs, their
// append-only revisions and their review round associations.
type SubmissionFileRepository interface {
	// CreateBlob records an immutable stored blob and sets its ID.
	CreateBlob(ctx context.Context, b *domain.FileBlob) error

	// GetBlob retrieves a blob record.
	GetBlob(ctx context.Context, id int64) (*domain.FileBlob, error)

	// Create inserts a submission file pointing at CurrentFileID and sets its ID.
	// The caller appends the initial revision.
	Create(ctx context.Context, f *domain.SubmissionFile) error

	// Get retrieves a submission file.
	// Returns domain.ErrNotFound if no matching file exists.
	Get(ctx context.Context, id int64) (*domain.SubmissionFile, error)

	// GetForUpdate retrieves a submission file and locks its row.
	GetForUpdate(ctx context.Context, id int64) (*domain.SubmissionFile, error)

	// Save persists the mutable fields of a file: stage, genre, association,
	// current blob, name, viewable and updatedAt.
	Save(ctx context.Context, f *domain.SubmissionFile) error

	// ListBySubmission returns the files of a submission, optionally limited
	// to the given stages, ordered by id.
	ListBySubmission(ctx context.Context, submissionID int64, stages ...domain.FileStage) ([]*domain.SubmissionFile, error)

	// ListByRound returns the files at stage associated with a review round,
	// either through their assoc reference or through review_round_files.
	ListByRound(ctx context.Context, reviewRoundID int64, stage domain.FileStage) ([]*domain.SubmissionFile, error)

	// AppendRevision adds a revision referencing blobID. Revision ids are
	// strictly increasing per file.
	AppendRevision(ctx context.Context, submissionFileID, blobID int64, at time.Time) (*domain.FileRevision, error)

	// Revisions returns the revisions of a file ordered by revision id. A file
	// that does not exist yields an empty slice, not an error.
	Revisions(ctx context.Context, submissionFileID int64) ([]*domain.FileRevision, error)

	// RevisionsForFiles returns the revisions of several files keyed by file id.
	RevisionsForFiles(ctx context.Context, submissionFileIDs []int64) (map[int64][]*domain.FileRevision, error)

	// AssignToRound replaces any existing round association of the file with
	// one to round.
	AssignToRound(ctx context.Context, submissionFileID int64, round *domain.ReviewRound) error

	// RemoveFromRound drops the round association of the file, if any.
	RemoveFromRound(ctx context.Context, submissionFileID int64) error

	// RoundOf returns the review round the file is associated with, or 0.
	RoundOf(ctx context.Context, submissionFileID int64) (int64, error)

	// Delete removes the revisions and round association of a file, then the
	// file row. Blobs are left in place.
	Delete(ctx context.Context, id int64) error
}

// GenreRepository persists the file-type taxonomy. Genres are disabled, never deleted.
type GenreRepository interface {
	// Create inserts a genre and sets its ID.
	// Returns domain.ErrConstraintViolation when the key exists in the context.
	Create(ctx context.Context, g *domain.Genre) error

	// Get retrieves a genre, enabled or not.
	Get(ctx context.Context, id int64) (*domain.Genre, error)

	// GetByKey retrieves a genre by its key within a context.
	GetByKey(ctx context.Context, contextID int64, key string) (*domain.Genre, error)

	// List returns the genres of a context ordered by sequence.
	List(ctx context.Context, contextID int64, enabledOnly bool) ([]*domain.Genre, error)

	// Update persists name, category, flags and sequence. The key is immutable.
	Update(ctx context.Context, g *domain.Genre) error

	// SetEnabled enables or disables a genre.
	SetEnabled(ctx context.Context, id int64, enabled bool) error
}
