package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/editorial-workflow-service/internal/domain"
)

// Compile-time interface verification.
var _ SubmissionFileRepository = (*PgSubmissionFileRepository)(nil)

const submissionFileColumns = `submission_file_id, submission_id, file_id, file_stage, genre_id,
		assoc_type, assoc_id, source_submission_file_id, uploader_user_id, name, viewable,
		created_at, updated_at`

// PgSubmissionFileRepository is a PostgreSQL implementation of SubmissionFileRepository.
type PgSubmissionFileRepository struct {
	db DBTX
}

// NewPgSubmissionFileRepository creates a new PostgreSQL submission file repository.
func NewPgSubmissionFileRepository(db DBTX) *PgSubmissionFileRepository {
	return &PgSubmissionFileRepository{db: db}
}

// CreateBlob records a stored blob.
func (r *PgSubmissionFileRepository) CreateBlob(ctx context.Context, b *domain.FileBlob) error {
	if b == nil || b.Path == "" {
		return domain.NewValidationError("path", "blob path is required")
	}

	query := `INSERT INTO files (path, mimetype, size) VALUES ($1, $2, $3) RETURNING file_id`
	if err := r.db.QueryRow(ctx, query, b.Path, b.Mimetype, b.Size).Scan(&b.ID); err != nil {
		return wrapError(err, "create file blob", "file", b.Path)
	}
	return nil
}

// GetBlob retrieves a blob record.
func (r *PgSubmissionFileRepository) GetBlob(ctx context.Context, id int64) (*domain.FileBlob, error) {
	var b domain.FileBlob
	err := r.db.QueryRow(ctx, `SELECT file_id, path, mimetype, size FROM files WHERE file_id = $1`, id).
		Scan(&b.ID, &b.Path, &b.Mimetype, &b.Size)
	if err != nil {
		return nil, wrapError(err, "get file blob", "file", idString(id))
	}
	return &b, nil
}

// Create inserts a submission file.
func (r *PgSubmissionFileRepository) Create(ctx context.Context, f *domain.SubmissionFile) error {
	if f == nil {
		return domain.NewValidationError("submission_file", "submission file cannot be nil")
	}
	if !f.FileStage.Valid() {
		return domain.NewValidationError("file_stage", fmt.Sprintf("unknown file stage %q", f.FileStage))
	}
	if err := f.Assoc.Validate(); err != nil {
		return err
	}
	nameJSON, err := json.Marshal(nonNilText(f.Name))
	if err != nil {
		return fmt.Errorf("failed to marshal file name: %w", err)
	}

	query := `
		INSERT INTO submission_files (
			submission_id, file_id, file_stage, genre_id, assoc_type, assoc_id,
			source_submission_file_id, uploader_user_id, name, viewable, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING submission_file_id`

	assocType, assocID := assocColumns(f.Assoc)
	err = r.db.QueryRow(ctx, query,
		f.SubmissionID, f.CurrentFileID, string(f.FileStage), f.GenreID, assocType, assocID,
		f.SourceFileID, f.UploaderUserID, nameJSON, f.Viewable, f.CreatedAt, f.UpdatedAt,
	).Scan(&f.ID)
	if err != nil {
		return wrapError(err, "create submission file", "submission_file", "")
	}
	return nil
}

// Get retrieves a submission file.
func (r *PgSubmissionFileRepository) Get(ctx context.Context, id int64) (*domain.SubmissionFile, error) {
	query := `SELECT ` + submissionFileColumns + ` FROM submission_files WHERE submission_file_id = $1`

	f, err := scanSubmissionFile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapError(err, "get submission file", "submission_file", idString(id))
	}
	return f, nil
}

// GetForUpdate retrieves a submission file and locks its row.
func (r *PgSubmissionFileRepository) GetForUpdate(ctx context.Context, id int64) (*domain.SubmissionFile, error) {
	query := `SELECT ` + submissionFileColumns + ` FROM submission_files WHERE submission_file_id = $1 FOR UPDATE`

	f, err := scanSubmissionFile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapError(err, "lock submission file", "submission_file", idString(id))
	}
	return f, nil
}

// Save persists the mutable fields of a submission file.
func (r *PgSubmissionFileRepository) Save(ctx context.Context, f *domain.SubmissionFile) error {
	if !f.FileStage.Valid() {
		return domain.NewValidationError("file_stage", fmt.Sprintf("unknown file stage %q", f.FileStage))
	}
	if err := f.Assoc.Validate(); err != nil {
		return err
	}
	nameJSON, err := json.Marshal(nonNilText(f.Name))
	if err != nil {
		return fmt.Errorf("failed to marshal file name: %w", err)
	}

	query := `
		UPDATE submission_files SET
			file_id = $1,
			file_stage = $2,
			genre_id = $3,
			assoc_type = $4,
			assoc_id = $5,
			name = $6,
			viewable = $7,
			updated_at = $8
		WHERE submission_file_id = $9`

	assocType, assocID := assocColumns(f.Assoc)
	result, err := r.db.Exec(ctx, query,
		f.CurrentFileID, string(f.FileStage), f.GenreID, assocType, assocID,
		nameJSON, f.Viewable, f.UpdatedAt,
		f.ID,
	)
	if err != nil {
		return wrapError(err, "save submission file", "submission_file", idString(f.ID))
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("submission_file", idString(f.ID))
	}
	return nil
}

// ListBySubmission returns a submission's files, optionally filtered by stage.
func (r *PgSubmissionFileRepository) ListBySubmission(ctx context.Context, submissionID int64, stages ...domain.FileStage) ([]*domain.SubmissionFile, error) {
	query := `SELECT ` + submissionFileColumns + ` FROM submission_files WHERE submission_id = $1`
	args := []interface{}{submissionID}
	if len(stages) > 0 {
		names := make([]string, len(stages))
		for i, s := range stages {
			names[i] = string(s)
		}
		query += ` AND file_stage = ANY($2)`
		args = append(args, names)
	}
	query += ` ORDER BY submission_file_id`

	return r.list(ctx, query, args...)
}

// ListByRound returns the files at stage associated with a review round.
func (r *PgSubmissionFileRepository) ListByRound(ctx context.Context, reviewRoundID int64, stage domain.FileStage) ([]*domain.SubmissionFile, error) {
	query := `SELECT ` + submissionFileColumns + `
		FROM submission_files sf
		WHERE sf.file_stage = $2
		  AND ((sf.assoc_type = 'review_round' AND sf.assoc_id = $1)
		       OR EXISTS (SELECT 1 FROM review_round_files rrf
		                  WHERE rrf.submission_file_id = sf.submission_file_id
		                    AND rrf.review_round_id = $1))
		ORDER BY sf.submission_file_id`

	return r.list(ctx, query, reviewRoundID, string(stage))
}

// AppendRevision adds a revision to a file.
func (r *PgSubmissionFileRepository) AppendRevision(ctx context.Context, submissionFileID, blobID int64, at time.Time) (*domain.FileRevision, error) {
	query := `
		WITH rev AS (
			INSERT INTO submission_file_revisions (submission_file_id, file_id, created_at)
			VALUES ($1, $2, $3)
			RETURNING revision_id, submission_file_id, file_id, created_at
		)
		SELECT rev.revision_id, rev.submission_file_id, rev.file_id, f.path, f.mimetype, rev.created_at
		FROM rev JOIN files f ON f.file_id = rev.file_id`

	rev, err := scanRevision(r.db.QueryRow(ctx, query, submissionFileID, blobID, at))
	if err != nil {
		return nil, wrapError(err, "append file revision", "submission_file", idString(submissionFileID))
	}
	return rev, nil
}

// Revisions returns a file's revisions ordered by revision id.
func (r *PgSubmissionFileRepository) Revisions(ctx context.Context, submissionFileID int64) ([]*domain.FileRevision, error) {
	byFile, err := r.RevisionsForFiles(ctx, []int64{submissionFileID})
	if err != nil {
		return nil, err
	}
	revs := byFile[submissionFileID]
	if revs == nil {
		revs = []*domain.FileRevision{}
	}
	return revs, nil
}

// RevisionsForFiles returns the revisions of several files keyed by file id.
func (r *PgSubmissionFileRepository) RevisionsForFiles(ctx context.Context, submissionFileIDs []int64) (map[int64][]*domain.FileRevision, error) {
	out := make(map[int64][]*domain.FileRevision, len(submissionFileIDs))
	if len(submissionFileIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT sfr.revision_id, sfr.submission_file_id, sfr.file_id, f.path, f.mimetype, sfr.created_at
		FROM submission_file_revisions sfr
		JOIN files f ON f.file_id = sfr.file_id
		WHERE sfr.submission_file_id = ANY($1)
		ORDER BY sfr.submission_file_id, sfr.revision_id`

	rows, err := r.db.Query(ctx, query, submissionFileIDs)
	if err != nil {
		return nil, wrapError(err, "list file revisions", "submission_file", "")
	}
	revs, err := collectRows(rows, func(row pgx.Rows) (*domain.FileRevision, error) { return scanRevision(row) })
	if err != nil {
		return nil, fmt.Errorf("failed to scan file revisions: %w", err)
	}
	for _, rev := range revs {
		out[rev.SubmissionFileID] = append(out[rev.SubmissionFileID], rev)
	}
	return out, nil
}

// AssignToRound replaces the file's round association as one operation.
func (r *PgSubmissionFileRepository) AssignToRound(ctx context.Context, submissionFileID int64, round *domain.ReviewRound) error {
	if round == nil {
		return domain.NewValidationError("review_round", "review round is required")
	}
	return inTx(ctx, r.db, func(db DBTX) error {
		if _, err := db.Exec(ctx, `DELETE FROM review_round_files WHERE submission_file_id = $1`, submissionFileID); err != nil {
			return wrapError(err, "clear round association", "submission_file", idString(submissionFileID))
		}
		_, err := db.Exec(ctx, `
			INSERT INTO review_round_files (submission_id, review_round_id, stage_id, submission_file_id)
			VALUES ($1, $2, $3, $4)`,
			round.SubmissionID, round.ID, int16(round.StageID), submissionFileID)
		if err != nil {
			return wrapError(err, "assign file to round", "submission_file", idString(submissionFileID))
		}
		return nil
	})
}

// RemoveFromRound drops the file's round association.
func (r *PgSubmissionFileRepository) RemoveFromRound(ctx context.Context, submissionFileID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM review_round_files WHERE submission_file_id = $1`, submissionFileID); err != nil {
		return wrapError(err, "remove file from round", "submission_file", idString(submissionFileID))
	}
	return nil
}

// RoundOf returns the review round id the file is associated with, or 0.
func (r *PgSubmissionFileRepository) RoundOf(ctx context.Context, submissionFileID int64) (int64, error) {
	var roundID int64
	err := r.db.QueryRow(ctx,
		`SELECT review_round_id FROM review_round_files WHERE submission_file_id = $1`,
		submissionFileID).Scan(&roundID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, wrapError(err, "get file round", "submission_file", idString(submissionFileID))
	}
	return roundID, nil
}

// Delete removes a file with its revisions and round association.
func (r *PgSubmissionFileRepository) Delete(ctx context.Context, id int64) error {
	return inTx(ctx, r.db, func(db DBTX) error {
		steps := []string{
			`DELETE FROM review_round_files WHERE submission_file_id = $1`,
			`DELETE FROM submission_file_revisions WHERE submission_file_id = $1`,
		}
		for _, q := range steps {
			if _, err := db.Exec(ctx, q, id); err != nil {
				return wrapError(err, "delete submission file dependents", "submission_file", idString(id))
			}
		}

		result, err := db.Exec(ctx, `DELETE FROM submission_files WHERE submission_file_id = $1`, id)
		if err != nil {
			return wrapError(err, "delete submission file", "submission_file", idString(id))
		}
		if result.RowsAffected() == 0 {
			return domain.NewNotFoundError("submission_file", idString(id))
		}
		return nil
	})
}

func (r *PgSubmissionFileRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.SubmissionFile, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err, "list submission files", "submission_file", "")
	}
	files, err := collectRows(rows, func(row pgx.Rows) (*domain.SubmissionFile, error) { return scanSubmissionFile(row) })
	if err != nil {
		return nil, fmt.Errorf("failed to scan submission files: %w", err)
	}
	return files, nil
}

// assocColumns splits an association into its nullable column values.
func assocColumns(a domain.Assoc) (*string, *int64) {
	if a.IsZero() {
		return nil, nil
	}
	kind := string(a.Kind)
	id := a.ID
	return &kind, &id
}

func scanSubmissionFile(row pgx.Row) (*domain.SubmissionFile, error) {
	var (
		f         domain.SubmissionFile
		stage     string
		assocType *string
		assocID   *int64
		nameJSON  []byte
	)
	err := row.Scan(
		&f.ID, &f.SubmissionID, &f.CurrentFileID, &stage, &f.GenreID,
		&assocType, &assocID, &f.SourceFileID, &f.UploaderUserID, &nameJSON, &f.Viewable,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.FileStage = domain.FileStage(stage)
	if assocType != nil && assocID != nil {
		f.Assoc = domain.Assoc{Kind: domain.AssocKind(*assocType), ID: *assocID}
	}
	if err := unmarshalText(nameJSON, &f.Name); err != nil {
		return nil, fmt.Errorf("failed to unmarshal file name: %w", err)
	}
	return &f, nil
}

func scanRevision(row pgx.Row) (*domain.FileRevision, error) {
	var rev domain.FileRevision
	if err := row.Scan(&rev.RevisionID, &rev.SubmissionFileID, &rev.FileID, &rev.Path, &rev.Mimetype, &rev.CreatedAt); err != nil {
		return nil, err
	}
	return &rev, nil
}
