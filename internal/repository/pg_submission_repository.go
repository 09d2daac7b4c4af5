package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/editorial-workflow-service/internal/domain"
)

// Compile-time interface verification.
var _ SubmissionRepository = (*PgSubmissionRepository)(nil)

const submissionColumns = `submission_id, context_id, status, stage_id, submission_progress, locale,
		date_submitted, date_last_activity, last_modified, current_publication_id`

// submissionDeleteSteps removes everything a submission owns, children first.
var submissionDeleteSteps = []struct {
	table string
	query string
}{
	{"review_round_files", `DELETE FROM review_round_files WHERE submission_id = $1`},
	{"submission_file_revisions", `DELETE FROM submission_file_revisions
		WHERE submission_file_id IN (SELECT submission_file_id FROM submission_files WHERE submission_id = $1)`},
	{"submission_files", `DELETE FROM submission_files WHERE submission_id = $1`},
	{"review_assignments", `DELETE FROM review_assignments WHERE submission_id = $1`},
	{"stage_assignments", `DELETE FROM stage_assignments WHERE submission_id = $1`},
	{"edit_decisions", `DELETE FROM edit_decisions WHERE submission_id = $1`},
	{"review_rounds", `DELETE FROM review_rounds WHERE submission_id = $1`},
	{"submissions", `UPDATE submissions SET current_publication_id = NULL WHERE submission_id = $1`},
	{"publications", `DELETE FROM publications WHERE submission_id = $1`},
}

// PgSubmissionRepository is a PostgreSQL implementation of SubmissionRepository.
type PgSubmissionRepository struct {
	db DBTX
}

// NewPgSubmissionRepository creates a new PostgreSQL submission repository.
func NewPgSubmissionRepository(db DBTX) *PgSubmissionRepository {
	return &PgSubmissionRepository{db: db}
}

// Create inserts a new submission.
func (r *PgSubmissionRepository) Create(ctx context.Context, s *domain.Submission) error {
	if s == nil {
		return domain.NewValidationError("submission", "submission cannot be nil")
	}
	if s.ContextID <= 0 {
		return domain.NewValidationError("context_id", "context ID is required")
	}
	if !s.Status.Valid() {
		return domain.NewValidationError("status", "unknown submission status")
	}
	if !s.StageID.Valid() {
		return domain.NewValidationError("stage_id", "unknown workflow stage")
	}

	query := `
		INSERT INTO submissions (
			context_id, status, stage_id, submission_progress, locale,
			date_submitted, date_last_activity, last_modified, current_publication_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING submission_id`

	err := r.db.QueryRow(ctx, query,
		s.ContextID, string(s.Status), int16(s.StageID), s.SubmissionProgress, s.Locale,
		s.DateSubmitted, s.DateLastActivity, s.LastModified, s.CurrentPublicationID,
	).Scan(&s.ID)
	if err != nil {
		return wrapError(err, "create submission", "submission", "")
	}
	return nil
}

// Get retrieves a submission by id.
func (r *PgSubmissionRepository) Get(ctx context.Context, id int64) (*domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE submission_id = $1`

	s, err := scanSubmission(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapError(err, "get submission", "submission", idString(id))
	}
	return s, nil
}

// GetForUpdate retrieves a submission and locks its row.
func (r *PgSubmissionRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE submission_id = $1 FOR UPDATE`

	s, err := scanSubmission(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapError(err, "lock submission", "submission", idString(id))
	}
	return s, nil
}

// Update locks the submission row, applies fn and writes the result back.
func (r *PgSubmissionRepository) Update(ctx context.Context, id int64, fn func(*domain.Submission) error) error {
	return inTx(ctx, r.db, func(db DBTX) error {
		txRepo := &PgSubmissionRepository{db: db}
		s, err := txRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if err := fn(s); err != nil {
			return err
		}
		if !s.Status.Valid() {
			return domain.NewValidationError("status", "unknown submission status")
		}
		if !s.StageID.Valid() {
			return domain.NewValidationError("stage_id", "unknown workflow stage")
		}
		s.LastModified = time.Now().UTC()

		query := `
			UPDATE submissions SET
				status = $1,
				stage_id = $2,
				submission_progress = $3,
				locale = $4,
				date_submitted = $5,
				date_last_activity = $6,
				last_modified = $7,
				current_publication_id = $8
			WHERE submission_id = $9`

		_, err = db.Exec(ctx, query,
			string(s.Status), int16(s.StageID), s.SubmissionProgress, s.Locale,
			s.DateSubmitted, s.DateLastActivity, s.LastModified, s.CurrentPublicationID,
			id,
		)
		if err != nil {
			return wrapError(err, "update submission", "submission", idString(id))
		}
		return nil
	})
}

// Delete removes a submission and everything it owns in one transaction.
// Authors and publication categories go with their publications.
func (r *PgSubmissionRepository) Delete(ctx context.Context, id int64) error {
	return inTx(ctx, r.db, func(db DBTX) error {
		if _, err := (&PgSubmissionRepository{db: db}).GetForUpdate(ctx, id); err != nil {
			return err
		}

		for _, step := range submissionDeleteSteps {
			if _, err := db.Exec(ctx, step.query, id); err != nil {
				return wrapError(err, "delete "+step.table, "submission", idString(id))
			}
		}

		result, err := db.Exec(ctx, `DELETE FROM submissions WHERE submission_id = $1`, id)
		if err != nil {
			return wrapError(err, "delete submission", "submission", idString(id))
		}
		if result.RowsAffected() == 0 {
			return domain.NewNotFoundError("submission", idString(id))
		}
		return nil
	})
}

func scanSubmission(row pgx.Row) (*domain.Submission, error) {
	var (
		s      domain.Submission
		status string
		stage  int16
	)
	err := row.Scan(
		&s.ID, &s.ContextID, &status, &stage, &s.SubmissionProgress, &s.Locale,
		&s.DateSubmitted, &s.DateLastActivity, &s.LastModified, &s.CurrentPublicationID,
	)
	if err != nil {
		return nil, err
	}
	s.Status = domain.SubmissionStatus(status)
	s.StageID = domain.Stage(stage)
	return &s, nil
}
