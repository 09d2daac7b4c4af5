package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/editorial-workflow-service/internal/domain"
)

// Compile-time interface verification.
var _ DecisionRepository = (*PgDecisionRepository)(nil)

const decisionColumns = `edit_decision_id, submission_id, publication_id, review_round_id,
		stage_id, round, editor_id, decision, date_decided`

// PgDecisionRepository is a PostgreSQL implementation of DecisionRepository.
// Rows are insert-only; a trigger rejects updates other than the editor transfer.
type PgDecisionRepository struct {
	db DBTX
}

// NewPgDecisionRepository creates a new PostgreSQL decision repository.
func NewPgDecisionRepository(db DBTX) *PgDecisionRepository {
	return &PgDecisionRepository{db: db}
}

// Insert appends a decision to the log.
func (r *PgDecisionRepository) Insert(ctx context.Context, d *domain.EditorialDecision) error {
	if d == nil {
		return domain.NewValidationError("decision", "decision cannot be nil")
	}
	if !d.Decision.Valid() {
		return domain.NewValidationError("decision", fmt.Sprintf("unknown decision code %q", d.Decision))
	}
	if !d.StageID.Valid() {
		return domain.NewValidationError("stage_id", "unknown workflow stage")
	}
	if d.DateDecided.IsZero() {
		return domain.NewValidationError("date_decided", "decision date is required")
	}

	query := `
		INSERT INTO edit_decisions (
			submission_id, publication_id, review_round_id,
			stage_id, round, editor_id, decision, date_decided
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING edit_decision_id`

	err := r.db.QueryRow(ctx, query,
		d.SubmissionID, d.PublicationID, d.ReviewRoundID,
		int16(d.StageID), d.Round, d.EditorID, string(d.Decision), d.DateDecided,
	).Scan(&d.ID)
	if err != nil {
		return wrapError(err, "insert decision", "edit_decision", idString(d.SubmissionID))
	}
	return nil
}

// ListBySubmission returns the submission's decision log in canonical order.
func (r *PgDecisionRepository) ListBySubmission(ctx context.Context, submissionID int64) ([]*domain.EditorialDecision, error) {
	query := `SELECT ` + decisionColumns + `
		FROM edit_decisions
		WHERE submission_id = $1
		ORDER BY date_decided, edit_decision_id`

	return r.list(ctx, query, submissionID)
}

// ListByRound returns the decisions recorded against a round in canonical order.
func (r *PgDecisionRepository) ListByRound(ctx context.Context, reviewRoundID int64) ([]*domain.EditorialDecision, error) {
	query := `SELECT ` + decisionColumns + `
		FROM edit_decisions
		WHERE review_round_id = $1
		ORDER BY date_decided, edit_decision_id`

	return r.list(ctx, query, reviewRoundID)
}

// TransferEditor moves every decision from one editor to another.
func (r *PgDecisionRepository) TransferEditor(ctx context.Context, fromEditorID, toEditorID int64) (int64, error) {
	if fromEditorID <= 0 || toEditorID <= 0 {
		return 0, domain.NewValidationError("editor_id", "both editor IDs are required")
	}
	if fromEditorID == toEditorID {
		return 0, nil
	}

	result, err := r.db.Exec(ctx,
		`UPDATE edit_decisions SET editor_id = $1 WHERE editor_id = $2`,
		toEditorID, fromEditorID)
	if err != nil {
		return 0, wrapError(err, "transfer decisions", "edit_decision", idString(fromEditorID))
	}
	return result.RowsAffected(), nil
}

func (r *PgDecisionRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.EditorialDecision, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err, "list decisions", "edit_decision", "")
	}
	decisions, err := collectRows(rows, func(row pgx.Rows) (*domain.EditorialDecision, error) { return scanDecision(row) })
	if err != nil {
		return nil, fmt.Errorf("failed to scan decisions: %w", err)
	}
	return decisions, nil
}

func scanDecision(row pgx.Row) (*domain.EditorialDecision, error) {
	var (
		d        domain.EditorialDecision
		stage    int16
		decision string
	)
	err := row.Scan(
		&d.ID, &d.SubmissionID, &d.PublicationID, &d.ReviewRoundID,
		&stage, &d.Round, &d.EditorID, &decision, &d.DateDecided,
	)
	if err != nil {
		return nil, err
	}
	d.StageID = domain.Stage(stage)
	d.Decision = domain.DecisionCode(decision)
	return &d, nil
}
