package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/editorial-workflow-service/internal/domain"
)

// Compile-time interface verification.
var _ ReviewRoundRepository = (*PgReviewRoundRepository)(nil)

const reviewRoundColumns = `review_round_id, submission_id, publication_id, stage_id, round, status`

// PgReviewRoundRepository is a PostgreSQL implementation of ReviewRoundRepository.
type PgReviewRoundRepository struct {
	db DBTX
}

// NewPgReviewRoundRepository creates a new PostgreSQL review round repository.
func NewPgReviewRoundRepository(db DBTX) *PgReviewRoundRepository {
	return &PgReviewRoundRepository{db: db}
}

// Create inserts a review round. A duplicate (submission, stage, round) key
// surfaces as domain.ErrConstraintViolation.
func (r *PgReviewRoundRepository) Create(ctx context.Context, round *domain.ReviewRound) error {
	if round == nil {
		return domain.NewValidationError("review_round", "review round cannot be nil")
	}
	if !round.StageID.IsReview() {
		return domain.NewValidationError("stage_id", "review rounds exist only in review stages")
	}
	if round.Round < 1 {
		return domain.NewValidationError("round", "round numbers start at 1")
	}
	if round.Status == "" {
		round.Status = domain.RoundStatusOpen
	}

	query := `
		INSERT INTO review_rounds (submission_id, publication_id, stage_id, round, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING review_round_id`

	err := r.db.QueryRow(ctx, query,
		round.SubmissionID, round.PublicationID, int16(round.StageID), round.Round, string(round.Status),
	).Scan(&round.ID)
	if err != nil {
		return wrapError(err, "create review round", "review_round",
			fmt.Sprintf("%d/%s/%d", round.SubmissionID, round.StageID, round.Round))
	}
	return nil
}

// Get retrieves a review round by id.
func (r *PgReviewRoundRepository) Get(ctx context.Context, id int64) (*domain.ReviewRound, error) {
	query := `SELECT ` + reviewRoundColumns + ` FROM review_rounds WHERE review_round_id = $1`

	round, err := scanReviewRound(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapError(err, "get review round", "review_round", idString(id))
	}
	return round, nil
}

// GetForUpdate retrieves a review round and locks its row.
func (r *PgReviewRoundRepository) GetForUpdate(ctx context.Context, id int64) (*domain.ReviewRound, error) {
	query := `SELECT ` + reviewRoundColumns + ` FROM review_rounds WHERE review_round_id = $1 FOR UPDATE`

	round, err := scanReviewRound(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapError(err, "lock review round", "review_round", idString(id))
	}
	return round, nil
}

// ListBySubmission returns the rounds of a submission ordered by stage and round.
func (r *PgReviewRoundRepository) ListBySubmission(ctx context.Context, submissionID int64, stage *domain.Stage) ([]*domain.ReviewRound, error) {
	conditions := "submission_id = $1"
	args := []interface{}{submissionID}
	if stage != nil {
		conditions += " AND stage_id = $2"
		args = append(args, int16(*stage))
	}

	query := fmt.Sprintf(`SELECT %s FROM review_rounds WHERE %s ORDER BY stage_id, round`,
		reviewRoundColumns, conditions)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err, "list review rounds", "review_round", "")
	}
	rounds, err := collectRows(rows, func(row pgx.Rows) (*domain.ReviewRound, error) { return scanReviewRound(row) })
	if err != nil {
		return nil, fmt.Errorf("failed to scan review rounds: %w", err)
	}
	return rounds, nil
}

// Last returns the newest round at a stage.
func (r *PgReviewRoundRepository) Last(ctx context.Context, submissionID int64, stage domain.Stage) (*domain.ReviewRound, error) {
	query := `SELECT ` + reviewRoundColumns + `
		FROM review_rounds
		WHERE submission_id = $1 AND stage_id = $2
		ORDER BY round DESC
		LIMIT 1`

	round, err := scanReviewRound(r.db.QueryRow(ctx, query, submissionID, int16(stage)))
	if err != nil {
		return nil, wrapError(err, "get last review round", "review_round",
			fmt.Sprintf("%d/%s", submissionID, stage))
	}
	return round, nil
}

// UpdateStatus stores the cached status of a round.
func (r *PgReviewRoundRepository) UpdateStatus(ctx context.Context, id int64, status domain.RoundStatus) error {
	result, err := r.db.Exec(ctx,
		`UPDATE review_rounds SET status = $1 WHERE review_round_id = $2`,
		string(status), id)
	if err != nil {
		return wrapError(err, "update review round status", "review_round", idString(id))
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("review_round", idString(id))
	}
	return nil
}

// ListActive pages through rounds whose cached status is active.
func (r *PgReviewRoundRepository) ListActive(ctx context.Context, afterID int64, limit int) ([]*domain.ReviewRound, error) {
	offset := 0
	applyPaginationDefaults(&limit, &offset)

	inactive := domain.InactiveRoundStatuses()
	statuses := make([]string, len(inactive))
	for i, s := range inactive {
		statuses[i] = string(s)
	}

	query := `SELECT ` + reviewRoundColumns + `
		FROM review_rounds
		WHERE review_round_id > $1 AND NOT (status = ANY($2))
		ORDER BY review_round_id
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, afterID, statuses, limit)
	if err != nil {
		return nil, wrapError(err, "list active review rounds", "review_round", "")
	}
	rounds, err := collectRows(rows, func(row pgx.Rows) (*domain.ReviewRound, error) { return scanReviewRound(row) })
	if err != nil {
		return nil, fmt.Errorf("failed to scan review rounds: %w", err)
	}
	return rounds, nil
}

func scanReviewRound(row pgx.Row) (*domain.ReviewRound, error) {
	var (
		round  domain.ReviewRound
		stage  int16
		status string
	)
	if err := row.Scan(&round.ID, &round.SubmissionID, &round.PublicationID, &stage, &round.Round, &status); err != nil {
		return nil, err
	}
	round.StageID = domain.Stage(stage)
	round.Status = domain.RoundStatus(status)
	return &round, nil
}
