package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/editorial-workflow-service/internal/domain"
)

// Compile-time interface verification.
var _ AssignmentRepository = (*PgAssignmentRepository)(nil)

const reviewAssignmentColumns = `review_id, submission_id, review_round_id, reviewer_id, stage_id, round,
		date_assigned, date_due, date_response_due, date_confirmed, date_completed,
		declined, cancelled, recommendation, last_modified`

// OverdueCondition is the SQL form of domain.ReviewAssignment.IsOverdue for
// review_assignments aliased ra joined to review_rounds aliased rr. $1 is now.
const OverdueCondition = `NOT ra.declined AND NOT ra.cancelled
		AND NOT (rr.status = ANY('{resubmitted_for_review,sent_to_external,accepted,declined}'))
		AND ((ra.date_due < %[1]s AND ra.date_completed IS NULL)
			OR (ra.date_response_due < %[1]s AND ra.date_confirmed IS NULL))`

// PgAssignmentRepository is a PostgreSQL implementation of AssignmentRepository.
type PgAssignmentRepository struct {
	db DBTX
}

// NewPgAssignmentRepository creates a new PostgreSQL assignment repository.
func NewPgAssignmentRepository(db DBTX) *PgAssignmentRepository {
	return &PgAssignmentRepository{db: db}
}

// CreateStageAssignment inserts a stage assignment.
func (r *PgAssignmentRepository) CreateStageAssignment(ctx context.Context, a *domain.StageAssignment) error {
	if a == nil {
		return domain.NewValidationError("stage_assignment", "stage assignment cannot be nil")
	}
	if a.DateAssigned.IsZero() {
		a.DateAssigned = time.Now().UTC()
	}

	query := `
		INSERT INTO stage_assignments (submission_id, user_group_id, user_id, date_assigned, recommend_only)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING stage_assignment_id`

	err := r.db.QueryRow(ctx, query,
		a.SubmissionID, a.UserGroupID, a.UserID, a.DateAssigned, a.RecommendOnly,
	).Scan(&a.ID)
	if err != nil {
		return wrapError(err, "create stage assignment", "stage_assignment", idString(a.SubmissionID))
	}
	return nil
}

// ListStageAssignments returns a submission's stage assignments with roles.
func (r *PgAssignmentRepository) ListStageAssignments(ctx context.Context, submissionID int64) ([]*domain.StageAssignment, error) {
	query := `
		SELECT sa.stage_assignment_id, sa.submission_id, sa.user_group_id, sa.user_id,
			ug.role_id, sa.date_assigned, sa.recommend_only
		FROM stage_assignments sa
		JOIN user_groups ug ON ug.user_group_id = sa.user_group_id
		WHERE sa.submission_id = $1
		ORDER BY sa.stage_assignment_id`

	rows, err := r.db.Query(ctx, query, submissionID)
	if err != nil {
		return nil, wrapError(err, "list stage assignments", "stage_assignment", "")
	}
	out, err := collectRows(rows, func(row pgx.Rows) (*domain.StageAssignment, error) {
		var (
			a    domain.StageAssignment
			role int32
		)
		if err := row.Scan(&a.ID, &a.SubmissionID, &a.UserGroupID, &a.UserID, &role, &a.DateAssigned, &a.RecommendOnly); err != nil {
			return nil, err
		}
		a.RoleID = domain.RoleID(role)
		return &a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan stage assignments: %w", err)
	}
	return out, nil
}

// CreateReviewAssignment inserts a review assignment.
func (r *PgAssignmentRepository) CreateReviewAssignment(ctx context.Context, a *domain.ReviewAssignment) error {
	if a == nil {
		return domain.NewValidationError("review_assignment", "review assignment cannot be nil")
	}
	now := time.Now().UTC()
	if a.DateAssigned.IsZero() {
		a.DateAssigned = now
	}
	a.LastModified = now

	query := `
		INSERT INTO review_assignments (
			submission_id, review_round_id, reviewer_id, stage_id, round,
			date_assigned, date_due, date_response_due, date_confirmed, date_completed,
			declined, cancelled, recommendation, last_modified
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING review_id`

	err := r.db.QueryRow(ctx, query,
		a.SubmissionID, a.ReviewRoundID, a.ReviewerID, int16(a.StageID), a.Round,
		a.DateAssigned, a.DateDue, a.DateResponseDue, a.DateConfirmed, a.DateCompleted,
		a.Declined, a.Cancelled, a.Recommendation, a.LastModified,
	).Scan(&a.ID)
	if err != nil {
		return wrapError(err, "create review assignment", "review_assignment", idString(a.ReviewRoundID))
	}
	return nil
}

// GetReviewAssignment retrieves a review assignment by id.
func (r *PgAssignmentRepository) GetReviewAssignment(ctx context.Context, id int64) (*domain.ReviewAssignment, error) {
	query := `SELECT ` + reviewAssignmentColumns + ` FROM review_assignments WHERE review_id = $1`

	a, err := scanReviewAssignment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapError(err, "get review assignment", "review_assignment", idString(id))
	}
	return a, nil
}

// UpdateReviewAssignment locks the assignment, applies fn and writes it back.
func (r *PgAssignmentRepository) UpdateReviewAssignment(ctx context.Context, id int64, fn func(*domain.ReviewAssignment) error) error {
	return inTx(ctx, r.db, func(db DBTX) error {
		query := `SELECT ` + reviewAssignmentColumns + ` FROM review_assignments WHERE review_id = $1 FOR UPDATE`
		a, err := scanReviewAssignment(db.QueryRow(ctx, query, id))
		if err != nil {
			return wrapError(err, "lock review assignment", "review_assignment", idString(id))
		}

		if err := fn(a); err != nil {
			return err
		}
		a.LastModified = time.Now().UTC()

		update := `
			UPDATE review_assignments SET
				date_due = $1,
				date_response_due = $2,
				date_confirmed = $3,
				date_completed = $4,
				declined = $5,
				cancelled = $6,
				recommendation = $7,
				last_modified = $8
			WHERE review_id = $9`

		_, err = db.Exec(ctx, update,
			a.DateDue, a.DateResponseDue, a.DateConfirmed, a.DateCompleted,
			a.Declined, a.Cancelled, a.Recommendation, a.LastModified,
			id,
		)
		if err != nil {
			return wrapError(err, "update review assignment", "review_assignment", idString(id))
		}
		return nil
	})
}

// ListReviewAssignmentsByRound returns the assignments of a round ordered by id.
func (r *PgAssignmentRepository) ListReviewAssignmentsByRound(ctx context.Context, reviewRoundID int64) ([]*domain.ReviewAssignment, error) {
	query := `SELECT ` + reviewAssignmentColumns + `
		FROM review_assignments
		WHERE review_round_id = $1
		ORDER BY review_id`

	rows, err := r.db.Query(ctx, query, reviewRoundID)
	if err != nil {
		return nil, wrapError(err, "list review assignments", "review_assignment", "")
	}
	out, err := collectRows(rows, func(row pgx.Rows) (*domain.ReviewAssignment, error) { return scanReviewAssignment(row) })
	if err != nil {
		return nil, fmt.Errorf("failed to scan review assignments: %w", err)
	}
	return out, nil
}

// CountOverdue counts overdue assignments on active rounds.
func (r *PgAssignmentRepository) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM review_assignments ra
		JOIN review_rounds rr ON rr.review_round_id = ra.review_round_id
		WHERE ` + fmt.Sprintf(OverdueCondition, "$1")

	var n int
	if err := r.db.QueryRow(ctx, query, now).Scan(&n); err != nil {
		return 0, wrapError(err, "count overdue assignments", "review_assignment", "")
	}
	return n, nil
}

func scanReviewAssignment(row pgx.Row) (*domain.ReviewAssignment, error) {
	var (
		a     domain.ReviewAssignment
		stage int16
	)
	err := row.Scan(
		&a.ID, &a.SubmissionID, &a.ReviewRoundID, &a.ReviewerID, &stage, &a.Round,
		&a.DateAssigned, &a.DateDue, &a.DateResponseDue, &a.DateConfirmed, &a.DateCompleted,
		&a.Declined, &a.Cancelled, &a.Recommendation, &a.LastModified,
	)
	if err != nil {
		return nil, err
	}
	a.StageID = domain.Stage(stage)
	return &a, nil
}
