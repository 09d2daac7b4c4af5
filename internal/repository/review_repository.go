package repository

import (
	"context"
	"time"

	"github.com/helixir/editorial-workflow-service/internal/domain"
)

// ReviewRoundRepository persists review rounds.
type ReviewRoundRepository interface {
	// Create inserts a review round and sets its ID.
	// Returns domain.ErrConstraintViolation when (submission, stage, round)
	// already exists.
	Create(ctx context.Context, r *domain.ReviewRound) error

	// Get retrieves a review round.
	// Returns domain.ErrNotFound if no matching round exists.
	Get(ctx context.Context, id int64) (*domain.ReviewRound, error)

	// GetForUpdate retrieves a review round and locks its row.
	GetForUpdate(ctx context.Context, id int64) (*domain.ReviewRound, error)

	// ListBySubmission returns the rounds of a submission ordered by stage
	// and round. A nil stage lists every stage.
	ListBySubmission(ctx context.Context, submissionID int64, stage *domain.Stage) ([]*domain.ReviewRound, error)

	// Last returns the highest-numbered round at a stage.
	// Returns domain.ErrNotFound when the stage has no rounds yet.
	Last(ctx context.Context, submissionID int64, stage domain.Stage) (*domain.ReviewRound, error)

	// UpdateStatus stores the cached status of a round.
	UpdateStatus(ctx context.Context, id int64, status domain.RoundStatus) error

	// ListActive pages through rounds whose cached status is active, ordered
	// by id, starting after afterID.
	ListActive(ctx context.Context, afterID int64, limit int) ([]*domain.ReviewRound, error)
}

// DecisionRepository persists the append-only editorial decision log.
type DecisionRepository interface {
	// Insert appends a decision and sets its ID. Prior decisions never cause
	// an insert to fail.
	Insert(ctx context.Context, d *domain.EditorialDecision) error

	// ListBySubmission returns the decision log of a submission in canonical
	// order: dateDecided ascending, id breaking ties.
	ListBySubmission(ctx context.Context, submissionID int64) ([]*domain.EditorialDecision, error)

	// ListByRound returns the decisions recorded against a review round in
	// canonical order.
	ListByRound(ctx context.Context, reviewRoundID int64) ([]*domain.EditorialDecision, error)

	// TransferEditor rewrites editorId from one editor to another on every
	// decision and returns the number of rows changed. No other field changes.
	TransferEditor(ctx context.Context, fromEditorID, toEditorID int64) (int64, error)
}

// AssignmentRepository persists stage and review assignments.
type AssignmentRepository interface {
	// CreateStageAssignment inserts a stage assignment and sets its ID.
	CreateStageAssignment(ctx context.Context, a *domain.StageAssignment) error

	// ListStageAssignments returns the stage assignments of a submission with
	// the role of each assignment's user group.
	ListStageAssignments(ctx context.Context, submissionID int64) ([]*domain.StageAssignment, error)

	// CreateReviewAssignment inserts a review assignment and sets its ID.
	CreateReviewAssignment(ctx context.Context, a *domain.ReviewAssignment) error

	// GetReviewAssignment retrieves a review assignment.
	// Returns domain.ErrNotFound if no matching assignment exists.
	GetReviewAssignment(ctx context.Context, id int64) (*domain.ReviewAssignment, error)

	// UpdateReviewAssignment locks the assignment, applies fn and persists
	// its dates, flags and recommendation.
	UpdateReviewAssignment(ctx context.Context, id int64, fn func(*domain.ReviewAssignment) error) error

	// ListReviewAssignmentsByRound returns the review assignments of a round.
	ListReviewAssignmentsByRound(ctx context.Context, reviewRoundID int64) ([]*domain.ReviewAssignment, error)

	// CountOverdue counts overdue review assignments on active rounds at now.
	CountOverdue(ctx context.Context, now time.Time) (int, error)
}
