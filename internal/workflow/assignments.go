package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/repository"
)

// ReviewerInput invites a reviewer to a review round.
type ReviewerInput struct {
	ReviewRoundID   int64 `validate:"required,gt=0"`
	ReviewerID      int64 `validate:"required,gt=0"`
	DateDue         *time.Time
	DateResponseDue *time.Time
}

// ReviewerAction is a reviewer's or editor's step on a review assignment.
type ReviewerAction string

const (
	ReviewerConfirm   ReviewerAction = "confirm"
	ReviewerDecline   ReviewerAction = "decline"
	ReviewerComplete  ReviewerAction = "complete"
	ReviewerCancel    ReviewerAction = "cancel"
	ReviewerReinstate ReviewerAction = "reinstate"
)

// StageAssignmentInput assigns a user to a submission's workflow.
type StageAssignmentInput struct {
	SubmissionID  int64         `validate:"required,gt=0"`
	UserGroupID   int64         `validate:"required,gt=0"`
	UserID        int64         `validate:"required,gt=0"`
	RoleID        domain.RoleID `validate:"required,gt=0"`
	RecommendOnly bool
}

// AssignReviewer creates a review assignment and refreshes the round status.
func (r *Review) AssignReviewer(ctx context.Context, in ReviewerInput) (*domain.ReviewAssignment, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var created *domain.ReviewAssignment
	err := r.store.WithTx(ctx, func(tx repository.Store) error {
		round, err := tx.ReviewRounds().Get(ctx, in.ReviewRoundID)
		if err != nil {
			return err
		}
		sub, err := tx.Submissions().GetForUpdate(ctx, round.SubmissionID)
		if err != nil {
			return err
		}
		if round, err = tx.ReviewRounds().GetForUpdate(ctx, round.ID); err != nil {
			return err
		}

		now := r.now()
		created = &domain.ReviewAssignment{
			SubmissionID:    sub.ID,
			ReviewRoundID:   round.ID,
			ReviewerID:      in.ReviewerID,
			StageID:         round.StageID,
			Round:           round.Round,
			DateAssigned:    now,
			DateDue:         in.DateDue,
			DateResponseDue: in.DateResponseDue,
			LastModified:    now,
		}
		if err := tx.Assignments().CreateReviewAssignment(ctx, created); err != nil {
			return err
		}
		if _, _, err := r.refreshRound(ctx, tx, round); err != nil {
			return err
		}
		return tx.Submissions().Update(ctx, sub.ID, func(s *domain.Submission) error {
			s.Touch(now)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("assign reviewer %d to round %d: %w", in.ReviewerID, in.ReviewRoundID, err)
	}

	r.logger.Info().
		Int64("review_id", created.ID).
		Int64("review_round_id", created.ReviewRoundID).
		Int64("reviewer_id", created.ReviewerID).
		Msg("reviewer assigned")
	return created, nil
}

// UpdateReviewer applies a reviewer action and refreshes the round status.
// Completing a review records the recommendation.
func (r *Review) UpdateReviewer(ctx context.Context, assignmentID int64, action ReviewerAction, recommendation string) (*domain.ReviewAssignment, error) {
	var updated *domain.ReviewAssignment
	err := r.store.WithTx(ctx, func(tx repository.Store) error {
		a, err := tx.Assignments().GetReviewAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		if _, err := tx.Submissions().GetForUpdate(ctx, a.SubmissionID); err != nil {
			return err
		}
		round, err := tx.ReviewRounds().GetForUpdate(ctx, a.ReviewRoundID)
		if err != nil {
			return err
		}

		now := r.now()
		err = tx.Assignments().UpdateReviewAssignment(ctx, assignmentID, func(ra *domain.ReviewAssignment) error {
			if err := applyReviewerAction(ra, action, recommendation, now); err != nil {
				return err
			}
			ra.LastModified = now
			updated = ra
			return nil
		})
		if err != nil {
			return err
		}
		_, _, err = r.refreshRound(ctx, tx, round)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s review assignment %d: %w", action, assignmentID, err)
	}

	r.logger.Info().
		Int64("review_id", assignmentID).
		Str("action", string(action)).
		Msg("review assignment updated")
	return updated, nil
}

// applyReviewerAction mutates a according to action.
func applyReviewerAction(a *domain.ReviewAssignment, action ReviewerAction, recommendation string, now time.Time) error {
	id := fmt.Sprintf("%d", a.ID)
	closed := a.Declined || a.Cancelled || a.DateCompleted != nil

	switch action {
	case ReviewerConfirm:
		if closed {
			return domain.NewInvalidStateError("review assignment", id, "assignment is closed")
		}
		a.DateConfirmed = &now
	case ReviewerDecline:
		if closed {
			return domain.NewInvalidStateError("review assignment", id, "assignment is closed")
		}
		a.Declined = true
	case ReviewerComplete:
		if closed {
			return domain.NewInvalidStateError("review assignment", id, "assignment is closed")
		}
		if a.DateConfirmed == nil {
			a.DateConfirmed = &now
		}
		a.DateCompleted = &now
		a.Recommendation = recommendation
	case ReviewerCancel:
		if a.DateCompleted != nil {
			return domain.NewInvalidStateError("review assignment", id, "review is already completed")
		}
		a.Cancelled = true
	case ReviewerReinstate:
		if !a.Declined && !a.Cancelled {
			return domain.NewInvalidStateError("review assignment", id, "assignment is not declined or cancelled")
		}
		a.Declined = false
		a.Cancelled = false
	default:
		return domain.NewValidationError("action", fmt.Sprintf("unknown reviewer action %q", action))
	}
	return nil
}

// ReviewAssignments returns the review assignments of a round.
func (r *Review) ReviewAssignments(ctx context.Context, roundID int64) ([]*domain.ReviewAssignment, error) {
	if _, err := r.store.ReviewRounds().Get(ctx, roundID); err != nil {
		return nil, err
	}
	return r.store.Assignments().ListReviewAssignmentsByRound(ctx, roundID)
}

// IsOverdue reports whether a review assignment is overdue now.
func (r *Review) IsOverdue(ctx context.Context, assignmentID int64) (bool, error) {
	a, err := r.store.Assignments().GetReviewAssignment(ctx, assignmentID)
	if err != nil {
		return false, err
	}
	round, err := r.store.ReviewRounds().Get(ctx, a.ReviewRoundID)
	if err != nil {
		return false, err
	}
	return a.IsOverdue(round.Status, r.now()), nil
}

// CountOverdue counts overdue review assignments across all active rounds.
func (r *Review) CountOverdue(ctx context.Context) (int, error) {
	return r.store.Assignments().CountOverdue(ctx, r.now())
}

// AssignStage gives a user a role on a submission's workflow.
func (r *Review) AssignStage(ctx context.Context, in StageAssignmentInput) (*domain.StageAssignment, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	a := &domain.StageAssignment{
		SubmissionID:  in.SubmissionID,
		UserGroupID:   in.UserGroupID,
		UserID:        in.UserID,
		RoleID:        in.RoleID,
		RecommendOnly: in.RecommendOnly,
	}
	err := r.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Submissions().GetForUpdate(ctx, in.SubmissionID); err != nil {
			return err
		}
		now := r.now()
		a.DateAssigned = now
		if err := tx.Assignments().CreateStageAssignment(ctx, a); err != nil {
			return err
		}
		return tx.Submissions().Update(ctx, in.SubmissionID, func(s *domain.Submission) error {
			s.Touch(now)
			return nil
		})
	})
	if err != nil {
		return nil, wrapSubmission(err, "assign stage participant", in.SubmissionID)
	}
	return a, nil
}

// StageAssignments returns the stage assignments of a submission.
func (r *Review) StageAssignments(ctx context.Context, submissionID int64) ([]*domain.StageAssignment, error) {
	return r.store.Assignments().ListStageAssignments(ctx, submissionID)
}
