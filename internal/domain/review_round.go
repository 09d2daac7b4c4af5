package domain

import "time"

// ReviewRound is one cycle of peer review at a given workflow stage.
type ReviewRound struct {
	ID            int64       `json:"id"`
	SubmissionID  int64       `json:"submission_id"`
	PublicationID *int64      `json:"publication_id,omitempty"`
	StageID       Stage       `json:"stage_id"`
	Round         int         `json:"round"`
	Status        RoundStatus `json:"status"`
}

// ReviewAssignment invites a reviewer to a review round.
type ReviewAssignment struct {
	ID              int64      `json:"id"`
	SubmissionID    int64      `json:"submission_id"`
	ReviewRoundID   int64      `json:"review_round_id"`
	ReviewerID      int64      `json:"reviewer_id"`
	StageID         Stage      `json:"stage_id"`
	Round           int        `json:"round"`
	DateAssigned    time.Time  `json:"date_assigned"`
	DateDue         *time.Time `json:"date_due,omitempty"`
	DateResponseDue *time.Time `json:"date_response_due,omitempty"`
	DateConfirmed   *time.Time `json:"date_confirmed,omitempty"`
	DateCompleted   *time.Time `json:"date_completed,omitempty"`
	Declined        bool       `json:"declined"`
	Cancelled       bool       `json:"cancelled"`
	Recommendation  string     `json:"recommendation,omitempty"`
	LastModified    time.Time  `json:"last_modified"`
}

// IsActive returns true while the reviewer is expected to work on the round.
func (a *ReviewAssignment) IsActive() bool {
	return !a.Declined && !a.Cancelled && a.DateCompleted == nil
}

// IsOverdue reports whether the assignment is overdue at now, given the status
// of the round it belongs to.
func (a *ReviewAssignment) IsOverdue(roundStatus RoundStatus, now time.Time) bool {
	if !roundStatus.IsActive() || a.Declined || a.Cancelled {
		return false
	}
	reviewLate := a.DateDue != nil && a.DateDue.Before(now) && a.DateCompleted == nil
	responseLate := a.DateResponseDue != nil && a.DateResponseDue.Before(now) && a.DateConfirmed == nil
	return reviewLate || responseLate
}

// StageAssignment gives a user a role on a submission's workflow.
type StageAssignment struct {
	ID            int64     `json:"id"`
	SubmissionID  int64     `json:"submission_id"`
	UserGroupID   int64     `json:"user_group_id"`
	UserID        int64     `json:"user_id"`
	RoleID        RoleID    `json:"role_id"`
	DateAssigned  time.Time `json:"date_assigned"`
	RecommendOnly bool      `json:"recommend_only"`
}
