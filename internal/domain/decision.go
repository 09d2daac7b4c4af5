package domain

import (
	"sort"
	"time"
)

// DecisionCode enumerates editorial decisions.
// These values must match the database enum decision_code.
type DecisionCode string

const (
	DecisionSendInternalReview       DecisionCode = "send_internal_review"
	DecisionExternalReview           DecisionCode = "external_review"
	DecisionSkipExternalReview       DecisionCode = "skip_external_review"
	DecisionAccept                   DecisionCode = "accept"
	DecisionDecline                  DecisionCode = "decline"
	DecisionInitialDecline           DecisionCode = "initial_decline"
	DecisionRevertDecline            DecisionCode = "revert_decline"
	DecisionRevertInitialDecline     DecisionCode = "revert_initial_decline"
	DecisionPendingRevisions         DecisionCode = "pending_revisions"
	DecisionInternalPendingRevisions DecisionCode = "internal_pending_revisions"
	DecisionResubmit                 DecisionCode = "resubmit"
	DecisionNewReviewRound           DecisionCode = "new_review_round"
	DecisionSendToProduction         DecisionCode = "send_to_production"
	DecisionBackFromProduction       DecisionCode = "back_from_production"
	DecisionBackFromCopyediting      DecisionCode = "back_from_copyediting"
	DecisionRecommendAccept          DecisionCode = "recommend_accept"
	DecisionRecommendDecline         DecisionCode = "recommend_decline"
	DecisionRecommendRevisions       DecisionCode = "recommend_revisions"
	DecisionRecommendResubmit        DecisionCode = "recommend_resubmit"
)

var validDecisionCodes = map[DecisionCode]struct{}{
	DecisionSendInternalReview:       {},
	DecisionExternalReview:           {},
	DecisionSkipExternalReview:       {},
	DecisionAccept:                   {},
	DecisionDecline:                  {},
	DecisionInitialDecline:           {},
	DecisionRevertDecline:            {},
	DecisionRevertInitialDecline:     {},
	DecisionPendingRevisions:         {},
	DecisionInternalPendingRevisions: {},
	DecisionResubmit:                 {},
	DecisionNewReviewRound:           {},
	DecisionSendToProduction:         {},
	DecisionBackFromProduction:       {},
	DecisionBackFromCopyediting:      {},
	DecisionRecommendAccept:          {},
	DecisionRecommendDecline:         {},
	DecisionRecommendRevisions:       {},
	DecisionRecommendResubmit:        {},
}

// Valid reports whether c is a known decision code.
func (c DecisionCode) Valid() bool {
	_, ok := validDecisionCodes[c]
	return ok
}

// IsPostReview returns true for decisions taken after review that leave an
// earlier pending-revisions decision in force.
func (c DecisionCode) IsPostReview() bool {
	return c == DecisionSendToProduction
}

// IsRecommendation returns true for advisory decisions that carry no side effects.
func (c DecisionCode) IsRecommendation() bool {
	switch c {
	case DecisionRecommendAccept, DecisionRecommendDecline, DecisionRecommendRevisions, DecisionRecommendResubmit:
		return true
	default:
		return false
	}
}

// IsRevisionRequest returns true for the revision-request decision types.
func (c DecisionCode) IsRevisionRequest() bool {
	return c == DecisionPendingRevisions || c == DecisionInternalPendingRevisions
}

// PendingRevisionsCodeFor returns the revision-request decision used at a review stage.
func PendingRevisionsCodeFor(stage Stage) DecisionCode {
	if stage == StageInternalReview {
		return DecisionInternalPendingRevisions
	}
	return DecisionPendingRevisions
}

// EditorialDecision is an append-only decision log entry.
type EditorialDecision struct {
	ID            int64        `json:"id"`
	SubmissionID  int64        `json:"submission_id"`
	PublicationID *int64       `json:"publication_id,omitempty"`
	ReviewRoundID *int64       `json:"review_round_id,omitempty"`
	StageID       Stage        `json:"stage_id"`
	Round         int          `json:"round"`
	EditorID      int64        `json:"editor_id"`
	Decision      DecisionCode `json:"decision"`
	DateDecided   time.Time    `json:"date_decided"`
}

// InRound reports whether the decision was recorded against the given review round.
func (d *EditorialDecision) InRound(roundID int64) bool {
	return d.ReviewRoundID != nil && *d.ReviewRoundID == roundID
}

// SortDecisions orders a decision log canonically: dateDecided ascending, id breaking ties.
func SortDecisions(decisions []*EditorialDecision) {
	sort.SliceStable(decisions, func(i, j int) bool {
		if decisions[i].DateDecided.Equal(decisions[j].DateDecided) {
			return decisions[i].ID < decisions[j].ID
		}
		return decisions[i].DateDecided.Before(decisions[j].DateDecided)
	})
}

// ControllingPendingRevisionsDecision finds the revision request still in force
// at stage for the given target code. The log is scanned newest first:
// post-review decisions are skipped, target decisions at other stages are
// skipped, and any other decision ends the scan with no result.
func ControllingPendingRevisionsDecision(log []*EditorialDecision, stage Stage, target DecisionCode) *EditorialDecision {
	if len(log) == 0 {
		return nil
	}

	ordered := make([]*EditorialDecision, len(log))
	copy(ordered, log)
	SortDecisions(ordered)

	for i := len(ordered) - 1; i >= 0; i-- {
		d := ordered[i]
		switch {
		case d.Decision.IsPostReview():
			continue
		case d.Decision == target:
			if d.StageID == stage {
				return d
			}
			continue
		default:
			return nil
		}
	}
	return nil
}

// DeriveRoundStatus computes a review round's status from the decisions
// recorded against it and whether reviewers are still working on it.
// The newest decision with a status mapping wins. A revert cancels the
// newest preceding decline.
func DeriveRoundStatus(roundDecisions []*EditorialDecision, hasActiveAssignments bool) RoundStatus {
	ordered := make([]*EditorialDecision, len(roundDecisions))
	copy(ordered, roundDecisions)
	SortDecisions(ordered)

	reverts := 0
	for i := len(ordered) - 1; i >= 0; i-- {
		switch ordered[i].Decision {
		case DecisionRevertDecline, DecisionRevertInitialDecline:
			reverts++
		case DecisionDecline, DecisionInitialDecline:
			if reverts > 0 {
				reverts--
				continue
			}
			return RoundStatusDeclined
		case DecisionAccept, DecisionSkipExternalReview:
			return RoundStatusAccepted
		case DecisionPendingRevisions, DecisionInternalPendingRevisions:
			return RoundStatusRevisionsRequested
		case DecisionResubmit, DecisionNewReviewRound:
			return RoundStatusResubmittedForReview
		case DecisionExternalReview:
			return RoundStatusSentToExternal
		}
	}

	if hasActiveAssignments {
		return RoundStatusUnderReview
	}
	return RoundStatusOpen
}

// DecisionEffect describes the submission changes implied by a decision.
// Zero fields mean no change.
type DecisionEffect struct {
	NewStage  Stage
	NewStatus SubmissionStatus

	// OpenRoundAt is the review stage where a new round must be opened.
	OpenRoundAt Stage

	// ReturnToReview moves the submission back to the stage of its latest review round.
	ReturnToReview bool
}

// EffectOf returns the side effects of recording code while the submission sits at stage.
func EffectOf(code DecisionCode, stage Stage) DecisionEffect {
	switch code {
	case DecisionSendInternalReview:
		return DecisionEffect{NewStage: StageInternalReview, OpenRoundAt: StageInternalReview}
	case DecisionExternalReview:
		return DecisionEffect{NewStage: StageExternalReview, OpenRoundAt: StageExternalReview}
	case DecisionSkipExternalReview, DecisionAccept, DecisionBackFromProduction:
		return DecisionEffect{NewStage: StageCopyediting}
	case DecisionDecline, DecisionInitialDecline:
		return DecisionEffect{NewStatus: SubmissionStatusDeclined}
	case DecisionRevertDecline, DecisionRevertInitialDecline:
		return DecisionEffect{NewStatus: SubmissionStatusQueued}
	case DecisionResubmit, DecisionNewReviewRound:
		if stage.IsReview() {
			return DecisionEffect{OpenRoundAt: stage}
		}
		return DecisionEffect{}
	case DecisionSendToProduction:
		return DecisionEffect{NewStage: StageProduction}
	case DecisionBackFromCopyediting:
		return DecisionEffect{ReturnToReview: true}
	default:
		return DecisionEffect{}
	}
}
