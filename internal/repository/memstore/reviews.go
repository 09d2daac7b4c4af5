package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/helixir/editorial-workflow-service/internal/domain"
)

type rounds struct{ s *Store }

func (r rounds) Create(_ context.Context, round *domain.ReviewRound) error {
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
	defer r.s.lock()()
	st := r.s.st

	if _, ok := st.submissions[round.SubmissionID]; !ok {
		return domain.NewConstraintViolationError("review_round", "review_rounds_submission_id_fkey")
	}
	for _, existing := range st.rounds {
		if existing.SubmissionID == round.SubmissionID && existing.StageID == round.StageID && existing.Round == round.Round {
			return domain.NewConstraintViolationError("review_round", "review_rounds_submission_stage_round_unique")
		}
	}
	round.ID = st.nextID("review_rounds")
	st.rounds[round.ID] = *round
	return nil
}

func (r rounds) Get(_ context.Context, id int64) (*domain.ReviewRound, error) {
	defer r.s.lock()()
	round, ok := r.s.st.rounds[id]
	if !ok {
		return nil, domain.NewNotFoundError("review_round", idString(id))
	}
	return &round, nil
}

func (r rounds) GetForUpdate(ctx context.Context, id int64) (*domain.ReviewRound, error) {
	return r.Get(ctx, id)
}

func (r rounds) ListBySubmission(_ context.Context, submissionID int64, stage *domain.Stage) ([]*domain.ReviewRound, error) {
	defer r.s.lock()()
	var out []*domain.ReviewRound
	for _, round := range r.s.st.rounds {
		if round.SubmissionID != submissionID || (stage != nil && round.StageID != *stage) {
			continue
		}
		round := round
		out = append(out, &round)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StageID != out[j].StageID {
			return out[i].StageID < out[j].StageID
		}
		return out[i].Round < out[j].Round
	})
	return out, nil
}

func (r rounds) Last(_ context.Context, submissionID int64, stage domain.Stage) (*domain.ReviewRound, error) {
	defer r.s.lock()()
	var last *domain.ReviewRound
	for _, round := range r.s.st.rounds {
		if round.SubmissionID != submissionID || round.StageID != stage {
			continue
		}
		if last == nil || round.Round > last.Round {
			round := round
			last = &round
		}
	}
	if last == nil {
		return nil, domain.NewNotFoundError("review_round", fmt.Sprintf("%d/%s", submissionID, stage))
	}
	return last, nil
}

func (r rounds) UpdateStatus(_ context.Context, id int64, status domain.RoundStatus) error {
	defer r.s.lock()()
	round, ok := r.s.st.rounds[id]
	if !ok {
		return domain.NewNotFoundError("review_round", idString(id))
	}
	round.Status = status
	r.s.st.rounds[id] = round
	return nil
}

func (r rounds) ListActive(_ context.Context, afterID int64, limit int) ([]*domain.ReviewRound, error) {
	if limit <= 0 {
		limit = 100
	}
	defer r.s.lock()()
	var out []*domain.ReviewRound
	for _, round := range r.s.st.rounds {
		if round.ID > afterID && round.Status.IsActive() {
			round := round
			out = append(out, &round)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type decisions struct{ s *Store }

func (r decisions) Insert(_ context.Context, d *domain.EditorialDecision) error {
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
	defer r.s.lock()()
	st := r.s.st

	if _, ok := st.submissions[d.SubmissionID]; !ok {
		return domain.NewConstraintViolationError("edit_decision", "edit_decisions_submission_id_fkey")
	}
	d.ID = st.nextID("edit_decisions")
	st.decisions = append(st.decisions, *d)
	return nil
}

func (r decisions) ListBySubmission(_ context.Context, submissionID int64) ([]*domain.EditorialDecision, error) {
	return r.list(func(d domain.EditorialDecision) bool { return d.SubmissionID == submissionID }), nil
}

func (r decisions) ListByRound(_ context.Context, reviewRoundID int64) ([]*domain.EditorialDecision, error) {
	return r.list(func(d domain.EditorialDecision) bool {
		return d.ReviewRoundID != nil && *d.ReviewRoundID == reviewRoundID
	}), nil
}

func (r decisions) TransferEditor(_ context.Context, fromEditorID, toEditorID int64) (int64, error) {
	if fromEditorID <= 0 || toEditorID <= 0 {
		return 0, domain.NewValidationError("editor_id", "both editor IDs are required")
	}
	if fromEditorID == toEditorID {
		return 0, nil
	}
	defer r.s.lock()()
	var n int64
	for i := range r.s.st.decisions {
		if r.s.st.decisions[i].EditorID == fromEditorID {
			r.s.st.decisions[i].EditorID = toEditorID
			n++
		}
	}
	return n, nil
}

func (r decisions) list(match func(domain.EditorialDecision) bool) []*domain.EditorialDecision {
	defer r.s.lock()()
	var out []*domain.EditorialDecision
	for _, d := range r.s.st.decisions {
		if match(d) {
			d := d
			out = append(out, &d)
		}
	}
	domain.SortDecisions(out)
	return out
}

type assignments struct{ s *Store }

func (r assignments) CreateStageAssignment(_ context.Context, a *domain.StageAssignment) error {
	if a == nil {
		return domain.NewValidationError("stage_assignment", "stage assignment cannot be nil")
	}
	if a.DateAssigned.IsZero() {
		a.DateAssigned = time.Now().UTC()
	}
	defer r.s.lock()()
	if _, ok := r.s.st.submissions[a.SubmissionID]; !ok {
		return domain.NewConstraintViolationError("stage_assignment", "stage_assignments_submission_id_fkey")
	}
	a.ID = r.s.st.nextID("stage_assignments")
	r.s.st.stageAssignments[a.ID] = *a
	return nil
}

func (r assignments) ListStageAssignments(_ context.Context, submissionID int64) ([]*domain.StageAssignment, error) {
	defer r.s.lock()()
	var out []*domain.StageAssignment
	for _, a := range r.s.st.stageAssignments {
		if a.SubmissionID == submissionID {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r assignments) CreateReviewAssignment(_ context.Context, a *domain.ReviewAssignment) error {
	if a == nil {
		return domain.NewValidationError("review_assignment", "review assignment cannot be nil")
	}
	now := time.Now().UTC()
	if a.DateAssigned.IsZero() {
		a.DateAssigned = now
	}
	a.LastModified = now
	defer r.s.lock()()
	if _, ok := r.s.st.rounds[a.ReviewRoundID]; !ok {
		return domain.NewConstraintViolationError("review_assignment", "review_assignments_review_round_id_fkey")
	}
	a.ID = r.s.st.nextID("review_assignments")
	r.s.st.reviewAssignments[a.ID] = *a
	return nil
}

func (r assignments) GetReviewAssignment(_ context.Context, id int64) (*domain.ReviewAssignment, error) {
	defer r.s.lock()()
	a, ok := r.s.st.reviewAssignments[id]
	if !ok {
		return nil, domain.NewNotFoundError("review_assignment", idString(id))
	}
	return &a, nil
}

func (r assignments) UpdateReviewAssignment(_ context.Context, id int64, fn func(*domain.ReviewAssignment) error) error {
	defer r.s.lock()()
	stored, ok := r.s.st.reviewAssignments[id]
	if !ok {
		return domain.NewNotFoundError("review_assignment", idString(id))
	}
	a := stored
	if err := fn(&a); err != nil {
		return err
	}

	// Only dates, flags and the recommendation are writable.
	stored.DateDue = a.DateDue
	stored.DateResponseDue = a.DateResponseDue
	stored.DateConfirmed = a.DateConfirmed
	stored.DateCompleted = a.DateCompleted
	stored.Declined = a.Declined
	stored.Cancelled = a.Cancelled
	stored.Recommendation = a.Recommendation
	stored.LastModified = time.Now().UTC()
	r.s.st.reviewAssignments[id] = stored
	return nil
}

func (r assignments) ListReviewAssignmentsByRound(_ context.Context, reviewRoundID int64) ([]*domain.ReviewAssignment, error) {
	defer r.s.lock()()
	var out []*domain.ReviewAssignment
	for _, a := range r.s.st.reviewAssignments {
		if a.ReviewRoundID == reviewRoundID {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r assignments) CountOverdue(_ context.Context, now time.Time) (int, error) {
	defer r.s.lock()()
	n := 0
	for _, a := range r.s.st.reviewAssignments {
		round, ok := r.s.st.rounds[a.ReviewRoundID]
		if ok && a.IsOverdue(round.Status, now) {
			n++
		}
	}
	return n, nil
}
