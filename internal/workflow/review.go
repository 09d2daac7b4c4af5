package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/events"
	"github.com/helixir/editorial-workflow-service/internal/observability"
	"github.com/helixir/editorial-workflow-service/internal/repository"
)

// Round status refresh outcomes, used as metric labels.
const (
	RefreshChanged   = "changed"
	RefreshUnchanged = "unchanged"
	RefreshFailed    = "failed"
)

// Review records editorial decisions and maintains review rounds.
type Review struct {
	store    repository.Store
	versions *Versioning
	events   dispatcher
	logger   zerolog.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewReview creates a review workflow engine. versions creates the
// publication versions a decision may request.
func NewReview(store repository.Store, versions *Versioning, publisher events.Publisher, logger zerolog.Logger, metrics *observability.Metrics) *Review {
	logger = logger.With().Str("component", "review").Logger()
	return &Review{
		store:    store,
		versions: versions,
		events:   newDispatcher(publisher, logger),
		logger:   logger,
		metrics:  metrics,
		now:      utcNow,
	}
}

// DecisionInput describes an editorial decision to record.
type DecisionInput struct {
	SubmissionID int64               `validate:"required,gt=0"`
	EditorID     int64               `validate:"required,gt=0"`
	Decision     domain.DecisionCode `validate:"required"`

	// ReviewRoundID pins the decision to a round. Zero records it against
	// the newest round of the submission's current stage, if that stage
	// runs review rounds.
	ReviewRoundID int64 `validate:"gte=0"`

	// NewVersion derives a publication version from the latest one and
	// makes it current in the same transaction.
	NewVersion bool
}

// DecisionResult reports what recording a decision changed.
type DecisionResult struct {
	Decision       *domain.EditorialDecision
	Submission     *domain.Submission
	Round          *domain.ReviewRound
	NewRound       *domain.ReviewRound
	NewPublication *domain.Publication
}

// RecordDecision appends a decision to the log and applies its side effects:
// round status, stage and status changes, a new review round and optionally
// a new current publication version. Prior decisions never make it fail.
func (r *Review) RecordDecision(ctx context.Context, in DecisionInput) (*DecisionResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if !in.Decision.Valid() {
		return nil, domain.NewValidationError("Decision", fmt.Sprintf("unknown decision %q", in.Decision))
	}

	res := &DecisionResult{}
	err := r.store.WithTx(ctx, func(tx repository.Store) error {
		sub, err := tx.Submissions().GetForUpdate(ctx, in.SubmissionID)
		if err != nil {
			return err
		}

		round, err := r.decisionRound(ctx, tx, sub, in.ReviewRoundID)
		if err != nil {
			return err
		}
		stage := sub.StageID
		if round != nil {
			stage = round.StageID
		}

		now := r.now()
		d := &domain.EditorialDecision{
			SubmissionID:  sub.ID,
			PublicationID: sub.CurrentPublicationID,
			StageID:       stage,
			EditorID:      in.EditorID,
			Decision:      in.Decision,
			DateDecided:   now,
		}
		if round != nil {
			d.ReviewRoundID = &round.ID
			d.Round = round.Round
		}
		if err := tx.Decisions().Insert(ctx, d); err != nil {
			return err
		}
		res.Decision = d

		if round != nil {
			if _, _, err := r.refreshRound(ctx, tx, round); err != nil {
				return err
			}
			res.Round = round
		}

		if in.NewVersion {
			res.NewPublication, err = r.versions.newVersion(ctx, tx, sub, 0)
			if err != nil {
				return err
			}
		}

		effect := domain.EffectOf(in.Decision, stage)
		newStage := sub.StageID
		switch {
		case effect.NewStage != 0:
			newStage = effect.NewStage
		case effect.ReturnToReview:
			if newStage, err = r.lastReviewStage(ctx, tx, sub.ID); err != nil {
				return err
			}
		}

		if effect.OpenRoundAt != 0 {
			res.NewRound, err = r.openRound(ctx, tx, sub, effect.OpenRoundAt, res.NewPublication)
			if err != nil {
				return err
			}
		}

		return tx.Submissions().Update(ctx, sub.ID, func(s *domain.Submission) error {
			s.StageID = newStage
			if effect.NewStatus != "" {
				s.Status = effect.NewStatus
			}
			if res.NewPublication != nil {
				s.CurrentPublicationID = &res.NewPublication.ID
			}
			s.Touch(now)
			res.Submission = s
			return nil
		})
	})
	if err != nil {
		return nil, wrapSubmission(err, fmt.Sprintf("record %s decision", in.Decision), in.SubmissionID)
	}

	r.decisionRecorded(ctx, res)
	return res, nil
}

// decisionRound resolves the round a decision is recorded against and locks it.
func (r *Review) decisionRound(ctx context.Context, tx repository.Store, sub *domain.Submission, roundID int64) (*domain.ReviewRound, error) {
	if roundID != 0 {
		round, err := tx.ReviewRounds().GetForUpdate(ctx, roundID)
		if err != nil {
			return nil, err
		}
		if round.SubmissionID != sub.ID {
			return nil, domain.NewNotFoundError("review round", fmt.Sprintf("%d in submission %d", roundID, sub.ID))
		}
		return round, nil
	}
	if !sub.StageID.IsReview() {
		return nil, nil
	}

	last, err := tx.ReviewRounds().Last(ctx, sub.ID, sub.StageID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tx.ReviewRounds().GetForUpdate(ctx, last.ID)
}

// lastReviewStage returns the stage of the submission's most recent review
// round, or the submission stage when it never went to review.
func (r *Review) lastReviewStage(ctx context.Context, tx repository.Store, submissionID int64) (domain.Stage, error) {
	rounds, err := tx.ReviewRounds().ListBySubmission(ctx, submissionID, nil)
	if err != nil {
		return 0, err
	}
	if len(rounds) == 0 {
		return domain.StageSubmission, nil
	}
	return rounds[len(rounds)-1].StageID, nil
}

// openRound creates the next round at stage. The round reviews pub when
// given, otherwise the submission's current publication.
func (r *Review) openRound(ctx context.Context, tx repository.Store, sub *domain.Submission, stage domain.Stage, pub *domain.Publication) (*domain.ReviewRound, error) {
	next := 1
	last, err := tx.ReviewRounds().Last(ctx, sub.ID, stage)
	switch {
	case err == nil:
		next = last.Round + 1
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	round := &domain.ReviewRound{
		SubmissionID:  sub.ID,
		PublicationID: sub.CurrentPublicationID,
		StageID:       stage,
		Round:         next,
		Status:        domain.RoundStatusOpen,
	}
	if pub != nil {
		round.PublicationID = &pub.ID
	}
	if err := tx.ReviewRounds().Create(ctx, round); err != nil {
		return nil, err
	}
	return round, nil
}

func (r *Review) decisionRecorded(ctx context.Context, res *DecisionResult) {
	d, sub := res.Decision, res.Submission
	r.metrics.RecordDecision(string(d.Decision))

	logger := observability.WithSubmissionContext(r.logger, sub.ContextID, sub.ID)
	ev := logger.Info().
		Int64("decision_id", d.ID).
		Str("decision", string(d.Decision)).
		Str("stage", d.StageID.String()).
		Str("new_stage", sub.StageID.String()).
		Str("status", string(sub.Status))
	if res.Round != nil {
		ev = ev.Str("round_status", string(res.Round.Status))
	}
	ev.Msg("editorial decision recorded")

	payload := domain.DecisionRecordedPayload{
		DecisionID:    d.ID,
		Decision:      d.Decision,
		StageID:       d.StageID,
		ReviewRoundID: d.ReviewRoundID,
		NewStageID:    sub.StageID,
		Status:        sub.Status,
	}
	if res.Round != nil {
		payload.RoundStatus = res.Round.Status
	}
	if res.NewRound != nil {
		payload.NewRoundID = &res.NewRound.ID
	}
	if res.NewPublication != nil {
		payload.NewVersionID = &res.NewPublication.ID
	}
	r.events.publish(ctx, r.events.event(domain.EventTypeDecisionRecorded, sub, d.EditorID, payload))

	if res.NewPublication != nil {
		r.versions.versionCreated(ctx, sub, res.NewPublication, d.EditorID)
	}
}

// Decisions returns the decision log of a submission in canonical order.
func (r *Review) Decisions(ctx context.Context, submissionID int64) ([]*domain.EditorialDecision, error) {
	if _, err := r.store.Submissions().Get(ctx, submissionID); err != nil {
		return nil, err
	}
	return r.store.Decisions().ListBySubmission(ctx, submissionID)
}

// Rounds returns the review rounds of a submission, optionally limited to one stage.
func (r *Review) Rounds(ctx context.Context, submissionID int64, stage *domain.Stage) ([]*domain.ReviewRound, error) {
	if _, err := r.store.Submissions().Get(ctx, submissionID); err != nil {
		return nil, err
	}
	return r.store.ReviewRounds().ListBySubmission(ctx, submissionID, stage)
}

// ControllingPendingRevisionsDecision returns the revision request still in
// force at stage, or nil.
func (r *Review) ControllingPendingRevisionsDecision(ctx context.Context, submissionID int64, stage domain.Stage) (*domain.EditorialDecision, error) {
	log, err := r.store.Decisions().ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, wrapSubmission(err, "read decision log", submissionID)
	}
	return domain.ControllingPendingRevisionsDecision(log, stage, domain.PendingRevisionsCodeFor(stage)), nil
}

// HasAuthorResponded reports whether a review-revision file of the decision's
// round has a revision newer than the decision. Decisions outside a round
// never have a response.
func (r *Review) HasAuthorResponded(ctx context.Context, d *domain.EditorialDecision) (bool, error) {
	if d == nil || d.ReviewRoundID == nil {
		return false, nil
	}
	files, err := r.store.Files().ListByRound(ctx, *d.ReviewRoundID, domain.FileStageReviewRevision)
	if err != nil {
		return false, err
	}
	if len(files) == 0 {
		return false, nil
	}
	ids := make([]int64, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	revisions, err := r.store.Files().RevisionsForFiles(ctx, ids)
	if err != nil {
		return false, err
	}
	return domain.RespondedAfter(revisions, d.DateDecided), nil
}

// AuthorResponse finds the controlling revision request at stage and
// whether the author has answered it. The decision is nil when no request
// is in force.
func (r *Review) AuthorResponse(ctx context.Context, submissionID int64, stage domain.Stage) (*domain.EditorialDecision, bool, error) {
	d, err := r.ControllingPendingRevisionsDecision(ctx, submissionID, stage)
	if err != nil || d == nil {
		return nil, false, err
	}
	responded, err := r.HasAuthorResponded(ctx, d)
	return d, responded, err
}

// RoundStatus derives the status of a round from its decisions and
// assignments without writing it.
func (r *Review) RoundStatus(ctx context.Context, roundID int64) (domain.RoundStatus, error) {
	if _, err := r.store.ReviewRounds().Get(ctx, roundID); err != nil {
		return "", err
	}
	return deriveRoundStatus(ctx, r.store, roundID)
}

func deriveRoundStatus(ctx context.Context, store repository.Store, roundID int64) (domain.RoundStatus, error) {
	decisions, err := store.Decisions().ListByRound(ctx, roundID)
	if err != nil {
		return "", err
	}
	assignments, err := store.Assignments().ListReviewAssignmentsByRound(ctx, roundID)
	if err != nil {
		return "", err
	}
	active := false
	for _, a := range assignments {
		if a.IsActive() {
			active = true
			break
		}
	}
	return domain.DeriveRoundStatus(decisions, active), nil
}

// refreshRound recomputes and stores the cached status of a locked round.
func (r *Review) refreshRound(ctx context.Context, tx repository.Store, round *domain.ReviewRound) (from domain.RoundStatus, changed bool, err error) {
	from = round.Status
	status, err := deriveRoundStatus(ctx, tx, round.ID)
	if err != nil {
		return from, false, err
	}
	if status == round.Status {
		return from, false, nil
	}
	if err := tx.ReviewRounds().UpdateStatus(ctx, round.ID, status); err != nil {
		return from, false, err
	}
	round.Status = status
	return from, true, nil
}

// RefreshRoundStatus recomputes the cached status of one round and reports
// whether it changed.
func (r *Review) RefreshRoundStatus(ctx context.Context, roundID int64) (domain.RoundStatus, bool, error) {
	var (
		round   *domain.ReviewRound
		from    domain.RoundStatus
		changed bool
	)
	err := r.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		if round, err = tx.ReviewRounds().GetForUpdate(ctx, roundID); err != nil {
			return err
		}
		from, changed, err = r.refreshRound(ctx, tx, round)
		return err
	})
	if err != nil {
		r.metrics.RecordRoundStatusRefresh(RefreshFailed)
		return "", false, fmt.Errorf("refresh review round %d: %w", roundID, err)
	}

	if !changed {
		r.metrics.RecordRoundStatusRefresh(RefreshUnchanged)
		return round.Status, false, nil
	}

	r.metrics.RecordRoundStatusRefresh(RefreshChanged)
	logger := observability.WithRoundContext(r.logger, round.ID, int(round.StageID), round.Round)
	logger.Info().
		Str("from", string(from)).
		Str("to", string(round.Status)).
		Msg("review round status refreshed")
	sub := &domain.Submission{ID: round.SubmissionID}
	if s, err := r.store.Submissions().Get(ctx, round.SubmissionID); err == nil {
		sub = s
	}
	r.events.publish(ctx, r.events.event(domain.EventTypeRoundStatusRefreshed, sub, 0, domain.RoundStatusRefreshedPayload{
		ReviewRoundID: round.ID,
		From:          from,
		To:            round.Status,
	}))
	return round.Status, true, nil
}

// ActiveRounds pages through rounds whose cached status is active.
func (r *Review) ActiveRounds(ctx context.Context, afterID int64, limit int) ([]*domain.ReviewRound, error) {
	return r.store.ReviewRounds().ListActive(ctx, afterID, limit)
}

// TransferDecisions moves every decision of one editor to another and
// returns the number of decisions changed.
func (r *Review) TransferDecisions(ctx context.Context, fromEditorID, toEditorID int64) (int64, error) {
	if fromEditorID <= 0 || toEditorID <= 0 {
		return 0, domain.NewValidationError("editor", "editor ids must be positive")
	}
	if fromEditorID == toEditorID {
		return 0, domain.NewValidationError("editor", "source and target editor are the same")
	}
	n, err := r.store.Decisions().TransferEditor(ctx, fromEditorID, toEditorID)
	if err != nil {
		return 0, fmt.Errorf("transfer decisions from editor %d: %w", fromEditorID, err)
	}
	r.logger.Info().
		Int64("from_editor_id", fromEditorID).
		Int64("to_editor_id", toEditorID).
		Int64("decisions", n).
		Msg("decisions transferred")
	return n, nil
}
