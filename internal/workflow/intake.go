package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/events"
	"github.com/helixir/editorial-workflow-service/internal/locale"
	"github.com/helixir/editorial-workflow-service/internal/observability"
	"github.com/helixir/editorial-workflow-service/internal/repository"
)

// Intake creates, finalizes and deletes submissions.
type Intake struct {
	store   repository.Store
	locales *locale.Resolver
	events  dispatcher
	logger  zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewIntake creates an intake engine. locales supplies the default
// submission locale of a context.
func NewIntake(store repository.Store, locales *locale.Resolver, publisher events.Publisher, logger zerolog.Logger, metrics *observability.Metrics) *Intake {
	logger = logger.With().Str("component", "intake").Logger()
	return &Intake{
		store:   store,
		locales: locales,
		events:  newDispatcher(publisher, logger),
		logger:  logger,
		metrics: metrics,
		now:     utcNow,
	}
}

// SubmissionInput starts a submission.
type SubmissionInput struct {
	ContextID int64 `validate:"required,gt=0"`

	// Locale defaults to the context's primary locale.
	Locale string

	// Progress is the intake wizard step; it must be positive until finalized.
	Progress int `validate:"gte=0"`

	Title       domain.LocalizedText `validate:"required,min=1"`
	Abstract    domain.LocalizedText
	Authors     []domain.Author `validate:"dive"`
	CategoryIDs []int64         `validate:"dive,gt=0"`
	SubmitterID int64           `validate:"required,gt=0"`
}

// Create stores a new, unfinalized submission with its first publication
// and points currentPublicationId at it.
func (i *Intake) Create(ctx context.Context, input SubmissionInput) (*domain.Submission, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	title := sanitizeText(input.Title, titlePolicy)
	if len(title) == 0 {
		return nil, domain.NewValidationError("Title", "empty after sanitization")
	}

	subLocale := locale.Normalize(input.Locale)
	if subLocale == "" && i.locales != nil {
		subLocale = i.locales.PrimaryLocale(input.ContextID)
	}
	progress := input.Progress
	if progress <= 0 {
		progress = 1
	}

	now := i.now()
	sub := &domain.Submission{
		ContextID:          input.ContextID,
		Status:             domain.SubmissionStatusQueued,
		StageID:            domain.StageSubmission,
		SubmissionProgress: progress,
		Locale:             subLocale,
		DateLastActivity:   now,
		LastModified:       now,
	}
	pub := &domain.Publication{
		Status:       domain.PublicationStatusQueued,
		Version:      1,
		CreatedAt:    now,
		LastModified: now,
		Title:        title,
		Abstract:     sanitizeText(input.Abstract, abstractPolicy),
		Locale:       subLocale,
		CategoryIDs:  append([]int64(nil), input.CategoryIDs...),
		Authors:      sanitizeAuthors(input.Authors),
	}

	err := i.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Submissions().Create(ctx, sub); err != nil {
			return err
		}
		pub.SubmissionID = sub.ID
		if err := tx.Publications().Create(ctx, pub); err != nil {
			return err
		}
		return tx.Submissions().Update(ctx, sub.ID, func(s *domain.Submission) error {
			s.CurrentPublicationID = &pub.ID
			sub = s
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create submission in context %d: %w", input.ContextID, err)
	}

	i.metrics.RecordSubmissionCreated()
	logger := observability.WithSubmissionContext(i.logger, sub.ContextID, sub.ID)
	logger.Info().
		Int64("publication_id", pub.ID).
		Int64("submitter_id", input.SubmitterID).
		Msg("submission created")
	sub.Publications = []*domain.Publication{pub}
	return sub, nil
}

// SetProgress records the intake wizard step of an unfinalized submission.
func (i *Intake) SetProgress(ctx context.Context, submissionID int64, progress int) error {
	if progress <= 0 {
		return domain.NewValidationError("progress", "use Finalize to complete intake")
	}
	err := i.store.Submissions().Update(ctx, submissionID, func(s *domain.Submission) error {
		if s.IsComplete() {
			return domain.NewInvalidStateError("submission", fmt.Sprintf("%d", s.ID), "intake is already finalized")
		}
		s.SubmissionProgress = progress
		s.Touch(i.now())
		return nil
	})
	return wrapSubmission(err, "set intake progress", submissionID)
}

// Finalize completes intake: progress becomes 0, dateSubmitted is set and
// the first publication takes dateSubmitted as its creation time.
func (i *Intake) Finalize(ctx context.Context, submissionID int64) (*domain.Submission, error) {
	var sub *domain.Submission
	err := i.store.WithTx(ctx, func(tx repository.Store) error {
		current, err := tx.Submissions().GetForUpdate(ctx, submissionID)
		if err != nil {
			return err
		}
		if current.IsComplete() {
			return domain.NewInvalidStateError("submission", fmt.Sprintf("%d", submissionID), "intake is already finalized")
		}
		pubs, err := tx.Publications().ListBySubmission(ctx, submissionID)
		if err != nil {
			return err
		}
		root := rootPublication(pubs)
		if root == nil {
			return domain.NewInvalidStateError("submission", fmt.Sprintf("%d", submissionID), "submission has no publication")
		}

		now := i.now()
		err = tx.Publications().Update(ctx, root.ID, func(p *domain.Publication) error {
			p.CreatedAt = now
			return nil
		})
		if err != nil {
			return err
		}
		return tx.Submissions().Update(ctx, submissionID, func(s *domain.Submission) error {
			s.SubmissionProgress = 0
			s.DateSubmitted = &now
			s.Touch(now)
			sub = s
			return nil
		})
	})
	if err != nil {
		return nil, wrapSubmission(err, "finalize submission", submissionID)
	}

	logger := observability.WithSubmissionContext(i.logger, sub.ContextID, sub.ID)
	logger.Info().
		Time("date_submitted", *sub.DateSubmitted).
		Msg("submission finalized")
	return sub, nil
}

// rootPublication returns the lowest-id publication without a source.
func rootPublication(pubs []*domain.Publication) *domain.Publication {
	var root *domain.Publication
	for _, p := range pubs {
		if p.SourcePublicationID != nil {
			continue
		}
		if root == nil || p.ID < root.ID {
			root = p
		}
	}
	return root
}

// Delete removes a submission and everything it owns. Stored blobs are kept.
func (i *Intake) Delete(ctx context.Context, submissionID, actorID int64) error {
	var sub *domain.Submission
	err := i.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		if sub, err = tx.Submissions().GetForUpdate(ctx, submissionID); err != nil {
			return err
		}
		return tx.Submissions().Delete(ctx, submissionID)
	})
	if err != nil {
		return wrapSubmission(err, "delete submission", submissionID)
	}

	i.metrics.RecordSubmissionDeleted()
	logger := observability.WithSubmissionContext(i.logger, sub.ContextID, sub.ID)
	logger.Info().
		Int64("actor_id", actorID).
		Msg("submission deleted")
	i.events.publish(ctx, i.events.event(domain.EventTypeSubmissionDeleted, sub, actorID, struct{}{}))
	return nil
}
