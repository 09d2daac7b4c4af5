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

// Versioning resolves and derives publication versions.
type Versioning struct {
	store   repository.Store
	events  dispatcher
	logger  zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewVersioning creates a versioning engine.
func NewVersioning(store repository.Store, publisher events.Publisher, logger zerolog.Logger, metrics *observability.Metrics) *Versioning {
	logger = logger.With().Str("component", "versioning").Logger()
	return &Versioning{
		store:   store,
		events:  newDispatcher(publisher, logger),
		logger:  logger,
		metrics: metrics,
		now:     utcNow,
	}
}

// MetadataInput replaces the editable metadata of an unpublished version.
type MetadataInput struct {
	Title       domain.LocalizedText `validate:"required,min=1"`
	Abstract    domain.LocalizedText
	Locale      string
	Seq         *float64
	CategoryIDs []int64         `validate:"dive,gt=0"`
	Authors     []domain.Author `validate:"dive"`
}

// load reads a submission together with its publications.
func load(ctx context.Context, store repository.Store, submissionID int64) (*domain.Submission, []*domain.Publication, error) {
	sub, err := store.Submissions().Get(ctx, submissionID)
	if err != nil {
		return nil, nil, err
	}
	pubs, err := store.Publications().ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, nil, err
	}
	return sub, pubs, nil
}

// Submission returns a submission hydrated with its publications.
func (v *Versioning) Submission(ctx context.Context, submissionID int64) (*domain.Submission, error) {
	sub, pubs, err := load(ctx, v.store, submissionID)
	if err != nil {
		return nil, err
	}
	sub.Publications = pubs
	return sub, nil
}

// CurrentPublication returns the publication currentPublicationId points at,
// or nil when the pointer is unset.
func (v *Versioning) CurrentPublication(ctx context.Context, submissionID int64) (*domain.Publication, error) {
	sub, pubs, err := load(ctx, v.store, submissionID)
	if err != nil {
		return nil, err
	}
	return domain.CurrentPublication(sub, pubs), nil
}

// LatestPublication returns the most recently created publication, or nil.
func (v *Versioning) LatestPublication(ctx context.Context, submissionID int64) (*domain.Publication, error) {
	_, pubs, err := load(ctx, v.store, submissionID)
	if err != nil {
		return nil, err
	}
	return domain.LatestPublication(pubs), nil
}

// OriginalPublication returns the first published publication, or nil.
func (v *Versioning) OriginalPublication(ctx context.Context, submissionID int64) (*domain.Publication, error) {
	_, pubs, err := load(ctx, v.store, submissionID)
	if err != nil {
		return nil, err
	}
	return domain.OriginalPublication(pubs), nil
}

// NewVersion derives a new publication from basis and stores it. A zero
// basisID derives from the latest publication. currentPublicationId is left
// untouched; callers repoint it explicitly.
func (v *Versioning) NewVersion(ctx context.Context, submissionID, basisID, actorID int64) (*domain.Publication, error) {
	var (
		sub     *domain.Submission
		created *domain.Publication
	)
	err := v.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		if sub, err = tx.Submissions().GetForUpdate(ctx, submissionID); err != nil {
			return err
		}
		created, err = v.newVersion(ctx, tx, sub, basisID)
		return err
	})
	if err != nil {
		return nil, wrapSubmission(err, "create version", submissionID)
	}

	v.versionCreated(ctx, sub, created, actorID)
	return created, nil
}

// newVersion creates the derived publication inside tx.
func (v *Versioning) newVersion(ctx context.Context, tx repository.Store, sub *domain.Submission, basisID int64) (*domain.Publication, error) {
	pubs, err := tx.Publications().ListBySubmission(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if len(pubs) == 0 {
		return nil, domain.NewInvalidStateError("submission", fmt.Sprintf("%d", sub.ID), "no publication to derive a version from")
	}

	basis := domain.LatestPublication(pubs)
	if basisID != 0 {
		basis = nil
		for _, p := range pubs {
			if p.ID == basisID {
				basis = p
				break
			}
		}
		if basis == nil {
			return nil, domain.NewNotFoundError("publication", fmt.Sprintf("%d", basisID))
		}
	}

	next := basis.DeriveVersion(v.now())
	for _, p := range pubs {
		if p.Version >= next.Version {
			next.Version = p.Version + 1
		}
	}
	if err := tx.Publications().Create(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (v *Versioning) versionCreated(ctx context.Context, sub *domain.Submission, p *domain.Publication, actorID int64) {
	v.metrics.RecordVersionCreated()
	logger := observability.WithSubmissionContext(v.logger, sub.ContextID, sub.ID)
	logger.Info().
		Int64("publication_id", p.ID).
		Int64("source_publication_id", *p.SourcePublicationID).
		Int("version", p.Version).
		Msg("publication version created")
	v.events.publish(ctx, v.events.event(domain.EventTypeVersionCreated, sub, actorID, domain.VersionCreatedPayload{
		PublicationID:       p.ID,
		SourcePublicationID: *p.SourcePublicationID,
		Version:             p.Version,
	}))
}

// Repoint sets currentPublicationId to a publication of the same submission.
func (v *Versioning) Repoint(ctx context.Context, submissionID, publicationID int64) error {
	err := v.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Submissions().GetForUpdate(ctx, submissionID); err != nil {
			return err
		}
		p, err := tx.Publications().Get(ctx, publicationID)
		if err != nil {
			return err
		}
		if p.SubmissionID != submissionID {
			return domain.NewConstraintViolationError("submission", "current_publication_owned")
		}
		now := v.now()
		return tx.Submissions().Update(ctx, submissionID, func(s *domain.Submission) error {
			s.CurrentPublicationID = &p.ID
			s.Touch(now)
			return nil
		})
	})
	return wrapSubmission(err, "repoint current publication", submissionID)
}

// UpdateMetadata replaces the metadata of a version that is neither
// published nor superseded by a derived version.
func (v *Versioning) UpdateMetadata(ctx context.Context, publicationID int64, in MetadataInput) (*domain.Publication, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	title := sanitizeText(in.Title, titlePolicy)
	if len(title) == 0 {
		return nil, domain.NewValidationError("Title", "empty after sanitization")
	}

	var updated *domain.Publication
	err := v.store.WithTx(ctx, func(tx repository.Store) error {
		p, err := tx.Publications().Get(ctx, publicationID)
		if err != nil {
			return err
		}
		if _, err := tx.Submissions().GetForUpdate(ctx, p.SubmissionID); err != nil {
			return err
		}
		pubs, err := tx.Publications().ListBySubmission(ctx, p.SubmissionID)
		if err != nil {
			return err
		}
		if reason := immutableReason(p, pubs); reason != "" {
			return domain.NewInvalidStateError("publication", fmt.Sprintf("%d", p.ID), reason)
		}

		now := v.now()
		err = tx.Publications().Update(ctx, publicationID, func(pub *domain.Publication) error {
			pub.Title = title
			pub.Abstract = sanitizeText(in.Abstract, abstractPolicy)
			if in.Locale != "" {
				pub.Locale = locale.Normalize(in.Locale)
			}
			if in.Seq != nil {
				pub.Seq = *in.Seq
			}
			pub.CategoryIDs = append([]int64(nil), in.CategoryIDs...)
			pub.Authors = sanitizeAuthors(in.Authors)
			updated = pub
			return nil
		})
		if err != nil {
			return err
		}
		return tx.Submissions().Update(ctx, p.SubmissionID, func(s *domain.Submission) error {
			s.Touch(now)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("update publication %d: %w", publicationID, err)
	}
	return updated, nil
}

// immutableReason explains why p may not be edited in place, or returns "".
func immutableReason(p *domain.Publication, pubs []*domain.Publication) string {
	if p.Status != domain.PublicationStatusQueued {
		return fmt.Sprintf("publication is %s", p.Status)
	}
	for _, other := range pubs {
		if other.SourcePublicationID != nil && *other.SourcePublicationID == p.ID {
			return fmt.Sprintf("superseded by publication %d", other.ID)
		}
	}
	return ""
}

// Publish publishes a version and makes it current. A version whose
// datePublished lies in the future is scheduled instead.
func (v *Versioning) Publish(ctx context.Context, publicationID, actorID int64) (*domain.Publication, error) {
	var (
		sub       *domain.Submission
		published *domain.Publication
	)
	err := v.store.WithTx(ctx, func(tx repository.Store) error {
		p, err := tx.Publications().Get(ctx, publicationID)
		if err != nil {
			return err
		}
		if sub, err = tx.Submissions().GetForUpdate(ctx, p.SubmissionID); err != nil {
			return err
		}
		switch {
		case !sub.IsComplete():
			return domain.NewInvalidStateError("submission", fmt.Sprintf("%d", sub.ID), "intake is not finalized")
		case sub.Status == domain.SubmissionStatusDeclined:
			return domain.NewInvalidStateError("submission", fmt.Sprintf("%d", sub.ID), "submission is declined")
		case p.Status != domain.PublicationStatusQueued:
			return domain.NewInvalidStateError("publication", fmt.Sprintf("%d", p.ID), fmt.Sprintf("publication is already %s", p.Status))
		}

		now := v.now()
		err = tx.Publications().Update(ctx, publicationID, func(pub *domain.Publication) error {
			if pub.DatePublished != nil && pub.DatePublished.After(now) {
				pub.Status = domain.PublicationStatusScheduled
			} else {
				pub.Status = domain.PublicationStatusPublished
				if pub.DatePublished == nil {
					pub.DatePublished = &now
				}
			}
			published = pub
			return nil
		})
		if err != nil {
			return err
		}

		return tx.Submissions().Update(ctx, sub.ID, func(s *domain.Submission) error {
			s.CurrentPublicationID = &published.ID
			if published.IsPublished() {
				s.Status = domain.SubmissionStatusPublished
			} else if s.Status != domain.SubmissionStatusPublished {
				s.Status = domain.SubmissionStatusScheduled
			}
			s.Touch(now)
			sub = s
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("publish publication %d: %w", publicationID, err)
	}

	v.metrics.RecordPublished(string(published.Status))
	logger := observability.WithSubmissionContext(v.logger, sub.ContextID, sub.ID)
	logger.Info().
		Int64("publication_id", published.ID).
		Str("status", string(published.Status)).
		Msg("publication published")
	v.events.publish(ctx, v.events.event(domain.EventTypePublicationPublished, sub, actorID, domain.PublicationPublishedPayload{
		PublicationID: published.ID,
		Status:        published.Status,
		DatePublished: published.DatePublished,
	}))
	return published, nil
}

// Unpublish returns a published or scheduled version to the queue. When
// another version remains published it becomes current; otherwise the
// submission returns to Queued, so a Published submission always keeps a
// published publication.
func (v *Versioning) Unpublish(ctx context.Context, publicationID int64) error {
	err := v.store.WithTx(ctx, func(tx repository.Store) error {
		p, err := tx.Publications().Get(ctx, publicationID)
		if err != nil {
			return err
		}
		if _, err := tx.Submissions().GetForUpdate(ctx, p.SubmissionID); err != nil {
			return err
		}
		if p.Status == domain.PublicationStatusQueued {
			return domain.NewInvalidStateError("publication", fmt.Sprintf("%d", p.ID), "publication is not published")
		}

		err = tx.Publications().Update(ctx, publicationID, func(pub *domain.Publication) error {
			if pub.Status == domain.PublicationStatusScheduled {
				pub.DatePublished = nil
			}
			pub.Status = domain.PublicationStatusQueued
			return nil
		})
		if err != nil {
			return err
		}

		pubs, err := tx.Publications().ListBySubmission(ctx, p.SubmissionID)
		if err != nil {
			return err
		}
		var newest *domain.Publication
		scheduled := false
		for _, other := range pubs {
			switch other.Status {
			case domain.PublicationStatusPublished:
				if newest == nil || other.ID > newest.ID {
					newest = other
				}
			case domain.PublicationStatusScheduled:
				scheduled = true
			}
		}

		now := v.now()
		return tx.Submissions().Update(ctx, p.SubmissionID, func(s *domain.Submission) error {
			switch {
			case newest != nil:
				s.Status = domain.SubmissionStatusPublished
				if s.CurrentPublicationID != nil && *s.CurrentPublicationID == p.ID {
					s.CurrentPublicationID = &newest.ID
				}
			case scheduled:
				s.Status = domain.SubmissionStatusScheduled
			case s.Status != domain.SubmissionStatusDeclined:
				s.Status = domain.SubmissionStatusQueued
			}
			s.Touch(now)
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("unpublish publication %d: %w", publicationID, err)
	}
	v.logger.Info().Int64("publication_id", publicationID).Msg("publication unpublished")
	return nil
}

// Verify checks the version invariants of a submission: every version chain
// ends at a root, the current pointer stays inside the submission, and a
// Published submission has a published version.
func (v *Versioning) Verify(ctx context.Context, submissionID int64) error {
	sub, pubs, err := load(ctx, v.store, submissionID)
	if err != nil {
		return err
	}
	return verifySubmission(sub, pubs)
}

func verifySubmission(sub *domain.Submission, pubs []*domain.Publication) error {
	if err := domain.CheckVersionChain(pubs); err != nil {
		return err
	}
	if sub.CurrentPublicationID != nil && domain.CurrentPublication(sub, pubs) == nil {
		return domain.NewConstraintViolationError("submission", "current_publication_owned")
	}
	if sub.Status == domain.SubmissionStatusPublished && !domain.HasPublishedVersion(pubs) {
		return domain.NewConstraintViolationError("submission", "published_without_published_version")
	}
	return nil
}
