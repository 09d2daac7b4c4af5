package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/editorial-workflow-service/internal/blob"
	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/events"
	"github.com/helixir/editorial-workflow-service/internal/observability"
	"github.com/helixir/editorial-workflow-service/internal/repository"
)

// Files moves submission files through file stages and keeps their
// append-only revision history.
type Files struct {
	store   repository.Store
	blobs   blob.Store
	events  dispatcher
	logger  zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewFiles creates a file staging engine storing bytes in blobs.
func NewFiles(store repository.Store, blobs blob.Store, publisher events.Publisher, logger zerolog.Logger, metrics *observability.Metrics) *Files {
	logger = logger.With().Str("component", "file_staging").Logger()
	return &Files{
		store:   store,
		blobs:   blobs,
		events:  newDispatcher(publisher, logger),
		logger:  logger,
		metrics: metrics,
		now:     utcNow,
	}
}

// Content is uploaded file bytes.
type Content struct {
	// Name is the client file name; its extension is kept on the blob path.
	Name     string `validate:"required,max=255"`
	MimeType string
	Data     []byte `validate:"required,min=1"`
}

// UploadInput creates a submission file.
type UploadInput struct {
	SubmissionID   int64            `validate:"required,gt=0"`
	FileStage      domain.FileStage `validate:"required"`
	GenreID        *int64
	Assoc          domain.Assoc
	SourceFileID   *int64
	UploaderUserID int64 `validate:"required,gt=0"`
	Name           domain.LocalizedText
	Viewable       bool
	Content        Content
}

// MoveInput changes the stage of a file.
type MoveInput struct {
	SubmissionFileID int64            `validate:"required,gt=0"`
	NewStage         domain.FileStage `validate:"required"`

	// Assoc replaces the file's association when set.
	Assoc *domain.Assoc

	// Content appends a revision with new bytes when set.
	Content *Content

	ActorID int64
}

// Upload creates a submission file with its initial revision. Files at
// review stages are associated with the review round their assoc resolves to.
func (f *Files) Upload(ctx context.Context, in UploadInput) (*domain.SubmissionFile, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if !in.FileStage.Valid() {
		return nil, domain.NewValidationError("FileStage", fmt.Sprintf("unknown file stage %q", in.FileStage))
	}
	if err := in.Assoc.Validate(); err != nil {
		return nil, err
	}

	stored, err := f.blobs.Put(ctx, in.SubmissionID, in.Content.Name, in.Content.MimeType, in.Content.Data)
	if err != nil {
		return nil, wrapSubmission(err, "store upload", in.SubmissionID)
	}

	var (
		sub  *domain.Submission
		file *domain.SubmissionFile
		rev  *domain.FileRevision
	)
	err = f.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		if sub, err = tx.Submissions().GetForUpdate(ctx, in.SubmissionID); err != nil {
			return err
		}
		if in.GenreID != nil {
			if err := checkGenre(ctx, tx, sub, *in.GenreID); err != nil {
				return err
			}
		}

		var round *domain.ReviewRound
		if in.FileStage.RequiresRound() {
			if round, err = resolveRound(ctx, tx, sub.ID, in.Assoc); err != nil {
				return err
			}
		}

		if err := tx.Files().CreateBlob(ctx, stored); err != nil {
			return err
		}

		now := f.now()
		name := in.Name.Clone()
		if len(name) == 0 {
			name = domain.LocalizedText{sub.Locale: in.Content.Name}
		}
		file = &domain.SubmissionFile{
			SubmissionID:   sub.ID,
			FileStage:      in.FileStage,
			GenreID:        in.GenreID,
			Assoc:          in.Assoc,
			SourceFileID:   in.SourceFileID,
			UploaderUserID: in.UploaderUserID,
			Name:           sanitizeText(name, titlePolicy),
			Viewable:       in.Viewable,
			CreatedAt:      now,
			UpdatedAt:      now,
			CurrentFileID:  stored.ID,
		}
		if err := tx.Files().Create(ctx, file); err != nil {
			return err
		}
		if rev, err = tx.Files().AppendRevision(ctx, file.ID, stored.ID, now); err != nil {
			return err
		}
		if round != nil {
			if err := tx.Files().AssignToRound(ctx, file.ID, round); err != nil {
				return err
			}
		}
		return touch(ctx, tx, sub.ID, now)
	})
	if err != nil {
		return nil, wrapSubmission(err, "upload file", in.SubmissionID)
	}

	f.metrics.RecordFileUploaded(string(file.FileStage))
	logger := observability.WithFileContext(observability.WithSubmissionContext(f.logger, sub.ContextID, sub.ID), file.ID, string(file.FileStage))
	logger.Info().
		Int64("revision_id", rev.RevisionID).
		Str("mimetype", stored.Mimetype).
		Int64("size", stored.Size).
		Msg("file uploaded")
	f.events.publish(ctx, f.events.event(domain.EventTypeFileUploaded, sub, in.UploaderUserID, domain.FileEventPayload{
		SubmissionFileID: file.ID,
		RevisionID:       rev.RevisionID,
		FileStage:        file.FileStage,
	}))
	return file, nil
}

// ReviseInPlace appends a revision with new bytes without changing the file stage.
func (f *Files) ReviseInPlace(ctx context.Context, fileID int64, content Content, actorID int64) (*domain.FileRevision, error) {
	if err := validateInput(content); err != nil {
		return nil, err
	}

	current, err := f.store.Files().Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	stored, err := f.blobs.Put(ctx, current.SubmissionID, content.Name, content.MimeType, content.Data)
	if err != nil {
		return nil, fmt.Errorf("store revision of file %d: %w", fileID, err)
	}

	var (
		sub  *domain.Submission
		file *domain.SubmissionFile
		rev  *domain.FileRevision
	)
	err = f.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		if sub, file, err = lockFile(ctx, tx, fileID); err != nil {
			return err
		}
		now := f.now()
		if rev, err = appendRevision(ctx, tx, file, stored, now); err != nil {
			return err
		}
		return touch(ctx, tx, sub.ID, now)
	})
	if err != nil {
		return nil, fmt.Errorf("revise file %d: %w", fileID, err)
	}

	f.revised(ctx, sub, file, rev, actorID)
	return rev, nil
}

// MoveStage changes the stage of a file, appending a revision first when new
// bytes are supplied. Review stages keep exactly one round association: the
// round resolved from the new assoc, or the file's existing round. Leaving the
// review stages drops the association.
func (f *Files) MoveStage(ctx context.Context, in MoveInput) (*domain.FileRevision, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if !in.NewStage.Valid() {
		return nil, domain.NewValidationError("NewStage", fmt.Sprintf("unknown file stage %q", in.NewStage))
	}
	if in.Assoc != nil {
		if err := in.Assoc.Validate(); err != nil {
			return nil, err
		}
	}
	if in.Content != nil {
		if err := validateInput(in.Content); err != nil {
			return nil, err
		}
	}

	var stored *domain.FileBlob
	if in.Content != nil {
		current, err := f.store.Files().Get(ctx, in.SubmissionFileID)
		if err != nil {
			return nil, err
		}
		stored, err = f.blobs.Put(ctx, current.SubmissionID, in.Content.Name, in.Content.MimeType, in.Content.Data)
		if err != nil {
			return nil, fmt.Errorf("store revision of file %d: %w", in.SubmissionFileID, err)
		}
	}

	var (
		sub  *domain.Submission
		file *domain.SubmissionFile
		rev  *domain.FileRevision
		from domain.FileStage
	)
	err := f.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		if sub, file, err = lockFile(ctx, tx, in.SubmissionFileID); err != nil {
			return err
		}
		from = file.FileStage
		if in.Assoc != nil {
			file.Assoc = *in.Assoc
		}

		var round *domain.ReviewRound
		if in.NewStage.RequiresRound() {
			if round, err = f.roundForMove(ctx, tx, file, in.Assoc != nil); err != nil {
				return err
			}
		}

		now := f.now()
		if stored != nil {
			if rev, err = appendRevision(ctx, tx, file, stored, now); err != nil {
				return err
			}
		}

		file.FileStage = in.NewStage
		file.UpdatedAt = now
		if err := tx.Files().Save(ctx, file); err != nil {
			return err
		}
		if round != nil {
			err = tx.Files().AssignToRound(ctx, file.ID, round)
		} else {
			err = tx.Files().RemoveFromRound(ctx, file.ID)
		}
		if err != nil {
			return err
		}
		return touch(ctx, tx, sub.ID, now)
	})
	if err != nil {
		return nil, fmt.Errorf("move file %d to %s: %w", in.SubmissionFileID, in.NewStage, err)
	}

	if rev != nil {
		f.revised(ctx, sub, file, rev, in.ActorID)
	}
	f.metrics.RecordFileStageChange(string(from), string(file.FileStage))
	logger := observability.WithFileContext(f.logger, file.ID, string(file.FileStage))
	logger.Info().
		Str("from", string(from)).
		Msg("file stage changed")
	payload := domain.FileEventPayload{
		SubmissionFileID: file.ID,
		FileStage:        file.FileStage,
		PreviousStage:    from,
	}
	if rev != nil {
		payload.RevisionID = rev.RevisionID
	}
	f.events.publish(ctx, f.events.event(domain.EventTypeFileStageChanged, sub, in.ActorID, payload))
	return rev, nil
}

// roundForMove picks the round a file at a review stage belongs to.
func (f *Files) roundForMove(ctx context.Context, tx repository.Store, file *domain.SubmissionFile, assocChanged bool) (*domain.ReviewRound, error) {
	if assocChanged || !file.Assoc.IsZero() {
		round, err := resolveRound(ctx, tx, file.SubmissionID, file.Assoc)
		if err == nil || assocChanged {
			return round, err
		}
	}
	roundID, err := tx.Files().RoundOf(ctx, file.ID)
	if err != nil {
		return nil, err
	}
	if roundID == 0 {
		return nil, domain.NewValidationError("Assoc", "review file stages require a review round or review assignment association")
	}
	return tx.ReviewRounds().Get(ctx, roundID)
}

// AssignToRound associates a file with a review round, replacing any
// previous association. The file's assoc follows the round unless it
// already names an assignment in that round.
func (f *Files) AssignToRound(ctx context.Context, fileID, roundID int64) error {
	err := f.store.WithTx(ctx, func(tx repository.Store) error {
		sub, file, err := lockFile(ctx, tx, fileID)
		if err != nil {
			return err
		}
		round, err := tx.ReviewRounds().Get(ctx, roundID)
		if err != nil {
			return err
		}
		if round.SubmissionID != sub.ID {
			return domain.NewNotFoundError("review round", fmt.Sprintf("%d in submission %d", roundID, sub.ID))
		}

		keep := false
		if file.Assoc.Kind == domain.AssocAssignment {
			if a, err := tx.Assignments().GetReviewAssignment(ctx, file.Assoc.ID); err == nil && a.ReviewRoundID == round.ID {
				keep = true
			}
		}
		now := f.now()
		if !keep {
			file.Assoc = domain.RoundRef(round.ID)
			file.UpdatedAt = now
			if err := tx.Files().Save(ctx, file); err != nil {
				return err
			}
		}
		if err := tx.Files().AssignToRound(ctx, file.ID, round); err != nil {
			return err
		}
		return touch(ctx, tx, sub.ID, now)
	})
	if err != nil {
		return fmt.Errorf("assign file %d to round %d: %w", fileID, roundID, err)
	}
	f.logger.Debug().Int64("submission_file_id", fileID).Int64("review_round_id", roundID).Msg("file assigned to round")
	return nil
}

// Delete removes a file with its revisions and round association. Blobs stay.
func (f *Files) Delete(ctx context.Context, fileID int64) error {
	err := f.store.WithTx(ctx, func(tx repository.Store) error {
		sub, _, err := lockFile(ctx, tx, fileID)
		if err != nil {
			return err
		}
		if err := tx.Files().Delete(ctx, fileID); err != nil {
			return err
		}
		return touch(ctx, tx, sub.ID, f.now())
	})
	if err != nil {
		return fmt.Errorf("delete file %d: %w", fileID, err)
	}
	f.logger.Info().Int64("submission_file_id", fileID).Msg("file deleted")
	return nil
}

// Get returns a submission file.
func (f *Files) Get(ctx context.Context, fileID int64) (*domain.SubmissionFile, error) {
	return f.store.Files().Get(ctx, fileID)
}

// List returns the files of a submission, optionally limited to stages.
func (f *Files) List(ctx context.Context, submissionID int64, stages ...domain.FileStage) ([]*domain.SubmissionFile, error) {
	if _, err := f.store.Submissions().Get(ctx, submissionID); err != nil {
		return nil, err
	}
	return f.store.Files().ListBySubmission(ctx, submissionID, stages...)
}

// Revisions returns the revisions of a file in revision order. A file that
// does not exist has no revisions.
func (f *Files) Revisions(ctx context.Context, fileID int64) ([]*domain.FileRevision, error) {
	return f.store.Files().Revisions(ctx, fileID)
}

// Download returns the bytes of a revision; revisionID 0 selects the newest.
func (f *Files) Download(ctx context.Context, fileID, revisionID int64) ([]byte, *domain.FileRevision, error) {
	revisions, err := f.store.Files().Revisions(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	var rev *domain.FileRevision
	if revisionID == 0 {
		rev = domain.LatestRevision(revisions)
	} else {
		for _, r := range revisions {
			if r.RevisionID == revisionID {
				rev = r
				break
			}
		}
	}
	if rev == nil {
		return nil, nil, domain.NewNotFoundError("file revision", fmt.Sprintf("%d/%d", fileID, revisionID))
	}
	data, err := f.blobs.Fetch(ctx, rev.Path)
	if err != nil {
		return nil, nil, err
	}
	return data, rev, nil
}

func (f *Files) revised(ctx context.Context, sub *domain.Submission, file *domain.SubmissionFile, rev *domain.FileRevision, actorID int64) {
	f.metrics.RecordRevisionAppended()
	logger := observability.WithFileContext(f.logger, file.ID, string(file.FileStage))
	logger.Info().
		Int64("revision_id", rev.RevisionID).
		Msg("file revision appended")
	f.events.publish(ctx, f.events.event(domain.EventTypeFileRevised, sub, actorID, domain.FileEventPayload{
		SubmissionFileID: file.ID,
		RevisionID:       rev.RevisionID,
		FileStage:        file.FileStage,
	}))
}

// lockFile locks the owning submission, then the file.
func lockFile(ctx context.Context, tx repository.Store, fileID int64) (*domain.Submission, *domain.SubmissionFile, error) {
	file, err := tx.Files().Get(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	sub, err := tx.Submissions().GetForUpdate(ctx, file.SubmissionID)
	if err != nil {
		return nil, nil, err
	}
	if file, err = tx.Files().GetForUpdate(ctx, fileID); err != nil {
		return nil, nil, err
	}
	return sub, file, nil
}

// appendRevision records stored and makes it the file's current content.
func appendRevision(ctx context.Context, tx repository.Store, file *domain.SubmissionFile, stored *domain.FileBlob, now time.Time) (*domain.FileRevision, error) {
	if err := tx.Files().CreateBlob(ctx, stored); err != nil {
		return nil, err
	}
	rev, err := tx.Files().AppendRevision(ctx, file.ID, stored.ID, now)
	if err != nil {
		return nil, err
	}
	file.CurrentFileID = stored.ID
	file.UpdatedAt = now
	if err := tx.Files().Save(ctx, file); err != nil {
		return nil, err
	}
	return rev, nil
}

// resolveRound returns the review round an association points at, directly
// or through a review assignment.
func resolveRound(ctx context.Context, tx repository.Store, submissionID int64, assoc domain.Assoc) (*domain.ReviewRound, error) {
	var roundID int64
	switch assoc.Kind {
	case domain.AssocRound:
		roundID = assoc.ID
	case domain.AssocAssignment:
		a, err := tx.Assignments().GetReviewAssignment(ctx, assoc.ID)
		if err != nil {
			return nil, err
		}
		roundID = a.ReviewRoundID
	default:
		return nil, domain.NewValidationError("Assoc", "review file stages require a review round or review assignment association")
	}

	round, err := tx.ReviewRounds().Get(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round.SubmissionID != submissionID {
		return nil, domain.NewNotFoundError("review round", fmt.Sprintf("%d in submission %d", roundID, submissionID))
	}
	return round, nil
}

// checkGenre requires an enabled genre of the submission's context.
func checkGenre(ctx context.Context, tx repository.Store, sub *domain.Submission, genreID int64) error {
	g, err := tx.Genres().Get(ctx, genreID)
	if err != nil {
		return err
	}
	if g.ContextID != sub.ContextID {
		return domain.NewNotFoundError("genre", fmt.Sprintf("%d in context %d", genreID, sub.ContextID))
	}
	if !g.Enabled {
		return domain.NewInvalidStateError("genre", fmt.Sprintf("%d", genreID), "genre is disabled")
	}
	return nil
}

// touch records activity on a submission inside tx.
func touch(ctx context.Context, tx repository.Store, submissionID int64, now time.Time) error {
	return tx.Submissions().Update(ctx, submissionID, func(s *domain.Submission) error {
		s.Touch(now)
		return nil
	})
}
