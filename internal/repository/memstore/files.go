package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/helixir/editorial-workflow-service/internal/domain"
)

type files struct{ s *Store }

func (r files) CreateBlob(_ context.Context, b *domain.FileBlob) error {
	if b == nil || b.Path == "" {
		return domain.NewValidationError("path", "blob path is required")
	}
	defer r.s.lock()()
	b.ID = r.s.st.nextID("files")
	r.s.st.blobs[b.ID] = *b
	return nil
}

func (r files) GetBlob(_ context.Context, id int64) (*domain.FileBlob, error) {
	defer r.s.lock()()
	b, ok := r.s.st.blobs[id]
	if !ok {
		return nil, domain.NewNotFoundError("file", idString(id))
	}
	return &b, nil
}

func (r files) Create(_ context.Context, f *domain.SubmissionFile) error {
	if f == nil {
		return domain.NewValidationError("submission_file", "submission file cannot be nil")
	}
	if err := validateFile(f); err != nil {
		return err
	}
	defer r.s.lock()()
	st := r.s.st

	if _, ok := st.submissions[f.SubmissionID]; !ok {
		return domain.NewConstraintViolationError("submission_file", "submission_files_submission_id_fkey")
	}
	if _, ok := st.blobs[f.CurrentFileID]; !ok {
		return domain.NewConstraintViolationError("submission_file", "submission_files_file_id_fkey")
	}
	f.ID = st.nextID("submission_files")
	stored := *f
	stored.Name = f.Name.Clone()
	st.files[f.ID] = stored
	return nil
}

func (r files) Get(_ context.Context, id int64) (*domain.SubmissionFile, error) {
	defer r.s.lock()()
	f, ok := r.s.st.files[id]
	if !ok {
		return nil, domain.NewNotFoundError("submission_file", idString(id))
	}
	f.Name = f.Name.Clone()
	return &f, nil
}

func (r files) GetForUpdate(ctx context.Context, id int64) (*domain.SubmissionFile, error) {
	return r.Get(ctx, id)
}

func (r files) Save(_ context.Context, f *domain.SubmissionFile) error {
	if err := validateFile(f); err != nil {
		return err
	}
	defer r.s.lock()()
	st := r.s.st

	stored, ok := st.files[f.ID]
	if !ok {
		return domain.NewNotFoundError("submission_file", idString(f.ID))
	}
	if _, ok := st.blobs[f.CurrentFileID]; !ok {
		return domain.NewConstraintViolationError("submission_file", "submission_files_file_id_fkey")
	}
	stored.CurrentFileID = f.CurrentFileID
	stored.FileStage = f.FileStage
	stored.GenreID = f.GenreID
	stored.Assoc = f.Assoc
	stored.Name = f.Name.Clone()
	stored.Viewable = f.Viewable
	stored.UpdatedAt = f.UpdatedAt
	st.files[f.ID] = stored
	return nil
}

func (r files) ListBySubmission(_ context.Context, submissionID int64, stages ...domain.FileStage) ([]*domain.SubmissionFile, error) {
	return r.list(func(f domain.SubmissionFile) bool {
		if f.SubmissionID != submissionID {
			return false
		}
		if len(stages) == 0 {
			return true
		}
		for _, s := range stages {
			if f.FileStage == s {
				return true
			}
		}
		return false
	}), nil
}

func (r files) ListByRound(_ context.Context, reviewRoundID int64, stage domain.FileStage) ([]*domain.SubmissionFile, error) {
	return r.list(func(f domain.SubmissionFile) bool {
		if f.FileStage != stage {
			return false
		}
		if f.Assoc.Kind == domain.AssocRound && f.Assoc.ID == reviewRoundID {
			return true
		}
		rf, ok := r.s.st.roundFiles[f.ID]
		return ok && rf.reviewRoundID == reviewRoundID
	}), nil
}

func (r files) AppendRevision(_ context.Context, submissionFileID, blobID int64, at time.Time) (*domain.FileRevision, error) {
	defer r.s.lock()()
	st := r.s.st

	if _, ok := st.files[submissionFileID]; !ok {
		return nil, domain.NewConstraintViolationError("submission_file_revision", "submission_file_revisions_submission_file_id_fkey")
	}
	blob, ok := st.blobs[blobID]
	if !ok {
		return nil, domain.NewConstraintViolationError("submission_file_revision", "submission_file_revisions_file_id_fkey")
	}
	rev := domain.FileRevision{
		RevisionID:       st.nextID("submission_file_revisions"),
		SubmissionFileID: submissionFileID,
		FileID:           blobID,
		Path:             blob.Path,
		Mimetype:         blob.Mimetype,
		CreatedAt:        at,
	}
	st.revisions = append(st.revisions, rev)
	return &rev, nil
}

func (r files) Revisions(_ context.Context, submissionFileID int64) ([]*domain.FileRevision, error) {
	defer r.s.lock()()
	out := []*domain.FileRevision{}
	for _, rev := range r.s.st.revisions {
		if rev.SubmissionFileID == submissionFileID {
			rev := rev
			out = append(out, &rev)
		}
	}
	return out, nil
}

func (r files) RevisionsForFiles(_ context.Context, submissionFileIDs []int64) (map[int64][]*domain.FileRevision, error) {
	defer r.s.lock()()
	wanted := make(map[int64]bool, len(submissionFileIDs))
	for _, id := range submissionFileIDs {
		wanted[id] = true
	}
	out := make(map[int64][]*domain.FileRevision, len(submissionFileIDs))
	for _, rev := range r.s.st.revisions {
		if wanted[rev.SubmissionFileID] {
			rev := rev
			out[rev.SubmissionFileID] = append(out[rev.SubmissionFileID], &rev)
		}
	}
	return out, nil
}

func (r files) AssignToRound(_ context.Context, submissionFileID int64, round *domain.ReviewRound) error {
	if round == nil {
		return domain.NewValidationError("review_round", "review round is required")
	}
	defer r.s.lock()()
	st := r.s.st

	if _, ok := st.files[submissionFileID]; !ok {
		return domain.NewConstraintViolationError("review_round_file", "review_round_files_submission_file_id_fkey")
	}
	if _, ok := st.rounds[round.ID]; !ok {
		return domain.NewConstraintViolationError("review_round_file", "review_round_files_review_round_id_fkey")
	}
	st.roundFiles[submissionFileID] = roundFile{
		submissionID:  round.SubmissionID,
		reviewRoundID: round.ID,
		stageID:       round.StageID,
	}
	return nil
}

func (r files) RemoveFromRound(_ context.Context, submissionFileID int64) error {
	defer r.s.lock()()
	delete(r.s.st.roundFiles, submissionFileID)
	return nil
}

func (r files) RoundOf(_ context.Context, submissionFileID int64) (int64, error) {
	defer r.s.lock()()
	return r.s.st.roundFiles[submissionFileID].reviewRoundID, nil
}

func (r files) Delete(_ context.Context, id int64) error {
	defer r.s.lock()()
	st := r.s.st
	if _, ok := st.files[id]; !ok {
		return domain.NewNotFoundError("submission_file", idString(id))
	}
	delete(st.roundFiles, id)
	kept := st.revisions[:0]
	for _, rev := range st.revisions {
		if rev.SubmissionFileID != id {
			kept = append(kept, rev)
		}
	}
	st.revisions = kept
	delete(st.files, id)
	return nil
}

func (r files) list(match func(domain.SubmissionFile) bool) []*domain.SubmissionFile {
	defer r.s.lock()()
	var out []*domain.SubmissionFile
	for _, f := range r.s.st.files {
		if match(f) {
			f := f
			f.Name = f.Name.Clone()
			out = append(out, &f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func validateFile(f *domain.SubmissionFile) error {
	if !f.FileStage.Valid() {
		return domain.NewValidationError("file_stage", fmt.Sprintf("unknown file stage %q", f.FileStage))
	}
	return f.Assoc.Validate()
}

type genres struct{ s *Store }

func (r genres) Create(_ context.Context, g *domain.Genre) error {
	if err := validateGenre(g); err != nil {
		return err
	}
	defer r.s.lock()()
	for _, existing := range r.s.st.genres {
		if existing.ContextID == g.ContextID && existing.Key == g.Key {
			return domain.NewConstraintViolationError("genre", "genres_context_key_unique")
		}
	}
	g.ID = r.s.st.nextID("genres")
	stored := *g
	stored.Name = g.Name.Clone()
	r.s.st.genres[g.ID] = stored
	return nil
}

func (r genres) Get(_ context.Context, id int64) (*domain.Genre, error) {
	defer r.s.lock()()
	g, ok := r.s.st.genres[id]
	if !ok {
		return nil, domain.NewNotFoundError("genre", idString(id))
	}
	g.Name = g.Name.Clone()
	return &g, nil
}

func (r genres) GetByKey(_ context.Context, contextID int64, key string) (*domain.Genre, error) {
	defer r.s.lock()()
	for _, g := range r.s.st.genres {
		if g.ContextID == contextID && g.Key == key {
			g.Name = g.Name.Clone()
			return &g, nil
		}
	}
	return nil, domain.NewNotFoundError("genre", key)
}

func (r genres) List(_ context.Context, contextID int64, enabledOnly bool) ([]*domain.Genre, error) {
	defer r.s.lock()()
	var out []*domain.Genre
	for _, g := range r.s.st.genres {
		if g.ContextID != contextID || (enabledOnly && !g.Enabled) {
			continue
		}
		g := g
		g.Name = g.Name.Clone()
		out = append(out, &g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r genres) Update(_ context.Context, g *domain.Genre) error {
	if err := validateGenre(g); err != nil {
		return err
	}
	defer r.s.lock()()
	stored, ok := r.s.st.genres[g.ID]
	if !ok {
		return domain.NewNotFoundError("genre", idString(g.ID))
	}
	stored.Name = g.Name.Clone()
	stored.Category = g.Category
	stored.Dependent = g.Dependent
	stored.Supplementary = g.Supplementary
	stored.Sequence = g.Sequence
	stored.Enabled = g.Enabled
	r.s.st.genres[g.ID] = stored
	return nil
}

func (r genres) SetEnabled(_ context.Context, id int64, enabled bool) error {
	defer r.s.lock()()
	g, ok := r.s.st.genres[id]
	if !ok {
		return domain.NewNotFoundError("genre", idString(id))
	}
	g.Enabled = enabled
	r.s.st.genres[id] = g
	return nil
}

func validateGenre(g *domain.Genre) error {
	if g == nil {
		return domain.NewValidationError("genre", "genre cannot be nil")
	}
	if g.Key == "" {
		return domain.NewValidationError("key", "genre key is required")
	}
	if !g.Category.Valid() {
		return domain.NewValidationError("category", "unknown genre category")
	}
	return nil
}
