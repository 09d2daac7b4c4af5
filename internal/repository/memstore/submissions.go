package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/helixir/editorial-workflow-service/internal/domain"
)

type submissions struct{ s *Store }

func (r submissions) Create(_ context.Context, sub *domain.Submission) error {
	if sub == nil {
		return domain.NewValidationError("submission", "submission cannot be nil")
	}
	if sub.ContextID <= 0 {
		return domain.NewValidationError("context_id", "context ID is required")
	}
	if !sub.Status.Valid() {
		return domain.NewValidationError("status", "unknown submission status")
	}
	if !sub.StageID.Valid() {
		return domain.NewValidationError("stage_id", "unknown workflow stage")
	}
	defer r.s.lock()()

	if sub.CurrentPublicationID != nil {
		return domain.NewConstraintViolationError("submission", "submissions_current_publication_fk")
	}
	sub.ID = r.s.st.nextID("submissions")
	stored := *sub
	stored.Publications = nil
	r.s.st.submissions[sub.ID] = stored
	return nil
}

func (r submissions) Get(_ context.Context, id int64) (*domain.Submission, error) {
	defer r.s.lock()()
	sub, ok := r.s.st.submissions[id]
	if !ok {
		return nil, domain.NewNotFoundError("submission", idString(id))
	}
	return &sub, nil
}

func (r submissions) GetForUpdate(ctx context.Context, id int64) (*domain.Submission, error) {
	return r.Get(ctx, id)
}

func (r submissions) Update(_ context.Context, id int64, fn func(*domain.Submission) error) error {
	defer r.s.lock()()
	sub, ok := r.s.st.submissions[id]
	if !ok {
		return domain.NewNotFoundError("submission", idString(id))
	}
	if err := fn(&sub); err != nil {
		return err
	}
	if !sub.Status.Valid() {
		return domain.NewValidationError("status", "unknown submission status")
	}
	if !sub.StageID.Valid() {
		return domain.NewValidationError("stage_id", "unknown workflow stage")
	}
	if sub.CurrentPublicationID != nil {
		p, ok := r.s.st.publications[*sub.CurrentPublicationID]
		if !ok || p.SubmissionID != id {
			return domain.NewConstraintViolationError("submission", "submissions_current_publication_fk")
		}
	}
	sub.ID = id
	sub.Publications = nil
	sub.LastModified = time.Now().UTC()
	r.s.st.submissions[id] = sub
	return nil
}

func (r submissions) Delete(_ context.Context, id int64) error {
	defer r.s.lock()()
	st := r.s.st
	if _, ok := st.submissions[id]; !ok {
		return domain.NewNotFoundError("submission", idString(id))
	}

	fileIDs := map[int64]bool{}
	for fid, f := range st.files {
		if f.SubmissionID == id {
			fileIDs[fid] = true
		}
	}
	for fid := range st.roundFiles {
		if fileIDs[fid] || st.roundFiles[fid].submissionID == id {
			delete(st.roundFiles, fid)
		}
	}
	revisions := st.revisions[:0]
	for _, rev := range st.revisions {
		if !fileIDs[rev.SubmissionFileID] {
			revisions = append(revisions, rev)
		}
	}
	st.revisions = revisions
	for fid := range fileIDs {
		delete(st.files, fid)
	}
	for aid, a := range st.reviewAssignments {
		if a.SubmissionID == id {
			delete(st.reviewAssignments, aid)
		}
	}
	for aid, a := range st.stageAssignments {
		if a.SubmissionID == id {
			delete(st.stageAssignments, aid)
		}
	}
	decisions := st.decisions[:0]
	for _, d := range st.decisions {
		if d.SubmissionID != id {
			decisions = append(decisions, d)
		}
	}
	st.decisions = decisions
	for rid, round := range st.rounds {
		if round.SubmissionID == id {
			delete(st.rounds, rid)
		}
	}
	for pid, p := range st.publications {
		if p.SubmissionID == id {
			delete(st.publications, pid)
		}
	}
	delete(st.submissions, id)
	return nil
}

type publications struct{ s *Store }

func (r publications) Create(_ context.Context, p *domain.Publication) error {
	if p == nil {
		return domain.NewValidationError("publication", "publication cannot be nil")
	}
	if p.SubmissionID <= 0 {
		return domain.NewValidationError("submission_id", "submission ID is required")
	}
	if p.Version < 1 {
		p.Version = 1
	}
	defer r.s.lock()()
	st := r.s.st

	if _, ok := st.submissions[p.SubmissionID]; !ok {
		return domain.NewConstraintViolationError("publication", "publications_submission_id_fkey")
	}
	if p.SourcePublicationID != nil {
		if _, ok := st.publications[*p.SourcePublicationID]; !ok {
			return domain.NewConstraintViolationError("publication", "publications_source_publication_id_fkey")
		}
	}

	p.ID = st.nextID("publications")
	for i := range p.Authors {
		p.Authors[i].ID = st.nextID("authors")
		p.Authors[i].PublicationID = p.ID
	}
	st.publications[p.ID] = clonePublication(*p)
	return nil
}

func (r publications) Get(_ context.Context, id int64) (*domain.Publication, error) {
	defer r.s.lock()()
	p, ok := r.s.st.publications[id]
	if !ok {
		return nil, domain.NewNotFoundError("publication", idString(id))
	}
	out := clonePublication(p)
	return &out, nil
}

func (r publications) ListBySubmission(_ context.Context, submissionID int64) ([]*domain.Publication, error) {
	defer r.s.lock()()
	out := []*domain.Publication{}
	for _, p := range r.s.st.publications {
		if p.SubmissionID == submissionID {
			cp := clonePublication(p)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r publications) Update(_ context.Context, id int64, fn func(*domain.Publication) error) error {
	defer r.s.lock()()
	st := r.s.st
	stored, ok := st.publications[id]
	if !ok {
		return domain.NewNotFoundError("publication", idString(id))
	}
	p := clonePublication(stored)
	if err := fn(&p); err != nil {
		return err
	}

	// Identity, owner and version chain are immutable.
	p.ID = stored.ID
	p.SubmissionID = stored.SubmissionID
	p.SourcePublicationID = stored.SourcePublicationID
	p.Version = stored.Version
	p.LastModified = time.Now().UTC()
	for i := range p.Authors {
		p.Authors[i].ID = st.nextID("authors")
		p.Authors[i].PublicationID = id
	}
	st.publications[id] = clonePublication(p)
	return nil
}

func (r publications) CreateDOI(_ context.Context, doi *domain.DOI) error {
	if doi == nil || doi.DOI == "" {
		return domain.NewValidationError("doi", "DOI is required")
	}
	if doi.Status == "" {
		doi.Status = domain.DOIStatusUnregistered
	}
	if !doi.Status.Valid() {
		return domain.NewValidationError("status", "unknown DOI status")
	}
	defer r.s.lock()()
	for _, existing := range r.s.st.dois {
		if existing.DOI == doi.DOI {
			return domain.NewConstraintViolationError("doi", "dois_doi_unique")
		}
	}
	doi.ID = r.s.st.nextID("dois")
	r.s.st.dois[doi.ID] = *doi
	return nil
}

func (r publications) UpdateDOIStatus(_ context.Context, id int64, status domain.DOIStatus) error {
	if !status.Valid() {
		return domain.NewValidationError("status", "unknown DOI status")
	}
	defer r.s.lock()()
	doi, ok := r.s.st.dois[id]
	if !ok {
		return domain.NewNotFoundError("doi", idString(id))
	}
	doi.Status = status
	r.s.st.dois[id] = doi
	return nil
}
