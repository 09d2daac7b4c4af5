// Package memstore provides an in-memory repository.Store. It keeps the
// invariants the PostgreSQL schema enforces (unique round keys, the
// current-publication reference, append-only logs, cascading submission
// deletes) so engine tests can run without a database.
//
// Transactions clone the whole state, run against the clone and swap it in
// on success. One transaction runs at a time.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/repository"
)

// Compile-time interface verification.
var _ repository.Store = (*Store)(nil)

type roundFile struct {
	submissionID  int64
	reviewRoundID int64
	stageID       domain.Stage
}

type state struct {
	lastID map[string]int64

	submissions       map[int64]domain.Submission
	publications      map[int64]domain.Publication
	dois              map[int64]domain.DOI
	rounds            map[int64]domain.ReviewRound
	decisions         []domain.EditorialDecision
	blobs             map[int64]domain.FileBlob
	files             map[int64]domain.SubmissionFile
	revisions         []domain.FileRevision
	roundFiles        map[int64]roundFile
	genres            map[int64]domain.Genre
	stageAssignments  map[int64]domain.StageAssignment
	reviewAssignments map[int64]domain.ReviewAssignment
}

func newState() *state {
	return &state{
		lastID:            map[string]int64{},
		submissions:       map[int64]domain.Submission{},
		publications:      map[int64]domain.Publication{},
		dois:              map[int64]domain.DOI{},
		rounds:            map[int64]domain.ReviewRound{},
		blobs:             map[int64]domain.FileBlob{},
		files:             map[int64]domain.SubmissionFile{},
		roundFiles:        map[int64]roundFile{},
		genres:            map[int64]domain.Genre{},
		stageAssignments:  map[int64]domain.StageAssignment{},
		reviewAssignments: map[int64]domain.ReviewAssignment{},
	}
}

// nextID hands out ids per table, starting at 1, never reused.
func (st *state) nextID(table string) int64 {
	st.lastID[table]++
	return st.lastID[table]
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.lastID {
		c.lastID[k] = v
	}
	for k, v := range st.submissions {
		c.submissions[k] = v
	}
	for k, v := range st.publications {
		c.publications[k] = clonePublication(v)
	}
	for k, v := range st.dois {
		c.dois[k] = v
	}
	for k, v := range st.rounds {
		c.rounds[k] = v
	}
	c.decisions = append([]domain.EditorialDecision(nil), st.decisions...)
	for k, v := range st.blobs {
		c.blobs[k] = v
	}
	for k, v := range st.files {
		v.Name = v.Name.Clone()
		c.files[k] = v
	}
	c.revisions = append([]domain.FileRevision(nil), st.revisions...)
	for k, v := range st.roundFiles {
		c.roundFiles[k] = v
	}
	for k, v := range st.genres {
		v.Name = v.Name.Clone()
		c.genres[k] = v
	}
	for k, v := range st.stageAssignments {
		c.stageAssignments[k] = v
	}
	for k, v := range st.reviewAssignments {
		c.reviewAssignments[k] = v
	}
	return c
}

func clonePublication(p domain.Publication) domain.Publication {
	p.Title = p.Title.Clone()
	p.Abstract = p.Abstract.Clone()
	if p.CategoryIDs != nil {
		p.CategoryIDs = append([]int64(nil), p.CategoryIDs...)
	}
	if p.Authors != nil {
		authors := make([]domain.Author, len(p.Authors))
		for i, a := range p.Authors {
			a.GivenName = a.GivenName.Clone()
			a.FamilyName = a.FamilyName.Clone()
			authors[i] = a
		}
		p.Authors = authors
	}
	return p
}

// Store is an in-memory repository.Store.
type Store struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
}

// New returns an empty store.
func New() *Store {
	return &Store{mu: &sync.Mutex{}, st: newState()}
}

// lock serializes access outside transactions. A transaction already holds
// the mutex for its whole run.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Submissions() repository.SubmissionRepository { return submissions{s} }
func (s *Store) Publications() repository.PublicationRepository { return publications{s} }
func (s *Store) ReviewRounds() repository.ReviewRoundRepository { return rounds{s} }
func (s *Store) Decisions() repository.DecisionRepository { return decisions{s} }
func (s *Store) Files() repository.SubmissionFileRepository { return files{s} }
func (s *Store) Genres() repository.GenreRepository { return genres{s} }
func (s *Store) Assignments() repository.AssignmentRepository { return assignments{s} }

// WithTx runs fn against a clone of the state and keeps the clone only when
// fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, st: s.st.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	*s.st = *tx.st
	return nil
}

func idString(id int64) string {
	return fmt.Sprintf("%d", id)
}
