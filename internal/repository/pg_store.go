package repository

import (
	"context"
	"fmt"
)

// Compile-time interface verification.
var _ Store = (*PgStore)(nil)

// PgStore binds every PostgreSQL repository to one DBTX.
type PgStore struct {
	db   DBTX
	inTx bool

	submissions  *PgSubmissionRepository
	publications *PgPublicationRepository
	rounds       *PgReviewRoundRepository
	decisions    *PgDecisionRepository
	files        *PgSubmissionFileRepository
	genres       *PgGenreRepository
	assignments  *PgAssignmentRepository
}

// NewPgStore creates a store over a pool or *database.DB.
func NewPgStore(db DBTX) *PgStore {
	return newPgStore(db, false)
}

func newPgStore(db DBTX, inTx bool) *PgStore {
	return &PgStore{
		db:           db,
		inTx:         inTx,
		submissions:  NewPgSubmissionRepository(db),
		publications: NewPgPublicationRepository(db),
		rounds:       NewPgReviewRoundRepository(db),
		decisions:    NewPgDecisionRepository(db),
		files:        NewPgSubmissionFileRepository(db),
		genres:       NewPgGenreRepository(db),
		assignments:  NewPgAssignmentRepository(db),
	}
}

func (s *PgStore) Submissions() SubmissionRepository { return s.submissions }
func (s *PgStore) Publications() PublicationRepository { return s.publications }
func (s *PgStore) ReviewRounds() ReviewRoundRepository { return s.rounds }
func (s *PgStore) Decisions() DecisionRepository { return s.decisions }
func (s *PgStore) Files() SubmissionFileRepository { return s.files }
func (s *PgStore) Genres() GenreRepository { return s.genres }
func (s *PgStore) Assignments() AssignmentRepository { return s.assignments }

// DB returns the connection or transaction the store is bound to.
func (s *PgStore) DB() DBTX { return s.db }

// WithTx runs fn inside a transaction. A store already bound to a
// transaction passes itself to fn.
func (s *PgStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	beginner, ok := s.db.(txBeginner)
	if !ok {
		return fmt.Errorf("store cannot begin transactions on %T", s.db)
	}

	tx, err := beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(newPgStore(tx, true)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapError(err, "commit transaction", "transaction", "")
	}
	return nil
}
