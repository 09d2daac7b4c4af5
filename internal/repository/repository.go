// Package repository is the entity store of the editorial workflow service.
//
// # Overview
//
// Each entity owned by a submission (publications, review rounds, editorial
// decisions, submission files and their revisions, assignments) has a
// repository interface and a PostgreSQL implementation over DBTX. The Store
// interface groups them so the workflow engines can run several repository
// calls inside one transaction:
//
//	err := store.WithTx(ctx, func(tx repository.Store) error {
//	    if err := tx.Decisions().Insert(ctx, d); err != nil {
//	        return err
//	    }
//	    return tx.ReviewRounds().UpdateStatus(ctx, d.ReviewRoundID, status)
//	})
//
// The repositories hold no business rules. Invariants the schema can express
// (unique round keys, the current-publication foreign key, append-only logs)
// are enforced by PostgreSQL and surfaced as domain errors.
//
// # Error Handling
//
// PostgreSQL failures are mapped onto the domain taxonomy:
//
//   - pgx.ErrNoRows: domain.ErrNotFound
//   - 23505, 23503, 23514: domain.ErrConstraintViolation
//   - 40001, 40P01, 55P03: domain.ErrConflict (retryable)
//
// Anything else is wrapped with fmt.Errorf and %w.
//
// # Locking
//
// GetForUpdate and Update take row locks with SELECT ... FOR UPDATE and must
// run inside a transaction. Update opens its own transaction when the
// repository is bound to a pool.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/editorial-workflow-service/internal/database"
	"github.com/helixir/editorial-workflow-service/internal/domain"
)

// DBTX is the database interface supporting both pool and transaction contexts.
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    return repository.NewPgDecisionRepository(tx).Insert(ctx, decision)
//	})
type DBTX = database.DBTX

// txBeginner is satisfied by *database.DB, *pgxpool.Pool and pgxmock pools.
type txBeginner = database.TxBeginner

// PostgreSQL error codes mapped onto the domain taxonomy.
const (
	pgUniqueViolation      = "23505" // unique_violation
	pgForeignKeyViolation  = "23503" // foreign_key_violation
	pgCheckViolation       = "23514" // check_violation
	pgSerializationFailure = "40001" // serialization_failure
	pgDeadlockDetected     = "40P01" // deadlock_detected
	pgLockNotAvailable     = "55P03" // lock_not_available
)

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// applyPaginationDefaults clamps limit to [1, maxFilterLimit] and offset to >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}

// Store groups the entity repositories bound to one connection or transaction.
type Store interface {
	Submissions() SubmissionRepository
	Publications() PublicationRepository
	ReviewRounds() ReviewRoundRepository
	Decisions() DecisionRepository
	Files() SubmissionFileRepository
	Genres() GenreRepository
	Assignments() AssignmentRepository

	// WithTx runs fn with a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Calling WithTx on a Store already inside a transaction reuses it.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// mapPgError translates err into the domain taxonomy. It returns nil when err
// carries no SQLSTATE the taxonomy knows about.
func mapPgError(err error, entity, id string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch pgErr.Code {
	case pgUniqueViolation, pgForeignKeyViolation, pgCheckViolation:
		return domain.NewConstraintViolationError(entity, pgErr.ConstraintName)
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return domain.NewConflictError(entity, id, err)
	default:
		return nil
	}
}

// wrapError maps err onto the taxonomy or wraps it with the failed action.
func wrapError(err error, action, entity, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewNotFoundError(entity, id)
	}
	if mapped := mapPgError(err, entity, id); mapped != nil {
		return mapped
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// inTx runs fn against db inside a transaction. On a pool it opens one; on a
// pgx.Tx, Begin creates a savepoint nested in the caller's transaction.
func inTx(ctx context.Context, db DBTX, fn func(DBTX) error) error {
	beginner, ok := db.(txBeginner)
	if !ok {
		return fn(db)
	}

	tx, err := beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapError(err, "commit transaction", "transaction", "")
	}
	return nil
}

// collectRows scans every row with scan and closes rows.
func collectRows[T any](rows pgx.Rows, scan func(pgx.Rows) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// idString formats an int64 id for error messages.
func idString(id int64) string {
	return fmt.Sprintf("%d", id)
}
