package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates that the operation is forbidden by the current state of an entity.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidQuery indicates a malformed or unsafe filter composition.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrConstraintViolation indicates that a write would break an entity invariant.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrConflict indicates a concurrent write detected by the store's locking.
	// Callers may retry.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates that the request lacks valid authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates that the request is not allowed for the authenticated user.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// InvalidStateError describes an operation rejected because of an entity's state.
type InvalidStateError struct {
	Entity string
	ID     string
	Reason string
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid %s state: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("invalid %s state (%s): %s", e.Entity, e.ID, e.Reason)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// InvalidQueryError describes a rejected query composition.
type InvalidQueryError struct {
	Reason string
}

// Error implements the error interface.
func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Reason)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *InvalidQueryError) Unwrap() error {
	return ErrInvalidQuery
}

// ConstraintViolationError provides details about a broken invariant.
type ConstraintViolationError struct {
	Entity     string
	Constraint string
}

// Error implements the error interface.
func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("%s violates constraint %s", e.Entity, e.Constraint)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ConstraintViolationError) Unwrap() error {
	return ErrConstraintViolation
}

// ConflictError reports a write that lost a race against a concurrent writer.
type ConflictError struct {
	Entity string
	ID     string
	Cause  error
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("conflicting write on %s %s: %v", e.Entity, e.ID, e.Cause)
	}
	return fmt.Sprintf("conflicting write on %s %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewInvalidStateError creates a new InvalidStateError.
func NewInvalidStateError(entity, id, reason string) *InvalidStateError {
	return &InvalidStateError{
		Entity: entity,
		ID:     id,
		Reason: reason,
	}
}

// NewInvalidQueryError creates a new InvalidQueryError.
func NewInvalidQueryError(reason string) *InvalidQueryError {
	return &InvalidQueryError{Reason: reason}
}

// NewConstraintViolationError creates a new ConstraintViolationError.
func NewConstraintViolationError(entity, constraint string) *ConstraintViolationError {
	return &ConstraintViolationError{
		Entity:     entity,
		Constraint: constraint,
	}
}

// NewConflictError creates a new ConflictError.
func NewConflictError(entity, id string, cause error) *ConflictError {
	return &ConflictError{
		Entity: entity,
		ID:     id,
		Cause:  cause,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
