// Package identity answers the two questions the workflow asks about users:
// whether a user is assigned to a submission, and which roles a user holds
// in a context. Role membership is owned elsewhere; this package only reads it.
package identity

import (
	"context"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/repository"
)

// SiteContextID is the context of site-wide user groups such as site administrators.
const SiteContextID int64 = 0

// Directory is the identity/role collaborator.
type Directory interface {
	// IsAssigned reports whether the user holds a stage assignment, or an
	// active (not declined, not cancelled) review assignment, on the submission.
	IsAssigned(ctx context.Context, userID, submissionID int64) (bool, error)

	// RoleIDsFor returns the roles the user holds in the context, including
	// site-wide roles.
	RoleIDsFor(ctx context.Context, userID, contextID int64) (mapset.Set[domain.RoleID], error)
}

// Compile-time interface verification.
var _ Directory = (*PgDirectory)(nil)

// PgDirectory reads assignments and user group membership from PostgreSQL.
type PgDirectory struct {
	db repository.DBTX
}

// NewPgDirectory creates a directory over db.
func NewPgDirectory(db repository.DBTX) *PgDirectory {
	return &PgDirectory{db: db}
}

// IsAssigned reports whether the user works on the submission.
func (d *PgDirectory) IsAssigned(ctx context.Context, userID, submissionID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM stage_assignments
			WHERE user_id = $1 AND submission_id = $2
		) OR EXISTS (
			SELECT 1 FROM review_assignments
			WHERE reviewer_id = $1 AND submission_id = $2 AND NOT declined AND NOT cancelled
		)`

	var assigned bool
	if err := d.db.QueryRow(ctx, query, userID, submissionID).Scan(&assigned); err != nil {
		return false, fmt.Errorf("failed to check assignment of user %d on submission %d: %w", userID, submissionID, err)
	}
	return assigned, nil
}

// RoleIDsFor returns the user's roles in a context.
func (d *PgDirectory) RoleIDsFor(ctx context.Context, userID, contextID int64) (mapset.Set[domain.RoleID], error) {
	query := `
		SELECT DISTINCT ug.role_id
		FROM user_groups ug
		JOIN user_user_groups uug ON uug.user_group_id = ug.user_group_id
		WHERE uug.user_id = $1 AND ug.context_id IN ($2, $3)`

	rows, err := d.db.Query(ctx, query, userID, contextID, SiteContextID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles of user %d: %w", userID, err)
	}
	roles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.RoleID, error) {
		var role int32
		err := row.Scan(&role)
		return domain.RoleID(role), err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan roles of user %d: %w", userID, err)
	}
	return mapset.NewSet(roles...), nil
}

// HasAnyRole reports whether roles contains at least one of want.
func HasAnyRole(roles mapset.Set[domain.RoleID], want ...domain.RoleID) bool {
	if roles == nil {
		return false
	}
	for _, r := range want {
		if roles.Contains(r) {
			return true
		}
	}
	return false
}

// IsPrivileged reports whether roles allow seeing every submission of a
// context: site administrators and managers.
func IsPrivileged(roles mapset.Set[domain.RoleID]) bool {
	return HasAnyRole(roles, domain.RoleSiteAdmin, domain.RoleManager)
}
