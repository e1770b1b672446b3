// Copyright 2026 The OpenShelf Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openshelf/openshelf/internal/authz"
)

// AssignmentRepository implements authz.AssignmentRepository
type AssignmentRepository struct {
	db *DB
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Assign associates a user with a role. Re-assigning an already held role
// is a no-op.
func (r *AssignmentRepository) Assign(ctx context.Context, assignment *authz.Assignment) error {
	var assignedBy sql.NullString
	if assignment.AssignedBy != "" {
		assignedBy = sql.NullString{String: assignment.AssignedBy, Valid: true}
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, assigned_at, assigned_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, role_id) DO NOTHING
	`,
		assignment.UserID, assignment.RoleID, assignment.AssignedAt, assignedBy,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return authz.ErrRoleNotFound
		}
		return fmt.Errorf("failed to assign role: %w", err)
	}

	return nil
}

// Revoke removes a user-role association
func (r *AssignmentRepository) Revoke(ctx context.Context, userID, roleID string) error {
	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM user_roles
		WHERE user_id = $1 AND role_id = $2
	`, userID, roleID)

	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}

	return nil
}

// ListRoleIDsForUser retrieves the IDs of every role the user holds
func (r *AssignmentRepository) ListRoleIDsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT role_id FROM user_roles WHERE user_id = $1
	`, userID)

	if err != nil {
		return nil, fmt.Errorf("failed to list user roles: %w", err)
	}
	defer rows.Close()

	var roleIDs []string
	for rows.Next() {
		var roleID string
		if err := rows.Scan(&roleID); err != nil {
			return nil, fmt.Errorf("failed to scan role ID: %w", err)
		}
		roleIDs = append(roleIDs, roleID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read user roles: %w", err)
	}

	return roleIDs, nil
}

// ListRolesForUser retrieves the full role records the user holds
func (r *AssignmentRepository) ListRolesForUser(ctx context.Context, userID string) ([]*authz.Role, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT r.id, r.name, r.description, r.created_at
		FROM roles r
		INNER JOIN user_roles ur ON r.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY r.name
	`, userID)

	if err != nil {
		return nil, fmt.Errorf("failed to list user roles: %w", err)
	}
	defer rows.Close()

	var roles []*authz.Role

	for rows.Next() {
		var role authz.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, &role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read user roles: %w", err)
	}

	return roles, nil
}
