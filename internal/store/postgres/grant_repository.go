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
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openshelf/openshelf/internal/authz"
)

// PostgreSQL error codes surfaced as domain errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// GrantRepository implements authz.GrantRepository
type GrantRepository struct {
	db *DB
}

// NewGrantRepository creates a new grant repository
func NewGrantRepository(db *DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// Add inserts a new grant row. The unique constraint on
// (role_id, resource, action) makes concurrent duplicate inserts safe:
// one wins, the other returns ErrDuplicateGrant.
func (r *GrantRepository) Add(ctx context.Context, grant *authz.Grant) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO role_grants (
			id, role_id, resource, action, granted, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`,
		grant.ID, grant.RoleID, grant.Resource, grant.Action,
		grant.Granted, grant.CreatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return authz.ErrDuplicateGrant
			case pgForeignKeyViolation:
				return authz.ErrRoleNotFound
			}
		}
		return fmt.Errorf("failed to insert grant: %w", err)
	}

	return nil
}

// SetGranted flips the granted flag on an existing grant
func (r *GrantRepository) SetGranted(ctx context.Context, roleID, resource, action string, granted bool) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE role_grants SET granted = $4
		WHERE role_id = $1 AND resource = $2 AND action = $3
	`, roleID, resource, action, granted)

	if err != nil {
		return fmt.Errorf("failed to update grant: %w", err)
	}

	if result.RowsAffected() == 0 {
		return authz.ErrGrantNotFound
	}

	return nil
}

// Remove deletes a grant row
func (r *GrantRepository) Remove(ctx context.Context, roleID, resource, action string) error {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM role_grants
		WHERE role_id = $1 AND resource = $2 AND action = $3
	`, roleID, resource, action)

	if err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}

	if result.RowsAffected() == 0 {
		return authz.ErrGrantNotFound
	}

	return nil
}

// ListForRole retrieves all grants for a role
func (r *GrantRepository) ListForRole(ctx context.Context, roleID string) ([]*authz.Grant, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, role_id, resource, action, granted, created_at
		FROM role_grants
		WHERE role_id = $1
		ORDER BY resource, action
	`, roleID)

	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	return scanGrants(rows)
}

// ListAll retrieves every grant row
func (r *GrantRepository) ListAll(ctx context.Context) ([]*authz.Grant, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, role_id, resource, action, granted, created_at
		FROM role_grants
		ORDER BY role_id, resource, action
	`)

	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	return scanGrants(rows)
}

// AnyGranted checks whether any of the roles holds a granted row for the
// capability. A granted=false row never matches, so an explicit revocation
// in one role cannot veto a grant from another.
func (r *GrantRepository) AnyGranted(ctx context.Context, roleIDs []string, resource, action string) (bool, error) {
	if len(roleIDs) == 0 {
		return false, nil
	}

	var exists bool
	err := r.db.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM role_grants
			WHERE role_id = ANY($1) AND resource = $2 AND action = $3 AND granted
		)
	`, roleIDs, resource, action).Scan(&exists)

	if err != nil {
		return false, fmt.Errorf("failed to check grant existence: %w", err)
	}

	return exists, nil
}

// ListGrantedForRoles retrieves all granted rows across the roles
func (r *GrantRepository) ListGrantedForRoles(ctx context.Context, roleIDs []string) ([]*authz.Grant, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.pool.Query(ctx, `
		SELECT id, role_id, resource, action, granted, created_at
		FROM role_grants
		WHERE role_id = ANY($1) AND granted
		ORDER BY resource, action
	`, roleIDs)

	if err != nil {
		return nil, fmt.Errorf("failed to list granted capabilities: %w", err)
	}
	defer rows.Close()

	return scanGrants(rows)
}

func scanGrants(rows pgx.Rows) ([]*authz.Grant, error) {
	var grants []*authz.Grant

	for rows.Next() {
		var g authz.Grant
		if err := rows.Scan(
			&g.ID, &g.RoleID, &g.Resource, &g.Action, &g.Granted, &g.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, &g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read grants: %w", err)
	}

	return grants, nil
}
