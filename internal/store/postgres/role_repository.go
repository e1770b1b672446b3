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

// RoleRepository implements authz.RoleRepository
type RoleRepository struct {
	db *DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// Create creates a new role
func (r *RoleRepository) Create(ctx context.Context, role *authz.Role) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO roles (
			id, name, description, created_at
		) VALUES ($1, $2, $3, $4)
	`,
		role.ID, role.Name, role.Description, role.CreatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return authz.ErrRoleAlreadyExists
		}
		return fmt.Errorf("failed to create role: %w", err)
	}

	return nil
}

// GetByID retrieves a role by ID
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*authz.Role, error) {
	var role authz.Role

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, name, description, created_at
		FROM roles
		WHERE id = $1
	`, id).Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authz.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	return &role, nil
}

// GetByName retrieves a role by name
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*authz.Role, error) {
	var role authz.Role

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, name, description, created_at
		FROM roles
		WHERE name = $1
	`, name).Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authz.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	return &role, nil
}

// List retrieves all roles ordered by name
func (r *RoleRepository) List(ctx context.Context) ([]*authz.Role, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, name, description, created_at
		FROM roles
		ORDER BY name
	`)

	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
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
		return nil, fmt.Errorf("failed to read roles: %w", err)
	}

	return roles, nil
}

// CountUsers returns the number of users currently assigned the role
func (r *RoleRepository) CountUsers(ctx context.Context, roleID string) (int, error) {
	var count int

	err := r.db.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM user_roles WHERE role_id = $1
	`, roleID).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("failed to count role users: %w", err)
	}

	return count, nil
}
