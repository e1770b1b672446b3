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

package authz

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Domain errors
var (
	ErrRoleNotFound      = errors.New("role not found")
	ErrRoleAlreadyExists = errors.New("role already exists")
	ErrDuplicateGrant    = errors.New("grant already exists for this role and capability")
	ErrGrantNotFound     = errors.New("grant not found")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrForbidden         = errors.New("permission denied")
	ErrUnavailable       = errors.New("authorization unavailable")
	ErrUnknownCapability = errors.New("unknown resource/action capability")
)

// Role is a named bundle of permission grants.
type Role struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Grant is a stored (role, resource, action, granted) record. The triple
// (RoleID, Resource, Action) is unique: toggling is done by flipping
// Granted, never by inserting a second row. A Granted=false row resolves
// the same as an absent row but stays visible to administrators as an
// explicit revocation.
type Grant struct {
	ID        string
	RoleID    string
	Resource  string
	Action    string
	Granted   bool
	CreatedAt time.Time
}

// Assignment associates a user with a role.
type Assignment struct {
	UserID     string
	RoleID     string
	AssignedAt time.Time
	AssignedBy string
}

// Permission is a (resource, action) capability pair.
type Permission struct {
	Resource string
	Action   string
}

// String renders the canonical "Resource:Action" form used in token claims.
func (p Permission) String() string {
	return p.Resource + ":" + p.Action
}

// ParsePermission parses the "Resource:Action" form.
func ParsePermission(s string) (Permission, error) {
	resource, action, ok := strings.Cut(s, ":")
	if !ok || resource == "" || action == "" {
		return Permission{}, fmt.Errorf("malformed permission %q", s)
	}
	return Permission{Resource: resource, Action: action}, nil
}

// PermissionSet is the deduplicated effective capability set of a user.
// It is a derived read-only view, never persisted.
type PermissionSet map[Permission]struct{}

// Has reports whether the set contains the capability.
func (s PermissionSet) Has(resource, action string) bool {
	_, ok := s[Permission{Resource: resource, Action: action}]
	return ok
}

// Strings returns the sorted "Resource:Action" forms, suitable for token
// claims and API responses.
func (s PermissionSet) Strings() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p.String())
	}
	sort.Strings(out)
	return out
}

// GrantRepository defines persistence for permission grants. Uniqueness of
// (role, resource, action) is enforced by the backing store, including under
// concurrent Add calls: one insert wins, the other fails with
// ErrDuplicateGrant.
type GrantRepository interface {
	// Add inserts a new grant row. Fails with ErrDuplicateGrant if the
	// (role, resource, action) triple exists, ErrRoleNotFound if the role
	// is unknown.
	Add(ctx context.Context, grant *Grant) error

	// SetGranted flips the granted flag on an existing row. Fails with
	// ErrGrantNotFound if no row matches.
	SetGranted(ctx context.Context, roleID, resource, action string, granted bool) error

	// Remove deletes a grant row. Fails with ErrGrantNotFound if absent.
	Remove(ctx context.Context, roleID, resource, action string) error

	// ListForRole returns the role's grants ordered by resource then action.
	ListForRole(ctx context.Context, roleID string) ([]*Grant, error)

	// ListAll returns every grant row, ordered by role, resource, action.
	ListAll(ctx context.Context) ([]*Grant, error)

	// AnyGranted reports whether any of the roles has a granted=true row
	// for the capability. Existence only; no row data is fetched.
	AnyGranted(ctx context.Context, roleIDs []string, resource, action string) (bool, error)

	// ListGrantedForRoles returns all granted=true rows across the roles.
	ListGrantedForRoles(ctx context.Context, roleIDs []string) ([]*Grant, error)
}

// RoleRepository defines persistence for roles.
type RoleRepository interface {
	Create(ctx context.Context, role *Role) error
	GetByID(ctx context.Context, id string) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)

	// CountUsers returns the number of users holding the role.
	CountUsers(ctx context.Context, roleID string) (int, error)
}

// AssignmentRepository defines persistence for user-role assignments.
type AssignmentRepository interface {
	Assign(ctx context.Context, assignment *Assignment) error
	Revoke(ctx context.Context, userID, roleID string) error

	// ListRoleIDsForUser returns the IDs of every role the user holds.
	ListRoleIDsForUser(ctx context.Context, userID string) ([]string, error)

	// ListRolesForUser returns the full role records the user holds.
	ListRolesForUser(ctx context.Context, userID string) ([]*Role, error)
}
