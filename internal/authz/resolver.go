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
	"fmt"
)

// Resolver computes effective permissions from role memberships. Every call
// reads live storage; there is no caching tier, so an administration write
// is visible on the very next resolution.
//
// Grants are unioned across roles (any role suffices). A granted=false row
// in one role never overrides a granted=true row in another; explicit deny
// semantics would be a policy change, not a bug fix.
type Resolver struct {
	assignmentRepo AssignmentRepository
	grantRepo      GrantRepository
}

// NewResolver creates a new permission resolver.
func NewResolver(assignmentRepo AssignmentRepository, grantRepo GrantRepository) *Resolver {
	return &Resolver{
		assignmentRepo: assignmentRepo,
		grantRepo:      grantRepo,
	}
}

// HasPermission reports whether any of the user's roles holds a granted
// (resource, action) capability. A user with no roles has no permissions;
// the grant table is not queried in that case.
func (r *Resolver) HasPermission(ctx context.Context, userID, resource, action string) (bool, error) {
	roleIDs, err := r.assignmentRepo.ListRoleIDsForUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to list roles for user: %w", err)
	}
	if len(roleIDs) == 0 {
		return false, nil
	}

	granted, err := r.grantRepo.AnyGranted(ctx, roleIDs, resource, action)
	if err != nil {
		return false, fmt.Errorf("failed to check grants: %w", err)
	}
	return granted, nil
}

// ResolvedPermissions returns the user's full effective capability set:
// the deduplicated union of granted=true rows across all held roles.
func (r *Resolver) ResolvedPermissions(ctx context.Context, userID string) (PermissionSet, error) {
	roleIDs, err := r.assignmentRepo.ListRoleIDsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles for user: %w", err)
	}

	set := make(PermissionSet)
	if len(roleIDs) == 0 {
		return set, nil
	}

	grants, err := r.grantRepo.ListGrantedForRoles(ctx, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}

	for _, g := range grants {
		set[Permission{Resource: g.Resource, Action: g.Action}] = struct{}{}
	}
	return set, nil
}
