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
	"time"

	"github.com/openshelf/openshelf/internal/audit"
	"github.com/openshelf/openshelf/internal/id"
)

// Admin exposes the mutation surface over the permission store. It is
// consumed by the admin API layer, which itself passes the Gate for a
// System/User capability before any of these methods run.
type Admin struct {
	roleRepo    RoleRepository
	grantRepo   GrantRepository
	auditLogger audit.Logger
}

// NewAdmin creates the role/permission administration service.
func NewAdmin(roleRepo RoleRepository, grantRepo GrantRepository, auditLogger audit.Logger) *Admin {
	return &Admin{
		roleRepo:    roleRepo,
		grantRepo:   grantRepo,
		auditLogger: auditLogger,
	}
}

// RoleGrants is a role together with its grant rows, for administration
// views.
type RoleGrants struct {
	Role      *Role
	UserCount int
	Grants    []*Grant
}

// GrantUpdate is one entry of a bulk update batch.
type GrantUpdate struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Granted  bool   `json:"granted"`
}

// BulkResult reports how much of a bulk update batch actually applied.
// Partial success is expected: entries referencing a nonexistent grant are
// skipped, not fatal.
type BulkResult struct {
	Requested int `json:"requested"`
	Applied   int `json:"applied"`
}

// AddGrant inserts a new grant row for the role. The capability must be in
// the vocabulary; re-adding an existing (role, resource, action) triple is
// ErrDuplicateGrant.
func (a *Admin) AddGrant(ctx context.Context, actorID, roleID, resource, action string, granted bool) (*Grant, error) {
	if !ValidCapability(resource, action) {
		return nil, fmt.Errorf("%w: %s:%s", ErrUnknownCapability, resource, action)
	}

	grant := &Grant{
		ID:        id.NewUUIDv7(),
		RoleID:    roleID,
		Resource:  resource,
		Action:    action,
		Granted:   granted,
		CreatedAt: time.Now(),
	}
	if err := a.grantRepo.Add(ctx, grant); err != nil {
		return nil, err
	}

	a.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeGrantAdded,
		ActorID:  actorID,
		Resource: resource + ":" + action,
		Metadata: map[string]any{
			audit.AttrRoleID:  roleID,
			audit.AttrGranted: granted,
		},
	})
	return grant, nil
}

// SetGranted toggles an existing grant row.
func (a *Admin) SetGranted(ctx context.Context, actorID, roleID, resource, action string, granted bool) error {
	if err := a.grantRepo.SetGranted(ctx, roleID, resource, action, granted); err != nil {
		return err
	}

	eventType := audit.TypeGrantEnabled
	if !granted {
		eventType = audit.TypeGrantRevoked
	}
	a.auditLogger.Log(ctx, audit.Event{
		Type:     eventType,
		ActorID:  actorID,
		Resource: resource + ":" + action,
		Metadata: map[string]any{audit.AttrRoleID: roleID},
	})
	return nil
}

// RemoveGrant deletes a grant row entirely. Unlike SetGranted(false), the
// explicit-revocation record is gone afterwards.
func (a *Admin) RemoveGrant(ctx context.Context, actorID, roleID, resource, action string) error {
	if err := a.grantRepo.Remove(ctx, roleID, resource, action); err != nil {
		return err
	}

	a.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeGrantRemoved,
		ActorID:  actorID,
		Resource: resource + ":" + action,
		Metadata: map[string]any{audit.AttrRoleID: roleID},
	})
	return nil
}

// ListRoleGrants returns one role with its grants and holder count.
func (a *Admin) ListRoleGrants(ctx context.Context, roleID string) (*RoleGrants, error) {
	role, err := a.roleRepo.GetByID(ctx, roleID)
	if err != nil {
		return nil, err
	}

	grants, err := a.grantRepo.ListForRole(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}

	count, err := a.roleRepo.CountUsers(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to count role holders: %w", err)
	}

	return &RoleGrants{Role: role, UserCount: count, Grants: grants}, nil
}

// ListAllGrants returns every role with its grants, ordered by role name.
func (a *Admin) ListAllGrants(ctx context.Context) ([]*RoleGrants, error) {
	roles, err := a.roleRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	grants, err := a.grantRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}

	byRole := make(map[string][]*Grant, len(roles))
	for _, g := range grants {
		byRole[g.RoleID] = append(byRole[g.RoleID], g)
	}

	out := make([]*RoleGrants, 0, len(roles))
	for _, role := range roles {
		out = append(out, &RoleGrants{Role: role, Grants: byRole[role.ID]})
	}
	return out, nil
}

// BulkUpdate applies an ordered batch of toggles to one role. Each entry is
// applied independently; an entry whose grant row does not exist is skipped.
// The result reports how many entries actually applied so partial success
// is visible to the caller rather than swallowed.
func (a *Admin) BulkUpdate(ctx context.Context, actorID, roleID string, updates []GrantUpdate) (BulkResult, error) {
	result := BulkResult{Requested: len(updates)}

	if _, err := a.roleRepo.GetByID(ctx, roleID); err != nil {
		return result, err
	}

	for _, u := range updates {
		err := a.grantRepo.SetGranted(ctx, roleID, u.Resource, u.Action, u.Granted)
		if errors.Is(err, ErrGrantNotFound) {
			continue
		}
		if err != nil {
			return result, fmt.Errorf("bulk update failed at %s:%s: %w", u.Resource, u.Action, err)
		}
		result.Applied++
	}

	a.auditLogger.Log(ctx, audit.Event{
		Type:    audit.TypeGrantsBulkUpdated,
		ActorID: actorID,
		Metadata: map[string]any{
			audit.AttrRoleID: roleID,
			"requested":      result.Requested,
			"applied":        result.Applied,
		},
	})
	return result, nil
}

// ListVocabulary returns the configurable capability matrix.
func (a *Admin) ListVocabulary() []ResourceActions {
	return Vocabulary()
}
