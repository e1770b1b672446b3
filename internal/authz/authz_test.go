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

package authz_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openshelf/openshelf/internal/authz"
)

// MockRoleRepository implements authz.RoleRepository for testing
type MockRoleRepository struct {
	roles map[string]*authz.Role
}

func NewMockRoleRepository() *MockRoleRepository {
	return &MockRoleRepository{roles: make(map[string]*authz.Role)}
}

func (m *MockRoleRepository) Create(ctx context.Context, role *authz.Role) error {
	for _, r := range m.roles {
		if r.Name == role.Name {
			return authz.ErrRoleAlreadyExists
		}
	}
	m.roles[role.ID] = role
	return nil
}

func (m *MockRoleRepository) GetByID(ctx context.Context, id string) (*authz.Role, error) {
	if r, ok := m.roles[id]; ok {
		return r, nil
	}
	return nil, authz.ErrRoleNotFound
}

func (m *MockRoleRepository) GetByName(ctx context.Context, name string) (*authz.Role, error) {
	for _, r := range m.roles {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, authz.ErrRoleNotFound
}

func (m *MockRoleRepository) List(ctx context.Context) ([]*authz.Role, error) {
	var out []*authz.Role
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

func (m *MockRoleRepository) CountUsers(ctx context.Context, roleID string) (int, error) {
	return 0, nil
}

// MockGrantRepository implements authz.GrantRepository for testing.
// Setting failWith makes every method return that error, which is how the
// fail-closed path is exercised.
type MockGrantRepository struct {
	grants   map[string]*authz.Grant
	failWith error
}

func NewMockGrantRepository() *MockGrantRepository {
	return &MockGrantRepository{grants: make(map[string]*authz.Grant)}
}

func grantKey(roleID, resource, action string) string {
	return roleID + "/" + resource + "/" + action
}

func (m *MockGrantRepository) Add(ctx context.Context, grant *authz.Grant) error {
	if m.failWith != nil {
		return m.failWith
	}
	key := grantKey(grant.RoleID, grant.Resource, grant.Action)
	if _, exists := m.grants[key]; exists {
		return authz.ErrDuplicateGrant
	}
	m.grants[key] = grant
	return nil
}

func (m *MockGrantRepository) SetGranted(ctx context.Context, roleID, resource, action string, granted bool) error {
	if m.failWith != nil {
		return m.failWith
	}
	g, ok := m.grants[grantKey(roleID, resource, action)]
	if !ok {
		return authz.ErrGrantNotFound
	}
	g.Granted = granted
	return nil
}

func (m *MockGrantRepository) Remove(ctx context.Context, roleID, resource, action string) error {
	if m.failWith != nil {
		return m.failWith
	}
	key := grantKey(roleID, resource, action)
	if _, ok := m.grants[key]; !ok {
		return authz.ErrGrantNotFound
	}
	delete(m.grants, key)
	return nil
}

func (m *MockGrantRepository) ListForRole(ctx context.Context, roleID string) ([]*authz.Grant, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []*authz.Grant
	for _, g := range m.grants {
		if g.RoleID == roleID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *MockGrantRepository) ListAll(ctx context.Context) ([]*authz.Grant, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []*authz.Grant
	for _, g := range m.grants {
		out = append(out, g)
	}
	return out, nil
}

func (m *MockGrantRepository) AnyGranted(ctx context.Context, roleIDs []string, resource, action string) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	for _, roleID := range roleIDs {
		if g, ok := m.grants[grantKey(roleID, resource, action)]; ok && g.Granted {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockGrantRepository) ListGrantedForRoles(ctx context.Context, roleIDs []string) ([]*authz.Grant, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []*authz.Grant
	for _, roleID := range roleIDs {
		for _, g := range m.grants {
			if g.RoleID == roleID && g.Granted {
				out = append(out, g)
			}
		}
	}
	return out, nil
}

// MockAssignmentRepository implements authz.AssignmentRepository for testing
type MockAssignmentRepository struct {
	assignments []*authz.Assignment
	failWith    error
}

func NewMockAssignmentRepository() *MockAssignmentRepository {
	return &MockAssignmentRepository{}
}

func (m *MockAssignmentRepository) Assign(ctx context.Context, a *authz.Assignment) error {
	m.assignments = append(m.assignments, a)
	return nil
}

func (m *MockAssignmentRepository) Revoke(ctx context.Context, userID, roleID string) error {
	out := m.assignments[:0]
	for _, a := range m.assignments {
		if a.UserID != userID || a.RoleID != roleID {
			out = append(out, a)
		}
	}
	m.assignments = out
	return nil
}

func (m *MockAssignmentRepository) ListRoleIDsForUser(ctx context.Context, userID string) ([]string, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []string
	for _, a := range m.assignments {
		if a.UserID == userID {
			out = append(out, a.RoleID)
		}
	}
	return out, nil
}

func (m *MockAssignmentRepository) ListRolesForUser(ctx context.Context, userID string) ([]*authz.Role, error) {
	return nil, nil
}

// addGrant seeds a grant row directly into the mock, bypassing vocabulary
// checks and audit.
func addGrant(t *testing.T, repo *MockGrantRepository, roleID, resource, action string, granted bool) {
	t.Helper()
	err := repo.Add(context.Background(), &authz.Grant{
		ID:        roleID + "-" + resource + "-" + action,
		RoleID:    roleID,
		Resource:  resource,
		Action:    action,
		Granted:   granted,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to seed grant: %v", err)
	}
}

// TestPurpose: Validates that permissions are unioned across roles: a grant
// held through any single role is sufficient, and a granted=false row in one
// role never vetoes a granted=true row in another.
// Scope: Unit Test
// Security: RBAC resolution semantics (prevents accidental privilege loss and escalation)
// Expected: Grant through either role allows; revocation in one role does not override the other.
// Test Case ID: RES-01
func TestResolver_UnionAcrossRoles(t *testing.T) {
	grantRepo := NewMockGrantRepository()
	assignmentRepo := NewMockAssignmentRepository()
	resolver := authz.NewResolver(assignmentRepo, grantRepo)
	ctx := context.Background()

	// User holds two roles. Role A grants Document:View, role B carries an
	// explicit revocation of the same capability.
	assignmentRepo.Assign(ctx, &authz.Assignment{UserID: "user-1", RoleID: "role-a"})
	assignmentRepo.Assign(ctx, &authz.Assignment{UserID: "user-1", RoleID: "role-b"})
	addGrant(t, grantRepo, "role-a", authz.ResourceDocument, authz.ActionView, true)
	addGrant(t, grantRepo, "role-b", authz.ResourceDocument, authz.ActionView, false)

	allowed, err := resolver.HasPermission(ctx, "user-1", authz.ResourceDocument, authz.ActionView)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("grant in role-a should win over revocation in role-b")
	}

	// Capability granted in neither role is denied.
	allowed, err = resolver.HasPermission(ctx, "user-1", authz.ResourceDocument, authz.ActionDelete)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("Document:Delete was never granted and must be denied")
	}
}

// TestPurpose: Validates that a revoked (granted=false) row resolves exactly
// like an absent row.
// Scope: Unit Test
// Security: Explicit revocation must deny access
// Expected: Denied for granted=false, denied for no row.
// Test Case ID: RES-02
func TestResolver_RevokedGrantDenies(t *testing.T) {
	grantRepo := NewMockGrantRepository()
	assignmentRepo := NewMockAssignmentRepository()
	resolver := authz.NewResolver(assignmentRepo, grantRepo)
	ctx := context.Background()

	assignmentRepo.Assign(ctx, &authz.Assignment{UserID: "user-1", RoleID: "role-a"})
	addGrant(t, grantRepo, "role-a", authz.ResourceDocument, authz.ActionUpload, false)

	allowed, err := resolver.HasPermission(ctx, "user-1", authz.ResourceDocument, authz.ActionUpload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("granted=false row must resolve as denied")
	}
}

// TestPurpose: Validates that a user with no role assignments resolves to an
// empty permission set without touching the grant store.
// Scope: Unit Test
// Expected: HasPermission false, ResolvedPermissions empty, both without error.
// Test Case ID: RES-03
func TestResolver_NoRoles(t *testing.T) {
	// A failing grant repo proves the store is never queried for roleless
	// users: any query would surface the error.
	grantRepo := NewMockGrantRepository()
	grantRepo.failWith = errors.New("grant store must not be queried")
	assignmentRepo := NewMockAssignmentRepository()
	resolver := authz.NewResolver(assignmentRepo, grantRepo)
	ctx := context.Background()

	allowed, err := resolver.HasPermission(ctx, "user-without-roles", authz.ResourceDocument, authz.ActionView)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("user without roles must have no permissions")
	}

	set, err := resolver.ResolvedPermissions(ctx, "user-without-roles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set) != 0 {
		t.Errorf("expected empty permission set, got %v", set.Strings())
	}
}

// TestPurpose: Validates that the resolved permission set is the
// deduplicated union of granted rows across all held roles.
// Scope: Unit Test
// Expected: Overlapping grants appear once; revoked rows do not appear.
// Test Case ID: RES-04
func TestResolver_ResolvedPermissions_Dedup(t *testing.T) {
	grantRepo := NewMockGrantRepository()
	assignmentRepo := NewMockAssignmentRepository()
	resolver := authz.NewResolver(assignmentRepo, grantRepo)
	ctx := context.Background()

	assignmentRepo.Assign(ctx, &authz.Assignment{UserID: "user-1", RoleID: "role-a"})
	assignmentRepo.Assign(ctx, &authz.Assignment{UserID: "user-1", RoleID: "role-b"})
	addGrant(t, grantRepo, "role-a", authz.ResourceDocument, authz.ActionView, true)
	addGrant(t, grantRepo, "role-b", authz.ResourceDocument, authz.ActionView, true)
	addGrant(t, grantRepo, "role-b", authz.ResourceReview, authz.ActionCreate, true)
	addGrant(t, grantRepo, "role-b", authz.ResourceReview, authz.ActionModerate, false)

	set, err := resolver.ResolvedPermissions(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(set) != 2 {
		t.Errorf("expected 2 distinct permissions, got %d: %v", len(set), set.Strings())
	}
	if !set.Has(authz.ResourceDocument, authz.ActionView) {
		t.Error("expected Document:View in resolved set")
	}
	if !set.Has(authz.ResourceReview, authz.ActionCreate) {
		t.Error("expected Review:Create in resolved set")
	}
	if set.Has(authz.ResourceReview, authz.ActionModerate) {
		t.Error("revoked Review:Moderate must not be in resolved set")
	}
}

// TestPurpose: Validates the gate's outcome mapping: missing identity,
// denial, and infrastructure failure are distinguishable errors, and a
// store failure never results in a silent allow.
// Scope: Unit Test
// Security: Fail-closed authorization
// Expected: ErrNotAuthenticated / ErrForbidden / ErrUnavailable respectively; nil when granted.
// Test Case ID: GAT-01
func TestGate_Outcomes(t *testing.T) {
	grantRepo := NewMockGrantRepository()
	assignmentRepo := NewMockAssignmentRepository()
	gate := authz.NewGate(authz.NewResolver(assignmentRepo, grantRepo))
	ctx := context.Background()

	assignmentRepo.Assign(ctx, &authz.Assignment{UserID: "user-1", RoleID: "role-a"})
	addGrant(t, grantRepo, "role-a", authz.ResourceDocument, authz.ActionView, true)

	// Granted
	if err := gate.Authorize(ctx, "user-1", authz.ResourceDocument, authz.ActionView); err != nil {
		t.Errorf("expected allow, got %v", err)
	}

	// Missing identity
	err := gate.Authorize(ctx, "", authz.ResourceDocument, authz.ActionView)
	if !errors.Is(err, authz.ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}

	// Denied
	err = gate.Authorize(ctx, "user-1", authz.ResourceSystem, authz.ActionConfigure)
	if !errors.Is(err, authz.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	// Store failure: must surface as unavailable, never allow or forbid.
	grantRepo.failWith = errors.New("connection refused")
	err = gate.Authorize(ctx, "user-1", authz.ResourceDocument, authz.ActionView)
	if !errors.Is(err, authz.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if authz.IsDenial(err) {
		t.Error("infrastructure failure must not look like a definitive denial")
	}
}

// TestPurpose: Validates that context cancellation during a check surfaces
// as unavailable wrapping the context error.
// Scope: Unit Test
// Security: Fail-closed authorization under cancellation
// Expected: ErrUnavailable wrapping context.Canceled.
// Test Case ID: GAT-02
func TestGate_ContextCancelled(t *testing.T) {
	grantRepo := NewMockGrantRepository()
	grantRepo.failWith = errors.New("query aborted")
	assignmentRepo := NewMockAssignmentRepository()
	assignmentRepo.Assign(context.Background(), &authz.Assignment{UserID: "user-1", RoleID: "role-a"})
	gate := authz.NewGate(authz.NewResolver(assignmentRepo, grantRepo))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := gate.Authorize(ctx, "user-1", authz.ResourceDocument, authz.ActionView)
	if !errors.Is(err, authz.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected wrapped context.Canceled, got %v", err)
	}
}

// TestPurpose: Validates permission string round-tripping between the
// struct form and the "Resource:Action" claim form.
// Scope: Unit Test
// Expected: ParsePermission inverts String; malformed inputs error.
// Test Case ID: PRM-01
func TestPermission_ParseString(t *testing.T) {
	p := authz.Permission{Resource: authz.ResourceDocument, Action: authz.ActionDownload}
	if p.String() != "Document:Download" {
		t.Errorf("unexpected string form: %s", p.String())
	}

	parsed, err := authz.ParsePermission("Document:Download")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != p {
		t.Errorf("round trip mismatch: %+v", parsed)
	}

	for _, bad := range []string{"", "Document", ":View", "Document:"} {
		if _, err := authz.ParsePermission(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
