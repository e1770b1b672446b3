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

	"github.com/openshelf/openshelf/internal/audit"
	"github.com/openshelf/openshelf/internal/authz"
)

func newAdminFixture(t *testing.T) (*authz.Admin, *MockRoleRepository, *MockGrantRepository) {
	t.Helper()
	roleRepo := NewMockRoleRepository()
	grantRepo := NewMockGrantRepository()
	admin := authz.NewAdmin(roleRepo, grantRepo, audit.NewSlogLogger())

	err := roleRepo.Create(context.Background(), &authz.Role{
		ID:        "role-student",
		Name:      authz.RoleStudent,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to create fixture role: %v", err)
	}
	return admin, roleRepo, grantRepo
}

// TestPurpose: Validates grant creation, duplicate rejection, and vocabulary
// enforcement in the administration service.
// Scope: Unit Test
// Security: Capability vocabulary boundary (prevents typo'd or invented capabilities)
// Expected: Valid capability inserts once; re-adding errors; out-of-vocabulary rejected.
// Test Case ID: ADM-01
func TestAdmin_AddGrant(t *testing.T) {
	admin, _, _ := newAdminFixture(t)
	ctx := context.Background()

	grant, err := admin.AddGrant(ctx, "actor-1", "role-student", authz.ResourceDocument, authz.ActionView, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if grant.ID == "" {
		t.Error("expected grant to receive an ID")
	}

	_, err = admin.AddGrant(ctx, "actor-1", "role-student", authz.ResourceDocument, authz.ActionView, false)
	if !errors.Is(err, authz.ErrDuplicateGrant) {
		t.Errorf("expected ErrDuplicateGrant, got %v", err)
	}

	_, err = admin.AddGrant(ctx, "actor-1", "role-student", authz.ResourceDocument, authz.ActionConfigure, true)
	if !errors.Is(err, authz.ErrUnknownCapability) {
		t.Errorf("expected ErrUnknownCapability for Document:Configure, got %v", err)
	}

	_, err = admin.AddGrant(ctx, "actor-1", "role-student", "Inventory", authz.ActionView, true)
	if !errors.Is(err, authz.ErrUnknownCapability) {
		t.Errorf("expected ErrUnknownCapability for unknown resource, got %v", err)
	}
}

// TestPurpose: Validates toggling and removing existing grants, and the
// not-found outcome for absent rows.
// Scope: Unit Test
// Expected: SetGranted flips the flag in place; Remove deletes; both error with ErrGrantNotFound on absent rows.
// Test Case ID: ADM-02
func TestAdmin_SetGranted_Remove(t *testing.T) {
	admin, _, grantRepo := newAdminFixture(t)
	ctx := context.Background()

	if _, err := admin.AddGrant(ctx, "actor-1", "role-student", authz.ResourceReview, authz.ActionCreate, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := admin.SetGranted(ctx, "actor-1", "role-student", authz.ResourceReview, authz.ActionCreate, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	grants, _ := grantRepo.ListForRole(ctx, "role-student")
	if len(grants) != 1 || grants[0].Granted {
		t.Error("expected the single grant row to be toggled off, not removed")
	}

	err := admin.SetGranted(ctx, "actor-1", "role-student", authz.ResourceReview, authz.ActionModerate, true)
	if !errors.Is(err, authz.ErrGrantNotFound) {
		t.Errorf("expected ErrGrantNotFound, got %v", err)
	}

	if err := admin.RemoveGrant(ctx, "actor-1", "role-student", authz.ResourceReview, authz.ActionCreate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	grants, _ = grantRepo.ListForRole(ctx, "role-student")
	if len(grants) != 0 {
		t.Error("expected grant row to be deleted")
	}

	err = admin.RemoveGrant(ctx, "actor-1", "role-student", authz.ResourceReview, authz.ActionCreate)
	if !errors.Is(err, authz.ErrGrantNotFound) {
		t.Errorf("expected ErrGrantNotFound on second removal, got %v", err)
	}
}

// TestPurpose: Validates partial success in bulk updates: entries whose
// grant row does not exist are skipped, the rest apply, and the result
// reports both counts.
// Scope: Unit Test
// Expected: 3 requested, 2 applied; existing rows updated; unknown role errors up front.
// Test Case ID: ADM-03
func TestAdmin_BulkUpdate_PartialSuccess(t *testing.T) {
	admin, _, grantRepo := newAdminFixture(t)
	ctx := context.Background()

	admin.AddGrant(ctx, "actor-1", "role-student", authz.ResourceDocument, authz.ActionView, true)
	admin.AddGrant(ctx, "actor-1", "role-student", authz.ResourceDocument, authz.ActionDownload, true)

	updates := []authz.GrantUpdate{
		{Resource: authz.ResourceDocument, Action: authz.ActionView, Granted: false},
		{Resource: authz.ResourceDocument, Action: authz.ActionDownload, Granted: false},
		// No grant row exists for this one; it must be skipped.
		{Resource: authz.ResourceReview, Action: authz.ActionModerate, Granted: true},
	}

	result, err := admin.BulkUpdate(ctx, "actor-1", "role-student", updates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Requested != 3 {
		t.Errorf("expected 3 requested, got %d", result.Requested)
	}
	if result.Applied != 2 {
		t.Errorf("expected 2 applied, got %d", result.Applied)
	}

	grants, _ := grantRepo.ListForRole(ctx, "role-student")
	for _, g := range grants {
		if g.Granted {
			t.Errorf("expected %s:%s to be toggled off", g.Resource, g.Action)
		}
	}

	_, err = admin.BulkUpdate(ctx, "actor-1", "role-unknown", updates)
	if !errors.Is(err, authz.ErrRoleNotFound) {
		t.Errorf("expected ErrRoleNotFound, got %v", err)
	}
}

// TestPurpose: Validates that the published capability matrix is complete
// and returned by value, so callers cannot mutate the vocabulary.
// Scope: Unit Test
// Expected: Six resource types; mutating the returned slice does not leak.
// Test Case ID: ADM-04
func TestAdmin_ListVocabulary(t *testing.T) {
	admin, _, _ := newAdminFixture(t)

	vocab := admin.ListVocabulary()
	if len(vocab) != 6 {
		t.Fatalf("expected 6 resource types, got %d", len(vocab))
	}

	seen := make(map[string]bool)
	for _, ra := range vocab {
		seen[ra.Resource] = true
		if len(ra.Actions) == 0 {
			t.Errorf("resource %s has no actions", ra.Resource)
		}
	}
	for _, want := range []string{
		authz.ResourceUser, authz.ResourceDocument, authz.ResourceCategory,
		authz.ResourceReview, authz.ResourceDashboard, authz.ResourceSystem,
	} {
		if !seen[want] {
			t.Errorf("vocabulary missing resource %s", want)
		}
	}

	vocab[0].Actions[0] = "Tampered"
	again := admin.ListVocabulary()
	if again[0].Actions[0] == "Tampered" {
		t.Error("vocabulary must be returned by value")
	}
}
