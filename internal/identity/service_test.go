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

package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openshelf/openshelf/internal/audit"
	"github.com/openshelf/openshelf/internal/authz"
)

// MockUserRepository is a simple in-memory implementation of UserRepository
type MockUserRepository struct {
	users       map[string]*User
	credentials map[string]*Credentials
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:       make(map[string]*User),
		credentials: make(map[string]*Credentials),
	}
}

func (m *MockUserRepository) Create(user *User) error {
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) AddCredentials(credentials *Credentials) error {
	m.credentials[credentials.UserID] = credentials
	return nil
}

func (m *MockUserRepository) GetByID(id string) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (m *MockUserRepository) GetByEmail(email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MockUserRepository) Update(user *User) error {
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) UpdateLockout(userID string, failedAttempts int, lockedUntil *time.Time) error {
	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.FailedLoginAttempts = failedAttempts
	u.LockedUntil = lockedUntil
	return nil
}

func (m *MockUserRepository) SetActive(userID string, active bool) error {
	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.Active = active
	return nil
}

func (m *MockUserRepository) GetCredentials(userID string) (*Credentials, error) {
	c, ok := m.credentials[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return c, nil
}

func (m *MockUserRepository) UpdatePassword(userID string, passwordHash string) error {
	c, ok := m.credentials[userID]
	if !ok {
		return ErrUserNotFound
	}
	c.PasswordHash = passwordHash
	return nil
}

// mockRoleRepo serves the seeded role names by fixed IDs
type mockRoleRepo struct{}

func (m *mockRoleRepo) Create(ctx context.Context, role *authz.Role) error { return nil }
func (m *mockRoleRepo) GetByID(ctx context.Context, id string) (*authz.Role, error) {
	return nil, authz.ErrRoleNotFound
}
func (m *mockRoleRepo) GetByName(ctx context.Context, name string) (*authz.Role, error) {
	switch name {
	case authz.RoleStudent:
		return &authz.Role{ID: "role-student", Name: authz.RoleStudent}, nil
	case authz.RoleTeacher:
		return &authz.Role{ID: "role-teacher", Name: authz.RoleTeacher}, nil
	}
	return nil, authz.ErrRoleNotFound
}
func (m *mockRoleRepo) List(ctx context.Context) ([]*authz.Role, error)          { return nil, nil }
func (m *mockRoleRepo) CountUsers(ctx context.Context, roleID string) (int, error) { return 0, nil }

// mockAssignmentRepo records assignments in memory
type mockAssignmentRepo struct {
	assignments []*authz.Assignment
}

func (m *mockAssignmentRepo) Assign(ctx context.Context, a *authz.Assignment) error {
	m.assignments = append(m.assignments, a)
	return nil
}

func (m *mockAssignmentRepo) Revoke(ctx context.Context, userID, roleID string) error {
	out := m.assignments[:0]
	for _, a := range m.assignments {
		if a.UserID != userID || a.RoleID != roleID {
			out = append(out, a)
		}
	}
	m.assignments = out
	return nil
}

func (m *mockAssignmentRepo) ListRoleIDsForUser(ctx context.Context, userID string) ([]string, error) {
	var out []string
	for _, a := range m.assignments {
		if a.UserID == userID {
			out = append(out, a.RoleID)
		}
	}
	return out, nil
}

func (m *mockAssignmentRepo) ListRolesForUser(ctx context.Context, userID string) ([]*authz.Role, error) {
	return nil, nil
}

func newService(repo *MockUserRepository, assignments *mockAssignmentRepo) *Service {
	hasher := NewPasswordHasher(65536, 3, 4, 16, 32)
	return NewService(repo, &mockRoleRepo{}, assignments, hasher, audit.NewSlogLogger(), 3, 5*time.Minute)
}

// TestPurpose: Validates registration: a new user is created active, with
// hashed credentials, and holding the default role.
// Scope: Unit Test
// Security: Default least-privilege role at account creation
// Expected: User exists, is active, password hash stored, one Student
// assignment recorded, duplicate email rejected.
// Test Case ID: IDN-01
func TestIdentity_Service_Register(t *testing.T) {
	repo := NewMockUserRepository()
	assignments := &mockAssignmentRepo{}
	s := newService(repo, assignments)
	ctx := context.Background()

	user, err := s.Register(ctx, "alice@example.com", "SecurePassword123", Profile{FullName: "Alice Tester"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if !user.Active {
		t.Error("new user should be active")
	}

	creds, err := repo.GetCredentials(user.ID)
	if err != nil {
		t.Fatalf("expected credentials to be stored: %v", err)
	}
	if creds.PasswordHash == "SecurePassword123" {
		t.Error("password must not be stored in the clear")
	}

	roleIDs, _ := assignments.ListRoleIDsForUser(ctx, user.ID)
	if len(roleIDs) != 1 || roleIDs[0] != "role-student" {
		t.Errorf("expected exactly the default role assignment, got %v", roleIDs)
	}

	// Duplicate email
	_, err = s.Register(ctx, "alice@example.com", "AnotherPassword1", Profile{})
	if !errors.Is(err, ErrUserAlreadyExists) {
		t.Errorf("expected ErrUserAlreadyExists, got %v", err)
	}

	// Input validation
	if _, err := s.Register(ctx, "not-an-email", "SecurePassword123", Profile{}); !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := s.Register(ctx, "bob@example.com", "short", Profile{}); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("expected ErrWeakPassword, got %v", err)
	}
}

// TestPurpose: Validates the authentication flow, including success, failure,
// and account lockout after repeated failed attempts.
// Scope: Unit Test
// Security: Authentication and brute-force protection (lockout)
// Expected: Success for correct credentials, ErrInvalidCredentials for wrong
// ones, ErrAccountLocked after the threshold, reset on successful login.
// Test Case ID: IDN-02
func TestIdentity_Service_Authenticate(t *testing.T) {
	repo := NewMockUserRepository()
	s := newService(repo, &mockAssignmentRepo{})
	ctx := context.Background()

	email := "test@example.com"
	password := "SecurePassword123"

	user, err := s.Register(ctx, email, password, Profile{FullName: "Test User"})
	if err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	// Success
	authed, err := s.Authenticate(ctx, email, password)
	if err != nil {
		t.Fatalf("expected success, got err: %v", err)
	}
	if authed.ID != user.ID {
		t.Errorf("expected user ID %s, got %s", user.ID, authed.ID)
	}

	// Unknown email must be indistinguishable from a bad password
	_, err = s.Authenticate(ctx, "nobody@example.com", password)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	// Failed attempts up to the lockout threshold
	s.Authenticate(ctx, email, "WrongPassword")          // 1
	s.Authenticate(ctx, email, "WrongPassword")          // 2
	_, err = s.Authenticate(ctx, email, "WrongPassword") // 3, threshold met
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for 3rd failed attempt, got %v", err)
	}

	// Locked out even with the correct password
	_, err = s.Authenticate(ctx, email, password)
	if !errors.Is(err, ErrAccountLocked) {
		t.Errorf("expected ErrAccountLocked, got %v", err)
	}

	// Lockout expiry restores access and resets the counter
	repo.users[user.ID].LockedUntil = nil
	repo.users[user.ID].FailedLoginAttempts = 2
	if _, err := s.Authenticate(ctx, email, password); err != nil {
		t.Fatalf("expected success after lockout expiry, got %v", err)
	}
	if repo.users[user.ID].FailedLoginAttempts != 0 {
		t.Error("successful login should reset the failure counter")
	}
}

// TestPurpose: Validates that a disabled account cannot authenticate even
// with correct credentials.
// Scope: Unit Test
// Security: Account disablement enforcement at login
// Expected: ErrAccountDisabled; re-enabling restores access.
// Test Case ID: IDN-03
func TestIdentity_Service_DisabledAccount(t *testing.T) {
	repo := NewMockUserRepository()
	s := newService(repo, &mockAssignmentRepo{})
	ctx := context.Background()

	email := "inactive@example.com"
	password := "SecurePassword123"
	user, err := s.Register(ctx, email, password, Profile{})
	if err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	if err := s.SetActive(ctx, "admin-1", user.ID, false); err != nil {
		t.Fatalf("failed to disable account: %v", err)
	}

	_, err = s.Authenticate(ctx, email, password)
	if !errors.Is(err, ErrAccountDisabled) {
		t.Errorf("expected ErrAccountDisabled, got %v", err)
	}

	if err := s.SetActive(ctx, "admin-1", user.ID, true); err != nil {
		t.Fatalf("failed to re-enable account: %v", err)
	}
	if _, err := s.Authenticate(ctx, email, password); err != nil {
		t.Errorf("expected success after re-enable, got %v", err)
	}
}

// TestPurpose: Validates role assignment and revocation through the
// identity service.
// Scope: Unit Test
// Expected: Assign adds an assignment attributed to the actor; revoke
// removes it; unknown role name errors.
// Test Case ID: IDN-04
func TestIdentity_Service_AssignRevokeRole(t *testing.T) {
	repo := NewMockUserRepository()
	assignments := &mockAssignmentRepo{}
	s := newService(repo, assignments)
	ctx := context.Background()

	user, err := s.Register(ctx, "carol@example.com", "SecurePassword123", Profile{})
	if err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	if err := s.AssignRole(ctx, "admin-1", user.ID, authz.RoleTeacher); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	roleIDs, _ := assignments.ListRoleIDsForUser(ctx, user.ID)
	if len(roleIDs) != 2 {
		t.Errorf("expected Student plus Teacher, got %v", roleIDs)
	}

	if err := s.AssignRole(ctx, "admin-1", user.ID, "Ghost"); !errors.Is(err, authz.ErrRoleNotFound) {
		t.Errorf("expected ErrRoleNotFound, got %v", err)
	}

	if err := s.RevokeRole(ctx, "admin-1", user.ID, authz.RoleTeacher); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	roleIDs, _ = assignments.ListRoleIDsForUser(ctx, user.ID)
	if len(roleIDs) != 1 || roleIDs[0] != "role-student" {
		t.Errorf("expected only the default role to remain, got %v", roleIDs)
	}
}
