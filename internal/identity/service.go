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
	"fmt"
	"strings"
	"time"

	"github.com/openshelf/openshelf/internal/audit"
	"github.com/openshelf/openshelf/internal/authz"
	"github.com/openshelf/openshelf/internal/id"
)

// Service provides identity-related business logic
type Service struct {
	repo               UserRepository
	roleRepo           authz.RoleRepository
	assignmentRepo     authz.AssignmentRepository
	hasher             *PasswordHasher
	auditLogger        audit.Logger
	lockoutMaxAttempts int
	lockoutDuration    time.Duration
}

// NewService creates a new identity service
func NewService(
	repo UserRepository,
	roleRepo authz.RoleRepository,
	assignmentRepo authz.AssignmentRepository,
	hasher *PasswordHasher,
	auditLogger audit.Logger,
	lockoutMaxAttempts int,
	lockoutDuration time.Duration,
) *Service {
	return &Service{
		repo:               repo,
		roleRepo:           roleRepo,
		assignmentRepo:     assignmentRepo,
		hasher:             hasher,
		auditLogger:        auditLogger,
		lockoutMaxAttempts: lockoutMaxAttempts,
		lockoutDuration:    lockoutDuration,
	}
}

// Register creates a new active user with credentials and assigns the
// default role. A user always starts with exactly one role; administrators
// change role membership afterwards, self-service role changes do not exist.
func (s *Service) Register(ctx context.Context, email, password string, profile Profile) (*User, error) {
	if !isValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !isStrongPassword(password) {
		return nil, ErrWeakPassword
	}

	if existing, err := s.repo.GetByEmail(email); err == nil && existing != nil {
		return nil, ErrUserAlreadyExists
	}

	user := &User{
		ID:      id.NewUUIDv7(),
		Email:   email,
		Profile: profile,
		Active:  true,
	}
	if err := s.repo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.AddCredentials(&Credentials{UserID: user.ID, PasswordHash: passwordHash}); err != nil {
		return nil, fmt.Errorf("failed to add credentials: %w", err)
	}

	role, err := s.roleRepo.GetByName(ctx, authz.DefaultRole)
	if err != nil {
		return nil, fmt.Errorf("failed to look up default role: %w", err)
	}
	assignment := &authz.Assignment{
		UserID:     user.ID,
		RoleID:     role.ID,
		AssignedAt: time.Now(),
		AssignedBy: user.ID, // self-registration
	}
	if err := s.assignmentRepo.Assign(ctx, assignment); err != nil {
		return nil, fmt.Errorf("failed to assign default role: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserCreated,
		ActorID:  user.ID,
		Resource: "user",
		Metadata: map[string]any{
			audit.AttrEmail:    user.Email,
			audit.AttrRoleName: role.Name,
		},
	})

	return user, nil
}

// Authenticate verifies credentials and returns the identity. Unknown email
// and wrong password both return ErrInvalidCredentials so callers cannot
// enumerate accounts. A disabled account is reported as ErrAccountDisabled.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.GetByEmail(email)
	if err != nil {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			Resource: email,
			Metadata: map[string]any{audit.AttrReason: "user_not_found"},
		})
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			ActorID:  user.ID,
			Resource: "login",
			Metadata: map[string]any{audit.AttrReason: "account_disabled"},
		})
		return nil, ErrAccountDisabled
	}

	if user.LockedUntil != nil && user.LockedUntil.After(time.Now()) {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			ActorID:  user.ID,
			Resource: "login",
			Metadata: map[string]any{audit.AttrReason: "locked_out"},
		})
		return nil, ErrAccountLocked
	}

	credentials, err := s.repo.GetCredentials(user.ID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	valid, err := s.hasher.Verify(password, credentials.PasswordHash)
	if err != nil || !valid {
		newAttempts := user.FailedLoginAttempts + 1
		var newLockedUntil *time.Time

		if newAttempts >= s.lockoutMaxAttempts {
			until := time.Now().Add(s.lockoutDuration)
			newLockedUntil = &until
			s.auditLogger.Log(ctx, audit.Event{
				Type:     audit.TypeUserLocked,
				ActorID:  user.ID,
				Resource: "login",
				Metadata: map[string]any{audit.AttrAttempts: newAttempts},
			})
		}

		_ = s.repo.UpdateLockout(user.ID, newAttempts, newLockedUntil)

		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			ActorID:  user.ID,
			Resource: "login",
			Metadata: map[string]any{
				audit.AttrReason:   "invalid_password",
				audit.AttrAttempts: newAttempts,
			},
		})

		return nil, ErrInvalidCredentials
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		_ = s.repo.UpdateLockout(user.ID, 0, nil)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLoginSuccess,
		ActorID:  user.ID,
		Resource: "login",
	})

	return user, nil
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.GetByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Roles returns the roles the user currently holds.
func (s *Service) Roles(ctx context.Context, userID string) ([]*authz.Role, error) {
	return s.assignmentRepo.ListRolesForUser(ctx, userID)
}

// AssignRole grants a role to a user. Consumed by the administration
// surface; assigning an already-held role is a no-op at the store level.
func (s *Service) AssignRole(ctx context.Context, actorID, userID, roleName string) error {
	role, err := s.roleRepo.GetByName(ctx, roleName)
	if err != nil {
		return err
	}
	if _, err := s.repo.GetByID(userID); err != nil {
		return ErrUserNotFound
	}

	assignment := &authz.Assignment{
		UserID:     userID,
		RoleID:     role.ID,
		AssignedAt: time.Now(),
		AssignedBy: actorID,
	}
	if err := s.assignmentRepo.Assign(ctx, assignment); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleAssigned,
		ActorID:  actorID,
		Resource: "user:" + userID,
		Metadata: map[string]any{audit.AttrRoleName: roleName},
	})
	return nil
}

// RevokeRole removes a role from a user.
func (s *Service) RevokeRole(ctx context.Context, actorID, userID, roleName string) error {
	role, err := s.roleRepo.GetByName(ctx, roleName)
	if err != nil {
		return err
	}
	if err := s.assignmentRepo.Revoke(ctx, userID, role.ID); err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleRevoked,
		ActorID:  actorID,
		Resource: "user:" + userID,
		Metadata: map[string]any{audit.AttrRoleName: roleName},
	})
	return nil
}

// SetActive enables or disables an account. Disabled accounts fail login
// with ErrAccountDisabled; already-issued tokens keep their validity window
// but role and permission checks still run live.
func (s *Service) SetActive(ctx context.Context, actorID, userID string, active bool) error {
	if _, err := s.repo.GetByID(userID); err != nil {
		return ErrUserNotFound
	}
	if err := s.repo.SetActive(userID, active); err != nil {
		return err
	}

	eventType := audit.TypeUserEnabled
	if !active {
		eventType = audit.TypeUserDisabled
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     eventType,
		ActorID:  actorID,
		Resource: "user:" + userID,
	})
	return nil
}

// Helper functions
func isValidEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && len(email) < 255
}

func isStrongPassword(password string) bool {
	return len(password) >= 8
}
