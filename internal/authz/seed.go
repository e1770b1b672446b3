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

// Seeder applies the baseline role/grant matrix at startup. The routine is
// idempotent and re-appliable: existing roles and grant rows are left
// untouched, so administrators' runtime edits survive restarts.
type Seeder struct {
	roleRepo    RoleRepository
	grantRepo   GrantRepository
	auditLogger audit.Logger
}

// NewSeeder creates a new baseline seeder.
func NewSeeder(roleRepo RoleRepository, grantRepo GrantRepository, auditLogger audit.Logger) *Seeder {
	return &Seeder{
		roleRepo:    roleRepo,
		grantRepo:   grantRepo,
		auditLogger: auditLogger,
	}
}

type seedRole struct {
	name        string
	description string
	baseline    []Permission
}

var seedRoles = []seedRole{
	{RoleAdmin, "System administrator", adminBaseline},
	{RoleLibrarian, "Librarian", librarianBaseline},
	{RoleTeacher, "Teacher", teacherBaseline},
	{RoleStudent, "Student", studentBaseline},
}

// Seed upserts the four baseline roles and their starting grants. Missing
// roles are created; missing grant rows are added as granted=true; rows an
// administrator already toggled or removed stay as they are.
func (s *Seeder) Seed(ctx context.Context) error {
	var created int

	for _, sr := range seedRoles {
		role, err := s.roleRepo.GetByName(ctx, sr.name)
		if errors.Is(err, ErrRoleNotFound) {
			role = &Role{
				ID:          id.NewUUIDv7(),
				Name:        sr.name,
				Description: sr.description,
				CreatedAt:   time.Now(),
			}
			if err := s.roleRepo.Create(ctx, role); err != nil {
				// Racing seeders: whoever lost the insert re-reads the row.
				if !errors.Is(err, ErrRoleAlreadyExists) {
					return fmt.Errorf("failed to create role %s: %w", sr.name, err)
				}
				if role, err = s.roleRepo.GetByName(ctx, sr.name); err != nil {
					return fmt.Errorf("failed to re-read role %s: %w", sr.name, err)
				}
			}
		} else if err != nil {
			return fmt.Errorf("failed to look up role %s: %w", sr.name, err)
		}

		for _, p := range sr.baseline {
			grant := &Grant{
				ID:        id.NewUUIDv7(),
				RoleID:    role.ID,
				Resource:  p.Resource,
				Action:    p.Action,
				Granted:   true,
				CreatedAt: time.Now(),
			}
			err := s.grantRepo.Add(ctx, grant)
			if errors.Is(err, ErrDuplicateGrant) {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to seed grant %s for role %s: %w", p, sr.name, err)
			}
			created++
		}
	}

	if created > 0 {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeSeedApplied,
			ActorID:  audit.ActorSystemSeed,
			Metadata: map[string]any{"grants_created": created},
		})
	}
	return nil
}
