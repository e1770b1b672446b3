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
	"errors"
	"time"
)

// Domain errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrAccountLocked      = errors.New("account is locked")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password does not meet security requirements")
)

// User represents an authenticated principal. The access-control core
// references identities by ID; it never owns their lifecycle beyond
// registration and login.
type User struct {
	ID                  string
	Email               string
	Profile             Profile
	Active              bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Profile represents user display attributes
type Profile struct {
	GivenName  string
	FamilyName string
	FullName   string
}

// Credentials represents user authentication credentials
type Credentials struct {
	UserID       string
	PasswordHash string
	UpdatedAt    time.Time
}

// UserRepository defines the interface for user persistence
type UserRepository interface {
	// Create creates a new user identity
	Create(user *User) error

	// AddCredentials adds credentials for a user
	AddCredentials(credentials *Credentials) error

	// GetByID retrieves a user by ID
	GetByID(id string) (*User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(email string) (*User, error)

	// Update updates user information
	Update(user *User) error

	// UpdateLockout updates user lockout status
	UpdateLockout(userID string, failedAttempts int, lockedUntil *time.Time) error

	// SetActive flips the active flag
	SetActive(userID string, active bool) error

	// GetCredentials retrieves user credentials
	GetCredentials(userID string) (*Credentials, error)

	// UpdatePassword updates user password
	UpdatePassword(userID string, passwordHash string) error
}
