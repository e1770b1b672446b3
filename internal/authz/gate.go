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
)

// Gate is the request-time enforcement point. Transport middleware calls
// Authorize before a protected handler runs; a non-nil return means the
// handler must never execute.
//
// The Gate consults the live Resolver on every call. Permission claims
// embedded in a bearer token are an advisory cache only and never feed the
// decision here: grants can change between token issuance and use, and
// tokens have no revocation short of expiry.
type Gate struct {
	resolver *Resolver
}

// NewGate creates a new authorization gate.
func NewGate(resolver *Resolver) *Gate {
	return &Gate{resolver: resolver}
}

// Authorize decides whether the identity may perform (resource, action).
//
//   - empty userID: ErrNotAuthenticated, the Resolver is not consulted
//   - resolver failure or context cancellation: ErrUnavailable wrapping the
//     cause (fail closed, never a silent grant)
//   - no matching grant: ErrForbidden
//   - nil: granted
func (g *Gate) Authorize(ctx context.Context, userID, resource, action string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}

	granted, err := g.resolver.HasPermission(ctx, userID, resource, action)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if !granted {
		return ErrForbidden
	}
	return nil
}

// IsDenial reports whether err is a definitive authorization outcome, as
// opposed to an infrastructure failure that callers may retry.
func IsDenial(err error) bool {
	return errors.Is(err, ErrForbidden) || errors.Is(err, ErrNotAuthenticated)
}
