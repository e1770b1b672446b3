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

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openshelf/openshelf/internal/authz"
	"github.com/openshelf/openshelf/internal/identity"
	"github.com/openshelf/openshelf/internal/observability/logger"
)

type roleGrantsResponse struct {
	RoleID      string          `json:"role_id"`
	RoleName    string          `json:"role_name"`
	Description string          `json:"description"`
	UserCount   int             `json:"user_count"`
	Grants      []grantResponse `json:"grants"`
}

type grantResponse struct {
	ID       string `json:"id"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Granted  bool   `json:"granted"`
}

func toRoleGrantsResponse(rg *authz.RoleGrants) roleGrantsResponse {
	grants := make([]grantResponse, 0, len(rg.Grants))
	for _, g := range rg.Grants {
		grants = append(grants, grantResponse{
			ID:       g.ID,
			Resource: g.Resource,
			Action:   g.Action,
			Granted:  g.Granted,
		})
	}
	return roleGrantsResponse{
		RoleID:      rg.Role.ID,
		RoleName:    rg.Role.Name,
		Description: rg.Role.Description,
		UserCount:   rg.UserCount,
		Grants:      grants,
	}
}

// ListAllRolePermissions returns every role with its grants, including
// explicitly revoked ones so administrators see the full picture.
func (h *Handler) ListAllRolePermissions(w http.ResponseWriter, r *http.Request) {
	all, err := h.admin.ListAllGrants(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list role permissions", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list role permissions")
		return
	}

	out := make([]roleGrantsResponse, 0, len(all))
	for _, rg := range all {
		out = append(out, toRoleGrantsResponse(rg))
	}

	respondJSON(w, http.StatusOK, out)
}

// ListRolePermissions returns one role with its grants
func (h *Handler) ListRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")

	rg, err := h.admin.ListRoleGrants(r.Context(), roleID)
	if err != nil {
		if errors.Is(err, authz.ErrRoleNotFound) {
			respondError(w, http.StatusNotFound, "role not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to list role permissions", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list role permissions")
		return
	}

	respondJSON(w, http.StatusOK, toRoleGrantsResponse(rg))
}

// AddGrantRequest represents a new permission grant
type AddGrantRequest struct {
	RoleID   string `json:"role_id"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Granted  bool   `json:"granted"`
}

// AddRolePermission creates a new grant row for a role
func (h *Handler) AddRolePermission(w http.ResponseWriter, r *http.Request) {
	var req AddGrantRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	grant, err := h.admin.AddGrant(r.Context(), GetUserID(r.Context()), req.RoleID, req.Resource, req.Action, req.Granted)
	if err != nil {
		switch {
		case errors.Is(err, authz.ErrUnknownCapability):
			respondError(w, http.StatusBadRequest, "unknown resource or action")
		case errors.Is(err, authz.ErrRoleNotFound):
			respondError(w, http.StatusNotFound, "role not found")
		case errors.Is(err, authz.ErrDuplicateGrant):
			respondError(w, http.StatusConflict, "grant already exists")
		default:
			slog.ErrorContext(r.Context(), "failed to add grant", logger.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to add grant")
		}
		return
	}

	respondJSON(w, http.StatusCreated, grantResponse{
		ID:       grant.ID,
		Resource: grant.Resource,
		Action:   grant.Action,
		Granted:  grant.Granted,
	})
}

// SetGrantRequest toggles a single grant
type SetGrantRequest struct {
	Granted bool `json:"granted"`
}

// SetRolePermission flips the granted flag on an existing grant. Revoking
// here takes effect on the next authorization check; outstanding tokens
// that embedded the old snapshot are not recalled.
func (h *Handler) SetRolePermission(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	resource := chi.URLParam(r, "resource")
	action := chi.URLParam(r, "action")

	var req SetGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.admin.SetGranted(r.Context(), GetUserID(r.Context()), roleID, resource, action, req.Granted)
	if err != nil {
		if errors.Is(err, authz.ErrGrantNotFound) {
			respondError(w, http.StatusNotFound, "grant not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to update grant", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update grant")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "grant updated",
	})
}

// RemoveRolePermission deletes a grant row entirely
func (h *Handler) RemoveRolePermission(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	resource := chi.URLParam(r, "resource")
	action := chi.URLParam(r, "action")

	err := h.admin.RemoveGrant(r.Context(), GetUserID(r.Context()), roleID, resource, action)
	if err != nil {
		if errors.Is(err, authz.ErrGrantNotFound) {
			respondError(w, http.StatusNotFound, "grant not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to remove grant", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to remove grant")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "grant removed",
	})
}

// BulkUpdateRequest represents a batch of grant toggles for one role
type BulkUpdateRequest struct {
	Updates []authz.GrantUpdate `json:"updates"`
}

// BulkUpdateRolePermissions applies a batch of grant toggles. Entries whose
// grant row does not exist are skipped rather than failing the batch; the
// response reports how many were requested and how many applied.
func (h *Handler) BulkUpdateRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")

	var req BulkUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.admin.BulkUpdate(r.Context(), GetUserID(r.Context()), roleID, req.Updates)
	if err != nil {
		if errors.Is(err, authz.ErrRoleNotFound) {
			respondError(w, http.StatusNotFound, "role not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to bulk update grants", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update grants")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ListAvailablePermissions returns the configurable capability matrix
func (h *Handler) ListAvailablePermissions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.admin.ListVocabulary())
}

// ListUserRoles returns the roles held by a user
func (h *Handler) ListUserRoles(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	roles, err := h.identityService.Roles(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list user roles", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list user roles")
		return
	}

	out := make([]map[string]string, 0, len(roles))
	for _, role := range roles {
		out = append(out, map[string]string{
			"role_id": role.ID,
			"name":    role.Name,
		})
	}

	respondJSON(w, http.StatusOK, out)
}

// AssignRoleRequest represents a role assignment
type AssignRoleRequest struct {
	Role string `json:"role"`
}

// AssignUserRole grants a role to a user
func (h *Handler) AssignUserRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req AssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.identityService.AssignRole(r.Context(), GetUserID(r.Context()), userID, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, authz.ErrRoleNotFound):
			respondError(w, http.StatusNotFound, "role not found")
		case errors.Is(err, identity.ErrUserNotFound):
			respondError(w, http.StatusNotFound, "user not found")
		default:
			slog.ErrorContext(r.Context(), "failed to assign role", logger.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to assign role")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "role assigned",
	})
}

// RevokeUserRole removes a role from a user
func (h *Handler) RevokeUserRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	roleName := chi.URLParam(r, "role")

	err := h.identityService.RevokeRole(r.Context(), GetUserID(r.Context()), userID, roleName)
	if err != nil {
		if errors.Is(err, authz.ErrRoleNotFound) {
			respondError(w, http.StatusNotFound, "role not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to revoke role", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to revoke role")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "role revoked",
	})
}

// SetActiveRequest flips the account active flag
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// SetUserActive enables or disables an account. A disabled account cannot
// log in; tokens already issued keep working until they expire.
func (h *Handler) SetUserActive(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.identityService.SetActive(r.Context(), GetUserID(r.Context()), userID, req.Active)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to update account", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update account")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "account updated",
	})
}
