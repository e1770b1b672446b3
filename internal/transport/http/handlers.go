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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/openshelf/openshelf/internal/audit"
	"github.com/openshelf/openshelf/internal/authz"
	"github.com/openshelf/openshelf/internal/identity"
	"github.com/openshelf/openshelf/internal/observability/logger"
	"github.com/openshelf/openshelf/internal/token"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	resolver        *authz.Resolver
	gate            *authz.Gate
	admin           *authz.Admin
	tokenIssuer     *token.Issuer
	auditLogger     audit.Logger

	// embedPermissions controls whether issued tokens carry the resolved
	// permission snapshot as advisory claims.
	embedPermissions bool
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identityService *identity.Service,
	resolver *authz.Resolver,
	gate *authz.Gate,
	admin *authz.Admin,
	tokenIssuer *token.Issuer,
	auditLogger audit.Logger,
	embedPermissions bool,
) *Handler {
	return &Handler{
		identityService:  identityService,
		resolver:         resolver,
		gate:             gate,
		admin:            admin,
		tokenIssuer:      tokenIssuer,
		auditLogger:      auditLogger,
		embedPermissions: embedPermissions,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Get("/auth/me", h.GetCurrentUser)
			r.Get("/auth/permissions", h.GetMyPermissions)

			// Permission administration
			r.Route("/admin/role-permissions", func(r chi.Router) {
				r.Use(h.RequirePermission(authz.ResourceSystem, authz.ActionConfigure))

				r.Get("/", h.ListAllRolePermissions)
				r.Post("/", h.AddRolePermission)
				r.Get("/available", h.ListAvailablePermissions)
				r.Route("/{roleID}", func(r chi.Router) {
					r.Get("/", h.ListRolePermissions)
					r.Put("/bulk", h.BulkUpdateRolePermissions)
					r.Put("/{resource}/{action}", h.SetRolePermission)
					r.Delete("/{resource}/{action}", h.RemoveRolePermission)
				})
			})

			// User administration
			r.Route("/admin/users/{userID}", func(r chi.Router) {
				r.Use(h.RequirePermission(authz.ResourceUser, authz.ActionEdit))

				r.Get("/roles", h.ListUserRoles)
				r.Post("/roles", h.AssignUserRole)
				r.Delete("/roles/{role}", h.RevokeUserRole)
				r.Put("/active", h.SetUserActive)
			})
		})
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "openshelf",
	})
}

// RegisterRequest represents registration data
type RegisterRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// Register handles user registration. New accounts start with the default
// role so they hold a usable baseline immediately.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile := identity.Profile{
		GivenName:  req.GivenName,
		FamilyName: req.FamilyName,
		FullName:   req.GivenName + " " + req.FamilyName,
	}

	user, err := h.identityService.Register(r.Context(), req.Email, req.Password, profile)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to register user",
			logger.Error(err),
			logger.Email(req.Email),
		)

		switch {
		case errors.Is(err, identity.ErrUserAlreadyExists):
			respondError(w, http.StatusConflict, "user already exists")
		case errors.Is(err, identity.ErrInvalidEmail):
			respondError(w, http.StatusBadRequest, "invalid email address")
		case errors.Is(err, identity.ErrWeakPassword):
			respondError(w, http.StatusBadRequest, "password does not meet security requirements")
		default:
			respondError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates the user and issues a bearer token carrying identity,
// role names, and optionally a snapshot of the resolved permission set.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.auditLogger.Log(r.Context(), audit.Event{
			Type:      audit.TypeLoginFailed,
			Resource:  req.Email,
			IPAddress: getIPAddress(r),
			UserAgent: r.UserAgent(),
			Metadata:  map[string]any{audit.AttrReason: loginFailureReason(err)},
		})

		switch {
		case errors.Is(err, identity.ErrAccountLocked):
			respondError(w, http.StatusUnauthorized, "account temporarily locked")
		case errors.Is(err, identity.ErrAccountDisabled):
			respondError(w, http.StatusUnauthorized, "account disabled")
		default:
			respondError(w, http.StatusUnauthorized, "invalid credentials")
		}
		return
	}

	roles, err := h.identityService.Roles(r.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load user roles", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	var perms authz.PermissionSet
	if h.embedPermissions {
		perms, err = h.resolver.ResolvedPermissions(r.Context(), user.ID)
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to resolve permissions", logger.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to issue token")
			return
		}
	}

	signed, err := h.tokenIssuer.Issue(user, roles, perms)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to sign token", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeTokenIssued,
		ActorID:   user.ID,
		Resource:  "token",
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
	})

	roleNames := make([]string, 0, len(roles))
	for _, role := range roles {
		roleNames = append(roleNames, role.Name)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"token":   signed,
		"user_id": user.ID,
		"email":   user.Email,
		"roles":   roleNames,
	})
}

func loginFailureReason(err error) string {
	switch {
	case errors.Is(err, identity.ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, identity.ErrAccountDisabled):
		return "account_disabled"
	default:
		return "invalid_credentials"
	}
}

// GetCurrentUser returns the current authenticated user identity
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	user, err := h.identityService.GetUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}

	roles, err := h.identityService.Roles(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load roles")
		return
	}

	roleNames := make([]string, 0, len(roles))
	for _, role := range roles {
		roleNames = append(roleNames, role.Name)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
		"profile": user.Profile,
		"active":  user.Active,
		"roles":   roleNames,
	})
}

// GetMyPermissions returns the caller's effective permission set, resolved
// live from the store rather than read back from the token.
func (h *Handler) GetMyPermissions(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())

	perms, err := h.resolver.ResolvedPermissions(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to resolve permissions", logger.Error(err))
		respondError(w, http.StatusServiceUnavailable, "authorization unavailable")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"permissions": perms.Strings(),
	})
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func getIPAddress(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
