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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/openshelf/openshelf/internal/audit"
	"github.com/openshelf/openshelf/internal/authz"
	"github.com/openshelf/openshelf/internal/observability/logger"
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// AuthMiddleware validates the bearer token and adds user_id and claims to
// context. The token only establishes identity; what the user may do is
// decided per-route by RequirePermission against the live store.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		raw, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			respondError(w, http.StatusUnauthorized, "malformed authorization header")
			return
		}

		claims, err := h.tokenIssuer.Parse(raw)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.Subject)
		ctx = context.WithValue(ctx, claimsKey, claims)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission guards a route behind a capability check. The check
// always consults the permission store through the gate; embedded token
// claims are never trusted here, so a revoked grant takes effect on the
// next request. Store failures produce 503, never a silent allow.
func (h *Handler) RequirePermission(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())

			err := h.gate.Authorize(r.Context(), userID, resource, action)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			switch {
			case errors.Is(err, authz.ErrNotAuthenticated):
				respondError(w, http.StatusUnauthorized, "not authenticated")
			case errors.Is(err, authz.ErrForbidden):
				h.auditLogger.Log(r.Context(), audit.Event{
					Type:      audit.TypeAccessDenied,
					ActorID:   userID,
					Resource:  resource + ":" + action,
					IPAddress: getIPAddress(r),
					UserAgent: r.UserAgent(),
					Metadata:  map[string]any{"path": r.URL.Path},
				})
				respondError(w, http.StatusForbidden, "permission denied")
			default:
				slog.ErrorContext(r.Context(), "authorization check failed",
					logger.Error(err),
					logger.Resource(resource),
					logger.Action(action),
				)
				respondError(w, http.StatusServiceUnavailable, "authorization unavailable")
			}
		})
	}
}
