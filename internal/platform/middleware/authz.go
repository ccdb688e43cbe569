// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"log/slog"
	"net/http"

	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/internal/platform/ctxutil"
	"github.com/avelarcompany/gateway/internal/platform/respond"
	"github.com/avelarcompany/gateway/internal/platform/sec"
)

// PrincipalResolver turns the request's session into a caller. The session
// store implements it.
type PrincipalResolver interface {
	// Resolve returns (nil, nil) for anonymous requests.
	Resolve(request *http.Request) (*sec.Principal, error)
}

// Authenticate puts the caller and a caller-tagged logger in the context.
// Anonymous requests pass through; resolution errors such as SESSION_EXPIRED
// are rendered.
func Authenticate(resolver PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			principal, err := resolver.Resolve(request)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			if principal == nil {
				next.ServeHTTP(writer, request)
				return
			}

			// Downstream log lines carry the caller; the token itself never appears.
			logger := ctxutil.GetLogger(request.Context()).With(
				slog.String("user_id", principal.UserID),
				slog.String("token_fp", principal.Fingerprint),
			)

			ctx := ctxutil.WithPrincipal(request.Context(), principal)
			ctx = ctxutil.WithLogger(ctx, logger)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireRole admits callers whose role is at least role. Anonymous callers
// get 401. Register it after [Authenticate].
func RequireRole(role sec.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			principal := ctxutil.GetPrincipal(request.Context())
			if principal == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
				return
			}
			if !principal.Role.AtLeast(role) {
				respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
