// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/avelarcompany/gateway/internal/identity"
	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/internal/platform/constants"
	"github.com/avelarcompany/gateway/internal/platform/ctxutil"
	"github.com/avelarcompany/gateway/internal/platform/metrics"
	"github.com/avelarcompany/gateway/internal/platform/respond"
	"github.com/avelarcompany/gateway/internal/platform/sec"
)

// # Module Guard

// SessionLoader returns the session of a request, or nil when there is none.
type SessionLoader interface {
	Load(request *http.Request) (*identity.Session, error)
}

// Guard protects the routes of a module application.
type Guard struct {
	loader    SessionLoader
	catalog   *Catalog
	portalURL string
	metrics   *metrics.Metrics
}

// NewGuard creates a [Guard] that sends rejected browsers to portalURL.
func NewGuard(loader SessionLoader, catalog *Catalog, portalURL string, m *metrics.Metrics) *Guard {
	return &Guard{
		loader:    loader,
		catalog:   catalog,
		portalURL: portalURL,
		metrics:   m,
	}
}

// Verdict is the outcome of one guard check. A nil Err means access is allowed.
type Verdict struct {
	Session  *identity.Session
	Code     string
	Redirect string
	Err      error
}

// Allowed reports whether the request may proceed.
func (verdict Verdict) Allowed() bool {
	return verdict.Err == nil
}

/*
Check evaluates one request against a module.

Description: Checks run in order and stop at the first failure:
 1. A session exists; otherwise login with a return URL.
 2. The token is accepted; otherwise login with session_expired.
 3. The module is in the grant (super_admin always is); otherwise module_not_enabled.
 4. The client type is allowed by the module (super_admin bypasses); otherwise access_denied.
 5. The role is allowed; otherwise insufficient_permissions.

Parameters:
  - request: *http.Request
  - moduleID: string
  - roles: []sec.Role (optional; defaults to the catalog roles of the module)

Returns:
  - Verdict: The outcome
*/
func (guard *Guard) Check(request *http.Request, moduleID string, roles ...sec.Role) Verdict {
	verdict := guard.check(request, moduleID, roles)
	guard.metrics.Guard(moduleID, verdictLabel(verdict))
	return verdict
}

func (guard *Guard) check(request *http.Request, moduleID string, roles []sec.Role) Verdict {
	module, ok := guard.catalog.Get(moduleID)
	if !ok {
		return Verdict{Err: apperr.NotFound("Module")}
	}

	returnURL := requestURL(request)

	session, err := guard.loader.Load(request)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeSessionExpired) {
			return Verdict{
				Code:     constants.CodeSessionExpired,
				Redirect: LoginURL(guard.portalURL, returnURL, constants.CodeSessionExpired),
				Err:      err,
			}
		}
		return Verdict{Err: err}
	}
	if session == nil {
		return Verdict{
			Redirect: LoginURL(guard.portalURL, returnURL, ""),
			Err:      apperr.Unauthorized("Authentication required"),
		}
	}

	user := &session.User
	superAdmin := user.Role.IsSuperAdmin()

	if !Granted(user, guard.catalog, module.ID) {
		return guard.reject(session, constants.CodeModuleNotEnabled, apperr.ModuleNotEnabled(module.ID))
	}

	if !superAdmin && user.ClientType != "" && len(module.ClientTypes) > 0 &&
		!slices.Contains(module.ClientTypes, user.ClientType) {
		sentence, _ := Notice(constants.CodeAccessDenied)
		return guard.reject(session, constants.CodeAccessDenied, apperr.AccessDenied(sentence))
	}

	if len(roles) == 0 {
		roles = module.Roles
	}
	if !superAdmin && len(roles) > 0 && !slices.Contains(roles, user.Role) {
		sentence, _ := Notice(constants.CodeInsufficientPermission)
		return guard.reject(session, constants.CodeInsufficientPermission, apperr.Forbidden(sentence))
	}

	return Verdict{Session: session}
}

func (guard *Guard) reject(session *identity.Session, code string, err error) Verdict {
	return Verdict{
		Session:  session,
		Code:     code,
		Redirect: PortalURL(guard.portalURL, code),
		Err:      err,
	}
}

/*
Protect returns middleware that runs [Guard.Check] before every request.

Description: Browsers are redirected to the portal. Requests that accept JSON
receive the error envelope instead. Allowed requests carry the principal in
their context.
*/
func (guard *Guard) Protect(moduleID string, roles ...sec.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			verdict := guard.Check(request, moduleID, roles...)

			if verdict.Allowed() {
				context := ctxutil.WithPrincipal(request.Context(), verdict.Session.Principal())
				next.ServeHTTP(writer, request.WithContext(context))
				return
			}

			guard.Deny(writer, request, verdict)
		})
	}
}

// Deny writes the rejection of a verdict.
func (guard *Guard) Deny(writer http.ResponseWriter, request *http.Request, verdict Verdict) {
	context := request.Context()
	ctxutil.GetLogger(context).InfoContext(context, "module_guard_rejected",
		slog.String("code", verdictLabel(verdict)),
		slog.String("path", request.URL.Path),
	)

	if verdict.Redirect == "" || WantsJSON(request) {
		if verdict.Redirect != "" {
			writer.Header().Set("Location", verdict.Redirect)
		}
		respond.Error(writer, request, verdict.Err)
		return
	}

	http.Redirect(writer, request, verdict.Redirect, http.StatusFound)
}

// # Helpers

// WantsJSON reports whether the client asked for a JSON answer instead of a page.
func WantsJSON(request *http.Request) bool {
	return strings.Contains(request.Header.Get("Accept"), "application/json") ||
		request.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

func verdictLabel(verdict Verdict) string {
	switch {
	case verdict.Err == nil:
		return ""
	case verdict.Code != "":
		return verdict.Code
	case apperr.HasCode(verdict.Err, apperr.CodeUnauthorized):
		return "login_required"
	default:
		return "error"
	}
}

// requestURL rebuilds the absolute URL the browser asked for, honoring the
// forwarding headers of a reverse proxy.
func requestURL(request *http.Request) string {
	scheme := request.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
		if request.TLS != nil {
			scheme = "https"
		}
	}

	host := request.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = request.Host
	}

	uri := request.Header.Get("X-Forwarded-Uri")
	if uri == "" {
		uri = request.URL.RequestURI()
	}

	return scheme + "://" + host + uri
}
