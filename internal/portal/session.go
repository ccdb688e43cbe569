// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package portal

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/avelarcompany/gateway/internal/access"
	"github.com/avelarcompany/gateway/internal/audit"
	"github.com/avelarcompany/gateway/internal/identity"
	"github.com/avelarcompany/gateway/internal/platform/ctxutil"
	requestutil "github.com/avelarcompany/gateway/internal/platform/request"
	"github.com/avelarcompany/gateway/internal/platform/respond"
	"github.com/avelarcompany/gateway/internal/platform/validate"
	"github.com/avelarcompany/gateway/pkg/pagination"
)

// Headers forwarded to the upstream module after a successful guard check.
const (
	HeaderUserID = "X-Avelar-User-Id"
	HeaderRole   = "X-Avelar-Role"
	HeaderClient = "X-Avelar-Client-Type"
)

type sessionResponse struct {
	User             identity.User `json:"user"`
	Grant            []string      `json:"grant"`
	CanSwitchCompany bool          `json:"can_switch_company"`
}

type modulesResponse struct {
	Modules []access.Module `json:"modules"`
	Support string          `json:"support,omitempty"`
}

// current handles GET /api/v1/session.
func (handler *Handler) current(writer http.ResponseWriter, request *http.Request) {
	session, ok := handler.required(writer, request)
	if !ok {
		return
	}

	respond.OK(writer, sessionResponse{
		User:             session.User,
		Grant:            access.Grant(&session.User, handler.router.Catalog()),
		CanSwitchCompany: identity.CanSwitchCompany(&session.User),
	})
}

// updateProfile handles PATCH /api/v1/session/profile.
func (handler *Handler) updateProfile(writer http.ResponseWriter, request *http.Request) {
	session, ok := handler.required(writer, request)
	if !ok {
		return
	}

	// ── 1. Payload Extraction ──
	var input identity.ProfileUpdate
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 2. Validation ──
	validator := &validate.Validator{}
	if input.FullName != nil {
		validator.Custom("full_name", strings.TrimSpace(*input.FullName) == "", "must not be blank").
			MaxLen("full_name", *input.FullName, 200)
	}
	if input.WhatsApp != nil {
		validator.Phone("whatsapp", *input.WhatsApp)
	}
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 3. Remote Update ──
	context := request.Context()

	edited, err := handler.identity.UpdateProfile(context, session, input)
	if err != nil {
		handler.trail.Record(context, audit.New(audit.EventProfileUpdated, audit.OutcomeFailure).
			Of(session).Because(errorCode(err)))
		respond.Error(writer, request, err)
		return
	}

	// ── 4. Session Rewrite ──
	if err := handler.store.Save(writer, request, edited); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.trail.Record(context, audit.New(audit.EventProfileUpdated, audit.OutcomeSuccess).Of(edited))
	respond.OK(writer, edited.User)
}

// modules handles GET /api/v1/modules. The list is ordered like the catalog.
func (handler *Handler) modules(writer http.ResponseWriter, request *http.Request) {
	session, ok := handler.required(writer, request)
	if !ok {
		return
	}

	catalog := handler.router.Catalog()
	response := modulesResponse{Modules: catalog.Modules(access.Grant(&session.User, catalog))}
	if len(response.Modules) == 0 {
		response.Support = handler.router.Support()
	}

	respond.OK(writer, response)
}

// open handles GET /api/v1/modules/{module}/open.
//
// Browsers get a 303 to the module. JSON clients get the target itself.
func (handler *Handler) open(writer http.ResponseWriter, request *http.Request) {
	session, ok := handler.required(writer, request)
	if !ok {
		return
	}

	target, err := handler.router.Open(request.Context(), session, requestutil.Param(request, "module"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.recordHandoff(request, session, target)

	if access.WantsJSON(request) {
		respond.OK(writer, target)
		return
	}
	http.Redirect(writer, request, target.URL, http.StatusSeeOther)
}

// check handles GET /api/v1/guard/{module} for reverse-proxy forward auth.
//
// An allowed request answers 204 with the caller identity in headers. A denied
// one answers like [access.Guard.Deny], so the proxy can relay the redirect.
func (handler *Handler) check(writer http.ResponseWriter, request *http.Request) {
	verdict := handler.guard.Check(request, requestutil.Param(request, "module"))
	if !verdict.Allowed() {
		handler.guard.Deny(writer, request, verdict)
		return
	}

	user := verdict.Session.User
	writer.Header().Set(HeaderUserID, user.ID)
	writer.Header().Set(HeaderRole, string(user.Role))
	if user.ClientType != "" {
		writer.Header().Set(HeaderClient, string(user.ClientType))
	}
	respond.NoContent(writer)
}

// listAudit handles GET /api/v1/audit?event=&user_id=&page=&limit=.
func (handler *Handler) listAudit(writer http.ResponseWriter, request *http.Request) {
	viewer, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	params := pagination.FromRequest(request)
	query := request.URL.Query()

	filter := audit.Filter{
		Event:  audit.Event(query.Get("event")),
		UserID: query.Get("user_id"),
	}

	entries, total, err := handler.trail.List(request.Context(), filter, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	ctxutil.GetLogger(request.Context()).InfoContext(request.Context(), "audit_listed",
		slog.String("viewer_id", viewer.UserID),
		slog.String("event", string(filter.Event)),
		slog.Int("total", total),
	)

	respond.Paginated(writer, entries, pagination.NewMeta(params.Page, params.Limit, total))
}
