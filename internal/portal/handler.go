// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package portal contains the HTTP delivery layer of the portal gateway.
//
// # Architecture
//
// Handlers drive the protocol end to end:
//
//	login -> (verification gate) -> session save -> grant -> module router
//
// They parse and validate input, call the identity service, write the session
// store, and record every transition in the audit trail. They hold no protocol
// rules of their own.
package portal

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avelarcompany/gateway/internal/access"
	"github.com/avelarcompany/gateway/internal/audit"
	"github.com/avelarcompany/gateway/internal/identity"
	"github.com/avelarcompany/gateway/internal/platform/middleware"
	"github.com/avelarcompany/gateway/internal/platform/respond"
	"github.com/avelarcompany/gateway/internal/platform/sec"
	"github.com/avelarcompany/gateway/internal/session"
)

// Dependencies groups the collaborators of a [Handler].
type Dependencies struct {
	Identity  *identity.Service
	Store     *session.Store
	Router    *access.Router
	Guard     *access.Guard
	Trail     *audit.Trail
	PortalURL string
}

// Handler implements the portal HTTP endpoints.
type Handler struct {
	identity  *identity.Service
	store     *session.Store
	router    *access.Router
	guard     *access.Guard
	trail     *audit.Trail
	portalURL string
}

// NewHandler constructs a [Handler].
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		identity:  deps.Identity,
		store:     deps.Store,
		router:    deps.Router,
		guard:     deps.Guard,
		trail:     deps.Trail,
		portalURL: deps.PortalURL,
	}
}

// Routes returns a [chi.Router] with every portal endpoint.
//
// # Endpoints
//   - POST  /auth/login             : Credential exchange, then routing
//   - POST  /auth/verify            : Submit the one-time code
//   - POST  /auth/resend            : Resend the one-time code
//   - POST  /auth/switch-company    : Reissue the session for the company account
//   - POST  /auth/logout            : Clear the session
//   - GET   /auth/notice            : Sentence of a login redirect code
//   - GET   /session                : Current session and grant
//   - PATCH /session/profile        : Edit displayed profile fields
//   - GET   /modules                : Chooser entries
//   - GET   /modules/{module}/open  : Redirect into a module
//   - GET   /guard/{module}         : Forward-auth check for reverse proxies
//   - GET   /audit                  : Audit trail (super_admin)
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Route("/auth", func(auth chi.Router) {
		auth.Post("/login", handler.login)
		auth.Post("/verify", handler.verify)
		auth.Post("/resend", handler.resend)
		auth.Post("/switch-company", handler.switchCompany)
		auth.Post("/logout", handler.logout)
		auth.Get("/notice", handler.notice)
	})

	router.Get("/session", handler.current)
	router.Patch("/session/profile", handler.updateProfile)

	router.Get("/modules", handler.modules)
	router.Get("/modules/{module}/open", handler.open)

	router.Get("/guard/{module}", handler.check)

	router.With(
		middleware.Authenticate(handler.store),
		middleware.RequireRole(sec.RoleSuperAdmin),
	).Get("/audit", handler.listAudit)

	return router
}

// required returns the session of the request or writes the error.
func (handler *Handler) required(writer http.ResponseWriter, request *http.Request) (*identity.Session, bool) {
	current, err := handler.store.Required(request)
	if err != nil {
		respond.Error(writer, request, err)
		return nil, false
	}
	return current, true
}
