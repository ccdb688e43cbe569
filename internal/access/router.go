// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avelarcompany/gateway/internal/identity"
	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/internal/platform/ctxutil"
	"github.com/avelarcompany/gateway/internal/platform/metrics"
)

// # Contracts & Types

// Encoder builds the URL that carries a session to another origin.
type Encoder interface {
	Encode(context context.Context, base string, session *identity.Session, audience string) (string, error)
}

// Kind is the outcome of a routing decision.
type Kind string

const (
	KindNoAccess Kind = "no_access"
	KindRedirect Kind = "redirect"
	KindChooser  Kind = "chooser"
)

// Target is where the browser goes to open one module.
type Target struct {
	Module     string `json:"module"`
	URL        string `json:"url"`
	SameOrigin bool   `json:"same_origin"`
}

// Decision is what the portal does right after a session is established.
type Decision struct {
	Kind    Kind     `json:"kind"`
	Modules []Module `json:"modules"`
	Target  *Target  `json:"target,omitempty"`
	Support string   `json:"support,omitempty"`
}

// RouterOptions configures a [Router].
type RouterOptions struct {
	// AppModule is the id of the module served by this process. Opening it
	// never leaves the current origin.
	AppModule string

	// SupportContact is shown with the no-access outcome.
	SupportContact string
}

// Router turns an access grant into a navigation decision.
type Router struct {
	catalog *Catalog
	encoder Encoder
	metrics *metrics.Metrics
	options RouterOptions
}

// NewRouter creates a [Router].
func NewRouter(catalog *Catalog, encoder Encoder, m *metrics.Metrics, options RouterOptions) *Router {
	return &Router{
		catalog: catalog,
		encoder: encoder,
		metrics: m,
		options: options,
	}
}

// Catalog returns the catalog the router decides against.
func (router *Router) Catalog() *Catalog {
	return router.catalog
}

// Support returns the contact shown to users without any module.
func (router *Router) Support() string {
	return router.options.SupportContact
}

// # Decisions

/*
Decide picks the navigation that follows a login, a verification or a context switch.

Description:
  - Empty grant: no_access, with the support contact. Not an error.
  - One module: redirect straight to it.
  - Two or more, or any super_admin: chooser.

The session must already be saved, since a redirect embeds its token.

Parameters:
  - context: context.Context
  - session: *identity.Session

Returns:
  - *Decision: The decision
  - error: Encoder failures
*/
func (router *Router) Decide(context context.Context, session *identity.Session) (*Decision, error) {
	grant := Grant(&session.User, router.catalog)
	modules := router.catalog.Modules(grant)

	decision := &Decision{Modules: modules}

	switch {
	case len(grant) == 0:
		decision.Kind = KindNoAccess
		decision.Support = router.options.SupportContact

	case session.User.Role.IsSuperAdmin() || len(grant) > 1:
		decision.Kind = KindChooser

	default:
		target, err := router.target(context, session, modules[0])
		if err != nil {
			return nil, err
		}
		decision.Kind = KindRedirect
		decision.Target = target
	}

	router.metrics.Route(string(decision.Kind), len(grant))

	ctxutil.GetLogger(context).InfoContext(context, "module_route_decided",
		slog.String("kind", string(decision.Kind)),
		slog.Int("grant_size", len(grant)),
	)

	return decision, nil
}

/*
Open builds the target for one module picked from the chooser.

Parameters:
  - context: context.Context
  - session: *identity.Session
  - moduleID: string

Returns:
  - *Target: Where to navigate
  - error: NOT_FOUND for unknown modules, MODULE_NOT_ENABLED outside the grant
*/
func (router *Router) Open(context context.Context, session *identity.Session, moduleID string) (*Target, error) {
	module, ok := router.catalog.Get(moduleID)
	if !ok {
		return nil, apperr.NotFound("Module")
	}
	if !Granted(&session.User, router.catalog, moduleID) {
		return nil, apperr.ModuleNotEnabled(moduleID)
	}

	return router.target(context, session, module)
}

func (router *Router) target(context context.Context, session *identity.Session, module Module) (*Target, error) {
	if module.Relative() || module.ID == router.options.AppModule {
		return &Target{Module: module.ID, URL: module.URL, SameOrigin: true}, nil
	}

	url, err := router.encoder.Encode(context, module.URL, session, module.ID)
	if err != nil {
		return nil, fmt.Errorf("route_encode_failed: %w", err)
	}

	return &Target{Module: module.ID, URL: url}, nil
}
