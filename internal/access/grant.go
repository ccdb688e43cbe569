// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access

import (
	"github.com/avelarcompany/gateway/internal/identity"
	"github.com/avelarcompany/gateway/pkg/document"
	"github.com/avelarcompany/gateway/pkg/slice"
)

// # Access Grant

/*
Grant computes the ordered set of module ids a user may open.

Description: A super_admin receives every catalog id. Anybody else receives
enabled_modules intersected with the catalog, narrowed by scope. Unknown ids
in enabled_modules are dropped. The result follows catalog order and is
never nil.

Parameters:
  - user: *identity.User
  - catalog: *Catalog

Returns:
  - []string: Granted module ids
*/
func Grant(user *identity.User, catalog *Catalog) []string {
	if user == nil {
		return []string{}
	}
	if user.Role.IsSuperAdmin() {
		return catalog.IDs()
	}

	enabled := make(map[string]struct{}, len(user.EnabledModules))
	for _, id := range user.EnabledModules {
		enabled[id] = struct{}{}
	}

	granted := slice.Filter(catalog.modules, func(module Module) bool {
		_, ok := enabled[module.ID]
		return ok && scopeAllows(user, module.Scope)
	})

	ids := slice.Map(granted, func(module Module) string { return module.ID })
	if ids == nil {
		return []string{}
	}
	return ids
}

// Granted reports whether moduleID is part of the user's grant.
func Granted(user *identity.User, catalog *Catalog, moduleID string) bool {
	for _, id := range Grant(user, catalog) {
		if id == moduleID {
			return true
		}
	}
	return false
}

// scopeAllows applies the login-kind rule of a scope.
//
// An account admin who logged in with a CPF sees individual modules; the
// company context switch, not the grant, exposes company modules.
func scopeAllows(user *identity.User, scope Scope) bool {
	switch scope {
	case ScopeCompany:
		return user.HasAccount() && document.IsCompany(user.Document)
	case ScopeIndividual:
		return !document.IsCompany(user.Document)
	default:
		return true
	}
}
