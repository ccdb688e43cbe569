// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package access decides which modules an identity may open and how to get there.

It holds the module catalog, the access grant calculator, the module router
used by the portal after every login, and the guard that module applications
mount in front of their own routes.

Flow:

	Session -> Grant(user) -> Router.Decide -> no_access | redirect | chooser
*/
package access

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/avelarcompany/gateway/internal/identity"
	"github.com/avelarcompany/gateway/internal/platform/sec"
	"github.com/avelarcompany/gateway/pkg/slice"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// # Domain Types

// Scope restricts a module to one kind of login.
type Scope string

const (
	// ScopeAny modules depend on enabled_modules only.
	ScopeAny Scope = "any"

	// ScopeCompany modules require an account tied to a CNPJ login.
	ScopeCompany Scope = "company"

	// ScopeIndividual modules require a CPF login.
	ScopeIndividual Scope = "individual"
)

// Module is one entry of the catalog.
type Module struct {
	ID          string                `yaml:"id"           json:"id"`
	Name        string                `yaml:"name"         json:"name"`
	URL         string                `yaml:"url"          json:"url"`
	Icon        string                `yaml:"icon"         json:"icon,omitempty"`
	Description string                `yaml:"description"  json:"description,omitempty"`
	Color       string                `yaml:"color"        json:"color,omitempty"`
	Scope       Scope                 `yaml:"scope"        json:"scope"`
	ClientTypes []identity.ClientType `yaml:"client_types" json:"client_types,omitempty"`
	Roles       []sec.Role            `yaml:"roles"        json:"roles,omitempty"`
}

// Relative reports whether the module is a route of the portal itself.
func (module Module) Relative() bool {
	return strings.HasPrefix(module.URL, "/")
}

// Catalog is the ordered, immutable set of known modules.
type Catalog struct {
	modules []Module
	index   map[string]int
}

type catalogFile struct {
	Modules []Module `yaml:"modules"`
}

// # Loading

/*
ParseCatalog builds a [Catalog] from its YAML form.

Description: Entry order is preserved. A missing scope means [ScopeAny].

Parameters:
  - data: []byte

Returns:
  - *Catalog: The parsed catalog
  - error: Syntax errors, empty catalogs, duplicate ids or unknown scopes and roles
*/
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog_parse_failed: %w", err)
	}
	if len(file.Modules) == 0 {
		return nil, errors.New("catalog_empty")
	}

	catalog := &Catalog{
		modules: make([]Module, 0, len(file.Modules)),
		index:   make(map[string]int, len(file.Modules)),
	}

	for position, module := range file.Modules {
		if module.ID == "" || module.URL == "" {
			return nil, fmt.Errorf("catalog_entry_incomplete: position %d", position)
		}
		if _, exists := catalog.index[module.ID]; exists {
			return nil, fmt.Errorf("catalog_duplicate_module: %s", module.ID)
		}

		switch module.Scope {
		case "":
			module.Scope = ScopeAny
		case ScopeAny, ScopeCompany, ScopeIndividual:
		default:
			return nil, fmt.Errorf("catalog_unknown_scope: %s: %q", module.ID, module.Scope)
		}

		for _, role := range module.Roles {
			if !role.Valid() {
				return nil, fmt.Errorf("catalog_unknown_role: %s: %q", module.ID, role)
			}
		}

		if module.Name == "" {
			module.Name = module.ID
		}

		catalog.index[module.ID] = len(catalog.modules)
		catalog.modules = append(catalog.modules, module)
	}

	return catalog, nil
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() *Catalog {
	catalog, err := ParseCatalog(embeddedCatalog)
	if err != nil {
		panic(fmt.Sprintf("access: embedded catalog is invalid: %v", err))
	}
	return catalog
}

// LoadCatalog reads a catalog file, or returns [DefaultCatalog] when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog_read_failed: %w", err)
	}
	return ParseCatalog(data)
}

// # Queries

// IDs returns every module id in catalog order.
func (catalog *Catalog) IDs() []string {
	return slice.Map(catalog.modules, func(module Module) string { return module.ID })
}

// All returns a copy of every module in catalog order.
func (catalog *Catalog) All() []Module {
	return append([]Module(nil), catalog.modules...)
}

// Get returns the module with the given id.
func (catalog *Catalog) Get(id string) (Module, bool) {
	position, ok := catalog.index[id]
	if !ok {
		return Module{}, false
	}
	return catalog.modules[position], true
}

// Contains reports whether id is a known module.
func (catalog *Catalog) Contains(id string) bool {
	_, ok := catalog.index[id]
	return ok
}

// Modules resolves ids to their catalog entries, skipping unknown ids.
func (catalog *Catalog) Modules(ids []string) []Module {
	known := slice.Filter(ids, catalog.Contains)
	return slice.Map(known, func(id string) Module {
		module, _ := catalog.Get(id)
		return module
	})
}

// Len returns the number of modules.
func (catalog *Catalog) Len() int {
	return len(catalog.modules)
}
