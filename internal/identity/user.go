// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"encoding/json"

	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/internal/platform/sec"
	"github.com/avelarcompany/gateway/pkg/document"
)

// # Client Types

// ClientType is the commercial profile of an account.
type ClientType string

const (
	ClientCustomer    ClientType = "cliente"
	ClientRetailer    ClientType = "lojista"
	ClientDistributor ClientType = "distribuidor"
	ClientAdmin       ClientType = "admin"
)

// # Domain Models

// User is the identity snapshot returned by the identity endpoint.
//
// It is not the canonical record: it is replaced wholesale on every login,
// verification, context switch or hydration.
type User struct {
	ID       string   `json:"id"`
	FullName string   `json:"full_name"`
	Document string   `json:"cpf"`
	WhatsApp string   `json:"whatsapp,omitempty"`
	Role     sec.Role `json:"role"`

	// AccountID is set when the identity is tied to a company account.
	AccountID  string     `json:"account_id,omitempty"`
	ClientType ClientType `json:"client_type,omitempty"`

	EnabledModules   []string `json:"enabled_modules"`
	IsActive         bool     `json:"is_active"`
	WhatsAppVerified bool     `json:"whatsapp_verified"`
}

// UnmarshalJSON accepts the document under either "cpf" or "document" and
// normalizes it to digits.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var wire struct {
		plain
		AltDocument string `json:"document"`
	}

	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*u = User(wire.plain)
	if u.Document == "" {
		u.Document = wire.AltDocument
	}
	u.Document = document.Normalize(u.Document)

	return nil
}

// HasAccount reports whether the identity is tied to a company account.
func (u *User) HasAccount() bool {
	return u.AccountID != ""
}

// CanHoldSession reports whether the user may be written to the session store.
func (u *User) CanHoldSession() bool {
	return u.WhatsAppVerified || u.Role.IsSuperAdmin()
}

// Minimal returns the subset of fields a target module needs after a handoff.
func (u *User) Minimal() User {
	return User{
		ID:               u.ID,
		FullName:         u.FullName,
		Document:         u.Document,
		Role:             u.Role,
		AccountID:        u.AccountID,
		ClientType:       u.ClientType,
		EnabledModules:   u.EnabledModules,
		IsActive:         u.IsActive,
		WhatsAppVerified: u.WhatsAppVerified,
	}
}

// Session is the {token, user} pair held by the session store.
//
// The token is opaque. Expiry is enforced by the identity endpoint and only
// surfaces as SESSION_EXPIRED on a later call.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Validate rejects sessions missing the fields every consumer relies on.
func (s *Session) Validate() error {
	switch {
	case s.Token == "":
		return apperr.MalformedServerResponse("access_token")
	case s.User.ID == "":
		return apperr.MalformedServerResponse("user.id")
	case s.User.Document == "":
		return apperr.MalformedServerResponse("user.cpf")
	}
	return nil
}

// Principal projects the session onto the request-scoped caller.
func (s *Session) Principal() *sec.Principal {
	return &sec.Principal{
		UserID:      s.User.ID,
		Role:        s.User.Role,
		AccountID:   s.User.AccountID,
		Fingerprint: sec.Fingerprint(s.Token),
	}
}
