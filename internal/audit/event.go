// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package audit records every transition of the session-propagation protocol.

Rows never carry secrets: documents are masked and tokens are reduced to a
BLAKE3 fingerprint before an [Entry] leaves this package's builders.
*/
package audit

import (
	"time"

	"github.com/avelarcompany/gateway/internal/identity"
	"github.com/avelarcompany/gateway/internal/platform/sec"
	"github.com/avelarcompany/gateway/pkg/document"
)

// # Domain Types

// Event names one protocol transition.
type Event string

const (
	EventLogin                Event = "login"
	EventVerificationRequired Event = "verification_required"
	EventVerification         Event = "verification"
	EventCodeResent           Event = "verification_resent"
	EventContextSwitch        Event = "context_switch"
	EventHandoffIssued        Event = "handoff_issued"
	EventHandoffConsumed      Event = "handoff_consumed"
	EventHandoffRejected      Event = "handoff_rejected"
	EventProfileUpdated       Event = "profile_updated"
	EventLogout               Event = "logout"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Entry is one audit row.
type Entry struct {
	ID        string    `json:"id"`
	Event     Event     `json:"event"`
	Outcome   string    `json:"outcome"`
	UserID    string    `json:"user_id,omitempty"`
	Document  string    `json:"document,omitempty"`
	TokenFP   string    `json:"token_fp,omitempty"`
	Module    string    `json:"module,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows a listing. Empty fields match everything.
type Filter struct {
	Event  Event
	UserID string
}

// # Builders

// New starts an entry for an event.
func New(event Event, outcome string) Entry {
	return Entry{Event: event, Outcome: outcome}
}

// Of attaches the subject of a session.
func (entry Entry) Of(session *identity.Session) Entry {
	if session == nil {
		return entry
	}
	entry.UserID = session.User.ID
	entry.Document = document.Mask(session.User.Document)
	entry.TokenFP = sec.Fingerprint(session.Token)
	return entry
}

// For attaches a raw document when no session exists yet.
func (entry Entry) For(doc string) Entry {
	entry.Document = document.Mask(document.Normalize(doc))
	return entry
}

// In attaches a module id.
func (entry Entry) In(module string) Entry {
	entry.Module = module
	return entry
}

// Because attaches a free-form detail such as an error code.
func (entry Entry) Because(detail string) Entry {
	entry.Detail = detail
	return entry
}
