// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema holds table and column identifiers so SQL is never built from
// hand-typed names.
package schema

// SystemAuditEventTable represents the 'system.auditevent' table.
type SystemAuditEventTable struct {
	Table     string
	ID        string
	Event     string
	Outcome   string
	UserID    string
	Document  string
	TokenFP   string
	Module    string
	RequestID string
	IPAddress string
	Detail    string
	CreatedAt string
}

// SystemAuditEvent is the audit trail of session-propagation events.
var SystemAuditEvent = SystemAuditEventTable{
	Table:     "system.auditevent",
	ID:        "id",
	Event:     "event",
	Outcome:   "outcome",
	UserID:    "userid",
	Document:  "document",
	TokenFP:   "tokenfp",
	Module:    "module",
	RequestID: "requestid",
	IPAddress: "ipaddress",
	Detail:    "detail",
	CreatedAt: "createdat",
}
