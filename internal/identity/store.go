// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"time"
)

// # Verification Gate State

// Pending is an open verification gate (state AWAITING_CODE).
//
// User is provisional: when the exchange never returned a real session its ID
// is the placeholder [ProvisionalUserID].
type Pending struct {
	Document  string    `json:"document"`
	WhatsApp  string    `json:"whatsapp"`
	Message   string    `json:"message"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// ProvisionalUserID marks a user snapshot that never came from a session.
const ProvisionalUserID = "temp"

// PendingRepository persists open verification gates keyed by document.
type PendingRepository interface {

	/*
		Put opens or refreshes the gate of pending.Document.

		Parameters:
		  - context: context.Context
		  - pending: *Pending
		  - ttl: time.Duration

		Returns:
		  - error: Storage failures
	*/
	Put(context context.Context, pending *Pending, ttl time.Duration) error

	/*
		Get returns the open gate of a document.

		Returns:
		  - *Pending: The gate state
		  - error: apperr.NotFound when no gate is open
	*/
	Get(context context.Context, document string) (*Pending, error)

	// Delete closes the gate of a document. Closing a missing gate is not an error.
	Delete(context context.Context, document string) error
}
