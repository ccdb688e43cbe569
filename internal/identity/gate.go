// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"log/slog"

	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/internal/platform/constants"
	"github.com/avelarcompany/gateway/internal/platform/ctxutil"
	"github.com/avelarcompany/gateway/internal/platform/metrics"
	"github.com/avelarcompany/gateway/pkg/document"
)

// # Verification Gate

// Gate operations, used as metric labels.
const (
	GateSubmit = "submit"
	GateResend = "resend"
)

// VerifyResult is the outcome of an accepted code (state VERIFIED).
//
// Session is nil when the endpoint accepted the code without issuing a token;
// the user must then sign in again to obtain one.
type VerifyResult struct {
	Session *Session
	Message string
}

/*
SubmitCode sends a one-time code for the open gate of a document.

Description: On acceptance the gate closes and a fresh session is returned with
whatsapp_verified set. On rejection the gate stays open and the endpoint's
message is surfaced. Attempts are not counted here.

The identity call is detached from the caller's cancellation: once issued, it
runs to completion and its state transition is applied.

Parameters:
  - context: context.Context
  - doc: string
  - code: string (exactly 6 digits)

Returns:
  - *VerifyResult: Verified outcome
  - err: NOT_FOUND (no open gate), VALIDATION_ERROR, MALFORMED_SERVER_RESPONSE, IDENTITY_UNAVAILABLE
*/
func (service *Service) SubmitCode(context context.Context, doc, code string) (*VerifyResult, error) {
	doc = document.Normalize(doc)
	if !isCode(code) {
		return nil, apperr.ValidationError("Verification code must have 6 digits",
			apperr.FieldError{Field: "code", Message: "must have 6 digits"})
	}

	pending, err := service.pendingRepository.Get(context, doc)
	if err != nil {
		return nil, err
	}

	detached := detach(context)

	session, message, err := service.client.VerifyWhatsApp(detached, doc, code)
	if err != nil {
		service.metrics.Verification(GateSubmit, metrics.OutcomeFailure)
		return nil, gateFailure(err, "Invalid verification code")
	}

	if session != nil {
		if session.User.ID == "" {
			session.User = pending.User
		}
		session.User.WhatsAppVerified = true

		if err := session.Validate(); err != nil {
			service.metrics.Verification(GateSubmit, metrics.OutcomeMalformed)
			return nil, err
		}
	}

	if err := service.pendingRepository.Delete(detached, doc); err != nil {
		ctxutil.GetLogger(context).WarnContext(context, "verification_gate_close_failed",
			slog.String("document", document.Mask(doc)),
			slog.Any("error", err),
		)
	}

	service.metrics.Verification(GateSubmit, metrics.OutcomeSuccess)
	return &VerifyResult{Session: session, Message: message}, nil
}

/*
ResendCode re-triggers code delivery for the open gate of a document.

Concurrent calls for the same document share one delivery. A previously issued
code is not invalidated here.
*/
func (service *Service) ResendCode(context context.Context, doc string) error {
	doc = document.Normalize(doc)

	pending, err := service.pendingRepository.Get(context, doc)
	if err != nil {
		return err
	}

	detached := detach(context)

	_, err, shared := service.resends.Do(doc, func() (any, error) {
		return nil, service.client.SendVerification(detached, doc)
	})
	if err != nil {
		service.metrics.Verification(GateResend, metrics.OutcomeFailure)
		return gateFailure(err, "Could not resend the verification code")
	}

	if !shared {
		if err := service.pendingRepository.Put(detached, pending, service.options.PendingTTL); err != nil {
			return apperr.Internal(err)
		}
	}

	service.metrics.Verification(GateResend, metrics.OutcomeSuccess)
	return nil
}

// Pending returns the open gate of a document.
func (service *Service) Pending(context context.Context, doc string) (*Pending, error) {
	return service.pendingRepository.Get(context, document.Normalize(doc))
}

func isCode(code string) bool {
	if len(code) != constants.VerificationCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
