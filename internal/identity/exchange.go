// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/internal/platform/ctxutil"
	"github.com/avelarcompany/gateway/internal/platform/metrics"
	"github.com/avelarcompany/gateway/internal/platform/sec"
	"github.com/avelarcompany/gateway/pkg/document"
)

// # Credential Exchange

// LoginInput holds the credentials of one attempt.
type LoginInput struct {
	Document string
	Password string
}

// LoginResult is exactly one of a usable session or an open verification gate.
type LoginResult struct {
	Session *Session
	Pending *Pending
}

// RequiresVerification reports whether the attempt ended in the verification gate.
func (result *LoginResult) RequiresVerification() bool {
	return result.Pending != nil
}

/*
Login exchanges a document and password for a session.

Description: The document is normalized to digits before transmission. A reply
that demands verification opens the gate instead of failing. No retry is made.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *LoginResult: Session, or Pending when the gate must be passed first
  - err: VALIDATION_ERROR, INVALID_CREDENTIALS (any non-2xx), MALFORMED_SERVER_RESPONSE,
    IDENTITY_UNAVAILABLE (transport only)
*/
func (service *Service) Login(context context.Context, input LoginInput) (*LoginResult, error) {
	doc := document.Normalize(input.Document)
	if err := service.checkDocument(doc); err != nil {
		service.metrics.Login(metrics.OutcomeRejected)
		return nil, err
	}

	session, err := service.client.Login(context, doc, input.Password)
	if err != nil {
		return service.loginFailure(context, doc, err)
	}

	// A 2xx for an unverified account still cannot populate the store.
	if !session.User.CanHoldSession() {
		pending := &Pending{
			Document:  doc,
			WhatsApp:  session.User.WhatsApp,
			User:      session.User,
			CreatedAt: time.Now().UTC(),
		}

		if sendErr := service.client.SendVerification(context, doc); sendErr != nil {
			ctxutil.GetLogger(context).WarnContext(context, "verification_auto_send_failed",
				slog.String("document", document.Mask(doc)),
				slog.Any("error", sendErr),
			)
		}

		return service.openGate(context, pending)
	}

	service.metrics.Login(metrics.OutcomeSuccess)
	return &LoginResult{Session: session}, nil
}

func (service *Service) loginFailure(context context.Context, doc string, err error) (*LoginResult, error) {
	remote, ok := AsRemote(err)
	if !ok {
		if apperr.HasCode(err, apperr.CodeMalformedServerResponse) {
			service.metrics.Login(metrics.OutcomeMalformed)
		} else {
			service.metrics.Login(metrics.OutcomeFailure)
		}
		return nil, err
	}

	if remote.RequiresVerification() {
		return service.openGate(context, provisionalPending(doc, remote.Payload))
	}

	// Every other answer is a refusal, whatever its status.
	service.metrics.Login(metrics.OutcomeFailure)
	return nil, apperr.InvalidCredentials(remote.Message("")).WithCause(remote)
}

func (service *Service) openGate(context context.Context, pending *Pending) (*LoginResult, error) {
	if pending.Message == "" {
		pending.Message = "A verification code was sent to your WhatsApp"
	}

	if err := service.pendingRepository.Put(context, pending, service.options.PendingTTL); err != nil {
		service.metrics.Login(metrics.OutcomeFailure)
		return nil, fmt.Errorf("identity_open_gate_failed: %w", err)
	}

	ctxutil.GetLogger(context).InfoContext(context, "login_verification_required",
		slog.String("document", document.Mask(pending.Document)),
	)

	service.metrics.Login(metrics.OutcomeGate)
	return &LoginResult{Pending: pending}, nil
}

// provisionalPending builds the gate state from a verification-required error body.
func provisionalPending(doc string, payload ErrorPayload) *Pending {
	name := payload.UserName
	if name == "" {
		name = "Usuário"
	}

	return &Pending{
		Document: doc,
		WhatsApp: payload.WhatsApp,
		Message:  payload.String(),
		User: User{
			ID:             ProvisionalUserID,
			FullName:       name,
			Document:       doc,
			WhatsApp:       payload.WhatsApp,
			Role:           sec.RoleUser,
			IsActive:       true,
			EnabledModules: []string{},
		},
		CreatedAt: time.Now().UTC(),
	}
}

// checkDocument enforces the shape rule, plus checksums in strict mode.
func (service *Service) checkDocument(doc string) error {
	if !document.ValidShape(doc) {
		return apperr.ValidationError("Invalid CPF or CNPJ", apperr.FieldError{Field: "document", Message: "must have 11 or 14 digits"})
	}
	if service.options.StrictDocument && !document.Valid(doc) {
		return apperr.ValidationError("Invalid CPF or CNPJ", apperr.FieldError{Field: "document", Message: "checksum mismatch"})
	}
	return nil
}
