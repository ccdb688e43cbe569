// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package identity implements the credential side of session propagation.

It consumes the identity endpoint through its request/response contract and
never verifies tokens itself.

Architecture:

  - Client: JSON/HTTP calls to the identity endpoint, error bodies normalized once.
  - Service: Credential Exchange, Verification Gate, Context-Switch, hydration, profile edit.
  - PendingRepository: open verification gates (Redis or memory).

Every operation returns a complete [Session] or an [apperr.AppError]. The caller
writes the session to the session store; this package holds no session state.
*/
package identity

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/internal/platform/constants"
	"github.com/avelarcompany/gateway/internal/platform/metrics"
)

// # Contracts & Types

// Options tunes the [Service].
type Options struct {
	// StrictDocument applies CPF/CNPJ checksum rules on login.
	StrictDocument bool

	// PendingTTL bounds how long an abandoned gate is remembered.
	PendingTTL time.Duration
}

// Service orchestrates the identity operations of the gateway.
type Service struct {
	client            *Client
	pendingRepository PendingRepository
	metrics           *metrics.Metrics
	options           Options

	// resends coalesces concurrent resend requests per document.
	resends singleflight.Group
}

// NewService constructs a new [Service].
func NewService(client *Client, pendingRepo PendingRepository, m *metrics.Metrics, options Options) *Service {
	if options.PendingTTL <= 0 {
		options.PendingTTL = constants.PendingVerificationTTL
	}

	return &Service{
		client:            client,
		pendingRepository: pendingRepo,
		metrics:           m,
		options:           options,
	}
}

// # Error Mapping

// tokenFailure maps a remote error on a token-carrying call.
func tokenFailure(err error, fallback string) error {
	remote, ok := AsRemote(err)
	if !ok {
		return err
	}

	switch {
	case remote.Status == http.StatusUnauthorized:
		return apperr.SessionExpired().WithCause(remote)
	case remote.Status == http.StatusForbidden:
		return apperr.AccessDenied(remote.Message(fallback)).WithCause(remote)
	case remote.Status == http.StatusNotFound:
		return apperr.NotFound("Account").WithCause(remote)
	case remote.Status >= 500:
		return apperr.IdentityUnavailable(remote)
	default:
		return apperr.ValidationError(remote.Message(fallback)).WithCause(remote)
	}
}

// gateFailure maps a remote error of the verification gate.
func gateFailure(err error, fallback string) error {
	remote, ok := AsRemote(err)
	if !ok {
		return err
	}

	if remote.Status >= 500 {
		return apperr.IdentityUnavailable(remote)
	}
	return apperr.ValidationError(remote.Message(fallback)).WithCause(remote)
}

// detach keeps values of ctx but drops its cancellation. Identity calls that
// change gate state run to completion even when the browser goes away.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
