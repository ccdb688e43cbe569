// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package handoff carries a session from one origin to another through a URL.

The sender appends a single opaque "auth" parameter to the target module URL.
The receiver decodes it on its first GET, saves the session locally and
redirects to the same URL without the parameter.

Two encodings exist behind the [Codec] interface:

  - [URLCodec]: the blob "token=<token>&user=<base64 JSON>", URL-encoded once
    more as the value of "auth". Also reads the legacy bare token/user pair.
  - [SignedCodec]: "t1.<HS256 ticket>", short-lived and single-use.

A parameter that cannot be decoded is never fatal: the receiver falls through
to whatever session it already has.
*/
package handoff

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/avelarcompany/gateway/internal/identity"
	"github.com/avelarcompany/gateway/internal/platform/config"
	"github.com/avelarcompany/gateway/internal/platform/constants"
	"github.com/avelarcompany/gateway/internal/platform/metrics"
	"github.com/avelarcompany/gateway/internal/platform/sec"
)

// # Contracts

// Codec turns a session into a target URL and back.
type Codec interface {
	// Encode returns base with the handoff parameter added. audience is the
	// module id of the receiver.
	Encode(context context.Context, base string, session *identity.Session, audience string) (string, error)

	// Decode reads the handoff parameters of a query. It returns nil, nil when
	// none is present. A session with an empty user id carries a bare token
	// that still needs hydration.
	Decode(context context.Context, query url.Values, audience string) (*identity.Session, error)
}

var (
	// ErrMissingField is wrapped by DECODE_FAILURE when a sub-field is absent.
	ErrMissingField = errors.New("handoff: missing field")

	// ErrReplayed is wrapped by DECODE_FAILURE for a ticket already consumed.
	ErrReplayed = errors.New("handoff: ticket already consumed")

	// ErrLegacyRefused is wrapped by DECODE_FAILURE when legacy blobs are disabled.
	ErrLegacyRefused = errors.New("handoff: legacy parameter refused")
)

// # Construction

// Options selects and configures a codec.
type Options struct {
	Mode         string
	Secret       []byte
	Issuer       string
	TicketTTL    time.Duration
	AcceptLegacy bool
	Replay       ReplayGuard
}

// NewCodec builds the codec for a mode ("legacy" or "signed").
func NewCodec(options Options, m *metrics.Metrics) (Codec, error) {
	legacy := NewURLCodec(m)

	switch options.Mode {
	case "", config.HandoffLegacy:
		return legacy, nil

	case config.HandoffSigned:
		tickets, err := sec.NewTicketService(options.Secret, options.Issuer, options.TicketTTL)
		if err != nil {
			return nil, fmt.Errorf("handoff_ticket_service_failed: %w", err)
		}

		replay := options.Replay
		if replay == nil {
			replay = NewMemoryReplayGuard()
		}

		fallback := legacy
		if !options.AcceptLegacy {
			fallback = nil
		}
		return NewSignedCodec(tickets, replay, fallback, options.TicketTTL, m), nil

	default:
		return nil, fmt.Errorf("handoff_unknown_mode: %q", options.Mode)
	}
}

// # Query Helpers

// Present reports whether a query carries any handoff parameter.
func Present(query url.Values) bool {
	return query.Has(constants.ParamAuth) || query.Has(constants.ParamToken) || query.Has(constants.ParamUser)
}

// Strip returns the request URI of u without the handoff parameters.
func Strip(u *url.URL) string {
	query := u.Query()
	query.Del(constants.ParamAuth)
	query.Del(constants.ParamToken)
	query.Del(constants.ParamUser)

	stripped := url.URL{Path: u.Path, RawPath: u.RawPath, RawQuery: query.Encode()}
	if stripped.Path == "" {
		stripped.Path = "/"
	}
	return stripped.RequestURI()
}

// withParam returns base with one query parameter set.
func withParam(base, name, value string) (string, error) {
	target, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("handoff_invalid_base: %w", err)
	}

	query := target.Query()
	query.Set(name, value)
	target.RawQuery = query.Encode()

	return target.String(), nil
}
