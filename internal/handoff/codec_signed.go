// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/avelarcompany/gateway/internal/identity"
	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/internal/platform/constants"
	"github.com/avelarcompany/gateway/internal/platform/metrics"
	"github.com/avelarcompany/gateway/internal/platform/sec"
)

// clockSkew is added to the replay window to cover the ticket's not-before leeway.
const clockSkew = 5 * time.Second

// SignedCodec carries the session inside a short-lived HS256 ticket.
type SignedCodec struct {
	tickets *sec.TicketService
	replay  ReplayGuard
	legacy  *URLCodec
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewSignedCodec creates a [SignedCodec]. A nil legacy codec refuses unsigned parameters.
func NewSignedCodec(tickets *sec.TicketService, replay ReplayGuard, legacy *URLCodec, ttl time.Duration, m *metrics.Metrics) *SignedCodec {
	return &SignedCodec{
		tickets: tickets,
		replay:  replay,
		legacy:  legacy,
		ttl:     ttl,
		metrics: m,
	}
}

// Encode appends auth=t1.<ticket> to base. The ticket is addressed to audience.
func (codec *SignedCodec) Encode(_ context.Context, base string, session *identity.Session, audience string) (string, error) {
	if session == nil || session.Token == "" {
		return "", apperr.Internal(fmt.Errorf("handoff_encode_empty_session"))
	}

	userJSON, err := json.Marshal(session.User.Minimal())
	if err != nil {
		codec.metrics.Handoff(metrics.DirectionIssued, metrics.OutcomeFailure)
		return "", fmt.Errorf("handoff_encode_user_failed: %w", err)
	}

	ticket, _, err := codec.tickets.Issue(session.Token, userJSON, audience)
	if err != nil {
		codec.metrics.Handoff(metrics.DirectionIssued, metrics.OutcomeFailure)
		return "", err
	}

	target, err := withParam(base, constants.ParamAuth, constants.SignedTicketPrefix+ticket)
	if err != nil {
		codec.metrics.Handoff(metrics.DirectionIssued, metrics.OutcomeFailure)
		return "", err
	}

	codec.metrics.Handoff(metrics.DirectionIssued, metrics.OutcomeSuccess)
	return target, nil
}

/*
Decode verifies a signed ticket and claims its id.

Description: A ticket is accepted once: the first Decode claims its id in the
replay guard and every later one fails with [ErrReplayed]. Unsigned parameters
go to the legacy codec when one is configured and fail otherwise.

Returns:
  - *identity.Session: The carried session, or nil when no parameter is present
  - error: DECODE_FAILURE, or replay guard storage errors
*/
func (codec *SignedCodec) Decode(context context.Context, query url.Values, audience string) (*identity.Session, error) {
	auth := query.Get(constants.ParamAuth)

	if !strings.HasPrefix(auth, constants.SignedTicketPrefix) {
		if codec.legacy != nil {
			return codec.legacy.Decode(context, query, audience)
		}
		if Present(query) {
			return nil, apperr.DecodeFailure(ErrLegacyRefused)
		}
		return nil, nil
	}

	claims, err := codec.tickets.Verify(strings.TrimPrefix(auth, constants.SignedTicketPrefix), audience)
	if err != nil {
		return nil, apperr.DecodeFailure(err)
	}

	fresh, err := codec.replay.Claim(context, claims.ID, codec.ttl+clockSkew)
	if err != nil {
		return nil, fmt.Errorf("handoff_replay_check_failed: %w", err)
	}
	if !fresh {
		return nil, apperr.DecodeFailure(ErrReplayed)
	}

	if len(claims.User) == 0 {
		return nil, apperr.DecodeFailure(fmt.Errorf("%w: user", ErrMissingField))
	}

	var user identity.User
	if err := json.Unmarshal(claims.User, &user); err != nil {
		return nil, apperr.DecodeFailure(fmt.Errorf("handoff_user_not_json: %w", err))
	}

	session := &identity.Session{Token: claims.Token, User: user}
	if err := session.Validate(); err != nil {
		return nil, apperr.DecodeFailure(err)
	}

	return session, nil
}
