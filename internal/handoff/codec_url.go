// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package handoff

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/avelarcompany/gateway/internal/identity"
	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/internal/platform/constants"
	"github.com/avelarcompany/gateway/internal/platform/metrics"
)

// URLCodec is the reversible, unsigned handoff encoding every module understands.
type URLCodec struct {
	metrics *metrics.Metrics
}

// NewURLCodec creates a [URLCodec].
func NewURLCodec(m *metrics.Metrics) *URLCodec {
	return &URLCodec{metrics: m}
}

/*
Encode appends auth=<blob> to base.

Description: The blob is "token=<token>&user=<base64(JSON)>" with both values
query-escaped, and is escaped once more as the value of "auth". The user is
reduced to [identity.User.Minimal]. Existing query parameters of base are kept.
*/
func (codec *URLCodec) Encode(_ context.Context, base string, session *identity.Session, _ string) (string, error) {
	if session == nil || session.Token == "" {
		return "", apperr.Internal(fmt.Errorf("handoff_encode_empty_session"))
	}

	blob, err := encodeBlob(session)
	if err != nil {
		codec.metrics.Handoff(metrics.DirectionIssued, metrics.OutcomeFailure)
		return "", err
	}

	target, err := withParam(base, constants.ParamAuth, blob)
	if err != nil {
		codec.metrics.Handoff(metrics.DirectionIssued, metrics.OutcomeFailure)
		return "", err
	}

	codec.metrics.Handoff(metrics.DirectionIssued, metrics.OutcomeSuccess)
	return target, nil
}

/*
Decode reads "auth", or the legacy bare "token"/"user" pair.

Description: Missing sub-fields, bad base64, bad JSON or a user without id or
document all yield DECODE_FAILURE. A bare token without user decodes to a
session with an empty user, left to the caller to hydrate.
*/
func (codec *URLCodec) Decode(_ context.Context, query url.Values, _ string) (*identity.Session, error) {
	if auth := query.Get(constants.ParamAuth); auth != "" {
		return decodeBlob(auth)
	}
	if query.Has(constants.ParamAuth) {
		return nil, apperr.DecodeFailure(fmt.Errorf("%w: auth", ErrMissingField))
	}

	token := query.Get(constants.ParamToken)
	if token == "" {
		if query.Has(constants.ParamToken) || query.Has(constants.ParamUser) {
			return nil, apperr.DecodeFailure(fmt.Errorf("%w: token", ErrMissingField))
		}
		return nil, nil
	}

	rawUser := query.Get(constants.ParamUser)
	if rawUser == "" {
		return &identity.Session{Token: token}, nil
	}

	return buildSession(token, rawUser)
}

// # Blob Format

func encodeBlob(session *identity.Session) (string, error) {
	userJSON, err := json.Marshal(session.User.Minimal())
	if err != nil {
		return "", fmt.Errorf("handoff_encode_user_failed: %w", err)
	}

	inner := url.Values{}
	inner.Set(constants.ParamToken, session.Token)
	inner.Set(constants.ParamUser, base64.StdEncoding.EncodeToString(userJSON))

	return inner.Encode(), nil
}

func decodeBlob(blob string) (*identity.Session, error) {
	// Some senders escape the blob one extra time.
	if !strings.Contains(blob, "=") {
		if unescaped, err := url.QueryUnescape(blob); err == nil {
			blob = unescaped
		}
	}

	inner, err := url.ParseQuery(blob)
	if err != nil {
		return nil, apperr.DecodeFailure(fmt.Errorf("handoff_blob_unparsable: %w", err))
	}

	token := inner.Get(constants.ParamToken)
	if token == "" {
		return nil, apperr.DecodeFailure(fmt.Errorf("%w: token", ErrMissingField))
	}

	rawUser := inner.Get(constants.ParamUser)
	if rawUser == "" {
		return nil, apperr.DecodeFailure(fmt.Errorf("%w: user", ErrMissingField))
	}

	return buildSession(token, rawUser)
}

func buildSession(token, rawUser string) (*identity.Session, error) {
	user, err := decodeUser(rawUser)
	if err != nil {
		return nil, apperr.DecodeFailure(err)
	}

	session := &identity.Session{Token: token, User: *user}
	if err := session.Validate(); err != nil {
		return nil, apperr.DecodeFailure(err)
	}

	return session, nil
}

// userEncodings are tried in order. Browsers that decode the blob one time
// too many turn '+' into ' ', which decodeUser reverts first.
var userEncodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

func decodeUser(raw string) (*identity.User, error) {
	raw = strings.TrimSpace(raw)

	var payload []byte
	if strings.HasPrefix(raw, "{") {
		payload = []byte(raw)
	} else {
		raw = strings.ReplaceAll(raw, " ", "+")
		for _, encoding := range userEncodings {
			if decoded, err := encoding.DecodeString(raw); err == nil {
				payload = decoded
				break
			}
		}
		if payload == nil {
			return nil, fmt.Errorf("handoff_user_not_base64")
		}
	}

	var user identity.User
	if err := json.Unmarshal(payload, &user); err != nil {
		return nil, fmt.Errorf("handoff_user_not_json: %w", err)
	}

	return &user, nil
}
