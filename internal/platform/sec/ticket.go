// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives for the gateway.
//
// # Architecture
//
// This package isolates security-sensitive code (key derivation, ticket signing,
// token fingerprints) from the protocol logic. Bearer tokens issued by the
// identity endpoint are opaque here: the gateway never verifies them itself.
package sec

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/avelarcompany/gateway/pkg/uuid"
)

// ticketKeySize is the HMAC-SHA256 key length derived for tickets.
const ticketKeySize = 32

// ErrTicketInvalid is returned for any ticket that fails signature, issuer,
// audience or expiry checks.
var ErrTicketInvalid = errors.New("sec: invalid handoff ticket")

// TicketClaims is the payload of a signed handoff ticket.
//
// # Why a ticket?
//
// A ticket wraps the session in a short-lived, single-use envelope so a leaked
// URL stops being useful after a few seconds.
type TicketClaims struct {
	jwt.RegisteredClaims

	// Abbreviated to keep the URL short.
	Token string          `json:"tok"`
	User  json.RawMessage `json:"usr,omitempty"`
}

// TicketService signs and verifies handoff tickets using HS256.
type TicketService struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTicketService derives the ticket key from the shared session secret.
func NewTicketService(secret []byte, issuer string, ttl time.Duration) (*TicketService, error) {
	key, err := DeriveKey(secret, PurposeHandoffTicket, ticketKeySize)
	if err != nil {
		return nil, err
	}

	return &TicketService{
		key:    key,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock replaces the time source. Used by tests.
func (service *TicketService) WithClock(now func() time.Time) *TicketService {
	service.now = now
	return service
}

// Issue signs a ticket for the given session, addressed to one module.
func (service *TicketService) Issue(token string, user json.RawMessage, audience string) (string, *TicketClaims, error) {
	currentTime := service.now()
	claims := &TicketClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New(),
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			NotBefore: jwt.NewNumericDate(currentTime.Add(-5 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(service.ttl)),
		},
		Token: token,
		User:  user,
	}

	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(service.key)
	if err != nil {
		return "", nil, fmt.Errorf("sec: failed to sign ticket: %w", err)
	}

	return signed, claims, nil
}

// Verify checks the signature and validity window of a ticket.
// An empty audience skips the audience check.
func (service *TicketService) Verify(ticket, audience string) (*TicketClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(service.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(service.now),
	}
	if audience != "" {
		options = append(options, jwt.WithAudience(audience))
	}

	claims := &TicketClaims{}
	token, err := jwt.ParseWithClaims(ticket, claims, func(*jwt.Token) (interface{}, error) {
		return service.key, nil
	}, options...)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTicketInvalid, err)
	}

	if !token.Valid || claims.ID == "" || claims.Token == "" {
		return nil, ErrTicketInvalid
	}

	return claims, nil
}
