// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package constants holds the fixed names and limits of the gateway.
//
// Cookie names, scoped storage keys, handoff parameters and redirect codes are
// shared with module applications that ship on their own schedule. Renaming
// any of them breaks sessions in the field.
package constants

import "time"

// # Metadata

const (
	AppName    = "avelar-gateway"
	AppVersion = "0.4.0"
)

// # Server Timing

const (
	DefaultReadTimeout       = 5 * time.Second
	DefaultWriteTimeout      = 15 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout caps a whole request, identity round trips included.
	GlobalRequestTimeout = 30 * time.Second

	// AuditWriteTimeout bounds a single audit insert.
	AuditWriteTimeout = 3 * time.Second

	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

// Per-IP token bucket. Idle buckets are dropped after RateLimitClientTTL.
const (
	DefaultRateLimitRPS      = 20.0
	DefaultRateLimitBurst    = 40
	RateLimitCleanupInterval = time.Minute
	RateLimitClientTTL       = 3 * time.Minute
)

// # Session Store

const (
	// DomainTokenCookie carries the bare token on the parent domain.
	DomainTokenCookie = "avelar_token"

	// ScopedCookieName is the host-only cookie of the gorilla-backed scoped storage.
	ScopedCookieName = "avelar_portal"

	// BrowserIDCookie identifies the browser for server-side scoped storage (redis).
	BrowserIDCookie = "avelar_sid"

	// Current scoped-storage keys.
	KeyCurrentToken = "avelar_token"
	KeyCurrentUser  = "avelar_user"

	// Legacy scoped-storage keys, still read by older AvAdmin builds.
	KeyLegacyToken = "avadmin_token"
	KeyLegacyUser  = "avadmin_user"

	// DefaultCookieMaxAge is the lifetime of the domain cookie (one year).
	DefaultCookieMaxAge = 365 * 24 * time.Hour
)

// # Handoff

const (
	// ParamAuth is the single opaque handoff parameter.
	ParamAuth = "auth"

	// ParamToken and ParamUser are the legacy bare handoff parameters.
	ParamToken = "token"
	ParamUser  = "user"

	// SignedTicketPrefix marks a signed ticket inside the auth parameter.
	SignedTicketPrefix = "t1."
)

// # Redirect Codes

const (
	ErrorParam                 = "error"
	CodeModuleNotEnabled       = "module_not_enabled"
	CodeAccessDenied           = "access_denied"
	CodeSessionExpired         = "session_expired"
	CodeInsufficientPermission = "insufficient_permissions"

	// ModeParam tells the login page which account context to preselect.
	ModeParam   = "mode"
	ModeCompany = "cnpj"
)

// # Verification Gate

const (
	// VerificationCodeLength is the exact number of digits of a one-time code.
	VerificationCodeLength = 6

	// PendingVerificationTTL bounds how long an abandoned gate is remembered.
	PendingVerificationTTL = 15 * time.Minute
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderRetryAfter    = "Retry-After"
	ContentTypeJSON     = "application/json; charset=utf-8"
	AuthorizationPrefix = "Bearer "
)

// # Redis Key Prefixes

const (
	RedisPrefixScoped  = "gateway:scoped:"
	RedisPrefixPending = "gateway:pending:"
	RedisPrefixTicket  = "gateway:ticket:"
)
