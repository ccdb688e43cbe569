// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr is the error vocabulary shared by the gateway and its handlers.

Every failure that reaches a client is an [AppError]: a stable machine code, a
message that is safe to show, the HTTP status it maps to and, for the
verification gate, an action hint. Service code returns these and the respond
package renders them.

Two families of codes exist. The protocol codes (INVALID_CREDENTIALS,
WHATSAPP_NOT_VERIFIED, SESSION_EXPIRED and the rest) are what module
front-ends branch on and never change spelling. The generic codes cover
validation, lookups and infrastructure failures.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Protocol codes.
const (
	CodeInvalidCredentials      = "INVALID_CREDENTIALS"
	CodeWhatsAppNotVerified     = "WHATSAPP_NOT_VERIFIED"
	CodeMalformedServerResponse = "MALFORMED_SERVER_RESPONSE"
	CodeModuleNotEnabled        = "MODULE_NOT_ENABLED"
	CodeAccessDenied            = "ACCESS_DENIED"
	CodeSessionExpired          = "SESSION_EXPIRED"
	CodeDecodeFailure           = "DECODE_FAILURE"
	CodeIdentityUnavailable     = "IDENTITY_UNAVAILABLE"
)

// Generic codes.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeConflict     = "CONFLICT"
	CodeValidation   = "VALIDATION_ERROR"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL_ERROR"
)

// ActionVerifyWhatsApp tells the client to show the verification code form.
const ActionVerifyWhatsApp = "verify_whatsapp"

// AppError is an error with a client facing shape. Cause stays on the server.
type AppError struct {
	Code       string       `json:"code"`
	Message    string       `json:"error"`
	Action     string       `json:"action,omitempty"`
	Details    []FieldError `json:"details,omitempty"`
	HTTPStatus int          `json:"-"`
	Cause      error        `json:"-"`
}

// FieldError names one request field that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func newError(code string, status int, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// Error returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

func (e *AppError) Unwrap() error { return e.Cause }

// WithCause records the underlying error for logs and returns e.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// # Generic

// NotFound reports a missing resource, e.g. NotFound("Module").
func NotFound(resource string) *AppError {
	return newError(CodeNotFound, http.StatusNotFound, resource+" not found")
}

func Unauthorized(message string) *AppError {
	return newError(CodeUnauthorized, http.StatusUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return newError(CodeForbidden, http.StatusForbidden, message)
}

// Conflict reports a write that collides with an existing record.
func Conflict(message string) *AppError {
	return newError(CodeConflict, http.StatusConflict, message)
}

// ValidationError reports a rejected request body, optionally per field.
func ValidationError(message string, details ...FieldError) *AppError {
	err := newError(CodeValidation, http.StatusBadRequest, message)
	err.Details = details
	return err
}

// RateLimited asks the caller to back off for the given number of seconds.
func RateLimited(retryAfterSeconds int) *AppError {
	return newError(CodeRateLimited, http.StatusTooManyRequests,
		fmt.Sprintf("Too many requests. Try again in %ds.", retryAfterSeconds))
}

// Internal hides an unexpected failure behind a fixed message.
func Internal(cause error) *AppError {
	return newError(CodeInternal, http.StatusInternalServerError, "An unexpected error occurred").WithCause(cause)
}

// # Protocol

// InvalidCredentials carries the identity endpoint's refusal message when it sent one.
func InvalidCredentials(message string) *AppError {
	if message == "" {
		message = "Invalid document or password"
	}
	return newError(CodeInvalidCredentials, http.StatusUnauthorized, message)
}

// WhatsAppNotVerified routes the client to the verification gate.
func WhatsAppNotVerified(message string) *AppError {
	if message == "" {
		message = "WhatsApp number is not verified"
	}
	err := newError(CodeWhatsAppNotVerified, http.StatusConflict, message)
	err.Action = ActionVerifyWhatsApp
	return err
}

// MalformedServerResponse reports a 2xx identity reply that lacks a required field.
func MalformedServerResponse(missing string) *AppError {
	return newError(CodeMalformedServerResponse, http.StatusBadGateway,
		"Invalid response from the identity server. Please try again.").
		WithCause(fmt.Errorf("identity_response_missing_field: %s", missing))
}

// ModuleNotEnabled reports a module outside the caller's grant.
func ModuleNotEnabled(module string) *AppError {
	return newError(CodeModuleNotEnabled, http.StatusForbidden,
		fmt.Sprintf("Module %s is not enabled for this account", module))
}

// AccessDenied reports an account whose profile may not use the resource.
func AccessDenied(message string) *AppError {
	return newError(CodeAccessDenied, http.StatusForbidden, message)
}

// SessionExpired reports a token the identity endpoint no longer accepts.
func SessionExpired() *AppError {
	return newError(CodeSessionExpired, http.StatusUnauthorized,
		"Your session has expired. Please sign in again.")
}

// DecodeFailure reports an inbound handoff parameter that could not be read.
func DecodeFailure(cause error) *AppError {
	return newError(CodeDecodeFailure, http.StatusBadRequest,
		"Inbound session parameter could not be decoded").WithCause(cause)
}

// IdentityUnavailable reports a transport failure against the identity endpoint.
func IdentityUnavailable(cause error) *AppError {
	return newError(CodeIdentityUnavailable, http.StatusServiceUnavailable,
		"Authentication service is unavailable. Please try again.").WithCause(cause)
}

// # Inspection

// As returns the first [*AppError] in err's chain, or nil.
func As(err error) *AppError {
	var target *AppError
	if errors.As(err, &target) {
		return target
	}
	return nil
}

// HasCode reports whether err's chain holds an [*AppError] with code.
func HasCode(err error, code string) bool {
	target := As(err)
	return target != nil && target.Code == code
}
