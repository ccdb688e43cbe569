// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package validate checks request input before anything is sent to the
// identity endpoint. Rules chain on a [Validator]; [Validator.Err] folds every
// failure into one VALIDATION_ERROR with per-field details.
package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/pkg/document"
)

// WhatsApp numbers travel as digits with country code.
const (
	minPhoneDigits = 10
	maxPhoneDigits = 13
)

const failedMessage = "Validation failed"

// ErrInvalidJSON is returned when a request body is not valid JSON.
var ErrInvalidJSON = apperr.ValidationError("Invalid JSON payload")

// Validator accumulates field failures. Use one per request.
type Validator struct {
	failures []apperr.FieldError
}

func (v *Validator) fail(field, message string) *Validator {
	v.failures = append(v.failures, apperr.FieldError{Field: field, Message: message})
	return v
}

// Required rejects empty or whitespace-only values.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) != "" {
		return v
	}
	return v.fail(field, "This field is required")
}

// MaxLen rejects values longer than max characters.
func (v *Validator) MaxLen(field, value string, max int) *Validator {
	if utf8.RuneCountInString(value) <= max {
		return v
	}
	return v.fail(field, fmt.Sprintf("Maximum %d characters", max))
}

// Document rejects anything that does not normalize to a CPF or CNPJ length.
// When strict is set the check digits must match too.
func (v *Validator) Document(field, value string, strict bool) *Validator {
	switch {
	case !document.ValidShape(value):
		return v.fail(field, "Must have 11 (CPF) or 14 (CNPJ) digits")
	case strict && !document.Valid(value):
		return v.fail(field, "Invalid document check digits")
	}
	return v
}

// Digits requires exactly n ASCII digits, as in a verification code.
func (v *Validator) Digits(field, value string, n int) *Validator {
	if len(value) == n && digitsOnly(value) {
		return v
	}
	return v.fail(field, fmt.Sprintf("Must be exactly %d digits", n))
}

// Phone requires a digits-only WhatsApp number with country code.
func (v *Validator) Phone(field, value string) *Validator {
	if n := len(value); n >= minPhoneDigits && n <= maxPhoneDigits && digitsOnly(value) {
		return v
	}
	return v.fail(field, fmt.Sprintf("Must have between %d and %d digits", minPhoneDigits, maxPhoneDigits))
}

// Custom records message when failed is true.
func (v *Validator) Custom(field string, failed bool, message string) *Validator {
	if !failed {
		return v
	}
	return v.fail(field, message)
}

// HasErrors reports whether any rule failed so far.
func (v *Validator) HasErrors() bool { return len(v.failures) > 0 }

// Err returns nil when every rule passed.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return apperr.ValidationError(failedMessage, v.failures...)
}

// RequiredError builds a single-field validation error outside a chain.
func RequiredError(field, message string) *apperr.AppError {
	return apperr.ValidationError(failedMessage, apperr.FieldError{Field: field, Message: message})
}

func digitsOnly(value string) bool {
	return strings.IndexFunc(value, func(r rune) bool { return r < '0' || r > '9' }) < 0
}
