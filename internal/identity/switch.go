// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"

	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/internal/platform/metrics"
	"github.com/avelarcompany/gateway/internal/platform/sec"
	"github.com/avelarcompany/gateway/pkg/document"
)

// # Context Switch

// CanSwitchCompany reports whether an individual may act as its company account.
//
// Rule: individual document, admin role, tied account, and a client type other
// than cliente.
func CanSwitchCompany(user *User) bool {
	return document.IsIndividual(user.Document) &&
		user.Role == sec.RoleAdmin &&
		user.HasAccount() &&
		user.ClientType != ClientCustomer
}

/*
SwitchCompany reissues the current session scoped to the company account.

Description: No credential is sent besides the current token. On failure the
current session is left untouched; the caller decides where to send the user.

Parameters:
  - context: context.Context
  - current: *Session

Returns:
  - *Session: Brand-new session for the company context
  - err: ACCESS_DENIED, SESSION_EXPIRED, MALFORMED_SERVER_RESPONSE, IDENTITY_UNAVAILABLE
*/
func (service *Service) SwitchCompany(context context.Context, current *Session) (*Session, error) {
	if !CanSwitchCompany(&current.User) {
		service.metrics.ContextSwitch(metrics.OutcomeRejected)
		return nil, apperr.AccessDenied("Company context is not available for this account")
	}

	session, err := service.client.SwitchCompany(context, current.Token)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeMalformedServerResponse) {
			service.metrics.ContextSwitch(metrics.OutcomeMalformed)
		} else {
			service.metrics.ContextSwitch(metrics.OutcomeFailure)
		}
		return nil, tokenFailure(err, "Company context is not available for this account")
	}

	service.metrics.ContextSwitch(metrics.OutcomeSuccess)
	return session, nil
}
