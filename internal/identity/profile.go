// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"strings"

	"github.com/avelarcompany/gateway/internal/platform/apperr"
	"github.com/avelarcompany/gateway/pkg/pointer"
)

// # Hydration & Profile

// Hydrate fetches the user snapshot behind a token.
//
// Used when only the domain cookie is present. A rejected token surfaces as
// SESSION_EXPIRED.
func (service *Service) Hydrate(context context.Context, token string) (*Session, error) {
	user, err := service.client.Me(context, token)
	if err != nil {
		return nil, tokenFailure(err, "Session is not valid")
	}

	session := &Session{Token: token, User: *user}
	if err := session.Validate(); err != nil {
		return nil, err
	}

	return session, nil
}

/*
UpdateProfile edits the displayed fields of the current user.

Description: Only full_name and whatsapp are writable. The returned session
keeps the same token with those fields replaced.

Parameters:
  - context: context.Context
  - current: *Session
  - update: ProfileUpdate

Returns:
  - *Session: Session with the edited snapshot
  - err: VALIDATION_ERROR, SESSION_EXPIRED, ACCESS_DENIED
*/
func (service *Service) UpdateProfile(context context.Context, current *Session, update ProfileUpdate) (*Session, error) {
	if update.FullName != nil {
		update.FullName = pointer.To(strings.TrimSpace(*update.FullName))
	}
	if update.FullName == nil && update.WhatsApp == nil {
		return nil, apperr.ValidationError("Nothing to update")
	}

	if err := service.client.UpdateProfile(context, current.Token, current.User.ID, update); err != nil {
		return nil, tokenFailure(err, "Could not update the profile")
	}

	edited := *current
	edited.User.FullName = pointer.Fallback(update.FullName, current.User.FullName)
	edited.User.WhatsApp = pointer.Fallback(update.WhatsApp, current.User.WhatsApp)

	return &edited, nil
}
