// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/avelarcompany/gateway/internal/platform/constants"
	"github.com/avelarcompany/gateway/internal/platform/sec"
)

// CookieScoped keeps scoped storage in a signed and encrypted host-only cookie.
type CookieScoped struct {
	store *sessions.CookieStore
}

// NewCookieScoped derives the cookie keys from the shared session secret.
func NewCookieScoped(secret []byte, maxAge int, secure bool) (*CookieScoped, error) {
	hashKey, err := sec.DeriveKey(secret, sec.PurposeCookieHash, 32)
	if err != nil {
		return nil, err
	}
	blockKey, err := sec.DeriveKey(secret, sec.PurposeCookieBlock, 32)
	if err != nil {
		return nil, err
	}

	store := sessions.NewCookieStore(hashKey, blockKey)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &CookieScoped{store: store}, nil
}

// Read decodes the cookie. A cookie signed with another key reads as empty.
func (scoped *CookieScoped) Read(request *http.Request) (Values, error) {
	stored, err := scoped.store.Get(request, constants.ScopedCookieName)
	if err != nil {
		return Values{}, nil
	}

	values := make(Values, len(stored.Values))
	for key, value := range stored.Values {
		name, okName := key.(string)
		text, okText := value.(string)
		if okName && okText {
			values[name] = text
		}
	}

	return values, nil
}

// Write replaces the cookie content.
func (scoped *CookieScoped) Write(writer http.ResponseWriter, request *http.Request, values Values) error {
	// A decode error still yields a fresh session, which is what we overwrite.
	stored, _ := scoped.store.Get(request, constants.ScopedCookieName)

	for key := range stored.Values {
		delete(stored.Values, key)
	}
	for key, value := range values {
		stored.Values[key] = value
	}

	// The session may be cached for this request with a Clear already applied.
	options := *scoped.store.Options
	stored.Options = &options

	if err := stored.Save(request, writer); err != nil {
		return fmt.Errorf("scoped_cookie_save_failed: %w", err)
	}
	return nil
}

// Clear expires the cookie.
func (scoped *CookieScoped) Clear(writer http.ResponseWriter, request *http.Request) error {
	stored, _ := scoped.store.Get(request, constants.ScopedCookieName)

	for key := range stored.Values {
		delete(stored.Values, key)
	}
	stored.Options.MaxAge = -1

	if err := stored.Save(request, writer); err != nil {
		return fmt.Errorf("scoped_cookie_clear_failed: %w", err)
	}
	return nil
}
