// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"net/http"

	"github.com/avelarcompany/gateway/internal/platform/constants"
	"github.com/avelarcompany/gateway/pkg/uuid"
)

// # Scoped Storage

// Values is the key/value content of one browser's scoped storage.
type Values map[string]string

// Scoped is the per-application, per-browser storage behind the store.
//
// Implementations treat undecodable or missing state as empty; errors are
// reserved for infrastructure failures.
type Scoped interface {
	// Read returns the current values. An empty map means nothing is stored.
	Read(request *http.Request) (Values, error)

	// Write replaces every stored value.
	Write(writer http.ResponseWriter, request *http.Request, values Values) error

	// Clear deletes every stored value.
	Clear(writer http.ResponseWriter, request *http.Request) error
}

// # Browser Identification

// browserCookie issues the host-only cookie that keys server-side storage.
type browserCookie struct {
	maxAge int
	secure bool
}

// id returns the browser ID of the request, including one issued earlier in
// the same request.
func (cookie browserCookie) id(request *http.Request) string {
	if ov := overlayFrom(request.Context()); ov != nil {
		ov.mu.Lock()
		issued := ov.browserID
		ov.mu.Unlock()
		if issued != "" {
			return issued
		}
	}

	current, err := request.Cookie(constants.BrowserIDCookie)
	if err != nil || !uuid.Valid(current.Value) {
		return ""
	}
	return current.Value
}

// ensure returns the browser ID, issuing one when the request has none.
func (cookie browserCookie) ensure(writer http.ResponseWriter, request *http.Request) string {
	if id := cookie.id(request); id != "" {
		return id
	}

	id := uuid.New()
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.BrowserIDCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   cookie.maxAge,
		HttpOnly: true,
		Secure:   cookie.secure,
		SameSite: http.SameSiteLaxMode,
	})

	if ov := overlayFrom(request.Context()); ov != nil {
		ov.mu.Lock()
		ov.browserID = id
		ov.mu.Unlock()
	}

	return id
}
