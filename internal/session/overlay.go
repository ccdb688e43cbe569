// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"net/http"
	"sync"

	"github.com/avelarcompany/gateway/internal/identity"
	"github.com/avelarcompany/gateway/internal/platform/ctxkey"
)

// overlay is the request-scoped view of the store.
//
// Cookies written by Save only reach the browser with the response, so a read
// later in the same request would see the old cookies. Every write lands here
// first and every read consults it first.
type overlay struct {
	mu        sync.Mutex
	writer    http.ResponseWriter
	known     bool
	session   *identity.Session
	expired   bool
	browserID string
}

func overlayFrom(ctx context.Context) *overlay {
	ov, _ := ctx.Value(ctxkey.KeySessionOverlay).(*overlay)
	return ov
}

func (ov *overlay) get() (*identity.Session, bool) {
	if ov == nil {
		return nil, false
	}
	ov.mu.Lock()
	defer ov.mu.Unlock()

	if !ov.known || ov.session == nil {
		return nil, ov.known
	}
	copied := *ov.session
	return &copied, true
}

func (ov *overlay) set(session *identity.Session) {
	if ov == nil {
		return
	}
	ov.mu.Lock()
	defer ov.mu.Unlock()

	ov.known = true
	if session == nil {
		ov.session = nil
		return
	}
	copied := *session
	ov.session = &copied
}

// expire records that the request's token was rejected.
func (ov *overlay) expire() {
	if ov == nil {
		return
	}
	ov.mu.Lock()
	defer ov.mu.Unlock()

	ov.known = true
	ov.session = nil
	ov.expired = true
}

func (ov *overlay) wasExpired() bool {
	if ov == nil {
		return false
	}
	ov.mu.Lock()
	defer ov.mu.Unlock()
	return ov.expired
}

func (ov *overlay) responseWriter() http.ResponseWriter {
	if ov == nil {
		return nil
	}
	ov.mu.Lock()
	defer ov.mu.Unlock()
	return ov.writer
}

// Attach installs the overlay for the rest of the chain.
//
// Mount it before any handler that calls Save, Load or Clear.
func (store *Store) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if overlayFrom(request.Context()) != nil {
			next.ServeHTTP(writer, request)
			return
		}

		ov := &overlay{writer: writer}
		ctx := context.WithValue(request.Context(), ctxkey.KeySessionOverlay, ov)
		next.ServeHTTP(writer, request.WithContext(ctx))
	})
}
