// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"maps"
	"net/http"
	"sync"
)

// MemoryScoped keeps scoped storage in process memory, keyed by browser ID.
// Used for development and tests.
type MemoryScoped struct {
	mu      sync.RWMutex
	entries map[string]Values
	browser browserCookie
}

// NewMemoryScoped creates an empty in-memory [Scoped].
func NewMemoryScoped(maxAge int) *MemoryScoped {
	return &MemoryScoped{
		entries: make(map[string]Values),
		browser: browserCookie{maxAge: maxAge},
	}
}

// Read returns a copy of the browser's values.
func (scoped *MemoryScoped) Read(request *http.Request) (Values, error) {
	id := scoped.browser.id(request)

	scoped.mu.RLock()
	defer scoped.mu.RUnlock()

	return maps.Clone(scoped.entries[id]), nil
}

// Write replaces the browser's values.
func (scoped *MemoryScoped) Write(writer http.ResponseWriter, request *http.Request, values Values) error {
	id := scoped.browser.ensure(writer, request)

	scoped.mu.Lock()
	defer scoped.mu.Unlock()

	scoped.entries[id] = maps.Clone(values)
	return nil
}

// Clear forgets the browser's values.
func (scoped *MemoryScoped) Clear(_ http.ResponseWriter, request *http.Request) error {
	id := scoped.browser.id(request)

	scoped.mu.Lock()
	defer scoped.mu.Unlock()

	delete(scoped.entries, id)
	return nil
}
