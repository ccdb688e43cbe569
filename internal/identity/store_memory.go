// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"sync"
	"time"

	"github.com/avelarcompany/gateway/internal/platform/apperr"
)

// MemoryPendingRepository keeps gate state in process memory.
// Used by single-instance deployments and tests.
type MemoryPendingRepository struct {
	mu      sync.Mutex
	entries map[string]memoryPending
	now     func() time.Time
}

type memoryPending struct {
	pending   Pending
	expiresAt time.Time
}

// NewMemoryPendingRepository creates an empty in-memory [PendingRepository].
func NewMemoryPendingRepository() *MemoryPendingRepository {
	return &MemoryPendingRepository{
		entries: make(map[string]memoryPending),
		now:     time.Now,
	}
}

// Put stores a copy of pending until ttl elapses.
func (repository *MemoryPendingRepository) Put(_ context.Context, pending *Pending, ttl time.Duration) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	repository.entries[pending.Document] = memoryPending{
		pending:   *pending,
		expiresAt: repository.now().Add(ttl),
	}
	return nil
}

// Get returns a copy of the gate state, dropping it once expired.
func (repository *MemoryPendingRepository) Get(_ context.Context, document string) (*Pending, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	entry, ok := repository.entries[document]
	if !ok {
		return nil, apperr.NotFound("Pending verification")
	}

	if !repository.now().Before(entry.expiresAt) {
		delete(repository.entries, document)
		return nil, apperr.NotFound("Pending verification")
	}

	pending := entry.pending
	return &pending, nil
}

// Delete forgets the gate of a document.
func (repository *MemoryPendingRepository) Delete(_ context.Context, document string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	delete(repository.entries, document)
	return nil
}
