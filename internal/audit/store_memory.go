// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package audit

import (
	"context"
	"sync"

	"github.com/avelarcompany/gateway/pkg/pagination"
	"github.com/avelarcompany/gateway/pkg/slice"
)

// MemoryRepository keeps the most recent entries in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
}

// NewMemoryRepository creates a [MemoryRepository] holding at most capacity entries.
func NewMemoryRepository(capacity int) *MemoryRepository {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryRepository{capacity: capacity}
}

// Insert appends one entry, evicting the oldest at capacity.
func (repository *MemoryRepository) Insert(_ context.Context, entry *Entry) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	repository.entries = append(repository.entries, *entry)
	if overflow := len(repository.entries) - repository.capacity; overflow > 0 {
		repository.entries = repository.entries[overflow:]
	}
	return nil
}

// List returns one page of entries matching filter, newest first.
func (repository *MemoryRepository) List(_ context.Context, filter Filter, params pagination.Params) ([]Entry, int, error) {
	repository.mu.RLock()
	matched := slice.Filter(repository.entries, func(entry Entry) bool {
		return (filter.Event == "" || entry.Event == filter.Event) &&
			(filter.UserID == "" || entry.UserID == filter.UserID)
	})
	repository.mu.RUnlock()

	newestFirst := make([]Entry, len(matched))
	for i, entry := range matched {
		newestFirst[len(matched)-1-i] = entry
	}

	start, end := params.Window(len(newestFirst))
	return newestFirst[start:end], len(newestFirst), nil
}
