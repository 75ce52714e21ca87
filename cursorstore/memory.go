// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package cursorstore

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type memoryEntry struct {
	ts        int64
	expiresAt time.Time
}

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	logger *zap.Logger
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore(logger *zap.Logger, config Config) *MemoryStore {
	return &MemoryStore{
		logger:  logger,
		ttl:     config.TTL,
		entries: make(map[string]memoryEntry),
	}
}

var _ Store = (*MemoryStore)(nil)

// Start implements Store.
func (m *MemoryStore) Start(_ context.Context) error {
	m.logger.Info("Starting memory cursor store")
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) (int64, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return 0, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		return 0, false, nil
	}
	return entry.ts, true, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key string, ts int64) error {
	entry := memoryEntry{ts: ts}
	if m.ttl > 0 {
		entry.expiresAt = time.Now().Add(m.ttl)
	}

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}
