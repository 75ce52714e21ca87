// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vkeventprocessor

import (
	"sync"
	"sync/atomic"
	"time"
)

// seenEntry records when an event id was first accepted.
type seenEntry struct {
	expiresAt time.Time
	createdAt time.Time
}

func (e *seenEntry) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// seenCache is a thread-safe set of event ids with TTL and size limit.
type seenCache struct {
	entries map[string]*seenEntry
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	// Metrics
	duplicates atomic.Int64
	accepted   atomic.Int64
	evicts     atomic.Int64
}

func newSeenCache(cfg DedupConfig) *seenCache {
	return &seenCache{
		entries: make(map[string]*seenEntry),
		maxSize: cfg.MaxSize,
		ttl:     time.Duration(cfg.TTL) * time.Second,
		now:     time.Now,
	}
}

// markIfNew remembers key and reports true, or reports false when key is
// already remembered and not expired.
func (c *seenCache) markIfNew(key string) bool {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok && !entry.isExpired(now) {
		c.duplicates.Add(1)
		return false
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = &seenEntry{expiresAt: now.Add(c.ttl), createdAt: now}
	c.accepted.Add(1)
	return true
}

// evictOldest removes the oldest entry from the cache.
// Must be called with lock held.
func (c *seenCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.createdAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.createdAt
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.evicts.Add(1)
	}
}

// forget removes keys so their events are accepted again.
func (c *seenCache) forget(keys []string) {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	c.mu.Unlock()
}

// cleanup removes all expired entries from the cache.
func (c *seenCache) cleanup() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, entry := range c.entries {
		if entry.isExpired(now) {
			delete(c.entries, key)
			count++
		}
	}
	return count
}

// stats returns cache statistics.
func (c *seenCache) stats() (accepted, duplicates, evicts int64, size int) {
	c.mu.Lock()
	size = len(c.entries)
	c.mu.Unlock()
	return c.accepted.Load(), c.duplicates.Load(), c.evicts.Load(), size
}
