// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vkadminext

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// oauthStateManager keeps the state values of authorization dialogs that
// have been started but not completed.
//
// Flow:
// 1. Admin opens GET /oauth/authorize?group_id=... and is redirected to VK
// 2. A single-use state bound to the requested communities is generated
// 3. VK redirects back to GET /oauth/callback?code=...&state=...
// 4. The state is consumed and the code exchanged for community tokens
type oauthStateManager struct {
	mu     sync.Mutex
	states map[string]*pendingAuth
	ttl    time.Duration
	now    func() time.Time
}

// pendingAuth is a started authorization dialog.
type pendingAuth struct {
	State     string
	GroupIDs  []int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

func newOAuthStateManager(ttl time.Duration) *oauthStateManager {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &oauthStateManager{
		states: make(map[string]*pendingAuth),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate creates a new state for an authorization of groupIDs.
func (m *oauthStateManager) Generate(groupIDs []int64) *pendingAuth {
	b := make([]byte, 32)
	_, _ = rand.Read(b)

	now := m.now()
	p := &pendingAuth{
		State:     hex.EncodeToString(b),
		GroupIDs:  groupIDs,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	m.states[p.State] = p
	m.mu.Unlock()
	return p
}

// Consume validates a state and removes it (single-use).
// Returns nil for unknown or expired states.
func (m *oauthStateManager) Consume(state string) *pendingAuth {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.states[state]
	if !exists {
		return nil
	}
	delete(m.states, state)

	if m.now().After(p.ExpiresAt) {
		return nil
	}
	return p
}

// cleanup removes expired states.
func (m *oauthStateManager) cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for state, p := range m.states {
		if now.After(p.ExpiresAt) {
			delete(m.states, state)
			removed++
		}
	}
	return removed
}

// Count returns the number of pending authorizations.
func (m *oauthStateManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}
