// Tenpo - Youth Sports Camp Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenpo

package authflow

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrFlowNotFound is returned for unknown or expired flow IDs.
var ErrFlowNotFound = errors.New("flow not found")

// Flow is a persisted widget session.
type Flow struct {
	ID    string `json:"id"`
	State State  `json:"state"`

	// TickedAt is the instant up to which cooldown ticks were applied.
	TickedAt  time.Time `json:"ticked_at"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether f is past its expiry at now.
func (f *Flow) Expired(now time.Time) bool {
	return !f.ExpiresAt.IsZero() && !now.Before(f.ExpiresAt)
}

func (f *Flow) clone() *Flow {
	cp := *f
	cp.State = f.State.clone()
	return &cp
}

// Store persists flows.
type Store interface {
	Get(ctx context.Context, id string) (*Flow, error)
	Put(ctx context.Context, f *Flow) error
	Delete(ctx context.Context, id string) error

	// CleanupExpired removes expired flows and returns how many it removed.
	CleanupExpired(ctx context.Context) (int, error)

	Close() error
}

// MemoryStore keeps flows in process.
type MemoryStore struct {
	mu    sync.RWMutex
	flows map[string]*Flow
	now   func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flows: make(map[string]*Flow), now: time.Now}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (*Flow, error) {
	m.mu.RLock()
	f, ok := m.flows[id]
	m.mu.RUnlock()
	if !ok || f.Expired(m.now()) {
		return nil, ErrFlowNotFound
	}
	return f.clone(), nil
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, f *Flow) error {
	m.mu.Lock()
	m.flows[f.ID] = f.clone()
	m.mu.Unlock()
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.flows, id)
	m.mu.Unlock()
	return nil
}

// CleanupExpired implements Store.
func (m *MemoryStore) CleanupExpired(_ context.Context) (int, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, f := range m.flows {
		if f.Expired(now) {
			delete(m.flows, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored flows, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.flows)
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}
