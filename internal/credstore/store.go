// Package credstore persists the long-lived refresh credential.
//
// Stores never fail loudly: a read that cannot be completed reports the
// credential as absent and a write that cannot be completed is dropped, since
// the only consumer treats absence as "not signed in".
package credstore

import (
	"context"
	"sync"
)

// Store holds at most one refresh credential.
type Store interface {
	Get(ctx context.Context) (string, bool)
	Set(ctx context.Context, token string)
	Clear(ctx context.Context)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(context.Context) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.token != ""
}

func (m *MemoryStore) Set(_ context.Context, token string) {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}

func (m *MemoryStore) Clear(context.Context) {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
}
