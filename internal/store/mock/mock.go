// Package mock provides an in-memory snapshot store for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/class-track/internal/engine"
)

// SnapshotStore is an in-memory implementation of store.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	snap *engine.Snapshot

	// SaveCount tracks how many times Save was called.
	SaveCount int

	// Error injection
	LoadError error
	SaveError error
}

// NewSnapshotStore creates an empty in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Seed replaces the stored snapshot without counting as a save.
func (m *SnapshotStore) Seed(snap *engine.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap.Clone()
}

// Load returns a copy of the stored snapshot, or an empty snapshot if
// nothing has been saved yet.
func (m *SnapshotStore) Load(ctx context.Context) (*engine.Snapshot, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snap == nil {
		return &engine.Snapshot{}, nil
	}
	return m.snap.Clone(), nil
}

// Save stores a copy of the snapshot.
func (m *SnapshotStore) Save(ctx context.Context, snap *engine.Snapshot) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap.Clone()
	m.SaveCount++
	return nil
}

// Stored returns the last saved snapshot for assertions, without copying.
func (m *SnapshotStore) Stored() *engine.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}
