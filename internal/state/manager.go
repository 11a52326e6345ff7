// Package state owns the live application snapshot and serializes writes
// against the durable store.
package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/kozaktomas/class-track/internal/engine"
	"github.com/kozaktomas/class-track/internal/store"
)

// Manager holds the authoritative in-memory snapshot. Reads see a consistent
// snapshot under a shared lock; writes clone the snapshot, apply a mutation,
// persist the result, and only then swap it in. A failed save leaves both
// memory and storage on the previous snapshot.
type Manager struct {
	mu    sync.RWMutex
	snap  *engine.Snapshot
	store store.SnapshotStore
}

// NewManager loads the persisted snapshot and returns a manager over it.
func NewManager(ctx context.Context, st store.SnapshotStore) (*Manager, error) {
	snap, err := st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading initial snapshot: %w", err)
	}
	if snap == nil {
		snap = &engine.Snapshot{}
	}
	return &Manager{snap: snap, store: st}, nil
}

// Read runs fn against the current snapshot under a shared lock. The
// snapshot must not be retained or mutated by fn.
func (m *Manager) Read(fn func(s *engine.Snapshot)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.snap)
}

// Cloned returns a deep copy of the current snapshot, safe to use without
// holding any lock. Used when the caller needs snapshot data across a slow
// operation such as an oracle call.
func (m *Manager) Cloned() *engine.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Clone()
}

// Update applies fn to a clone of the current snapshot, persists the result,
// and swaps it in. fn returning an error abandons the mutation. The write
// lock covers the whole cycle, so concurrent updates are serialized and each
// fn sees the effects of all previously committed updates.
func (m *Manager) Update(ctx context.Context, fn func(s *engine.Snapshot) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.snap.Clone()
	if err := fn(next); err != nil {
		return err
	}

	if err := m.store.Save(ctx, next); err != nil {
		return fmt.Errorf("persisting snapshot: %w", err)
	}

	m.snap = next
	return nil
}
