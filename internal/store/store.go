// Package store defines the persistence boundary for the attendance state.
package store

import (
	"context"

	"github.com/kozaktomas/class-track/internal/engine"
)

// SnapshotStore loads and saves the complete application state. The state
// manager treats it as an opaque durable backing, so snapshots are always
// written whole.
type SnapshotStore interface {
	// Load returns the last persisted snapshot. A store with no data yet
	// returns an empty snapshot, not an error.
	Load(ctx context.Context) (*engine.Snapshot, error)

	// Save persists the snapshot atomically. A failed save must leave the
	// previously persisted snapshot intact.
	Save(ctx context.Context, snap *engine.Snapshot) error
}
