// internal/domain/trend/detector.go

package trend

import (
	"context"
)

// Detector defines the interface for the refresh-cycle driver
type Detector interface {
	// Start begins periodic refresh cycles
	Start(ctx context.Context) error

	// Stop gracefully stops scheduling; an in-flight cycle finishes
	Stop(ctx context.Context) error

	// RunCycle executes one refresh cycle and returns its snapshot
	RunCycle(ctx context.Context) (Snapshot, error)

	// ReloadRegistry reloads the company reference list between cycles
	ReloadRegistry(ctx context.Context) error
}

// SnapshotSource exposes published snapshots to readers
type SnapshotSource interface {
	// Current returns the latest complete snapshot
	Current() Snapshot

	// History returns recent cycles' chart points, oldest first
	History() []HistoryPoint
}
