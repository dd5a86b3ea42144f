// internal/adapter/storage/snapshot_store.go

package storage

import (
	"sync"

	"buzztrack/internal/domain/trend"
)

// SnapshotStore implements in-memory storage for cycle snapshots. The
// current snapshot is replaced wholesale at the end of each cycle and a
// bounded history of per-cycle points is kept for charting.
type SnapshotStore struct {
	mu      sync.RWMutex
	current trend.Snapshot
	history []trend.HistoryPoint
	limit   int
}

var _ trend.SnapshotSource = (*SnapshotStore)(nil)

// NewSnapshotStore creates a new snapshot store keeping at most
// historyLimit history points.
func NewSnapshotStore(historyLimit int) *SnapshotStore {
	return &SnapshotStore{
		history: make([]trend.HistoryPoint, 0, historyLimit),
		limit:   historyLimit,
	}
}

// Replace swaps in the snapshot of a finished cycle and appends its history
// point, evicting the oldest point once the limit is reached. Readers see
// either the previous snapshot or the new one, never a mix.
func (s *SnapshotStore) Replace(snap trend.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = snap
	s.history = append(s.history, snap.HistoryPoint())
	if len(s.history) > s.limit {
		s.history = s.history[len(s.history)-s.limit:]
	}
}

// Current returns the latest snapshot. Before the first cycle completes it
// returns the zero snapshot. The entries slice is copied so callers cannot
// mutate stored state.
func (s *SnapshotStore) Current() trend.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.current
	snap.Entries = append([]trend.Entry(nil), s.current.Entries...)
	return snap
}

// History returns the stored history points, oldest first.
func (s *SnapshotStore) History() []trend.HistoryPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]trend.HistoryPoint(nil), s.history...)
}
