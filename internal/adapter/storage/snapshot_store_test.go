// internal/adapter/storage/snapshot_store_test.go

package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buzztrack/internal/domain/trend"
)

func snapshotWith(id string, entries ...trend.Entry) trend.Snapshot {
	return trend.Snapshot{
		CycleID:   id,
		Timestamp: time.Now().UTC(),
		Entries:   entries,
	}
}

func TestSnapshotStoreReplaceAndCurrent(t *testing.T) {
	store := NewSnapshotStore(10)

	// zero snapshot before the first cycle
	assert.Empty(t, store.Current().CycleID)
	assert.Empty(t, store.Current().Entries)

	store.Replace(snapshotWith("c1", trend.Entry{Name: "Tesla", MentionCount: 2}))
	store.Replace(snapshotWith("c2", trend.Entry{Name: "Tesla", MentionCount: 5}))

	cur := store.Current()
	assert.Equal(t, "c2", cur.CycleID)
	require.Len(t, cur.Entries, 1)
	assert.Equal(t, 5, cur.Entries[0].MentionCount)
}

func TestSnapshotStoreCurrentIsACopy(t *testing.T) {
	store := NewSnapshotStore(10)
	store.Replace(snapshotWith("c1", trend.Entry{Name: "Tesla", Score: 1}))

	cur := store.Current()
	cur.Entries[0].Score = -99

	assert.Equal(t, 1.0, store.Current().Entries[0].Score)
}

func TestSnapshotStoreHistoryRing(t *testing.T) {
	store := NewSnapshotStore(3)

	for i := 0; i < 5; i++ {
		store.Replace(snapshotWith(fmt.Sprintf("c%d", i), trend.Entry{Name: "Tesla", MentionCount: i + 1}))
	}

	hist := store.History()
	require.Len(t, hist, 3)
	assert.Equal(t, "c2", hist[0].CycleID)
	assert.Equal(t, "c4", hist[2].CycleID)
}

func TestSnapshotStoreHistoryKeepsActiveCompaniesOnly(t *testing.T) {
	store := NewSnapshotStore(10)
	store.Replace(snapshotWith("c1",
		trend.Entry{Name: "Tesla", MentionCount: 3, Score: 0.5},
		trend.Entry{Name: "Quiet Corp", MentionCount: 0, Score: 0},
	))

	hist := store.History()
	require.Len(t, hist, 1)
	require.Contains(t, hist[0].Companies, "Tesla")
	assert.NotContains(t, hist[0].Companies, "Quiet Corp")
	assert.Equal(t, 3, hist[0].Companies["Tesla"].MentionCount)
	assert.Equal(t, 0.5, hist[0].Companies["Tesla"].Score)
}
