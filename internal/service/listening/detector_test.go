// internal/service/listening/detector_test.go

package listening

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buzztrack/internal/domain/company"
	"buzztrack/internal/domain/trend"
)

type stubSource struct {
	name  string
	items []string
	err   error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.items, nil
}

type blockingSource struct {
	startOnce sync.Once
	started   chan struct{}
	release   chan struct{}
}

func (s *blockingSource) Name() string { return "blocking" }

func (s *blockingSource) Fetch(ctx context.Context) ([]string, error) {
	s.startOnce.Do(func() { close(s.started) })
	select {
	case <-s.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type stubLoader struct {
	records []company.Company
	err     error
}

func (l *stubLoader) Load(ctx context.Context) ([]company.Company, error) {
	return l.records, l.err
}

type memorySnapshots struct {
	mu    sync.Mutex
	snaps []trend.Snapshot
}

func (m *memorySnapshots) Replace(s trend.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, s)
}

func (m *memorySnapshots) last(t *testing.T) trend.Snapshot {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snaps) == 0 {
		t.Fatal("no snapshot published")
	}
	return m.snaps[len(m.snaps)-1]
}

func (m *memorySnapshots) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snaps)
}

func testConfig() TrendDetectorConfig {
	return TrendDetectorConfig{
		Alpha:             0.5,
		ScoreFloor:        1.0,
		TrendingThreshold: 0,
		ScanInterval:      time.Minute,
		SourceTimeout:     time.Second,
		EventsTopic:       "trend",
	}
}

func TestRunCycleEndToEnd(t *testing.T) {
	reg := mustRegistry(t, []company.Company{
		{Name: "Tesla", Ticker: "TSLA", Aliases: []string{"tesla"}},
		{Name: "Quiet Corp", Ticker: "QT"},
	})
	src := &stubSource{name: "news", items: []string{"Tesla stock surges", "Tesla earnings beat"}}
	store := &memorySnapshots{}

	td := NewTrendDetector(reg, nil, []Source{src}, store, nil, nil, testConfig())

	snap, err := td.RunCycle(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, snap.CycleID)
	assert.False(t, snap.Timestamp.IsZero())
	assert.Equal(t, 1, snap.Stats.Sources)
	assert.Equal(t, 0, snap.Stats.FailedSources)
	assert.Equal(t, 2, snap.Stats.Items)
	assert.False(t, snap.Stats.Degraded())

	// every registry company appears, zero-filled when unmentioned
	require.Len(t, snap.Entries, 2)

	tesla := snap.Entries[0]
	assert.Equal(t, "Tesla", tesla.Name)
	assert.Equal(t, 2, tesla.MentionCount)
	assert.Equal(t, 2.0, tesla.Baseline)
	assert.Equal(t, 0.0, tesla.Score)

	quiet := snap.Entries[1]
	assert.Equal(t, "Quiet Corp", quiet.Name)
	assert.Equal(t, 0, quiet.MentionCount)
	assert.Equal(t, 0.0, quiet.Score)

	// the published snapshot is the returned one
	assert.Equal(t, snap.CycleID, store.last(t).CycleID)

	// second cycle with the same counts: ema already at 2, score stays 0
	snap, err = td.RunCycle(context.Background())
	require.NoError(t, err)
	tesla = snap.Entries[0]
	assert.Equal(t, 0.0, tesla.Score)
	assert.Equal(t, 2.0, tesla.Baseline)
}

func TestRunCycleDegraded(t *testing.T) {
	reg := mustRegistry(t, []company.Company{
		{Name: "Tesla", Ticker: "TSLA"},
	})
	good := &stubSource{name: "news", items: []string{"Tesla up", "Tesla down"}}
	bad := &stubSource{name: "social", err: errors.New("connection refused")}
	store := &memorySnapshots{}

	td := NewTrendDetector(reg, nil, []Source{good, bad}, store, nil, nil, testConfig())

	snap, err := td.RunCycle(context.Background())
	require.NoError(t, err, "a failed source must not abort the cycle")

	assert.Equal(t, 2, snap.Stats.Sources)
	assert.Equal(t, 1, snap.Stats.FailedSources)
	assert.True(t, snap.Stats.Degraded())

	// the surviving source's items were still counted
	assert.Equal(t, 2, snap.Stats.Items)
	assert.Equal(t, 2, snap.Entries[0].MentionCount)
}

func TestRunCycleAllSourcesFailed(t *testing.T) {
	reg := mustRegistry(t, []company.Company{{Name: "Tesla", Ticker: "TSLA"}})
	bad := &stubSource{name: "news", err: errors.New("boom")}
	store := &memorySnapshots{}

	td := NewTrendDetector(reg, nil, []Source{bad}, store, nil, nil, testConfig())

	snap, err := td.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Stats.FailedSources)
	assert.Equal(t, 0, snap.Stats.Items)
	assert.Equal(t, 0, snap.Entries[0].MentionCount)
}

func TestRunCycleOverlapSkipped(t *testing.T) {
	reg := mustRegistry(t, []company.Company{{Name: "Tesla", Ticker: "TSLA"}})
	blocker := &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
	store := &memorySnapshots{}

	td := NewTrendDetector(reg, nil, []Source{blocker}, store, nil, nil, testConfig())

	done := make(chan error, 1)
	go func() {
		_, err := td.RunCycle(context.Background())
		done <- err
	}()

	<-blocker.started
	_, err := td.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleInFlight)

	close(blocker.release)
	require.NoError(t, <-done)

	// with the first cycle finished the lock is free again
	_, err = td.RunCycle(context.Background())
	require.NoError(t, err)
}

func TestReloadRegistrySwapsCatalog(t *testing.T) {
	reg := mustRegistry(t, []company.Company{{Name: "Tesla", Ticker: "TSLA"}})
	loader := &stubLoader{records: []company.Company{{Name: "Nvidia", Ticker: "NVDA"}}}
	src := &stubSource{name: "news", items: []string{"Nvidia rips higher"}}
	store := &memorySnapshots{}

	td := NewTrendDetector(reg, loader, []Source{src}, store, nil, nil, testConfig())

	snap, err := td.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "Tesla", snap.Entries[0].Name)
	assert.Equal(t, 0, snap.Entries[0].MentionCount)

	require.NoError(t, td.ReloadRegistry(context.Background()))

	snap, err = td.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "Nvidia", snap.Entries[0].Name)
	assert.Equal(t, 1, snap.Entries[0].MentionCount)
}

func TestReloadRegistryRejectsAmbiguousList(t *testing.T) {
	reg := mustRegistry(t, []company.Company{{Name: "Tesla", Ticker: "TSLA"}})
	loader := &stubLoader{records: []company.Company{
		{Name: "Alpha", Aliases: []string{"ACME"}},
		{Name: "Beta", Aliases: []string{"acme"}},
	}}
	store := &memorySnapshots{}

	td := NewTrendDetector(reg, loader, nil, store, nil, nil, testConfig())

	err := td.ReloadRegistry(context.Background())
	var cfgErr *company.ConfigError
	require.True(t, errors.As(err, &cfgErr))

	// the old catalog stays in place after a rejected reload
	snap, err := td.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Tesla", snap.Entries[0].Name)
}

func TestReloadRegistryLoaderFailure(t *testing.T) {
	reg := mustRegistry(t, []company.Company{{Name: "Tesla", Ticker: "TSLA"}})
	loader := &stubLoader{err: errors.New("connection reset")}

	td := NewTrendDetector(reg, loader, nil, &memorySnapshots{}, nil, nil, testConfig())

	err := td.ReloadRegistry(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, loader.err)
}

func TestStartRunsImmediateCycleAndStops(t *testing.T) {
	reg := mustRegistry(t, []company.Company{{Name: "Tesla", Ticker: "TSLA"}})
	src := &stubSource{name: "news", items: []string{"Tesla again"}}
	store := &memorySnapshots{}

	cfg := testConfig()
	cfg.ScanInterval = 5 * time.Millisecond

	td := NewTrendDetector(reg, nil, []Source{src}, store, nil, nil, cfg)
	require.NoError(t, td.Start(context.Background()))

	deadline := time.After(2 * time.Second)
	for store.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 2 cycles, got %d", store.count())
		case <-time.After(time.Millisecond):
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, td.Stop(ctx))

	// no further cycles after Stop
	n := store.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, store.count())
}
