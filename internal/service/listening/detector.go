// internal/service/listening/detector.go

package listening

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"buzztrack/internal/domain/company"
	"buzztrack/internal/domain/trend"
	"buzztrack/internal/observability"
)

// Source supplies one batch of text items per refresh cycle
type Source interface {
	// Name identifies the source in logs and cycle stats
	Name() string

	// Fetch produces the latest batch of text items
	Fetch(ctx context.Context) ([]string, error)
}

// RegistryLoader produces the company reference list
type RegistryLoader interface {
	Load(ctx context.Context) ([]company.Company, error)
}

// SnapshotStore receives the snapshot published at the end of each cycle
type SnapshotStore interface {
	Replace(s trend.Snapshot)
}

// SourceError wraps a single source's failure for one cycle. It is recovered
// locally: the cycle continues with the remaining sources.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// ErrCycleInFlight is returned when a refresh trigger fires while the
// previous cycle is still running. The trigger is skipped, never queued.
var ErrCycleInFlight = errors.New("refresh cycle already in flight")

// TrendDetectorConfig contains configuration for the trend detector
type TrendDetectorConfig struct {
	Alpha             float64
	ScoreFloor        float64
	TrendingThreshold float64
	ScanInterval      time.Duration
	SourceTimeout     time.Duration
	EventsTopic       string
}

// TrendDetector implements the trend.Detector interface: it drives refresh
// cycles over the configured sources and owns the catalog and baseline state.
type TrendDetector struct {
	sources  []Source
	loader   RegistryLoader
	tracker  *BaselineTracker
	store    SnapshotStore
	eventBus *nats.Conn
	metrics  *observability.Metrics
	config   TrendDetectorConfig

	// registryMu guards the catalog swap on reload
	registryMu sync.RWMutex
	registry   *company.Registry
	matcher    *Matcher

	// cycleMu serializes refresh cycles; TryLock skips overlapping triggers
	cycleMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ trend.Detector = (*TrendDetector)(nil)

// NewTrendDetector creates a new trend detector. eventBus and metrics may be
// nil, disabling event publishing and instrumentation respectively.
func NewTrendDetector(
	registry *company.Registry,
	loader RegistryLoader,
	sources []Source,
	store SnapshotStore,
	eventBus *nats.Conn,
	metrics *observability.Metrics,
	config TrendDetectorConfig,
) *TrendDetector {
	ctx, cancel := context.WithCancel(context.Background())

	td := &TrendDetector{
		sources:  sources,
		loader:   loader,
		tracker:  NewBaselineTracker(config.Alpha, config.ScoreFloor),
		store:    store,
		eventBus: eventBus,
		metrics:  metrics,
		config:   config,
		registry: registry,
		matcher:  NewMatcher(registry),
		ctx:      ctx,
		cancel:   cancel,
	}

	if td.metrics != nil {
		td.metrics.CompaniesTracked.Set(float64(registry.Len()))
	}

	return td
}

// Start runs one refresh cycle immediately so the snapshot is populated at
// startup, then schedules one per scan interval until Stop or ctx
// cancellation.
func (td *TrendDetector) Start(ctx context.Context) error {
	td.wg.Add(1)
	go td.scanLoop(ctx)
	return nil
}

func (td *TrendDetector) scanLoop(ctx context.Context) {
	defer td.wg.Done()

	td.runScheduled(ctx)

	ticker := time.NewTicker(td.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-td.ctx.Done():
			return
		case <-ticker.C:
			td.runScheduled(ctx)
		}
	}
}

func (td *TrendDetector) runScheduled(ctx context.Context) {
	snap, err := td.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, ErrCycleInFlight) {
			log.Printf("trend: previous cycle still running, skipping this trigger")
			return
		}
		log.Printf("trend: cycle failed: %v", err)
		return
	}

	log.Printf("trend: cycle %s complete: %d items from %d/%d sources, %d companies, %v",
		snap.CycleID, snap.Stats.Items,
		snap.Stats.Sources-snap.Stats.FailedSources, snap.Stats.Sources,
		len(snap.Entries), snap.Stats.Elapsed)
}

// RunCycle executes one refresh cycle: fetch all sources, match every item,
// fold the counts into the baselines and publish the snapshot. It returns
// ErrCycleInFlight while a previous cycle is still running; cycles never
// overlap, so baseline state is only ever touched by one cycle at a time.
func (td *TrendDetector) RunCycle(ctx context.Context) (trend.Snapshot, error) {
	if !td.cycleMu.TryLock() {
		return trend.Snapshot{}, ErrCycleInFlight
	}
	defer td.cycleMu.Unlock()

	start := time.Now()

	td.registryMu.RLock()
	registry, matcher := td.registry, td.matcher
	td.registryMu.RUnlock()

	companies := registry.All()
	batches, stats := td.fetchAll(ctx)

	// every registry company gets a count, 0 when unmentioned, so the
	// tracker also updates companies whose mentions dried up
	counts := make(trend.MentionCount, len(companies))
	for _, c := range companies {
		counts[c.Name] = 0
	}
	for _, batch := range batches {
		stats.Items += len(batch)
		for _, item := range batch {
			for _, c := range matcher.Match(item) {
				counts[c.Name]++
			}
		}
	}

	entries := td.tracker.Update(companies, counts)

	stats.Elapsed = time.Since(start)
	snap := trend.Snapshot{
		CycleID:   uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Entries:   entries,
		Stats:     stats,
	}

	td.store.Replace(snap)
	td.publishCycleEvents(snap)
	td.observeCycle(snap)

	return snap, nil
}

// fetchAll retrieves every source's batch concurrently, each fetch bounded
// by its own timeout. Results land in per-source slots so no shared state is
// touched concurrently; failed sources are logged, counted and skipped.
func (td *TrendDetector) fetchAll(ctx context.Context) ([][]string, trend.CycleStats) {
	stats := trend.CycleStats{Sources: len(td.sources)}

	type result struct {
		items []string
		err   error
	}
	results := make([]result, len(td.sources))

	var wg sync.WaitGroup
	for i, src := range td.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()

			fctx, cancel := context.WithTimeout(ctx, td.config.SourceTimeout)
			defer cancel()

			items, err := src.Fetch(fctx)
			if err != nil {
				results[i] = result{err: &SourceError{Source: src.Name(), Err: err}}
				return
			}
			results[i] = result{items: items}
		}(i, src)
	}
	wg.Wait()

	batches := make([][]string, 0, len(td.sources))
	for i, res := range results {
		if res.err != nil {
			log.Printf("trend: skipping source for this cycle: %v", res.err)
			stats.FailedSources++
			if td.metrics != nil {
				td.metrics.SourceFailures.WithLabelValues(td.sources[i].Name()).Inc()
			}
			continue
		}
		if td.metrics != nil {
			td.metrics.SourceItems.WithLabelValues(td.sources[i].Name()).Set(float64(len(res.items)))
		}
		batches = append(batches, res.items)
	}

	return batches, stats
}

// ReloadRegistry reloads the reference list through the configured loader
// and swaps the catalog in. The swap waits for an in-flight cycle to finish,
// so the registry stays immutable during a cycle.
func (td *TrendDetector) ReloadRegistry(ctx context.Context) error {
	records, err := td.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("reloading company reference list: %w", err)
	}

	registry, err := company.BuildRegistry(records)
	if err != nil {
		return err
	}
	for _, w := range registry.Warnings() {
		log.Printf("trend: registry warning: %s", w)
	}

	td.cycleMu.Lock()
	defer td.cycleMu.Unlock()

	td.registryMu.Lock()
	td.registry = registry
	td.matcher = NewMatcher(registry)
	td.registryMu.Unlock()

	if td.metrics != nil {
		td.metrics.CompaniesTracked.Set(float64(registry.Len()))
	}
	log.Printf("trend: registry reloaded with %d companies", registry.Len())

	return nil
}

// publishCycleEvents pushes the cycle results onto the event bus: the
// visible snapshot, one detected event per trending company, and a degraded
// event when sources failed. Publishing is best-effort.
func (td *TrendDetector) publishCycleEvents(snap trend.Snapshot) {
	if td.eventBus == nil {
		return
	}

	visible := snap.Visible(td.config.TrendingThreshold)
	if visible == nil {
		visible = []trend.Entry{}
	}

	// same frame shape the websocket stream seeds clients with
	ev := snap
	ev.Entries = visible
	if data, err := json.Marshal(ev); err == nil {
		topic := fmt.Sprintf("%s.snapshot", td.config.EventsTopic)
		if err := td.eventBus.Publish(topic, data); err != nil {
			log.Printf("trend: publishing snapshot event: %v", err)
		}
	}

	for _, e := range visible {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		topic := fmt.Sprintf("%s.detected", td.config.EventsTopic)
		if err := td.eventBus.Publish(topic, data); err != nil {
			log.Printf("trend: publishing detected event: %v", err)
		}
	}

	if snap.Stats.Degraded() {
		data, _ := json.Marshal(map[string]interface{}{
			"cycle_id":       snap.CycleID,
			"failed_sources": snap.Stats.FailedSources,
			"sources":        snap.Stats.Sources,
		})
		topic := fmt.Sprintf("%s.cycle.degraded", td.config.EventsTopic)
		if err := td.eventBus.Publish(topic, data); err != nil {
			log.Printf("trend: publishing degraded event: %v", err)
		}
	}
}

// observeCycle updates the Prometheus collectors for a finished cycle.
func (td *TrendDetector) observeCycle(snap trend.Snapshot) {
	if td.metrics == nil {
		return
	}

	td.metrics.CyclesTotal.Inc()
	if snap.Stats.Degraded() {
		td.metrics.CyclesDegraded.Inc()
	}
	td.metrics.CycleDuration.Observe(snap.Stats.Elapsed.Seconds())
	td.metrics.ItemsScanned.Add(float64(snap.Stats.Items))
	td.metrics.TrendingCompanies.Set(float64(len(snap.Visible(td.config.TrendingThreshold))))
}

// Stop stops scheduling further cycles and waits for the in-flight one to
// finish, bounded by ctx.
func (td *TrendDetector) Stop(ctx context.Context) error {
	td.cancel()

	c := make(chan struct{})
	go func() {
		td.wg.Wait()
		close(c)
	}()

	select {
	case <-c:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}
