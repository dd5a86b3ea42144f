// internal/domain/trend/model.go

package trend

import (
	"time"
)

// MentionCount maps a company's canonical name to the number of text items
// mentioning it during one refresh cycle. It covers every company in the
// registry, with 0 for companies that had no mentions, so baselines of quiet
// companies keep decaying.
type MentionCount map[string]int

// Entry is one company's row in a snapshot.
type Entry struct {
	Name         string  `json:"name"`
	Ticker       string  `json:"ticker"`
	MentionCount int     `json:"mentionCount"`
	Baseline     float64 `json:"baseline"`
	Score        float64 `json:"score"`
}

// CycleStats records how a refresh cycle went. FailedSources > 0 marks the
// cycle as degraded: its snapshot is based on fewer sources than configured.
type CycleStats struct {
	Sources       int           `json:"sources"`
	FailedSources int           `json:"failed_sources"`
	Items         int           `json:"items"`
	Elapsed       time.Duration `json:"elapsed_ns"`
}

// Degraded reports whether at least one source failed to supply data.
func (s CycleStats) Degraded() bool {
	return s.FailedSources > 0
}

// Snapshot is the complete result of one refresh cycle. Entries are sorted
// by descending score, ties broken by descending mention count, then by
// name ascending.
type Snapshot struct {
	CycleID   string     `json:"cycle_id"`
	Timestamp time.Time  `json:"timestamp"`
	Entries   []Entry    `json:"entries"`
	Stats     CycleStats `json:"stats"`
}

// Visible returns the externally-visible entries: those whose score strictly
// exceeds the trending threshold. Order is preserved.
func (s Snapshot) Visible(threshold float64) []Entry {
	var out []Entry
	for _, e := range s.Entries {
		if e.Score > threshold {
			out = append(out, e)
		}
	}
	return out
}

// Active returns every entry with any activity this cycle: a nonzero mention
// count or a positive score. Order is preserved.
func (s Snapshot) Active() []Entry {
	var out []Entry
	for _, e := range s.Entries {
		if e.MentionCount > 0 || e.Score > 0 {
			out = append(out, e)
		}
	}
	return out
}

// HistoryCompany is one company's contribution to a chart point.
type HistoryCompany struct {
	Score        float64 `json:"score"`
	MentionCount int     `json:"mentionCount"`
}

// HistoryPoint is one cycle's contribution to the chart series. Only active
// companies are recorded so points stay small.
type HistoryPoint struct {
	CycleID   string                    `json:"cycle_id"`
	Timestamp time.Time                 `json:"timestamp"`
	Companies map[string]HistoryCompany `json:"companies"`
}

// HistoryPoint condenses the snapshot into a chart point.
func (s Snapshot) HistoryPoint() HistoryPoint {
	p := HistoryPoint{
		CycleID:   s.CycleID,
		Timestamp: s.Timestamp,
		Companies: make(map[string]HistoryCompany),
	}
	for _, e := range s.Active() {
		p.Companies[e.Name] = HistoryCompany{Score: e.Score, MentionCount: e.MentionCount}
	}
	return p
}
