// internal/service/listening/baseline.go

package listening

import (
	"math"
	"sort"

	"buzztrack/internal/domain/company"
	"buzztrack/internal/domain/trend"
)

// BaselineTracker owns the per-company EMA state that survives across
// refresh cycles. The whole mention history of a company is summarized by a
// single scalar, so an update costs O(number of companies) no matter how
// many cycles have elapsed. The tracker is not safe for concurrent use; the
// detector's cycle lock serializes updates.
type BaselineTracker struct {
	alpha float64
	floor float64
	state map[string]*baselineState
}

type baselineState struct {
	ema       float64
	lastCount int
}

// NewBaselineTracker creates an empty tracker. alpha is the EMA smoothing
// factor in (0,1); a lower alpha gives the baseline more historical inertia.
// floor bounds the score denominator away from zero so a company going from
// 0 to 1 mention does not register an enormous score.
func NewBaselineTracker(alpha, floor float64) *BaselineTracker {
	return &BaselineTracker{
		alpha: alpha,
		floor: floor,
		state: make(map[string]*baselineState),
	}
}

// Update folds one cycle's counts into the baseline state and returns the
// scored entries, sorted by descending score, ties by descending mention
// count, then by name ascending. A company observed for the first time
// scores 0: one observation is not enough history to call a spike.
func (t *BaselineTracker) Update(companies []company.Company, counts trend.MentionCount) []trend.Entry {
	entries := make([]trend.Entry, 0, len(companies))

	for _, c := range companies {
		x := counts[c.Name]
		st, ok := t.state[c.Name]
		var score float64
		if !ok {
			st = &baselineState{ema: float64(x), lastCount: x}
			t.state[c.Name] = st
		} else {
			prev := st.ema
			score = (float64(x) - prev) / math.Max(prev, t.floor)
			st.ema = t.alpha*float64(x) + (1-t.alpha)*prev
			st.lastCount = x
		}

		entries = append(entries, trend.Entry{
			Name:         c.Name,
			Ticker:       c.Ticker,
			MentionCount: x,
			Baseline:     st.ema,
			Score:        score,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].MentionCount != entries[j].MentionCount {
			return entries[i].MentionCount > entries[j].MentionCount
		}
		return entries[i].Name < entries[j].Name
	})

	return entries
}
