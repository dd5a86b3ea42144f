// internal/server/handlers/trend_test.go

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buzztrack/internal/domain/company"
	"buzztrack/internal/domain/trend"
	"buzztrack/internal/service/listening"
)

type fakeSnapshots struct {
	snap trend.Snapshot
	hist []trend.HistoryPoint
}

func (f *fakeSnapshots) Current() trend.Snapshot       { return f.snap }
func (f *fakeSnapshots) History() []trend.HistoryPoint { return f.hist }

type fakeDetector struct {
	snap      trend.Snapshot
	cycleErr  error
	reloadErr error
}

func (f *fakeDetector) Start(ctx context.Context) error { return nil }
func (f *fakeDetector) Stop(ctx context.Context) error  { return nil }
func (f *fakeDetector) RunCycle(ctx context.Context) (trend.Snapshot, error) {
	return f.snap, f.cycleErr
}
func (f *fakeDetector) ReloadRegistry(ctx context.Context) error { return f.reloadErr }

func sampleSnapshot() trend.Snapshot {
	return trend.Snapshot{
		CycleID:   "cycle-1",
		Timestamp: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
		Entries: []trend.Entry{
			{Name: "Alpha Corp", MentionCount: 9, Baseline: 3, Score: 2.0},
			{Name: "Bravo Inc", Ticker: "BRV", MentionCount: 6, Baseline: 3, Score: 1.0},
			{Name: "Charlie Ltd", Ticker: "CHL", MentionCount: 1, Baseline: 1, Score: 0.0},
			{Name: "Quiet Corp", Ticker: "QT", MentionCount: 0, Baseline: 2, Score: -0.5},
		},
		Stats: trend.CycleStats{Sources: 2, Items: 40},
	}
}

func newTestHandler(snap trend.Snapshot) *TrendHandler {
	return NewTrendHandler(&fakeSnapshots{snap: snap}, &fakeDetector{}, 0, 20)
}

func decodeEntries(t *testing.T, rec *httptest.ResponseRecorder) []trend.Entry {
	t.Helper()
	var entries []trend.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	return entries
}

func TestGetTrending(t *testing.T) {
	h := newTestHandler(sampleSnapshot())

	rec := httptest.NewRecorder()
	h.GetTrending(rec, httptest.NewRequest(http.MethodGet, "/api/trending", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	entries := decodeEntries(t, rec)
	require.Len(t, entries, 2, "entries at or below the threshold stay hidden")
	assert.Equal(t, "Alpha Corp", entries[0].Name)
	assert.Equal(t, "Bravo Inc", entries[1].Name)
}

func TestGetTrendingLimit(t *testing.T) {
	h := newTestHandler(sampleSnapshot())

	rec := httptest.NewRecorder()
	h.GetTrending(rec, httptest.NewRequest(http.MethodGet, "/api/trending?limit=1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeEntries(t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, "Alpha Corp", entries[0].Name)
}

func TestGetTrendingMinScoreOverride(t *testing.T) {
	h := newTestHandler(sampleSnapshot())

	rec := httptest.NewRecorder()
	h.GetTrending(rec, httptest.NewRequest(http.MethodGet, "/api/trending?min_score=1.5", nil))

	entries := decodeEntries(t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, "Alpha Corp", entries[0].Name)
}

func TestGetTrendingRejectsBadParams(t *testing.T) {
	h := newTestHandler(sampleSnapshot())

	for _, target := range []string{
		"/api/trending?limit=abc",
		"/api/trending?limit=0",
		"/api/trending?min_score=much",
	} {
		rec := httptest.NewRecorder()
		h.GetTrending(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestGetTrendingEmptySnapshot(t *testing.T) {
	h := newTestHandler(trend.Snapshot{})

	rec := httptest.NewRecorder()
	h.GetTrending(rec, httptest.NewRequest(http.MethodGet, "/api/trending", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetAllTrending(t *testing.T) {
	h := newTestHandler(sampleSnapshot())

	rec := httptest.NewRecorder()
	h.GetAllTrending(rec, httptest.NewRequest(http.MethodGet, "/api/trending/all", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeEntries(t, rec)

	// Charlie had activity this cycle even though it is not trending;
	// Quiet had none at all
	require.Len(t, entries, 3)
	assert.Equal(t, "Charlie Ltd", entries[2].Name)
}

func TestGetTopTicker(t *testing.T) {
	h := newTestHandler(sampleSnapshot())

	rec := httptest.NewRecorder()
	h.GetTopTicker(rec, httptest.NewRequest(http.MethodGet, "/api/top_ticker", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var entry trend.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))

	// Alpha Corp scores higher but has no ticker
	assert.Equal(t, "BRV", entry.Ticker)
}

func TestGetTopTickerNotFound(t *testing.T) {
	snap := trend.Snapshot{
		CycleID: "cycle-1",
		Entries: []trend.Entry{{Name: "Alpha Corp", MentionCount: 9, Score: 2.0}},
	}
	h := newTestHandler(snap)

	rec := httptest.NewRecorder()
	h.GetTopTicker(rec, httptest.NewRequest(http.MethodGet, "/api/top_ticker", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"no ticker found"}`, rec.Body.String())
}

func TestGetChartData(t *testing.T) {
	hist := []trend.HistoryPoint{
		{CycleID: "c1", Companies: map[string]trend.HistoryCompany{"Alpha Corp": {Score: 0.5, MentionCount: 3}}},
		{CycleID: "c2", Companies: map[string]trend.HistoryCompany{"Alpha Corp": {Score: 0.2, MentionCount: 4}}},
	}
	h := NewTrendHandler(&fakeSnapshots{hist: hist}, &fakeDetector{}, 0, 20)

	rec := httptest.NewRecorder()
	h.GetChartData(rec, httptest.NewRequest(http.MethodGet, "/api/chart_data", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var points []trend.HistoryPoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	require.Len(t, points, 2)
	assert.Equal(t, "c1", points[0].CycleID)
}

func TestGetChartDataEmpty(t *testing.T) {
	h := NewTrendHandler(&fakeSnapshots{}, &fakeDetector{}, 0, 20)

	rec := httptest.NewRecorder()
	h.GetChartData(rec, httptest.NewRequest(http.MethodGet, "/api/chart_data", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHealth(t *testing.T) {
	h := NewTrendHandler(&fakeSnapshots{}, &fakeDetector{}, 0, 20)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthReportsLastCycle(t *testing.T) {
	snap := sampleSnapshot()
	snap.Stats.FailedSources = 1
	h := newTestHandler(snap)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	var body struct {
		Status    string `json:"status"`
		LastCycle struct {
			CycleID  string `json:"cycle_id"`
			Degraded bool   `json:"degraded"`
		} `json:"last_cycle"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "cycle-1", body.LastCycle.CycleID)
	assert.True(t, body.LastCycle.Degraded)
}

func TestRefreshNow(t *testing.T) {
	detector := &fakeDetector{snap: sampleSnapshot()}
	h := NewTrendHandler(&fakeSnapshots{}, detector, 0, 20)

	rec := httptest.NewRecorder()
	h.RefreshNow(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cycle-1")
}

func TestRefreshNowConflictWhileRunning(t *testing.T) {
	detector := &fakeDetector{cycleErr: listening.ErrCycleInFlight}
	h := NewTrendHandler(&fakeSnapshots{}, detector, 0, 20)

	rec := httptest.NewRecorder()
	h.RefreshNow(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReloadRegistry(t *testing.T) {
	h := NewTrendHandler(&fakeSnapshots{}, &fakeDetector{}, 0, 20)

	rec := httptest.NewRecorder()
	h.ReloadRegistry(rec, httptest.NewRequest(http.MethodPost, "/api/registry/reload", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReloadRegistryBadList(t *testing.T) {
	detector := &fakeDetector{reloadErr: &company.ConfigError{
		Key:    "acme",
		Detail: `duplicate key for "Alpha" and "Beta"`,
	}}
	h := NewTrendHandler(&fakeSnapshots{}, detector, 0, 20)

	rec := httptest.NewRecorder()
	h.ReloadRegistry(rec, httptest.NewRequest(http.MethodPost, "/api/registry/reload", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "acme")
}

func TestReloadRegistryLoaderFailure(t *testing.T) {
	detector := &fakeDetector{reloadErr: errors.New("connection refused")}
	h := NewTrendHandler(&fakeSnapshots{}, detector, 0, 20)

	rec := httptest.NewRecorder()
	h.ReloadRegistry(rec, httptest.NewRequest(http.MethodPost, "/api/registry/reload", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
