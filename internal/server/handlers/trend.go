// internal/server/handlers/trend.go

package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"buzztrack/internal/domain/company"
	"buzztrack/internal/domain/trend"
	"buzztrack/internal/service/listening"
)

// TrendHandler handles trend-related HTTP requests
type TrendHandler struct {
	snapshots    trend.SnapshotSource
	detector     trend.Detector
	threshold    float64
	displayLimit int
}

// NewTrendHandler creates a new trend handler
func NewTrendHandler(snapshots trend.SnapshotSource, detector trend.Detector, threshold float64, displayLimit int) *TrendHandler {
	return &TrendHandler{
		snapshots:    snapshots,
		detector:     detector,
		threshold:    threshold,
		displayLimit: displayLimit,
	}
}

// GetTrending returns the externally visible entries of the latest snapshot:
// score strictly above the trending threshold, capped at the display limit.
// Both can be overridden per request with min_score and limit.
func (h *TrendHandler) GetTrending(w http.ResponseWriter, r *http.Request) {
	threshold := h.threshold
	if raw := r.URL.Query().Get("min_score"); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid min_score", err)
			return
		}
		threshold = value
	}

	limit := h.displayLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = value
	}

	entries := h.snapshots.Current().Visible(threshold)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	if entries == nil {
		entries = []trend.Entry{}
	}

	respondWithJSON(w, http.StatusOK, entries)
}

// GetAllTrending returns every company with any activity this cycle,
// including entries below the trending threshold. Used by the sectors view.
func (h *TrendHandler) GetAllTrending(w http.ResponseWriter, r *http.Request) {
	entries := h.snapshots.Current().Active()
	if entries == nil {
		entries = []trend.Entry{}
	}

	respondWithJSON(w, http.StatusOK, entries)
}

// GetTopTicker returns the highest-scoring visible entry that has a ticker
func (h *TrendHandler) GetTopTicker(w http.ResponseWriter, r *http.Request) {
	for _, e := range h.snapshots.Current().Visible(h.threshold) {
		if e.Ticker != "" {
			respondWithJSON(w, http.StatusOK, e)
			return
		}
	}

	respondWithError(w, http.StatusNotFound, "no ticker found", nil)
}

// GetChartData returns the bounded history of recent cycles
func (h *TrendHandler) GetChartData(w http.ResponseWriter, r *http.Request) {
	points := h.snapshots.History()
	if points == nil {
		points = []trend.HistoryPoint{}
	}

	respondWithJSON(w, http.StatusOK, points)
}

// RefreshNow triggers a refresh cycle outside the schedule. A trigger that
// lands while a cycle is already running is skipped, not queued.
func (h *TrendHandler) RefreshNow(w http.ResponseWriter, r *http.Request) {
	snap, err := h.detector.RunCycle(r.Context())
	if err != nil {
		if errors.Is(err, listening.ErrCycleInFlight) {
			respondWithError(w, http.StatusConflict, "refresh cycle already in flight", nil)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to run refresh cycle", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"cycle_id": snap.CycleID,
		"degraded": snap.Stats.Degraded(),
	})
}

// ReloadRegistry reloads the company reference list and swaps it in between
// cycles. A list that fails validation leaves the current registry in place.
func (h *TrendHandler) ReloadRegistry(w http.ResponseWriter, r *http.Request) {
	if err := h.detector.ReloadRegistry(r.Context()); err != nil {
		var cfgErr *company.ConfigError
		if errors.As(err, &cfgErr) {
			respondWithError(w, http.StatusBadRequest, cfgErr.Error(), nil)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to reload registry", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Health reports liveness and, once available, the latest cycle outcome
func (h *TrendHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{"status": "ok"}

	if snap := h.snapshots.Current(); snap.CycleID != "" {
		response["last_cycle"] = map[string]interface{}{
			"cycle_id":  snap.CycleID,
			"timestamp": snap.Timestamp,
			"degraded":  snap.Stats.Degraded(),
		}
	}

	respondWithJSON(w, http.StatusOK, response)
}

// Helper for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper for error responses
func respondWithError(w http.ResponseWriter, code int, message string, err error) {
	if err != nil && code >= 500 {
		log.Printf("http: %s: %v", message, err)
	}

	response := map[string]string{"error": message}
	jsonResponse, _ := json.Marshal(response)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(jsonResponse)
}
