package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Engine exposes the coordinator state the status endpoint reports.
type Engine interface {
	Deviations() map[domain.VenueID]float64
	InFlight() bool
}

// StatusHandler serves the engine status (mode, trigger state) for the
// dashboard.
type StatusHandler struct {
	mode      string
	engine    Engine // optional; nil in server-only mode
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler. engine may be nil when the
// process serves the API without running the trigger loop.
func NewStatusHandler(mode string, engine Engine, startedAt time.Time) *StatusHandler {
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	return &StatusHandler{mode: mode, engine: engine, startedAt: startedAt}
}

// GetStatus responds with the current mode, uptime and trigger state.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}
	if h.engine != nil {
		deviations := make(map[string]float64)
		for venue, pct := range h.engine.Deviations() {
			deviations[string(venue)] = pct
		}
		resp["cycle_in_flight"] = h.engine.InFlight()
		resp["deviations_pct"] = deviations
	}
	writeJSON(w, http.StatusOK, resp)
}
