package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(testLogger())
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status got=%d want=200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body got=%v", body)
	}
}

type stubEngine struct {
	inFlight   bool
	deviations map[domain.VenueID]float64
}

func (e *stubEngine) Deviations() map[domain.VenueID]float64 { return e.deviations }
func (e *stubEngine) InFlight() bool                         { return e.inFlight }

func TestStatusReportsEngineState(t *testing.T) {
	engine := &stubEngine{
		inFlight: true,
		deviations: map[domain.VenueID]float64{
			domain.VenueSolana: 0.84,
			domain.VenueEVM:    -0.12,
		},
	}
	h := NewStatusHandler("trade", engine, time.Now().Add(-90*time.Second))

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var body struct {
		Mode          string             `json:"mode"`
		Uptime        int64              `json:"uptime_seconds"`
		InFlight      bool               `json:"cycle_in_flight"`
		DeviationsPct map[string]float64 `json:"deviations_pct"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Mode != "trade" || !body.InFlight {
		t.Fatalf("body got=%+v", body)
	}
	if body.Uptime < 89 {
		t.Fatalf("uptime got=%d", body.Uptime)
	}
	if body.DeviationsPct["solana"] != 0.84 {
		t.Fatalf("deviations got=%v", body.DeviationsPct)
	}
}

func TestStatusWithoutEngine(t *testing.T) {
	h := NewStatusHandler("server", nil, time.Time{})
	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if _, ok := body["cycle_in_flight"]; ok {
		t.Fatal("engine fields must be absent without an engine")
	}
}

type stubOutcomes struct {
	outcomes []domain.CycleOutcome
	err      error
	gotLimit int
}

func (s *stubOutcomes) ListRecent(_ context.Context, limit int) ([]domain.CycleOutcome, error) {
	s.gotLimit = limit
	return s.outcomes, s.err
}

func TestListRecentOutcomes(t *testing.T) {
	store := &stubOutcomes{outcomes: []domain.CycleOutcome{
		{ID: "c-1", Status: domain.CycleExecuted, NetUSD: 3.4},
	}}
	h := NewOutcomeHandler(store, testLogger())

	rec := httptest.NewRecorder()
	h.ListRecent(rec, httptest.NewRequest(http.MethodGet, "/api/outcomes/recent?limit=5", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status got=%d want=200", rec.Code)
	}
	if store.gotLimit != 5 {
		t.Fatalf("limit got=%d want=5", store.gotLimit)
	}
	var body listOutcomesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Outcomes) != 1 || body.Outcomes[0].ID != "c-1" {
		t.Fatalf("body got=%+v", body)
	}
}

func TestListRecentClampsLimit(t *testing.T) {
	store := &stubOutcomes{}
	h := NewOutcomeHandler(store, testLogger())

	rec := httptest.NewRecorder()
	h.ListRecent(rec, httptest.NewRequest(http.MethodGet, "/api/outcomes/recent?limit=9000", nil))

	if store.gotLimit != 200 {
		t.Fatalf("limit got=%d want=200", store.gotLimit)
	}
	var body listOutcomesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Outcomes == nil || len(body.Outcomes) != 0 {
		t.Fatalf("empty list must encode as [], got %+v", body.Outcomes)
	}
}

func TestListRecentStoreFailure(t *testing.T) {
	h := NewOutcomeHandler(&stubOutcomes{err: errors.New("pool closed")}, testLogger())
	rec := httptest.NewRecorder()
	h.ListRecent(rec, httptest.NewRequest(http.MethodGet, "/api/outcomes/recent", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status got=%d want=500", rec.Code)
	}
}

func TestListRecentWithoutStore(t *testing.T) {
	h := NewOutcomeHandler(nil, testLogger())
	rec := httptest.NewRecorder()
	h.ListRecent(rec, httptest.NewRequest(http.MethodGet, "/api/outcomes/recent", nil))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status got=%d want=501", rec.Code)
	}
}
