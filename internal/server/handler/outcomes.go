package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// OutcomeLister is the read side of the outcome store the handler needs.
type OutcomeLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.CycleOutcome, error)
}

// OutcomeHandler serves recorded cycle outcomes.
type OutcomeHandler struct {
	outcomes OutcomeLister // optional; when nil the endpoint returns 501
	logger   *slog.Logger
}

// NewOutcomeHandler creates an OutcomeHandler. outcomes may be nil when no
// persistent store is configured.
func NewOutcomeHandler(outcomes OutcomeLister, logger *slog.Logger) *OutcomeHandler {
	return &OutcomeHandler{outcomes: outcomes, logger: logger}
}

// listOutcomesResponse wraps the recent outcomes response.
type listOutcomesResponse struct {
	Outcomes []domain.CycleOutcome `json:"outcomes"`
}

// ListRecent returns the most recent cycle outcomes, newest first.
// GET /api/outcomes/recent?limit=20
func (h *OutcomeHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	if h.outcomes == nil {
		writeError(w, http.StatusNotImplemented, "outcome persistence not configured")
		return
	}

	limit := queryLimit(r, 20, 200)

	outcomes, err := h.outcomes.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list outcomes failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list outcomes")
		return
	}

	if outcomes == nil {
		outcomes = []domain.CycleOutcome{}
	}
	writeJSON(w, http.StatusOK, listOutcomesResponse{Outcomes: outcomes})
}
