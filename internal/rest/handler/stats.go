package handler

import (
	"net/http"

	"github.com/robalyx/socialgraph/internal/rest/convert"
	"github.com/robalyx/socialgraph/internal/rest/types"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// StatsHandler handles the JSON statistics and export endpoints.
type StatsHandler struct {
	engine Engine
	logger *zap.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(engine Engine, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		engine: engine,
		logger: logger,
	}
}

// GetStats returns the current snapshot and scheduler counters.
func (h *StatsHandler) GetStats(w http.ResponseWriter, req bunrouter.Request) error {
	snapshot, err := h.engine.Snapshot(req.Context())
	if err != nil {
		h.logger.Error("Failed to get snapshot", zap.Error(err))
		return writeJSON(w, http.StatusInternalServerError, types.ErrorResponse{Error: "Internal server error"})
	}

	return writeJSON(w, http.StatusOK, convert.Stats(snapshot, h.engine.SchedulerStats()))
}

// PostExport forces an export outside the schedule.
func (h *StatsHandler) PostExport(w http.ResponseWriter, req bunrouter.Request) error {
	if err := h.engine.ExportNow(req.Context()); err != nil {
		h.logger.Error("Forced export failed", zap.Error(err))

		return writeJSON(w, http.StatusInternalServerError, types.ExportResponse{
			Exported:  false,
			Scheduler: convert.Scheduler(h.engine.SchedulerStats()),
		})
	}

	h.logger.Info("Forced export completed")

	return writeJSON(w, http.StatusOK, types.ExportResponse{
		Exported:  true,
		Scheduler: convert.Scheduler(h.engine.SchedulerStats()),
	})
}
