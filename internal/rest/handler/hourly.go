package handler

import (
	"context"
	"net/http"

	"github.com/robalyx/socialgraph/internal/rest/convert"
	"github.com/robalyx/socialgraph/internal/rest/types"
	"github.com/robalyx/socialgraph/internal/statistics"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// HourlyStatsSource reads back the reported hourly statistics.
type HourlyStatsSource interface {
	GetHourlyStats(ctx context.Context) ([]statistics.HourlyStat, error)
}

// HourlyHandler serves the statistics history.
type HourlyHandler struct {
	source HourlyStatsSource
	logger *zap.Logger
}

// NewHourlyHandler creates a new hourly statistics handler.
func NewHourlyHandler(source HourlyStatsSource, logger *zap.Logger) *HourlyHandler {
	return &HourlyHandler{
		source: source,
		logger: logger,
	}
}

// GetHourlyStats returns the last 24 hours of reported statistics, oldest first.
func (h *HourlyHandler) GetHourlyStats(w http.ResponseWriter, req bunrouter.Request) error {
	stats, err := h.source.GetHourlyStats(req.Context())
	if err != nil {
		h.logger.Error("Failed to get hourly stats", zap.Error(err))
		return writeJSON(w, http.StatusInternalServerError, types.ErrorResponse{Error: "Internal server error"})
	}

	return writeJSON(w, http.StatusOK, convert.Hourly(stats))
}
