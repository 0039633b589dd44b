package handler

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// GEXFContentType is the media type of GEXF documents.
const GEXFContentType = "application/gexf+xml"

// StatusHandler serves the plain-text status page and the exported graph file.
type StatusHandler struct {
	engine    Engine
	graphFile string
	logger    *zap.Logger
}

// NewStatusHandler creates a new status handler. graphFile is the path of the
// GEXF export served at /data/graph.gexf.
func NewStatusHandler(engine Engine, graphFile string, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		engine:    engine,
		graphFile: graphFile,
		logger:    logger,
	}
}

// GetStatus renders the status page.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, req bunrouter.Request) error {
	snapshot, err := h.engine.Snapshot(req.Context())
	if err != nil {
		h.logger.Error("Failed to get snapshot", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	var b strings.Builder

	b.WriteString("Statistics\n")
	b.WriteString("==========\n")
	fmt.Fprintf(&b, "Total users: %d\n", snapshot.OptedInCount)
	fmt.Fprintf(&b, "Total unique mentions: %d\n", snapshot.UniquePairs)
	fmt.Fprintf(&b, "Total mentions: %d\n", snapshot.TotalMentions)
	fmt.Fprintf(&b, "Graph exports: %d\n", snapshot.ExportsPerformed)
	b.WriteString("\n")
	b.WriteString("Endpoints\n")
	b.WriteString("=========\n")
	b.WriteString("/ - This page\n")
	b.WriteString("/data/graph.gexf - GEXF graph data\n")
	b.WriteString("/v1/stats - Statistics as JSON\n")
	b.WriteString("/metrics - Prometheus metrics\n")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, err = w.Write([]byte(b.String()))

	return err
}

// GetGraph serves the last GEXF export.
func (h *StatusHandler) GetGraph(w http.ResponseWriter, req bunrouter.Request) error {
	if _, err := os.Stat(h.graphFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			h.logger.Error("Failed to stat graph file", zap.Error(err))
		}

		http.Error(w, "Graph has not been exported yet", http.StatusNotFound)

		return nil
	}

	w.Header().Set("Content-Type", GEXFContentType)
	http.ServeFile(w, req.Request, h.graphFile)

	return nil
}
