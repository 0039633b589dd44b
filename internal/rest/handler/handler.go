package handler

import (
	"context"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/robalyx/socialgraph/internal/graph"
)

// Engine is the part of the graph engine exposed over HTTP.
type Engine interface {
	Snapshot(ctx context.Context) (graph.Snapshot, error)
	SchedulerStats() graph.SchedulerStats
	ExportNow(ctx context.Context) error
}

// writeJSON encodes v with sonic and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	_, err = w.Write(data)

	return err
}
