package rest

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robalyx/socialgraph/internal/rest/handler"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// Options configures the status server.
type Options struct {
	// GraphFile is the GEXF export served at /data/graph.gexf.
	GraphFile string
	// ExportToken guards POST /v1/export when set.
	ExportToken string
	// Hourly serves GET /v1/stats/hourly when set.
	Hourly handler.HourlyStatsSource
}

// Server implements the HTTP status service.
type Server struct {
	statusHandler *handler.StatusHandler
	statsHandler  *handler.StatsHandler
	hourlyHandler *handler.HourlyHandler
	registry      *prometheus.Registry
}

// NewServer creates the status server handler.
func NewServer(engine handler.Engine, opts Options, logger *zap.Logger) (http.Handler, error) {
	logger = logger.Named("rest")

	server := &Server{
		statusHandler: handler.NewStatusHandler(engine, opts.GraphFile, logger),
		statsHandler:  handler.NewStatsHandler(engine, logger),
		registry:      prometheus.NewRegistry(),
	}

	if opts.Hourly != nil {
		server.hourlyHandler = handler.NewHourlyHandler(opts.Hourly, logger)
	}

	if err := server.registry.Register(handler.NewCollector(engine, logger)); err != nil {
		return nil, err
	}

	if err := server.registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}

	router := bunrouter.New(
		bunrouter.WithNotFoundHandler(func(w http.ResponseWriter, req bunrouter.Request) error {
			http.Error(w, "Not found", http.StatusNotFound)
			return nil
		}),
	)

	router.GET("/", server.statusHandler.GetStatus)
	router.GET("/data/graph.gexf", server.statusHandler.GetGraph)
	router.GET("/metrics", bunrouter.HTTPHandler(
		promhttp.HandlerFor(server.registry, promhttp.HandlerOpts{}),
	))

	router.WithGroup("/v1", func(g *bunrouter.Group) {
		g.GET("/stats", server.statsHandler.GetStats)
		g.WithMiddleware(handler.RequireToken(opts.ExportToken, logger)).
			POST("/export", server.statsHandler.PostExport)

		if server.hourlyHandler != nil {
			g.GET("/stats/hourly", server.hourlyHandler.GetHourlyStats)
		}
	})

	// Add gzip compression
	return gzhttp.GzipHandler(router), nil
}
