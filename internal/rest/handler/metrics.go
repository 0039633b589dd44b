package handler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricsNamespace = "socialgraph"
	scrapeTimeout    = 5 * time.Second
)

// Collector exposes the engine snapshot as Prometheus metrics.
// Values are read from the engine on every scrape.
type Collector struct {
	engine Engine
	logger *zap.Logger

	optedIn           *prometheus.Desc
	totalMentions     *prometheus.Desc
	uniquePairs       *prometheus.Desc
	maxWeight         *prometheus.Desc
	density           *prometheus.Desc
	messagesProcessed *prometheus.Desc
	commandsProcessed *prometheus.Desc
	exportsPerformed  *prometheus.Desc
	exportFailures    *prometheus.Desc
	pendingEvents     *prometheus.Desc
	scrapeErrors      prometheus.Counter
}

// NewCollector creates a collector for the engine.
func NewCollector(engine Engine, logger *zap.Logger) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", name), help, nil, nil)
	}

	return &Collector{
		engine:            engine,
		logger:            logger,
		optedIn:           desc("members_opted_in", "Members currently opted in."),
		totalMentions:     desc("mentions_total", "Sum of all edge weights."),
		uniquePairs:       desc("mention_pairs", "Distinct member pairs with an edge."),
		maxWeight:         desc("mention_pair_max_weight", "Largest weight of a single edge."),
		density:           desc("graph_density", "Fraction of possible pairs that have an edge."),
		messagesProcessed: desc("messages_processed_total", "Messages processed since start."),
		commandsProcessed: desc("commands_processed_total", "Commands processed since start."),
		exportsPerformed:  desc("exports_total", "Successful graph exports since start."),
		exportFailures:    desc("export_failures_total", "Failed graph exports since start."),
		pendingEvents:     desc("export_pending_events", "Qualifying events counted since the last export."),
		scrapeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "scrape_errors_total",
			Help:      "Scrapes that failed to read the graph statistics.",
		}),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.optedIn
	ch <- c.totalMentions
	ch <- c.uniquePairs
	ch <- c.maxWeight
	ch <- c.density
	ch <- c.messagesProcessed
	ch <- c.commandsProcessed
	ch <- c.exportsPerformed
	ch <- c.exportFailures
	ch <- c.pendingEvents
	c.scrapeErrors.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	defer c.scrapeErrors.Collect(ch)

	scheduler := c.engine.SchedulerStats()
	ch <- prometheus.MustNewConstMetric(c.exportsPerformed, prometheus.CounterValue, float64(scheduler.ExportsPerformed))
	ch <- prometheus.MustNewConstMetric(c.exportFailures, prometheus.CounterValue, float64(scheduler.ExportFailures))
	ch <- prometheus.MustNewConstMetric(c.pendingEvents, prometheus.GaugeValue, float64(scheduler.EventsSinceLastExport))

	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	snapshot, err := c.engine.Snapshot(ctx)
	if err != nil {
		c.scrapeErrors.Inc()
		c.logger.Error("Failed to collect graph metrics", zap.Error(err))

		return
	}

	ch <- prometheus.MustNewConstMetric(c.optedIn, prometheus.GaugeValue, float64(snapshot.OptedInCount))
	ch <- prometheus.MustNewConstMetric(c.totalMentions, prometheus.GaugeValue, float64(snapshot.TotalMentions))
	ch <- prometheus.MustNewConstMetric(c.uniquePairs, prometheus.GaugeValue, float64(snapshot.UniquePairs))
	ch <- prometheus.MustNewConstMetric(c.maxWeight, prometheus.GaugeValue, float64(snapshot.MaxWeight))
	ch <- prometheus.MustNewConstMetric(c.density, prometheus.GaugeValue, snapshot.Density)
	ch <- prometheus.MustNewConstMetric(c.messagesProcessed, prometheus.CounterValue, float64(snapshot.MessagesProcessed))
	ch <- prometheus.MustNewConstMetric(c.commandsProcessed, prometheus.CounterValue, float64(snapshot.CommandsProcessed))
}
