// Package statistics ships graph snapshots to hourly Redis hashes.
package statistics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/rueidis"
	"github.com/robalyx/socialgraph/internal/graph"
	"go.uber.org/zap"
)

const (
	// HourlyStatsKeyPrefix forms the base key for hourly statistics in Redis.
	HourlyStatsKeyPrefix = "graph_stats"
	// HourlyStatsExpiry is how long an hourly hash is kept.
	HourlyStatsExpiry = 24 * time.Hour

	FieldOptedIn           = "opted_in"
	FieldTotalMentions     = "total_mentions"
	FieldUniquePairs       = "unique_pairs"
	FieldMinWeight         = "min_weight"
	FieldMaxWeight         = "max_weight"
	FieldAvgPerPair        = "avg_per_pair"
	FieldAvgPerMember      = "avg_per_member"
	FieldDensity           = "density"
	FieldMessagesProcessed = "messages_processed"
	FieldCommandsProcessed = "commands_processed"
	FieldExportsPerformed  = "exports_performed"
	FieldReportedAt        = "reported_at"
)

const hourFormat = "2006-01-02-15"

// SnapshotSource provides the statistics to report.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (graph.Snapshot, error)
}

// HourlyStat is the last snapshot reported during one hour.
type HourlyStat struct {
	Hour     time.Time
	Snapshot graph.Snapshot
	Present  bool
}

// Reporter periodically writes the engine snapshot to Redis.
type Reporter struct {
	client   rueidis.Client
	source   SnapshotSource
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewReporter creates a Reporter.
func NewReporter(client rueidis.Client, source SnapshotSource, interval time.Duration, logger *zap.Logger) *Reporter {
	return &Reporter{
		client:   client,
		source:   source,
		interval: interval,
		logger:   logger.Named("stats_reporter"),
		now:      time.Now,
	}
}

// HourlyKey returns the key of the hash for the hour containing t.
func HourlyKey(t time.Time) string {
	return fmt.Sprintf("%s:%s", HourlyStatsKeyPrefix, t.UTC().Format(hourFormat))
}

// Run reports once immediately and then on every interval until ctx is done.
// Failed reports are logged and retried on the next tick.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("Statistics reporter started", zap.Duration("interval", r.interval))

	for {
		if err := r.Report(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("Failed to report statistics", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			r.logger.Info("Statistics reporter stopped")
			return
		case <-ticker.C:
		}
	}
}

// Report writes the current snapshot into the hash of the current hour.
func (r *Reporter) Report(ctx context.Context) error {
	snapshot, err := r.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to get snapshot: %w", err)
	}

	now := r.now()
	key := HourlyKey(now)

	cmds := rueidis.Commands{
		r.client.B().Hset().Key(key).FieldValue().
			FieldValue(FieldOptedIn, strconv.FormatInt(snapshot.OptedInCount, 10)).
			FieldValue(FieldTotalMentions, strconv.FormatInt(snapshot.TotalMentions, 10)).
			FieldValue(FieldUniquePairs, strconv.FormatInt(snapshot.UniquePairs, 10)).
			FieldValue(FieldMinWeight, strconv.FormatInt(snapshot.MinWeight, 10)).
			FieldValue(FieldMaxWeight, strconv.FormatInt(snapshot.MaxWeight, 10)).
			FieldValue(FieldAvgPerPair, formatFloat(snapshot.AvgPerPair)).
			FieldValue(FieldAvgPerMember, formatFloat(snapshot.AvgPerMember)).
			FieldValue(FieldDensity, formatFloat(snapshot.Density)).
			FieldValue(FieldMessagesProcessed, strconv.FormatInt(snapshot.MessagesProcessed, 10)).
			FieldValue(FieldCommandsProcessed, strconv.FormatInt(snapshot.CommandsProcessed, 10)).
			FieldValue(FieldExportsPerformed, strconv.FormatInt(snapshot.ExportsPerformed, 10)).
			FieldValue(FieldReportedAt, now.UTC().Format(time.RFC3339)).
			Build(),
		r.client.B().Expire().Key(key).Seconds(int64(HourlyStatsExpiry.Seconds())).Build(),
	}

	for _, resp := range r.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("failed to write %s: %w", key, err)
		}
	}

	r.logger.Debug("Reported statistics",
		zap.String("key", key),
		zap.Int64("opted_in", snapshot.OptedInCount),
		zap.Int64("total_mentions", snapshot.TotalMentions))

	return nil
}

// GetHourlyStats retrieves the statistics of the last 24 hours, oldest first.
// Hours without a report are returned with Present unset.
func (r *Reporter) GetHourlyStats(ctx context.Context) ([]HourlyStat, error) {
	stats := make([]HourlyStat, 24)
	now := r.now().UTC().Truncate(time.Hour)

	for i := range stats {
		hour := now.Add(time.Duration(-i) * time.Hour)

		result, err := r.client.Do(ctx, r.client.B().Hgetall().Key(HourlyKey(hour)).Build()).AsStrMap()
		if err != nil {
			return nil, fmt.Errorf("failed to get hourly stats: %w", err)
		}

		stats[23-i] = HourlyStat{
			Hour:     hour,
			Snapshot: parseSnapshot(result),
			Present:  len(result) > 0,
		}
	}

	return stats, nil
}

func parseSnapshot(fields map[string]string) graph.Snapshot {
	return graph.Snapshot{
		OptedInCount:      parseInt(fields[FieldOptedIn]),
		TotalMentions:     parseInt(fields[FieldTotalMentions]),
		UniquePairs:       parseInt(fields[FieldUniquePairs]),
		MinWeight:         parseInt(fields[FieldMinWeight]),
		MaxWeight:         parseInt(fields[FieldMaxWeight]),
		AvgPerPair:        parseFloat(fields[FieldAvgPerPair]),
		AvgPerMember:      parseFloat(fields[FieldAvgPerMember]),
		Density:           parseFloat(fields[FieldDensity]),
		MessagesProcessed: parseInt(fields[FieldMessagesProcessed]),
		CommandsProcessed: parseInt(fields[FieldCommandsProcessed]),
		ExportsPerformed:  parseInt(fields[FieldExportsPerformed]),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseInt(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
