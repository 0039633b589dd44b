package convert

import (
	"github.com/robalyx/socialgraph/internal/graph"
	"github.com/robalyx/socialgraph/internal/rest/types"
	"github.com/robalyx/socialgraph/internal/statistics"
)

// Stats converts the engine statistics to the REST response.
func Stats(snapshot graph.Snapshot, scheduler graph.SchedulerStats) types.StatsResponse {
	return types.StatsResponse{
		Graph:     graphStats(snapshot),
		Activity:  activityStats(snapshot),
		Scheduler: Scheduler(scheduler),
	}
}

// Hourly converts the reported history to the REST response.
func Hourly(stats []statistics.HourlyStat) types.HourlyStatsResponse {
	hours := make([]types.HourlyStat, 0, len(stats))
	for _, stat := range stats {
		hour := types.HourlyStat{
			Hour:     stat.Hour.UTC(),
			Reported: stat.Present,
		}

		if stat.Present {
			g := graphStats(stat.Snapshot)
			a := activityStats(stat.Snapshot)
			hour.Graph = &g
			hour.Activity = &a
		}

		hours = append(hours, hour)
	}

	return types.HourlyStatsResponse{Hours: hours}
}

func graphStats(snapshot graph.Snapshot) types.GraphStats {
	return types.GraphStats{
		OptedIn:       snapshot.OptedInCount,
		TotalMentions: snapshot.TotalMentions,
		UniquePairs:   snapshot.UniquePairs,
		MinWeight:     snapshot.MinWeight,
		MaxWeight:     snapshot.MaxWeight,
		AvgPerPair:    snapshot.AvgPerPair,
		AvgPerMember:  snapshot.AvgPerMember,
		Density:       snapshot.Density,
	}
}

func activityStats(snapshot graph.Snapshot) types.ActivityStats {
	return types.ActivityStats{
		MessagesProcessed: snapshot.MessagesProcessed,
		CommandsProcessed: snapshot.CommandsProcessed,
	}
}

// Scheduler converts the scheduler counters to the REST type.
func Scheduler(stats graph.SchedulerStats) types.SchedulerStats {
	result := types.SchedulerStats{
		EventsSinceLastExport: stats.EventsSinceLastExport,
		Threshold:             stats.Threshold,
		ExportsPerformed:      stats.ExportsPerformed,
		ExportFailures:        stats.ExportFailures,
	}

	if !stats.LastExportAt.IsZero() {
		lastExportAt := stats.LastExportAt.UTC()
		result.LastExportAt = &lastExportAt
	}

	return result
}
