package types

import "time"

// StatsResponse is returned by GET /v1/stats.
type StatsResponse struct {
	Graph     GraphStats     `json:"graph"`
	Activity  ActivityStats  `json:"activity"`
	Scheduler SchedulerStats `json:"scheduler"`
}

// GraphStats describes the current mention graph.
type GraphStats struct {
	OptedIn       int64   `json:"optedIn"`
	TotalMentions int64   `json:"totalMentions"`
	UniquePairs   int64   `json:"uniquePairs"`
	MinWeight     int64   `json:"minWeight"`
	MaxWeight     int64   `json:"maxWeight"`
	AvgPerPair    float64 `json:"avgPerPair"`
	AvgPerMember  float64 `json:"avgPerMember"`
	Density       float64 `json:"density"`
}

// ActivityStats counts processed gateway traffic.
type ActivityStats struct {
	MessagesProcessed int64 `json:"messagesProcessed"`
	CommandsProcessed int64 `json:"commandsProcessed"`
}

// SchedulerStats describes the export scheduler.
type SchedulerStats struct {
	EventsSinceLastExport int        `json:"eventsSinceLastExport"`
	Threshold             int        `json:"threshold"`
	ExportsPerformed      int64      `json:"exportsPerformed"`
	ExportFailures        int64      `json:"exportFailures"`
	LastExportAt          *time.Time `json:"lastExportAt,omitempty"`
}

// ExportResponse is returned by POST /v1/export.
type ExportResponse struct {
	Exported  bool           `json:"exported"`
	Scheduler SchedulerStats `json:"scheduler"`
}

// HourlyStatsResponse is returned by GET /v1/stats/hourly.
type HourlyStatsResponse struct {
	Hours []HourlyStat `json:"hours"`
}

// HourlyStat is the last report of one hour. Graph and Activity are omitted
// for hours without a report.
type HourlyStat struct {
	Hour     time.Time      `json:"hour"`
	Reported bool           `json:"reported"`
	Graph    *GraphStats    `json:"graph,omitempty"`
	Activity *ActivityStats `json:"activity,omitempty"`
}

// ErrorResponse is returned when a request fails.
type ErrorResponse struct {
	Error string `json:"error"`
}
