package graph

import (
	"context"
	"sync/atomic"
)

// Snapshot is the flat set of counters describing the graph and its processing.
type Snapshot struct {
	OptedInCount      int64   `json:"optedInCount"`
	TotalMentions     int64   `json:"totalMentions"`
	UniquePairs       int64   `json:"uniquePairs"`
	MinWeight         int64   `json:"minWeight"`
	MaxWeight         int64   `json:"maxWeight"`
	AvgPerPair        float64 `json:"avgPerPair"`
	AvgPerMember      float64 `json:"avgPerMember"`
	Density           float64 `json:"density"`
	MessagesProcessed int64   `json:"messagesProcessed"`
	CommandsProcessed int64   `json:"commandsProcessed"`
	ExportsPerformed  int64   `json:"exportsPerformed"`
}

// Aggregator derives summary statistics from the consent store and ledger.
// It owns the message and command tallies.
type Aggregator struct {
	consent   *ConsentStore
	ledger    *Ledger
	scheduler *Scheduler

	messagesProcessed atomic.Int64
	commandsProcessed atomic.Int64
}

// NewAggregator creates a metrics aggregator.
func NewAggregator(consent *ConsentStore, ledger *Ledger, scheduler *Scheduler) *Aggregator {
	return &Aggregator{
		consent:   consent,
		ledger:    ledger,
		scheduler: scheduler,
	}
}

// MessageProcessed counts a processed message.
func (a *Aggregator) MessageProcessed() {
	a.messagesProcessed.Add(1)
}

// CommandProcessed counts a processed command.
func (a *Aggregator) CommandProcessed() {
	a.commandsProcessed.Add(1)
}

// Snapshot computes the current statistics without mutating any state.
func (a *Aggregator) Snapshot(ctx context.Context) (Snapshot, error) {
	optedIn, err := a.consent.OptedInCount(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	stats, err := a.ledger.Stats(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	var exports int64
	if a.scheduler != nil {
		exports = a.scheduler.ExportsPerformed()
	}

	return Snapshot{
		OptedInCount:      optedIn,
		TotalMentions:     stats.Total,
		UniquePairs:       stats.Count,
		MinWeight:         stats.Min,
		MaxWeight:         stats.Max,
		AvgPerPair:        stats.AveragePerEdge(),
		AvgPerMember:      stats.AveragePerMember(),
		Density:           Density(optedIn, stats.Count),
		MessagesProcessed: a.messagesProcessed.Load(),
		CommandsProcessed: a.commandsProcessed.Load(),
		ExportsPerformed:  exports,
	}, nil
}

// Density returns the fraction of possible undirected pairs among n members that have an edge.
func Density(members, pairs int64) float64 {
	if members < 2 {
		return 0
	}

	possible := members * (members - 1) / 2

	return min(ratio(pairs, possible), 1)
}
