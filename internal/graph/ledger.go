package graph

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Ledger records how many qualifying interactions happened between two members.
type Ledger struct {
	members MemberStore
	edges   EdgeStore
	logger  *zap.Logger
}

// NewLedger creates a ledger that checks consent against members and stores weights in edges.
func NewLedger(members MemberStore, edges EdgeStore, logger *zap.Logger) *Ledger {
	return &Ledger{
		members: members,
		edges:   edges,
		logger:  logger.Named("graph_ledger"),
	}
}

// RecordInteraction increments the edge between actor and target by one.
// It reports false without touching the ledger when both ids are the same member
// or when either member is not opted in at call time.
func (l *Ledger) RecordInteraction(ctx context.Context, actorID, targetID MemberID) (bool, error) {
	key, ok := NewPairKey(actorID, targetID)
	if !ok || !actorID.Valid() || !targetID.Valid() {
		return false, nil
	}

	for _, id := range [...]MemberID{key.Low, key.High} {
		optedIn, err := l.isOptedIn(ctx, id)
		if err != nil {
			return false, err
		}

		if !optedIn {
			l.logger.Debug("Skipped interaction with non-consenting member",
				zap.Uint64("actor_id", uint64(actorID)),
				zap.Uint64("target_id", uint64(targetID)),
				zap.Uint64("member_id", uint64(id)))

			return false, nil
		}
	}

	if err := l.edges.IncrementEdge(ctx, key, 1); err != nil {
		return false, fmt.Errorf("failed to increment edge %d-%d: %w", key.Low, key.High, err)
	}

	return true, nil
}

// RemoveAllEdgesFor deletes every edge incident to the member.
func (l *Ledger) RemoveAllEdgesFor(ctx context.Context, id MemberID) (int64, error) {
	removed, err := l.edges.DeleteEdgesFor(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to remove edges for member %d: %w", id, err)
	}

	l.logger.Debug("Removed member edges",
		zap.Uint64("member_id", uint64(id)),
		zap.Int64("removed", removed))

	return removed, nil
}

// PruneOrphans deletes edges left behind for members who are no longer opted in.
func (l *Ledger) PruneOrphans(ctx context.Context) (int64, error) {
	removed, err := l.edges.PruneOrphans(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to prune orphaned edges: %w", err)
	}

	if removed > 0 {
		l.logger.Info("Pruned orphaned edges", zap.Int64("removed", removed))
	}

	return removed, nil
}

// Edges returns every stored edge.
func (l *Ledger) Edges(ctx context.Context) ([]Edge, error) {
	edges, err := l.edges.ListEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}

	return edges, nil
}

// Stats returns the summary of all stored edges.
func (l *Ledger) Stats(ctx context.Context) (EdgeStats, error) {
	stats, err := l.edges.EdgeStats(ctx)
	if err != nil {
		return EdgeStats{}, fmt.Errorf("failed to get edge stats: %w", err)
	}

	return stats, nil
}

// TotalWeight returns the sum of all edge weights.
func (l *Ledger) TotalWeight(ctx context.Context) (int64, error) {
	stats, err := l.Stats(ctx)
	return stats.Total, err
}

// EdgeCount returns the number of distinct pairs.
func (l *Ledger) EdgeCount(ctx context.Context) (int64, error) {
	stats, err := l.Stats(ctx)
	return stats.Count, err
}

// MinWeight returns the smallest edge weight, or 0 for an empty ledger.
func (l *Ledger) MinWeight(ctx context.Context) (int64, error) {
	stats, err := l.Stats(ctx)
	return stats.Min, err
}

// MaxWeight returns the largest edge weight, or 0 for an empty ledger.
func (l *Ledger) MaxWeight(ctx context.Context) (int64, error) {
	stats, err := l.Stats(ctx)
	return stats.Max, err
}

// AverageWeightPerEdge returns the mean weight of an edge.
func (l *Ledger) AverageWeightPerEdge(ctx context.Context) (float64, error) {
	stats, err := l.Stats(ctx)
	return stats.AveragePerEdge(), err
}

// AverageWeightPerMember returns the total weight divided by the members appearing in the ledger.
func (l *Ledger) AverageWeightPerMember(ctx context.Context) (float64, error) {
	stats, err := l.Stats(ctx)
	return stats.AveragePerMember(), err
}

// AveragePerEdge returns Total/Count, or 0 when there are no edges.
func (s EdgeStats) AveragePerEdge() float64 {
	return ratio(s.Total, s.Count)
}

// AveragePerMember returns Total/Members, or 0 when there are no members.
func (s EdgeStats) AveragePerMember() float64 {
	return ratio(s.Total, s.Members)
}

func (l *Ledger) isOptedIn(ctx context.Context, id MemberID) (bool, error) {
	member, err := l.members.GetMember(ctx, id)
	if errors.Is(err, ErrMemberNotFound) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to check consent for member %d: %w", id, err)
	}

	return member.OptedIn, nil
}

func ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}

	return float64(num) / float64(den)
}
