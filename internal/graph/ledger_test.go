package graph_test

import (
	"testing"

	"github.com/robalyx/socialgraph/internal/graph"
	"github.com/robalyx/socialgraph/internal/graph/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLedger_Canonicalization(t *testing.T) {
	t.Parallel()

	c := newComponents(t, graph.Policy{})
	c.optIn(t, 1, 2, 3)

	// Interleave both directions of one pair with another pair
	calls := [][2]graph.MemberID{{1, 2}, {2, 1}, {3, 1}, {2, 1}, {1, 3}, {1, 2}, {2, 1}}
	for _, call := range calls {
		assert.True(t, c.record(t, call[0], call[1]))
	}

	edges := edgeMap(t, c.ledger)
	assert.Len(t, edges, 2)
	assert.Equal(t, int64(5), edges[pair(1, 2)])
	assert.Equal(t, int64(2), edges[pair(1, 3)])
}

func TestLedger_NoSelfEdges(t *testing.T) {
	t.Parallel()

	c := newComponents(t, graph.Policy{})
	c.optIn(t, 1)

	assert.False(t, c.record(t, 1, 1))
	assert.Empty(t, edgeMap(t, c.ledger))
}

func TestLedger_ConsentGating(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		optedIn []graph.MemberID
		actor   graph.MemberID
		target  graph.MemberID
	}{
		{name: "target not opted in", optedIn: []graph.MemberID{1}, actor: 1, target: 2},
		{name: "actor not opted in", optedIn: []graph.MemberID{2}, actor: 1, target: 2},
		{name: "neither opted in", actor: 1, target: 2},
		{name: "invalid target", optedIn: []graph.MemberID{1}, actor: 1, target: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newComponents(t, graph.Policy{})
			c.optIn(t, tt.optedIn...)

			assert.False(t, c.record(t, tt.actor, tt.target))
			assert.Empty(t, edgeMap(t, c.ledger))
		})
	}
}

func TestLedger_ConsentGatingAfterOptOut(t *testing.T) {
	t.Parallel()

	c := newComponents(t, graph.Policy{})
	c.optIn(t, 1, 2)
	require.True(t, c.record(t, 1, 2))

	_, err := c.consent.OptOut(t.Context(), 2)
	require.NoError(t, err)

	assert.False(t, c.record(t, 1, 2))
	assert.Empty(t, edgeMap(t, c.ledger))
}

func TestLedger_Stats(t *testing.T) {
	t.Parallel()

	c := newComponents(t, graph.Policy{})

	stats, err := c.ledger.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, graph.EdgeStats{}, stats)
	assert.Zero(t, stats.AveragePerEdge())
	assert.Zero(t, stats.AveragePerMember())

	c.optIn(t, 1, 2, 3)
	c.record(t, 1, 2)
	c.record(t, 2, 1)
	c.record(t, 1, 2)
	c.record(t, 3, 1)

	stats, err = c.ledger.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Count)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(1), stats.Min)
	assert.Equal(t, int64(3), stats.Max)
	assert.Equal(t, int64(3), stats.Members)
	assert.InDelta(t, 2.0, stats.AveragePerEdge(), 1e-9)
	assert.InDelta(t, 4.0/3.0, stats.AveragePerMember(), 1e-9)

	total, err := c.ledger.TotalWeight(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
}

func TestLedger_PruneOrphans(t *testing.T) {
	t.Parallel()

	c := newComponents(t, graph.Policy{})
	c.optIn(t, 1, 2)
	c.store.SetEdge(pair(1, 2), 4)
	c.store.SetEdge(pair(1, 9), 2)

	removed, err := c.ledger.PruneOrphans(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, map[graph.PairKey]int64{pair(1, 2): 4}, edgeMap(t, c.ledger))
}

func TestLedger_StoreErrors(t *testing.T) {
	t.Parallel()

	store := &failingStore{Store: memory.NewStore()}
	ledger := graph.NewLedger(store, store, zap.NewNop())
	consent := graph.NewConsentStore(store, ledger, graph.Policy{}, zap.NewNop())

	for _, id := range []graph.MemberID{1, 2} {
		_, err := consent.OptIn(t.Context(), id, graph.DisplayAttrs{})
		require.NoError(t, err)
	}

	store.failIncrement = true
	ok, err := ledger.RecordInteraction(t.Context(), 1, 2)
	require.ErrorIs(t, err, errStoreDown)
	assert.False(t, ok)

	store.failIncrement = false
	store.failGet = true
	ok, err = ledger.RecordInteraction(t.Context(), 1, 2)
	require.ErrorIs(t, err, errStoreDown)
	assert.False(t, ok)
}
