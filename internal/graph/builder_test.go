package graph_test

import (
	"testing"

	"github.com/robalyx/socialgraph/internal/graph"
	"github.com/robalyx/socialgraph/internal/graph/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nodeIDs(g *graph.Graph) []string {
	ids := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}

	return ids
}

func TestBuilder_Scenario(t *testing.T) {
	t.Parallel()

	c := newComponents(t, graph.Policy{})
	c.optIn(t, 1, 2, 3)

	require.True(t, c.record(t, 1, 2))
	require.True(t, c.record(t, 2, 1))
	require.True(t, c.record(t, 1, 3))

	g, err := c.builder.Build(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, nodeIDs(g))
	assert.Equal(t, []graph.GraphEdge{
		{Source: "1", Target: "2", Weight: 2},
		{Source: "1", Target: "3", Weight: 1},
	}, g.Edges)

	_, err = c.consent.OptOut(t.Context(), 2)
	require.NoError(t, err)

	g, err = c.builder.Build(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, nodeIDs(g))
	assert.Equal(t, []graph.GraphEdge{{Source: "1", Target: "3", Weight: 1}}, g.Edges)
}

func TestBuilder_RepairsInconsistentRows(t *testing.T) {
	t.Parallel()

	c := newComponents(t, graph.Policy{})
	c.optIn(t, 1, 2, 3)

	// Rows a well behaved store never produces
	c.store.SetEdge(graph.PairKey{Low: 2, High: 1}, 3)
	c.store.SetEdge(graph.PairKey{Low: 1, High: 2}, 4)
	c.store.SetEdge(graph.PairKey{Low: 3, High: 3}, 9)
	c.store.SetEdge(graph.PairKey{Low: 1, High: 3}, 0)
	c.store.SetEdge(graph.PairKey{Low: 2, High: 8}, 5)

	g, err := c.builder.Build(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []graph.GraphEdge{{Source: "1", Target: "2", Weight: 7}}, g.Edges)
	assert.Equal(t, int64(7), g.TotalWeight())
}

func TestBuilder_Labels(t *testing.T) {
	t.Parallel()

	c := newComponents(t, graph.Policy{})

	_, err := c.consent.OptIn(t.Context(), 1, graph.DisplayAttrs{
		DisplayName: "  ali\u200bce\u0007  smith ",
		AvatarRef:   "https://cdn.example/1.png",
	})
	require.NoError(t, err)

	_, err = c.consent.OptIn(t.Context(), 2, graph.DisplayAttrs{})
	require.NoError(t, err)

	g, err := c.builder.Build(t.Context())
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)

	assert.Equal(t, graph.Node{ID: "1", Label: "alice smith", Image: "https://cdn.example/1.png"}, g.Nodes[0])
	assert.Equal(t, graph.Node{ID: "2", Label: "2"}, g.Nodes[1])
}

func TestBuilder_AnonymousMembers(t *testing.T) {
	t.Parallel()

	c := newComponents(t, graph.Policy{AnonymousEnabled: true})
	c.optIn(t, 1, 2)
	c.record(t, 1, 2)

	_, err := c.consent.SetAnonymous(t.Context(), 2, true, graph.DisplayAttrs{})
	require.NoError(t, err)

	first, err := c.builder.Build(t.Context())
	require.NoError(t, err)

	second, err := c.builder.Build(t.Context())
	require.NoError(t, err)

	pseudonym := newPseudonymizer(t).Pseudonymize(2)

	require.True(t, first.HasNode(pseudonym))
	assert.False(t, first.HasNode("2"))
	assert.Equal(t, int64(1), first.EdgeWeight("1", pseudonym))
	assert.Equal(t, first.Nodes, second.Nodes)

	for _, n := range first.Nodes {
		if n.ID != pseudonym {
			continue
		}

		assert.True(t, n.Anonymous)
		assert.Equal(t, graph.DefaultAnonymousLabel, n.Label)
		assert.Empty(t, n.Image)
		assert.NotContains(t, n.Label, "member 2")
	}
}

func TestBuilder_AnonymousWithoutPseudonymizer(t *testing.T) {
	t.Parallel()

	logger := zap.NewNop()
	store := memory.NewStore()
	ledger := graph.NewLedger(store, store, logger)
	consent := graph.NewConsentStore(store, ledger, graph.Policy{}, logger)
	builder := graph.NewBuilder(consent, ledger, nil, "", logger)

	require.NoError(t, store.SaveMember(t.Context(), &graph.Member{ID: 1, OptedIn: true}))
	require.NoError(t, store.SaveMember(t.Context(), &graph.Member{
		ID: 2, OptedIn: true, Anonymous: true, DisplayAttrs: graph.DisplayAttrs{DisplayName: "hidden"},
	}))
	store.SetEdge(pair(1, 2), 3)

	g, err := builder.Build(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, nodeIDs(g))
	assert.Empty(t, g.Edges)
}

func TestBuilder_Deterministic(t *testing.T) {
	t.Parallel()

	c := newComponents(t, graph.Policy{})
	c.optIn(t, 5, 3, 9, 1)
	c.record(t, 9, 1)
	c.record(t, 3, 5)
	c.record(t, 5, 9)

	first, err := c.builder.Build(t.Context())
	require.NoError(t, err)

	second, err := c.builder.Build(t.Context())
	require.NoError(t, err)

	assert.Equal(t, first.Nodes, second.Nodes)
	assert.Equal(t, first.Edges, second.Edges)
}

func TestCleanLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{input: "", want: ""},
		{input: "plain", want: "plain"},
		{input: "  spaced   out  ", want: "spaced out"},
		{input: "ｆｕｌｌｗｉｄｔｈ", want: "fullwidth"},
		{input: "tab\tand\nnewline", want: "tabandnewline"},
		{input: "zero\u200dwidth", want: "zerowidth"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, graph.CleanLabel(tt.input), tt.input)
	}
}
