package jsonfile_test

import (
	"os"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/robalyx/socialgraph/internal/export/jsonfile"
	"github.com/robalyx/socialgraph/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporter_Export(t *testing.T) {
	t.Parallel()

	g := &graph.Graph{
		Nodes: []graph.Node{
			{ID: "1", Label: "alice", Image: "https://cdn.example/1.png"},
			{ID: "b33f", Label: "Anonymous User", Anonymous: true},
		},
		Edges: []graph.GraphEdge{
			{Source: "1", Target: "b33f", Weight: 4},
		},
		GeneratedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	for _, minified := range []bool{false, true} {
		exporter := jsonfile.New(t.TempDir(), minified)
		require.NoError(t, exporter.Export(g))

		data, err := os.ReadFile(exporter.Path())
		require.NoError(t, err)

		var doc jsonfile.Document
		require.NoError(t, sonic.Unmarshal(data, &doc))

		assert.False(t, doc.Directed)
		assert.True(t, doc.GeneratedAt.Equal(g.GeneratedAt))
		require.Len(t, doc.Nodes, 2)
		assert.Equal(t, "https://cdn.example/1.png", doc.Nodes[0].Image)
		assert.True(t, doc.Nodes[1].Anonymous)
		require.Len(t, doc.Links, 1)
		assert.Equal(t, jsonfile.Link{Source: "1", Target: "b33f", Weight: 4}, doc.Links[0])

		if minified {
			assert.NotContains(t, string(data), "\n")
		}
	}
}

func TestNewDocument_EmptyGraph(t *testing.T) {
	t.Parallel()

	doc := jsonfile.NewDocument(&graph.Graph{})

	data, err := sonic.Marshal(doc)
	require.NoError(t, err)

	// Empty graphs keep their arrays so consumers can iterate without nil checks
	assert.Contains(t, string(data), `"nodes":[]`)
	assert.Contains(t, string(data), `"links":[]`)
}
