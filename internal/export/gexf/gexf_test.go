package gexf_test

import (
	"bytes"
	"encoding/xml"
	"os"
	"testing"
	"time"

	"github.com/robalyx/socialgraph/internal/export/gexf"
	"github.com/robalyx/socialgraph/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type parsedDoc struct {
	Version string `xml:"version,attr"`
	Graph   struct {
		DefaultEdgeType string `xml:"defaultedgetype,attr"`
		Nodes           []struct {
			ID        string `xml:"id,attr"`
			Label     string `xml:"label,attr"`
			AttValues []struct {
				For   string `xml:"for,attr"`
				Value string `xml:"value,attr"`
			} `xml:"attvalues>attvalue"`
		} `xml:"nodes>node"`
		Edges []struct {
			Source string `xml:"source,attr"`
			Target string `xml:"target,attr"`
			Weight int64  `xml:"weight,attr"`
		} `xml:"edges>edge"`
	} `xml:"graph"`
}

func testGraph() *graph.Graph {
	return &graph.Graph{
		Nodes: []graph.Node{
			{ID: "1", Label: "alice & <bob>", Image: "https://cdn.example/1.png"},
			{ID: "2", Label: "carol"},
			{ID: "9f2c", Label: "Anonymous User", Anonymous: true},
		},
		Edges: []graph.GraphEdge{
			{Source: "1", Target: "2", Weight: 2},
			{Source: "1", Target: "9f2c", Weight: 1},
		},
		GeneratedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func parse(t *testing.T, data []byte) parsedDoc {
	t.Helper()

	var doc parsedDoc
	require.NoError(t, xml.Unmarshal(data, &doc))

	return doc
}

func TestExporter_Export(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		minified bool
	}{
		{name: "indented", minified: false},
		{name: "minified", minified: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			exporter := gexf.New(t.TempDir(), tt.minified)
			require.NoError(t, exporter.Export(testGraph()))

			data, err := os.ReadFile(exporter.Path())
			require.NoError(t, err)

			doc := parse(t, data)
			assert.Equal(t, "1.3", doc.Version)
			assert.Equal(t, "undirected", doc.Graph.DefaultEdgeType)

			require.Len(t, doc.Graph.Nodes, 3)
			assert.Equal(t, "alice & <bob>", doc.Graph.Nodes[0].Label)
			require.Len(t, doc.Graph.Nodes[0].AttValues, 1)
			assert.Equal(t, "image", doc.Graph.Nodes[0].AttValues[0].For)
			assert.Equal(t, "https://cdn.example/1.png", doc.Graph.Nodes[0].AttValues[0].Value)
			assert.Empty(t, doc.Graph.Nodes[1].AttValues)
			assert.Equal(t, "anonymous", doc.Graph.Nodes[2].AttValues[0].For)

			require.Len(t, doc.Graph.Edges, 2)
			assert.Equal(t, "1", doc.Graph.Edges[0].Source)
			assert.Equal(t, "2", doc.Graph.Edges[0].Target)
			assert.Equal(t, int64(2), doc.Graph.Edges[0].Weight)

			if tt.minified {
				assert.NotContains(t, string(data), "\n  <")
			}
		})
	}
}

func TestExporter_Deterministic(t *testing.T) {
	t.Parallel()

	exporter := gexf.New(t.TempDir(), false)

	var first, second bytes.Buffer
	require.NoError(t, exporter.Encode(&first, testGraph()))
	require.NoError(t, exporter.Encode(&second, testGraph()))

	assert.Equal(t, first.String(), second.String())
}

func TestExporter_EmptyGraph(t *testing.T) {
	t.Parallel()

	exporter := gexf.New(t.TempDir(), false)
	require.NoError(t, exporter.Export(&graph.Graph{GeneratedAt: time.Now()}))

	data, err := os.ReadFile(exporter.Path())
	require.NoError(t, err)

	doc := parse(t, data)
	assert.Empty(t, doc.Graph.Nodes)
	assert.Empty(t, doc.Graph.Edges)
}
