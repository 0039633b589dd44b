package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/robalyx/socialgraph/internal/export/fileutil"
	"github.com/robalyx/socialgraph/internal/graph"
)

const (
	// NodesFile is the name of the exported node list.
	NodesFile = "nodes.csv"
	// EdgesFile is the name of the exported edge list.
	EdgesFile = "edges.csv"
)

// Exporter handles exporting graphs to csv files in the Gephi spreadsheet layout.
type Exporter struct {
	outDir string
}

// New creates a new csv exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Paths returns the paths of the exported files.
func (e *Exporter) Paths() []string {
	return []string{
		filepath.Join(e.outDir, NodesFile),
		filepath.Join(e.outDir, EdgesFile),
	}
}

// Export writes the nodes and edges of the graph to separate csv files.
func (e *Exporter) Export(g *graph.Graph) error {
	if err := fileutil.WriteFile(filepath.Join(e.outDir, NodesFile), func(w io.Writer) error {
		return writeNodes(w, g.Nodes)
	}); err != nil {
		return fmt.Errorf("failed to export nodes: %w", err)
	}

	if err := fileutil.WriteFile(filepath.Join(e.outDir, EdgesFile), func(w io.Writer) error {
		return writeEdges(w, g.Edges)
	}); err != nil {
		return fmt.Errorf("failed to export edges: %w", err)
	}

	return nil
}

func writeNodes(w io.Writer, nodes []graph.Node) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"id", "label", "image", "anonymous"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, node := range nodes {
		if err := writer.Write([]string{
			node.ID,
			node.Label,
			node.Image,
			strconv.FormatBool(node.Anonymous),
		}); err != nil {
			return fmt.Errorf("failed to write node: %w", err)
		}
	}

	writer.Flush()

	return writer.Error()
}

func writeEdges(w io.Writer, edges []graph.GraphEdge) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"source", "target", "weight", "type"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, edge := range edges {
		if err := writer.Write([]string{
			edge.Source,
			edge.Target,
			strconv.FormatInt(edge.Weight, 10),
			"Undirected",
		}); err != nil {
			return fmt.Errorf("failed to write edge: %w", err)
		}
	}

	writer.Flush()

	return writer.Error()
}
