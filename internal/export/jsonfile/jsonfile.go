// Package jsonfile writes graphs as node-link JSON for d3 and networkx.
package jsonfile

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/robalyx/socialgraph/internal/export/fileutil"
	"github.com/robalyx/socialgraph/internal/graph"
)

// FileName is the name of the exported file.
const FileName = "graph.json"

// Document is the node-link representation of a graph.
type Document struct {
	Directed    bool      `json:"directed"`
	Multigraph  bool      `json:"multigraph"`
	GeneratedAt time.Time `json:"generatedAt"`
	Nodes       []Node    `json:"nodes"`
	Links       []Link    `json:"links"`
}

// Node is a single node of the document.
type Node struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Image     string `json:"image,omitempty"`
	Anonymous bool   `json:"anonymous,omitempty"`
}

// Link is a single weighted edge of the document.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Weight int64  `json:"weight"`
}

// Exporter handles exporting graphs to JSON files.
type Exporter struct {
	outDir   string
	minified bool
}

// New creates a new JSON exporter instance.
func New(outDir string, minified bool) *Exporter {
	return &Exporter{
		outDir:   outDir,
		minified: minified,
	}
}

// Path returns the path of the exported file.
func (e *Exporter) Path() string {
	return filepath.Join(e.outDir, FileName)
}

// Export writes the graph to the JSON file, replacing any previous export.
func (e *Exporter) Export(g *graph.Graph) error {
	var (
		data []byte
		err  error
	)

	doc := NewDocument(g)
	if e.minified {
		data, err = sonic.Marshal(doc)
	} else {
		data, err = sonic.MarshalIndent(doc, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	return fileutil.WriteFile(e.Path(), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// NewDocument converts a graph to its node-link document.
func NewDocument(g *graph.Graph) *Document {
	doc := &Document{
		GeneratedAt: g.GeneratedAt.UTC(),
		Nodes:       make([]Node, 0, len(g.Nodes)),
		Links:       make([]Link, 0, len(g.Edges)),
	}

	for _, n := range g.Nodes {
		doc.Nodes = append(doc.Nodes, Node{
			ID:        n.ID,
			Label:     n.Label,
			Image:     n.Image,
			Anonymous: n.Anonymous,
		})
	}

	for _, e := range g.Edges {
		doc.Links = append(doc.Links, Link{
			Source: e.Source,
			Target: e.Target,
			Weight: e.Weight,
		})
	}

	return doc
}
