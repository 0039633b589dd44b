// Package gexf writes graphs in the GEXF 1.3 exchange format read by Gephi and sigma.js.
package gexf

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/robalyx/socialgraph/internal/export/fileutil"
	"github.com/robalyx/socialgraph/internal/graph"
	"github.com/tdewolff/minify/v2"
	minifyXML "github.com/tdewolff/minify/v2/xml"
)

// FileName is the name of the exported file.
const FileName = "graph.gexf"

const (
	namespace   = "http://gexf.net/1.3"
	version     = "1.3"
	creator     = "socialgraph"
	mimeType    = "text/xml"
	imageAttrID = "image"
	anonAttrID  = "anonymous"
)

type document struct {
	XMLName xml.Name  `xml:"gexf"`
	Xmlns   string    `xml:"xmlns,attr"`
	Version string    `xml:"version,attr"`
	Meta    meta      `xml:"meta"`
	Graph   graphBody `xml:"graph"`
}

type meta struct {
	LastModified string `xml:"lastmodifieddate,attr"`
	Creator      string `xml:"creator"`
}

type graphBody struct {
	DefaultEdgeType string     `xml:"defaultedgetype,attr"`
	Mode            string     `xml:"mode,attr"`
	Attributes      attributes `xml:"attributes"`
	Nodes           []node     `xml:"nodes>node"`
	Edges           []edge     `xml:"edges>edge"`
}

type attributes struct {
	Class      string      `xml:"class,attr"`
	Attributes []attribute `xml:"attribute"`
}

type attribute struct {
	ID    string `xml:"id,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type node struct {
	ID        string     `xml:"id,attr"`
	Label     string     `xml:"label,attr"`
	AttValues []attValue `xml:"attvalues>attvalue,omitempty"`
}

type attValue struct {
	For   string `xml:"for,attr"`
	Value string `xml:"value,attr"`
}

type edge struct {
	ID     string `xml:"id,attr"`
	Source string `xml:"source,attr"`
	Target string `xml:"target,attr"`
	Weight int64  `xml:"weight,attr"`
}

// Exporter handles exporting graphs to GEXF files.
type Exporter struct {
	outDir string
	minify *minify.M
}

// New creates a new GEXF exporter instance. With minified set, insignificant
// whitespace is stripped from the output.
func New(outDir string, minified bool) *Exporter {
	var m *minify.M
	if minified {
		m = minify.New()
		m.AddFunc(mimeType, minifyXML.Minify)
	}

	return &Exporter{
		outDir: outDir,
		minify: m,
	}
}

// Path returns the path of the exported file.
func (e *Exporter) Path() string {
	return filepath.Join(e.outDir, FileName)
}

// Export writes the graph to the GEXF file, replacing any previous export.
func (e *Exporter) Export(g *graph.Graph) error {
	return fileutil.WriteFile(e.Path(), func(w io.Writer) error {
		return e.Encode(w, g)
	})
}

// Encode writes the GEXF document for the graph to w.
func (e *Exporter) Encode(w io.Writer, g *graph.Graph) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	doc := newDocument(g)

	if e.minify == nil {
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")

		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode gexf: %w", err)
		}

		return enc.Close()
	}

	var buf bytes.Buffer
	if err := xml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("failed to encode gexf: %w", err)
	}

	if err := e.minify.Minify(mimeType, w, &buf); err != nil {
		return fmt.Errorf("failed to minify gexf: %w", err)
	}

	return nil
}

func newDocument(g *graph.Graph) *document {
	nodes := make([]node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		var values []attValue
		if n.Image != "" {
			values = append(values, attValue{For: imageAttrID, Value: n.Image})
		}

		if n.Anonymous {
			values = append(values, attValue{For: anonAttrID, Value: "true"})
		}

		nodes = append(nodes, node{
			ID:        n.ID,
			Label:     n.Label,
			AttValues: values,
		})
	}

	edges := make([]edge, 0, len(g.Edges))
	for i, e := range g.Edges {
		edges = append(edges, edge{
			ID:     strconv.Itoa(i),
			Source: e.Source,
			Target: e.Target,
			Weight: e.Weight,
		})
	}

	return &document{
		Xmlns:   namespace,
		Version: version,
		Meta: meta{
			LastModified: g.GeneratedAt.Format("2006-01-02"),
			Creator:      creator,
		},
		Graph: graphBody{
			DefaultEdgeType: "undirected",
			Mode:            "static",
			Attributes: attributes{
				Class: "node",
				Attributes: []attribute{
					{ID: imageAttrID, Title: "image", Type: "string"},
					{ID: anonAttrID, Title: "anonymous", Type: "boolean"},
				},
			},
			Nodes: nodes,
			Edges: edges,
		},
	}
}
