package graph

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultAnonymousLabel is the label rendered for anonymous members.
const DefaultAnonymousLabel = "Anonymous User"

// labelCleaner folds compatibility characters and drops control and format characters
// that graph exchange formats cannot carry.
var labelCleaner = transform.Chain( //nolint:gochecknoglobals
	norm.NFKC,
	runes.Remove(runes.In(unicode.Cc)),
	runes.Remove(runes.In(unicode.Cf)),
)

// Node is a rendered member of the graph.
type Node struct {
	ID        string
	Label     string
	Image     string
	Anonymous bool
}

// GraphEdge is a rendered undirected weighted edge between two nodes.
type GraphEdge struct {
	Source string
	Target string
	Weight int64
}

// Graph is a consent-filtered projection of the consent store and ledger.
type Graph struct {
	Nodes       []Node
	Edges       []GraphEdge
	GeneratedAt time.Time
}

// HasNode reports whether a node with the given id exists.
func (g *Graph) HasNode(id string) bool {
	return slices.ContainsFunc(g.Nodes, func(n Node) bool { return n.ID == id })
}

// EdgeWeight returns the weight of the edge between two nodes, or 0 if there is none.
func (g *Graph) EdgeWeight(a, b string) int64 {
	for _, e := range g.Edges {
		if (e.Source == a && e.Target == b) || (e.Source == b && e.Target == a) {
			return e.Weight
		}
	}

	return 0
}

// TotalWeight returns the sum of all edge weights in the graph.
func (g *Graph) TotalWeight() int64 {
	var total int64
	for _, e := range g.Edges {
		total += e.Weight
	}

	return total
}

// Builder projects the consent store and ledger into a Graph.
type Builder struct {
	consent        *ConsentStore
	ledger         *Ledger
	pseudonymizer  *Pseudonymizer
	anonymousLabel string
	now            func() time.Time
	logger         *zap.Logger
}

// NewBuilder creates a graph builder. A nil pseudonymizer leaves anonymous members out of the graph.
func NewBuilder(
	consent *ConsentStore, ledger *Ledger, pseudonymizer *Pseudonymizer, anonymousLabel string, logger *zap.Logger,
) *Builder {
	if anonymousLabel == "" {
		anonymousLabel = DefaultAnonymousLabel
	}

	return &Builder{
		consent:        consent,
		ledger:         ledger,
		pseudonymizer:  pseudonymizer,
		anonymousLabel: anonymousLabel,
		now:            time.Now,
		logger:         logger.Named("graph_builder"),
	}
}

// Build rebuilds the whole graph from current state.
// Edges are kept only when both endpoints are rendered nodes. Duplicate rows for
// a pair are summed into one edge.
func (b *Builder) Build(ctx context.Context) (*Graph, error) {
	members, err := b.consent.OptedInMembers(ctx)
	if err != nil {
		return nil, err
	}

	nodeIDs := make(map[MemberID]string, len(members))
	nodes := make([]Node, 0, len(members))

	var omitted int

	for _, member := range members {
		if !member.OptedIn {
			continue
		}

		node, ok := b.renderNode(member)
		if !ok {
			omitted++
			continue
		}

		nodeIDs[member.ID] = node.ID
		nodes = append(nodes, node)
	}

	rows, err := b.ledger.Edges(ctx)
	if err != nil {
		return nil, err
	}

	weights := make(map[PairKey]int64, len(rows))

	var dropped int

	for _, row := range rows {
		key, ok := NewPairKey(row.Key.Low, row.Key.High)
		if !ok || row.Weight <= 0 {
			dropped++
			continue
		}

		_, lowOK := nodeIDs[key.Low]
		_, highOK := nodeIDs[key.High]

		if !lowOK || !highOK {
			dropped++
			continue
		}

		weights[key] += row.Weight
	}

	keys := make([]PairKey, 0, len(weights))
	for key := range weights {
		keys = append(keys, key)
	}

	slices.SortFunc(keys, func(a, b PairKey) int {
		if c := cmp.Compare(a.Low, b.Low); c != 0 {
			return c
		}

		return cmp.Compare(a.High, b.High)
	})

	edges := make([]GraphEdge, 0, len(keys))
	for _, key := range keys {
		edges = append(edges, GraphEdge{
			Source: nodeIDs[key.Low],
			Target: nodeIDs[key.High],
			Weight: weights[key],
		})
	}

	slices.SortFunc(nodes, func(a, b Node) int { return cmp.Compare(a.ID, b.ID) })

	if omitted > 0 || dropped > 0 {
		b.logger.Debug("Filtered graph rows",
			zap.Int("omitted_nodes", omitted),
			zap.Int("dropped_edges", dropped))
	}

	return &Graph{
		Nodes:       nodes,
		Edges:       edges,
		GeneratedAt: b.now().UTC(),
	}, nil
}

// renderNode returns the node for a member. Anonymous members are never rendered
// with real attributes, so they are skipped when no pseudonymizer is available.
func (b *Builder) renderNode(member *Member) (Node, bool) {
	if member.Anonymous {
		if b.pseudonymizer == nil {
			return Node{}, false
		}

		return Node{
			ID:        b.pseudonymizer.Pseudonymize(member.ID),
			Label:     b.anonymousLabel,
			Anonymous: true,
		}, true
	}

	id := member.ID.String()

	label := CleanLabel(member.DisplayName)
	if label == "" {
		label = id
	}

	return Node{
		ID:    id,
		Label: label,
		Image: member.AvatarRef,
	}, true
}

// CleanLabel normalizes a display name for rendering.
func CleanLabel(s string) string {
	if s == "" {
		return ""
	}

	cleaned, _, err := transform.String(labelCleaner, s)
	if err != nil {
		cleaned = s
	}

	return strings.Join(strings.Fields(cleaned), " ")
}
