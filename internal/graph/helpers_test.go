package graph_test

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"

	"github.com/robalyx/socialgraph/internal/graph"
	"github.com/robalyx/socialgraph/internal/graph/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errStoreDown = errors.New("store unavailable")

// recordingExporter keeps every exported graph and can be switched into failure mode.
type recordingExporter struct {
	mu     sync.Mutex
	graphs []*graph.Graph
	err    error
}

func (r *recordingExporter) Export(_ context.Context, g *graph.Graph) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}

	r.graphs = append(r.graphs, g)

	return nil
}

func (r *recordingExporter) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.err = err
}

func (r *recordingExporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.graphs)
}

func (r *recordingExporter) last() *graph.Graph {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.graphs) == 0 {
		return nil
	}

	return r.graphs[len(r.graphs)-1]
}

// gatedExporter blocks exports while armed until released or cancelled.
type gatedExporter struct {
	mu      sync.Mutex
	entered chan struct{}
	release chan struct{}
	count   int
}

func (g *gatedExporter) arm() (entered, release chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entered = make(chan struct{}, 1)
	g.release = make(chan struct{})

	return g.entered, g.release
}

func (g *gatedExporter) Export(ctx context.Context, _ *graph.Graph) error {
	g.mu.Lock()
	entered, release := g.entered, g.release
	g.mu.Unlock()

	if release != nil {
		select {
		case entered <- struct{}{}:
		default:
		}

		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	g.mu.Lock()
	g.count++
	g.mu.Unlock()

	return nil
}

func (g *gatedExporter) exports() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.count
}

// failingStore wraps a memory store and fails selected operations.
type failingStore struct {
	*memory.Store

	failIncrement bool
	failGet       bool
}

func (f *failingStore) IncrementEdge(ctx context.Context, key graph.PairKey, delta int64) error {
	if f.failIncrement {
		return errStoreDown
	}

	return f.Store.IncrementEdge(ctx, key, delta)
}

func (f *failingStore) GetMember(ctx context.Context, id graph.MemberID) (*graph.Member, error) {
	if f.failGet {
		return nil, errStoreDown
	}

	return f.Store.GetMember(ctx, id)
}

func testSecret(b byte) string {
	key := make([]byte, 32)
	for i := range key {
		key[i] = b + byte(i)
	}

	return base64.StdEncoding.EncodeToString(key)
}

func newPseudonymizer(t *testing.T) *graph.Pseudonymizer {
	t.Helper()

	p, err := graph.NewPseudonymizer(testSecret(1))
	require.NoError(t, err)

	return p
}

// components builds the engine parts on a fresh memory store.
type components struct {
	store    *memory.Store
	ledger   *graph.Ledger
	consent  *graph.ConsentStore
	builder  *graph.Builder
	exporter *recordingExporter
}

func newComponents(t *testing.T, policy graph.Policy) *components {
	t.Helper()

	logger := zap.NewNop()
	store := memory.NewStore()
	ledger := graph.NewLedger(store, store, logger)
	consent := graph.NewConsentStore(store, ledger, policy, logger)

	var pseudonymizer *graph.Pseudonymizer
	if policy.AnonymousEnabled {
		pseudonymizer = newPseudonymizer(t)
	}

	return &components{
		store:    store,
		ledger:   ledger,
		consent:  consent,
		builder:  graph.NewBuilder(consent, ledger, pseudonymizer, "", logger),
		exporter: &recordingExporter{},
	}
}

func (c *components) optIn(t *testing.T, ids ...graph.MemberID) {
	t.Helper()

	for _, id := range ids {
		_, err := c.consent.OptIn(t.Context(), id, graph.DisplayAttrs{DisplayName: "member " + id.String()})
		require.NoError(t, err)
	}
}

func (c *components) record(t *testing.T, actor, target graph.MemberID) bool {
	t.Helper()

	ok, err := c.ledger.RecordInteraction(t.Context(), actor, target)
	require.NoError(t, err)

	return ok
}

func edgeMap(t *testing.T, ledger *graph.Ledger) map[graph.PairKey]int64 {
	t.Helper()

	edges, err := ledger.Edges(t.Context())
	require.NoError(t, err)

	result := make(map[graph.PairKey]int64, len(edges))
	for _, e := range edges {
		result[e.Key] = e.Weight
	}

	return result
}

func pair(a, b graph.MemberID) graph.PairKey {
	key, _ := graph.NewPairKey(a, b)
	return key
}
