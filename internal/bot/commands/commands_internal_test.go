package commands

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robalyx/socialgraph/internal/graph"
	"github.com/robalyx/socialgraph/internal/graph/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	adminRole  = uint64(900)
	authorID   = graph.MemberID(10)
	otherID    = graph.MemberID(20)
	testPrefix = "stats!"
)

type countingExporter struct {
	mu    sync.Mutex
	count int
	err   error
}

func (e *countingExporter) Export(context.Context, *graph.Graph) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.err != nil {
		return e.err
	}

	e.count++

	return nil
}

type recordingResponder struct {
	replies []string
}

func (r *recordingResponder) Reply(_ context.Context, content string) error {
	r.replies = append(r.replies, content)
	return nil
}

func (r *recordingResponder) last() string {
	if len(r.replies) == 0 {
		return ""
	}

	return r.replies[len(r.replies)-1]
}

func newRegistry(t *testing.T, anonymous bool) (*Registry, *graph.Engine, *countingExporter) {
	t.Helper()

	var pseudonymizer *graph.Pseudonymizer

	if anonymous {
		p, err := graph.NewPseudonymizer(base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32)))
		require.NoError(t, err)

		pseudonymizer = p
	}

	exporter := &countingExporter{}
	engine := graph.NewEngine(memory.NewStore(), exporter, pseudonymizer, graph.Config{Threshold: 15}, zap.NewNop())
	registry := NewRegistry(engine, testPrefix, []uint64{adminRole}, zap.NewNop())

	return registry, engine, exporter
}

func run(t *testing.T, r *Registry, content string, inv *Invocation) *recordingResponder {
	t.Helper()

	resp := &recordingResponder{}
	handled, err := r.Execute(t.Context(), content, inv, resp)
	require.NoError(t, err)
	require.True(t, handled)

	return resp
}

func member(id graph.MemberID, roles ...uint64) *Invocation {
	return &Invocation{
		AuthorID: id,
		RoleIDs:  roles,
		Attrs:    map[graph.MemberID]graph.DisplayAttrs{id: {DisplayName: "member"}},
		SentAt:   time.Now(),
	}
}

func TestRegistry_Parse(t *testing.T) {
	t.Parallel()

	registry, _, _ := newRegistry(t, false)

	tests := []struct {
		name    string
		content string
		command string
		args    []string
		ok      bool
	}{
		{name: "plain message", content: "hello there", ok: false},
		{name: "command", content: "stats!help", command: "help", args: []string{}, ok: true},
		{name: "uppercase", content: "stats!PING", command: "ping", args: []string{}, ok: true},
		{name: "arguments", content: "stats!anonymous   on ", command: "anonymous", args: []string{"on"}, ok: true},
		{name: "prefix only", content: "stats!", command: "", ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			command, args, ok := registry.Parse(tt.content)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.command, command)

			if tt.args != nil {
				assert.Equal(t, tt.args, args)
			}
		})
	}
}

func TestRegistry_IgnoresPlainMessages(t *testing.T) {
	t.Parallel()

	registry, engine, _ := newRegistry(t, false)

	handled, err := registry.Execute(t.Context(), "just chatting", member(authorID), &recordingResponder{})
	require.NoError(t, err)
	assert.False(t, handled)

	snapshot, err := engine.Snapshot(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(0), snapshot.CommandsProcessed)
}

func TestRegistry_UnknownCommand(t *testing.T) {
	t.Parallel()

	registry, engine, _ := newRegistry(t, false)

	resp := run(t, registry, "stats!dance", member(authorID))
	assert.Equal(t, "Unknown command. Type **stats!help** for help.", resp.last())

	snapshot, err := engine.Snapshot(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), snapshot.CommandsProcessed)
}

func TestRegistry_Help(t *testing.T) {
	t.Parallel()

	registry, _, _ := newRegistry(t, false)

	help := run(t, registry, "stats!help", member(authorID)).last()
	assert.Contains(t, help, "**stats!**\nCommands:\n")
	assert.Contains(t, help, "- **ping**: Check bot latency")
	assert.Contains(t, help, "- **toggleanonymous**: Toggle anonymous mode for yourself in the graph")
	assert.Contains(t, help, "Admin commands:\n- **forceoptin <@user|id>**")

	noAdmins := NewRegistry(&graph.Engine{}, testPrefix, nil, zap.NewNop())
	assert.NotContains(t, noAdmins.Help(), "Admin commands")
}

func TestRegistry_Ping(t *testing.T) {
	t.Parallel()

	registry, _, _ := newRegistry(t, false)

	sentAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return sentAt.Add(42 * time.Millisecond) }

	inv := member(authorID)
	inv.SentAt = sentAt

	assert.Equal(t, "Pong! Latency is 42ms.", run(t, registry, "stats!ping", inv).last())
}

func TestRegistry_OptInOptOut(t *testing.T) {
	t.Parallel()

	registry, engine, _ := newRegistry(t, false)

	assert.Contains(t, run(t, registry, "stats!optin", member(authorID)).last(), "You are now opted in.")
	assert.Equal(t, "You are already opted in.", run(t, registry, "stats!optin", member(authorID)).last())

	state, err := engine.State(t.Context(), authorID)
	require.NoError(t, err)
	assert.Equal(t, graph.ConsentStateVisible, state)

	assert.Contains(t, run(t, registry, "stats!optout", member(authorID)).last(), "You are now opted out.")
	assert.Equal(t, "You are not opted in.", run(t, registry, "stats!optout", member(authorID)).last())

	state, err = engine.State(t.Context(), authorID)
	require.NoError(t, err)
	assert.Equal(t, graph.ConsentStateOptedOut, state)
}

func TestRegistry_Anonymous(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()

		registry, _, _ := newRegistry(t, false)

		assert.Equal(t, anonymousUnavailable, run(t, registry, "stats!anonymous on", member(authorID)).last())

		run(t, registry, "stats!optin", member(authorID))
		assert.Equal(t, anonymousUnavailable, run(t, registry, "stats!toggleanonymous", member(authorID)).last())
	})

	t.Run("enabled", func(t *testing.T) {
		t.Parallel()

		registry, engine, _ := newRegistry(t, true)

		assert.Equal(t, "Anonymous mode set to true", run(t, registry, "stats!anonymous on", member(authorID)).last())

		state, err := engine.State(t.Context(), authorID)
		require.NoError(t, err)
		assert.Equal(t, graph.ConsentStateAnonymous, state)

		assert.Contains(t, run(t, registry, "stats!anonymous", member(authorID)).last(), "Anonymous mode is true.")
		assert.Contains(t, run(t, registry, "stats!anonymous maybe", member(authorID)).last(), "Usage:")

		assert.Equal(t, "Anonymous mode set to false", run(t, registry, "stats!toggleanonymous", member(authorID)).last())
		assert.Equal(t, "Anonymous mode set to true", run(t, registry, "stats!toggleanonymous", member(authorID)).last())
		assert.Equal(t, "Anonymous mode set to false", run(t, registry, "stats!anonymous off", member(authorID)).last())
	})
}

func TestRegistry_AdminCommands(t *testing.T) {
	t.Parallel()

	t.Run("requires admin role", func(t *testing.T) {
		t.Parallel()

		registry, engine, _ := newRegistry(t, false)

		resp := run(t, registry, "stats!forceoptin 20", member(authorID))
		assert.Equal(t, "You do not have permission to use this command.", resp.last())

		state, err := engine.State(t.Context(), otherID)
		require.NoError(t, err)
		assert.Equal(t, graph.ConsentStateOptedOut, state)
	})

	t.Run("targets", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name    string
			content string
			mention bool
		}{
			{name: "raw id", content: "stats!forceoptin 20"},
			{name: "mention syntax", content: "stats!forceoptin <@!20>"},
			{name: "resolved mention", content: "stats!forceoptin <@20>", mention: true},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				registry, engine, _ := newRegistry(t, false)

				inv := member(authorID, adminRole)
				if tt.mention {
					inv.Mentions = []graph.MemberID{otherID}
				}

				assert.Equal(t, "<@20> is now opted in.", run(t, registry, tt.content, inv).last())

				state, err := engine.State(t.Context(), otherID)
				require.NoError(t, err)
				assert.Equal(t, graph.ConsentStateVisible, state)
			})
		}
	})

	t.Run("force opt out", func(t *testing.T) {
		t.Parallel()

		registry, engine, _ := newRegistry(t, false)
		admin := member(authorID, adminRole)

		assert.Equal(t, "<@20> is not opted in.", run(t, registry, "stats!forceoptout 20", admin).last())

		_, err := engine.OptIn(t.Context(), otherID, graph.DisplayAttrs{})
		require.NoError(t, err)

		assert.Equal(t, "<@20> is now opted out.", run(t, registry, "stats!forceoptout 20", admin).last())
	})

	t.Run("missing target", func(t *testing.T) {
		t.Parallel()

		registry, _, _ := newRegistry(t, false)

		resp := run(t, registry, "stats!forceoptin nobody", member(authorID, adminRole))
		assert.Equal(t, "Usage: **stats!forceoptin <@user|id>**", resp.last())
	})

	t.Run("export", func(t *testing.T) {
		t.Parallel()

		registry, _, exporter := newRegistry(t, false)

		assert.Equal(t, "Graph exported.", run(t, registry, "stats!export", member(authorID, adminRole)).last())
		assert.Equal(t, 1, exporter.count)
	})
}

func TestRegistry_HandlerError(t *testing.T) {
	t.Parallel()

	registry, _, exporter := newRegistry(t, false)
	exporter.err = errors.New("disk full")

	resp := run(t, registry, "stats!export", member(authorID, adminRole))
	assert.Contains(t, resp.last(), "Something went wrong")
}

func TestRegistry_Stats(t *testing.T) {
	t.Parallel()

	registry, engine, _ := newRegistry(t, false)

	for _, id := range []graph.MemberID{authorID, otherID} {
		_, err := engine.OptIn(t.Context(), id, graph.DisplayAttrs{})
		require.NoError(t, err)
	}

	_, err := engine.RecordInteraction(t.Context(), authorID, otherID)
	require.NoError(t, err)

	reply := run(t, registry, "stats!stats", member(authorID)).last()
	assert.Contains(t, reply, "Opted-in members: 2\n")
	assert.Contains(t, reply, "Total mentions: 1\n")
	assert.Contains(t, reply, "Unique pairs: 1\n")
}
