package graph_test

import (
	"testing"

	"github.com/robalyx/socialgraph/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPairKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		a, b   graph.MemberID
		want   graph.PairKey
		wantOK bool
	}{
		{name: "ordered", a: 1, b: 2, want: graph.PairKey{Low: 1, High: 2}, wantOK: true},
		{name: "reversed", a: 2, b: 1, want: graph.PairKey{Low: 1, High: 2}, wantOK: true},
		{name: "large ids", a: 1 << 63, b: 42, want: graph.PairKey{Low: 42, High: 1 << 63}, wantOK: true},
		{name: "same member", a: 7, b: 7, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := graph.NewPairKey(tt.a, tt.b)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)

			if ok {
				assert.True(t, got.Contains(tt.a))
				assert.True(t, got.Contains(tt.b))
			}
		})
	}
}

func TestParseMemberID(t *testing.T) {
	t.Parallel()

	id, err := graph.ParseMemberID("123456789012345678")
	require.NoError(t, err)
	assert.Equal(t, graph.MemberID(123456789012345678), id)
	assert.Equal(t, "123456789012345678", id.String())

	for _, input := range []string{"", "0", "-1", "abc", "18446744073709551616"} {
		_, err := graph.ParseMemberID(input)
		assert.ErrorIs(t, err, graph.ErrInvalidMemberID, input)
	}
}

func TestMemberState(t *testing.T) {
	t.Parallel()

	var missing *graph.Member
	assert.Equal(t, graph.ConsentStateOptedOut, missing.State())
	assert.Equal(t, graph.ConsentStateOptedOut, (&graph.Member{ID: 1}).State())
	assert.Equal(t, graph.ConsentStateVisible, (&graph.Member{ID: 1, OptedIn: true}).State())
	assert.Equal(t, graph.ConsentStateAnonymous, (&graph.Member{ID: 1, OptedIn: true, Anonymous: true}).State())

	assert.Equal(t, "opted-in-anonymous", graph.ConsentStateAnonymous.String())
	assert.Equal(t, "already opted in", graph.ResultAlreadyOptedIn.String())
	assert.Equal(t, "left", graph.MembershipLeft.String())
}
