package database

import (
	"testing"
	"time"

	"github.com/robalyx/socialgraph/internal/database/types"
	"github.com/robalyx/socialgraph/internal/graph"
	"github.com/stretchr/testify/assert"
)

func TestMemberConversion(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC().Truncate(time.Microsecond)

	member := &graph.Member{
		ID:      123456789012345678,
		OptedIn: true,
		DisplayAttrs: graph.DisplayAttrs{
			DisplayName: "alice",
			AvatarRef:   "https://cdn.example/a.png",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	row := fromGraphMember(member)
	assert.Equal(t, uint64(123456789012345678), row.ID)
	assert.NotNil(t, row.Roles, "roles must never be written as NULL")
	assert.Empty(t, row.Roles)

	back := toGraphMember(row)
	assert.Equal(t, member.ID, back.ID)
	assert.Equal(t, member.DisplayName, back.DisplayName)
	assert.Equal(t, graph.ConsentStateVisible, back.State())

	tombstone := toGraphMember(&types.Member{ID: 5})
	assert.Equal(t, graph.ConsentStateOptedOut, tombstone.State())
}
