package bot_test

import (
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/socialgraph/internal/bot"
	"github.com/robalyx/socialgraph/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteractionFromMessage(t *testing.T) {
	t.Parallel()

	nick := "Nick"
	sentAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	msg := discord.Message{
		Author: discord.User{ID: 1, Username: "author"},
		Member: &discord.Member{Nick: &nick, RoleIDs: []snowflake.ID{50, 51}},
		Mentions: []discord.User{
			{ID: 2, Username: "second"},
			{ID: 3, Username: "third"},
		},
		CreatedAt: sentAt,
	}

	event := bot.InteractionFromMessage(snowflake.ID(100), msg)

	assert.Equal(t, graph.MemberID(1), event.ActorID)
	assert.Equal(t, []graph.MemberID{2, 3}, event.TargetIDs)
	assert.Equal(t, sentAt, event.Timestamp)

	require.Contains(t, event.Attrs, graph.MemberID(1))
	assert.Equal(t, "Nick", event.Attrs[1].DisplayName)
	assert.Equal(t, []uint64{50, 51}, event.Attrs[1].Roles)
	assert.Equal(t, "second", event.Attrs[2].DisplayName)
	assert.NotEmpty(t, event.Attrs[2].AvatarRef)
}

func TestInvocationFromMessage(t *testing.T) {
	t.Parallel()

	msg := discord.Message{
		Author:   discord.User{ID: 1, Username: "author"},
		Member:   &discord.Member{RoleIDs: []snowflake.ID{900}},
		Mentions: []discord.User{{ID: 2, Username: "target"}},
	}

	inv := bot.InvocationFromMessage(snowflake.ID(100), msg)

	assert.Equal(t, graph.MemberID(1), inv.AuthorID)
	assert.Equal(t, []uint64{900}, inv.RoleIDs)
	assert.Equal(t, []graph.MemberID{2}, inv.Mentions)
	assert.Equal(t, "author", inv.AuthorAttrs().DisplayName)
}

func TestMembershipFromMember(t *testing.T) {
	t.Parallel()

	member := discord.Member{User: discord.User{ID: 7, Username: "joiner"}}
	event := bot.MembershipFromMember(member, graph.MembershipJoined)

	assert.Equal(t, graph.MemberID(7), event.MemberID)
	assert.Equal(t, graph.MembershipJoined, event.Kind)
	assert.Equal(t, "joiner", event.DisplayAttrs.DisplayName)
}
