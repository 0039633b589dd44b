package bot

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/socialgraph/internal/bot/commands"
	"github.com/robalyx/socialgraph/internal/graph"
)

// UserAttrs returns the display attributes of a user without guild data.
func UserAttrs(user discord.User) graph.DisplayAttrs {
	return graph.DisplayAttrs{
		DisplayName: user.EffectiveName(),
		AvatarRef:   user.EffectiveAvatarURL(),
	}
}

// MemberAttrs returns the display attributes of a guild member.
func MemberAttrs(member discord.Member) graph.DisplayAttrs {
	return graph.DisplayAttrs{
		DisplayName: member.EffectiveName(),
		AvatarRef:   member.EffectiveAvatarURL(),
		Roles:       roleIDs(member.RoleIDs),
	}
}

// authorMember returns the member of the message author with its user filled in.
// Message payloads carry the member without its user.
func authorMember(guildID snowflake.ID, msg discord.Message) (discord.Member, bool) {
	if msg.Member == nil {
		return discord.Member{}, false
	}

	member := *msg.Member
	member.User = msg.Author
	member.GuildID = guildID

	return member, true
}

// authorAttrs returns the display attributes and roles of the message author.
func authorAttrs(guildID snowflake.ID, msg discord.Message) graph.DisplayAttrs {
	if member, ok := authorMember(guildID, msg); ok {
		return MemberAttrs(member)
	}

	return UserAttrs(msg.Author)
}

// InteractionFromMessage normalizes a guild message into an interaction event.
// Every mentioned user is a target; attributes are carried for all participants.
func InteractionFromMessage(guildID snowflake.ID, msg discord.Message) graph.InteractionEvent {
	actorID := graph.MemberID(msg.Author.ID)

	attrs := make(map[graph.MemberID]graph.DisplayAttrs, len(msg.Mentions)+1)
	attrs[actorID] = authorAttrs(guildID, msg)

	targets := make([]graph.MemberID, 0, len(msg.Mentions))
	for _, user := range msg.Mentions {
		id := graph.MemberID(user.ID)
		targets = append(targets, id)

		if _, ok := attrs[id]; !ok {
			attrs[id] = UserAttrs(user)
		}
	}

	return graph.InteractionEvent{
		ActorID:   actorID,
		TargetIDs: targets,
		Attrs:     attrs,
		Timestamp: msg.CreatedAt,
	}
}

// InvocationFromMessage builds the command invocation for a message.
func InvocationFromMessage(guildID snowflake.ID, msg discord.Message) *commands.Invocation {
	event := InteractionFromMessage(guildID, msg)

	var roles []uint64
	if msg.Member != nil {
		roles = roleIDs(msg.Member.RoleIDs)
	}

	return &commands.Invocation{
		AuthorID: event.ActorID,
		RoleIDs:  roles,
		Mentions: event.TargetIDs,
		Attrs:    event.Attrs,
		SentAt:   msg.CreatedAt,
	}
}

// MembershipFromMember normalizes a join.
func MembershipFromMember(member discord.Member, kind graph.MembershipKind) graph.MembershipEvent {
	return graph.MembershipEvent{
		MemberID:     graph.MemberID(member.User.ID),
		Kind:         kind,
		DisplayAttrs: MemberAttrs(member),
	}
}

func roleIDs(ids []snowflake.ID) []uint64 {
	if len(ids) == 0 {
		return nil
	}

	roles := make([]uint64, 0, len(ids))
	for _, id := range ids {
		roles = append(roles, uint64(id))
	}

	return roles
}
