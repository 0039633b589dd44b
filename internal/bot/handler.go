package bot

import (
	"context"
	"slices"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/socialgraph/internal/bot/commands"
	"github.com/robalyx/socialgraph/internal/graph"
	"github.com/robalyx/socialgraph/internal/setup/config"
	"go.uber.org/zap"
)

// EventEngine is the part of the graph engine fed by gateway events.
type EventEngine interface {
	HandleInteraction(ctx context.Context, event graph.InteractionEvent) (int, error)
	HandleMembership(ctx context.Context, event graph.MembershipEvent) error
}

// ResponderFunc returns a responder replying to a message in a channel.
type ResponderFunc func(channelID, messageID snowflake.ID) commands.Responder

// Handler turns gateway events into engine calls on the dispatcher.
type Handler struct {
	engine     EventEngine
	registry   *commands.Registry
	dispatcher *Dispatcher
	cfg        *config.Discord
	responder  ResponderFunc
	logger     *zap.Logger
}

// NewHandler creates a new event handler.
func NewHandler(
	engine EventEngine,
	registry *commands.Registry,
	dispatcher *Dispatcher,
	cfg *config.Discord,
	responder ResponderFunc,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		engine:     engine,
		registry:   registry,
		dispatcher: dispatcher,
		cfg:        cfg,
		responder:  responder,
		logger:     logger.Named("bot_events"),
	}
}

// OnMessage enqueues a guild message.
func (h *Handler) OnMessage(guildID, channelID snowflake.ID, msg discord.Message) {
	if !h.acceptsGuild(guildID) {
		return
	}

	if msg.Author.Bot && h.cfg.IgnoreBots {
		return
	}

	h.dispatcher.Submit("message_create", func(ctx context.Context) error {
		return h.processMessage(ctx, guildID, channelID, msg)
	})
}

// OnMemberJoin enqueues a join.
func (h *Handler) OnMemberJoin(guildID snowflake.ID, member discord.Member) {
	if !h.acceptsGuild(guildID) || (member.User.Bot && h.cfg.IgnoreBots) {
		return
	}

	event := MembershipFromMember(member, graph.MembershipJoined)
	event.Timestamp = time.Now()

	h.dispatcher.Submit("member_join", func(ctx context.Context) error {
		return h.engine.HandleMembership(ctx, event)
	})
}

// OnMemberLeave enqueues a leave.
func (h *Handler) OnMemberLeave(guildID snowflake.ID, user discord.User) {
	if !h.acceptsGuild(guildID) || (user.Bot && h.cfg.IgnoreBots) {
		return
	}

	event := graph.MembershipEvent{
		MemberID:  graph.MemberID(user.ID),
		Kind:      graph.MembershipLeft,
		Timestamp: time.Now(),
	}

	h.dispatcher.Submit("member_leave", func(ctx context.Context) error {
		return h.engine.HandleMembership(ctx, event)
	})
}

// processMessage runs a command or records the interactions of a message.
func (h *Handler) processMessage(ctx context.Context, guildID, channelID snowflake.ID, msg discord.Message) error {
	if _, _, ok := h.registry.Parse(msg.Content); ok {
		inv := InvocationFromMessage(guildID, msg)
		_, err := h.registry.Execute(ctx, msg.Content, inv, h.responder(channelID, msg.ID))

		return err
	}

	if !h.acceptsChannel(channelID) {
		return nil
	}

	if h.cfg.IgnoreBots {
		msg.Mentions = slices.DeleteFunc(slices.Clone(msg.Mentions), func(user discord.User) bool {
			return user.Bot
		})
	}

	event := InteractionFromMessage(guildID, msg)

	recorded, err := h.engine.HandleInteraction(ctx, event)
	if err != nil {
		return err
	}

	if recorded > 0 {
		h.logger.Debug("Recorded interactions",
			zap.Uint64("member_id", uint64(event.ActorID)),
			zap.Int("recorded", recorded))
	}

	return nil
}

func (h *Handler) acceptsGuild(guildID snowflake.ID) bool {
	return h.cfg.GuildID == 0 || uint64(guildID) == h.cfg.GuildID
}

func (h *Handler) acceptsChannel(channelID snowflake.ID) bool {
	return len(h.cfg.ChannelIDs) == 0 || slices.Contains(h.cfg.ChannelIDs, uint64(channelID))
}
