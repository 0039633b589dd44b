package bot

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/socialgraph/internal/bot/commands"
	"github.com/robalyx/socialgraph/internal/graph"
	"github.com/robalyx/socialgraph/internal/setup/config"
	"go.uber.org/zap"
)

// Engine is the graph engine as used by the bot.
type Engine interface {
	EventEngine
	commands.Engine
}

// Bot connects the Discord gateway to the graph engine.
type Bot struct {
	client     bot.Client
	handler    *Handler
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// New creates the Discord client and registers the event listeners.
func New(cfg *config.Discord, engine Engine, logger *zap.Logger) (*Bot, error) {
	logger = logger.Named("bot")

	b := &Bot{
		dispatcher: NewDispatcher(DefaultQueueSize, logger),
		logger:     logger,
	}

	registry := commands.NewRegistry(engine, cfg.Prefix, cfg.AdminRoleIDs, logger)
	b.handler = NewHandler(engine, registry, b.dispatcher, cfg, b.channelResponder, logger)

	gatewayOpts := []gateway.ConfigOpt{
		gateway.WithIntents(
			gateway.IntentGuilds,
			gateway.IntentGuildMessages,
			gateway.IntentMessageContent,
			gateway.IntentGuildMembers,
		),
	}

	if cfg.Activity != "" {
		gatewayOpts = append(gatewayOpts, gateway.WithPresenceOpts(
			gateway.WithPlayingActivity(cfg.Activity),
		))
	}

	client, err := disgo.New(cfg.Token,
		bot.WithGatewayConfigOpts(gatewayOpts...),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnReady:              b.handleReady,
			OnGuildMessageCreate: b.handleGuildMessageCreate,
			OnGuildMemberJoin:    b.handleGuildMemberJoin,
			OnGuildMemberLeave:   b.handleGuildMemberLeave,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord client: %w", err)
	}

	b.client = client

	return b, nil
}

// Start opens the gateway and processes events until the context is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting bot")

	if err := b.client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}

	b.dispatcher.Run(ctx)

	return nil
}

// Close gracefully shuts down the Discord gateway connection.
func (b *Bot) Close() {
	b.logger.Info("Closing bot",
		zap.Int("pending_events", b.dispatcher.Pending()),
		zap.Int64("dropped_events", b.dispatcher.Dropped()))
	b.client.Close(context.Background())
}

func (b *Bot) handleReady(event *events.Ready) {
	b.logger.Info("Bot is ready",
		zap.String("username", event.User.Username),
		zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) handleGuildMessageCreate(event *events.GuildMessageCreate) {
	b.handler.OnMessage(event.GuildID, event.ChannelID, event.Message)
}

func (b *Bot) handleGuildMemberJoin(event *events.GuildMemberJoin) {
	b.handler.OnMemberJoin(event.GuildID, event.Member)
}

func (b *Bot) handleGuildMemberLeave(event *events.GuildMemberLeave) {
	b.handler.OnMemberLeave(event.GuildID, event.User)
}

// channelResponder replies in the channel of the invoking message.
func (b *Bot) channelResponder(channelID, messageID snowflake.ID) commands.Responder {
	return &channelResponder{
		client:    b.client,
		channelID: channelID,
		messageID: messageID,
	}
}

type channelResponder struct {
	client    bot.Client
	channelID snowflake.ID
	messageID snowflake.ID
}

func (r *channelResponder) Reply(ctx context.Context, content string) error {
	message := discord.NewMessageCreateBuilder().
		SetContent(content).
		SetMessageReferenceByID(r.messageID).
		SetAllowedMentions(&discord.AllowedMentions{}).
		Build()

	if _, err := r.client.Rest().CreateMessage(r.channelID, message, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}

	return nil
}

var _ Engine = (*graph.Engine)(nil)
