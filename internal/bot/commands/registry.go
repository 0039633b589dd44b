// Package commands implements the prefix commands members use to manage their
// place in the mention graph.
package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/robalyx/socialgraph/internal/graph"
	"go.uber.org/zap"
)

// Engine is the part of the graph engine the commands operate on.
type Engine interface {
	OptIn(ctx context.Context, id graph.MemberID, attrs graph.DisplayAttrs) (graph.Result, error)
	OptOut(ctx context.Context, id graph.MemberID) (graph.Result, error)
	SetAnonymous(ctx context.Context, id graph.MemberID, anonymous bool, attrs graph.DisplayAttrs) (bool, error)
	ToggleAnonymous(ctx context.Context, id graph.MemberID, attrs graph.DisplayAttrs) (bool, error)
	ForceOptIn(ctx context.Context, adminID, id graph.MemberID, attrs graph.DisplayAttrs) (graph.Result, error)
	ForceOptOut(ctx context.Context, adminID, id graph.MemberID) (graph.Result, error)
	State(ctx context.Context, id graph.MemberID) (graph.ConsentState, error)
	ExportNow(ctx context.Context) error
	Snapshot(ctx context.Context) (graph.Snapshot, error)
	CommandProcessed()
	AnonymousEnabled() bool
}

// Responder sends a reply to the channel a command was invoked in.
type Responder interface {
	Reply(ctx context.Context, content string) error
}

// Invocation is a parsed command message.
type Invocation struct {
	AuthorID graph.MemberID
	RoleIDs  []uint64
	Args     []string
	// Mentions lists the members mentioned in the message, in order.
	Mentions []graph.MemberID
	Attrs    map[graph.MemberID]graph.DisplayAttrs
	SentAt   time.Time
}

// AuthorAttrs returns the display attributes of the invoking member.
func (inv *Invocation) AuthorAttrs() graph.DisplayAttrs {
	return inv.Attrs[inv.AuthorID]
}

// HandlerFunc runs a command.
type HandlerFunc func(ctx context.Context, inv *Invocation, r Responder) error

// Command describes a registered command.
type Command struct {
	Name        string
	Usage       string
	Description string
	Admin       bool
	Handler     HandlerFunc
}

// Registry parses prefixed messages and routes them to commands.
type Registry struct {
	engine     Engine
	prefix     string
	adminRoles []uint64
	commands   map[string]*Command
	order      []*Command
	logger     *zap.Logger
	now        func() time.Time
}

// NewRegistry creates a registry with every built-in command.
// Admin commands require one of adminRoleIDs.
func NewRegistry(engine Engine, prefix string, adminRoleIDs []uint64, logger *zap.Logger) *Registry {
	r := &Registry{
		engine:     engine,
		prefix:     prefix,
		adminRoles: slices.Clone(adminRoleIDs),
		commands:   make(map[string]*Command),
		logger:     logger.Named("commands"),
		now:        time.Now,
	}

	r.registerBuiltins()

	return r
}

// Register adds a command. A command with the same name is replaced.
func (r *Registry) Register(cmd *Command) {
	name := strings.ToLower(cmd.Name)
	if _, exists := r.commands[name]; exists {
		r.order = slices.DeleteFunc(r.order, func(existing *Command) bool {
			return strings.EqualFold(existing.Name, name)
		})
	}

	r.order = append(r.order, cmd)

	r.commands[name] = cmd
}

// Prefix returns the command prefix.
func (r *Registry) Prefix() string {
	return r.prefix
}

// Parse splits a message into a command name and its arguments.
// It reports false when the message does not start with the prefix.
func (r *Registry) Parse(content string) (string, []string, bool) {
	if r.prefix == "" || !strings.HasPrefix(content, r.prefix) {
		return "", nil, false
	}

	fields := strings.Fields(content[len(r.prefix):])
	if len(fields) == 0 {
		return "", nil, true
	}

	return strings.ToLower(fields[0]), fields[1:], true
}

// Execute runs the command in content if it carries the prefix.
// It reports whether the message was a command.
func (r *Registry) Execute(ctx context.Context, content string, inv *Invocation, resp Responder) (bool, error) {
	name, args, ok := r.Parse(content)
	if !ok {
		return false, nil
	}

	r.engine.CommandProcessed()
	inv.Args = args

	cmd, exists := r.commands[name]
	if !exists {
		return true, resp.Reply(ctx, fmt.Sprintf("Unknown command. Type **%shelp** for help.", r.prefix))
	}

	if cmd.Admin && !r.isAdmin(inv.RoleIDs) {
		r.logger.Warn("Unauthorized admin command",
			zap.String("command", cmd.Name),
			zap.Uint64("member_id", uint64(inv.AuthorID)))

		return true, resp.Reply(ctx, "You do not have permission to use this command.")
	}

	start := time.Now()

	if err := cmd.Handler(ctx, inv, resp); err != nil {
		r.logger.Error("Command failed",
			zap.String("command", cmd.Name),
			zap.Uint64("member_id", uint64(inv.AuthorID)),
			zap.Error(err))

		return true, resp.Reply(ctx, "Something went wrong while running this command. Please try again later.")
	}

	r.logger.Debug("Command handled",
		zap.String("command", cmd.Name),
		zap.Uint64("member_id", uint64(inv.AuthorID)),
		zap.Duration("duration", time.Since(start)))

	return true, nil
}

// Help renders the help message.
func (r *Registry) Help() string {
	var b strings.Builder

	fmt.Fprintf(&b, "**%s**\nCommands:\n", r.prefix)

	for _, cmd := range r.order {
		if !cmd.Admin {
			writeHelpLine(&b, cmd)
		}
	}

	if len(r.adminRoles) > 0 {
		b.WriteString("Admin commands:\n")

		for _, cmd := range r.order {
			if cmd.Admin {
				writeHelpLine(&b, cmd)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeHelpLine(b *strings.Builder, cmd *Command) {
	usage := cmd.Name
	if cmd.Usage != "" {
		usage += " " + cmd.Usage
	}

	fmt.Fprintf(b, "- **%s**: %s\n", usage, cmd.Description)
}

// isAdmin reports whether any of the roles is an admin role.
func (r *Registry) isAdmin(roleIDs []uint64) bool {
	for _, id := range roleIDs {
		if slices.Contains(r.adminRoles, id) {
			return true
		}
	}

	return false
}
