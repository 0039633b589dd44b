package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/robalyx/socialgraph/internal/graph"
)

const anonymousUnavailable = "Anonymous mode is not available on this server."

func (r *Registry) registerBuiltins() {
	r.Register(&Command{Name: "help", Description: "Show this message", Handler: r.help})
	r.Register(&Command{Name: "ping", Description: "Check bot latency", Handler: r.ping})
	r.Register(&Command{Name: "optin", Description: "Add yourself to the graph", Handler: r.optIn})
	r.Register(&Command{
		Name:        "optout",
		Description: "Remove yourself and all of your mentions from the graph",
		Handler:     r.optOut,
	})
	r.Register(&Command{
		Name:        "anonymous",
		Usage:       "<on|off>",
		Description: "Hide or show your name in the graph",
		Handler:     r.anonymous,
	})
	r.Register(&Command{
		Name:        "toggleanonymous",
		Description: "Toggle anonymous mode for yourself in the graph",
		Handler:     r.toggleAnonymous,
	})
	r.Register(&Command{Name: "stats", Description: "Show graph statistics", Handler: r.stats})
	r.Register(&Command{
		Name:        "forceoptin",
		Usage:       "<@user|id>",
		Description: "Opt a member in",
		Admin:       true,
		Handler:     r.forceOptIn,
	})
	r.Register(&Command{
		Name:        "forceoptout",
		Usage:       "<@user|id>",
		Description: "Opt a member out and delete their mentions",
		Admin:       true,
		Handler:     r.forceOptOut,
	})
	r.Register(&Command{
		Name:        "export",
		Description: "Export the graph now",
		Admin:       true,
		Handler:     r.export,
	})
}

func (r *Registry) help(ctx context.Context, _ *Invocation, resp Responder) error {
	return resp.Reply(ctx, r.Help())
}

func (r *Registry) ping(ctx context.Context, inv *Invocation, resp Responder) error {
	latency := max(r.now().Sub(inv.SentAt).Milliseconds(), 0)
	return resp.Reply(ctx, fmt.Sprintf("Pong! Latency is %dms.", latency))
}

func (r *Registry) optIn(ctx context.Context, inv *Invocation, resp Responder) error {
	result, err := r.engine.OptIn(ctx, inv.AuthorID, inv.AuthorAttrs())
	if err != nil {
		return err
	}

	if result == graph.ResultAlreadyOptedIn {
		return resp.Reply(ctx, "You are already opted in.")
	}

	return resp.Reply(ctx, "You are now opted in. Your mentions will appear in the graph.")
}

func (r *Registry) optOut(ctx context.Context, inv *Invocation, resp Responder) error {
	result, err := r.engine.OptOut(ctx, inv.AuthorID)
	if err != nil {
		return err
	}

	if result == graph.ResultNotOptedIn {
		return resp.Reply(ctx, "You are not opted in.")
	}

	return resp.Reply(ctx, "You are now opted out. Your mentions have been removed from the graph.")
}

func (r *Registry) anonymous(ctx context.Context, inv *Invocation, resp Responder) error {
	if !r.engine.AnonymousEnabled() {
		return resp.Reply(ctx, anonymousUnavailable)
	}

	if len(inv.Args) == 0 {
		state, err := r.engine.State(ctx, inv.AuthorID)
		if err != nil {
			return err
		}

		return resp.Reply(ctx, fmt.Sprintf("Anonymous mode is %v. Usage: **%sanonymous <on|off>**",
			state == graph.ConsentStateAnonymous, r.prefix))
	}

	var anonymous bool

	switch strings.ToLower(inv.Args[0]) {
	case "on", "true", "yes":
		anonymous = true
	case "off", "false", "no":
		anonymous = false
	default:
		return resp.Reply(ctx, fmt.Sprintf("Usage: **%sanonymous <on|off>**", r.prefix))
	}

	value, err := r.engine.SetAnonymous(ctx, inv.AuthorID, anonymous, inv.AuthorAttrs())
	if err != nil {
		return err
	}

	return resp.Reply(ctx, fmt.Sprintf("Anonymous mode set to %v", value))
}

func (r *Registry) toggleAnonymous(ctx context.Context, inv *Invocation, resp Responder) error {
	value, err := r.engine.ToggleAnonymous(ctx, inv.AuthorID, inv.AuthorAttrs())
	if errors.Is(err, graph.ErrAnonymousModeDisabled) {
		return resp.Reply(ctx, anonymousUnavailable)
	}

	if err != nil {
		return err
	}

	return resp.Reply(ctx, fmt.Sprintf("Anonymous mode set to %v", value))
}

func (r *Registry) stats(ctx context.Context, _ *Invocation, resp Responder) error {
	snapshot, err := r.engine.Snapshot(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder

	b.WriteString("**Graph statistics**\n")
	fmt.Fprintf(&b, "Opted-in members: %d\n", snapshot.OptedInCount)
	fmt.Fprintf(&b, "Total mentions: %d\n", snapshot.TotalMentions)
	fmt.Fprintf(&b, "Unique pairs: %d\n", snapshot.UniquePairs)
	fmt.Fprintf(&b, "Heaviest pair: %d\n", snapshot.MaxWeight)
	fmt.Fprintf(&b, "Average per pair: %.2f\n", snapshot.AvgPerPair)
	fmt.Fprintf(&b, "Average per member: %.2f\n", snapshot.AvgPerMember)
	fmt.Fprintf(&b, "Messages processed: %d\n", snapshot.MessagesProcessed)
	fmt.Fprintf(&b, "Exports: %d", snapshot.ExportsPerformed)

	return resp.Reply(ctx, b.String())
}

func (r *Registry) forceOptIn(ctx context.Context, inv *Invocation, resp Responder) error {
	target, ok := targetOf(inv)
	if !ok {
		return resp.Reply(ctx, fmt.Sprintf("Usage: **%sforceoptin <@user|id>**", r.prefix))
	}

	result, err := r.engine.ForceOptIn(ctx, inv.AuthorID, target, inv.Attrs[target])
	if err != nil {
		return err
	}

	if result == graph.ResultAlreadyOptedIn {
		return resp.Reply(ctx, fmt.Sprintf("<@%d> is already opted in.", target))
	}

	return resp.Reply(ctx, fmt.Sprintf("<@%d> is now opted in.", target))
}

func (r *Registry) forceOptOut(ctx context.Context, inv *Invocation, resp Responder) error {
	target, ok := targetOf(inv)
	if !ok {
		return resp.Reply(ctx, fmt.Sprintf("Usage: **%sforceoptout <@user|id>**", r.prefix))
	}

	result, err := r.engine.ForceOptOut(ctx, inv.AuthorID, target)
	if err != nil {
		return err
	}

	if result == graph.ResultNotOptedIn {
		return resp.Reply(ctx, fmt.Sprintf("<@%d> is not opted in.", target))
	}

	return resp.Reply(ctx, fmt.Sprintf("<@%d> is now opted out.", target))
}

func (r *Registry) export(ctx context.Context, _ *Invocation, resp Responder) error {
	if err := r.engine.ExportNow(ctx); err != nil {
		return err
	}

	return resp.Reply(ctx, "Graph exported.")
}

// targetOf resolves the member an admin command acts on. A mention wins over a raw id.
func targetOf(inv *Invocation) (graph.MemberID, bool) {
	if len(inv.Mentions) > 0 {
		return inv.Mentions[0], true
	}

	if len(inv.Args) == 0 {
		return 0, false
	}

	raw := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(inv.Args[0], "<@"), "!"), ">")

	id, err := graph.ParseMemberID(raw)
	if err != nil {
		return 0, false
	}

	return id, true
}
