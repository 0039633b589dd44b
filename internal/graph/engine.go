package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Config configures the engine.
type Config struct {
	Policy         Policy
	Threshold      int
	AnonymousLabel string
}

// deferRebuildKey marks a context whose consent changes are exported by the caller.
type deferRebuildKey struct{}

// Engine turns interaction and membership events into a consent-filtered mention graph.
// It is the only entry point the dispatch layer talks to.
type Engine struct {
	consent   *ConsentStore
	ledger    *Ledger
	builder   *Builder
	scheduler *Scheduler
	metrics   *Aggregator
	logger    *zap.Logger
}

// NewEngine wires the engine components on top of a store.
// Anonymous display is only enabled when a pseudonymizer is supplied.
func NewEngine(store Store, exporter Exporter, pseudonymizer *Pseudonymizer, cfg Config, logger *zap.Logger) *Engine {
	policy := cfg.Policy
	policy.AnonymousEnabled = pseudonymizer != nil

	ledger := NewLedger(store, store, logger)
	consent := NewConsentStore(store, ledger, policy, logger)
	builder := NewBuilder(consent, ledger, pseudonymizer, cfg.AnonymousLabel, logger)
	scheduler := NewScheduler(builder, exporter, cfg.Threshold, logger)
	metrics := NewAggregator(consent, ledger, scheduler)

	consent.OnChange(func(ctx context.Context) {
		if ctx.Value(deferRebuildKey{}) != nil {
			return
		}

		scheduler.OnMembershipChange(ctx)
	})

	return &Engine{
		consent:   consent,
		ledger:    ledger,
		builder:   builder,
		scheduler: scheduler,
		metrics:   metrics,
		logger:    logger.Named("graph_engine"),
	}
}

// Start prunes edges left behind by earlier runs.
func (e *Engine) Start(ctx context.Context) error {
	if _, err := e.ledger.PruneOrphans(ctx); err != nil {
		return err
	}

	policy := e.consent.Policy()
	e.logger.Info("Graph engine started",
		zap.Bool("auto_opt_in", policy.AutoOptIn),
		zap.Bool("delete_on_leave", policy.DeleteOnLeave),
		zap.Bool("anonymous_enabled", policy.AnonymousEnabled),
		zap.Int("threshold", e.scheduler.Stats().Threshold))

	return nil
}

// HandleInteraction processes one message. Every target that qualifies increments
// the edge with the actor and counts towards the export threshold.
// It returns the number of interactions recorded.
func (e *Engine) HandleInteraction(ctx context.Context, event InteractionEvent) (int, error) {
	e.metrics.MessageProcessed()

	if !event.ActorID.Valid() || len(event.TargetIDs) == 0 {
		return 0, nil
	}

	targets := uniqueTargets(event.ActorID, event.TargetIDs)
	if len(targets) == 0 {
		return 0, nil
	}

	actorAttrs, fresh := event.Attrs[event.ActorID]
	if _, err := e.consent.EnsureMember(ctx, event.ActorID, actorAttrs); err != nil {
		return 0, err
	}

	if fresh {
		if _, err := e.consent.RefreshAttributes(ctx, event.ActorID, actorAttrs); err != nil {
			return 0, err
		}
	}

	// Target attributes lack guild data and only seed new records
	for _, target := range targets {
		if _, err := e.consent.EnsureMember(ctx, target, event.Attrs[target]); err != nil {
			return 0, err
		}
	}

	var recorded int

	for _, target := range targets {
		ok, err := e.RecordInteraction(ctx, event.ActorID, target)
		if err != nil {
			return recorded, err
		}

		if ok {
			recorded++
		}
	}

	return recorded, nil
}

// HandleMembership applies a join or leave and exports immediately.
func (e *Engine) HandleMembership(ctx context.Context, event MembershipEvent) error {
	if !event.MemberID.Valid() {
		return ErrInvalidMemberID
	}

	deferred := context.WithValue(ctx, deferRebuildKey{}, true)
	policy := e.consent.Policy()

	switch event.Kind {
	case MembershipJoined:
		if _, err := e.consent.EnsureMember(deferred, event.MemberID, event.DisplayAttrs); err != nil {
			return err
		}

		if _, err := e.consent.RefreshAttributes(deferred, event.MemberID, event.DisplayAttrs); err != nil {
			return err
		}
	case MembershipLeft:
		if policy.DeleteOnLeave {
			if _, err := e.consent.Purge(deferred, event.MemberID); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown membership kind %d", event.Kind)
	}

	e.logger.Debug("Membership changed",
		zap.Uint64("member_id", uint64(event.MemberID)),
		zap.Stringer("kind", event.Kind))

	e.scheduler.OnMembershipChange(ctx)

	return nil
}

// RecordInteraction records a single actor to target interaction.
func (e *Engine) RecordInteraction(ctx context.Context, actorID, targetID MemberID) (bool, error) {
	ok, err := e.ledger.RecordInteraction(ctx, actorID, targetID)
	if err != nil || !ok {
		return false, err
	}

	e.scheduler.OnQualifyingEvent(ctx)

	return true, nil
}

// OptIn opts a member in as a visible node.
func (e *Engine) OptIn(ctx context.Context, id MemberID, attrs DisplayAttrs) (Result, error) {
	return e.consent.OptIn(ctx, id, attrs)
}

// OptOut opts a member out and deletes their edges.
func (e *Engine) OptOut(ctx context.Context, id MemberID) (Result, error) {
	return e.consent.OptOut(ctx, id)
}

// SetAnonymous sets the display mode of a member.
func (e *Engine) SetAnonymous(ctx context.Context, id MemberID, anonymous bool, attrs DisplayAttrs) (bool, error) {
	return e.consent.SetAnonymous(ctx, id, anonymous, attrs)
}

// ToggleAnonymous flips the display mode of a member.
func (e *Engine) ToggleAnonymous(ctx context.Context, id MemberID, attrs DisplayAttrs) (bool, error) {
	return e.consent.ToggleAnonymous(ctx, id, attrs)
}

// ForceOptIn opts a member in on behalf of an administrator.
// Authorization is the caller's responsibility.
func (e *Engine) ForceOptIn(ctx context.Context, adminID, id MemberID, attrs DisplayAttrs) (Result, error) {
	result, err := e.consent.OptIn(ctx, id, attrs)
	if err == nil {
		e.logger.Info("Administrative opt in",
			zap.Uint64("admin_id", uint64(adminID)),
			zap.Uint64("member_id", uint64(id)),
			zap.Stringer("result", result))
	}

	return result, err
}

// ForceOptOut opts a member out on behalf of an administrator.
// Authorization is the caller's responsibility.
func (e *Engine) ForceOptOut(ctx context.Context, adminID, id MemberID) (Result, error) {
	result, err := e.consent.OptOut(ctx, id)
	if err == nil {
		e.logger.Info("Administrative opt out",
			zap.Uint64("admin_id", uint64(adminID)),
			zap.Uint64("member_id", uint64(id)),
			zap.Stringer("result", result))
	}

	return result, err
}

// RefreshAttributes updates cached display attributes of an opted-in member.
func (e *Engine) RefreshAttributes(ctx context.Context, id MemberID, attrs DisplayAttrs) (bool, error) {
	return e.consent.RefreshAttributes(ctx, id, attrs)
}

// RemoveAllEdgesFor deletes every edge incident to a member.
func (e *Engine) RemoveAllEdgesFor(ctx context.Context, id MemberID) (int64, error) {
	return e.ledger.RemoveAllEdgesFor(ctx, id)
}

// State returns the consent state of a member.
func (e *Engine) State(ctx context.Context, id MemberID) (ConsentState, error) {
	return e.consent.State(ctx, id)
}

// Build returns a freshly built graph without exporting it.
func (e *Engine) Build(ctx context.Context) (*Graph, error) {
	return e.builder.Build(ctx)
}

// ExportNow forces an export outside the schedule.
func (e *Engine) ExportNow(ctx context.Context) error {
	return e.scheduler.ExportNow(ctx)
}

// Snapshot returns the current statistics.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	return e.metrics.Snapshot(ctx)
}

// SchedulerStats returns the export scheduler counters.
func (e *Engine) SchedulerStats() SchedulerStats {
	return e.scheduler.Stats()
}

// CommandProcessed counts a handled command.
func (e *Engine) CommandProcessed() {
	e.metrics.CommandProcessed()
}

// AnonymousEnabled reports whether members can choose anonymous display.
func (e *Engine) AnonymousEnabled() bool {
	return e.consent.Policy().AnonymousEnabled
}

func uniqueTargets(actor MemberID, targets []MemberID) []MemberID {
	seen := make(map[MemberID]struct{}, len(targets))
	result := make([]MemberID, 0, len(targets))

	for _, id := range targets {
		if id == actor || !id.Valid() {
			continue
		}

		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		result = append(result, id)
	}

	return result
}
