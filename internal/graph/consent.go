package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Policy selects between the consent models a deployment can run with.
type Policy struct {
	// AutoOptIn treats every community member as opted in until they opt out.
	AutoOptIn bool
	// DeleteOnLeave purges a member and their edges when they leave the community.
	DeleteOnLeave bool
	// AnonymousEnabled allows members to be displayed under a pseudonym.
	AnonymousEnabled bool
}

// ConsentStore owns the per-member consent state machine.
type ConsentStore struct {
	members  MemberStore
	ledger   *Ledger
	policy   Policy
	onChange func(ctx context.Context)
	now      func() time.Time
	logger   *zap.Logger
}

// NewConsentStore creates a consent store. Opt-outs cascade into the ledger.
func NewConsentStore(members MemberStore, ledger *Ledger, policy Policy, logger *zap.Logger) *ConsentStore {
	return &ConsentStore{
		members:  members,
		ledger:   ledger,
		policy:   policy,
		onChange: func(context.Context) {},
		now:      time.Now,
		logger:   logger.Named("graph_consent"),
	}
}

// OnChange registers the rebuild trigger called after every consent change.
func (c *ConsentStore) OnChange(fn func(ctx context.Context)) {
	c.onChange = fn
}

// Policy returns the active consent policy.
func (c *ConsentStore) Policy() Policy {
	return c.policy
}

// Get returns the record of a member or ErrMemberNotFound.
func (c *ConsentStore) Get(ctx context.Context, id MemberID) (*Member, error) {
	member, err := c.members.GetMember(ctx, id)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to get member %d: %w", id, err)
	}

	return member, nil
}

// State returns the consent state of a member.
func (c *ConsentStore) State(ctx context.Context, id MemberID) (ConsentState, error) {
	member, err := c.Get(ctx, id)
	if errors.Is(err, ErrMemberNotFound) {
		return ConsentStateOptedOut, nil
	}

	if err != nil {
		return ConsentStateOptedOut, err
	}

	return member.State(), nil
}

// OptedInMembers returns every opted-in member.
func (c *ConsentStore) OptedInMembers(ctx context.Context) ([]*Member, error) {
	members, err := c.members.ListOptedIn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list opted-in members: %w", err)
	}

	return members, nil
}

// OptedInCount returns the number of opted-in members.
func (c *ConsentStore) OptedInCount(ctx context.Context) (int64, error) {
	count, err := c.members.CountOptedIn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count opted-in members: %w", err)
	}

	return count, nil
}

// OptIn adds the member to the graph as a visible node.
// A member who is already opted in is left untouched.
func (c *ConsentStore) OptIn(ctx context.Context, id MemberID, attrs DisplayAttrs) (Result, error) {
	if !id.Valid() {
		return ResultIgnored, ErrInvalidMemberID
	}

	existing, err := c.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrMemberNotFound) {
		return ResultIgnored, err
	}

	if existing != nil && existing.OptedIn {
		return ResultAlreadyOptedIn, nil
	}

	now := c.now()
	member := &Member{
		ID:           id,
		OptedIn:      true,
		Anonymous:    false,
		DisplayAttrs: attrs,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if existing != nil {
		member.CreatedAt = existing.CreatedAt
	}

	if err := c.members.SaveMember(ctx, member); err != nil {
		return ResultIgnored, fmt.Errorf("failed to opt in member %d: %w", id, err)
	}

	c.logger.Info("Member opted in", zap.Uint64("member_id", uint64(id)))
	c.onChange(ctx)

	return ResultApplied, nil
}

// OptOut removes the member from the graph and deletes every edge incident to them.
// The record is kept as a tombstone without display attributes so the choice survives
// auto opt-in; nothing is written for unknown members unless auto opt-in is active.
func (c *ConsentStore) OptOut(ctx context.Context, id MemberID) (Result, error) {
	if !id.Valid() {
		return ResultIgnored, ErrInvalidMemberID
	}

	if !c.policy.AutoOptIn {
		_, err := c.Get(ctx, id)
		if errors.Is(err, ErrMemberNotFound) {
			return ResultNotOptedIn, nil
		}

		if err != nil {
			return ResultIgnored, err
		}
	}

	// Tombstone first so a racing interaction cannot recreate an edge after the cascade
	wasOptedIn, err := c.members.MarkOptedOut(ctx, id)
	if err != nil {
		return ResultIgnored, fmt.Errorf("failed to opt out member %d: %w", id, err)
	}

	if !wasOptedIn {
		return ResultNotOptedIn, nil
	}

	if _, err := c.ledger.RemoveAllEdgesFor(ctx, id); err != nil {
		return ResultIgnored, err
	}

	c.logger.Info("Member opted out", zap.Uint64("member_id", uint64(id)))
	c.onChange(ctx)

	return ResultApplied, nil
}

// SetAnonymous sets the display mode of a member without touching their edges.
// A member without an opted-in record is opted in with the requested mode.
func (c *ConsentStore) SetAnonymous(ctx context.Context, id MemberID, anonymous bool, attrs DisplayAttrs) (bool, error) {
	if !id.Valid() {
		return false, ErrInvalidMemberID
	}

	if anonymous && !c.policy.AnonymousEnabled {
		return false, ErrAnonymousModeDisabled
	}

	existing, err := c.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrMemberNotFound) {
		return false, err
	}

	if existing != nil && existing.OptedIn && existing.Anonymous == anonymous {
		return anonymous, nil
	}

	now := c.now()

	var member *Member

	if existing != nil && existing.OptedIn {
		updated := *existing
		updated.Anonymous = anonymous
		updated.UpdatedAt = now
		member = &updated
	} else {
		member = &Member{
			ID:           id,
			OptedIn:      true,
			Anonymous:    anonymous,
			DisplayAttrs: attrs,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	if err := c.members.SaveMember(ctx, member); err != nil {
		return false, fmt.Errorf("failed to set anonymous mode for member %d: %w", id, err)
	}

	c.logger.Info("Member display mode changed",
		zap.Uint64("member_id", uint64(id)),
		zap.Bool("anonymous", anonymous))
	c.onChange(ctx)

	return anonymous, nil
}

// ToggleAnonymous flips the display mode of a member.
// A member without an opted-in record is opted in as visible.
func (c *ConsentStore) ToggleAnonymous(ctx context.Context, id MemberID, attrs DisplayAttrs) (bool, error) {
	state, err := c.State(ctx, id)
	if err != nil {
		return false, err
	}

	return c.SetAnonymous(ctx, id, state == ConsentStateVisible, attrs)
}

// RefreshAttributes updates the cached display attributes of an opted-in member.
// It does nothing for members who are not opted in.
func (c *ConsentStore) RefreshAttributes(ctx context.Context, id MemberID, attrs DisplayAttrs) (bool, error) {
	if !id.Valid() {
		return false, nil
	}

	applied, err := c.members.UpdateAttributes(ctx, id, attrs)
	if err != nil {
		return false, fmt.Errorf("failed to refresh attributes for member %d: %w", id, err)
	}

	return applied, nil
}

// EnsureMember opts in a member seen for the first time when auto opt-in is active.
// Members with any existing record, including tombstones, are left untouched.
func (c *ConsentStore) EnsureMember(ctx context.Context, id MemberID, attrs DisplayAttrs) (bool, error) {
	if !c.policy.AutoOptIn || !id.Valid() {
		return false, nil
	}

	now := c.now()

	created, err := c.members.InsertMember(ctx, &Member{
		ID:           id,
		OptedIn:      true,
		DisplayAttrs: attrs,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return false, fmt.Errorf("failed to auto opt in member %d: %w", id, err)
	}

	if created {
		c.logger.Debug("Member auto opted in", zap.Uint64("member_id", uint64(id)))
	}

	return created, nil
}

// Purge deletes every trace of a member, record and edges alike.
func (c *ConsentStore) Purge(ctx context.Context, id MemberID) (Result, error) {
	if !id.Valid() {
		return ResultIgnored, ErrInvalidMemberID
	}

	_, err := c.Get(ctx, id)
	if errors.Is(err, ErrMemberNotFound) {
		return ResultNotOptedIn, nil
	}

	if err != nil {
		return ResultIgnored, err
	}

	if err := c.members.DeleteMember(ctx, id); err != nil {
		return ResultIgnored, fmt.Errorf("failed to delete member %d: %w", id, err)
	}

	if _, err := c.ledger.RemoveAllEdgesFor(ctx, id); err != nil {
		return ResultIgnored, err
	}

	c.logger.Info("Member purged", zap.Uint64("member_id", uint64(id)))
	c.onChange(ctx)

	return ResultApplied, nil
}
