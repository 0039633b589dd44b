package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robalyx/socialgraph/internal/database/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/zap"
)

// ErrMemberNotFound is returned when no row exists for a member.
var ErrMemberNotFound = errors.New("member not found")

// MemberModel handles database operations for member consent records.
type MemberModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewMember creates a new member model.
func NewMember(db *bun.DB, logger *zap.Logger) *MemberModel {
	return &MemberModel{
		db:     db,
		logger: logger.Named("db_member"),
	}
}

// GetMember returns the record of a member.
func (m *MemberModel) GetMember(ctx context.Context, id uint64) (*types.Member, error) {
	var member types.Member

	err := m.db.NewSelect().
		Model(&member).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}

		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return &member, nil
}

// InsertMember creates the record if the member has none and reports whether it did.
func (m *MemberModel) InsertMember(ctx context.Context, member *types.Member) (bool, error) {
	result, err := m.db.NewInsert().
		Model(member).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to insert member: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}

// SaveMember creates or replaces the record of a member.
// The original creation time is kept on conflict.
func (m *MemberModel) SaveMember(ctx context.Context, member *types.Member) error {
	_, err := m.db.NewInsert().
		Model(member).
		On("CONFLICT (id) DO UPDATE").
		Set("opted_in = EXCLUDED.opted_in").
		Set("anonymous = EXCLUDED.anonymous").
		Set("display_name = EXCLUDED.display_name").
		Set("avatar_ref = EXCLUDED.avatar_ref").
		Set("roles = EXCLUDED.roles").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}

	m.logger.Debug("Saved member",
		zap.Uint64("member_id", member.ID),
		zap.Bool("opted_in", member.OptedIn),
		zap.Bool("anonymous", member.Anonymous))

	return nil
}

// UpdateAttributes replaces the cached display attributes of an opted-in member.
// It reports whether a row was updated.
func (m *MemberModel) UpdateAttributes(
	ctx context.Context, id uint64, displayName, avatarRef string, roles []uint64,
) (bool, error) {
	if roles == nil {
		roles = []uint64{}
	}

	result, err := m.db.NewUpdate().
		Model((*types.Member)(nil)).
		Set("display_name = ?", displayName).
		Set("avatar_ref = ?", avatarRef).
		Set("roles = ?", pgdialect.Array(roles)).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("opted_in").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to update member attributes: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}

// MarkOptedOut turns the record of a member into a tombstone without display attributes,
// creating one if none exists. It reports whether the member was opted in before.
func (m *MemberModel) MarkOptedOut(ctx context.Context, id uint64) (bool, error) {
	var wasOptedIn bool

	err := m.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var previous []bool

		err := tx.NewSelect().
			Model((*types.Member)(nil)).
			Column("opted_in").
			Where("id = ?", id).
			For("UPDATE").
			Scan(ctx, &previous)
		if err != nil {
			return fmt.Errorf("failed to lock member: %w", err)
		}

		wasOptedIn = len(previous) > 0 && previous[0]

		now := time.Now()
		tombstone := &types.Member{
			ID:        id,
			Roles:     []uint64{},
			CreatedAt: now,
			UpdatedAt: now,
		}

		_, err = tx.NewInsert().
			Model(tombstone).
			On("CONFLICT (id) DO UPDATE").
			Set("opted_in = FALSE").
			Set("anonymous = FALSE").
			Set("display_name = ''").
			Set("avatar_ref = ''").
			Set("roles = EXCLUDED.roles").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to write tombstone: %w", err)
		}

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to mark member opted out: %w", err)
	}

	return wasOptedIn, nil
}

// DeleteMember removes the record of a member.
func (m *MemberModel) DeleteMember(ctx context.Context, id uint64) error {
	_, err := m.db.NewDelete().
		Model((*types.Member)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}

	return nil
}

// ListOptedIn returns every opted-in member ordered by id.
func (m *MemberModel) ListOptedIn(ctx context.Context) ([]types.Member, error) {
	var members []types.Member

	err := m.db.NewSelect().
		Model(&members).
		Where("opted_in").
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list opted-in members: %w", err)
	}

	return members, nil
}

// CountOptedIn returns the number of opted-in members.
func (m *MemberModel) CountOptedIn(ctx context.Context) (int64, error) {
	count, err := m.db.NewSelect().
		Model((*types.Member)(nil)).
		Where("opted_in").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count opted-in members: %w", err)
	}

	return int64(count), nil
}
