package models

import (
	"context"
	"fmt"
	"time"

	"github.com/robalyx/socialgraph/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// MentionModel handles database operations for mention edges.
type MentionModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewMention creates a new mention model.
func NewMention(db *bun.DB, logger *zap.Logger) *MentionModel {
	return &MentionModel{
		db:     db,
		logger: logger.Named("db_mention"),
	}
}

// Increment adds delta to the weight of the pair in a single upsert.
// The caller must pass user1ID < user2ID.
func (m *MentionModel) Increment(ctx context.Context, user1ID, user2ID uint64, delta int64) error {
	mention := &types.Mention{
		User1ID:   user1ID,
		User2ID:   user2ID,
		Weight:    delta,
		UpdatedAt: time.Now(),
	}

	_, err := m.db.NewInsert().
		Model(mention).
		On("CONFLICT (user1_id, user2_id) DO UPDATE").
		Set("weight = ?TableAlias.weight + EXCLUDED.weight").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to increment mention: %w", err)
	}

	return nil
}

// DeleteFor removes every mention involving the member and returns the number removed.
func (m *MentionModel) DeleteFor(ctx context.Context, memberID uint64) (int64, error) {
	result, err := m.db.NewDelete().
		Model((*types.Mention)(nil)).
		Where("user1_id = ? OR user2_id = ?", memberID, memberID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete mentions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	m.logger.Debug("Deleted mentions",
		zap.Uint64("member_id", memberID),
		zap.Int64("removed", affected))

	return affected, nil
}

// List returns every mention ordered by pair.
func (m *MentionModel) List(ctx context.Context) ([]types.Mention, error) {
	var mentions []types.Mention

	err := m.db.NewSelect().
		Model(&mentions).
		Order("user1_id ASC", "user2_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list mentions: %w", err)
	}

	return mentions, nil
}

// Stats summarizes the mentions table in one query.
func (m *MentionModel) Stats(ctx context.Context) (*types.MentionStats, error) {
	var stats types.MentionStats

	err := m.db.NewRaw(`
		SELECT
			COUNT(*) AS count,
			COALESCE(SUM(weight), 0) AS total,
			COALESCE(MIN(weight), 0) AS min,
			COALESCE(MAX(weight), 0) AS max,
			(
				SELECT COUNT(*) FROM (
					SELECT user1_id FROM mentions
					UNION
					SELECT user2_id FROM mentions
				) AS ids
			) AS members
		FROM mentions
	`).Scan(ctx, &stats)
	if err != nil {
		return nil, fmt.Errorf("failed to get mention stats: %w", err)
	}

	return &stats, nil
}

// PruneOrphans removes mentions with an endpoint that is not an opted-in member.
func (m *MentionModel) PruneOrphans(ctx context.Context) (int64, error) {
	result, err := m.db.NewDelete().
		Model((*types.Mention)(nil)).
		Where("NOT EXISTS (SELECT 1 FROM members WHERE members.id = mn.user1_id AND members.opted_in)").
		WhereOr("NOT EXISTS (SELECT 1 FROM members WHERE members.id = mn.user2_id AND members.opted_in)").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to prune mentions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected, nil
}
