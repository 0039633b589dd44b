package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			-- Opted-in member listing for graph builds
			CREATE INDEX IF NOT EXISTS idx_members_opted_in
			ON members (id)
			WHERE opted_in;

			-- Cascading deletes look up both endpoints
			CREATE INDEX IF NOT EXISTS idx_mentions_user2
			ON mentions (user2_id);
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP INDEX IF EXISTS idx_members_opted_in;
			DROP INDEX IF EXISTS idx_mentions_user2;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop indexes: %w", err)
		}

		return nil
	})
}
