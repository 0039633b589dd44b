package migrations

import (
	"context"
	"fmt"

	"github.com/robalyx/socialgraph/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.Member)(nil),
			(*types.Mention)(nil),
		}

		for _, model := range models {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table %T: %w", model, err)
			}
		}

		// Pairs are stored canonically and only with a positive weight
		_, err := db.NewRaw(`
			ALTER TABLE mentions
			DROP CONSTRAINT IF EXISTS mentions_canonical_pair,
			ADD CONSTRAINT mentions_canonical_pair CHECK (user1_id < user2_id);

			ALTER TABLE mentions
			DROP CONSTRAINT IF EXISTS mentions_positive_weight,
			ADD CONSTRAINT mentions_positive_weight CHECK (weight >= 1);
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to add mention constraints: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.Mention)(nil),
			(*types.Member)(nil),
		}

		for _, model := range models {
			_, err := db.NewDropTable().
				Model(model).
				IfExists().
				Cascade().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table %T: %w", model, err)
			}
		}

		return nil
	})
}
