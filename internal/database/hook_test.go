package database_test

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/robalyx/socialgraph/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHook_AfterQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		event     *bun.QueryEvent
		wantLevel zapcore.Level
		wantMsg   string
	}{
		{
			name:      "success",
			event:     &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()},
			wantLevel: zapcore.DebugLevel,
			wantMsg:   "Query executed",
		},
		{
			name:      "slow",
			event:     &bun.QueryEvent{Query: "SELECT pg_sleep(1)", StartTime: time.Now().Add(-time.Second)},
			wantLevel: zapcore.WarnLevel,
			wantMsg:   "Slow query",
		},
		{
			name:      "failure",
			event:     &bun.QueryEvent{Query: "SELECT x", StartTime: time.Now(), Err: errors.New("column x does not exist")},
			wantLevel: zapcore.ErrorLevel,
			wantMsg:   "Query failed",
		},
		{
			name:      "no rows",
			event:     &bun.QueryEvent{Query: "SELECT * FROM members WHERE id = 1", StartTime: time.Now(), Err: sql.ErrNoRows},
			wantLevel: zapcore.DebugLevel,
			wantMsg:   "Query executed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.DebugLevel)
			hook := database.NewHook(zap.New(core))

			hook.AfterQuery(t.Context(), tt.event)

			entries := logs.All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantLevel, entries[0].Level)
			assert.Equal(t, tt.wantMsg, entries[0].Message)
			assert.Equal(t, tt.event.Query, entries[0].ContextMap()["query"])
		})
	}
}
