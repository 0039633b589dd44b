package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/robalyx/socialgraph/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const commonTOML = `
[common]
version = 1

[common.debug]
log_level = "debug"

[common.postgresql]
host = "localhost"
port = 5432
db_name = "socialgraph"

[common.storage]
backend = "memory"
`

const botTOML = `
[bot]
version = 1

[bot.discord]
token = "token"
guild_id = 1234
channel_ids = [10, 20]
admin_role_ids = [99]

[bot.graph]
threshold = 3
auto_opt_in = true

[bot.export]
formats = ["gexf", "csv"]
`

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".toml"), []byte(content), 0o600))
}

func TestLoadConfigFrom(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "common", commonTOML)
	writeConfig(t, dir, "bot", botTOML)

	cfg, usedPath, err := config.LoadConfigFrom([]string{filepath.Join(dir, "missing"), dir})
	require.NoError(t, err)
	assert.Equal(t, dir, usedPath)

	assert.Equal(t, "debug", cfg.Common.Debug.LogLevel)
	assert.Equal(t, 10, cfg.Common.Debug.MaxLogsToKeep)
	assert.Equal(t, config.BackendMemory, cfg.Common.Storage.Backend)
	assert.Equal(t, "socialgraph", cfg.Common.PostgreSQL.DBName)

	assert.Equal(t, uint64(1234), cfg.Bot.Discord.GuildID)
	assert.Equal(t, []uint64{10, 20}, cfg.Bot.Discord.ChannelIDs)
	assert.Equal(t, []uint64{99}, cfg.Bot.Discord.AdminRoleIDs)
	assert.Equal(t, "stats!", cfg.Bot.Discord.Prefix)
	assert.True(t, cfg.Bot.Discord.IgnoreBots)

	assert.Equal(t, 3, cfg.Bot.Graph.Threshold)
	assert.True(t, cfg.Bot.Graph.AutoOptIn)
	assert.True(t, cfg.Bot.Graph.DeleteOnLeave)
	assert.Equal(t, "Anonymous User", cfg.Bot.Graph.AnonymousLabel)

	assert.Equal(t, "data", cfg.Bot.Export.OutputDir)
	assert.Equal(t, []string{"gexf", "csv"}, cfg.Bot.Export.Formats)
	assert.Equal(t, 8000, cfg.Bot.Status.Port)
	assert.Equal(t, 60, cfg.Bot.Stats.IntervalSeconds)
}

func TestLoadConfigFrom_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "common", commonTOML)
	writeConfig(t, dir, "bot", botTOML)

	t.Setenv("SOCIALGRAPH_BOT__GRAPH__PSEUDONYM_SECRET", "c2VjcmV0LXNlY3JldC1zZWNyZXQ=")
	t.Setenv("SOCIALGRAPH_BOT__GRAPH__THRESHOLD", "42")

	cfg, _, err := config.LoadConfigFrom([]string{dir})
	require.NoError(t, err)

	assert.Equal(t, "c2VjcmV0LXNlY3JldC1zZWNyZXQ=", cfg.Bot.Graph.PseudonymSecret)
	assert.Equal(t, 42, cfg.Bot.Graph.Threshold)
}

func TestLoadConfigFrom_Errors(t *testing.T) {
	tests := []struct {
		name    string
		common  string
		bot     string
		wantErr error
	}{
		{
			name:    "missing bot file",
			common:  commonTOML,
			wantErr: config.ErrConfigFileNotFound,
		},
		{
			name:    "missing version",
			common:  "[common.debug]\nlog_level = \"info\"\n",
			bot:     botTOML,
			wantErr: config.ErrConfigVersionMissing,
		},
		{
			name:    "version mismatch",
			common:  commonTOML,
			bot:     "[bot]\nversion = 7\n",
			wantErr: config.ErrConfigVersionMismatch,
		},
		{
			name:    "unsupported format",
			common:  commonTOML,
			bot:     "[bot]\nversion = 1\n[bot.export]\nformats = [\"graphml\"]\n",
			wantErr: config.ErrConfigInvalid,
		},
		{
			name:    "invalid secret",
			common:  commonTOML,
			bot:     "[bot]\nversion = 1\n[bot.graph]\npseudonym_secret = \"not base64!\"\n",
			wantErr: config.ErrConfigInvalid,
		},
		{
			name:    "unknown backend",
			common:  "[common]\nversion = 1\n[common.storage]\nbackend = \"mongo\"\n",
			bot:     botTOML,
			wantErr: config.ErrConfigInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.common != "" {
				writeConfig(t, dir, "common", tt.common)
			}

			if tt.bot != "" {
				writeConfig(t, dir, "bot", tt.bot)
			}

			_, _, err := config.LoadConfigFrom([]string{dir})
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
