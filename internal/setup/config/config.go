package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
	ErrConfigInvalid         = errors.New("config file has invalid values")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v1.0.0"

// Current version of the config file.
const (
	CurrentCommonVersion = 1
	CurrentBotVersion    = 1
)

// EnvPrefix is the prefix of environment variables that override config values.
// A double underscore separates path segments, e.g. SOCIALGRAPH_BOT__GRAPH__THRESHOLD.
const EnvPrefix = "SOCIALGRAPH_"

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig `koanf:"common"`
	Bot    BotConfig    `koanf:"bot"`
}

// CommonConfig contains configuration shared between all binaries.
type CommonConfig struct {
	// Version of the common config.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	Redis      Redis      `koanf:"redis"`
	Storage    Storage    `koanf:"storage"`
	Tracing    Tracing    `koanf:"tracing"`
}

// BotConfig contains Discord bot specific configuration.
type BotConfig struct {
	// Version of the bot config.
	Version int     `koanf:"version"`
	Discord Discord `koanf:"discord"`
	Graph   Graph   `koanf:"graph"`
	Export  Export  `koanf:"export"`
	Status  Status  `koanf:"status"`
	Stats   Stats   `koanf:"stats"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn error"`
	// Maximum log sessions to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep" validate:"min=1"`
	// Maximum lines per log file.
	MaxLogLines int `koanf:"max_log_lines" validate:"min=1"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
	// Disable client-side caching for servers without CLIENT TRACKING.
	DisableCache bool `koanf:"disable_cache"`
}

// Storage selects where members and mentions are kept.
type Storage struct {
	// Backend is either "postgres" or "memory".
	Backend string `koanf:"backend" validate:"oneof=postgres memory"`
}

// Tracing contains OpenTelemetry export configuration.
type Tracing struct {
	// Uptrace DSN; tracing is disabled when empty.
	UptraceDSN string `koanf:"uptrace_dsn" validate:"omitempty,url"`
	// Service name reported with every span.
	ServiceName string `koanf:"service_name" validate:"required"`
}

// Discord contains Discord bot configuration.
type Discord struct {
	// Discord bot token for authentication.
	Token string `koanf:"token"`
	// Guild whose messages feed the graph.
	GuildID uint64 `koanf:"guild_id"`
	// Channels whose messages feed the graph (empty for all).
	ChannelIDs []uint64 `koanf:"channel_ids"`
	// Prefix of text commands.
	Prefix string `koanf:"prefix" validate:"required"`
	// Presence activity shown by the bot.
	Activity string `koanf:"activity"`
	// Roles allowed to run administrative commands.
	AdminRoleIDs []uint64 `koanf:"admin_role_ids"`
	// Ignore messages written by bots.
	IgnoreBots bool `koanf:"ignore_bots"`
}

// Graph contains mention graph configuration.
type Graph struct {
	// Number of recorded interactions between scheduled exports.
	Threshold int `koanf:"threshold" validate:"min=1"`
	// Create members as opted in when first seen.
	AutoOptIn bool `koanf:"auto_opt_in"`
	// Delete a member and their edges when they leave the guild.
	DeleteOnLeave bool `koanf:"delete_on_leave"`
	// Base64 secret used to pseudonymize anonymous members (empty disables anonymous mode).
	PseudonymSecret string `koanf:"pseudonym_secret" validate:"omitempty,base64"`
	// Label rendered for anonymous members.
	AnonymousLabel string `koanf:"anonymous_label"`
}

// Export contains graph export configuration.
type Export struct {
	// Directory the exports are written to.
	OutputDir string `koanf:"output_dir" validate:"required"`
	// Formats written on every export.
	Formats []string `koanf:"formats" validate:"min=1,dive,oneof=gexf json csv sqlite"`
	// Strip insignificant whitespace from the output.
	Minify bool `koanf:"minify"`
}

// Status contains configuration of the HTTP status server.
type Status struct {
	// Enable the status server.
	Enabled bool `koanf:"enabled"`
	// Host to listen on.
	Host string `koanf:"host"`
	// Port to listen on.
	Port int `koanf:"port" validate:"omitempty,min=1,max=65535"`
	// Bearer token required by POST /v1/export. Empty leaves it open.
	ExportToken string `koanf:"export_token"`
}

// Stats contains configuration of the statistics reporter.
type Stats struct {
	// Enable the reporter.
	Enabled bool `koanf:"enabled"`
	// Seconds between two reports.
	IntervalSeconds int `koanf:"interval_seconds" validate:"omitempty,min=1"`
}

// defaults are applied before any config file is loaded.
var defaults = map[string]any{
	"common.debug.log_level":        "info",
	"common.debug.max_logs_to_keep": 10,
	"common.debug.max_log_lines":    10000,
	"common.storage.backend":        BackendPostgres,
	"common.tracing.service_name":   "socialgraph",
	"bot.discord.prefix":            "stats!",
	"bot.discord.ignore_bots":       true,
	"bot.graph.threshold":           15,
	"bot.graph.delete_on_leave":     true,
	"bot.graph.anonymous_label":     "Anonymous User",
	"bot.export.output_dir":         "data",
	"bot.export.formats":            []string{"gexf"},
	"bot.status.host":               "127.0.0.1",
	"bot.status.port":               8000,
	"bot.stats.interval_seconds":    60,
}

// LoadConfig loads the configuration from the config search paths.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// List search paths
	configPaths := []string{
		".socialgraph",
		homeDir + "/.socialgraph/config",
		"/etc/socialgraph/config",
		"/app/config",
		"config",
		".",
	}

	return LoadConfigFrom(configPaths)
}

// LoadConfigFrom loads the configuration from the first matching file of each
// config name in the given paths, then applies environment overrides.
func LoadConfigFrom(configPaths []string) (*Config, string, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	// Load all config files
	var usedConfigPath string

	configFiles := []string{"common", "bot"}
	for _, configName := range configFiles {
		configLoaded := false

		for _, path := range configPaths {
			configPath := fmt.Sprintf("%s/%s.toml", path, configName)
			if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
				configLoaded = true

				if usedConfigPath == "" {
					usedConfigPath = path
				}

				break
			}
		}

		if !configLoaded {
			return nil, "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, configName)
		}
	}

	// Overlay environment variables
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load environment: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Check versions for each config file
	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("bot", config.Bot.Version, CurrentBotVersion); err != nil {
		return nil, "", err
	}

	if err := Validate(&config); err != nil {
		return nil, "", err
	}

	return &config, usedConfigPath, nil
}

// Validate checks the struct constraints of the configuration.
func Validate(config *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}

	return nil
}

// envKey maps SOCIALGRAPH_BOT__GRAPH__THRESHOLD to bot.graph.threshold.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/robalyx/socialgraph/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
