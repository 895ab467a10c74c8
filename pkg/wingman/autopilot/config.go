// Package autopilot – config.go defines all configuration structures
// for the Wingman reply loop.
package autopilot

import (
	"github.com/rbarroso/wingman/pkg/wingman/channels/discord"
	"github.com/rbarroso/wingman/pkg/wingman/provider"
)

// Config holds all Wingman configuration.
type Config struct {
	// Enabled is the master switch for automatic replies.
	Enabled bool `yaml:"enabled"`

	// CooldownSeconds is the enforced silence after each reply cycle.
	CooldownSeconds int `yaml:"cooldown_seconds"`

	// HistoryWindow is how many recent messages feed the provider.
	HistoryWindow int `yaml:"history_window"`

	// TypingIndicator shows "typing..." before each paced message.
	TypingIndicator bool `yaml:"typing_indicator"`

	// Provider configures the AI backend.
	Provider provider.Config `yaml:"provider"`

	// Channels configures the host messaging platform.
	Channels ChannelsConfig `yaml:"channels"`

	// Transcript configures the recent-message store.
	Transcript TranscriptConfig `yaml:"transcript"`

	// Models configures the model catalog cache.
	Models ModelsConfig `yaml:"models"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// ChannelsConfig holds configuration for the host channel.
type ChannelsConfig struct {
	// Discord is the Discord channel config.
	Discord discord.Config `yaml:"discord"`
}

// TranscriptConfig configures the recent-message store.
type TranscriptConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path"`

	// MaxMessages bounds how many messages are kept per conversation.
	MaxMessages int `yaml:"max_messages"`
}

// ModelsConfig configures the model catalog cache.
type ModelsConfig struct {
	// RefreshSchedule is a cron expression for periodic catalog
	// refresh ("@hourly", "0 */6 * * *"). Empty disables it.
	RefreshSchedule string `yaml:"refresh_schedule"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the log format ("json", "text").
	Format string `yaml:"format"`
}

// DefaultConfig returns the default Wingman configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		CooldownSeconds: 5,
		HistoryWindow:   20,
		TypingIndicator: true,
		Provider:        provider.DefaultConfig(),
		Channels: ChannelsConfig{
			Discord: discord.DefaultConfig(),
		},
		Transcript: TranscriptConfig{
			Path:        "./data/transcript.db",
			MaxMessages: 200,
		},
		Models: ModelsConfig{
			RefreshSchedule: "@hourly",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
