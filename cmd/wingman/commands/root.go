// Package commands implements the Wingman CLI commands using cobra.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/rbarroso/wingman/pkg/wingman/autopilot"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the CLI root command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wingman",
		Short: "Wingman - auto-reply companion bot",
		Long: `Wingman watches a Discord conversation and answers incoming
messages through an AI provider (Gemini, OpenAI, DeepSeek) with
human-like pacing.

Examples:
  wingman serve
  wingman chat "hey, you around tonight?"
  wingman models
  wingman config set-key`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newSetupCmd(),
		newChatCmd(),
		newModelsCmd(),
		newConfigCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}

// resolveConfig loads the config from --config or standard locations.
func resolveConfig(cmd *cobra.Command) (*autopilot.Config, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")

	if configPath != "" {
		cfg, err := autopilot.LoadConfigFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}

	if found := autopilot.FindConfigFile(); found != "" {
		cfg, err := autopilot.LoadConfigFromFile(found)
		if err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", found, err)
		}
		return cfg, nil
	}

	return nil, fmt.Errorf("no configuration found; run 'wingman setup' or 'wingman config init'")
}

// buildLogger builds the slog logger from config and the verbose flag.
func buildLogger(cmd *cobra.Command, cfg *autopilot.Config) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logLevel := slog.LevelInfo
	if verbose || cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	return slog.New(handler)
}
