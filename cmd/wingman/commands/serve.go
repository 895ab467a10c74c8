package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rbarroso/wingman/pkg/wingman/autopilot"
	"github.com/rbarroso/wingman/pkg/wingman/channels/discord"
	"github.com/rbarroso/wingman/pkg/wingman/provider"
	"github.com/rbarroso/wingman/pkg/wingman/transcript"
	"github.com/spf13/cobra"
)

// newServeCmd creates the `wingman serve` command that starts the bot.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and start the reply loop",
		Long: `Start Wingman as a daemon: connect to the Discord gateway, watch
the focused conversation, and answer incoming messages through the
configured AI provider.

Examples:
  wingman serve
  wingman serve --config ./config.yaml`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── Load config ──
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	// ── Configure logger ──
	logger := buildLogger(cmd, cfg)

	// ── Resolve credentials ──
	autopilot.ResolveAPIKey(cfg, logger)

	// ── Build dependencies ──
	prov, err := provider.New(cfg.Provider, logger)
	if err != nil {
		return fmt.Errorf("building provider: %w", err)
	}

	if dir := filepath.Dir(cfg.Transcript.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}
	store, err := transcript.NewSQLiteStore(cfg.Transcript.Path, cfg.Transcript.MaxMessages, logger)
	if err != nil {
		return fmt.Errorf("opening transcript store: %w", err)
	}
	defer store.Close()

	channel := discord.New(cfg.Channels.Discord, logger)
	pilot := autopilot.New(cfg, channel, prov, store, logger)

	// ── Connect and start ──
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := channel.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to discord: %w", err)
	}

	if err := pilot.Start(ctx); err != nil {
		channel.Disconnect()
		return fmt.Errorf("starting autopilot: %w", err)
	}

	logger.Info("Wingman running. Press Ctrl+C to stop.",
		"provider", cfg.Provider.Provider,
		"model", cfg.Provider.Model,
		"enabled", cfg.Enabled,
	)

	// ── Wait for shutdown ──
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping...")

	done := make(chan struct{})
	go func() {
		pilot.Stop()
		channel.Disconnect()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}

	return nil
}
