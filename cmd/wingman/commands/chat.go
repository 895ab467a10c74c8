package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/rbarroso/wingman/pkg/wingman/autopilot"
	"github.com/rbarroso/wingman/pkg/wingman/history"
	"github.com/rbarroso/wingman/pkg/wingman/provider"
	"github.com/spf13/cobra"
)

// newChatCmd creates the `wingman chat` command: a local conversation
// with the configured provider, useful for tuning the persona before
// pointing the bot at a real chat.
func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the configured AI provider from the terminal",
		Long: `Open an interactive session with the configured provider using the
same system instructions and sampling settings the bot uses on Discord.

With a message argument the reply is printed once and the command
exits; without arguments an interactive prompt is opened.

Examples:
  wingman chat
  wingman chat "hey, you around tonight?"`,
		Args: cobra.ArbitraryArgs,
		RunE: runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := buildLogger(cmd, cfg)
	autopilot.ResolveAPIKey(cfg, logger)

	prov, err := provider.New(cfg.Provider, logger)
	if err != nil {
		return fmt.Errorf("building provider: %w", err)
	}

	// One-shot mode.
	if len(args) > 0 {
		reply, err := generate(prov, nil, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	}

	rl, err := readline.New(fmt.Sprintf("%s> ", cfg.Provider.Model))
	if err != nil {
		return fmt.Errorf("opening prompt: %w", err)
	}
	defer rl.Close()

	fmt.Printf("Chatting with %s (%s). Ctrl+D or /quit to exit.\n",
		cfg.Provider.Model, prov.Name())

	var turns []history.Turn
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			turns = nil
			fmt.Println("Conversation reset.")
			continue
		}

		reply, err := generate(prov, turns, line)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Println(reply)

		turns = append(turns,
			history.Turn{Role: history.RoleUser, Text: line},
			history.Turn{Role: history.RoleAssistant, Text: reply},
		)
	}
}

func generate(prov provider.Provider, turns []history.Turn, message string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	return prov.Generate(ctx, turns, message)
}
