package commands

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/rbarroso/wingman/pkg/wingman/autopilot"
	"github.com/rbarroso/wingman/pkg/wingman/provider"
	"github.com/spf13/cobra"
)

// newSetupCmd creates the `wingman setup` interactive wizard.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive first-run configuration wizard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSetup()
		},
	}
}

func runSetup() error {
	cfg := autopilot.DefaultConfig()

	providerID := cfg.Provider.Provider
	model := cfg.Provider.Model
	apiKey := ""
	botToken := ""
	operatorID := ""
	cooldown := strconv.Itoa(cfg.CooldownSeconds)
	instructions := ""

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("AI provider").
				Options(
					huh.NewOption("Google Gemini", provider.Gemini),
					huh.NewOption("OpenAI", provider.OpenAI),
					huh.NewOption("DeepSeek", provider.DeepSeek),
				).
				Value(&providerID),
			huh.NewInput().
				Title("Model name").
				Description("e.g. gemini-2.0-flash, gpt-4o-mini, deepseek-chat").
				Value(&model),
			huh.NewInput().
				Title("Provider API key").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Discord bot token").
				EchoMode(huh.EchoModePassword).
				Value(&botToken),
			huh.NewInput().
				Title("Operator Discord user ID").
				Description("your own account; it drives focus and receives alerts").
				Value(&operatorID),
			huh.NewInput().
				Title("Cooldown seconds between replies").
				Value(&cooldown),
			huh.NewInput().
				Title("Custom system instructions (optional)").
				Value(&instructions),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup aborted: %w", err)
	}

	cfg.Provider.Provider = providerID
	cfg.Provider.Model = model
	cfg.Provider.SystemInstructions = instructions
	cfg.Channels.Discord.Token = botToken
	cfg.Channels.Discord.OperatorID = operatorID
	if secs, err := strconv.Atoi(cooldown); err == nil && secs > 0 {
		cfg.CooldownSeconds = secs
	}

	// Prefer the OS keyring for the API key; fall back to the config file.
	if apiKey != "" {
		if autopilot.KeyringAvailable() {
			if err := autopilot.StoreKeyring("api_key", apiKey); err == nil {
				fmt.Println("API key stored in the OS keyring.")
			} else {
				cfg.Provider.APIKey = apiKey
			}
		} else {
			cfg.Provider.APIKey = apiKey
		}
	}

	path := "config.yaml"
	if err := autopilot.SaveConfigToFile(cfg, path); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s. Start the bot with 'wingman serve'.\n", path)
	return nil
}
