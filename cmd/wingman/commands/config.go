package commands

import (
	"fmt"
	"os"

	"github.com/rbarroso/wingman/pkg/wingman/autopilot"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newConfigCmd creates the `wingman config` command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the Wingman configuration",
	}

	configCmd.AddCommand(
		newConfigInitCmd(),
		newConfigShowCmd(),
		newConfigSetKeyCmd(),
		newConfigPathCmd(),
	)

	return configCmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config.yaml in the current directory",
		RunE: func(_ *cobra.Command, _ []string) error {
			path := "config.yaml"
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}

			if err := autopilot.SaveConfigToFile(autopilot.DefaultConfig(), path); err != nil {
				return err
			}
			fmt.Printf("Wrote %s. Fill in the discord token and run 'wingman config set-key'.\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			redacted := *cfg
			redacted.Provider.APIKey = redactSecret(cfg.Provider.APIKey)
			redacted.Channels.Discord.Token = redactSecret(cfg.Channels.Discord.Token)

			data, err := yaml.Marshal(&redacted)
			if err != nil {
				return fmt.Errorf("marshaling config: %w", err)
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

func newConfigSetKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-key",
		Short: "Store the provider API key in the OS keyring",
		RunE: func(_ *cobra.Command, _ []string) error {
			key, err := autopilot.PromptAPIKey()
			if err != nil {
				return err
			}

			if !autopilot.KeyringAvailable() {
				return fmt.Errorf("OS keyring not available; set WINGMAN_API_KEY in the environment instead")
			}
			if err := autopilot.StoreKeyring("api_key", key); err != nil {
				return fmt.Errorf("storing key: %w", err)
			}

			fmt.Println("API key stored in the OS keyring.")
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path that would be loaded",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if explicit, _ := cmd.Root().PersistentFlags().GetString("config"); explicit != "" {
				fmt.Println(explicit)
				return nil
			}
			if found := autopilot.FindConfigFile(); found != "" {
				fmt.Println(found)
				return nil
			}
			return fmt.Errorf("no configuration found; run 'wingman setup' or 'wingman config init'")
		},
	}
}

// redactSecret keeps the last 4 characters visible for recognisability.
func redactSecret(s string) string {
	if s == "" || autopilot.IsEnvReference(s) {
		return s
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
