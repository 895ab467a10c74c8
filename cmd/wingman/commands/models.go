package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rbarroso/wingman/pkg/wingman/autopilot"
	"github.com/rbarroso/wingman/pkg/wingman/provider"
	"github.com/spf13/cobra"
)

// newModelsCmd creates the `wingman models` command.
func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models available on the configured provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			models, err := prov.ListModels(ctx)
			if err != nil {
				return fmt.Errorf("listing models: %w", err)
			}

			fmt.Printf("Models on %s:\n", prov.Name())
			for _, m := range models {
				marker := "  "
				if m == cfg.Provider.Model {
					marker = "* "
				}
				fmt.Printf("%s%s\n", marker, m)
			}
			return nil
		},
	}
}
