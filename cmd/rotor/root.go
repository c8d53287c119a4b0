package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/marketmill/rotor/internal/application"
)

// Execute runs the rotor CLI.
func Execute(ctx context.Context) error {
	var configPath string

	root := &cobra.Command{
		Use:   "rotor",
		Short: "Momentum rotation engine for a small equity watchlist",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config YAML (defaults apply when empty)")

	loadCfg := func() (application.Config, error) {
		if configPath == "" {
			return application.DefaultConfig(), nil
		}
		return application.LoadConfig(configPath)
	}

	root.AddCommand(analyzeCmd(ctx, loadCfg))
	root.AddCommand(runCmd(ctx, loadCfg))
	root.AddCommand(watchlistCmd(loadCfg))
	log.Info().Msg("rotor starting")
	return root.ExecuteContext(ctx)
}
