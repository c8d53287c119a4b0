package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/marketmill/rotor/internal/application"
)

// analyzeCmd runs one dry-run cycle and prints the report without touching
// saved state.
func analyzeCmd(ctx context.Context, loadCfg func() (application.Config, error)) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Evaluate the watchlist once without executing trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCfg()
			if err != nil {
				return err
			}
			cfg.DryRun = true

			a, err := buildApp(cfg, log.Logger)
			if err != nil {
				return err
			}
			defer a.close()

			p, err := a.loadPortfolio(ctx)
			if err != nil {
				return err
			}

			report, err := a.cycle.Run(ctx, p, a.watch.Tickers())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Printf("cycle %s: %d tickers scored, %d decisions\n",
				report.CycleID, len(report.Scores), len(report.Decisions))
			for _, sc := range report.Scores {
				fmt.Printf("  %-6s score %.3f\n", sc.Ticker, sc.ExpectedReturn)
			}
			for _, d := range report.Decisions {
				fmt.Printf("  would %s %s%s: %s\n", d.Action, d.FromTicker, d.ToTicker, d.Reason)
			}
			fmt.Printf("total value %.2f, cash %.2f\n", report.Snapshot.TotalValue, report.Snapshot.Cash)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the full report as JSON")
	return cmd
}
