package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marketmill/rotor/internal/application"
	"github.com/marketmill/rotor/internal/universe"
)

// watchlistCmd manages the scanned ticker universe.
func watchlistCmd(loadCfg func() (application.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watchlist",
		Short: "Show or edit the ticker watchlist",
	}

	load := func() (*universe.Watchlist, error) {
		cfg, err := loadCfg()
		if err != nil {
			return nil, err
		}
		return universe.Load(cfg.WatchlistPath)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the current watchlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := load()
			if err != nil {
				return err
			}
			for _, ticker := range w.Tickers() {
				fmt.Println(ticker)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add TICKER...",
		Short: "Add tickers to the watchlist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := load()
			if err != nil {
				return err
			}
			for _, ticker := range args {
				if w.Add(ticker) {
					fmt.Printf("added %s\n", ticker)
				}
			}
			return w.Save()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove TICKER...",
		Short: "Remove tickers from the watchlist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := load()
			if err != nil {
				return err
			}
			for _, ticker := range args {
				if w.Remove(ticker) {
					fmt.Printf("removed %s\n", ticker)
				}
			}
			return w.Save()
		},
	})

	return cmd
}
