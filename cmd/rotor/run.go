package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/marketmill/rotor/internal/application"
	httpapi "github.com/marketmill/rotor/internal/interfaces/http"
	"github.com/marketmill/rotor/internal/scheduler"
)

// runCmd runs the engine on its cron schedule until interrupted, optionally
// serving the status API.
func runCmd(ctx context.Context, loadCfg func() (application.Config, error)) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run scheduled rotation cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCfg()
			if err != nil {
				return err
			}

			a, err := buildApp(cfg, log.Logger)
			if err != nil {
				return err
			}
			defer a.close()

			p, err := a.loadPortfolio(ctx)
			if err != nil {
				return err
			}

			var server *httpapi.Server
			if cfg.Server.Enabled {
				server = httpapi.NewServer(cfg.Server.Listen, a.metrics.Registry(), log.Logger)
				go func() {
					if err := server.Start(); err != nil {
						log.Error().Err(err).Msg("status server failed")
					}
				}()
			}

			runCycle := func(cycleCtx context.Context) error {
				report, err := a.cycle.Run(cycleCtx, p, a.watch.Tickers())
				if err != nil {
					return err
				}
				a.metrics.QuotaRemaining.Set(float64(a.data.QuotaRemaining()))
				if server != nil {
					server.Publish(report)
				}
				return nil
			}

			if once {
				err = runCycle(ctx)
			} else {
				var sched *scheduler.Scheduler
				sched, err = scheduler.New(cfg.Schedule, runCycle, log.Logger)
				if err != nil {
					return err
				}
				sched.Start()
				<-ctx.Done()
				sched.Stop()
			}

			if server != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if serr := server.Shutdown(shutdownCtx); serr != nil {
					log.Error().Err(serr).Msg("status server shutdown failed")
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	return cmd
}
