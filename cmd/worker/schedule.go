package main

import (
	"context"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/analysis/anomaly"
	"github.com/farxc/licitacoes_analytics/internal/cache"
	"github.com/farxc/licitacoes_analytics/internal/config"
	"github.com/farxc/licitacoes_analytics/internal/pncp"
	"github.com/farxc/licitacoes_analytics/internal/scheduler"
	"github.com/farxc/licitacoes_analytics/internal/store"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func (w *worker) scheduleCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run collection, analysis and governance at the configured times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			times, err := config.ParseClockTimes(w.cfg.Scheduler.CollectionTimes)
			if err != nil {
				return err
			}
			loc, err := time.LoadLocation(w.cfg.Scheduler.Timezone)
			if err != nil {
				return err
			}
			s := scheduler.New(times, loc, w.log, w.pipeline(loc)...)

			if once {
				if failed := s.RunOnce(cmd.Context()); failed > 0 {
					pterm.Warning.Printfln("%d pipeline steps failed", failed)
				}
				return nil
			}
			if !w.cfg.Scheduler.Enabled {
				pterm.Info.Println("Scheduler disabled by LAP_SCHEDULER_ENABLED")
				return nil
			}
			pterm.Info.Printfln("Next run at %s", scheduler.NextRun(time.Now(), times, loc).Format(time.RFC3339))
			return s.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Run the pipeline once and exit")
	return cmd
}

// pipeline is the scheduled sequence: collect the lookback window, analyse
// what arrived, then refresh the current governance period.
func (w *worker) pipeline(loc *time.Location) []scheduler.Job {
	return []scheduler.Job{
		{
			Name: "collect",
			Run: func(ctx context.Context) error {
				start, end := pncp.Window(time.Now().In(loc), w.cfg.PNCP.LookbackDays)
				if _, err := w.collector().Run(ctx, pncp.RunOptions{
					Start:   start,
					End:     end,
					Trigger: store.TriggerTypeScheduled,
				}); err != nil {
					return err
				}
				w.cache.ClearPattern(ctx, cache.PatternPriceStatistics)
				return nil
			},
		},
		{
			Name: "analyze",
			Run: func(ctx context.Context) error {
				_, err := w.detector().RunFullAnalysis(ctx, anomaly.Scope{})
				return err
			},
		},
		{
			Name: "governance",
			Run: func(ctx context.Context) error {
				if _, err := w.scorer().UpsertAllPeriods(ctx, nil); err != nil {
					return err
				}
				w.cache.Delete(ctx, cache.KeyGovernanceRanking)
				return nil
			},
		},
	}
}
