package cmd

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newBatchCmd() *cobra.Command {
	var (
		schedule string
		skipSync bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run the full scrape cycle over every schedulable building",
		Long: `Syncs the roster, dispatches every schedulable building through its
platform strategy under the configured concurrency caps, persists results,
and pushes the availability snapshot back. With --schedule the cycle
repeats on a cron expression instead of running once.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			a.Orchestrator.SetSkipSync(skipSync)

			runOnce := func() error {
				summary, err := a.Orchestrator.Run(cmd.Context())
				if err != nil {
					return err
				}
				a.Metrics.BatchCompleted(summary)
				return nil
			}

			if schedule == "" {
				return runOnce()
			}

			c := cron.New()
			if _, err := c.AddFunc(schedule, func() {
				if err := runOnce(); err != nil {
					a.Logger.Error("scheduled batch run failed", zap.Error(err))
				}
			}); err != nil {
				return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
			}

			a.Logger.Info("batch scheduler started", zap.String("schedule", schedule))
			c.Start()
			<-cmd.Context().Done()
			<-c.Stop().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", `repeat on a cron expression, e.g. "0 6 * * *"`)
	cmd.Flags().BoolVar(&skipSync, "skip-sync", false, "skip the roster sync and scrape the stored building list")
	return cmd
}
