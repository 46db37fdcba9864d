// Package cmd defines the CLI commands for the rentpulse executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rentpulse/rentpulse/internal/app"
)

var (
	cfgFile string
	dryRun  bool
)

// appKeyType keys the App in the command context.
type appKeyType struct{}

var appKey appKeyType

// newApp is a variable so tests can swap in a stub factory.
var newApp = func(ctx context.Context, opts app.Options) (*app.App, error) {
	return app.New(ctx, opts)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rentpulse",
		Short: "Apartment availability scraping pipeline",
		Long: `rentpulse tracks rental availability across apartment buildings. It
classifies each building's leasing platform, extracts unit listings with a
per-platform strategy, normalizes them into canonical records, and keeps a
per-building scrape health state.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), app.Options{ConfigPath: cfgFile, DryRun: dryRun})
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app.App); ok && a != nil {
				a.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./rentpulse.* and /etc/rentpulse/)")
	cmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "run against an in-memory store; persist nothing")

	cmd.AddCommand(newBatchCmd())
	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newClassifyCmd())
	cmd.AddCommand(newDiscoverCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKey).(*app.App)
	if !ok || a == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return a, nil
}

// Execute is the CLI entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
