package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rentpulse/rentpulse/internal/classify"
	"github.com/rentpulse/rentpulse/internal/scrape"
)

func newClassifyCmd() *cobra.Command {
	var (
		buildingID int64
		override   string
		apply      bool
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Detect the leasing platform for unclassified buildings",
		Long: `Runs the two-stage platform classifier: URL patterns first, then a
rendered-page signature probe for custom domains. Without --building it
sweeps every building still tagged needs_classification or blank. With
--apply detected platforms are written back; otherwise they are printed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			classifier := classify.New(a.Renderer, a.Logger)
			ctx := cmd.Context()

			var targets []scrape.Building
			if buildingID > 0 {
				b, err := a.Store.GetBuilding(ctx, buildingID)
				if err != nil {
					return fmt.Errorf("load building %d: %w", buildingID, err)
				}
				targets = []scrape.Building{b}
			} else {
				all, err := a.Store.FindBuildings(ctx, "")
				if err != nil {
					return fmt.Errorf("load buildings: %w", err)
				}
				for _, b := range all {
					if b.Platform == "" || b.Platform == scrape.PlatformNeedsClassification {
						targets = append(targets, b)
					}
				}
			}
			if len(targets) == 0 {
				fmt.Println("nothing to classify")
				return nil
			}

			for _, b := range targets {
				det, err := classifier.Classify(ctx, b, scrape.Platform(override))
				if err != nil {
					a.Logger.Warn("classification failed",
						zap.Int64("building_id", b.ID), zap.String("building", b.Name), zap.Error(err))
					continue
				}
				fmt.Printf("%d %s -> %s\n", b.ID, b.Name, det.Platform)
				if apply {
					if err := a.Store.SetPlatform(ctx, b.ID, det.Platform); err != nil {
						return fmt.Errorf("save platform for building %d: %w", b.ID, err)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&buildingID, "building", 0, "classify a single building ID")
	cmd.Flags().StringVar(&override, "platform", "", "force this platform instead of detecting")
	cmd.Flags().BoolVar(&apply, "apply", false, "write detected platforms back to the store")
	return cmd
}
