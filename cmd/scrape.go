package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newScrapeCmd() *cobra.Command {
	var buildingID int64

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape a single building by ID",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if buildingID <= 0 {
				return fmt.Errorf("--building is required")
			}

			out, err := a.Orchestrator.ScrapeBuilding(cmd.Context(), buildingID)
			if err != nil {
				return fmt.Errorf("scrape building %d: %w", buildingID, err)
			}

			fmt.Printf("%s (%s): %s, %d units\n", out.BuildingName, out.Platform, out.Status, out.UnitCount)
			if out.Err != "" {
				fmt.Printf("error: %s\n", out.Err)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&buildingID, "building", 0, "building ID to scrape")
	return cmd
}
