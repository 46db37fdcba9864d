package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rentpulse/rentpulse/internal/scrape"
	"github.com/rentpulse/rentpulse/internal/strategy/discover"
)

func newDiscoverCmd() *cobra.Command {
	var (
		buildingID int64
		apply      bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Recover RentCafe API credentials by watching a building's site",
		Long: `Loads the building's site in a headless browser and watches its outgoing
network requests for the availability API call, which carries the property
code and token in its query string. With --apply the recovered pair is
saved and the building is tagged rentcafe.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if buildingID <= 0 {
				return fmt.Errorf("--building is required")
			}
			ctx := cmd.Context()

			b, err := a.Store.GetBuilding(ctx, buildingID)
			if err != nil {
				return fmt.Errorf("load building %d: %w", buildingID, err)
			}

			d := discover.New(a.Renderer, discover.Config{}, a.Logger)
			creds, err := d.Discover(ctx, b)
			if errors.Is(err, discover.ErrNotFound) {
				fmt.Printf("%s: no credential-bearing API call observed\n", b.Name)
				return nil
			}
			if err != nil {
				return fmt.Errorf("discover credentials for %s: %w", b.Name, err)
			}

			fmt.Printf("%s: property_code=%s api_token=%s\n", b.Name, creds.PropertyCode, creds.APIToken)
			if apply {
				if err := a.Store.SetCredentials(ctx, b.ID, creds); err != nil {
					return fmt.Errorf("save credentials: %w", err)
				}
				if err := a.Store.SetPlatform(ctx, b.ID, scrape.PlatformRentCafe); err != nil {
					return fmt.Errorf("tag platform: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&buildingID, "building", 0, "building ID to probe")
	cmd.Flags().BoolVar(&apply, "apply", false, "save recovered credentials and tag the building rentcafe")
	return cmd
}
