package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/meridianlabs/visibility-cli/internal/analyze"
)

var (
	discoverWebsite string
	discoverMarket  string
)

var discoverCmd = &cobra.Command{
	Use:   "discover <brand-name>",
	Short: "Discover a brand's main competitors",
	Long:  "Asks a web-search-capable provider for the brand's most important direct competitors and prints them importance-ordered.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := buildRegistry()
		if err != nil {
			return err
		}

		d := analyze.NewDiscoverer(registry,
			cfg.Discovery.PreferredProvider, cfg.Discovery.FallbackProvider)
		names := d.Discover(cmd.Context(), args[0], discoverWebsite, discoverMarket)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string][]string{"competitors": names})
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverWebsite, "website", "", "brand website URL")
	discoverCmd.Flags().StringVar(&discoverMarket, "market", "", "market or region the brand operates in")
	rootCmd.AddCommand(discoverCmd)
}
