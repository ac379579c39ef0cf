package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/meridianlabs/visibility-cli/internal/model"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the providers enabled by the current configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		registry, err := buildRegistry()
		if err != nil {
			return err
		}
		formatProviders(os.Stdout, registry.Models())
		return nil
	},
}

func formatProviders(w io.Writer, models []model.ModelConfig) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tMODEL\tDISPLAY")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Provider, m.ModelID, m.Display)
	}
	_ = tw.Flush()
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
