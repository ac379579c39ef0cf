package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/meridianlabs/visibility-cli/internal/model"
	"github.com/meridianlabs/visibility-cli/internal/pipeline"
	"github.com/meridianlabs/visibility-cli/internal/store"
)

var auditsCmd = &cobra.Command{
	Use:   "audits",
	Short: "Inspect stored audit history",
	Long:  "Commands for listing stored audits, viewing one in full, and exporting its result rows.",
}

// -- audits list --

var auditsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored audits",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		companyID, _ := cmd.Flags().GetString("company")
		limit, _ := cmd.Flags().GetInt("limit")

		audits, err := st.ListAudits(ctx, store.AuditFilter{
			Status:    model.AuditStatus(status),
			CompanyID: companyID,
			Limit:     limit,
		})
		if err != nil {
			return eris.Wrap(err, "audits list")
		}

		if len(audits) == 0 {
			fmt.Fprintln(os.Stderr, "No audits found.")
			return nil
		}

		formatAuditsList(os.Stdout, audits)
		return nil
	},
}

// -- audits show --

var auditsShowCmd = &cobra.Command{
	Use:   "show <audit-id>",
	Short: "Show one audit in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		audit, err := st.GetAudit(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "audits show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(audit)
	},
}

// -- audits export --

var auditsExportCmd = &cobra.Command{
	Use:   "export <audit-id>",
	Short: "Export an audit's result rows as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		rows, err := st.ListRows(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "audits export")
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			return pipeline.WriteCSV(os.Stdout, rows)
		}
		f, err := os.Create(out)
		if err != nil {
			return eris.Wrap(err, "create output file")
		}
		defer f.Close() //nolint:errcheck
		return pipeline.WriteCSV(f, rows)
	},
}

func formatAuditsList(w io.Writer, audits []model.Audit) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOMPANY\tSTATUS\tMENTION RATE\tSENTIMENT\tCREATED")
	for _, a := range audits {
		rate, sentiment := "-", "-"
		if a.Summary != nil {
			rate = fmt.Sprintf("%.0f%%", a.Summary.Visibility.MentionRate*100)
			sentiment = string(a.Summary.Sentiment.Overall)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Company.Name, a.Status, rate, sentiment,
			a.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = tw.Flush()
}

func init() {
	auditsListCmd.Flags().String("status", "", "filter by audit status (running, complete, failed)")
	auditsListCmd.Flags().String("company", "", "filter by company identifier")
	auditsListCmd.Flags().Int("limit", 50, "max number of audits to display")

	auditsExportCmd.Flags().StringP("out", "o", "", "CSV output path (default: stdout)")

	auditsCmd.AddCommand(auditsListCmd)
	auditsCmd.AddCommand(auditsShowCmd)
	auditsCmd.AddCommand(auditsExportCmd)
	rootCmd.AddCommand(auditsCmd)
}
