package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridianlabs/visibility-cli/internal/analyze"
	"github.com/meridianlabs/visibility-cli/internal/pipeline"
	"github.com/meridianlabs/visibility-cli/internal/profile"
)

var auditOut string

var auditCmd = &cobra.Command{
	Use:   "audit <profile.yaml>",
	Short: "Run a full visibility audit for one brand profile",
	Long:  "Dispatches the profile's prompts to every enabled provider, classifies the answers, and writes the flat result rows as CSV.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		company, err := profile.Load(args[0])
		if err != nil {
			return eris.Wrap(err, "load profile")
		}

		registry, err := buildRegistry()
		if err != nil {
			return err
		}
		analysisClient, err := buildAnalysisClient()
		if err != nil {
			return err
		}
		analyzer := analyze.New(analysisClient, cfg.Analysis.Model)

		opts := []pipeline.Option{
			pipeline.WithDiscoverer(analyze.NewDiscoverer(registry,
				cfg.Discovery.PreferredProvider, cfg.Discovery.FallbackProvider)),
			pipeline.WithProgress(func(done, total int) {
				fmt.Fprintf(os.Stderr, "\r%d/%d tasks", done, total)
				if done == total {
					fmt.Fprintln(os.Stderr)
				}
			}),
		}

		if cfg.Store.Driver != "" {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
			opts = append(opts, pipeline.WithStore(st))
		}

		p := pipeline.New(registry, analyzer, cfg.Pipeline, opts...)

		result, err := p.RunAudit(ctx, company)
		if err != nil {
			return eris.Wrap(err, "run audit")
		}

		result.Usage.LogCost(cfg.Analysis.Model, "analysis")
		zap.L().Info("audit complete",
			zap.String("company", result.Company.Name),
			zap.String("audit_id", result.AuditID),
			zap.Float64("mention_rate", result.Summary.Visibility.MentionRate),
			zap.String("sentiment", string(result.Summary.Sentiment.Overall)),
		)

		if auditOut == "" {
			return pipeline.WriteCSV(os.Stdout, result.Rows)
		}

		f, err := os.Create(auditOut)
		if err != nil {
			return eris.Wrap(err, "create output file")
		}
		defer f.Close() //nolint:errcheck
		if err := pipeline.WriteCSV(f, result.Rows); err != nil {
			return err
		}

		// With rows going to a file, the summary goes to stdout.
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Summary)
	},
}

func init() {
	auditCmd.Flags().StringVarP(&auditOut, "out", "o", "", "CSV output path (default: stdout)")
	rootCmd.AddCommand(auditCmd)
}
