package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rshade/costlens/internal/config"
	"github.com/rshade/costlens/internal/engine"
	"github.com/rshade/costlens/internal/ingest"
	"github.com/rshade/costlens/internal/source"
)

// summaryOutput is the JSON shape of the summary command.
type summaryOutput struct {
	Source string `json:"source"`
	*engine.Summary
}

// NewSummaryCmd creates the summary command, which ranks every entity by
// total spend from a file or a configured data source.
func NewSummaryCmd() *cobra.Command {
	var (
		file       string
		sourceKind string
		scope      string
		fromStr    string
		toStr      string
		top        int
		output     string
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Rank entities by total spend",
		Long: `Fetches daily costs from a file or a data source (azure, s3, sqlite) and prints
per-entity totals, min/max/mean, cost share and trend, highest spend first.
Source fetches go through the cache; use --cache-ttl or "costlens cache clear"
to control freshness.`,
		Example: `  costlens summary --file costs.csv --top 5
  costlens summary --source azure --from 2025-01-01 --to 2025-01-31
  costlens summary --source s3 --scope exports/2025-01.csv --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.GetGlobalConfig()
			audit := newAuditContext(ctx, "summary", map[string]string{
				"file":   file,
				"source": sourceKind,
				"scope":  scope,
				"from":   fromStr,
				"to":     toStr,
				"top":    formatTop(top),
			})

			out, err := resolveOutput(output)
			if err != nil {
				return err
			}
			from, err := parseDate("from", fromStr)
			if err != nil {
				return err
			}
			to, err := parseDate("to", toStr)
			if err != nil {
				return err
			}
			if !from.IsZero() && !to.IsZero() && to.Before(from) {
				return errors.New("--to is before --from")
			}
			if !cmd.Flags().Changed("top") {
				top = cfg.Analysis.TopN
			}

			src, _, closeSrc, err := buildSource(ctx, sourceKind, file)
			if err != nil {
				audit.logFailure(ctx, err)
				return err
			}
			defer func() { _ = closeSrc() }()

			raw, err := src.Fetch(ctx, source.Query{Scope: scope, From: from, To: to})
			if err != nil {
				audit.logFailure(ctx, err)
				return err
			}
			table, err := ingest.Normalize(ctx, raw, normalizeOptions(cfg))
			if err != nil {
				audit.logFailure(ctx, err)
				return err
			}
			sum, err := engine.Summarize(ctx, table.Between(from, to), top)
			if err != nil {
				audit.logFailure(ctx, err)
				return err
			}
			audit.logSuccess(ctx, sum.Entities, sum.TotalCost)

			if out == outputJSON {
				return engine.RenderJSON(cmd.OutOrStdout(), summaryOutput{Source: src.Name(), Summary: sum})
			}
			return renderSummary(cmd.OutOrStdout(), sum)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "cost export to read instead of a data source")
	cmd.Flags().StringVar(&sourceKind, "source", "", "data source: file, azure, s3 or sqlite (default from config)")
	cmd.Flags().StringVar(&scope, "scope", "", "source scope: Azure scope path or S3 object key")
	cmd.Flags().StringVar(&fromStr, "from", "", "first day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toStr, "to", "", "last day to include (YYYY-MM-DD)")
	cmd.Flags().IntVar(&top, "top", 0, "entities to show, 0 for all (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: table or json (default from config)")
	return cmd
}

func renderSummary(w io.Writer, sum *engine.Summary) error {
	if err := engine.RenderRanking(w, sum.Ranking); err != nil {
		return err
	}
	if sum.Entities > len(sum.Ranking) {
		fmt.Fprintf(w, "\nShowing %d of %d entities.\n", len(sum.Ranking), sum.Entities)
	}
	if len(sum.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, warn := range sum.Warnings {
			fmt.Fprintf(w, "  [%s] %s\n", warn.Kind, warn.Message)
		}
	}
	return nil
}

// formatTop renders a --top value for audit parameters.
func formatTop(n int) string {
	if n <= 0 {
		return "all"
	}
	return strconv.Itoa(n)
}
