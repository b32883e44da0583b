package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rshade/costlens/internal/engine"
	"github.com/rshade/costlens/internal/ingest"
	"github.com/rshade/costlens/internal/tui"
)

// NewTUICmd creates the tui command, an interactive dashboard over every
// entity in a cost export.
func NewTUICmd() *cobra.Command {
	var (
		in       inputFlags
		analysis analysisFlags
		plain    bool
		noColor  bool
	)

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Explore every entity in an interactive dashboard",
		Long: `Analyzes every entity and opens a ranked table. Enter opens an entity's detail
(forecast mean, efficiency index, advice, anomalous days), Esc returns to the
table, s cycles the sort order and q quits. Without a terminal the same data
is printed as a styled or plain summary.`,
		Example: `  costlens tui --file costs.csv
  costlens tui --file costs.csv --plain`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			audit := newAuditContext(ctx, "tui", map[string]string{"file": in.file})

			p, err := analysis.pipeline(cmd)
			if err != nil {
				return err
			}
			table, err := loadTable(ctx, in, audit)
			if err != nil {
				return err
			}
			audit.logSuccess(ctx, len(engine.Entities(table)), table.TotalCost())

			return RenderDashboard(ctx, cmd.OutOrStdout(), tui.DetectOutputMode(plain, noColor), p, table)
		},
	}

	in.bind(cmd)
	analysis.bind(cmd)
	cmd.Flags().BoolVar(&plain, "plain", false, "print a plain-text summary instead of the dashboard")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colors (implies --plain)")
	return cmd
}

// RenderDashboard routes the analyses to the renderer for mode.
func RenderDashboard(
	ctx context.Context,
	w io.Writer,
	mode tui.OutputMode,
	p engine.Pipeline,
	table ingest.CanonicalTable,
) error {
	if mode == tui.OutputModeInteractive {
		return tui.Run(ctx, tui.NewLoadingModel(ctx, func(ctx context.Context) ([]*engine.Analysis, error) {
			return p.AnalyzeAll(ctx, table)
		}))
	}

	analyses, err := p.AnalyzeAll(ctx, table)
	if err != nil {
		return err
	}
	if mode == tui.OutputModeStyled {
		return renderStyledOutput(w, analyses)
	}
	return renderPlainOutput(w, analyses)
}

// renderPlainOutput writes the ranking followed by the top entity's analysis.
func renderPlainOutput(w io.Writer, analyses []*engine.Analysis) error {
	if len(analyses) == 0 {
		_, err := fmt.Fprintln(w, "No results to display.")
		return err
	}
	if err := engine.RenderRanking(w, analyses[0].Ranking); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return engine.RenderAnalysis(w, analyses[0])
}

// renderStyledOutput renders the Lip Gloss summary and the top entity's
// detail box.
func renderStyledOutput(w io.Writer, analyses []*engine.Analysis) error {
	width := tui.TerminalWidth()
	if len(analyses) == 0 {
		_, err := fmt.Fprintln(w, tui.RenderCostSummary(nil, width))
		return err
	}
	fmt.Fprintln(w, tui.RenderCostSummary(analyses[0].Ranking, width))
	_, err := fmt.Fprintln(w, tui.RenderDetailView(analyses[0], width))
	return err
}
