package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/costlens/internal/config"
	"github.com/rshade/costlens/internal/engine"
)

// NewAnalyzeCmd creates the analyze command: forecast, anomalies, efficiency
// index and advice for one entity.
func NewAnalyzeCmd() *cobra.Command {
	var (
		in       inputFlags
		analysis analysisFlags
		entity   string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one entity's daily spend",
		Long: `Reads a cost export, ranks every entity by spend and analyzes the selected
entity: forecast over the horizon, anomalous days, Cost Efficiency Index and an
optimization hint. Without --entity the highest-spend entity is analyzed.`,
		Example: `  costlens analyze --file costs.csv
  costlens analyze --file costs.xlsx --entity AuthAPI --horizon 14 --model holt
  costlens analyze --file costs.csv --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			audit := newAuditContext(ctx, "analyze", map[string]string{
				"file":   in.file,
				"entity": entity,
				"model":  analysis.model,
			})

			out, err := resolveOutput(output)
			if err != nil {
				return err
			}
			p, err := analysis.pipeline(cmd)
			if err != nil {
				audit.logFailure(ctx, err)
				return err
			}
			table, err := loadTable(ctx, in, audit)
			if err != nil {
				return err
			}
			if entity == "" {
				entity = engine.DefaultEntity(ctx, table)
			}

			a, err := p.Analyze(ctx, table, entity)
			if err != nil {
				audit.logFailure(ctx, err)
				return fmt.Errorf("analyzing %q: %w", entity, err)
			}
			audit.logSuccess(ctx, len(a.Ranking), table.TotalCost())

			w := cmd.OutOrStdout()
			if out == outputJSON {
				return engine.RenderJSON(w, a)
			}
			if err = engine.RenderRanking(w, engine.TopN(a.Ranking, config.GetGlobalConfig().Analysis.TopN)); err != nil {
				return err
			}
			fmt.Fprintln(w)
			return engine.RenderAnalysis(w, a)
		},
	}

	in.bind(cmd)
	analysis.bind(cmd)
	cmd.Flags().StringVarP(&entity, "entity", "e", "", "entity to analyze (default: highest spend)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: table or json (default from config)")
	return cmd
}
