package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rshade/costlens/internal/engine"
	"github.com/rshade/costlens/internal/report"
)

// Export formats.
const (
	exportCSV  = "csv"
	exportXLSX = "xlsx"
	exportJSON = "json"
)

// NewExportCmd creates the export command, which writes the analysis of one
// entity as a multi-table report.
func NewExportCmd() *cobra.Command {
	var (
		in       inputFlags
		analysis analysisFlags
		entity   string
		format   string
		outPath  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an analysis report as CSV, XLSX or JSON",
		Long: `Runs the analysis and writes the cost summary, efficiency, selected-entity and
forecast tables. CSV writes one file per table into the --out directory, XLSX
writes one sheet per table, JSON writes the whole report ("-" for stdout).`,
		Example: `  costlens export --file costs.csv --format xlsx --out report.xlsx
  costlens export --file costs.csv --format csv --out ./report --entity AuthAPI
  costlens export --file costs.csv --format json --out -`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			audit := newAuditContext(ctx, "export", map[string]string{
				"file":   in.file,
				"entity": entity,
				"format": format,
				"out":    outPath,
			})

			format = strings.ToLower(format)
			if err := validateExport(format, outPath); err != nil {
				return err
			}
			p, err := analysis.pipeline(cmd)
			if err != nil {
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
				return err
			}

			r := report.FromAnalysis(a, audit.principal)
			if err = writeReport(cmd, r, format, outPath); err != nil {
				audit.logFailure(ctx, err)
				return err
			}
			audit.logSuccess(ctx, len(a.Ranking), table.TotalCost())

			if outPath != "-" {
				cmd.Printf("Report %s written to %s (%d tables)\n", r.ID, outPath, len(r.Tables))
			}
			return nil
		},
	}

	in.bind(cmd)
	analysis.bind(cmd)
	cmd.Flags().StringVarP(&entity, "entity", "e", "", "entity to report on (default: highest spend)")
	cmd.Flags().StringVar(&format, "format", exportXLSX, "report format: csv, xlsx or json")
	cmd.Flags().StringVar(&outPath, "out", "", "output path: directory for csv, file for xlsx/json, - for stdout")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func validateExport(format, outPath string) error {
	switch format {
	case exportCSV, exportXLSX, exportJSON:
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
	if outPath == "-" && format != exportJSON {
		return errors.New("only json can be written to stdout")
	}
	return nil
}

func writeReport(cmd *cobra.Command, r report.Report, format, outPath string) error {
	ctx := cmd.Context()
	switch format {
	case exportCSV:
		return report.Write(ctx, report.CSVSink{Dir: outPath}, r)
	case exportXLSX:
		return report.Write(ctx, report.XLSXSink{Path: outPath}, r)
	default:
		var w io.Writer = cmd.OutOrStdout()
		if outPath != "-" {
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("creating %s: %w", outPath, err)
			}
			defer f.Close()
			w = f
		}
		return report.Write(ctx, report.JSONSink{W: w}, r)
	}
}
