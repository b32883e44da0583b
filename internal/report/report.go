// Package report turns analysis results into named tables and writes them
// through CSV, XLSX or JSON sinks.
package report

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rshade/costlens/internal/engine"
	"github.com/rshade/costlens/internal/logging"
)

// Table names.
const (
	TableCostSummary    = "Cost Summary"
	TableSelectedEntity = "Selected Entity"
	TableForecast       = "Forecast"
	TableEfficiency     = "Efficiency"
)

// ErrEmptyReport is returned when a report has no tables.
var ErrEmptyReport = errors.New("report has no tables")

// Table is a named grid of rendered cells.
type Table struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Report groups tables for one export.
type Report struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	GeneratedAt time.Time `json:"generated_at"`
	Principal   string    `json:"principal,omitempty"`
	Tables      []Table   `json:"tables"`
}

// New returns an empty report stamped with a fresh ULID and the current time.
func New(title, principal string) Report {
	return Report{
		ID:          ulid.Make().String(),
		Title:       title,
		GeneratedAt: time.Now().UTC(),
		Principal:   principal,
	}
}

// FromAnalysis builds the standard export for one analysis: ranking,
// efficiency, selected-entity detail and, when fitted, the forecast.
func FromAnalysis(a *engine.Analysis, principal string) Report {
	r := New("Cost report: "+a.Entity, principal)
	r.Tables = append(r.Tables, RankingTable(a.Ranking), EfficiencyTable(a), DetailTable(a))
	if a.Forecast != nil && !a.Forecast.Fallback {
		r.Tables = append(r.Tables, ForecastTable(a.Forecast))
	}
	return r
}

// RankingTable lists every entity by spend.
func RankingTable(ranking []engine.EntitySummary) Table {
	t := Table{
		Name:    TableCostSummary,
		Columns: []string{"Entity", "TotalCost", "MinCost", "MaxCost", "MeanCost", "CostShare(%)", "Trend"},
		Rows:    make([][]string, 0, len(ranking)),
	}
	for _, s := range ranking {
		t.Rows = append(t.Rows, []string{
			s.Entity,
			money(s.TotalCost),
			money(s.MinCost),
			money(s.MaxCost),
			money(s.MeanCost),
			s.CostShare.String(),
			string(s.Trend),
		})
	}
	return t
}

// DetailTable lists the selected entity's daily costs with anomaly flags.
func DetailTable(a *engine.Analysis) Table {
	t := Table{
		Name:    TableSelectedEntity,
		Columns: []string{"Date", "Cost", "Anomaly", "ZScore"},
		Rows:    make([][]string, 0, len(a.Anomalies)),
	}
	for _, f := range a.Anomalies {
		t.Rows = append(t.Rows, []string{
			f.Date.Format(time.DateOnly),
			money(f.Cost),
			strconv.FormatBool(f.IsAnomalous),
			strconv.FormatFloat(f.ZScore, 'f', 2, 64),
		})
	}
	return t
}

// ForecastTable lists predicted values, fitted history first.
func ForecastTable(fc *engine.ForecastResult) Table {
	t := Table{
		Name:    TableForecast,
		Columns: []string{"Date", "Predicted", "Future"},
		Rows:    make([][]string, 0, len(fc.Predicted)),
	}
	for _, p := range fc.Predicted {
		t.Rows = append(t.Rows, []string{
			p.Date.Format(time.DateOnly),
			money(p.Value),
			strconv.FormatBool(p.Future),
		})
	}
	return t
}

// EfficiencyTable is a one-row headline for the selected entity.
func EfficiencyTable(a *engine.Analysis) Table {
	forecastMean := engine.NotAvailable
	if a.Forecast != nil {
		forecastMean = money(a.Forecast.HorizonMean)
	}
	historical := engine.NotAvailable
	if !a.NoData {
		historical = money(a.Efficiency.HistoricalMean)
	}
	return Table{
		Name:    TableEfficiency,
		Columns: []string{"Entity", "HistoricalMean", "ForecastMean", "EfficiencyIndex", "Delta", "Anomalies", "Advice"},
		Rows: [][]string{{
			a.Entity,
			historical,
			forecastMean,
			a.Efficiency.Value.String(),
			a.Efficiency.Delta.String(),
			strconv.Itoa(a.AnomalyCount()),
			string(a.Advice),
		}},
	}
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Sink writes a report to some destination.
type Sink interface {
	Write(ctx context.Context, r Report) error
}

// Write validates r and hands it to sink.
func Write(ctx context.Context, sink Sink, r Report) error {
	if len(r.Tables) == 0 {
		return ErrEmptyReport
	}
	for _, t := range r.Tables {
		for i, row := range t.Rows {
			if len(row) != len(t.Columns) {
				return fmt.Errorf("table %q row %d has %d cells, want %d", t.Name, i, len(row), len(t.Columns))
			}
		}
	}

	start := time.Now()
	if err := sink.Write(ctx, r); err != nil {
		return fmt.Errorf("writing report %s: %w", r.ID, err)
	}
	logging.FromContext(ctx).Info().
		Str("component", "report").
		Str("report_id", r.ID).
		Int("tables", len(r.Tables)).
		Dur("duration", time.Since(start)).
		Msg("report written")
	return nil
}
