package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//nolint:gochecknoglobals // Global printer is idiomatic for x/text/message usage.
var printer = message.NewPrinter(language.English)

const (
	tabwriterPadding = 2
	colWidthEntity   = 32
	truncateMinLen   = 3
	centsMultiplier  = 100
)

// FormatCurrency formats an amount as "$X,XXX.XX"; negatives as "-$X,XXX.XX".
func FormatCurrency(amount float64) string {
	cents := int64(math.Round(math.Abs(amount) * centsMultiplier))
	if cents == 0 {
		return "$0.00"
	}
	s := "$" + printer.Sprintf("%d", cents/centsMultiplier) + fmt.Sprintf(".%02d", cents%centsMultiplier)
	if amount < 0 {
		return "-" + s
	}
	return s
}

// FormatPercent renders a defined metric as "12.34%" and an undefined one
// as "n/a".
func FormatPercent(m Metric) string {
	if !m.Defined {
		return NotAvailable
	}
	return strconv.FormatFloat(m.Value, 'f', 2, 64) + "%"
}

// FormatIndex renders the efficiency index or its delta with a sign.
func FormatIndex(m Metric, signed bool) string {
	if !m.Defined {
		return NotAvailable
	}
	if signed && m.Value > 0 {
		return "+" + strconv.FormatFloat(m.Value, 'f', 2, 64)
	}
	return strconv.FormatFloat(m.Value, 'f', 2, 64)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= truncateMinLen {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// RenderRanking writes the ranking as an aligned table.
func RenderRanking(w io.Writer, ranking []EntitySummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, tabwriterPadding, ' ', 0)

	if _, err := fmt.Fprintf(tw, "#\tENTITY\tTOTAL\tMEAN/DAY\tMIN\tMAX\tSHARE\tTREND\tDAYS\n"); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := fmt.Fprintf(tw, "-\t------\t-----\t--------\t---\t---\t-----\t-----\t----\n"); err != nil {
		return fmt.Errorf("writing separator: %w", err)
	}

	var grand float64
	for i, s := range ranking {
		grand += s.TotalCost
		if _, err := fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			i+1,
			truncate(s.Entity, colWidthEntity),
			FormatCurrency(s.TotalCost),
			FormatCurrency(s.MeanCost),
			FormatCurrency(s.MinCost),
			FormatCurrency(s.MaxCost),
			FormatPercent(s.CostShare),
			s.Trend,
			s.Observations,
		); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	if _, err := fmt.Fprintf(tw, "\t\t\t\t\t\t\t\t\n\tTOTAL (%d entities)\t%s\t\t\t\t\t\t\n",
		len(ranking), FormatCurrency(grand)); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return tw.Flush()
}

// RenderAnalysis writes a human-readable report for one entity: headline
// metrics, advice, descriptive stats, flagged anomalies and warnings.
func RenderAnalysis(w io.Writer, a *Analysis) error {
	tw := tabwriter.NewWriter(w, 0, 0, tabwriterPadding, ' ', 0)

	lines := [][2]string{{"Entity", a.Entity}}
	if a.NoData {
		lines = append(lines, [2]string{"Status", "no data"})
	} else {
		lines = append(lines,
			[2]string{"Observations", strconv.Itoa(a.Series.Len())},
			[2]string{"Historical mean", FormatCurrency(a.Efficiency.HistoricalMean)},
		)
		if a.Forecast != nil {
			label := fmt.Sprintf("Forecast mean (%dd, %s)", a.Forecast.HorizonDays, a.Forecast.Model)
			if a.Forecast.Fallback {
				label = fmt.Sprintf("Forecast mean (%dd, historical mean)", a.Forecast.HorizonDays)
			}
			lines = append(lines, [2]string{label, FormatCurrency(a.Forecast.HorizonMean)})
		}
	}
	lines = append(lines,
		[2]string{"Efficiency index", FormatIndex(a.Efficiency.Value, false)},
		[2]string{"Efficiency delta", FormatIndex(a.Efficiency.Delta, true)},
		[2]string{"Anomalies", strconv.Itoa(a.AnomalyCount())},
		[2]string{"Advice", a.Advice.Message()},
	)
	for _, l := range lines {
		if _, err := fmt.Fprintf(tw, "%s:\t%s\n", l[0], l[1]); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if a.Stats != nil {
		if err := renderStats(w, a.Stats); err != nil {
			return err
		}
	}
	if a.AnomalyCount() > 0 {
		if err := renderAnomalies(w, a.Anomalies); err != nil {
			return err
		}
	}
	if len(a.Warnings) > 0 {
		if _, err := fmt.Fprintln(w, "\nWarnings:"); err != nil {
			return err
		}
		for _, warn := range a.Warnings {
			if _, err := fmt.Fprintf(w, "  [%s] %s\n", warn.Kind, warn.Message); err != nil {
				return err
			}
		}
	}
	return nil
}

func renderStats(w io.Writer, st *Stats) error {
	if _, err := fmt.Fprintln(w, "\nStatistics:"); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, tabwriterPadding, ' ', 0)
	std := NotAvailable
	if st.Std.Defined {
		std = FormatCurrency(st.Std.Value)
	}
	if _, err := fmt.Fprintf(tw, "  count\tmean\tstd\tmin\t25%%\t50%%\t75%%\tmax\n  %d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		st.Count,
		FormatCurrency(st.Mean), std, FormatCurrency(st.Min),
		FormatCurrency(st.Q25), FormatCurrency(st.Median), FormatCurrency(st.Q75),
		FormatCurrency(st.Max),
	); err != nil {
		return fmt.Errorf("writing stats: %w", err)
	}
	return tw.Flush()
}

func renderAnomalies(w io.Writer, flags []AnomalyFlag) error {
	if _, err := fmt.Fprintln(w, "\nAnomalous days:"); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, tabwriterPadding, ' ', 0)
	for _, f := range flags {
		if !f.IsAnomalous {
			continue
		}
		if _, err := fmt.Fprintf(tw, "  %s\t%s\tz=%.2f\n",
			f.Date.Format("2006-01-02"), FormatCurrency(f.Cost), f.ZScore); err != nil {
			return fmt.Errorf("writing anomaly: %w", err)
		}
	}
	return tw.Flush()
}

// RenderJSON writes v as indented JSON.
func RenderJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}
