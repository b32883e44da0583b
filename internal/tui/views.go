package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"

	"github.com/rshade/costlens/internal/engine"
)

const (
	maxNameDisplayLen = 30
	truncateSuffix    = "..."
	maxListedAnomaly  = 10
	maxListedWarnings = 8
)

// truncateName shortens entity names for table cells.
func truncateName(name string) string {
	if len(name) <= maxNameDisplayLen {
		return name
	}
	return name[:maxNameDisplayLen-len(truncateSuffix)] + truncateSuffix
}

// RenderCostSummary renders a boxed overview of the ranking: grand total,
// entity count and the top spenders with their share.
func RenderCostSummary(ranking []engine.EntitySummary, width int) string {
	if len(ranking) == 0 {
		return InfoStyle.Render("No results to display.")
	}

	var total float64
	rising := 0
	for _, s := range ranking {
		total += s.TotalCost
		if s.Trend == engine.TrendRising {
			rising++
		}
	}

	var content strings.Builder
	content.WriteString(HeaderStyle.Render("COST SUMMARY"))
	content.WriteString("\n")

	content.WriteString(LabelStyle.Render("Total Cost:    "))
	content.WriteString(ValueStyle.Render(engine.FormatCurrency(total)))
	content.WriteString(LabelStyle.Render("    Entities: "))
	content.WriteString(ValueStyle.Render(strconv.Itoa(len(ranking))))
	content.WriteString(LabelStyle.Render("    Rising: "))
	content.WriteString(ValueStyle.Render(strconv.Itoa(rising)))
	content.WriteString("\n")

	const topShown = 3
	parts := make([]string, 0, topShown)
	for _, s := range engine.TopN(ranking, topShown) {
		parts = append(parts, fmt.Sprintf("%s: %s (%s)",
			truncateName(s.Entity), engine.FormatCurrency(s.TotalCost), engine.FormatPercent(s.CostShare)))
	}
	content.WriteString(LabelStyle.Render(strings.Join(parts, "  ")))

	return BoxStyle.Width(width - borderPadding).Render(content.String())
}

// NewRankingTable builds the entity table. analyses must be in display order.
func NewRankingTable(analyses []*engine.Analysis, height int) table.Model {
	columns := []table.Column{
		{Title: "Entity", Width: maxNameDisplayLen},
		{Title: "Total", Width: 14},      //nolint:mnd // Column width.
		{Title: "Mean/Day", Width: 12},   //nolint:mnd // Column width.
		{Title: "Share", Width: 8},       //nolint:mnd // Column width.
		{Title: "Trend", Width: 8},       //nolint:mnd // Column width.
		{Title: "Efficiency", Width: 10}, //nolint:mnd // Column width.
		{Title: "Anomalies", Width: 9},   //nolint:mnd // Column width.
		{Title: "Advice", Width: 10},     //nolint:mnd // Column width.
	}

	rows := make([]table.Row, len(analyses))
	for i, a := range analyses {
		s, _ := summaryOf(a)
		rows[i] = table.Row{
			truncateName(a.Entity),
			engine.FormatCurrency(s.TotalCost),
			engine.FormatCurrency(s.MeanCost),
			engine.FormatPercent(s.CostShare),
			string(s.Trend),
			engine.FormatIndex(a.Efficiency.Value, false),
			formatCount(a.AnomalyCount()),
			string(a.Advice),
		}
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	s := table.DefaultStyles()
	s.Header = TableHeaderStyle
	s.Selected = TableSelectedStyle
	t.SetStyles(s)
	return t
}

// summaryOf finds the analysis entity in its own ranking.
func summaryOf(a *engine.Analysis) (engine.EntitySummary, bool) {
	for _, s := range a.Ranking {
		if s.Entity == a.Entity {
			return s, true
		}
	}
	return engine.EntitySummary{Entity: a.Entity, CostShare: engine.Undefined()}, false
}

func formatCount(n int) string {
	if n == 0 {
		return "-"
	}
	return strconv.Itoa(n)
}

// RenderDetailView renders the full analysis of one entity: history and
// forecast means, efficiency, advice, anomalous days, descriptive statistics
// and warnings.
func RenderDetailView(a *engine.Analysis, width int) string {
	var content strings.Builder

	content.WriteString(HeaderStyle.Render("ENTITY DETAIL"))
	content.WriteString("\n\n")
	writeField(&content, "Entity:        ", a.Entity)

	if a.NoData {
		content.WriteString("\n")
		content.WriteString(RenderAdvice(a.Advice))
		content.WriteString("\n")
		renderWarningsSection(&content, a.Warnings)
		return BoxStyle.Width(width - borderPadding).Render(content.String())
	}

	if s, ok := summaryOf(a); ok {
		writeField(&content, "Total Cost:    ", engine.FormatCurrency(s.TotalCost))
		writeField(&content, "Cost Share:    ", engine.FormatPercent(s.CostShare))
		content.WriteString(LabelStyle.Render("Trend:         "))
		content.WriteString(RenderTrend(s.Trend))
		content.WriteString("\n")
	}
	writeField(&content, "Observations:  ", strconv.Itoa(a.Series.Len()))
	writeField(&content, "Hist. Mean:    ", engine.FormatCurrency(a.Efficiency.HistoricalMean))

	if a.Forecast != nil {
		label := fmt.Sprintf("%s (%s, %d days)",
			engine.FormatCurrency(a.Forecast.HorizonMean), a.Forecast.Model, a.Forecast.HorizonDays)
		if a.Forecast.Fallback {
			label = engine.FormatCurrency(a.Forecast.HorizonMean) + " (historical mean, short history)"
		}
		writeField(&content, "Forecast Mean: ", label)
	}
	writeField(&content, "Efficiency:    ", engine.FormatIndex(a.Efficiency.Value, false))
	writeField(&content, "Delta:         ", engine.FormatIndex(a.Efficiency.Delta, true))
	content.WriteString("\n")
	content.WriteString(RenderAdvice(a.Advice))
	content.WriteString("\n\n")

	renderAnomalySection(&content, a.Anomalies)
	renderStatsSection(&content, a.Stats)
	renderWarningsSection(&content, a.Warnings)

	return BoxStyle.Width(width - borderPadding).Render(content.String())
}

func writeField(b *strings.Builder, label, value string) {
	b.WriteString(LabelStyle.Render(label))
	b.WriteString(ValueStyle.Render(value))
	b.WriteString("\n")
}

func renderAnomalySection(content *strings.Builder, flags []engine.AnomalyFlag) {
	var anomalous []engine.AnomalyFlag
	for _, f := range flags {
		if f.IsAnomalous {
			anomalous = append(anomalous, f)
		}
	}
	if len(anomalous) == 0 {
		return
	}

	content.WriteString(HeaderStyle.Render(fmt.Sprintf("ANOMALIES (%d)", len(anomalous))))
	content.WriteString("\n")
	for i, f := range anomalous {
		if i == maxListedAnomaly {
			fmt.Fprintf(content, "  ... %d more\n", len(anomalous)-maxListedAnomaly)
			break
		}
		fmt.Fprintf(content, "- %s  %s  %s\n",
			f.Date.Format("2006-01-02"),
			engine.FormatCurrency(f.Cost),
			WarningStyle.Render(fmt.Sprintf("z=%.2f", f.ZScore)))
	}
	content.WriteString("\n")
}

func renderStatsSection(content *strings.Builder, st *engine.Stats) {
	if st == nil {
		return
	}
	content.WriteString(HeaderStyle.Render("STATISTICS"))
	content.WriteString("\n")
	fmt.Fprintf(content, "count %d  mean %s  std %s\n",
		st.Count, engine.FormatCurrency(st.Mean), st.Std.String())
	fmt.Fprintf(content, "min %s  p25 %s  p50 %s  p75 %s  max %s\n",
		engine.FormatCurrency(st.Min), engine.FormatCurrency(st.Q25),
		engine.FormatCurrency(st.Median), engine.FormatCurrency(st.Q75),
		engine.FormatCurrency(st.Max))
	content.WriteString("\n")
}

func renderWarningsSection(content *strings.Builder, warnings []engine.Warning) {
	if len(warnings) == 0 {
		return
	}
	content.WriteString(HeaderStyle.Render("WARNINGS"))
	content.WriteString("\n")
	for i, w := range warnings {
		if i == maxListedWarnings {
			fmt.Fprintf(content, "  ... %d more\n", len(warnings)-maxListedWarnings)
			break
		}
		content.WriteString(WarningStyle.Render(w.String()))
		content.WriteString("\n")
	}
}
