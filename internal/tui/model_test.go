package tui

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/costlens/internal/engine"
	"github.com/rshade/costlens/internal/ingest"
)

// sampleAnalyses builds three entities with distinct spend, anomaly and
// efficiency profiles.
func sampleAnalyses(t *testing.T) []*engine.Analysis {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var rows []ingest.CostObservation
	for i := range 30 {
		d := start.AddDate(0, 0, i)
		spike := 1000.0 + 20*float64(i)
		if i == 15 {
			spike = 5000
		}
		rows = append(rows,
			ingest.CostObservation{Date: d, Entity: "alpha", Cost: spike},
			ingest.CostObservation{Date: d, Entity: "beta", Cost: 300 - 5*float64(i)},
			ingest.CostObservation{Date: d, Entity: "gamma", Cost: 50},
		)
	}
	analyses, err := engine.DefaultPipeline().AnalyzeAll(context.Background(), ingest.CanonicalTable{Rows: rows})
	require.NoError(t, err)
	require.Len(t, analyses, 3)
	return analyses
}

func key(s string) tea.KeyMsg {
	switch s {
	case keyEnter:
		return tea.KeyMsg{Type: tea.KeyEnter}
	case keyEsc:
		return tea.KeyMsg{Type: tea.KeyEscape}
	case keyCtrlC:
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func TestModel_StateTransitions(t *testing.T) {
	m := NewModel(context.Background(), sampleAnalyses(t))
	assert.Equal(t, ViewStateList, m.State())
	assert.Nil(t, m.Init())

	m, _ = update(t, m, key("down"))
	m, _ = update(t, m, key(keyEnter))
	assert.Equal(t, ViewStateDetail, m.State())
	require.NotNil(t, m.Selected())
	assert.Equal(t, "beta", m.Selected().Entity)
	assert.Contains(t, m.View(), "ENTITY DETAIL")

	m, _ = update(t, m, key(keyEsc))
	assert.Equal(t, ViewStateList, m.State())

	m, cmd := update(t, m, key(keyQuit))
	assert.Equal(t, ViewStateQuitting, m.State())
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestModel_QuitFromDetail(t *testing.T) {
	m := NewModel(context.Background(), sampleAnalyses(t))
	m, _ = update(t, m, key(keyEnter))
	m, cmd := update(t, m, key(keyCtrlC))
	assert.Equal(t, ViewStateQuitting, m.State())
	assert.NotNil(t, cmd)
}

func TestModel_ListView(t *testing.T) {
	m := NewModel(context.Background(), sampleAnalyses(t))
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 140, Height: 40})

	view := m.View()
	assert.Contains(t, view, "COST SUMMARY")
	assert.Contains(t, view, "Entities:")
	assert.Contains(t, view, "alpha")
	assert.Contains(t, view, "sort (cost)")
}

func TestModel_Sort(t *testing.T) {
	m := NewModel(context.Background(), sampleAnalyses(t))
	entities := func(m Model) []string {
		out := make([]string, 0, len(m.Rows()))
		for _, a := range m.Rows() {
			out = append(out, a.Entity)
		}
		return out
	}
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, entities(m))

	m, _ = update(t, m, key(keyS))
	assert.Equal(t, SortByName, m.sortBy)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, entities(m))

	m, _ = update(t, m, key(keyS))
	assert.Equal(t, SortByEfficiency, m.sortBy)
	assert.Equal(t, "alpha", entities(m)[0], "rising spend has the lowest index")

	m, _ = update(t, m, key(keyS))
	assert.Equal(t, SortByAnomalies, m.sortBy)
	assert.Equal(t, "alpha", entities(m)[0])

	m, _ = update(t, m, key(keyS))
	assert.Equal(t, SortByCost, m.sortBy)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, entities(m))
}

func TestModel_Loading(t *testing.T) {
	analyses := sampleAnalyses(t)
	m := NewLoadingModel(context.Background(), func(context.Context) ([]*engine.Analysis, error) {
		return analyses, nil
	})
	assert.Equal(t, ViewStateLoading, m.State())
	assert.NotNil(t, m.Init())
	assert.Contains(t, m.View(), "Analyzing cost data")

	msg := m.loadCmd()()
	loaded, ok := msg.(AnalysesLoadedMsg)
	require.True(t, ok)
	assert.Len(t, loaded.Analyses, 3)

	m, _ = update(t, m, msg)
	assert.Equal(t, ViewStateList, m.State())
	assert.Len(t, m.Rows(), 3)
}

func TestModel_LoadFailure(t *testing.T) {
	m := NewLoadingModel(context.Background(), func(context.Context) ([]*engine.Analysis, error) {
		return nil, errors.New("source unavailable")
	})
	msg := m.loadCmd()()
	require.IsType(t, LoadFailedMsg{}, msg)

	m, _ = update(t, m, msg)
	assert.Equal(t, ViewStateError, m.State())
	assert.Contains(t, m.View(), "source unavailable")

	m, cmd := update(t, m, key(keyQuit))
	assert.Equal(t, ViewStateQuitting, m.State())
	assert.NotNil(t, cmd)
}

func TestModel_EmptyDashboard(t *testing.T) {
	m := NewModel(context.Background(), nil)
	assert.Contains(t, m.View(), "No results to display")
	m, _ = update(t, m, key(keyEnter))
	assert.Equal(t, ViewStateList, m.State(), "enter on an empty table stays on the list")
}

func TestRenderDetailView(t *testing.T) {
	analyses := sampleAnalyses(t)
	out := RenderDetailView(analyses[0], 120)

	for _, want := range []string{
		"ENTITY DETAIL", "alpha", "Forecast Mean:", "linear",
		"ANOMALIES (1)", "2024-01-16", "STATISTICS", "count 30",
	} {
		assert.Contains(t, out, want)
	}
}

func TestRenderDetailView_NoData(t *testing.T) {
	a, err := engine.DefaultPipeline().Analyze(context.Background(), ingest.CanonicalTable{}, "ghost")
	require.NoError(t, err)

	out := RenderDetailView(a, 80)
	assert.Contains(t, out, "ghost")
	assert.Contains(t, out, "No data available")
	assert.Contains(t, out, "WARNINGS")
	assert.NotContains(t, out, "STATISTICS")
}

func TestRenderCostSummary(t *testing.T) {
	assert.Contains(t, RenderCostSummary(nil, 80), "No results to display")

	ranking := []engine.EntitySummary{
		{Entity: "a", TotalCost: 750, CostShare: engine.Defined(75), Trend: engine.TrendRising},
		{Entity: "b", TotalCost: 250, CostShare: engine.Defined(25), Trend: engine.TrendFalling},
	}
	out := RenderCostSummary(ranking, 100)
	assert.Contains(t, out, "$1,000.00")
	assert.Contains(t, out, "a: $750.00 (75.00%)")
	assert.Contains(t, out, "Rising: ")
}

func TestTruncateName(t *testing.T) {
	assert.Equal(t, "short", truncateName("short"))
	long := fmt.Sprintf("%040d", 0)
	got := truncateName(long)
	assert.Len(t, got, maxNameDisplayLen)
	assert.Equal(t, "...", got[len(got)-3:])
}

func TestDetectOutputMode(t *testing.T) {
	assert.Equal(t, OutputModePlain, DetectOutputMode(true, false))
	assert.Equal(t, OutputModePlain, DetectOutputMode(false, true))

	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, OutputModePlain, DetectOutputMode(false, false))

	assert.Equal(t, "interactive", OutputModeInteractive.String())
	assert.Equal(t, "styled", OutputModeStyled.String())
	assert.Positive(t, TerminalWidth())
}
