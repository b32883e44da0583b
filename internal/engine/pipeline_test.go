package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/costlens/internal/ingest"
)

func hasWarning(ws []Warning, kind WarningKind) bool {
	for _, w := range ws {
		if w.Kind == kind {
			return true
		}
	}
	return false
}

func TestPipelineEndToEndShortSeries(t *testing.T) {
	raw := ingest.RawTable{
		Columns: []string{"Date", "Application", "Cost"},
		Rows: [][]string{
			{"2024-01-01", "App", "100"},
			{"2024-01-02", "App", "100"},
			{"2024-01-03", "App", "300"},
		},
	}

	a, err := DefaultPipeline().AnalyzeRaw(context.Background(), raw, ingest.DefaultOptions(), "App")
	require.NoError(t, err)

	assert.False(t, a.NoData)
	assert.InDelta(t, 166.67, Round2(a.Efficiency.HistoricalMean), 1e-9)
	require.NotNil(t, a.Forecast)
	assert.True(t, a.Forecast.Fallback)
	assert.InDelta(t, 166.67, Round2(a.Forecast.HorizonMean), 1e-9)
	assert.Equal(t, Defined(100), a.Efficiency.Value)
	assert.Equal(t, Defined(0), a.Efficiency.Delta)
	assert.Equal(t, AdviceStable, a.Advice)

	require.Len(t, a.Anomalies, 3)
	for _, f := range a.Anomalies {
		assert.False(t, f.IsAnomalous)
	}
	assert.True(t, hasWarning(a.Warnings, WarnInsufficientHistory))

	require.Len(t, a.Ranking, 1)
	assert.Equal(t, Defined(100), a.Ranking[0].CostShare)
	assert.Equal(t, TrendRising, a.Ranking[0].Trend)
	require.NotNil(t, a.Stats)
	assert.Equal(t, 3, a.Stats.Count)
}

func TestPipelineEmptyEntity(t *testing.T) {
	raw := ingest.RawTable{
		Columns: []string{"Date", "Application", "Cost"},
		Rows: [][]string{
			{"2024-01-01", "Good", "10"},
			{"garbage", "Broken", "10"},
			{"2024-01-02", "Broken", "not-a-number"},
		},
	}

	a, err := DefaultPipeline().AnalyzeRaw(context.Background(), raw, ingest.DefaultOptions(), "Broken")
	require.NoError(t, err)

	assert.True(t, a.NoData)
	assert.Nil(t, a.Forecast)
	assert.Empty(t, a.Anomalies)
	assert.False(t, a.Efficiency.Value.Defined)
	assert.False(t, a.Efficiency.Delta.Defined)
	assert.Equal(t, AdviceNoData, a.Advice)
	assert.True(t, hasWarning(a.Warnings, WarnEmptySeries))
	assert.True(t, hasWarning(a.Warnings, WarnParse))
	assert.Equal(t, 1, a.Dropped.BadTimestamp)
	assert.Equal(t, 1, a.Dropped.BadCost)
	require.Len(t, a.Ranking, 1)
	assert.Equal(t, "Good", a.Ranking[0].Entity)
}

func TestPipelineSchemaErrorAborts(t *testing.T) {
	raw := ingest.RawTable{Columns: []string{"Date", "Cost"}}
	_, err := DefaultPipeline().AnalyzeRaw(context.Background(), raw, ingest.DefaultOptions(), "x")
	assert.ErrorIs(t, err, ingest.ErrSchema)
}

func TestPipelineDefaultsToTopEntity(t *testing.T) {
	raw := ingest.RawTable{
		Columns: []string{"Date", "Application", "Cost"},
		Rows: [][]string{
			{"2024-01-01", "Small", "1"},
			{"2024-01-01", "Big", "100"},
		},
	}
	a, err := DefaultPipeline().AnalyzeRaw(context.Background(), raw, ingest.DefaultOptions(), "")
	require.NoError(t, err)
	assert.Equal(t, "Big", a.Entity)
}

func TestPipelineFullForecast(t *testing.T) {
	costs := make([]float64, 30)
	for i := range costs {
		costs[i] = 1000 + 20*float64(i)
	}
	costs[15] = 5000

	a, err := DefaultPipeline().Analyze(context.Background(), tableOf(seriesOf("App", costs...)), "App")
	require.NoError(t, err)

	require.NotNil(t, a.Forecast)
	assert.False(t, a.Forecast.Fallback)
	assert.Len(t, a.Forecast.Future(), DefaultHorizonDays)
	assert.True(t, a.Anomalies[15].IsAnomalous)
	assert.Equal(t, 1, a.AnomalyCount())
	assert.True(t, a.Efficiency.Value.Defined)
	assert.Less(t, a.Efficiency.Value.Value, 100.0, "rising spend scores below 100")
	assert.Equal(t, AdviceRising, a.Advice)
}

func TestPipelineInvalidParameters(t *testing.T) {
	p := DefaultPipeline()
	p.HorizonDays = 0
	_, err := p.Analyze(context.Background(), ingest.CanonicalTable{}, "x")
	assert.ErrorIs(t, err, ErrInvalidHorizon)

	p.HorizonDays = MaxHorizonDays + 1
	_, err = p.Analyze(context.Background(), ingest.CanonicalTable{}, "x")
	assert.ErrorIs(t, err, ErrInvalidHorizon)

	p = DefaultPipeline()
	p.AnomalyThreshold = -1
	_, err = p.Analyze(context.Background(), ingest.CanonicalTable{}, "x")
	assert.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestAnalyzeAll(t *testing.T) {
	var series []CostSeries
	for i := 0; i < 12; i++ {
		costs := make([]float64, 8)
		for j := range costs {
			costs[j] = float64((i + 1) * (j + 1))
		}
		series = append(series, seriesOf(fmt.Sprintf("app-%02d", i), costs...))
	}
	table := tableOf(series...)

	results, err := DefaultPipeline().AnalyzeAll(context.Background(), table)
	require.NoError(t, err)
	require.Len(t, results, 12)

	assert.Equal(t, "app-11", results[0].Entity, "results follow ranking order")
	for i, a := range results {
		assert.Equal(t, a.Ranking[i].Entity, a.Entity)
		assert.Len(t, a.Series.Observations, 8)
		// Each analysis sees only its own entity.
		for _, o := range a.Series.Observations {
			assert.Equal(t, a.Entity, o.Entity)
		}

		single, singleErr := DefaultPipeline().Analyze(context.Background(), table, a.Entity)
		require.NoError(t, singleErr)
		assert.Equal(t, single.Efficiency, a.Efficiency)
	}
}
