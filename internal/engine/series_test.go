package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSeries(t *testing.T) {
	table := normalize(t, [][]string{
		{"2024-01-03", "App", "30"},
		{"2024-01-01", "App", "10"},
		{"2024-01-02", "Other", "99"},
		{"2024-01-02", "App", "20"},
	})

	s, err := ExtractSeries(table, "App")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30}, s.Costs())
	for i := 1; i < s.Len(); i++ {
		assert.False(t, s.Observations[i].Date.Before(s.Observations[i-1].Date))
	}
}

func TestExtractSeriesEmpty(t *testing.T) {
	table := normalize(t, [][]string{{"2024-01-01", "App", "1"}})

	s, err := ExtractSeries(table, "app")
	require.ErrorIs(t, err, ErrEmptySeries)
	assert.Equal(t, "app", s.Entity)
	assert.Zero(t, s.Len())
}

func TestEntities(t *testing.T) {
	table := normalize(t, [][]string{
		{"2024-01-01", "Zeta", "1"},
		{"2024-01-01", "Alpha", "1"},
		{"2024-01-02", "Zeta", "1"},
	})
	assert.Equal(t, []string{"Alpha", "Zeta"}, Entities(table))
}

func TestSeriesMean(t *testing.T) {
	assert.Zero(t, CostSeries{}.Mean())
	assert.InDelta(t, 166.6666, seriesOf("A", 100, 100, 300).Mean(), 1e-3)
}
