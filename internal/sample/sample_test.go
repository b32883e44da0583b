package sample_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/costlens/internal/ingest"
	"github.com/rshade/costlens/internal/sample"
)

func TestGenerate_Flat(t *testing.T) {
	end := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
	table, err := sample.Generate(sample.Options{Seed: 42, End: end})
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "application", "cost"}, table.Columns)
	require.Len(t, table.Rows, len(sample.DefaultApps)*sample.DefaultDays)

	assert.Equal(t, "2024-01-01", table.Rows[0][0])
	assert.Equal(t, "2024-02-29", table.Rows[sample.DefaultDays-1][0])
	for _, r := range table.Rows {
		cost, convErr := strconv.Atoi(r[2])
		require.NoError(t, convErr)
		assert.GreaterOrEqual(t, cost, 2000-500)
		assert.Less(t, cost, 10000+500)
	}

	normalized, err := ingest.Normalize(context.Background(), table, ingest.DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, normalized.Rows, len(table.Rows))
	assert.False(t, normalized.Dropped.Any())
}

func TestGenerate_Deterministic(t *testing.T) {
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	a, err := sample.Generate(sample.Options{Seed: 7, End: end})
	require.NoError(t, err)
	b, err := sample.Generate(sample.Options{Seed: 7, End: end})
	require.NoError(t, err)
	c, err := sample.Generate(sample.Options{Seed: 8, End: end})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a.Rows, c.Rows)
}

func TestGenerate_Growth(t *testing.T) {
	table, err := sample.Generate(sample.Options{
		Apps:   []string{"svc"},
		Days:   30,
		Growth: true,
		Seed:   1,
		End:    time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "AppName", "Cost"}, table.Columns)
	require.Len(t, table.Rows, 30)

	first, _ := strconv.Atoi(table.Rows[0][2])
	last, _ := strconv.Atoi(table.Rows[29][2])
	assert.Greater(t, last, 2*first, "3% daily growth more than doubles in 30 days")

	normalized, err := ingest.Normalize(context.Background(), table, ingest.DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, normalized.Rows, 30)
}

func TestGenerate_InvalidDays(t *testing.T) {
	_, err := sample.Generate(sample.Options{Days: -1})
	require.ErrorIs(t, err, sample.ErrInvalidDays)
}
