package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rshade/costlens/internal/ingest"
)

func day(i int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func seriesOf(entity string, costs ...float64) CostSeries {
	obs := make([]ingest.CostObservation, len(costs))
	for i, c := range costs {
		obs[i] = ingest.CostObservation{Date: day(i), Entity: entity, Cost: c}
	}
	return CostSeries{Entity: entity, Observations: obs}
}

func tableOf(series ...CostSeries) ingest.CanonicalTable {
	var t ingest.CanonicalTable
	for _, s := range series {
		t.Rows = append(t.Rows, s.Observations...)
	}
	return t
}

func normalize(t *testing.T, rows [][]string) ingest.CanonicalTable {
	t.Helper()
	table, err := ingest.Normalize(context.Background(), ingest.RawTable{
		Columns: []string{"Date", "Application", "Cost"},
		Rows:    rows,
	}, ingest.DefaultOptions())
	require.NoError(t, err)
	return table
}
