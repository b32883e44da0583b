package engine

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Describe returns count, mean, sample std, min, quartiles and max of the
// series costs. Quartiles interpolate linearly between closest ranks.
func Describe(series CostSeries) (Stats, error) {
	if series.Len() == 0 {
		return Stats{}, fmt.Errorf("%w: %q", ErrEmptySeries, series.Entity)
	}

	costs := series.Costs()
	sorted := make([]float64, len(costs))
	copy(sorted, costs)
	sort.Float64s(sorted)

	st := Stats{
		Count:  len(costs),
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
		Q25:    quantile(sorted, 0.25),
		Median: quantile(sorted, 0.5),
		Q75:    quantile(sorted, 0.75),
	}
	if len(costs) < 2 {
		st.Mean = costs[0]
		return st, nil
	}
	mean, std := stat.MeanStdDev(costs, nil)
	st.Mean = mean
	st.Std = Defined(std)
	return st, nil
}

// quantile uses h = (n-1)p on sorted data.
func quantile(sorted []float64, p float64) float64 {
	h := float64(len(sorted)-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}
