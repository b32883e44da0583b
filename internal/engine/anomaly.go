package engine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// DetectAnomalies flags observations farther than k sample standard
// deviations from the series mean. Series of length 0 or 1, and series with
// zero spread, flag nothing.
//
// The mean and deviation include the outliers themselves, so a single large
// spike in a short series can mask itself.
func DetectAnomalies(series CostSeries, k float64) ([]AnomalyFlag, error) {
	if k <= 0 || math.IsNaN(k) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, k)
	}

	flags := make([]AnomalyFlag, series.Len())
	for i, o := range series.Observations {
		flags[i] = AnomalyFlag{Date: o.Date, Cost: o.Cost}
	}
	if series.Len() < 2 {
		return flags, nil
	}

	mean, std := stat.MeanStdDev(series.Costs(), nil)
	if std == 0 || math.IsNaN(std) {
		return flags, nil
	}

	for i := range flags {
		dev := flags[i].Cost - mean
		flags[i].ZScore = dev / std
		flags[i].IsAnomalous = math.Abs(dev) > k*std
	}
	return flags, nil
}
