package engine

// ScoreEfficiency computes the Cost Efficiency Index:
//
//	value = round2(100 * historical / forecast)
//	delta = round2(value - 100)
//
// Both are undefined when forecast <= 0. Values are not clamped: a value
// above 100 means spend is expected to fall.
func ScoreEfficiency(entity string, historicalMean, forecastMean float64) EfficiencyIndex {
	idx := EfficiencyIndex{
		Entity:         entity,
		HistoricalMean: historicalMean,
		ForecastMean:   forecastMean,
	}
	if forecastMean <= 0 {
		return idx
	}
	value := Round2(PercentageMultiplier * historicalMean / forecastMean)
	idx.Value = Defined(value)
	idx.Delta = Defined(Round2(value - PercentageMultiplier))
	return idx
}
