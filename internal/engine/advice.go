package engine

// Advice is an optimization hint derived from forecast versus history.
type Advice string

// Advice values.
const (
	AdviceRising    Advice = "rising"
	AdviceOptimized Advice = "optimized"
	AdviceStable    Advice = "stable"
	AdviceNoData    Advice = "no_data"
)

// Tolerance band around the historical mean.
const (
	adviceUpperRatio = 1.05
	adviceLowerRatio = 0.95
)

// Advise compares forecast and historical mean with a 5% tolerance band.
func Advise(historicalMean, forecastMean float64) Advice {
	switch {
	case forecastMean > historicalMean*adviceUpperRatio:
		return AdviceRising
	case forecastMean < historicalMean*adviceLowerRatio:
		return AdviceOptimized
	default:
		return AdviceStable
	}
}

// Message is the user-facing recommendation.
func (a Advice) Message() string {
	switch a {
	case AdviceRising:
		return "Costs are rising: consider scaling down compute and check for unused storage or idle instances."
	case AdviceOptimized:
		return "Costs are trending down: current optimizations are working."
	case AdviceStable:
		return "Costs are stable: keep monitoring usage."
	case AdviceNoData:
		return "No data available for this entity."
	default:
		return string(a)
	}
}
