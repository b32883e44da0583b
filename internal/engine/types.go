// Package engine implements the cost-intelligence pipeline: series
// extraction, forecasting, anomaly detection, efficiency scoring and
// cross-entity aggregation over a normalized cost table.
//
// Every operation is a pure function of its inputs. The Pipeline type is the
// only place request parameters (entity, horizon, threshold) flow in.
package engine

import (
	"errors"
	"time"

	"github.com/rshade/costlens/internal/ingest"
)

// Pipeline defaults.
const (
	MinHistory              = 6
	DefaultHorizonDays      = 30
	// MaxHorizonDays caps the forecast horizon at ten years.
	MaxHorizonDays          = 3650
	DefaultAnomalyThreshold = 2.0
	DefaultTopN             = 15
	// PercentageMultiplier converts a ratio to a percentage.
	PercentageMultiplier = 100.0
)

// Errors returned by engine operations.
var (
	ErrEmptySeries      = errors.New("no observations for entity")
	ErrInvalidHorizon   = errors.New("forecast horizon must be between 1 and 3650 days")
	ErrInvalidThreshold = errors.New("anomaly threshold must be positive")
	ErrForecastFailed   = errors.New("forecast model failed")
)

// CostSeries is one entity's observations in ascending date order with no
// duplicate dates.
type CostSeries struct {
	Entity       string                   `json:"entity"`
	Observations []ingest.CostObservation `json:"observations"`
}

// Len returns the number of observations.
func (s CostSeries) Len() int {
	return len(s.Observations)
}

// Costs returns the cost values in date order.
func (s CostSeries) Costs() []float64 {
	out := make([]float64, len(s.Observations))
	for i, o := range s.Observations {
		out[i] = o.Cost
	}
	return out
}

// Mean is the arithmetic mean cost, 0 for an empty series.
func (s CostSeries) Mean() float64 {
	if len(s.Observations) == 0 {
		return 0
	}
	var sum float64
	for _, o := range s.Observations {
		sum += o.Cost
	}
	return sum / float64(len(s.Observations))
}

// PredictedPoint is one model output.
type PredictedPoint struct {
	Date   time.Time `json:"date"`
	Value  float64   `json:"value"`
	Future bool      `json:"future"`
}

// ForecastResult is the forecaster's output for one series.
type ForecastResult struct {
	Entity      string `json:"entity"`
	HorizonDays int    `json:"horizon_days"`
	// Predicted holds fitted history followed by HorizonDays future
	// points. Empty when Fallback is set.
	Predicted   []PredictedPoint `json:"predicted,omitempty"`
	HorizonMean float64          `json:"horizon_mean"`
	// Fallback marks a result whose HorizonMean is the historical mean
	// because the series was too short to fit.
	Fallback bool   `json:"fallback"`
	Model    string `json:"model,omitempty"`
}

// Future returns only the projected points.
func (f ForecastResult) Future() []PredictedPoint {
	var out []PredictedPoint
	for _, p := range f.Predicted {
		if p.Future {
			out = append(out, p)
		}
	}
	return out
}

// AnomalyFlag marks one observation.
type AnomalyFlag struct {
	Date        time.Time `json:"date"`
	Cost        float64   `json:"cost"`
	IsAnomalous bool      `json:"is_anomalous"`
	// ZScore is (cost - mean) / std, 0 when std is 0.
	ZScore float64 `json:"z_score"`
}

// EfficiencyIndex compares historical and forecast mean spend.
type EfficiencyIndex struct {
	Entity         string  `json:"entity"`
	HistoricalMean float64 `json:"historical_mean"`
	ForecastMean   float64 `json:"forecast_mean"`
	Value          Metric  `json:"index_value"`
	Delta          Metric  `json:"delta"`
}

// TrendLabel is the coarse direction of an entity's spend.
type TrendLabel string

// Trend labels.
const (
	TrendRising  TrendLabel = "Rising"
	TrendFalling TrendLabel = "Falling"
)

// EntitySummary is one row of the cross-entity ranking.
type EntitySummary struct {
	Entity       string     `json:"entity"`
	TotalCost    float64    `json:"total_cost"`
	MinCost      float64    `json:"min_cost"`
	MaxCost      float64    `json:"max_cost"`
	MeanCost     float64    `json:"mean_cost"`
	CostShare    Metric     `json:"cost_share_pct"`
	Trend        TrendLabel `json:"trend"`
	Observations int        `json:"observations"`
}

// Stats is a descriptive summary of one series.
type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    Metric  `json:"std"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"p25"`
	Median float64 `json:"p50"`
	Q75    float64 `json:"p75"`
	Max    float64 `json:"max"`
}

// Analysis is the full result for one selected entity.
type Analysis struct {
	Entity     string            `json:"entity"`
	NoData     bool              `json:"no_data"`
	Series     CostSeries        `json:"series"`
	Forecast   *ForecastResult   `json:"forecast"`
	Anomalies  []AnomalyFlag     `json:"anomalies"`
	Efficiency EfficiencyIndex   `json:"efficiency"`
	Advice     Advice            `json:"advice"`
	Stats      *Stats            `json:"stats,omitempty"`
	Ranking    []EntitySummary   `json:"ranking"`
	Warnings   []Warning         `json:"warnings,omitempty"`
	Dropped    ingest.DropReport `json:"dropped"`
}

// AnomalyCount returns the number of flagged observations.
func (a *Analysis) AnomalyCount() int {
	n := 0
	for _, f := range a.Anomalies {
		if f.IsAnomalous {
			n++
		}
	}
	return n
}
