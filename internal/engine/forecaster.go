package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rshade/costlens/internal/forecast"
	"github.com/rshade/costlens/internal/logging"
)

// Forecaster projects a series forward using a pluggable model.
type Forecaster struct {
	// NewModel builds a fresh model for each call. Nil selects the linear
	// trend model.
	NewModel forecast.Factory
	// MinHistory is the fewest observations a model is fitted on. Zero
	// selects MinHistory.
	MinHistory int
}

// NewForecaster returns a Forecaster using the named model.
func NewForecaster(model string, opts forecast.Options) (Forecaster, error) {
	factory, err := forecast.NewFactory(model, opts)
	if err != nil {
		return Forecaster{}, err
	}
	return Forecaster{NewModel: factory, MinHistory: MinHistory}, nil
}

func (f Forecaster) minHistory() int {
	if f.MinHistory <= 0 {
		return MinHistory
	}
	return f.MinHistory
}

func (f Forecaster) model() forecast.Model {
	if f.NewModel == nil {
		return &forecast.LinearTrend{}
	}
	return f.NewModel()
}

// Forecast fits the model on series and predicts the fitted history plus
// horizon future days. Series shorter than MinHistory are not fitted: the
// result is a fallback whose HorizonMean is the historical mean.
func (f Forecaster) Forecast(ctx context.Context, series CostSeries, horizon int) (ForecastResult, error) {
	if horizon <= 0 || horizon > MaxHorizonDays {
		return ForecastResult{}, fmt.Errorf("%w: %d", ErrInvalidHorizon, horizon)
	}

	logger := logging.FromContext(ctx).With().
		Str("component", "engine").
		Str("operation", "Forecast").
		Str("entity", series.Entity).
		Logger()

	if series.Len() < f.minHistory() {
		logger.Debug().
			Int("observations", series.Len()).
			Int("min_history", f.minHistory()).
			Msg("insufficient history, using historical mean")
		return ForecastResult{
			Entity:      series.Entity,
			HorizonDays: horizon,
			HorizonMean: series.Mean(),
			Fallback:    true,
		}, nil
	}

	model := f.model()
	points := make([]forecast.Point, series.Len())
	for i, o := range series.Observations {
		points[i] = forecast.Point{Date: o.Date, Value: o.Cost}
	}
	if err := model.Fit(points); err != nil {
		return ForecastResult{}, fmt.Errorf("%w: fitting %s: %w", ErrForecastFailed, model.Name(), err)
	}

	last := series.Observations[series.Len()-1].Date
	dates := make([]time.Time, 0, series.Len()+horizon)
	for _, o := range series.Observations {
		dates = append(dates, o.Date)
	}
	for d := 1; d <= horizon; d++ {
		dates = append(dates, last.AddDate(0, 0, d))
	}

	values, err := model.Predict(dates)
	if err != nil {
		return ForecastResult{}, fmt.Errorf("%w: predicting with %s: %w", ErrForecastFailed, model.Name(), err)
	}

	predicted := make([]PredictedPoint, len(dates))
	var futureSum float64
	for i, d := range dates {
		v := values[i]
		if v < 0 {
			v = 0
		}
		future := i >= series.Len()
		if future {
			futureSum += v
		}
		predicted[i] = PredictedPoint{Date: d, Value: v, Future: future}
	}

	result := ForecastResult{
		Entity:      series.Entity,
		HorizonDays: horizon,
		Predicted:   predicted,
		HorizonMean: futureSum / float64(horizon),
		Model:       model.Name(),
	}
	logger.Debug().
		Str("model", result.Model).
		Float64("horizon_mean", result.HorizonMean).
		Msg("forecast complete")
	return result, nil
}
