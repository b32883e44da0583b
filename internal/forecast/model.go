// Package forecast provides the time-series models behind cost forecasts.
//
// A Model is fitted on daily (date, cost) points and then asked for
// predictions on arbitrary dates, both inside the fitted history and after
// it. Models are stateful and not safe for concurrent use; build one per
// series with a Factory.
package forecast

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Model names accepted by New.
const (
	ModelLinear = "linear"
	ModelHolt   = "holt"
)

// Errors returned by models.
var (
	ErrUnknownModel  = errors.New("unknown forecast model")
	ErrNotFitted     = errors.New("model has not been fitted")
	ErrTooFewPoints  = errors.New("too few points to fit model")
	ErrInvalidOption = errors.New("invalid model option")
)

// minSeasonalPoints is two full weeks: fewer points give each weekday a
// single residual, which just memorises noise.
const minSeasonalPoints = 14

// Point is one observation.
type Point struct {
	Date  time.Time
	Value float64
}

// Model is a fitted forecasting model.
type Model interface {
	Name() string
	Fit(points []Point) error
	Predict(dates []time.Time) ([]float64, error)
}

// Factory builds an unfitted model.
type Factory func() Model

// Options tune model construction. Zero values select defaults.
type Options struct {
	// Seasonal adds a day-of-week offset learned from fit residuals.
	Seasonal bool
	// Alpha is the Holt level smoothing factor in (0, 1].
	Alpha float64
	// Beta is the Holt trend smoothing factor in (0, 1].
	Beta float64
}

// Names lists the registered model names.
func Names() []string {
	return []string{ModelLinear, ModelHolt}
}

// New builds a model by name.
func New(name string, opts Options) (Model, error) {
	factory, err := NewFactory(name, opts)
	if err != nil {
		return nil, err
	}
	return factory(), nil
}

// NewFactory validates name and opts once and returns a Factory for them.
// An empty name selects the linear model.
func NewFactory(name string, opts Options) (Factory, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ModelLinear:
		return func() Model { return &LinearTrend{Seasonal: opts.Seasonal} }, nil
	case ModelHolt:
		alpha, beta := opts.Alpha, opts.Beta
		if alpha == 0 {
			alpha = DefaultHoltAlpha
		}
		if beta == 0 {
			beta = DefaultHoltBeta
		}
		if alpha < 0 || alpha > 1 || beta < 0 || beta > 1 {
			return nil, fmt.Errorf("%w: holt alpha and beta must be in (0, 1]", ErrInvalidOption)
		}
		return func() Model { return &Holt{Alpha: alpha, Beta: beta, Seasonal: opts.Seasonal} }, nil
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownModel, name, strings.Join(Names(), ", "))
	}
}

// sortedCopy returns points ordered by date.
func sortedCopy(points []Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// dayOffset is the whole number of days from origin to t.
func dayOffset(origin, t time.Time) float64 {
	return t.Sub(origin).Round(time.Hour).Hours() / 24
}

// weekdayOffsets averages residuals per weekday. Weekdays with no residuals
// get 0.
func weekdayOffsets(points []Point, fitted []float64) [7]float64 {
	var sums [7]float64
	var counts [7]int
	for i, p := range points {
		wd := p.Date.Weekday()
		sums[wd] += p.Value - fitted[i]
		counts[wd]++
	}
	var out [7]float64
	for i := range out {
		if counts[i] > 0 {
			out[i] = sums[i] / float64(counts[i])
		}
	}
	return out
}
