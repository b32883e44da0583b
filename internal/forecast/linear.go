package forecast

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// LinearTrend fits an ordinary least squares line over day index, with an
// optional additive day-of-week component.
type LinearTrend struct {
	Seasonal bool

	fitted    bool
	origin    time.Time
	intercept float64
	slope     float64
	weekly    [7]float64
}

// Name implements Model.
func (m *LinearTrend) Name() string { return ModelLinear }

// Fit implements Model. At least two points are required.
func (m *LinearTrend) Fit(points []Point) error {
	if len(points) < 2 {
		return ErrTooFewPoints
	}
	pts := sortedCopy(points)

	m.origin = pts[0].Date
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i] = dayOffset(m.origin, p.Date)
		ys[i] = p.Value
	}

	if xs[len(xs)-1] == xs[0] {
		// Every point on one day: no slope to learn.
		m.intercept = stat.Mean(ys, nil)
		m.slope = 0
	} else {
		m.intercept, m.slope = stat.LinearRegression(xs, ys, nil, false)
	}

	m.weekly = [7]float64{}
	if m.Seasonal && len(pts) >= minSeasonalPoints {
		trend := make([]float64, len(pts))
		for i, x := range xs {
			trend[i] = m.intercept + m.slope*x
		}
		m.weekly = weekdayOffsets(pts, trend)
	}

	m.fitted = true
	return nil
}

// Predict implements Model.
func (m *LinearTrend) Predict(dates []time.Time) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(dates))
	for i, d := range dates {
		out[i] = m.intercept + m.slope*dayOffset(m.origin, d) + m.weekly[d.Weekday()]
	}
	return out, nil
}
