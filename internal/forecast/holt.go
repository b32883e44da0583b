package forecast

import (
	"sort"
	"time"
)

// Holt smoothing defaults.
const (
	DefaultHoltAlpha = 0.5
	DefaultHoltBeta  = 0.3
)

// Holt is double exponential smoothing (level and trend). Gaps between
// observations are handled by scaling the trend by the gap in days.
type Holt struct {
	Alpha    float64
	Beta     float64
	Seasonal bool

	fitted bool
	dates  []time.Time
	levels []float64
	trend  float64
	weekly [7]float64
}

// Name implements Model.
func (m *Holt) Name() string { return ModelHolt }

// Fit implements Model. At least two points are required.
func (m *Holt) Fit(points []Point) error {
	if len(points) < 2 {
		return ErrTooFewPoints
	}
	if m.Alpha <= 0 || m.Alpha > 1 || m.Beta <= 0 || m.Beta > 1 {
		return ErrInvalidOption
	}
	pts := sortedCopy(points)

	m.dates = make([]time.Time, len(pts))
	m.levels = make([]float64, len(pts))

	level := pts[0].Value
	trend := 0.0
	if gap := dayOffset(pts[0].Date, pts[1].Date); gap > 0 {
		trend = (pts[1].Value - pts[0].Value) / gap
	}
	m.dates[0] = pts[0].Date
	m.levels[0] = level

	for i := 1; i < len(pts); i++ {
		gap := dayOffset(pts[i-1].Date, pts[i].Date)
		if gap <= 0 {
			gap = 1
		}
		prev := level
		level = m.Alpha*pts[i].Value + (1-m.Alpha)*(prev+gap*trend)
		trend = m.Beta*(level-prev)/gap + (1-m.Beta)*trend
		m.dates[i] = pts[i].Date
		m.levels[i] = level
	}
	m.trend = trend

	m.weekly = [7]float64{}
	if m.Seasonal && len(pts) >= minSeasonalPoints {
		m.weekly = weekdayOffsets(pts, m.levels)
	}

	m.fitted = true
	return nil
}

// Predict implements Model. Dates inside the fitted range return the
// smoothed level at the latest observation on or before the date; dates
// after it extend the final level by the trend.
func (m *Holt) Predict(dates []time.Time) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	last := len(m.dates) - 1
	out := make([]float64, len(dates))
	for i, d := range dates {
		var v float64
		switch {
		case d.After(m.dates[last]):
			v = m.levels[last] + dayOffset(m.dates[last], d)*m.trend
		case d.Before(m.dates[0]):
			v = m.levels[0]
		default:
			j := sort.Search(len(m.dates), func(k int) bool { return m.dates[k].After(d) }) - 1
			v = m.levels[j]
		}
		out[i] = v + m.weekly[d.Weekday()]
	}
	return out, nil
}
