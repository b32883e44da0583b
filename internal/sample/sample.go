// Package sample generates synthetic daily cost data for demos and tests.
package sample

import (
	"errors"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/rshade/costlens/internal/ingest"
)

// DefaultDays is the history length generated when Options.Days is zero.
const DefaultDays = 60

// Cost ranges, in whole currency units.
const (
	flatBaseMin     = 2000
	flatBaseMax     = 10000
	flatNoise       = 500
	growthBaseMin   = 2000
	growthBaseMax   = 4000
	growthNoise     = 100
	growthDailyRate = 1.03
)

// ErrInvalidDays is returned for a negative day count.
var ErrInvalidDays = errors.New("days must be positive")

// DefaultApps are the applications generated when Options.Apps is empty.
//
//nolint:gochecknoglobals // Read-only fixture list.
var DefaultApps = []string{"AuthAPI", "AnalyticsService", "DatabaseCluster", "FrontendApp", "PaymentGateway"}

// Options controls Generate.
type Options struct {
	Apps []string
	Days int
	// Growth compounds each app's base cost by 3% per day instead of
	// holding it flat.
	Growth bool
	// Seed makes the output reproducible. Zero seeds from the clock.
	Seed uint64
	// End is the day after the last generated date. Zero means today (UTC).
	End time.Time
}

// Generate returns one row per app per day. Flat data uses the columns
// date/application/cost; growth data uses Date/AppName/Cost, matching the
// two export templates the dashboard accepts.
func Generate(opts Options) (ingest.RawTable, error) {
	days := opts.Days
	if days == 0 {
		days = DefaultDays
	}
	if days < 0 {
		return ingest.RawTable{}, ErrInvalidDays
	}
	apps := opts.Apps
	if len(apps) == 0 {
		apps = DefaultApps
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) //nolint:gosec // Sign is irrelevant for a seed.
	}
	end := opts.End
	if end.IsZero() {
		end = time.Now().UTC()
	}
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	rng := rand.New(rand.NewPCG(seed, seed>>1|1)) //nolint:gosec // Synthetic data, not security sensitive.

	table := ingest.RawTable{Columns: []string{"date", "application", "cost"}}
	if opts.Growth {
		table.Columns = []string{"Date", "AppName", "Cost"}
	}
	table.Rows = make([][]string, 0, len(apps)*days)

	for _, app := range apps {
		if opts.Growth {
			base := float64(growthBaseMin + rng.IntN(growthBaseMax-growthBaseMin))
			for i := range days {
				cost := base*math.Pow(growthDailyRate, float64(i)) + float64(noise(rng, growthNoise))
				table.Rows = append(table.Rows, row(end, days, i, app, int(cost)))
			}
			continue
		}
		base := flatBaseMin + rng.IntN(flatBaseMax-flatBaseMin)
		for i := range days {
			table.Rows = append(table.Rows, row(end, days, i, app, max(base+noise(rng, flatNoise), 0)))
		}
	}
	return table, nil
}

// noise is uniform in [-n, n).
func noise(rng *rand.Rand, n int) int {
	return rng.IntN(2*n) - n
}

func row(end time.Time, days, i int, app string, cost int) []string {
	date := end.AddDate(0, 0, i-days)
	return []string{date.Format(time.DateOnly), app, strconv.Itoa(cost)}
}
