package engine

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rshade/costlens/internal/ingest"
	"github.com/rshade/costlens/internal/logging"
)

// Aggregate summarizes every entity in the table: total, min, max, mean,
// observation count, cost share and trend. Results are in entity-name order;
// use Rank to order by spend.
//
// When the grand total is zero every share is undefined and an
// UndefinedMetric warning is returned.
func Aggregate(ctx context.Context, table ingest.CanonicalTable) ([]EntitySummary, []Warning, error) {
	logger := logging.FromContext(ctx).With().
		Str("component", "engine").
		Str("operation", "Aggregate").
		Logger()

	groups := groupByEntity(table)
	entities := make([]string, 0, len(groups))
	for e := range groups {
		entities = append(entities, e)
	}
	sort.Strings(entities)

	summaries := make([]EntitySummary, len(entities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, entity := range entities {
		obs := groups[entity]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			summaries[i] = summarize(entity, obs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var grand float64
	for _, s := range summaries {
		grand += s.TotalCost
	}

	var warnings []Warning
	if grand > 0 {
		for i := range summaries {
			summaries[i].CostShare = Defined(Round2(PercentageMultiplier * summaries[i].TotalCost / grand))
		}
	} else if len(summaries) > 0 {
		warnings = append(warnings, undefinedMetricWarning("", "cost share (total spend is zero)"))
	}

	logger.Debug().
		Int("entities", len(summaries)).
		Float64("grand_total", grand).
		Msg("aggregated entities")
	return summaries, warnings, nil
}

// summarize reduces one entity's chronologically sorted observations.
func summarize(entity string, obs []ingest.CostObservation) EntitySummary {
	s := EntitySummary{Entity: entity, Observations: len(obs), Trend: TrendFalling}
	if len(obs) == 0 {
		return s
	}
	s.MinCost = obs[0].Cost
	s.MaxCost = obs[0].Cost
	for _, o := range obs {
		s.TotalCost += o.Cost
		if o.Cost < s.MinCost {
			s.MinCost = o.Cost
		}
		if o.Cost > s.MaxCost {
			s.MaxCost = o.Cost
		}
	}
	s.MeanCost = s.TotalCost / float64(len(obs))
	s.Trend = trendOf(obs[0].Cost, obs[len(obs)-1].Cost)
	return s
}

// trendOf labels equal first and last costs as Falling.
func trendOf(first, last float64) TrendLabel {
	if last > first {
		return TrendRising
	}
	return TrendFalling
}

// Rank returns a copy of summaries ordered by total cost descending, ties
// broken by entity name.
func Rank(summaries []EntitySummary) []EntitySummary {
	out := make([]EntitySummary, len(summaries))
	copy(out, summaries)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalCost != out[j].TotalCost {
			return out[i].TotalCost > out[j].TotalCost
		}
		return out[i].Entity < out[j].Entity
	})
	return out
}

// TopN returns the first n entries of a ranking. n <= 0 returns all.
func TopN(ranking []EntitySummary, n int) []EntitySummary {
	if n <= 0 || n >= len(ranking) {
		return ranking
	}
	return ranking[:n]
}
