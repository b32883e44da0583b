package engine

import (
	"fmt"
	"sort"

	"github.com/rshade/costlens/internal/ingest"
)

// ExtractSeries returns entity's observations sorted by date. Matching is
// exact and case-sensitive. ErrEmptySeries is returned when nothing matches.
func ExtractSeries(table ingest.CanonicalTable, entity string) (CostSeries, error) {
	var obs []ingest.CostObservation
	for _, r := range table.Rows {
		if r.Entity == entity {
			obs = append(obs, r)
		}
	}
	if len(obs) == 0 {
		return CostSeries{Entity: entity}, fmt.Errorf("%w: %q", ErrEmptySeries, entity)
	}
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })
	return CostSeries{Entity: entity, Observations: obs}, nil
}

// Entities lists the distinct entities in the table, sorted.
func Entities(table ingest.CanonicalTable) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range table.Rows {
		if _, ok := seen[r.Entity]; ok {
			continue
		}
		seen[r.Entity] = struct{}{}
		out = append(out, r.Entity)
	}
	sort.Strings(out)
	return out
}

// groupByEntity splits the table into per-entity series, each sorted by
// date, keyed by entity.
func groupByEntity(table ingest.CanonicalTable) map[string][]ingest.CostObservation {
	groups := make(map[string][]ingest.CostObservation)
	for _, r := range table.Rows {
		groups[r.Entity] = append(groups[r.Entity], r)
	}
	for _, obs := range groups {
		sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })
	}
	return groups
}
