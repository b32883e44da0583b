package engine

import (
	"context"

	"github.com/rshade/costlens/internal/ingest"
)

// Summary is the cross-entity view of a table.
type Summary struct {
	TotalCost float64           `json:"total_cost"`
	Entities  int               `json:"entities"`
	Ranking   []EntitySummary   `json:"ranking"`
	Warnings  []Warning         `json:"warnings,omitempty"`
	Dropped   ingest.DropReport `json:"dropped"`
}

// Summarize aggregates and ranks table, keeping the first topN entries.
// Entities counts every entity, not only those kept.
func Summarize(ctx context.Context, table ingest.CanonicalTable, topN int) (*Summary, error) {
	summaries, warnings, err := Aggregate(ctx, table)
	if err != nil {
		return nil, err
	}
	ranking := Rank(summaries)
	return &Summary{
		TotalCost: table.TotalCost(),
		Entities:  len(ranking),
		Ranking:   TopN(ranking, topN),
		Warnings:  append(ParseWarnings(table.Dropped), warnings...),
		Dropped:   table.Dropped,
	}, nil
}
