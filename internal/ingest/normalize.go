package ingest

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rshade/costlens/internal/logging"
	"github.com/rshade/costlens/internal/metrics"
)

// DefaultAliases maps the column names seen in Azure exports and the
// dashboard upload template onto canonical columns.
//
//nolint:gochecknoglobals // Read-only lookup table.
var DefaultAliases = map[string]Column{
	"date":              ColumnTimestamp,
	"timestamp":         ColumnTimestamp,
	"usagedate":         ColumnTimestamp,
	"application":       ColumnEntity,
	"appname":           ColumnEntity,
	"resourcegroupname": ColumnEntity,
	"resourcegroup":     ColumnEntity,
	"entity":            ColumnEntity,
	"cost":              ColumnCost,
	"pretaxcost":        ColumnCost,
}

// DefaultDateLayouts are tried in order. Ambiguous dashed or slashed dates
// are read day-first; month-first dates are not accepted.
//
//nolint:gochecknoglobals // Read-only lookup table.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	"20060102",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Options controls Normalize.
type Options struct {
	// Aliases maps lower-cased source column names to canonical columns.
	// Nil means DefaultAliases.
	Aliases map[string]Column
	// DateLayouts are time.Parse layouts tried in order. Nil means
	// DefaultDateLayouts.
	DateLayouts []string
}

// DefaultOptions returns Options using the default aliases and layouts.
func DefaultOptions() Options {
	return Options{Aliases: DefaultAliases, DateLayouts: DefaultDateLayouts}
}

// WithAliases returns a copy of o whose alias table is the default table
// extended by extra. Keys and values are normalized.
func (o Options) WithAliases(extra map[string]string) Options {
	merged := make(map[string]Column, len(DefaultAliases)+len(extra))
	for k, v := range o.aliases() {
		merged[normalizeName(k)] = v
	}
	for k, v := range extra {
		merged[normalizeName(k)] = Column(normalizeName(v))
	}
	o.Aliases = merged
	return o
}

func (o Options) aliases() map[string]Column {
	if o.Aliases == nil {
		return DefaultAliases
	}
	return o.Aliases
}

func (o Options) layouts() []string {
	if len(o.DateLayouts) == 0 {
		return DefaultDateLayouts
	}
	return o.DateLayouts
}

type obsKey struct {
	date   time.Time
	entity string
}

// Normalize maps raw columns onto the canonical schema and parses every row.
// A missing canonical column is fatal (*SchemaError). Malformed rows are
// dropped and counted; rows sharing an (entity, date) are summed.
func Normalize(ctx context.Context, raw RawTable, opts Options) (CanonicalTable, error) {
	log := logging.FromContext(ctx)

	idx, err := resolveColumns(raw.Columns, opts.aliases())
	if err != nil {
		log.Warn().
			Str("component", "ingest").
			Str("operation", "normalize").
			Err(err).
			Strs("columns", raw.Columns).
			Msg("input table does not match the cost schema")
		return CanonicalTable{}, err
	}

	layouts := opts.layouts()
	var report DropReport
	sums := make(map[obsKey]float64, len(raw.Rows))
	order := make([]obsKey, 0, len(raw.Rows))

	for _, row := range raw.Rows {
		date, ok := parseDate(cell(row, idx[ColumnTimestamp]), layouts)
		if !ok {
			report.BadTimestamp++
			continue
		}
		entity := strings.TrimSpace(cell(row, idx[ColumnEntity]))
		if entity == "" {
			report.EmptyEntity++
			continue
		}
		cost, ok := parseCost(cell(row, idx[ColumnCost]))
		if !ok {
			report.BadCost++
			continue
		}
		if cost < 0 {
			report.NegativeCost++
			continue
		}

		key := obsKey{date: date, entity: entity}
		if _, seen := sums[key]; seen {
			report.MergedDuplicates++
		} else {
			order = append(order, key)
		}
		sums[key] += cost
	}

	rows := make([]CostObservation, len(order))
	for i, key := range order {
		rows[i] = CostObservation{Date: key.date, Entity: key.entity, Cost: sums[key]}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].Entity < rows[j].Entity
	})

	recordDrops(report)
	if report.Any() {
		log.Warn().
			Str("component", "ingest").
			Str("operation", "normalize").
			Int("input_rows", len(raw.Rows)).
			Int("output_rows", len(rows)).
			Int("bad_timestamp", report.BadTimestamp).
			Int("bad_cost", report.BadCost).
			Int("empty_entity", report.EmptyEntity).
			Int("negative_cost", report.NegativeCost).
			Int("merged_duplicates", report.MergedDuplicates).
			Msg("rows dropped or merged during normalization")
	} else {
		log.Debug().
			Str("component", "ingest").
			Str("operation", "normalize").
			Int("rows", len(rows)).
			Msg("normalized cost table")
	}

	return CanonicalTable{Rows: rows, Dropped: report}, nil
}

// resolveColumns returns the index of each canonical column. The leftmost
// source column wins when several map to the same canonical column.
func resolveColumns(columns []string, aliases map[string]Column) (map[Column]int, error) {
	idx := make(map[Column]int, len(CanonicalColumns))
	for i, name := range columns {
		canon, ok := aliases[normalizeName(name)]
		if !ok {
			continue
		}
		if _, taken := idx[canon]; !taken {
			idx[canon] = i
		}
	}

	var missing []Column
	for _, c := range CanonicalColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}
	return idx, nil
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func parseDate(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		// The calendar day is taken in the timestamp's own offset.
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func parseCost(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func recordDrops(d DropReport) {
	metrics.RecordRowsDropped("bad_timestamp", d.BadTimestamp)
	metrics.RecordRowsDropped("bad_cost", d.BadCost)
	metrics.RecordRowsDropped("empty_entity", d.EmptyEntity)
	metrics.RecordRowsDropped("negative_cost", d.NegativeCost)
	metrics.RecordRowsDropped("merged_duplicate", d.MergedDuplicates)
}
