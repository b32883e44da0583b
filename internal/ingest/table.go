// Package ingest turns uploaded or fetched cost exports into a canonical
// table of daily cost observations.
//
// Reading (CSV, XLSX, JSON) produces a RawTable of strings. Normalize maps
// vendor column names onto the canonical timestamp/entity/cost columns,
// parses values, drops malformed rows and merges duplicate (entity, date)
// rows. Dropped rows are never silent: they are counted in DropReport.
package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Column is a canonical column name.
type Column string

// Canonical columns, in the order they are reported.
const (
	ColumnTimestamp Column = "timestamp"
	ColumnEntity    Column = "entity"
	ColumnCost      Column = "cost"
)

// CanonicalColumns lists the required columns in canonical order.
//
//nolint:gochecknoglobals // Read-only lookup table.
var CanonicalColumns = []Column{ColumnTimestamp, ColumnEntity, ColumnCost}

// ErrSchema is matched by every *SchemaError.
var ErrSchema = errors.New("schema error")

// SchemaError reports canonical columns that could not be found.
type SchemaError struct {
	Missing []Column
}

func (e *SchemaError) Error() string {
	names := make([]string, len(e.Missing))
	for i, c := range e.Missing {
		names[i] = string(c)
	}
	return fmt.Sprintf("missing required columns: %s", strings.Join(names, ", "))
}

// Is lets errors.Is(err, ErrSchema) match.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// RawTable is an untyped table as read from a file or API.
type RawTable struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Len returns the number of data rows.
func (t RawTable) Len() int {
	return len(t.Rows)
}

// CostObservation is one day of spend for one entity.
type CostObservation struct {
	Date   time.Time `json:"date"`
	Entity string    `json:"entity"`
	Cost   float64   `json:"cost"`
}

// DropReport counts rows that did not survive normalization.
type DropReport struct {
	BadTimestamp     int `json:"bad_timestamp"`
	BadCost          int `json:"bad_cost"`
	EmptyEntity      int `json:"empty_entity"`
	NegativeCost     int `json:"negative_cost"`
	MergedDuplicates int `json:"merged_duplicates"`
}

// Dropped returns the number of discarded rows. Merged duplicates are not
// discarded and are not included.
func (d DropReport) Dropped() int {
	return d.BadTimestamp + d.BadCost + d.EmptyEntity + d.NegativeCost
}

// Any reports whether any row was dropped or merged.
func (d DropReport) Any() bool {
	return d.Dropped() > 0 || d.MergedDuplicates > 0
}

// CanonicalTable is the normalized cost table, sorted by (date, entity).
type CanonicalTable struct {
	Rows    []CostObservation `json:"rows"`
	Dropped DropReport        `json:"dropped"`
}

// Len returns the number of observations.
func (t CanonicalTable) Len() int {
	return len(t.Rows)
}

// TotalCost sums every observation.
func (t CanonicalTable) TotalCost() float64 {
	var total float64
	for _, r := range t.Rows {
		total += r.Cost
	}
	return total
}

// Between returns the observations dated within [from, to]. A zero bound is
// open. The drop report is carried over unchanged.
func (t CanonicalTable) Between(from, to time.Time) CanonicalTable {
	if from.IsZero() && to.IsZero() {
		return t
	}
	out := CanonicalTable{Dropped: t.Dropped}
	for _, r := range t.Rows {
		if !from.IsZero() && r.Date.Before(from) {
			continue
		}
		if !to.IsZero() && r.Date.After(to) {
			continue
		}
		out.Rows = append(out.Rows, r)
	}
	return out
}
