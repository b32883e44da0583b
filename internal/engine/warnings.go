package engine

import (
	"fmt"

	"github.com/rshade/costlens/internal/ingest"
)

// WarningKind classifies non-fatal conditions.
type WarningKind string

// Warning kinds.
const (
	WarnParse               WarningKind = "parse"
	WarnEmptySeries         WarningKind = "empty_series"
	WarnInsufficientHistory WarningKind = "insufficient_history"
	WarnUndefinedMetric     WarningKind = "undefined_metric"
)

// Warning is a non-fatal condition surfaced to the caller.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Entity  string      `json:"entity,omitempty"`
	Count   int         `json:"count,omitempty"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return w.Message
}

// ParseWarnings converts a drop report into one warning per non-zero reason.
func ParseWarnings(d ingest.DropReport) []Warning {
	reasons := []struct {
		count int
		what  string
	}{
		{d.BadTimestamp, "unparseable or missing timestamp"},
		{d.BadCost, "non-numeric or missing cost"},
		{d.EmptyEntity, "empty entity"},
		{d.NegativeCost, "negative cost"},
	}

	var out []Warning
	for _, r := range reasons {
		if r.count == 0 {
			continue
		}
		out = append(out, Warning{
			Kind:    WarnParse,
			Count:   r.count,
			Message: fmt.Sprintf("%d row(s) dropped: %s", r.count, r.what),
		})
	}
	if d.MergedDuplicates > 0 {
		out = append(out, Warning{
			Kind:    WarnParse,
			Count:   d.MergedDuplicates,
			Message: fmt.Sprintf("%d duplicate (entity, date) row(s) summed", d.MergedDuplicates),
		})
	}
	return out
}

func emptySeriesWarning(entity string) Warning {
	return Warning{
		Kind:    WarnEmptySeries,
		Entity:  entity,
		Message: fmt.Sprintf("no observations for %q", entity),
	}
}

func insufficientHistoryWarning(entity string, have, need int) Warning {
	return Warning{
		Kind:    WarnInsufficientHistory,
		Entity:  entity,
		Count:   have,
		Message: fmt.Sprintf("%q has %d observation(s), %d needed to forecast; using historical mean", entity, have, need),
	}
}

func undefinedMetricWarning(entity, metric string) Warning {
	return Warning{
		Kind:    WarnUndefinedMetric,
		Entity:  entity,
		Message: fmt.Sprintf("%s is undefined", metric),
	}
}
