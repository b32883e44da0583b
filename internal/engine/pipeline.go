package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rshade/costlens/internal/ingest"
	"github.com/rshade/costlens/internal/logging"
	"github.com/rshade/costlens/internal/metrics"
)

// Pipeline runs the full analysis for a request.
type Pipeline struct {
	Forecaster       Forecaster
	AnomalyThreshold float64
	HorizonDays      int
}

// DefaultPipeline returns a pipeline with the linear model and default
// parameters.
func DefaultPipeline() Pipeline {
	return Pipeline{
		Forecaster:       Forecaster{MinHistory: MinHistory},
		AnomalyThreshold: DefaultAnomalyThreshold,
		HorizonDays:      DefaultHorizonDays,
	}
}

func (p Pipeline) validate() error {
	if p.HorizonDays <= 0 || p.HorizonDays > MaxHorizonDays {
		return fmt.Errorf("%w: %d", ErrInvalidHorizon, p.HorizonDays)
	}
	if p.AnomalyThreshold <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, p.AnomalyThreshold)
	}
	return nil
}

// Analyze ranks every entity in table and analyzes the selected entity.
// An entity with no observations yields NoData with an EmptySeries warning
// rather than an error.
func (p Pipeline) Analyze(ctx context.Context, table ingest.CanonicalTable, entity string) (*Analysis, error) {
	start := time.Now()
	if err := p.validate(); err != nil {
		metrics.ObserveAnalysis(metrics.StatusError, time.Since(start))
		return nil, err
	}

	summaries, aggWarnings, err := Aggregate(ctx, table)
	if err != nil {
		metrics.ObserveAnalysis(metrics.StatusError, time.Since(start))
		return nil, err
	}
	ranking := Rank(summaries)

	a, err := p.analyzeEntity(ctx, table, entity)
	if err != nil {
		metrics.ObserveAnalysis(metrics.StatusError, time.Since(start))
		return nil, err
	}
	a.Ranking = ranking
	a.Dropped = table.Dropped
	a.Warnings = append(append(ParseWarnings(table.Dropped), aggWarnings...), a.Warnings...)

	status := metrics.StatusOK
	if a.NoData {
		status = metrics.StatusNoData
	}
	metrics.ObserveAnalysis(status, time.Since(start))
	return a, nil
}

// AnalyzeAll analyzes every entity concurrently and returns the results in
// ranking order. The ranking is computed once and shared by every result.
func (p Pipeline) AnalyzeAll(ctx context.Context, table ingest.CanonicalTable) ([]*Analysis, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	summaries, aggWarnings, err := Aggregate(ctx, table)
	if err != nil {
		return nil, err
	}
	ranking := Rank(summaries)
	common := append(ParseWarnings(table.Dropped), aggWarnings...)

	results := make([]*Analysis, len(ranking))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, s := range ranking {
		entity := s.Entity
		g.Go(func() error {
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			start := time.Now()
			a, aErr := p.analyzeEntity(gctx, table, entity)
			if aErr != nil {
				metrics.ObserveAnalysis(metrics.StatusError, time.Since(start))
				return fmt.Errorf("analyzing %q: %w", entity, aErr)
			}
			a.Ranking = ranking
			a.Dropped = table.Dropped
			a.Warnings = append(append([]Warning(nil), common...), a.Warnings...)
			results[i] = a
			metrics.ObserveAnalysis(metrics.StatusOK, time.Since(start))
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// AnalyzeRaw normalizes raw and analyzes entity. A schema error aborts.
// An empty entity selects the top-ranked entity.
func (p Pipeline) AnalyzeRaw(ctx context.Context, raw ingest.RawTable, opts ingest.Options, entity string) (*Analysis, error) {
	table, err := ingest.Normalize(ctx, raw, opts)
	if err != nil {
		metrics.ObserveAnalysis(metrics.StatusError, 0)
		return nil, err
	}
	if entity == "" {
		entity = DefaultEntity(ctx, table)
	}
	return p.Analyze(ctx, table, entity)
}

// DefaultEntity returns the highest-spend entity, or "" for an empty table.
func DefaultEntity(ctx context.Context, table ingest.CanonicalTable) string {
	summaries, _, err := Aggregate(ctx, table)
	if err != nil || len(summaries) == 0 {
		return ""
	}
	return Rank(summaries)[0].Entity
}

// analyzeEntity runs extraction, forecast, anomalies, efficiency, advice and
// stats for one entity. Ranking, drops and table-level warnings are filled
// in by the caller.
func (p Pipeline) analyzeEntity(ctx context.Context, table ingest.CanonicalTable, entity string) (*Analysis, error) {
	logger := logging.FromContext(ctx).With().
		Str("component", "engine").
		Str("operation", "Analyze").
		Str("entity", entity).
		Logger()

	a := &Analysis{Entity: entity, Anomalies: []AnomalyFlag{}}

	series, err := ExtractSeries(table, entity)
	if errors.Is(err, ErrEmptySeries) {
		logger.Warn().Ctx(ctx).Msg("selected entity has no observations")
		a.NoData = true
		a.Series = series
		a.Advice = AdviceNoData
		a.Efficiency = EfficiencyIndex{Entity: entity}
		a.Warnings = append(a.Warnings,
			emptySeriesWarning(entity),
			undefinedMetricWarning(entity, "efficiency index (no data)"))
		return a, nil
	}
	if err != nil {
		return nil, err
	}
	a.Series = series

	fc, err := p.Forecaster.Forecast(ctx, series, p.HorizonDays)
	if err != nil {
		return nil, err
	}
	a.Forecast = &fc
	if fc.Fallback {
		a.Warnings = append(a.Warnings, insufficientHistoryWarning(entity, series.Len(), p.Forecaster.minHistory()))
	}

	a.Anomalies, err = DetectAnomalies(series, p.AnomalyThreshold)
	if err != nil {
		return nil, err
	}

	hist := series.Mean()
	a.Efficiency = ScoreEfficiency(entity, hist, fc.HorizonMean)
	if !a.Efficiency.Value.Defined {
		a.Warnings = append(a.Warnings, undefinedMetricWarning(entity, "efficiency index (forecast mean is not positive)"))
	}
	a.Advice = Advise(hist, fc.HorizonMean)

	st, err := Describe(series)
	if err != nil {
		return nil, err
	}
	a.Stats = &st

	logger.Debug().Ctx(ctx).
		Int("observations", series.Len()).
		Int("anomalies", a.AnomalyCount()).
		Str("efficiency", a.Efficiency.Value.String()).
		Str("advice", string(a.Advice)).
		Msg("entity analyzed")
	return a, nil
}
