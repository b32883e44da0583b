package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rshade/costlens/internal/engine"
	"github.com/rshade/costlens/internal/forecast"
	"github.com/rshade/costlens/internal/identity"
	"github.com/rshade/costlens/internal/ingest"
	"github.com/rshade/costlens/internal/logging"
	"github.com/rshade/costlens/internal/source"
)

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error   string          `json:"error"`
	Missing []ingest.Column `json:"missing,omitempty"`
}

// SummaryResponse is the body of GET /api/v1/summary.
type SummaryResponse struct {
	Source string `json:"source"`
	*engine.Summary
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps pipeline and source errors onto HTTP statuses.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var schemaErr *ingest.SchemaError
	status := http.StatusInternalServerError
	resp := errorResponse{Error: err.Error()}
	switch {
	case errors.As(err, &schemaErr):
		status = http.StatusUnprocessableEntity
		resp.Missing = schemaErr.Missing
	case errors.Is(err, source.ErrUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, identity.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, errBadRequest),
		errors.Is(err, engine.ErrInvalidHorizon),
		errors.Is(err, engine.ErrInvalidThreshold),
		errors.Is(err, ingest.ErrUnknownFormat),
		errors.Is(err, ingest.ErrSheetNotFound):
		status = http.StatusBadRequest
	}

	log := logging.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		log.Error().Ctx(ctx).Err(err).Int("status", status).Msg("request failed")
	} else {
		log.Warn().Ctx(ctx).Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authenticate resolves the bearer credential. Without RequireAuth a
// missing or rejected credential falls through anonymously.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Identity == nil {
			next.ServeHTTP(w, r)
			return
		}
		token := bearerToken(r)
		p, err := s.opts.Identity.Identify(r.Context(), token)
		if err != nil {
			if s.opts.RequireAuth {
				writeError(r.Context(), w, err)
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.ContextWithPrincipal(r.Context(), p)))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

func principalName(ctx context.Context) string {
	if p, ok := identity.FromContext(ctx); ok {
		return p.String()
	}
	return ""
}

func (s *Server) audit(ctx context.Context, command string, start time.Time, params map[string]string, entities int, total float64, err error) {
	entry := logging.NewAuditEntry(command, logging.TraceIDFromContext(ctx)).
		WithParameters(params).
		WithPrincipal(principalName(ctx)).
		WithDuration(start)
	if err != nil {
		entry = entry.WithError(err.Error())
	} else {
		entry = entry.WithSuccess(entities, total)
	}
	s.opts.Audit.Log(ctx, *entry)
}

// pipelineFor applies horizon, threshold and model query overrides.
func (s *Server) pipelineFor(r *http.Request) (engine.Pipeline, error) {
	p := s.opts.Pipeline
	q := r.URL.Query()
	if v := q.Get("horizon"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, errors.Join(errBadRequest, engine.ErrInvalidHorizon, err)
		}
		p.HorizonDays = n
	}
	if v := q.Get("threshold"); v != "" {
		k, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, errors.Join(errBadRequest, engine.ErrInvalidThreshold, err)
		}
		p.AnomalyThreshold = k
	}
	if v := q.Get("model"); v != "" {
		fc, err := engine.NewForecaster(v, forecast.Options{})
		if err != nil {
			return p, errors.Join(errBadRequest, err)
		}
		fc.MinHistory = p.Forecaster.MinHistory
		p.Forecaster = fc
	}
	return p, nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	entity := r.URL.Query().Get("entity")
	params := map[string]string{
		"entity":    entity,
		"horizon":   r.URL.Query().Get("horizon"),
		"threshold": r.URL.Query().Get("threshold"),
	}

	a, err := s.analyze(w, r, entity)
	if err != nil {
		s.audit(ctx, "analyze", start, params, 0, 0, err)
		writeError(ctx, w, err)
		return
	}
	s.audit(ctx, "analyze", start, params, len(a.Ranking), rankingTotal(a.Ranking), nil)
	writeJSON(w, http.StatusOK, a)
}

func rankingTotal(ranking []engine.EntitySummary) float64 {
	var total float64
	for _, e := range ranking {
		total += e.TotalCost
	}
	return total
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request, entity string) (*engine.Analysis, error) {
	p, err := s.pipelineFor(r)
	if err != nil {
		return nil, err
	}
	format, err := ingest.FormatFromContentType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	raw, err := ingest.Read(r.Context(), body, ingest.ReadOptions{Format: format, Sheet: r.URL.Query().Get("sheet")})
	if err != nil {
		return nil, errors.Join(errBadRequest, err)
	}
	return p.AnalyzeRaw(r.Context(), raw, s.opts.NormalizeOptions, entity)
}

func parseDateParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, errors.Join(errBadRequest, err)
	}
	return t, nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	q := r.URL.Query()
	params := map[string]string{"from": q.Get("from"), "to": q.Get("to"), "scope": q.Get("scope"), "top": q.Get("top")}

	resp, err := s.summary(ctx, q.Get("scope"), q.Get("from"), q.Get("to"), q.Get("top"))
	if err != nil {
		s.audit(ctx, "summary", start, params, 0, 0, err)
		writeError(ctx, w, err)
		return
	}
	s.audit(ctx, "summary", start, params, resp.Entities, resp.TotalCost, nil)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) summary(ctx context.Context, scope, fromParam, toParam, topParam string) (*SummaryResponse, error) {
	if s.opts.Source == nil {
		return nil, &source.Error{Source: "none", Err: errors.New("no data source configured")}
	}
	from, err := parseDateParam(fromParam)
	if err != nil {
		return nil, err
	}
	to, err := parseDateParam(toParam)
	if err != nil {
		return nil, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, errors.Join(errBadRequest, errors.New("to is before from"))
	}
	top := s.opts.TopN
	if topParam != "" {
		if top, err = strconv.Atoi(topParam); err != nil || top < 0 {
			return nil, errors.Join(errBadRequest, errors.New("top must be a non-negative integer"))
		}
	}

	raw, err := s.opts.Source.Fetch(ctx, source.Query{Scope: scope, From: from, To: to})
	if err != nil {
		return nil, err
	}
	table, err := ingest.Normalize(ctx, raw, s.opts.NormalizeOptions)
	if err != nil {
		return nil, err
	}
	table = table.Between(from, to)

	sum, err := engine.Summarize(ctx, table, top)
	if err != nil {
		return nil, err
	}
	return &SummaryResponse{Source: s.opts.Source.Name(), Summary: sum}, nil
}

func (s *Server) handleCacheRefresh(w http.ResponseWriter, r *http.Request) {
	if s.opts.Cache == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"refreshed": false})
		return
	}
	if err := s.opts.Cache.Refresh(r.Context()); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	logging.FromContext(r.Context()).Info().Ctx(r.Context()).Msg("data-source cache refreshed")
	writeJSON(w, http.StatusOK, map[string]bool{"refreshed": true})
}
