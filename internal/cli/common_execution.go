package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/costlens/internal/config"
	"github.com/rshade/costlens/internal/engine"
	"github.com/rshade/costlens/internal/engine/cache"
	"github.com/rshade/costlens/internal/forecast"
	"github.com/rshade/costlens/internal/identity"
	"github.com/rshade/costlens/internal/ingest"
	"github.com/rshade/costlens/internal/logging"
	"github.com/rshade/costlens/internal/source"
)

// Output formats accepted by --output.
const (
	outputTable = "table"
	outputJSON  = "json"
)

var errNoInput = errors.New("an input file is required (--file)")

// auditContext holds common context for audit logging within a command.
type auditContext struct {
	logger    logging.AuditLogger
	traceID   string
	principal string
	params    map[string]string
	start     time.Time
	command   string
}

// newAuditContext creates a new audit context.
func newAuditContext(ctx context.Context, command string, params map[string]string) *auditContext {
	return &auditContext{
		logger:    logging.AuditLoggerFromContext(ctx),
		traceID:   logging.TraceIDFromContext(ctx),
		principal: principalName(),
		params:    params,
		start:     time.Now(),
		command:   command,
	}
}

// logFailure logs an audit entry for a failed operation.
func (a *auditContext) logFailure(ctx context.Context, err error) {
	entry := logging.NewAuditEntry(a.command, a.traceID).
		WithPrincipal(a.principal).
		WithParameters(a.params).
		WithError(err.Error()).
		WithDuration(a.start)
	a.logger.Log(ctx, *entry)
}

// logSuccess logs an audit entry for a successful operation.
func (a *auditContext) logSuccess(ctx context.Context, entities int, cost float64) {
	entry := logging.NewAuditEntry(a.command, a.traceID).
		WithPrincipal(a.principal).
		WithParameters(a.params).
		WithSuccess(entities, cost).
		WithDuration(a.start)
	a.logger.Log(ctx, *entry)
}

// principalName labels local runs with the configured identity, falling
// back to the OS user.
func principalName() string {
	id := config.GetGlobalConfig().Identity
	return identity.NewStatic(id.Name, id.Email, "").Principal.String()
}

// inputFlags selects and reads a local cost export.
type inputFlags struct {
	file   string
	sheet  string
	format string
}

func (f *inputFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "cost export to read (.csv, .xlsx or .json)")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	cmd.Flags().StringVar(&f.format, "input-format", "", "input format override: csv, xlsx or json")
}

func (f *inputFlags) readOptions() (ingest.ReadOptions, error) {
	opts := ingest.ReadOptions{Sheet: f.sheet}
	if f.format != "" {
		format, err := ingest.ParseFormat(f.format)
		if err != nil {
			return opts, err
		}
		opts.Format = format
	}
	return opts, nil
}

// loadTable reads and normalizes the input file.
func loadTable(ctx context.Context, in inputFlags, audit *auditContext) (ingest.CanonicalTable, error) {
	log := logging.FromContext(ctx)
	if in.file == "" {
		audit.logFailure(ctx, errNoInput)
		return ingest.CanonicalTable{}, errNoInput
	}
	opts, err := in.readOptions()
	if err != nil {
		audit.logFailure(ctx, err)
		return ingest.CanonicalTable{}, err
	}

	raw, err := ingest.ReadFile(ctx, in.file, opts)
	if err != nil {
		log.Error().Ctx(ctx).Err(err).Str("file", in.file).Msg("failed to read cost export")
		audit.logFailure(ctx, err)
		return ingest.CanonicalTable{}, fmt.Errorf("reading %s: %w", in.file, err)
	}
	table, err := ingest.Normalize(ctx, raw, normalizeOptions(config.GetGlobalConfig()))
	if err != nil {
		audit.logFailure(ctx, err)
		return ingest.CanonicalTable{}, err
	}
	log.Debug().Ctx(ctx).Int("rows", table.Len()).Msg("cost export loaded")
	return table, nil
}

// normalizeOptions applies configured date layouts and column aliases.
func normalizeOptions(cfg *config.Config) ingest.Options {
	opts := ingest.DefaultOptions()
	if len(cfg.Analysis.DateLayouts) > 0 {
		opts.DateLayouts = cfg.Analysis.DateLayouts
	}
	if len(cfg.Analysis.Aliases) > 0 {
		opts = opts.WithAliases(cfg.Analysis.Aliases)
	}
	return opts
}

// analysisFlags override the analysis section of the config.
type analysisFlags struct {
	horizon   int
	threshold float64
	model     string
}

func (f *analysisFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.horizon, "horizon", 0, "forecast horizon in days (default from config)")
	cmd.Flags().Float64Var(&f.threshold, "threshold", 0, "anomaly z-score threshold (default from config)")
	cmd.Flags().StringVar(&f.model, "model", "",
		"forecast model: "+strings.Join(forecast.Names(), ", ")+" (default from config)")
}

// pipeline builds the analysis pipeline from config, with explicitly set
// flags taking precedence.
func (f *analysisFlags) pipeline(cmd *cobra.Command) (engine.Pipeline, error) {
	cfg := config.GetGlobalConfig().Analysis

	model := cfg.Model
	if cmd.Flags().Changed("model") {
		model = f.model
	}
	fc, err := engine.NewForecaster(model, forecast.Options{})
	if err != nil {
		return engine.Pipeline{}, err
	}
	if cfg.MinHistory > 0 {
		fc.MinHistory = cfg.MinHistory
	}

	p := engine.Pipeline{
		Forecaster:       fc,
		HorizonDays:      cfg.HorizonDays,
		AnomalyThreshold: cfg.AnomalyThreshold,
	}
	if cmd.Flags().Changed("horizon") {
		p.HorizonDays = f.horizon
	}
	if cmd.Flags().Changed("threshold") {
		p.AnomalyThreshold = f.threshold
	}
	return p, nil
}

// resolveOutput returns the --output value or the configured default.
func resolveOutput(flag string) (string, error) {
	out := flag
	if out == "" {
		out = config.GetDefaultOutputFormat()
	}
	switch out {
	case outputTable, outputJSON:
		return out, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", out)
	}
}

// parseDate parses a YYYY-MM-DD flag value; "" is the zero time.
func parseDate(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", name, err)
	}
	return t, nil
}

// openStore opens the configured cache backend.
func openStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	dir := ""
	if cfg.Cache.Backend == config.CacheBackendFile {
		d, err := config.GetCacheDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	return cache.Open(ctx, cache.Options{
		Backend:   cfg.Cache.Backend,
		TTL:       time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		Directory: dir,
		RedisAddr: cfg.Cache.RedisAddr,
	})
}

// closeFunc releases resources held by a source.
type closeFunc func() error

func noClose() error { return nil }

// buildSource returns the data source named by kind (or the configured
// kind), wrapped in the fetch cache when caching is enabled. A file path
// selects the file source directly and is never cached. The returned
// *source.Cached is nil when no cache is in use.
func buildSource(ctx context.Context, kind, file string) (source.Source, *source.Cached, closeFunc, error) {
	cfg := config.GetGlobalConfig()
	if file != "" {
		return source.NewFile(file, ingest.ReadOptions{}), nil, noClose, nil
	}
	if kind == "" {
		kind = cfg.Source.Kind
	}

	var (
		src    source.Source
		closer closeFunc = noClose
	)
	switch kind {
	case config.SourceKindFile, "":
		if cfg.Source.File.Path == "" {
			return nil, nil, noClose, errNoInput
		}
		return source.NewFile(cfg.Source.File.Path, ingest.ReadOptions{Sheet: cfg.Source.File.Sheet}), nil, noClose, nil
	case config.SourceKindAzure:
		src = source.NewAzure(source.AzureOptions{
			SubscriptionID: cfg.Source.Azure.SubscriptionID,
			Endpoint:       cfg.Source.Azure.Endpoint,
			RequestsPerSec: cfg.Source.Azure.RequestsPerSec,
		})
	case config.SourceKindS3:
		s3src, err := source.NewS3(ctx, source.S3Options{
			Bucket:   cfg.Source.S3.Bucket,
			Key:      cfg.Source.S3.Key,
			Region:   cfg.Source.S3.Region,
			Endpoint: cfg.Source.S3.Endpoint,
		})
		if err != nil {
			return nil, nil, noClose, err
		}
		src = s3src
	case config.SourceKindSQLite:
		db, err := source.OpenSQLite(cfg.Source.SQLite.Path, cfg.Source.SQLite.Query)
		if err != nil {
			return nil, nil, noClose, err
		}
		src, closer = db, db.Close
	default:
		return nil, nil, noClose, fmt.Errorf("%w: %q", config.ErrInvalidSourceKind, kind)
	}

	if !cfg.Cache.Enabled {
		return src, nil, closer, nil
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		// Fetch uncached when the store cannot be opened.
		logging.FromContext(ctx).Warn().Ctx(ctx).Err(err).
			Str("backend", cfg.Cache.Backend).
			Msg("cache unavailable, fetching without it")
		return src, nil, closer, nil
	}
	if c, ok := store.(io.Closer); ok {
		srcClose := closer
		closer = func() error { return errors.Join(srcClose(), c.Close()) }
	}
	cached := source.NewCached(src, store)
	return cached, cached, closer, nil
}
