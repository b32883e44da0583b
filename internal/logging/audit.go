package logging

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AuditEntry records one user-facing operation.
type AuditEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Command    string            `json:"command"`
	TraceID    string            `json:"trace_id"`
	Principal  string            `json:"principal,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Entities   int               `json:"entities"`
	TotalCost  float64           `json:"total_cost"`
	DurationMS int64             `json:"duration_ms"`
}

// NewAuditEntry starts an entry for command.
func NewAuditEntry(command, traceID string) *AuditEntry {
	return &AuditEntry{
		Timestamp: time.Now().UTC(),
		Command:   command,
		TraceID:   traceID,
	}
}

// WithParameters attaches request parameters.
func (e *AuditEntry) WithParameters(params map[string]string) *AuditEntry {
	e.Parameters = params
	return e
}

// WithPrincipal labels the entry with who asked.
func (e *AuditEntry) WithPrincipal(principal string) *AuditEntry {
	e.Principal = principal
	return e
}

// WithSuccess marks the entry successful.
func (e *AuditEntry) WithSuccess(entities int, totalCost float64) *AuditEntry {
	e.Success = true
	e.Entities = entities
	e.TotalCost = totalCost
	return e
}

// WithError marks the entry failed.
func (e *AuditEntry) WithError(msg string) *AuditEntry {
	e.Success = false
	e.Error = msg
	return e
}

// WithDuration records elapsed time since start.
func (e *AuditEntry) WithDuration(start time.Time) *AuditEntry {
	e.DurationMS = time.Since(start).Milliseconds()
	return e
}

// AuditLogger persists audit entries.
type AuditLogger interface {
	Log(ctx context.Context, entry AuditEntry)
	Close() error
}

// AuditLoggerConfig selects the audit destination.
type AuditLoggerConfig struct {
	Enabled bool
	File    string
}

type nopAuditLogger struct{}

func (nopAuditLogger) Log(context.Context, AuditEntry) {}
func (nopAuditLogger) Close() error                    { return nil }

type fileAuditLogger struct {
	mu     sync.Mutex
	file   *os.File
	logger zerolog.Logger
}

// NewAuditLogger returns a JSON-lines audit logger. Disabled or unusable
// configurations yield a no-op logger.
func NewAuditLogger(cfg AuditLoggerConfig) AuditLogger {
	if !cfg.Enabled || cfg.File == "" {
		return nopAuditLogger{}
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0700); err != nil {
		return nopAuditLogger{}
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nopAuditLogger{}
	}
	return &fileAuditLogger{file: f, logger: zerolog.New(f)}
}

func (a *fileAuditLogger) Log(_ context.Context, entry AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return
	}
	a.logger.Log().
		Time("timestamp", entry.Timestamp).
		Str("command", entry.Command).
		Str("trace_id", entry.TraceID).
		Str("principal", entry.Principal).
		Interface("parameters", entry.Parameters).
		Bool("success", entry.Success).
		Str("error", entry.Error).
		Int("entities", entry.Entities).
		Float64("total_cost", entry.TotalCost).
		Int64("duration_ms", entry.DurationMS).
		Msg("audit")
}

func (a *fileAuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

type auditLoggerKey struct{}

// ContextWithAuditLogger stores an audit logger in ctx.
func ContextWithAuditLogger(ctx context.Context, l AuditLogger) context.Context {
	return context.WithValue(ctx, auditLoggerKey{}, l)
}

// AuditLoggerFromContext returns the audit logger in ctx or a no-op.
func AuditLoggerFromContext(ctx context.Context) AuditLogger {
	if ctx != nil {
		if l, ok := ctx.Value(auditLoggerKey{}).(AuditLogger); ok && l != nil {
			return l
		}
	}
	return nopAuditLogger{}
}
