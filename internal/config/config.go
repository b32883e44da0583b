// Package config loads and validates costlens configuration.
//
// Configuration lives in ~/.costlens/config.yaml (or $COSTLENS_HOME/config.yaml)
// and is layered: built-in defaults, then the YAML file, then COSTLENS_*
// environment overrides, then CLI flags applied by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults mirrored by the engine package. They are duplicated here so that
// config stays a leaf package.
const (
	DefaultHorizonDays      = 30
	MaxHorizonDays          = 3650
	DefaultAnomalyThreshold = 2.0
	DefaultMinHistory       = 6
	DefaultModel            = "linear"
	DefaultTopN             = 15
	DefaultTTLSeconds       = 3600
	DefaultServerAddr       = ":8080"
	configFileName          = "config.yaml"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendFile   = "file"
	CacheBackendRedis  = "redis"
)

// Source kinds.
const (
	SourceKindFile   = "file"
	SourceKindAzure  = "azure"
	SourceKindS3     = "s3"
	SourceKindSQLite = "sqlite"
)

// Identity kinds.
const (
	IdentityKindStatic = "static"
	IdentityKindOIDC   = "oidc"
)

const outputTypeFile = "file"

// Validation errors.
var (
	ErrInvalidHorizon    = errors.New("analysis.horizon_days must be between 1 and 3650")
	ErrInvalidThreshold  = errors.New("analysis.anomaly_threshold must be positive")
	ErrInvalidMinHistory = errors.New("analysis.min_history must be at least 2")
	ErrInvalidBackend    = errors.New("unknown cache backend")
	ErrInvalidSourceKind = errors.New("unknown source kind")
	ErrInvalidIdentity   = errors.New("unknown identity kind")
)

// Config is the root costlens configuration.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis" json:"analysis"`
	Output   OutputConfig   `yaml:"output" json:"output"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Cache    CacheConfig    `yaml:"cache" json:"cache"`
	Source   SourceConfig   `yaml:"source" json:"source"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Identity IdentityConfig `yaml:"identity" json:"identity"`

	path string
}

// AnalysisConfig holds pipeline parameters.
type AnalysisConfig struct {
	HorizonDays      int     `yaml:"horizon_days" json:"horizon_days"`
	AnomalyThreshold float64 `yaml:"anomaly_threshold" json:"anomaly_threshold"`
	MinHistory       int     `yaml:"min_history" json:"min_history"`
	// Model selects the forecasting model: "linear" or "holt".
	Model       string            `yaml:"model" json:"model"`
	TopN        int               `yaml:"top_n" json:"top_n"`
	DateLayouts []string          `yaml:"date_layouts,omitempty" json:"date_layouts,omitempty"`
	Aliases     map[string]string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// OutputConfig controls CLI rendering.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format" json:"default_format"`
	Precision     int    `yaml:"precision" json:"precision"`
}

// LoggingConfig controls the zerolog logger.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	File       string `yaml:"file,omitempty" json:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" json:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty" json:"max_backups,omitempty"`
	AuditFile  string `yaml:"audit_file,omitempty" json:"audit_file,omitempty"`
}

// CacheConfig controls the data-source fetch cache.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Backend    string `yaml:"backend" json:"backend"`
	TTLSeconds int    `yaml:"ttl_seconds" json:"ttl_seconds"`
	Directory  string `yaml:"directory,omitempty" json:"directory,omitempty"`
	RedisAddr  string `yaml:"redis_addr,omitempty" json:"redis_addr,omitempty"`
}

// SourceConfig selects and configures the cost data source.
type SourceConfig struct {
	Kind   string       `yaml:"kind" json:"kind"`
	File   FileSource   `yaml:"file,omitempty" json:"file,omitempty"`
	Azure  AzureSource  `yaml:"azure,omitempty" json:"azure,omitempty"`
	S3     S3Source     `yaml:"s3,omitempty" json:"s3,omitempty"`
	SQLite SQLiteSource `yaml:"sqlite,omitempty" json:"sqlite,omitempty"`
}

// FileSource reads a local cost export.
type FileSource struct {
	Path  string `yaml:"path" json:"path"`
	Sheet string `yaml:"sheet,omitempty" json:"sheet,omitempty"`
}

// AzureSource queries the Azure Cost Management API.
type AzureSource struct {
	SubscriptionID string  `yaml:"subscription_id" json:"subscription_id"`
	Endpoint       string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	RequestsPerSec float64 `yaml:"requests_per_second,omitempty" json:"requests_per_second,omitempty"`
}

// S3Source downloads a cost export object.
type S3Source struct {
	Bucket   string `yaml:"bucket" json:"bucket"`
	Key      string `yaml:"key" json:"key"`
	Region   string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
}

// SQLiteSource queries a local SQLite database.
type SQLiteSource struct {
	Path  string `yaml:"path" json:"path"`
	Query string `yaml:"query,omitempty" json:"query,omitempty"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr        string `yaml:"addr" json:"addr"`
	RequireAuth bool   `yaml:"require_auth" json:"require_auth"`
}

// IdentityConfig selects how callers are identified.
type IdentityConfig struct {
	Kind     string `yaml:"kind" json:"kind"`
	Issuer   string `yaml:"issuer,omitempty" json:"issuer,omitempty"`
	ClientID string `yaml:"client_id,omitempty" json:"client_id,omitempty"`
	Name     string `yaml:"name,omitempty" json:"name,omitempty"`
	Email    string `yaml:"email,omitempty" json:"email,omitempty"`
	// Token, when set, is the bearer token the static provider accepts.
	Token string `yaml:"token,omitempty" json:"-"`
}

// New returns the defaults overlaid with the config file (when present) and
// environment overrides. A malformed file is ignored in favor of defaults;
// use Load to surface the error.
func New() *Config {
	cfg := Default()
	if path, err := DefaultPath(); err == nil {
		cfg.path = path
		if _, statErr := os.Stat(path); statErr == nil {
			_ = ShallowMergeYAML(cfg, path)
		}
	}
	cfg.applyEnv()
	return cfg
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			HorizonDays:      DefaultHorizonDays,
			AnomalyThreshold: DefaultAnomalyThreshold,
			MinHistory:       DefaultMinHistory,
			Model:            DefaultModel,
			TopN:             DefaultTopN,
		},
		Output: OutputConfig{
			DefaultFormat: "table",
			Precision:     2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Cache: CacheConfig{
			Enabled:    true,
			Backend:    CacheBackendMemory,
			TTLSeconds: DefaultTTLSeconds,
		},
		Source: SourceConfig{
			Kind: SourceKindFile,
		},
		Server: ServerConfig{
			Addr: DefaultServerAddr,
		},
		Identity: IdentityConfig{
			Kind: IdentityKindStatic,
		},
	}
}

// Load reads path onto the defaults and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path
	if err := ShallowMergeYAML(cfg, path); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultPath returns the config file location.
func DefaultPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Path returns the file this config was loaded from, if any.
func (c *Config) Path() string {
	return c.path
}

// Save writes the config as YAML to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err = os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err = os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	c.path = path
	return nil
}

// Validate checks values that the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Analysis.HorizonDays <= 0 || c.Analysis.HorizonDays > MaxHorizonDays {
		errs = append(errs, ErrInvalidHorizon)
	}
	if c.Analysis.AnomalyThreshold <= 0 {
		errs = append(errs, ErrInvalidThreshold)
	}
	if c.Analysis.MinHistory < 2 {
		errs = append(errs, ErrInvalidMinHistory)
	}
	switch c.Cache.Backend {
	case "", CacheBackendMemory, CacheBackendFile, CacheBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidBackend, c.Cache.Backend))
	}
	switch c.Source.Kind {
	case "", SourceKindFile, SourceKindAzure, SourceKindS3, SourceKindSQLite:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidSourceKind, c.Source.Kind))
	}
	switch c.Identity.Kind {
	case "", IdentityKindStatic, IdentityKindOIDC:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidIdentity, c.Identity.Kind))
	}
	return errors.Join(errs...)
}

// applyEnv applies COSTLENS_* overrides. Unparseable numeric values are
// ignored.
func (c *Config) applyEnv() {
	if v := os.Getenv("COSTLENS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("COSTLENS_API_TOKEN"); v != "" {
		c.Identity.Token = v
	}
	if v := os.Getenv("COSTLENS_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("COSTLENS_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("COSTLENS_OUTPUT_FORMAT"); v != "" {
		c.Output.DefaultFormat = v
	}
	if v := os.Getenv("COSTLENS_MODEL"); v != "" {
		c.Analysis.Model = strings.ToLower(v)
	}
	if v := os.Getenv("COSTLENS_HORIZON_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Analysis.HorizonDays = n
		}
	}
	if v := os.Getenv("COSTLENS_ANOMALY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Analysis.AnomalyThreshold = f
		}
	}
	if v := os.Getenv("COSTLENS_CACHE_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.TTLSeconds = n
		}
	}
	if v := os.Getenv("COSTLENS_CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("COSTLENS_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("COSTLENS_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
}
