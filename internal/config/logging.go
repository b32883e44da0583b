package config

import (
	"github.com/rshade/costlens/internal/logging"
)

// ToLoggingConfig converts LoggingConfig to logging.Config.
//
//   - Level and Format are copied directly
//   - If File is set, Output becomes "file" and File is passed through
//   - If File is empty, Output defaults to "stderr"
func (lc *LoggingConfig) ToLoggingConfig() logging.Config {
	output := logging.OutputStderr
	if lc.File != "" {
		output = outputTypeFile
	}

	return logging.Config{
		Level:      lc.Level,
		Format:     lc.Format,
		Output:     output,
		File:       lc.File,
		MaxSizeMB:  lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
	}
}

// ToAuditConfig returns the audit logger settings. Auditing is enabled only
// when an audit file is configured.
func (lc *LoggingConfig) ToAuditConfig() logging.AuditLoggerConfig {
	return logging.AuditLoggerConfig{
		Enabled: lc.AuditFile != "",
		File:    lc.AuditFile,
	}
}

// GetLoggingConfig returns a copy of the Logging section of the global
// configuration. Flag overrides such as --debug are applied by the caller.
func GetLoggingConfig() LoggingConfig {
	return GetGlobalConfig().Logging
}
