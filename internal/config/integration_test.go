package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateHome points COSTLENS_HOME at a temp dir so tests never read the
// developer's real configuration.
func isolateHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("COSTLENS_HOME", dir)
	ResetGlobalConfigForTest()
	t.Cleanup(ResetGlobalConfigForTest)
	return dir
}

func TestGlobalConfig(t *testing.T) {
	isolateHome(t)

	cfg := GetGlobalConfig()
	assert.NotNil(t, cfg)
	assert.Equal(t, "table", cfg.Output.DefaultFormat)

	cfg2 := GetGlobalConfig()
	assert.Same(t, cfg, cfg2)

	ResetGlobalConfigForTest()
	cfg3 := GetGlobalConfig()
	assert.NotSame(t, cfg, cfg3)
}

func TestGlobalConfigReadsConfigFile(t *testing.T) {
	home := isolateHome(t)
	content := `analysis:
  horizon_days: 14
  anomaly_threshold: 3
  min_history: 6
  model: holt
`
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(content), 0600))

	cfg := GetGlobalConfig()
	assert.Equal(t, 14, cfg.Analysis.HorizonDays)
	assert.InDelta(t, 3.0, cfg.Analysis.AnomalyThreshold, 1e-9)
	assert.Equal(t, "holt", cfg.Analysis.Model)
	assert.Equal(t, filepath.Join(home, "config.yaml"), cfg.Path())
}

func TestSetGlobalConfig(t *testing.T) {
	isolateHome(t)

	custom := Default()
	custom.Output.DefaultFormat = "json"
	SetGlobalConfig(custom)

	assert.Same(t, custom, GetGlobalConfig())
	assert.Equal(t, "json", GetDefaultOutputFormat())
}

func TestConfigGetters(t *testing.T) {
	isolateHome(t)
	cfg := GetGlobalConfig()
	cfg.Logging.Level = "debug"

	assert.Equal(t, "debug", GetLogLevel())
	assert.Equal(t, "debug", GetLoggingConfig().Level)
}

func TestEnsureConfigDir(t *testing.T) {
	home := isolateHome(t)

	require.NoError(t, EnsureConfigDir())

	stat, err := os.Stat(home)
	require.NoError(t, err)
	assert.True(t, stat.IsDir())
}

func TestGetConfigDirDefaultsToHome(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("COSTLENS_HOME", "")
	t.Setenv("HOME", tmpHome)
	t.Setenv("USERPROFILE", tmpHome)

	dir, err := GetConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpHome, ".costlens"), dir)
}

func TestEnsureSubDirs(t *testing.T) {
	home := isolateHome(t)
	cfg := GetGlobalConfig()
	cfg.Logging.File = filepath.Join(home, "logs", "costlens.log")

	require.NoError(t, EnsureSubDirs())

	for _, dir := range []string{filepath.Join(home, "cache"), filepath.Join(home, "logs")} {
		stat, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, stat.IsDir(), dir)
	}
}

func TestEnsureLogDirError(t *testing.T) {
	isolateHome(t)
	cfg := GetGlobalConfig()

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))
	cfg.Logging.File = filepath.Join(blocker, "subdir", "test.log")

	assert.Error(t, EnsureLogDir())
}
