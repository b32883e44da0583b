package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/costlens/internal/config"
	"github.com/rshade/costlens/internal/ingest"
	"github.com/rshade/costlens/internal/source"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"schema", &ingest.SchemaError{Missing: []ingest.Column{ingest.ColumnCost}}, exitSchema},
		{"wrapped schema", fmt.Errorf("loading: %w", &ingest.SchemaError{Missing: []ingest.Column{ingest.ColumnEntity}}), exitSchema},
		{"source", &source.Error{Source: "azure", Err: errors.New("401")}, exitUnavailable},
		{"other", errors.New("boom"), exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestRun(t *testing.T) {
	t.Setenv("COSTLENS_HOME", t.TempDir())
	t.Setenv("COSTLENS_LOG_LEVEL", "error")
	t.Cleanup(config.ResetGlobalConfigForTest)

	require.NoError(t, run(context.Background(), []string{"--version"}))

	err := run(context.Background(), []string{"analyze", "--file", "does-not-exist.csv"})
	require.Error(t, err)
	assert.Equal(t, exitError, exitCode(err))
}
