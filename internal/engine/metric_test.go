package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Metric `json:"a"`
		B Metric `json:"b"`
	}{A: Defined(12.5), B: Undefined()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":12.5,"b":null}`, string(b))

	var decoded struct {
		A Metric `json:"a"`
		B Metric `json:"b"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, Defined(12.5), decoded.A)
	assert.False(t, decoded.B.Defined)
}

func TestMetricString(t *testing.T) {
	assert.Equal(t, "n/a", Undefined().String())
	assert.Equal(t, "50.00", Defined(50).String())
	assert.Equal(t, "-0.50", Defined(-0.5).String())
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{166.666666, 166.67},
		{0.125, 0.12},
		{0.135, 0.14},
		{-50, -50},
		{100, 100},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Round2(tt.in), 1e-9, "Round2(%v)", tt.in)
	}
}
