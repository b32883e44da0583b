package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreEfficiency(t *testing.T) {
	tests := []struct {
		name      string
		hist, fc  float64
		wantValue Metric
		wantDelta Metric
	}{
		{"half", 100, 200, Defined(50), Defined(-50)},
		{"equal", 166.67, 166.67, Defined(100), Defined(0)},
		{"falling spend", 300, 200, Defined(150), Defined(50)},
		{"rounded", 100, 60, Defined(166.67), Defined(66.67)},
		{"zero forecast", 100, 0, Undefined(), Undefined()},
		{"negative forecast", 100, -5, Undefined(), Undefined()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := ScoreEfficiency("A", tt.hist, tt.fc)
			assert.Equal(t, tt.wantValue.Defined, idx.Value.Defined)
			assert.Equal(t, tt.wantDelta.Defined, idx.Delta.Defined)
			assert.InDelta(t, tt.wantValue.Value, idx.Value.Value, 1e-9)
			assert.InDelta(t, tt.wantDelta.Value, idx.Delta.Value, 1e-9)
			assert.InDelta(t, tt.hist, idx.HistoricalMean, 1e-9)
			assert.InDelta(t, tt.fc, idx.ForecastMean, 1e-9)
		})
	}
}

func TestScoreEfficiencyIdentity(t *testing.T) {
	for _, pair := range [][2]float64{{1, 3}, {250.5, 199.9}, {0, 10}, {1e6, 7}} {
		idx := ScoreEfficiency("A", pair[0], pair[1])
		assert.InDelta(t, Round2(100*pair[0]/pair[1]), idx.Value.Value, 1e-9)
	}
}

func TestAdvise(t *testing.T) {
	assert.Equal(t, AdviceRising, Advise(100, 106))
	assert.Equal(t, AdviceStable, Advise(100, 105))
	assert.Equal(t, AdviceStable, Advise(100, 95))
	assert.Equal(t, AdviceOptimized, Advise(100, 94))
	assert.Equal(t, AdviceStable, Advise(0, 0))
	assert.NotEmpty(t, AdviceNoData.Message())
}
