package correct

import (
	"math"
	"testing"

	"github.com/haasoctl/haasoctl/internal/board"
	"github.com/haasoctl/haasoctl/internal/decode"
	"github.com/haasoctl/haasoctl/internal/state"
	"github.com/stretchr/testify/assert"
)

func flatWaveform(value float32, n int) decode.Waveform {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = value
	}
	return decode.Waveform{Dt: 1.0 / 3.2e9, Samples: samples}
}

func TestGainOffsetConversion(t *testing.T) {
	wf := flatWaveform(100, 10)
	cfg := DefaultConfig()
	cfg.Calibration = board.GainCalibration{Slope: 2, Intercept: 0.5}
	cfg.PerCycleStabilizeEnabled = false
	cfg.TriggerType = state.TriggerAuto

	out := Apply(wf, cfg)
	for _, s := range out.Samples {
		assert.InDelta(t, 200.5, float64(s), 1e-4)
	}
}

func TestDCBlockDrivesMeanTowardZero(t *testing.T) {
	wf := flatWaveform(500, 2000)
	cfg := DefaultConfig()
	cfg.Coupling = state.CouplingAC
	cfg.TriggerType = state.TriggerAuto
	cfg.PerCycleStabilizeEnabled = false

	out := Apply(wf, cfg)
	var mean float64
	for _, s := range out.Samples {
		mean += float64(s)
	}
	mean /= float64(len(out.Samples))
	assert.InDelta(t, 0, mean, 1.0)
}

func TestDCBlockPassesThroughDCCoupled(t *testing.T) {
	wf := flatWaveform(500, 100)
	cfg := DefaultConfig()
	cfg.Coupling = state.CouplingDC
	cfg.TriggerType = state.TriggerAuto
	cfg.PerCycleStabilizeEnabled = false

	out := Apply(wf, cfg)
	assert.Equal(t, float32(500), out.Samples[0])
}

func TestTriggerPhaseOffsetRange(t *testing.T) {
	assert.Equal(t, -4.0, triggerPhaseOffset(0))
	assert.InDelta(t, 3.984375, triggerPhaseOffset(511), 1e-9)
}

func TestApplyIsDeterministic(t *testing.T) {
	wf := flatWaveform(123, 256)
	wf.Meta = board.Acquisition{TriggerPhase: 300}
	cfg := DefaultConfig()
	cfg.TriggerType = state.TriggerRising

	a := Apply(wf, cfg)
	b := Apply(wf, cfg)
	assert.Equal(t, a.Samples, b.Samples)
	assert.Equal(t, a.T0, b.T0)
}

func TestFractionalShiftByIntegerIsPureShift(t *testing.T) {
	samples := []float32{0, 1, 2, 3, 4}
	shifted := fractionalShift(samples, 1)
	assert.Equal(t, float32(1), shifted[0])
	assert.Equal(t, float32(2), shifted[1])
}

func TestSkewSamplesScalesWithDt(t *testing.T) {
	dt := 1.0 / 3.2e9
	got := skewSamples(1000, dt) // 1 ns skew at 312.5ps/sample ~= 3.2 samples
	assert.True(t, math.Abs(got-3.2) < 0.01)
}
