package measure

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func squareWave(periods int, samplesPerPeriod int, low, high float32) []float32 {
	out := make([]float32, periods*samplesPerPeriod)
	for i := range out {
		if (i % samplesPerPeriod) < samplesPerPeriod/2 {
			out[i] = high
		} else {
			out[i] = low
		}
	}
	return out
}

func TestComputeBasicOnSquareWave(t *testing.T) {
	wf := squareWave(4, 100, -1, 1)
	b := ComputeBasic(wf)
	assert.InDelta(t, 2.0, b.Vpp, 1e-6)
	assert.InDelta(t, 1.0, b.Vrms, 1e-6)
	assert.InDelta(t, 0.0, b.Vmean, 1e-6)
}

func TestComputeBasicEmptyIsZero(t *testing.T) {
	assert.Equal(t, Basic{}, ComputeBasic(nil))
}

func TestComputeFrequencyMatchesKnownPeriod(t *testing.T) {
	samplesPerPeriod := 100
	wf := squareWave(10, samplesPerPeriod, -1, 1)
	dt := 1e-9
	freq, err := ComputeFrequency(wf, dt)
	require.NoError(t, err)
	expected := 1 / (float64(samplesPerPeriod) * dt)
	assert.InDelta(t, expected, freq, expected*0.05)
}

func TestComputeFrequencyInsufficientData(t *testing.T) {
	_, err := ComputeFrequency([]float32{0, 0, 0}, 1e-9)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestComputeDutyCycleNearHalfForSquareWave(t *testing.T) {
	wf := squareWave(6, 100, -1, 1)
	duty, err := ComputeDutyCycle(wf)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, duty, 0.05)
}

func TestComputeRiseFallInsufficientDataOnFlat(t *testing.T) {
	flat := make([]float32, 100)
	_, _, err := ComputeRiseFall(flat, 1e-9)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestComputeRiseFallOnRamp(t *testing.T) {
	// Several ramps from -1 to 1 back to -1, giving multiple
	// rise/fall transitions to average over.
	n := 2000
	wf := make([]float32, n)
	for i := range wf {
		phase := math.Mod(float64(i)/50, 2)
		if phase < 1 {
			wf[i] = float32(-1 + 2*phase)
		} else {
			wf[i] = float32(1 - 2*(phase-1))
		}
	}
	rise, fall, err := ComputeRiseFall(wf, 1e-9)
	require.NoError(t, err)
	assert.Greater(t, rise.N, 0)
	assert.Greater(t, fall.N, 0)
	assert.Greater(t, rise.MeanSec, 0.0)
	assert.Greater(t, fall.MeanSec, 0.0)
}
