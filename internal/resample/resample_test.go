package resample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResampleFactor1IsIdentity(t *testing.T) {
	samples := []float32{1, 2, 3, 4}
	out, err := Resample(samples, Factor1)
	require.NoError(t, err)
	assert.Equal(t, samples, out)
}

func TestResampleRejectsInvalidFactor(t *testing.T) {
	_, err := Resample([]float32{1, 2}, Factor(3))
	assert.Error(t, err)
}

func TestResampleUpsamplesLength(t *testing.T) {
	samples := make([]float32, 64)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * float64(i) / 16))
	}
	out, err := Resample(samples, Factor4)
	require.NoError(t, err)
	assert.Equal(t, len(samples)*4, len(out))
}

func TestResamplePreservesOriginalSamplesAtIntegerPhase(t *testing.T) {
	samples := make([]float32, 128)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * float64(i) / 32))
	}
	out, err := Resample(samples, Factor2)
	require.NoError(t, err)
	for i := 20; i < 100; i++ {
		assert.InDelta(t, samples[i], out[i*2], 0.05)
	}
}

func TestSincAtZeroIsOne(t *testing.T) {
	assert.InDelta(t, 1.0, sinc(0), 1e-12)
}

func TestSincAtIntegerIsZero(t *testing.T) {
	assert.InDelta(t, 0.0, sinc(2), 1e-9)
}
