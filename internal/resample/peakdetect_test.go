package resample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeakDetectBucketsCaptureExtremes(t *testing.T) {
	samples := []float32{0, 5, -3, 1, 2, 9, -1, 0}
	buckets, err := PeakDetect(samples, 4)
	require.NoError(t, err)
	require.Len(t, buckets.Min, 2)
	require.Len(t, buckets.Max, 2)

	assert.Equal(t, float32(-3), buckets.Min[0])
	assert.Equal(t, float32(5), buckets.Max[0])
	assert.Equal(t, float32(-1), buckets.Min[1])
	assert.Equal(t, float32(9), buckets.Max[1])
}

func TestPeakDetectRejectsZeroBucketSize(t *testing.T) {
	_, err := PeakDetect([]float32{1, 2}, 0)
	assert.Error(t, err)
}

func TestPeakDetectHandlesPartialFinalBucket(t *testing.T) {
	samples := []float32{1, 2, 3}
	buckets, err := PeakDetect(samples, 2)
	require.NoError(t, err)
	require.Len(t, buckets.Max, 2)
	assert.Equal(t, float32(3), buckets.Max[1])
	assert.Equal(t, float32(3), buckets.Min[1])
}
