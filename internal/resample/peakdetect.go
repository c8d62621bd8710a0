package resample

import "fmt"

// PeakBuckets holds the parallel min/max arrays produced when
// downsampling with peak-detect enabled (spec §4.9).
type PeakBuckets struct {
	Min []float32
	Max []float32
}

// PeakDetect buckets samples into groups of bucketSize, recording the
// min and max of each bucket. Used when downsample_exp > 0 and
// peak-detect is enabled so transients aren't lost to decimation.
func PeakDetect(samples []float32, bucketSize int) (PeakBuckets, error) {
	if bucketSize < 1 {
		return PeakBuckets{}, fmt.Errorf("resample: bucket size must be >= 1, got %d", bucketSize)
	}
	nBuckets := (len(samples) + bucketSize - 1) / bucketSize
	out := PeakBuckets{
		Min: make([]float32, nBuckets),
		Max: make([]float32, nBuckets),
	}
	for b := 0; b < nBuckets; b++ {
		start := b * bucketSize
		end := start + bucketSize
		if end > len(samples) {
			end = len(samples)
		}
		minV, maxV := samples[start], samples[start]
		for _, v := range samples[start+1 : end] {
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
		out.Min[b] = minV
		out.Max[b] = maxV
	}
	return out, nil
}
