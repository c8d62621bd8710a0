package resample

import "fmt"

// Fold is a power-of-two ring buffer of the last P waveforms for one
// channel, used for persistence-mode display (spec §4.9: "retain the
// last P waveforms... composited by max-count-per-bin").
type Fold struct {
	depth   int
	entries [][]float32
	next    int
	count   int
}

// NewFold creates a Fold retaining depth waveforms. depth must be a
// power of two.
func NewFold(depth int) (*Fold, error) {
	if depth <= 0 || depth&(depth-1) != 0 {
		return nil, fmt.Errorf("resample: fold depth must be a power of two, got %d", depth)
	}
	return &Fold{depth: depth, entries: make([][]float32, depth)}, nil
}

// Push records one waveform, evicting the oldest once the ring is
// full.
func (f *Fold) Push(samples []float32) {
	f.entries[f.next] = append([]float32(nil), samples...)
	f.next = (f.next + 1) % f.depth
	if f.count < f.depth {
		f.count++
	}
}

// Len returns the number of waveforms currently retained.
func (f *Fold) Len() int {
	return f.count
}

// Composite bins every retained waveform's samples into an nBins x nBins
// grid indexed [time bin][value bin] and returns the count of samples
// landing in each cell (max-count-per-bin persistence display). Each
// waveform's sample index is scaled onto the time bins by its own
// length; values are scaled across the min/max of all retained samples.
func (f *Fold) Composite(nBins int) [][]int {
	minV, maxV := float32(0), float32(0)
	first := true
	for _, wf := range f.entries {
		for _, v := range wf {
			if first {
				minV, maxV = v, v
				first = false
				continue
			}
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
	}
	span := maxV - minV
	if span == 0 {
		span = 1
	}

	out := make([][]int, nBins)
	for i := range out {
		out[i] = make([]int, nBins)
	}

	for _, wf := range f.entries {
		if wf == nil {
			continue
		}
		for i, v := range wf {
			xBin := i * nBins / len(wf)
			if xBin >= nBins {
				xBin = nBins - 1
			}
			yBin := int(float32(nBins) * (v - minV) / span)
			if yBin >= nBins {
				yBin = nBins - 1
			}
			if yBin < 0 {
				yBin = 0
			}
			out[xBin][yBin]++
		}
	}
	return out
}
