package mathengine

// applyMin updates t's running per-sample minimum with x and returns
// the updated tracker array (spec §4.10: "across successive shots").
func (t *Tracker) applyMin(x []float64) []float64 {
	if t.min == nil || len(t.min) != len(x) {
		t.min = append([]float64(nil), x...)
		return append([]float64(nil), t.min...)
	}
	for i, v := range x {
		if v < t.min[i] {
			t.min[i] = v
		}
	}
	return append([]float64(nil), t.min...)
}

// applyMax is the max-tracker counterpart of applyMin.
func (t *Tracker) applyMax(x []float64) []float64 {
	if t.max == nil || len(t.max) != len(x) {
		t.max = append([]float64(nil), x...)
		return append([]float64(nil), t.max...)
	}
	for i, v := range x {
		if v > t.max[i] {
			t.max[i] = v
		}
	}
	return append([]float64(nil), t.max...)
}

// Reset clears accumulated tracker state, e.g. when the source
// channel's waveform length changes.
func (t *Tracker) Reset() {
	t.min = nil
	t.max = nil
}
