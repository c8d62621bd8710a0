package resample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFoldRejectsNonPowerOfTwo(t *testing.T) {
	_, err := NewFold(3)
	assert.Error(t, err)
}

func TestFoldEvictsOldestOnOverflow(t *testing.T) {
	f, err := NewFold(2)
	require.NoError(t, err)

	f.Push([]float32{1})
	f.Push([]float32{2})
	assert.Equal(t, 2, f.Len())

	f.Push([]float32{3})
	assert.Equal(t, 2, f.Len())
}

func TestFoldCompositeIsSquareAndNonEmpty(t *testing.T) {
	f, err := NewFold(4)
	require.NoError(t, err)
	f.Push([]float32{0, 1, 0, -1})
	f.Push([]float32{0, 1, 0, -1})

	grid := f.Composite(8)
	require.Len(t, grid, 8)
	var total int
	for _, row := range grid {
		require.Len(t, row, 8)
		for _, c := range row {
			total += c
		}
	}
	assert.Equal(t, 8, total) // 2 waveforms * 4 samples each
}
