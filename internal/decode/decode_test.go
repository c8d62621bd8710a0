package decode

import (
	"encoding/binary"
	"testing"

	"github.com/haasoctl/haasoctl/internal/board"
	"github.com/haasoctl/haasoctl/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawFor(depth int, wordFn func(cycle, lane int) uint16) []byte {
	raw := make([]byte, depth*LanesPerLvdsCycle*2)
	for cycle := 0; cycle < depth; cycle++ {
		for lane := 0; lane < LanesPerLvdsCycle; lane++ {
			off := (cycle*LanesPerLvdsCycle + lane) * 2
			binary.BigEndian.PutUint16(raw[off:off+2], wordFn(cycle, lane))
		}
	}
	return raw
}

func TestDecodeDualSampleCount(t *testing.T) {
	depth := 1000
	raw := rawFor(depth, func(cycle, lane int) uint16 { return 0 })

	wfs, err := Decode(0, raw, board.Acquisition{}, state.ChannelModeDual, 1.0)
	require.NoError(t, err)
	require.Len(t, wfs, 2)
	assert.Equal(t, depth*LanesPerLvdsCycle/2, len(wfs[0].Samples))
	assert.Equal(t, depth*LanesPerLvdsCycle/2, len(wfs[1].Samples))
}

func TestDecodeSingleInterleavedSampleCount(t *testing.T) {
	depth := 1000
	raw := rawFor(depth, func(cycle, lane int) uint16 { return 0 })

	wfs, err := Decode(0, raw, board.Acquisition{}, state.ChannelModeSingleInterleaved, 1.0)
	require.NoError(t, err)
	require.Len(t, wfs, 1)
	assert.Equal(t, depth*LanesPerLvdsCycle, len(wfs[0].Samples))
}

func TestSignExtensionPreservesSign(t *testing.T) {
	// A 12-bit code of -1 (all ones) left-justified is 0xFFF0.
	raw := rawFor(1, func(cycle, lane int) uint16 {
		if lane == 0 {
			return 0xFFF0
		}
		return 0x7FF0 // max positive 12-bit code, 2047, left-justified
	})

	wfs, err := Decode(0, raw, board.Acquisition{}, state.ChannelModeDual, 1.0)
	require.NoError(t, err)
	assert.Equal(t, float32(-1), wfs[0].Samples[0])
	assert.Equal(t, float32(2047), wfs[1].Samples[0])
}

func TestDecodeRejectsBadLength(t *testing.T) {
	_, err := Decode(0, make([]byte, 7), board.Acquisition{}, state.ChannelModeDual, 1.0)
	require.Error(t, err)

	_, err = Decode(0, make([]byte, 2*39), board.Acquisition{}, state.ChannelModeDual, 1.0)
	require.Error(t, err)
}
