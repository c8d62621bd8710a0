package lvds

import (
	"testing"

	"github.com/haasoctl/haasoctl/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	word protocol.RegisterWord
	err  error
}

func (f *fakeSource) ReadPhaseCounter(backward bool) (protocol.RegisterWord, error) {
	return f.word, f.err
}
func (f *fakeSource) SetPhase(pll, output, dir int) error { return nil }
func (f *fakeSource) PllResetPending() bool               { return false }

func TestMeasureOnceRefusesWhenSourceUnstable(t *testing.T) {
	c := New(nil)
	_, _, err := c.MeasureOnce(&fakeSource{}, 0, 1, false, 0, false)
	assert.ErrorIs(t, err, ErrPllUnstable)
}

func TestMeasureOnceNotAcceptedWhenUnlocked(t *testing.T) {
	c := New(nil)
	src := &fakeSource{word: protocol.RegisterWord{High: 5, Low: 7}}
	_, accepted, err := c.MeasureOnce(src, 0, 1, true, 0, false)
	require.NoError(t, err)
	assert.False(t, accepted)
}

func TestMeasureOnceRequiresRepeatBeforeAccept(t *testing.T) {
	c := New(nil)
	src := &fakeSource{word: protocol.RegisterWord{High: 8, Low: 8}}
	delay, accepted, err := c.MeasureOnce(src, 0, 1, true, 0, false)
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, 4.0, delay) // (8+8)/4

	delay2, accepted2, err := c.MeasureOnce(src, 0, 1, true, delay, true)
	require.NoError(t, err)
	assert.True(t, accepted2)
	assert.Equal(t, 4.0, delay2) // forward echo: follower(1) > source(0), no tuning applied
}

func TestMeasureOnceAppliesBackwardTuning(t *testing.T) {
	c := New(nil)
	src := &fakeSource{word: protocol.RegisterWord{High: 10, Low: 10}}
	// follower(0) < source(1) -> backward echo.
	delay, _, err := c.MeasureOnce(src, 1, 0, true, 0, false)
	require.NoError(t, err)
	delay2, accepted, err := c.MeasureOnce(src, 1, 0, true, delay, true)
	require.NoError(t, err)
	require.True(t, accepted)
	// raw = (10+10)/4 = 5; 5 + 5/11.5 = 5.4347..., rounded to 0.1 -> 5.4
	assert.InDelta(t, 5.4, delay2, 1e-9)
}

func TestAcceptPairAppliesSystematicOffsetToAllFollowers(t *testing.T) {
	c := New(nil)
	c.AcceptPair(0, 1, 10, []int{1, 2})
	v1, ok := c.Get(0, 1)
	require.True(t, ok)
	assert.InDelta(t, 10-BoardPairOffsetCycles, v1, 1e-9)

	// Board 2 wasn't explicitly measured yet, but the systematic
	// offset still applies to its (zero-valued) entry.
	v2, ok := c.Get(0, 2)
	require.True(t, ok)
	assert.InDelta(t, -BoardPairOffsetCycles, v2, 1e-9)
}

func TestSplitFirmwareAndSoftwareResidualReconstructTotal(t *testing.T) {
	firmwareDelta, residual := Split(20, 2, 1)
	total := float64(40*firmwareDelta) + residual
	// 8*20/2 = 80 total samples.
	assert.InDelta(t, 80, total, 1e-9)
}
