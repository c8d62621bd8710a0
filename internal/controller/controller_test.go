package controller

import (
	"testing"

	"github.com/haasoctl/haasoctl/internal/fir"
	"github.com/haasoctl/haasoctl/internal/state"
	"github.com/stretchr/testify/assert"
)

func TestSelectFirModeInterleaved(t *testing.T) {
	cfg := state.BoardConfig{OversampleWithNeighbor: true, ChannelMode: state.ChannelModeSingleInterleaved}
	assert.Equal(t, fir.ModeInterleaved, selectFirMode(cfg))
}

func TestSelectFirModeOversampled(t *testing.T) {
	cfg := state.BoardConfig{OversampleWithNeighbor: true, ChannelMode: state.ChannelModeDual}
	assert.Equal(t, fir.ModeOversampled, selectFirMode(cfg))
}

func TestSelectFirModeNormal(t *testing.T) {
	cfg := state.BoardConfig{}
	assert.Equal(t, fir.ModeNormal, selectFirMode(cfg))
}

func TestNewControllerExposesStore(t *testing.T) {
	c := New(Options{MaxDevices: 10}, nil)
	assert.NotNil(t, c.Store())
	assert.Equal(t, 0, c.Store().NumBoards())
}
