// Package state holds the single in-memory configuration structure that
// every other component reads. Only the controller mutates a Store;
// everything downstream of cycle_begin sees an immutable Snapshot.
package state

// Coupling selects AC or DC input coupling for a channel's front end.
type Coupling int

const (
	CouplingDC Coupling = iota
	CouplingAC
)

// Impedance selects the channel's input termination.
type Impedance int

const (
	Impedance50Ohm Impedance = iota
	Impedance1MOhm
)

// BandwidthLimit selects the channel's analog bandwidth limiter.
type BandwidthLimit int

const (
	BandwidthFull BandwidthLimit = iota
	Bandwidth20MHz
)

// TriggerType enumerates how a board decides to fire an acquisition.
type TriggerType int

const (
	TriggerDisabled TriggerType = iota
	TriggerRising
	TriggerFalling
	TriggerExtIn
	TriggerAuto
	TriggerExtSMA
	TriggerExtEcho
)

// IsExternal reports whether t is one of the external-follower trigger
// types (the board does not decide on its own when to fire).
func (t TriggerType) IsExternal() bool {
	return t == TriggerExtIn || t == TriggerExtSMA || t == TriggerExtEcho
}

// ChannelMode selects how a board's two ADCs feed its two logical channels.
type ChannelMode int

const (
	ChannelModeDual ChannelMode = iota
	ChannelModeSingleInterleaved
)

// NumLogicalChannels returns how many distinct waveform-producing
// channels a board in this mode yields (1 for single_interleaved).
func (m ChannelMode) NumLogicalChannels() int {
	if m == ChannelModeSingleInterleaved {
		return 1
	}
	return 2
}

// FirstLastRole controls which direction of LVDS trigger lines a board
// listens on, based on its physical position in the daisy chain.
type FirstLastRole int

const (
	RoleOnly FirstLastRole = iota
	RoleFirst
	RoleMiddle
	RoleLast
)

// Caps carries the board's fixed hardware limits.
type Caps struct {
	Channels       int
	AdcRateHz      float64
	LvdsRateHz     float64
	SamplesPerLvds int
	DepthMax       int
}

// DefaultCaps returns the caps shared by every board of this instrument
// family (spec §3): 2 channels, 3.2 GS/s, 400 MHz LVDS, 8 samples/cycle.
func DefaultCaps() Caps {
	return Caps{
		Channels:       2,
		AdcRateHz:      3.2e9,
		LvdsRateHz:     4.0e8,
		SamplesPerLvds: 8,
		DepthMax:       1 << 20,
	}
}

// BoardLifecycleState is the coarse connection state of a BoardDriver
// session, independent of the Acquirer's per-cycle state machine.
type BoardLifecycleState int

const (
	BoardDisconnected BoardLifecycleState = iota
	BoardConnecting
	BoardReady
	BoardPllUnlocked
	BoardVersionMismatch
)

// Board is the per-board identity and capability record. Index reflects
// discovery order and is stable for the process lifetime; exclusively
// owned by BoardDriver once connected.
type Board struct {
	Index  int
	Serial string
	Caps   Caps
	State  BoardLifecycleState
}

// ChannelConfig holds the per-physical-channel settings a user can mutate.
// N = 2 * num_boards channels exist regardless of channel_mode.
type ChannelConfig struct {
	GainDB         float64
	OffsetV        float64
	Coupling       Coupling
	Impedance      Impedance
	BandwidthLimit BandwidthLimit
	PersistOn      bool
	PeakDetectOn   bool
	ResampFactor   int // one of {1,2,4,8}
	ReferenceSlot  int // -1 = none, else 0..K-1
	ColorID        int
}

// DefaultChannelConfig returns the out-of-the-box channel settings.
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		GainDB:        0,
		OffsetV:       0,
		Coupling:      CouplingDC,
		Impedance:     Impedance1MOhm,
		ResampFactor:  1,
		ReferenceSlot: -1,
	}
}

// BoardConfig holds the per-board acquisition settings a user can mutate.
type BoardConfig struct {
	TriggerType             TriggerType
	TriggerChannel          int
	ThresholdUpperCode      int
	ThresholdLowerCode      int
	TotSamples              int
	TriggerDelay            int
	Holdoff                 int
	Prelength               int
	Length                  int
	DownsampleExp           int // 0..28
	DownsampleMerging       int
	ChannelMode             ChannelMode
	OversampleWithNeighbor  bool
	RollingTriggerOn        bool
	FirstLastRole           FirstLastRole
	LvdsDelayCycles         float64
	PllResetPending         bool
}

// DefaultBoardConfig returns the out-of-the-box board settings.
func DefaultBoardConfig() BoardConfig {
	return BoardConfig{
		TriggerType:       TriggerAuto,
		TotSamples:        2,
		Holdoff:           0,
		Prelength:         0,
		Length:            1000,
		DownsampleMerging: 1,
		ChannelMode:       ChannelModeDual,
	}
}

// SampleRateHz implements spec §3: adc_rate / 2^downsample_exp / merging,
// doubled in single_interleaved channel mode.
func (c BoardConfig) SampleRateHz(caps Caps) float64 {
	rate := caps.AdcRateHz / float64(int64(1)<<uint(c.DownsampleExp))
	if c.DownsampleMerging > 0 {
		rate /= float64(c.DownsampleMerging)
	}
	if c.ChannelMode == ChannelModeSingleInterleaved {
		rate *= 2
	}
	return rate
}
