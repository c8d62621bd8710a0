// Package board implements the stateful per-board session (spec §4.3):
// connect/apply/arm/poll/read against one BoardDriver, trigger threshold
// computation, and the Acquisition value the Decoder consumes.
package board

// AcqPhase is the board-reported phase a poll_ready() call observes
// (spec §4.3).
type AcqPhase int

const (
	PhaseArming AcqPhase = iota
	PhaseWaiting
	PhaseTriggered
	PhaseReadyToRead
	PhaseReadInProgress
)

// Acquisition is one shot's raw payload plus the metadata the firmware
// reports alongside it (spec §3). Immutable after construction.
type Acquisition struct {
	Raw                    []byte
	TriggerPhase           int    // 0..511
	SampleTriggeredMask    uint32 // 20 bits significant
	DownsampleMergeCounter uint8
	RamAddressTriggered    uint16 // 10 bits significant
	EventTimeCounter       uint32
	DidWrap                bool
}
