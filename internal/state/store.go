package state

import "sync"

// GlobalConfig holds settings that apply to the whole instrument rather
// than to one board or channel.
type GlobalConfig struct {
	AcquisitionTimeoutMs int
	DropOnOverrun        bool
	UnstableOrdering     bool
}

// DefaultGlobalConfig returns the out-of-the-box global settings.
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{AcquisitionTimeoutMs: 1000}
}

// Store is the single in-memory configuration structure (spec §4.13).
// It is mutated only by the controller; every other component reads a
// Snapshot taken at cycle_begin. The zero value is not usable; use New.
type Store struct {
	mu sync.Mutex

	boards        []Board
	boardConfigs  []BoardConfig
	channelConfig []ChannelConfig
	global        GlobalConfig
	firCals       map[string][]byte // opaque, owned by internal/fir
	lvds          map[int]map[int]float64
	schemaVersion int
}

// New returns an empty Store ready to have boards added via SetBoards.
func New() *Store {
	return &Store{
		global:        DefaultGlobalConfig(),
		lvds:          make(map[int]map[int]float64),
		schemaVersion: CurrentSchemaVersion,
	}
}

// SetBoards installs the discovered board list, in discovery order, and
// (re)initializes one BoardConfig and two ChannelConfigs per board,
// recomputing first/last roles (spec §3).
func (s *Store) SetBoards(boards []Board) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.boards = append([]Board(nil), boards...)
	for i := range s.boards {
		s.boards[i].Index = i
	}

	s.boardConfigs = make([]BoardConfig, len(s.boards))
	s.channelConfig = make([]ChannelConfig, len(s.boards)*2)
	for i := range s.boardConfigs {
		s.boardConfigs[i] = DefaultBoardConfig()
	}
	for i := range s.channelConfig {
		s.channelConfig[i] = DefaultChannelConfig()
	}
	s.assignRolesLocked()
}

func (s *Store) assignRolesLocked() {
	n := len(s.boardConfigs)
	for i := range s.boardConfigs {
		switch {
		case n == 1:
			s.boardConfigs[i].FirstLastRole = RoleOnly
		case i == 0:
			s.boardConfigs[i].FirstLastRole = RoleFirst
		case i == n-1:
			s.boardConfigs[i].FirstLastRole = RoleLast
		default:
			s.boardConfigs[i].FirstLastRole = RoleMiddle
		}
	}
}

// NumBoards returns the number of boards currently installed.
func (s *Store) NumBoards() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.boards)
}

func isSourceLike(t TriggerType) bool {
	return t == TriggerRising || t == TriggerFalling || t == TriggerAuto
}

// SetBoardConfig validates and installs cfg for board idx, enforcing the
// single-trigger-source and oversample-neighbor invariants of spec §3.
// On any invariant violation the Store is left completely unchanged.
func (s *Store) SetBoardConfig(idx int, cfg BoardConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx < 0 || idx >= len(s.boardConfigs) {
		return invalidConfig("board_index", "out of range")
	}
	if cfg.DownsampleExp < 0 || cfg.DownsampleExp > 28 {
		return invalidConfig("downsample_exp", "must be in 0..28")
	}
	if cfg.TriggerChannel != 0 && cfg.TriggerChannel != 1 {
		return invalidConfig("trigger_channel", "must be 0 or 1")
	}

	next := append([]BoardConfig(nil), s.boardConfigs...)
	// preserve the role field: it is derived, not user-set.
	cfg.FirstLastRole = next[idx].FirstLastRole
	next[idx] = cfg

	if cfg.OversampleWithNeighbor {
		if idx%2 != 0 {
			return invalidConfig("oversample_with_neighbor", "only valid on an even board index")
		}
		if idx+1 >= len(next) {
			return invalidConfig("oversample_with_neighbor", "no neighbor board to pair with")
		}
		neighbor := next[idx+1]
		if !sameTriggerSettings(cfg, neighbor) {
			return invalidConfig("oversample_with_neighbor", "paired boards must share identical trigger settings")
		}
	}

	if isSourceLike(cfg.TriggerType) {
		for i := range next {
			if i == idx {
				continue
			}
			if isSourceLike(next[i].TriggerType) {
				next[i].TriggerType = TriggerExtIn
			}
		}
	}

	s.boardConfigs = next
	return nil
}

func sameTriggerSettings(a, b BoardConfig) bool {
	return a.TriggerType == b.TriggerType &&
		a.TriggerChannel == b.TriggerChannel &&
		a.ThresholdUpperCode == b.ThresholdUpperCode &&
		a.ThresholdLowerCode == b.ThresholdLowerCode &&
		a.TotSamples == b.TotSamples &&
		a.TriggerDelay == b.TriggerDelay &&
		a.Holdoff == b.Holdoff
}

// SetChannelConfig validates and installs cfg for physical channel idx.
func (s *Store) SetChannelConfig(idx int, cfg ChannelConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx < 0 || idx >= len(s.channelConfig) {
		return invalidConfig("channel_index", "out of range")
	}
	switch cfg.ResampFactor {
	case 1, 2, 4, 8:
	default:
		return invalidConfig("resamp_factor", "must be one of 1,2,4,8")
	}
	if cfg.ReferenceSlot < -1 {
		return invalidConfig("reference_slot", "must be -1 (none) or a non-negative slot id")
	}

	next := append([]ChannelConfig(nil), s.channelConfig...)
	next[idx] = cfg
	s.channelConfig = next
	return nil
}

// SetGlobalConfig installs g wholesale; global settings carry no
// cross-field invariants beyond sane timeouts.
func (s *Store) SetGlobalConfig(g GlobalConfig) error {
	if g.AcquisitionTimeoutMs < 0 {
		return invalidConfig("acquisition_timeout_ms", "must be non-negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global = g
	return nil
}

// SetLvdsDelay records the calibrated delay, in LVDS cycles, for
// follower board `follower` relative to trigger-source board `source`.
func (s *Store) SetLvdsDelay(source, follower int, cycles float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.lvds[source]
	if !ok {
		m = make(map[int]float64)
		s.lvds[source] = m
	}
	m[follower] = cycles
}
