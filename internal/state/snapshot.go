package state

// Snapshot is an immutable view of the Store taken at cycle_begin. All
// downstream stages (Acquirer, Corrector, Decoder, ...) read a Snapshot
// rather than the live Store, so a controller mutation mid-cycle can
// never be observed partway through. Snapshot slices are never mutated
// in place by Store (every Set* replaces the backing slice), so holding
// an old Snapshot after a new mutation is always safe.
type Snapshot struct {
	Boards        []Board
	BoardConfigs  []BoardConfig
	ChannelConfig []ChannelConfig
	Global        GlobalConfig
	Lvds          map[int]map[int]float64
}

// Snapshot captures the current configuration without copying per-field;
// it shares the Store's current slice headers, which is safe precisely
// because Store never mutates a published slice in place.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	lvds := make(map[int]map[int]float64, len(s.lvds))
	for src, m := range s.lvds {
		cp := make(map[int]float64, len(m))
		for k, v := range m {
			cp[k] = v
		}
		lvds[src] = cp
	}

	return Snapshot{
		Boards:        s.boards,
		BoardConfigs:  s.boardConfigs,
		ChannelConfig: s.channelConfig,
		Global:        s.global,
		Lvds:          lvds,
	}
}

// ChannelsForBoard returns the two physical-channel indices belonging to
// board idx (channel layout is always 2 per board regardless of mode).
func (snap Snapshot) ChannelsForBoard(boardIdx int) (first, second int) {
	return boardIdx * 2, boardIdx*2 + 1
}

// TriggerSourceIndex returns the board index acting as trigger source,
// or -1 if none is configured (all boards disabled/external).
func (snap Snapshot) TriggerSourceIndex() int {
	for i, bc := range snap.BoardConfigs {
		if isSourceLike(bc.TriggerType) {
			return i
		}
	}
	return -1
}
