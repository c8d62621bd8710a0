package state

import (
	"encoding/json"
	"fmt"
	"os"
)

// CurrentSchemaVersion is the schema version written by this build.
// Bump it, and add a migration step in migrate, whenever the on-disk
// shape of persistedDoc changes.
const CurrentSchemaVersion = 2

// persistedDoc is the *.hsp on-disk shape. Display/geometry fields are an
// opaque blob the GUI shell re-interprets (spec §6). The core does not
// round-trip it: Load parses and then discards it, and Save never
// writes it.
type persistedDoc struct {
	SchemaVersion int               `json:"schema_version"`
	Boards        []Board           `json:"boards"`
	BoardConfigs  []BoardConfig     `json:"board_configs"`
	ChannelConfig []ChannelConfig   `json:"channel_config"`
	Global        GlobalConfig      `json:"global"`
	DisplayBlob   json.RawMessage   `json:"display,omitempty"`

	// Legacy (schema 1) single-value fields, expanded to per-channel/
	// per-board arrays on load (spec §6/§13). Never written going forward.
	LegacyGainDB   *float64 `json:"gain_db,omitempty"`
	LegacyOffsetV  *float64 `json:"offset_v,omitempty"`
	LegacyTrigType *int     `json:"trigger_type,omitempty"`
}

// Save writes the current configuration as schema CurrentSchemaVersion.
func (s *Store) Save(path string) error {
	s.mu.Lock()
	doc := persistedDoc{
		SchemaVersion: CurrentSchemaVersion,
		Boards:        append([]Board(nil), s.boards...),
		BoardConfigs:  append([]BoardConfig(nil), s.boardConfigs...),
		ChannelConfig: append([]ChannelConfig(nil), s.channelConfig...),
		Global:        s.global,
	}
	s.mu.Unlock()

	bytes, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.WriteFile(path, bytes, 0o644); err != nil {
		return fmt.Errorf("write state file %s: %w", path, err)
	}
	return nil
}

// Load reads a *.hsp file, migrating it forward to CurrentSchemaVersion
// if it was written by an older build. Migration is one-way: a loaded
// and re-saved file can never be read by an older binary.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state file %s: %w", path, err)
	}

	var doc persistedDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", path, err)
	}

	if err := migrate(&doc); err != nil {
		return nil, fmt.Errorf("migrate state file %s: %w", path, err)
	}

	st := New()
	st.boards = doc.Boards
	st.boardConfigs = doc.BoardConfigs
	st.channelConfig = doc.ChannelConfig
	st.global = doc.Global
	st.assignRolesLocked()
	return st, nil
}

// migrate runs the chain of one-way schema steps needed to bring doc up
// to CurrentSchemaVersion. Each step only ever adds structure.
func migrate(doc *persistedDoc) error {
	if doc.SchemaVersion > CurrentSchemaVersion {
		return fmt.Errorf("state file schema %d is newer than supported %d", doc.SchemaVersion, CurrentSchemaVersion)
	}
	if doc.SchemaVersion < 1 {
		doc.SchemaVersion = 1
	}
	if doc.SchemaVersion == 1 {
		migrateV1ToV2(doc)
		doc.SchemaVersion = 2
	}
	return nil
}

// migrateV1ToV2 expands the legacy single global gain/offset/trigger-type
// scalars into per-channel/per-board arrays, repeating the scalar value
// across every channel/board that doesn't already have an explicit entry
// (spec §6: "Legacy single-value fields are expanded... with repetition
// on load").
func migrateV1ToV2(doc *persistedDoc) {
	if len(doc.ChannelConfig) == 0 && (doc.LegacyGainDB != nil || doc.LegacyOffsetV != nil) {
		n := len(doc.Boards) * 2
		if n == 0 {
			n = 2
		}
		doc.ChannelConfig = make([]ChannelConfig, n)
		for i := range doc.ChannelConfig {
			cc := DefaultChannelConfig()
			if doc.LegacyGainDB != nil {
				cc.GainDB = *doc.LegacyGainDB
			}
			if doc.LegacyOffsetV != nil {
				cc.OffsetV = *doc.LegacyOffsetV
			}
			doc.ChannelConfig[i] = cc
		}
	}
	if len(doc.BoardConfigs) == 0 && doc.LegacyTrigType != nil {
		n := len(doc.Boards)
		if n == 0 {
			n = 1
		}
		doc.BoardConfigs = make([]BoardConfig, n)
		for i := range doc.BoardConfigs {
			bc := DefaultBoardConfig()
			bc.TriggerType = TriggerType(*doc.LegacyTrigType)
			doc.BoardConfigs[i] = bc
		}
	}
}
