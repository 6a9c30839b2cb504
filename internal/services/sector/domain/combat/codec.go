package combat

import (
	"encoding/json"
	"time"

	apperrors "github.com/starfall-games/driftspace/internal/platform/errors"
)

// ErrMalformed rejects documents missing mandatory identity fields.
//
// This is the defensive boundary against corrupt or partially-written
// documents: callers must handle it explicitly instead of treating a broken
// document as an absent one.
var ErrMalformed = apperrors.New(apperrors.CodeCombatMalformed, "combat document is malformed")

// Decode parses a stored combat document into an Encounter.
//
// Absent optional containers default to empty so resolution code never nil-checks
// them. A document without a combat ID or sector ID fails with ErrMalformed.
func Decode(raw []byte) (Encounter, error) {
	var enc Encounter
	if err := json.Unmarshal(raw, &enc); err != nil {
		return Encounter{}, apperrors.Wrap(apperrors.CodeCombatMalformed, "unmarshal combat document", err)
	}
	if enc.CombatID == "" || enc.SectorID == 0 {
		return Encounter{}, ErrMalformed
	}
	if enc.Participants == nil {
		enc.Participants = map[string]Combatant{}
	}
	if enc.PendingActions == nil {
		enc.PendingActions = map[string]RoundAction{}
	}
	if enc.Logs == nil {
		enc.Logs = []RoundLog{}
	}
	if enc.Context == nil {
		enc.Context = map[string]any{}
	}
	return enc, nil
}

// Encode produces the storage document for an encounter.
//
// last_updated is always stamped from the provided clock; a caller-supplied
// value is never trusted.
func Encode(enc Encounter, now time.Time) ([]byte, error) {
	enc.LastUpdated = now.UTC()
	raw, err := json.Marshal(enc)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCombatMalformed, "marshal combat document", err)
	}
	return raw, nil
}
