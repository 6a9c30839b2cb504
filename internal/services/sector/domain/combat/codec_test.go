package combat

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDecodeDefaultsOptionalContainers(t *testing.T) {
	raw := []byte(`{"combat_id":"cmb-1","sector_id":9,"round":1,"base_seed":42}`)

	enc, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if enc.CombatID != "cmb-1" || enc.SectorID != 9 {
		t.Fatalf("identity = %q/%d", enc.CombatID, enc.SectorID)
	}
	if enc.Participants == nil || enc.PendingActions == nil || enc.Logs == nil || enc.Context == nil {
		t.Fatal("optional containers must default to empty, not nil")
	}
	if enc.BaseSeed != 42 {
		t.Fatalf("base_seed = %d, want 42", enc.BaseSeed)
	}
}

func TestDecodeRejectsMissingIdentity(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"missing combat id", `{"sector_id":9}`},
		{"missing sector id", `{"combat_id":"cmb-1"}`},
		{"empty document", `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode([]byte(tc.raw)); !errors.Is(err, ErrMalformed) {
				t.Fatalf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	if _, err := Decode([]byte(`{"combat_id":`)); err == nil {
		t.Fatal("expected error for truncated document")
	}
}

func TestEncodeStampsLastUpdated(t *testing.T) {
	now := time.Date(2026, 8, 30, 15, 4, 5, 0, time.UTC)
	enc := New(9, map[string]Combatant{
		"ship:ship-a": {ShipID: "ship-a", OwnerID: "owner-a", Fighters: 40},
	}, 42, now)
	// A caller-supplied timestamp must never survive the encode.
	enc.LastUpdated = time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)

	raw, err := Encode(enc, now)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var stored struct {
		LastUpdated time.Time `json:"last_updated"`
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("unmarshal stored document: %v", err)
	}
	if !stored.LastUpdated.Equal(now) {
		t.Fatalf("last_updated = %v, want %v", stored.LastUpdated, now)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Date(2026, 8, 30, 15, 4, 5, 0, time.UTC)
	enc := New(9, map[string]Combatant{
		"ship:ship-a":    {ShipID: "ship-a", OwnerID: "owner-a", Fighters: 40},
		"garrison:owner": {OwnerID: "owner-b", Fighters: 25},
	}, 42, now)
	enc.PendingActions["ship:ship-a"] = RoundAction{Action: ActionAttack, TargetKey: "garrison:owner"}

	raw, err := Encode(enc, now)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.CombatID != enc.CombatID {
		t.Fatalf("combat_id = %q, want %q", decoded.CombatID, enc.CombatID)
	}
	if decoded.Participants["ship:ship-a"].Fighters != 40 {
		t.Fatalf("participant fighters = %d, want 40", decoded.Participants["ship:ship-a"].Fighters)
	}
	if decoded.PendingActions["ship:ship-a"].TargetKey != "garrison:owner" {
		t.Fatalf("pending action target = %q", decoded.PendingActions["ship:ship-a"].TargetKey)
	}
	if decoded.Deadline == nil || !decoded.Deadline.Equal(now.Add(RoundInterval)) {
		t.Fatalf("deadline = %v, want %v", decoded.Deadline, now.Add(RoundInterval))
	}
}
