package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starfall-games/driftspace/internal/services/sector/app"
	"github.com/starfall-games/driftspace/internal/services/sector/domain/combat"
	"github.com/starfall-games/driftspace/internal/services/sector/domain/garrison"
	"github.com/starfall-games/driftspace/internal/services/sector/domain/ship"
	"github.com/starfall-games/driftspace/internal/services/sector/sectorlock"
	"github.com/starfall-games/driftspace/internal/testkit/worldfakes"
)

func newTestHandler(t *testing.T) (*Handler, *worldfakes.World) {
	t.Helper()
	world := worldfakes.NewWorld()
	locks := sectorlock.NewManager()
	garrisons := app.NewGarrisonService(world, locks)
	combats := app.NewCombatService(world, locks)
	return NewHandler(garrisons, combats), world
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(recorder.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestLeaveFightersEndpoint(t *testing.T) {
	handler, world := newTestHandler(t)
	world.Ships["ship-a"] = ship.Ship{ID: "ship-a", CurrentFighters: 100}

	recorder := doJSON(t, handler, http.MethodPost, "/v1/sectors/9/garrison/leave", map[string]any{
		"character_id": "char-a",
		"ship_id":      "ship-a",
		"quantity":     25,
		"mode":         "defensive",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", recorder.Code, recorder.Body.String())
	}
	resp := decodeBody[leaveFightersResponse](t, recorder)
	if resp.CurrentFighters != 75 {
		t.Fatalf("current_fighters = %d, want 75", resp.CurrentFighters)
	}
	if resp.Garrison.Fighters != 25 {
		t.Fatalf("garrison fighters = %d, want 25", resp.Garrison.Fighters)
	}
}

func TestLeaveFightersOwnerConflictIs409(t *testing.T) {
	handler, world := newTestHandler(t)
	world.Ships["ship-b"] = ship.Ship{ID: "ship-b", CurrentFighters: 80}
	world.Garrisons[7] = garrison.Garrison{
		SectorID: 7, OwnerID: "owner-a", Fighters: 30, Mode: garrison.ModeDefensive,
	}

	recorder := doJSON(t, handler, http.MethodPost, "/v1/sectors/7/garrison/leave", map[string]any{
		"character_id": "owner-b",
		"ship_id":      "ship-b",
		"quantity":     20,
		"mode":         "defensive",
	})
	if recorder.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", recorder.Code)
	}
	resp := decodeBody[errorResponse](t, recorder)
	if resp.Code != "GARRISON_OWNER_CONFLICT" {
		t.Fatalf("code = %q, want GARRISON_OWNER_CONFLICT", resp.Code)
	}
	if resp.Metadata["owner_id"] != "owner-a" {
		t.Fatalf("metadata owner_id = %q, want owner-a", resp.Metadata["owner_id"])
	}
}

func TestLeaveFightersRejectsUnknownFields(t *testing.T) {
	handler, _ := newTestHandler(t)

	recorder := doJSON(t, handler, http.MethodPost, "/v1/sectors/7/garrison/leave", map[string]any{
		"ship_id":  "ship-a",
		"quantity": 1,
		"mode":     "defensive",
		"bogus":    true,
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown field", recorder.Code)
	}
}

func TestLeaveFightersInvalidSectorID(t *testing.T) {
	handler, _ := newTestHandler(t)

	recorder := doJSON(t, handler, http.MethodPost, "/v1/sectors/zero/garrison/leave", map[string]any{
		"ship_id": "ship-a", "quantity": 1, "mode": "defensive",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
}

func TestCollectFightersEndpoint(t *testing.T) {
	handler, world := newTestHandler(t)
	world.Ships["ship-a"] = ship.Ship{ID: "ship-a", CurrentFighters: 20, Credits: 1000}
	world.Garrisons[4] = garrison.Garrison{
		SectorID: 4, OwnerID: "char-a", Fighters: 30,
		Mode: garrison.ModeToll, TollAmount: 10, TollBalance: 200,
	}

	recorder := doJSON(t, handler, http.MethodPost, "/v1/sectors/4/garrison/collect", map[string]any{
		"character_id": "char-a",
		"ship_id":      "ship-a",
		"quantity":     30,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", recorder.Code, recorder.Body.String())
	}
	resp := decodeBody[collectFightersResponse](t, recorder)
	if resp.Credits != 1200 {
		t.Fatalf("credits = %d, want 1200", resp.Credits)
	}
	if !resp.Removed {
		t.Fatal("removed = false, want garrison drained to zero removed")
	}
	if resp.Garrison != nil {
		t.Fatal("garrison present in response, want omitted after removal")
	}
}

func TestCombatEndpoints(t *testing.T) {
	handler, world := newTestHandler(t)
	locks := sectorlock.NewManager()
	combats := app.NewCombatService(world, locks)

	enc, err := combats.StartCombat(context.Background(), 11, map[string]combat.Combatant{
		"char-a": {ShipID: "ship-a", OwnerID: "char-a", Fighters: 50},
		"char-b": {ShipID: "ship-b", OwnerID: "char-b", Fighters: 40},
	})
	if err != nil {
		t.Fatalf("StartCombat() error = %v", err)
	}

	recorder := doJSON(t, handler, http.MethodGet, "/v1/sectors/11/combat", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	got := decodeBody[combat.Encounter](t, recorder)
	if got.CombatID != enc.CombatID {
		t.Fatalf("combat_id = %q, want %q", got.CombatID, enc.CombatID)
	}

	recorder = doJSON(t, handler, http.MethodPost, "/v1/sectors/11/combat/actions", map[string]any{
		"combatant_key": "char-a",
		"action":        "attack",
		"target_key":    "char-b",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("submit action status = %d, want 200: %s", recorder.Code, recorder.Body.String())
	}

	recorder = doJSON(t, handler, http.MethodGet, "/v1/combats/"+enc.CombatID, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("combat by id status = %d, want 200", recorder.Code)
	}

	recorder = doJSON(t, handler, http.MethodDelete, "/v1/sectors/11/combat", nil)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d, want 204", recorder.Code)
	}

	recorder = doJSON(t, handler, http.MethodGet, "/v1/sectors/11/combat", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status after clear = %d, want 404", recorder.Code)
	}
}

func TestCombatByIDNotFound(t *testing.T) {
	handler, _ := newTestHandler(t)

	recorder := doJSON(t, handler, http.MethodGet, "/v1/combats/missing", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", recorder.Code)
	}
	resp := decodeBody[errorResponse](t, recorder)
	if resp.Code != "COMBAT_NOT_FOUND" {
		t.Fatalf("code = %q, want COMBAT_NOT_FOUND", resp.Code)
	}
}

func TestHealthz(t *testing.T) {
	handler, _ := newTestHandler(t)
	recorder := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
}
