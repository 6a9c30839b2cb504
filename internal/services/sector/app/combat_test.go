package app

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/starfall-games/driftspace/internal/platform/errors"
	"github.com/starfall-games/driftspace/internal/services/sector/domain/combat"
	"github.com/starfall-games/driftspace/internal/services/sector/sectorlock"
	"github.com/starfall-games/driftspace/internal/services/sector/storage"
	"github.com/starfall-games/driftspace/internal/testkit/worldfakes"
)

func newCombatService(t *testing.T) (*CombatService, *worldfakes.World) {
	t.Helper()
	world := worldfakes.NewWorld()
	return NewCombatService(world, sectorlock.NewManager()), world
}

func twoCombatants() map[string]combat.Combatant {
	return map[string]combat.Combatant{
		"char-a": {ShipID: "ship-a", OwnerID: "char-a", Fighters: 50},
		"char-b": {ShipID: "ship-b", OwnerID: "char-b", Fighters: 40},
	}
}

func TestStartCombatPersistsEncounter(t *testing.T) {
	svc, world := newCombatService(t)

	enc, err := svc.StartCombat(context.Background(), 11, twoCombatants())
	if err != nil {
		t.Fatalf("StartCombat() error = %v", err)
	}
	if enc.CombatID == "" {
		t.Fatal("CombatID is empty")
	}
	if enc.Round != 1 {
		t.Fatalf("Round = %d, want 1", enc.Round)
	}
	if enc.Deadline == nil {
		t.Fatal("Deadline is nil, want round deadline set")
	}

	record, ok := world.Combats[11]
	if !ok {
		t.Fatal("combat record not stored")
	}
	if record.CombatID != enc.CombatID {
		t.Fatalf("stored CombatID = %q, want %q", record.CombatID, enc.CombatID)
	}
	if record.Ended {
		t.Fatal("stored Ended = true, want live")
	}
	if record.Deadline == nil || !record.Deadline.Equal(*enc.Deadline) {
		t.Fatalf("stored Deadline = %v, want mirror of %v", record.Deadline, enc.Deadline)
	}
}

func TestStartCombatRejectsLiveEncounter(t *testing.T) {
	svc, _ := newCombatService(t)

	if _, err := svc.StartCombat(context.Background(), 11, twoCombatants()); err != nil {
		t.Fatalf("StartCombat() error = %v", err)
	}
	_, err := svc.StartCombat(context.Background(), 11, twoCombatants())
	if got := codeOf(t, err); got != apperrors.CodeCombatActive {
		t.Fatalf("code = %q, want %q", got, apperrors.CodeCombatActive)
	}
}

func TestStartCombatReplacesEndedEncounter(t *testing.T) {
	svc, _ := newCombatService(t)

	first, err := svc.StartCombat(context.Background(), 11, twoCombatants())
	if err != nil {
		t.Fatalf("StartCombat() error = %v", err)
	}
	first.Ended = true
	first.EndState = combat.EndStateDecided
	first.Deadline = nil
	if err := svc.PersistCombat(context.Background(), first); err != nil {
		t.Fatalf("PersistCombat() error = %v", err)
	}

	second, err := svc.StartCombat(context.Background(), 11, twoCombatants())
	if err != nil {
		t.Fatalf("StartCombat() over ended encounter error = %v", err)
	}
	if second.CombatID == first.CombatID {
		t.Fatal("second encounter reused the first combat ID")
	}
}

func TestSubmitActionRecordsOrder(t *testing.T) {
	svc, _ := newCombatService(t)

	enc, err := svc.StartCombat(context.Background(), 11, twoCombatants())
	if err != nil {
		t.Fatalf("StartCombat() error = %v", err)
	}
	updated, err := svc.SubmitAction(context.Background(), 11, "char-a", combat.RoundAction{
		Action: combat.ActionAttack, TargetKey: "char-b",
	})
	if err != nil {
		t.Fatalf("SubmitAction() error = %v", err)
	}
	action, ok := updated.PendingActions["char-a"]
	if !ok || action.Action != combat.ActionAttack {
		t.Fatalf("pending action = %+v, want attack recorded", action)
	}

	stored, err := svc.CombatByID(context.Background(), enc.CombatID)
	if err != nil {
		t.Fatalf("CombatByID() error = %v", err)
	}
	if _, ok := stored.PendingActions["char-a"]; !ok {
		t.Fatal("submitted action not persisted")
	}
}

func TestSubmitActionRejectsUnknownCombatant(t *testing.T) {
	svc, _ := newCombatService(t)
	if _, err := svc.StartCombat(context.Background(), 11, twoCombatants()); err != nil {
		t.Fatalf("StartCombat() error = %v", err)
	}

	_, err := svc.SubmitAction(context.Background(), 11, "char-z", combat.RoundAction{Action: combat.ActionBrace})
	if got := codeOf(t, err); got != apperrors.CodeCombatNotFound {
		t.Fatalf("code = %q, want %q", got, apperrors.CodeCombatNotFound)
	}
}

func TestCombatForSectorAbsentIsNil(t *testing.T) {
	svc, _ := newCombatService(t)

	enc, err := svc.CombatForSector(context.Background(), 42)
	if err != nil {
		t.Fatalf("CombatForSector() error = %v", err)
	}
	if enc != nil {
		t.Fatalf("encounter = %+v, want nil for empty sector", enc)
	}
}

func TestCombatForSectorMalformedDocument(t *testing.T) {
	svc, world := newCombatService(t)
	world.Combats[13] = storage.CombatRecord{
		CombatID: "broken", SectorID: 13, Document: []byte(`{"round": 3}`),
	}

	_, err := svc.CombatForSector(context.Background(), 13)
	if !errors.Is(err, combat.ErrMalformed) {
		t.Fatalf("error = %v, want malformed document rejection", err)
	}
}

func TestClearCombatRemovesDocument(t *testing.T) {
	svc, world := newCombatService(t)
	if _, err := svc.StartCombat(context.Background(), 11, twoCombatants()); err != nil {
		t.Fatalf("StartCombat() error = %v", err)
	}

	if err := svc.ClearCombat(context.Background(), 11); err != nil {
		t.Fatalf("ClearCombat() error = %v", err)
	}
	if _, ok := world.Combats[11]; ok {
		t.Fatal("combat record still stored after clear")
	}

	err := svc.ClearCombat(context.Background(), 11)
	if got := codeOf(t, err); got != apperrors.CodeCombatNotFound {
		t.Fatalf("code = %q, want %q", got, apperrors.CodeCombatNotFound)
	}
}

func TestListDueCombatsSkipsMalformed(t *testing.T) {
	svc, world := newCombatService(t)
	now := time.Now().UTC()
	past := now.Add(-time.Minute)

	good := combat.New(21, twoCombatants(), 7, past.Add(-combat.RoundInterval))
	raw, err := combat.Encode(good, past)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	world.Combats[21] = storage.CombatRecord{
		CombatID: good.CombatID, SectorID: 21, Deadline: &past, Document: raw,
	}
	world.Combats[22] = storage.CombatRecord{
		CombatID: "broken", SectorID: 22, Deadline: &past, Document: []byte(`not json`),
	}

	due, err := svc.ListDueCombats(context.Background(), now, 10)
	if err != nil {
		t.Fatalf("ListDueCombats() error = %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("due = %d, want 1 with malformed skipped", len(due))
	}
	if due[0].CombatID != good.CombatID {
		t.Fatalf("due CombatID = %q, want %q", due[0].CombatID, good.CombatID)
	}
}

func TestResolveSectorAdvancesDueRound(t *testing.T) {
	world := worldfakes.NewWorld()
	svc := NewCombatService(world, sectorlock.NewManager())

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return start })

	enc, err := svc.StartCombat(context.Background(), 31, twoCombatants())
	if err != nil {
		t.Fatalf("StartCombat() error = %v", err)
	}

	later := start.Add(combat.RoundInterval + time.Second)
	if err := svc.ResolveSector(context.Background(), 31, later); err != nil {
		t.Fatalf("ResolveSector() error = %v", err)
	}

	stored, err := svc.CombatByID(context.Background(), enc.CombatID)
	if err != nil {
		t.Fatalf("CombatByID() error = %v", err)
	}
	if stored.Round != 2 {
		t.Fatalf("Round = %d, want advanced to 2", stored.Round)
	}
	if len(stored.Logs) != 1 {
		t.Fatalf("logs = %d, want 1 round log", len(stored.Logs))
	}
}

func TestResolveSectorSkipsNotDue(t *testing.T) {
	world := worldfakes.NewWorld()
	svc := NewCombatService(world, sectorlock.NewManager())

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return start })

	enc, err := svc.StartCombat(context.Background(), 31, twoCombatants())
	if err != nil {
		t.Fatalf("StartCombat() error = %v", err)
	}

	if err := svc.ResolveSector(context.Background(), 31, start.Add(time.Second)); err != nil {
		t.Fatalf("ResolveSector() error = %v", err)
	}
	stored, err := svc.CombatByID(context.Background(), enc.CombatID)
	if err != nil {
		t.Fatalf("CombatByID() error = %v", err)
	}
	if stored.Round != 1 {
		t.Fatalf("Round = %d, want unchanged 1", stored.Round)
	}
}

func TestPersistCombatStorageFailure(t *testing.T) {
	svc, world := newCombatService(t)
	world.FailOn["PutCombat"] = errors.New("connection reset")

	enc := combat.New(41, twoCombatants(), 1, time.Now())
	err := svc.PersistCombat(context.Background(), enc)
	if got := codeOf(t, err); got != apperrors.CodeStorageFailure {
		t.Fatalf("code = %q, want %q", got, apperrors.CodeStorageFailure)
	}
}
