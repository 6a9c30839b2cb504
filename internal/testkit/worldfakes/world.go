// Package worldfakes provides an in-memory storage.World fake for tests.
//
// Each test constructs its own isolated world; there is no ambient singleton
// to reset between cases. Transactions stage writes and only apply them on
// Commit, so rollback tests can assert that failed operations leave the
// world untouched. FailOn injects an error into any named operation to
// exercise failure paths.
package worldfakes

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/starfall-games/driftspace/internal/platform/errors"
	"github.com/starfall-games/driftspace/internal/services/sector/domain/garrison"
	"github.com/starfall-games/driftspace/internal/services/sector/domain/ship"
	"github.com/starfall-games/driftspace/internal/services/sector/sectorlock"
	"github.com/starfall-games/driftspace/internal/services/sector/storage"
)

// World is an in-memory storage.World implementation.
type World struct {
	mu sync.Mutex

	Ships              map[string]ship.Ship
	Garrisons          map[int64]garrison.Garrison
	Combats            map[int64]storage.CombatRecord
	CorporationMembers map[string]string

	// FailOn injects an error for a named operation (e.g. "UpdateGarrison",
	// "InsertGarrison", "Commit", "PutCombat"). The error persists until the
	// entry is removed.
	FailOn map[string]error

	// locks emulates the database-level advisory lock: a LockSector call in
	// one transaction blocks others on the same sector until that
	// transaction resolves.
	locks *sectorlock.Manager
}

// NewWorld constructs an empty fake world.
func NewWorld() *World {
	return &World{
		Ships:              make(map[string]ship.Ship),
		Garrisons:          make(map[int64]garrison.Garrison),
		Combats:            make(map[int64]storage.CombatRecord),
		CorporationMembers: make(map[string]string),
		FailOn:             make(map[string]error),
		locks:              sectorlock.NewManager(),
	}
}

func (w *World) fail(op string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.FailOn[op]
}

// Begin opens a staged transaction against the world.
func (w *World) Begin(ctx context.Context) (storage.WorldTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := w.fail("Begin"); err != nil {
		return nil, err
	}
	return &worldTx{
		world:     w,
		ships:     make(map[string]ship.Ship),
		garrisons: make(map[int64]*garrison.Garrison),
	}, nil
}

// GetShip reads a ship snapshot without locking.
func (w *World) GetShip(_ context.Context, shipID string) (ship.Ship, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.Ships[shipID]
	if !ok {
		return ship.Ship{}, storage.ErrNotFound
	}
	return s, nil
}

// PutShip upserts a ship record.
func (w *World) PutShip(_ context.Context, s ship.Ship) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Ships[s.ID] = s
	return nil
}

// GetGarrison reads a garrison snapshot without locking.
func (w *World) GetGarrison(_ context.Context, sectorID int64) (garrison.Garrison, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	g, ok := w.Garrisons[sectorID]
	if !ok {
		return garrison.Garrison{}, storage.ErrNotFound
	}
	return g, nil
}

// PutCorporationMember records a character's corporation membership.
func (w *World) PutCorporationMember(_ context.Context, characterID, corporationID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.CorporationMembers[characterID] = corporationID
	return nil
}

// CombatForSector returns the sector's stored encounter.
func (w *World) CombatForSector(_ context.Context, sectorID int64) (storage.CombatRecord, error) {
	if err := w.fail("CombatForSector"); err != nil {
		return storage.CombatRecord{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	record, ok := w.Combats[sectorID]
	if !ok {
		return storage.CombatRecord{}, storage.ErrNotFound
	}
	return record, nil
}

// CombatByID looks an encounter up by combat ID.
func (w *World) CombatByID(_ context.Context, combatID string) (storage.CombatRecord, error) {
	if err := w.fail("CombatByID"); err != nil {
		return storage.CombatRecord{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, record := range w.Combats {
		if record.CombatID == combatID {
			return record, nil
		}
	}
	return storage.CombatRecord{}, storage.ErrNotFound
}

// PutCombat overwrites the sector's combat document.
func (w *World) PutCombat(_ context.Context, record storage.CombatRecord) error {
	if err := w.fail("PutCombat"); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Combats[record.SectorID] = record
	return nil
}

// ClearCombat removes the sector's combat document.
func (w *World) ClearCombat(_ context.Context, sectorID int64) error {
	if err := w.fail("ClearCombat"); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.Combats, sectorID)
	return nil
}

// DueCombats lists unfinished encounters whose deadline has passed.
func (w *World) DueCombats(_ context.Context, now time.Time, limit int) ([]storage.CombatRecord, error) {
	if err := w.fail("DueCombats"); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var due []storage.CombatRecord
	for _, record := range w.Combats {
		if record.Ended || record.Deadline == nil || record.Deadline.After(now) {
			continue
		}
		due = append(due, record)
		if limit > 0 && len(due) >= limit {
			break
		}
	}
	return due, nil
}

// worldTx stages writes until Commit.
type worldTx struct {
	world *World

	ships     map[string]ship.Ship
	garrisons map[int64]*garrison.Garrison // nil entry marks a delete

	releases []func()
	done     bool
}

var errTxDone = apperrors.New(apperrors.CodeStorageFailure, "transaction already resolved")

// LockSector blocks until this transaction holds the sector's advisory lock.
func (tx *worldTx) LockSector(_ context.Context, sectorID int64) error {
	if tx.done {
		return errTxDone
	}
	if err := tx.world.fail("LockSector"); err != nil {
		return err
	}
	release := tx.world.locks.Acquire(sectorID)
	tx.releases = append(tx.releases, release)
	return nil
}

// ShipForUpdate reads a ship, seeing this transaction's staged writes.
func (tx *worldTx) ShipForUpdate(_ context.Context, shipID string) (ship.Ship, error) {
	if tx.done {
		return ship.Ship{}, errTxDone
	}
	if err := tx.world.fail("ShipForUpdate"); err != nil {
		return ship.Ship{}, err
	}
	if staged, ok := tx.ships[shipID]; ok {
		return staged, nil
	}
	tx.world.mu.Lock()
	defer tx.world.mu.Unlock()
	s, ok := tx.world.Ships[shipID]
	if !ok {
		return ship.Ship{}, storage.ErrNotFound
	}
	return s, nil
}

// GarrisonForUpdate reads the sector's garrison, seeing staged writes.
func (tx *worldTx) GarrisonForUpdate(_ context.Context, sectorID int64) (garrison.Garrison, error) {
	if tx.done {
		return garrison.Garrison{}, errTxDone
	}
	if err := tx.world.fail("GarrisonForUpdate"); err != nil {
		return garrison.Garrison{}, err
	}
	if staged, ok := tx.garrisons[sectorID]; ok {
		if staged == nil {
			return garrison.Garrison{}, storage.ErrNotFound
		}
		return *staged, nil
	}
	tx.world.mu.Lock()
	defer tx.world.mu.Unlock()
	g, ok := tx.world.Garrisons[sectorID]
	if !ok {
		return garrison.Garrison{}, storage.ErrNotFound
	}
	return g, nil
}

// CorporationFor resolves corporation membership.
func (tx *worldTx) CorporationFor(_ context.Context, characterID string) (string, error) {
	if tx.done {
		return "", errTxDone
	}
	if err := tx.world.fail("CorporationFor"); err != nil {
		return "", err
	}
	tx.world.mu.Lock()
	defer tx.world.mu.Unlock()
	return tx.world.CorporationMembers[characterID], nil
}

// UpdateShip stages a ship write.
func (tx *worldTx) UpdateShip(_ context.Context, s ship.Ship) error {
	if tx.done {
		return errTxDone
	}
	if err := tx.world.fail("UpdateShip"); err != nil {
		return err
	}
	tx.ships[s.ID] = s
	return nil
}

// InsertGarrison stages a garrison insert.
func (tx *worldTx) InsertGarrison(_ context.Context, g garrison.Garrison) error {
	if tx.done {
		return errTxDone
	}
	if err := tx.world.fail("InsertGarrison"); err != nil {
		return err
	}
	staged := g
	tx.garrisons[g.SectorID] = &staged
	return nil
}

// UpdateGarrison stages a garrison update.
func (tx *worldTx) UpdateGarrison(_ context.Context, g garrison.Garrison) error {
	if tx.done {
		return errTxDone
	}
	if err := tx.world.fail("UpdateGarrison"); err != nil {
		return err
	}
	staged := g
	tx.garrisons[g.SectorID] = &staged
	return nil
}

// DeleteGarrison stages a garrison delete.
func (tx *worldTx) DeleteGarrison(_ context.Context, sectorID int64) error {
	if tx.done {
		return errTxDone
	}
	if err := tx.world.fail("DeleteGarrison"); err != nil {
		return err
	}
	tx.garrisons[sectorID] = nil
	return nil
}

// Commit applies staged writes and releases held sector locks.
func (tx *worldTx) Commit(_ context.Context) error {
	if tx.done {
		return errTxDone
	}
	if err := tx.world.fail("Commit"); err != nil {
		return err
	}
	tx.world.mu.Lock()
	for id, s := range tx.ships {
		tx.world.Ships[id] = s
	}
	for sectorID, g := range tx.garrisons {
		if g == nil {
			delete(tx.world.Garrisons, sectorID)
			continue
		}
		tx.world.Garrisons[sectorID] = *g
	}
	tx.world.mu.Unlock()
	tx.finish()
	return nil
}

// Rollback discards staged writes. Safe to call after Commit.
func (tx *worldTx) Rollback(_ context.Context) error {
	if tx.done {
		return nil
	}
	tx.finish()
	return nil
}

func (tx *worldTx) finish() {
	tx.done = true
	for _, release := range tx.releases {
		release()
	}
	tx.releases = nil
}
