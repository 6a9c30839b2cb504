package storage

import (
	"context"
	"time"

	apperrors "github.com/starfall-games/driftspace/internal/platform/errors"
	"github.com/starfall-games/driftspace/internal/services/sector/domain/garrison"
	"github.com/starfall-games/driftspace/internal/services/sector/domain/ship"
)

// ErrNotFound indicates a requested persistence record is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// CombatRecord is the stored shape of a sector's combat document.
//
// Deadline and Ended mirror fields inside Document so due-combat polling can
// filter without decoding every stored encounter; the service layer keeps
// them in sync on every put.
type CombatRecord struct {
	CombatID string
	SectorID int64
	Deadline *time.Time
	Ended    bool
	Document []byte
}

// World is the store adapter backing garrison and combat operations.
type World interface {
	CombatStore

	// Begin opens a transaction. Callers must resolve it with Commit or
	// Rollback; Rollback after Commit is a no-op so it can run under defer.
	Begin(ctx context.Context) (WorldTx, error)

	// GetShip reads a ship snapshot without locking.
	GetShip(ctx context.Context, shipID string) (ship.Ship, error)
	// PutShip upserts a ship record. Used by seeding and movement, not by
	// garrison transactions, which mutate ships through a WorldTx.
	PutShip(ctx context.Context, s ship.Ship) error
	// GetGarrison reads a garrison snapshot without locking.
	GetGarrison(ctx context.Context, sectorID int64) (garrison.Garrison, error)
	// PutCorporationMember records a character's corporation membership.
	PutCorporationMember(ctx context.Context, characterID, corporationID string) error
}

// WorldTx is an open transaction with typed row operations.
//
// Row reads lock the row for the duration of the transaction wherever the
// backend supports it, so concurrent transactions from other processes
// serialize at the database level.
type WorldTx interface {
	// LockSector takes the sector-scoped advisory lock inside this
	// transaction. It may block until the previous holder commits or rolls
	// back; that is the intended backpressure.
	LockSector(ctx context.Context, sectorID int64) error

	// ShipForUpdate reads and locks a ship row. Returns ErrNotFound when absent.
	ShipForUpdate(ctx context.Context, shipID string) (ship.Ship, error)
	// GarrisonForUpdate reads and locks the sector's garrison row.
	// Returns ErrNotFound when the sector has no garrison.
	GarrisonForUpdate(ctx context.Context, sectorID int64) (garrison.Garrison, error)
	// CorporationFor resolves a character's corporation membership; empty
	// when the character belongs to no corporation.
	CorporationFor(ctx context.Context, characterID string) (string, error)

	UpdateShip(ctx context.Context, s ship.Ship) error
	InsertGarrison(ctx context.Context, g garrison.Garrison) error
	UpdateGarrison(ctx context.Context, g garrison.Garrison) error
	DeleteGarrison(ctx context.Context, sectorID int64) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// CombatStore persists the per-sector combat document.
type CombatStore interface {
	// CombatForSector returns the sector's live encounter document.
	// Returns ErrNotFound when the sector has none; absence is a normal state.
	CombatForSector(ctx context.Context, sectorID int64) (CombatRecord, error)
	// CombatByID looks an encounter up by its combat ID.
	CombatByID(ctx context.Context, combatID string) (CombatRecord, error)
	// PutCombat overwrites the sector's combat document in full.
	PutCombat(ctx context.Context, record CombatRecord) error
	// ClearCombat nulls the sector's combat document.
	ClearCombat(ctx context.Context, sectorID int64) error
	// DueCombats lists encounters whose deadline has passed and that have
	// not ended, capped at limit. Ordering is unspecified.
	DueCombats(ctx context.Context, now time.Time, limit int) ([]CombatRecord, error)
}
