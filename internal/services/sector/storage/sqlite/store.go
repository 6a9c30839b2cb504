// Package sqlite provides SQLite-backed sector world persistence.
//
// SQLite serializes writers itself and offers no advisory locks, so this
// backend relies on the in-process sector lock manager for cross-operation
// exclusion. It is suitable for single-instance deployments; multi-instance
// deployments should use the postgres backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/starfall-games/driftspace/internal/platform/storage/sqlitemigrate"
	"github.com/starfall-games/driftspace/internal/services/sector/domain/garrison"
	"github.com/starfall-games/driftspace/internal/services/sector/domain/ship"
	"github.com/starfall-games/driftspace/internal/services/sector/storage"
	"github.com/starfall-games/driftspace/internal/services/sector/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed world persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a sector SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.Apply(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Begin opens a write transaction against the world.
func (s *Store) Begin(ctx context.Context) (storage.WorldTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	sqlTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &worldTx{sqlTx: sqlTx}, nil
}

// GetShip reads a ship snapshot.
func (s *Store) GetShip(ctx context.Context, shipID string) (ship.Ship, error) {
	if err := ctx.Err(); err != nil {
		return ship.Ship{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, current_sector, current_fighters, credits, owner_corporation_id
FROM ships
WHERE id = ?
`, shipID)
	return scanShip(row)
}

// PutShip upserts a ship record.
func (s *Store) PutShip(ctx context.Context, shp ship.Ship) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(shp.ID) == "" {
		return fmt.Errorf("ship id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO ships (id, current_sector, current_fighters, credits, owner_corporation_id)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	current_sector = excluded.current_sector,
	current_fighters = excluded.current_fighters,
	credits = excluded.credits,
	owner_corporation_id = excluded.owner_corporation_id
`,
		shp.ID,
		shp.CurrentSector,
		shp.CurrentFighters,
		shp.Credits,
		shp.OwnerCorporationID,
	)
	if err != nil {
		return fmt.Errorf("put ship: %w", err)
	}
	return nil
}

// GetGarrison reads a garrison snapshot.
func (s *Store) GetGarrison(ctx context.Context, sectorID int64) (garrison.Garrison, error) {
	if err := ctx.Err(); err != nil {
		return garrison.Garrison{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT sector_id, owner_id, fighters, mode, toll_amount, toll_balance, deployed_at
FROM garrisons
WHERE sector_id = ?
`, sectorID)
	return scanGarrison(row)
}

// PutCorporationMember records a character's corporation membership.
func (s *Store) PutCorporationMember(ctx context.Context, characterID, corporationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(characterID) == "" {
		return fmt.Errorf("character id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO corporation_members (character_id, corporation_id)
VALUES (?, ?)
ON CONFLICT(character_id) DO UPDATE SET corporation_id = excluded.corporation_id
`, characterID, corporationID)
	if err != nil {
		return fmt.Errorf("put corporation member: %w", err)
	}
	return nil
}

// CombatForSector returns the sector's stored combat document.
func (s *Store) CombatForSector(ctx context.Context, sectorID int64) (storage.CombatRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.CombatRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT combat_id, sector_id, deadline, ended, document
FROM combats
WHERE sector_id = ?
`, sectorID)
	return scanCombat(row)
}

// CombatByID looks a combat document up by combat ID.
func (s *Store) CombatByID(ctx context.Context, combatID string) (storage.CombatRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.CombatRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT combat_id, sector_id, deadline, ended, document
FROM combats
WHERE combat_id = ?
`, combatID)
	return scanCombat(row)
}

// PutCombat overwrites the sector's combat document.
func (s *Store) PutCombat(ctx context.Context, record storage.CombatRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(record.CombatID) == "" {
		return fmt.Errorf("combat id is required")
	}
	var deadline any
	if record.Deadline != nil {
		deadline = record.Deadline.UTC().UnixMilli()
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO combats (sector_id, combat_id, deadline, ended, document)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(sector_id) DO UPDATE SET
	combat_id = excluded.combat_id,
	deadline = excluded.deadline,
	ended = excluded.ended,
	document = excluded.document
`,
		record.SectorID,
		record.CombatID,
		deadline,
		record.Ended,
		record.Document,
	)
	if err != nil {
		return fmt.Errorf("put combat: %w", err)
	}
	return nil
}

// ClearCombat removes the sector's combat document.
func (s *Store) ClearCombat(ctx context.Context, sectorID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM combats WHERE sector_id = ?`, sectorID); err != nil {
		return fmt.Errorf("clear combat: %w", err)
	}
	return nil
}

// DueCombats lists unfinished combat documents whose deadline has passed.
func (s *Store) DueCombats(ctx context.Context, now time.Time, limit int) ([]storage.CombatRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT combat_id, sector_id, deadline, ended, document
FROM combats
WHERE ended = 0 AND deadline IS NOT NULL AND deadline <= ?
ORDER BY deadline ASC
LIMIT ?
`, now.UTC().UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("list due combats: %w", err)
	}
	defer rows.Close()

	records := make([]storage.CombatRecord, 0, limit)
	for rows.Next() {
		record, err := scanCombatRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due combats: %w", err)
	}
	return records, nil
}

// worldTx wraps a SQLite transaction.
//
// SQLite has a single writer per database, so the *ForUpdate reads need no
// explicit row locks and LockSector is a no-op.
type worldTx struct {
	sqlTx *sql.Tx
}

func (tx *worldTx) LockSector(ctx context.Context, _ int64) error {
	return ctx.Err()
}

func (tx *worldTx) ShipForUpdate(ctx context.Context, shipID string) (ship.Ship, error) {
	if err := ctx.Err(); err != nil {
		return ship.Ship{}, err
	}
	row := tx.sqlTx.QueryRowContext(ctx, `
SELECT id, current_sector, current_fighters, credits, owner_corporation_id
FROM ships
WHERE id = ?
`, shipID)
	return scanShip(row)
}

func (tx *worldTx) GarrisonForUpdate(ctx context.Context, sectorID int64) (garrison.Garrison, error) {
	if err := ctx.Err(); err != nil {
		return garrison.Garrison{}, err
	}
	row := tx.sqlTx.QueryRowContext(ctx, `
SELECT sector_id, owner_id, fighters, mode, toll_amount, toll_balance, deployed_at
FROM garrisons
WHERE sector_id = ?
`, sectorID)
	return scanGarrison(row)
}

func (tx *worldTx) CorporationFor(ctx context.Context, characterID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var corporationID string
	err := tx.sqlTx.QueryRowContext(ctx, `
SELECT corporation_id FROM corporation_members WHERE character_id = ?
`, characterID).Scan(&corporationID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read corporation member: %w", err)
	}
	return corporationID, nil
}

func (tx *worldTx) UpdateShip(ctx context.Context, shp ship.Ship) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := tx.sqlTx.ExecContext(ctx, `
UPDATE ships
SET current_sector = ?, current_fighters = ?, credits = ?, owner_corporation_id = ?
WHERE id = ?
`,
		shp.CurrentSector,
		shp.CurrentFighters,
		shp.Credits,
		shp.OwnerCorporationID,
		shp.ID,
	)
	if err != nil {
		return fmt.Errorf("update ship: %w", err)
	}
	return requireRow(result, "ship", shp.ID)
}

func (tx *worldTx) InsertGarrison(ctx context.Context, g garrison.Garrison) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := tx.sqlTx.ExecContext(ctx, `
INSERT INTO garrisons (sector_id, owner_id, fighters, mode, toll_amount, toll_balance, deployed_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		g.SectorID,
		g.OwnerID,
		g.Fighters,
		string(g.Mode),
		g.TollAmount,
		g.TollBalance,
		g.DeployedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert garrison: %w", err)
	}
	return nil
}

func (tx *worldTx) UpdateGarrison(ctx context.Context, g garrison.Garrison) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := tx.sqlTx.ExecContext(ctx, `
UPDATE garrisons
SET owner_id = ?, fighters = ?, mode = ?, toll_amount = ?, toll_balance = ?, deployed_at = ?
WHERE sector_id = ?
`,
		g.OwnerID,
		g.Fighters,
		string(g.Mode),
		g.TollAmount,
		g.TollBalance,
		g.DeployedAt.UTC().UnixMilli(),
		g.SectorID,
	)
	if err != nil {
		return fmt.Errorf("update garrison: %w", err)
	}
	return requireRow(result, "garrison", fmt.Sprintf("%d", g.SectorID))
}

func (tx *worldTx) DeleteGarrison(ctx context.Context, sectorID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := tx.sqlTx.ExecContext(ctx, `DELETE FROM garrisons WHERE sector_id = ?`, sectorID); err != nil {
		return fmt.Errorf("delete garrison: %w", err)
	}
	return nil
}

func (tx *worldTx) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.sqlTx.Commit()
}

func (tx *worldTx) Rollback(context.Context) error {
	err := tx.sqlTx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShip(row rowScanner) (ship.Ship, error) {
	var shp ship.Ship
	err := row.Scan(
		&shp.ID,
		&shp.CurrentSector,
		&shp.CurrentFighters,
		&shp.Credits,
		&shp.OwnerCorporationID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ship.Ship{}, storage.ErrNotFound
	}
	if err != nil {
		return ship.Ship{}, fmt.Errorf("scan ship: %w", err)
	}
	return shp, nil
}

func scanGarrison(row rowScanner) (garrison.Garrison, error) {
	var g garrison.Garrison
	var mode string
	var deployedAt int64
	err := row.Scan(
		&g.SectorID,
		&g.OwnerID,
		&g.Fighters,
		&mode,
		&g.TollAmount,
		&g.TollBalance,
		&deployedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return garrison.Garrison{}, storage.ErrNotFound
	}
	if err != nil {
		return garrison.Garrison{}, fmt.Errorf("scan garrison: %w", err)
	}
	g.Mode = garrison.Mode(mode)
	g.DeployedAt = time.UnixMilli(deployedAt).UTC()
	return g, nil
}

func scanCombat(row rowScanner) (storage.CombatRecord, error) {
	record, err := scanCombatRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.CombatRecord{}, storage.ErrNotFound
	}
	return record, err
}

func scanCombatRow(row rowScanner) (storage.CombatRecord, error) {
	var record storage.CombatRecord
	var deadline sql.NullInt64
	err := row.Scan(
		&record.CombatID,
		&record.SectorID,
		&deadline,
		&record.Ended,
		&record.Document,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.CombatRecord{}, err
	}
	if err != nil {
		return storage.CombatRecord{}, fmt.Errorf("scan combat: %w", err)
	}
	if deadline.Valid {
		t := time.UnixMilli(deadline.Int64).UTC()
		record.Deadline = &t
	}
	return record, nil
}

func requireRow(result sql.Result, kind, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}

var _ storage.World = (*Store)(nil)
