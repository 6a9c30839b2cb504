// Package postgres provides PostgreSQL-backed sector world persistence.
//
// This backend supplies the database half of the two-layer exclusion model:
// LockSector takes a transaction-scoped advisory lock and the *ForUpdate
// reads lock rows with SELECT ... FOR UPDATE, so transactions from other
// service instances serialize at the database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/starfall-games/driftspace/internal/services/sector/domain/garrison"
	"github.com/starfall-games/driftspace/internal/services/sector/domain/ship"
	"github.com/starfall-games/driftspace/internal/services/sector/storage"
)

// Store provides PostgreSQL-backed world persistence.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL and ensures the world schema exists.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := &Store{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ships (
			id TEXT PRIMARY KEY,
			current_sector BIGINT NOT NULL,
			current_fighters INTEGER NOT NULL,
			credits BIGINT NOT NULL,
			owner_corporation_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS garrisons (
			sector_id BIGINT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			fighters INTEGER NOT NULL,
			mode TEXT NOT NULL,
			toll_amount BIGINT NOT NULL DEFAULT 0,
			toll_balance BIGINT NOT NULL DEFAULT 0,
			deployed_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS corporation_members (
			character_id TEXT PRIMARY KEY,
			corporation_id TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS combats (
			sector_id BIGINT PRIMARY KEY,
			combat_id TEXT NOT NULL UNIQUE,
			deadline TIMESTAMPTZ,
			ended BOOLEAN NOT NULL DEFAULT FALSE,
			document JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_combats_due ON combats (ended, deadline)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}

// Begin opens a world transaction.
func (s *Store) Begin(ctx context.Context) (storage.WorldTx, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	pgxTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &worldTx{pgxTx: pgxTx}, nil
}

// GetShip reads a ship snapshot without locking.
func (s *Store) GetShip(ctx context.Context, shipID string) (ship.Ship, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, current_sector, current_fighters, credits, owner_corporation_id
FROM ships
WHERE id = $1
`, shipID)
	return scanShip(row)
}

// PutShip upserts a ship record.
func (s *Store) PutShip(ctx context.Context, shp ship.Ship) error {
	if strings.TrimSpace(shp.ID) == "" {
		return fmt.Errorf("ship id is required")
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO ships (id, current_sector, current_fighters, credits, owner_corporation_id)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
	current_sector = EXCLUDED.current_sector,
	current_fighters = EXCLUDED.current_fighters,
	credits = EXCLUDED.credits,
	owner_corporation_id = EXCLUDED.owner_corporation_id
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

// GetGarrison reads a garrison snapshot without locking.
func (s *Store) GetGarrison(ctx context.Context, sectorID int64) (garrison.Garrison, error) {
	row := s.pool.QueryRow(ctx, `
SELECT sector_id, owner_id, fighters, mode, toll_amount, toll_balance, deployed_at
FROM garrisons
WHERE sector_id = $1
`, sectorID)
	return scanGarrison(row)
}

// PutCorporationMember records a character's corporation membership.
func (s *Store) PutCorporationMember(ctx context.Context, characterID, corporationID string) error {
	if strings.TrimSpace(characterID) == "" {
		return fmt.Errorf("character id is required")
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO corporation_members (character_id, corporation_id)
VALUES ($1, $2)
ON CONFLICT (character_id) DO UPDATE SET corporation_id = EXCLUDED.corporation_id
`, characterID, corporationID)
	if err != nil {
		return fmt.Errorf("put corporation member: %w", err)
	}
	return nil
}

// CombatForSector returns the sector's stored combat document.
func (s *Store) CombatForSector(ctx context.Context, sectorID int64) (storage.CombatRecord, error) {
	row := s.pool.QueryRow(ctx, `
SELECT combat_id, sector_id, deadline, ended, document
FROM combats
WHERE sector_id = $1
`, sectorID)
	return scanCombat(row)
}

// CombatByID looks a combat document up by combat ID.
func (s *Store) CombatByID(ctx context.Context, combatID string) (storage.CombatRecord, error) {
	row := s.pool.QueryRow(ctx, `
SELECT combat_id, sector_id, deadline, ended, document
FROM combats
WHERE combat_id = $1
`, combatID)
	return scanCombat(row)
}

// PutCombat overwrites the sector's combat document.
func (s *Store) PutCombat(ctx context.Context, record storage.CombatRecord) error {
	if strings.TrimSpace(record.CombatID) == "" {
		return fmt.Errorf("combat id is required")
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO combats (sector_id, combat_id, deadline, ended, document)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (sector_id) DO UPDATE SET
	combat_id = EXCLUDED.combat_id,
	deadline = EXCLUDED.deadline,
	ended = EXCLUDED.ended,
	document = EXCLUDED.document
`,
		record.SectorID,
		record.CombatID,
		record.Deadline,
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
	if _, err := s.pool.Exec(ctx, `DELETE FROM combats WHERE sector_id = $1`, sectorID); err != nil {
		return fmt.Errorf("clear combat: %w", err)
	}
	return nil
}

// DueCombats lists unfinished combat documents whose deadline has passed.
func (s *Store) DueCombats(ctx context.Context, now time.Time, limit int) ([]storage.CombatRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.pool.Query(ctx, `
SELECT combat_id, sector_id, deadline, ended, document
FROM combats
WHERE ended = FALSE AND deadline IS NOT NULL AND deadline <= $1
ORDER BY deadline ASC
LIMIT $2
`, now.UTC(), limit)
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

// worldTx wraps a pgx transaction with row-locking reads.
type worldTx struct {
	pgxTx pgx.Tx
}

// LockSector takes the sector's transaction-scoped advisory lock. The lock
// releases automatically on commit or rollback.
func (tx *worldTx) LockSector(ctx context.Context, sectorID int64) error {
	if _, err := tx.pgxTx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, sectorID); err != nil {
		return fmt.Errorf("advisory lock sector: %w", err)
	}
	return nil
}

func (tx *worldTx) ShipForUpdate(ctx context.Context, shipID string) (ship.Ship, error) {
	row := tx.pgxTx.QueryRow(ctx, `
SELECT id, current_sector, current_fighters, credits, owner_corporation_id
FROM ships
WHERE id = $1
FOR UPDATE
`, shipID)
	return scanShip(row)
}

func (tx *worldTx) GarrisonForUpdate(ctx context.Context, sectorID int64) (garrison.Garrison, error) {
	row := tx.pgxTx.QueryRow(ctx, `
SELECT sector_id, owner_id, fighters, mode, toll_amount, toll_balance, deployed_at
FROM garrisons
WHERE sector_id = $1
FOR UPDATE
`, sectorID)
	return scanGarrison(row)
}

func (tx *worldTx) CorporationFor(ctx context.Context, characterID string) (string, error) {
	var corporationID string
	err := tx.pgxTx.QueryRow(ctx, `
SELECT corporation_id FROM corporation_members WHERE character_id = $1
`, characterID).Scan(&corporationID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read corporation member: %w", err)
	}
	return corporationID, nil
}

func (tx *worldTx) UpdateShip(ctx context.Context, shp ship.Ship) error {
	tag, err := tx.pgxTx.Exec(ctx, `
UPDATE ships
SET current_sector = $1, current_fighters = $2, credits = $3, owner_corporation_id = $4
WHERE id = $5
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
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ship %s: %w", shp.ID, storage.ErrNotFound)
	}
	return nil
}

func (tx *worldTx) InsertGarrison(ctx context.Context, g garrison.Garrison) error {
	_, err := tx.pgxTx.Exec(ctx, `
INSERT INTO garrisons (sector_id, owner_id, fighters, mode, toll_amount, toll_balance, deployed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`,
		g.SectorID,
		g.OwnerID,
		g.Fighters,
		string(g.Mode),
		g.TollAmount,
		g.TollBalance,
		g.DeployedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert garrison: %w", err)
	}
	return nil
}

func (tx *worldTx) UpdateGarrison(ctx context.Context, g garrison.Garrison) error {
	tag, err := tx.pgxTx.Exec(ctx, `
UPDATE garrisons
SET owner_id = $1, fighters = $2, mode = $3, toll_amount = $4, toll_balance = $5, deployed_at = $6
WHERE sector_id = $7
`,
		g.OwnerID,
		g.Fighters,
		string(g.Mode),
		g.TollAmount,
		g.TollBalance,
		g.DeployedAt.UTC(),
		g.SectorID,
	)
	if err != nil {
		return fmt.Errorf("update garrison: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("garrison %d: %w", g.SectorID, storage.ErrNotFound)
	}
	return nil
}

func (tx *worldTx) DeleteGarrison(ctx context.Context, sectorID int64) error {
	if _, err := tx.pgxTx.Exec(ctx, `DELETE FROM garrisons WHERE sector_id = $1`, sectorID); err != nil {
		return fmt.Errorf("delete garrison: %w", err)
	}
	return nil
}

func (tx *worldTx) Commit(ctx context.Context) error {
	return tx.pgxTx.Commit(ctx)
}

func (tx *worldTx) Rollback(ctx context.Context) error {
	err := tx.pgxTx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func scanShip(row pgx.Row) (ship.Ship, error) {
	var shp ship.Ship
	err := row.Scan(
		&shp.ID,
		&shp.CurrentSector,
		&shp.CurrentFighters,
		&shp.Credits,
		&shp.OwnerCorporationID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ship.Ship{}, storage.ErrNotFound
	}
	if err != nil {
		return ship.Ship{}, fmt.Errorf("scan ship: %w", err)
	}
	return shp, nil
}

func scanGarrison(row pgx.Row) (garrison.Garrison, error) {
	var g garrison.Garrison
	var mode string
	err := row.Scan(
		&g.SectorID,
		&g.OwnerID,
		&g.Fighters,
		&mode,
		&g.TollAmount,
		&g.TollBalance,
		&g.DeployedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return garrison.Garrison{}, storage.ErrNotFound
	}
	if err != nil {
		return garrison.Garrison{}, fmt.Errorf("scan garrison: %w", err)
	}
	g.Mode = garrison.Mode(mode)
	g.DeployedAt = g.DeployedAt.UTC()
	return g, nil
}

func scanCombat(row pgx.Row) (storage.CombatRecord, error) {
	record, err := scanCombatRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.CombatRecord{}, storage.ErrNotFound
	}
	return record, err
}

func scanCombatRow(row pgx.Row) (storage.CombatRecord, error) {
	var record storage.CombatRecord
	err := row.Scan(
		&record.CombatID,
		&record.SectorID,
		&record.Deadline,
		&record.Ended,
		&record.Document,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.CombatRecord{}, err
	}
	if err != nil {
		return storage.CombatRecord{}, fmt.Errorf("scan combat: %w", err)
	}
	if record.Deadline != nil {
		t := record.Deadline.UTC()
		record.Deadline = &t
	}
	return record, nil
}

var _ storage.World = (*Store)(nil)
