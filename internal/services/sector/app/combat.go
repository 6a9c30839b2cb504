package app

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	apperrors "github.com/starfall-games/driftspace/internal/platform/errors"
	"github.com/starfall-games/driftspace/internal/platform/random"
	"github.com/starfall-games/driftspace/internal/services/sector/domain/combat"
	"github.com/starfall-games/driftspace/internal/services/sector/sectorlock"
	"github.com/starfall-games/driftspace/internal/services/sector/storage"
)

// CombatService manages the per-sector combat encounter documents.
type CombatService struct {
	store storage.CombatStore
	locks *sectorlock.Manager
	now   func() time.Time
}

// NewCombatService constructs a combat store service.
func NewCombatService(store storage.CombatStore, locks *sectorlock.Manager) *CombatService {
	if locks == nil {
		locks = sectorlock.NewManager()
	}
	return &CombatService{
		store: store,
		locks: locks,
		now:   time.Now,
	}
}

// WithClock overrides the service clock, for tests.
func (s *CombatService) WithClock(now func() time.Time) *CombatService {
	if now != nil {
		s.now = now
	}
	return s
}

// StartCombat opens a new encounter in the sector.
//
// A sector carries at most one live encounter; starting over an unfinished
// one fails with a conflict. An ended encounter left in storage is replaced.
func (s *CombatService) StartCombat(ctx context.Context, sectorID int64, participants map[string]combat.Combatant) (combat.Encounter, error) {
	release := s.locks.Acquire(sectorID)
	defer release()

	existing, err := s.CombatForSector(ctx, sectorID)
	if err != nil {
		return combat.Encounter{}, err
	}
	if existing != nil && !existing.Ended {
		return combat.Encounter{}, apperrors.WithMetadata(apperrors.CodeCombatActive,
			"sector already has a live encounter", map[string]string{
				"sector_id": strconv.FormatInt(sectorID, 10),
				"combat_id": existing.CombatID,
			})
	}

	seed, err := random.NewSeed()
	if err != nil {
		return combat.Encounter{}, apperrors.Wrap(apperrors.CodeUnknown, "generate combat seed", err)
	}

	enc := combat.New(sectorID, participants, seed, s.now())
	if err := s.persist(ctx, enc); err != nil {
		return combat.Encounter{}, err
	}
	return enc, nil
}

// SubmitAction records a combatant's order for the current round.
func (s *CombatService) SubmitAction(ctx context.Context, sectorID int64, combatantKey string, action combat.RoundAction) (combat.Encounter, error) {
	release := s.locks.Acquire(sectorID)
	defer release()

	enc, err := s.CombatForSector(ctx, sectorID)
	if err != nil {
		return combat.Encounter{}, err
	}
	if enc == nil || enc.Ended {
		return combat.Encounter{}, apperrors.WithMetadata(apperrors.CodeCombatNotFound,
			"sector has no live encounter", map[string]string{"sector_id": strconv.FormatInt(sectorID, 10)})
	}
	p, ok := enc.Participants[combatantKey]
	if !ok || p.Fled || p.Fighters <= 0 {
		return combat.Encounter{}, apperrors.WithMetadata(apperrors.CodeCombatNotFound,
			"combatant is not standing in this encounter", map[string]string{
				"combat_id":     enc.CombatID,
				"combatant_key": combatantKey,
			})
	}

	enc.PendingActions[combatantKey] = action
	if err := s.persist(ctx, *enc); err != nil {
		return combat.Encounter{}, err
	}
	return *enc, nil
}

// CombatForSector returns the sector's stored encounter, nil when absent.
//
// A document that fails to decode propagates as a malformed-combat error;
// corruption is never silently treated as absence.
func (s *CombatService) CombatForSector(ctx context.Context, sectorID int64) (*combat.Encounter, error) {
	record, err := s.store.CombatForSector(ctx, sectorID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageFailure, "read combat document", err)
	}
	enc, err := combat.Decode(record.Document)
	if err != nil {
		return nil, err
	}
	return &enc, nil
}

// CombatByID returns an encounter by combat ID, nil when absent.
func (s *CombatService) CombatByID(ctx context.Context, combatID string) (*combat.Encounter, error) {
	record, err := s.store.CombatByID(ctx, combatID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageFailure, "read combat document", err)
	}
	enc, err := combat.Decode(record.Document)
	if err != nil {
		return nil, err
	}
	return &enc, nil
}

// PersistCombat serializes and stores an encounter under its sector key.
func (s *CombatService) PersistCombat(ctx context.Context, enc combat.Encounter) error {
	release := s.locks.Acquire(enc.SectorID)
	defer release()
	return s.persist(ctx, enc)
}

// persist stores the encounter. Callers hold the sector lock.
func (s *CombatService) persist(ctx context.Context, enc combat.Encounter) error {
	raw, err := combat.Encode(enc, s.now())
	if err != nil {
		return err
	}
	record := storage.CombatRecord{
		CombatID: enc.CombatID,
		SectorID: enc.SectorID,
		Deadline: enc.Deadline,
		Ended:    enc.Ended,
		Document: raw,
	}
	if err := s.store.PutCombat(ctx, record); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, "put combat document", err)
	}
	return nil
}

// ClearCombat marks the sector's encounter abandoned and removes it.
func (s *CombatService) ClearCombat(ctx context.Context, sectorID int64) error {
	release := s.locks.Acquire(sectorID)
	defer release()

	enc, err := s.CombatForSector(ctx, sectorID)
	if err != nil && !errors.Is(err, combat.ErrMalformed) {
		return err
	}
	if enc == nil && err == nil {
		return apperrors.WithMetadata(apperrors.CodeCombatNotFound,
			"sector has no encounter", map[string]string{"sector_id": strconv.FormatInt(sectorID, 10)})
	}
	if err := s.store.ClearCombat(ctx, sectorID); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, "clear combat document", err)
	}
	if enc != nil && !enc.Ended {
		log.Printf("combat abandoned sector_id=%d combat_id=%s round=%d", sectorID, enc.CombatID, enc.Round)
	}
	return nil
}

// ListDueCombats decodes the encounters whose round deadline has passed.
//
// Malformed documents are logged and skipped so one corrupt row cannot stall
// the resolver sweep.
func (s *CombatService) ListDueCombats(ctx context.Context, now time.Time, limit int) ([]combat.Encounter, error) {
	records, err := s.store.DueCombats(ctx, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageFailure, "list due combats", err)
	}
	due := make([]combat.Encounter, 0, len(records))
	for _, record := range records {
		enc, err := combat.Decode(record.Document)
		if err != nil {
			log.Printf("skipping malformed combat sector_id=%d combat_id=%s err=%v", record.SectorID, record.CombatID, err)
			continue
		}
		due = append(due, enc)
	}
	return due, nil
}

// ResolveSector resolves the sector's due round under the sector lock.
//
// The encounter is re-read after the lock is held: a concurrent submit or
// clear between listing and locking must not be overwritten with stale state.
func (s *CombatService) ResolveSector(ctx context.Context, sectorID int64, now time.Time) error {
	release := s.locks.Acquire(sectorID)
	defer release()

	enc, err := s.CombatForSector(ctx, sectorID)
	if err != nil {
		return err
	}
	if enc == nil || !enc.Due(now) {
		return nil
	}

	resolved := combat.ResolveRound(*enc, now)
	if err := s.persist(ctx, resolved); err != nil {
		return err
	}
	if resolved.Ended {
		log.Printf("combat decided sector_id=%d combat_id=%s rounds=%d", sectorID, resolved.CombatID, resolved.Round-1)
	}
	return nil
}
