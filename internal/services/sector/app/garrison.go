package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	apperrors "github.com/starfall-games/driftspace/internal/platform/errors"
	"github.com/starfall-games/driftspace/internal/services/sector/domain/garrison"
	"github.com/starfall-games/driftspace/internal/services/sector/domain/ship"
	"github.com/starfall-games/driftspace/internal/services/sector/sectorlock"
	"github.com/starfall-games/driftspace/internal/services/sector/storage"
)

// GarrisonService executes atomic, conflict-checked garrison transactions.
type GarrisonService struct {
	world storage.World
	locks *sectorlock.Manager
	now   func() time.Time
}

// NewGarrisonService constructs the transaction engine over a world store.
//
// The lock manager is shared with every other service mutating sector state
// in this process; passing nil creates a private one, which is only safe
// when no other service runs in the process.
func NewGarrisonService(world storage.World, locks *sectorlock.Manager) *GarrisonService {
	if locks == nil {
		locks = sectorlock.NewManager()
	}
	return &GarrisonService{
		world: world,
		locks: locks,
		now:   time.Now,
	}
}

// WithClock overrides the service clock, for tests.
func (s *GarrisonService) WithClock(now func() time.Time) *GarrisonService {
	if now != nil {
		s.now = now
	}
	return s
}

// LeaveFightersParams are the inputs for a fighter deploy.
type LeaveFightersParams struct {
	SectorID    int64
	CharacterID string
	ShipID      string
	Quantity    int
	Mode        garrison.Mode
	TollAmount  int64
}

// LeaveFightersResult is the committed outcome of a deploy.
type LeaveFightersResult struct {
	CurrentFighters int
	Garrison        garrison.Garrison
}

// LeaveFighters deploys fighters from a ship into its sector's garrison.
//
// A first deploy creates the garrison; later deploys by the same owner top
// it up and may reconfigure its posture. A deploy against another owner's
// garrison fails with an ownership conflict: a sector holds at most one
// owner's garrison at a time.
func (s *GarrisonService) LeaveFighters(ctx context.Context, p LeaveFightersParams) (LeaveFightersResult, error) {
	if p.Quantity <= 0 {
		return LeaveFightersResult{}, apperrors.New(apperrors.CodeInvalidQuantity, "quantity must be greater than zero")
	}
	if _, err := garrison.ParseMode(string(p.Mode)); err != nil {
		return LeaveFightersResult{}, err
	}
	if p.TollAmount < 0 {
		return LeaveFightersResult{}, apperrors.New(apperrors.CodeInvalidTollAmount, "toll amount must not be negative")
	}

	release := s.locks.Acquire(p.SectorID)
	defer release()

	tx, err := s.world.Begin(ctx)
	if err != nil {
		return LeaveFightersResult{}, fmt.Errorf("begin world tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.LockSector(ctx, p.SectorID); err != nil {
		return LeaveFightersResult{}, fmt.Errorf("lock sector %d: %w", p.SectorID, err)
	}

	shp, err := tx.ShipForUpdate(ctx, p.ShipID)
	if errors.Is(err, storage.ErrNotFound) {
		return LeaveFightersResult{}, apperrors.WithMetadata(apperrors.CodeShipNotFound,
			"ship not found", map[string]string{"ship_id": p.ShipID})
	}
	if err != nil {
		return LeaveFightersResult{}, fmt.Errorf("read ship %s: %w", p.ShipID, err)
	}

	ownerID, err := s.resolveOwner(ctx, tx, p.CharacterID, shp)
	if err != nil {
		return LeaveFightersResult{}, err
	}

	existing, err := tx.GarrisonForUpdate(ctx, p.SectorID)
	hasGarrison := true
	if errors.Is(err, storage.ErrNotFound) {
		hasGarrison = false
	} else if err != nil {
		return LeaveFightersResult{}, fmt.Errorf("read garrison for sector %d: %w", p.SectorID, err)
	}

	if hasGarrison && existing.OwnerID != ownerID {
		logGarrisonConflict("leave", p.SectorID, ownerID, existing.OwnerID)
		return LeaveFightersResult{}, apperrors.WithMetadata(apperrors.CodeGarrisonOwnerConflict,
			"sector already holds another owner's garrison", map[string]string{
				"sector_id": strconv.FormatInt(p.SectorID, 10),
				"owner_id":  existing.OwnerID,
			})
	}

	shp, err = shp.DeductFighters(p.Quantity)
	if err != nil {
		return LeaveFightersResult{}, err
	}
	if err := tx.UpdateShip(ctx, shp); err != nil {
		return LeaveFightersResult{}, fmt.Errorf("update ship %s: %w", p.ShipID, err)
	}

	var g garrison.Garrison
	if hasGarrison {
		g = existing.TopUp(p.Quantity, p.Mode, p.TollAmount)
		if err := tx.UpdateGarrison(ctx, g); err != nil {
			return LeaveFightersResult{}, fmt.Errorf("update garrison for sector %d: %w", p.SectorID, err)
		}
	} else {
		g = garrison.Deploy(p.SectorID, ownerID, p.Quantity, p.Mode, p.TollAmount, s.now())
		if err := tx.InsertGarrison(ctx, g); err != nil {
			return LeaveFightersResult{}, fmt.Errorf("insert garrison for sector %d: %w", p.SectorID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return LeaveFightersResult{}, fmt.Errorf("commit leave fighters: %w", err)
	}

	return LeaveFightersResult{CurrentFighters: shp.CurrentFighters, Garrison: g}, nil
}

// CollectFightersParams are the inputs for a fighter collection.
type CollectFightersParams struct {
	SectorID    int64
	CharacterID string
	ShipID      string
	Quantity    int
}

// CollectFightersResult is the committed outcome of a collection.
type CollectFightersResult struct {
	CurrentFighters int
	Credits         int64
	Garrison        garrison.Garrison
	// Removed reports that the collection drained the garrison to zero
	// fighters, deleting it from the sector.
	Removed bool
}

// CollectFighters withdraws fighters from the sector's garrison back onto
// the ship, paying out any accrued toll balance as ship credits.
func (s *GarrisonService) CollectFighters(ctx context.Context, p CollectFightersParams) (CollectFightersResult, error) {
	if p.Quantity <= 0 {
		return CollectFightersResult{}, apperrors.New(apperrors.CodeInvalidQuantity, "quantity must be greater than zero")
	}

	release := s.locks.Acquire(p.SectorID)
	defer release()

	tx, err := s.world.Begin(ctx)
	if err != nil {
		return CollectFightersResult{}, fmt.Errorf("begin world tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.LockSector(ctx, p.SectorID); err != nil {
		return CollectFightersResult{}, fmt.Errorf("lock sector %d: %w", p.SectorID, err)
	}

	shp, err := tx.ShipForUpdate(ctx, p.ShipID)
	if errors.Is(err, storage.ErrNotFound) {
		return CollectFightersResult{}, apperrors.WithMetadata(apperrors.CodeShipNotFound,
			"ship not found", map[string]string{"ship_id": p.ShipID})
	}
	if err != nil {
		return CollectFightersResult{}, fmt.Errorf("read ship %s: %w", p.ShipID, err)
	}

	g, err := tx.GarrisonForUpdate(ctx, p.SectorID)
	if errors.Is(err, storage.ErrNotFound) {
		return CollectFightersResult{}, apperrors.WithMetadata(apperrors.CodeGarrisonNotFound,
			"sector has no garrison", map[string]string{"sector_id": strconv.FormatInt(p.SectorID, 10)})
	}
	if err != nil {
		return CollectFightersResult{}, fmt.Errorf("read garrison for sector %d: %w", p.SectorID, err)
	}

	ownerID, err := s.resolveOwner(ctx, tx, p.CharacterID, shp)
	if err != nil {
		return CollectFightersResult{}, err
	}
	if g.OwnerID != ownerID {
		logGarrisonConflict("collect", p.SectorID, ownerID, g.OwnerID)
		return CollectFightersResult{}, apperrors.WithMetadata(apperrors.CodeGarrisonOwnerConflict,
			"garrison belongs to another owner", map[string]string{
				"sector_id": strconv.FormatInt(p.SectorID, 10),
				"owner_id":  g.OwnerID,
			})
	}

	g, err = g.Withdraw(p.Quantity)
	if err != nil {
		return CollectFightersResult{}, err
	}
	shp = shp.AddFighters(p.Quantity)

	var payout int64
	if g.Mode == garrison.ModeToll {
		g, payout = g.CollectToll()
		shp = shp.AddCredits(payout)
	}

	if err := tx.UpdateShip(ctx, shp); err != nil {
		return CollectFightersResult{}, fmt.Errorf("update ship %s: %w", p.ShipID, err)
	}

	removed := g.Fighters == 0
	if removed {
		if err := tx.DeleteGarrison(ctx, p.SectorID); err != nil {
			return CollectFightersResult{}, fmt.Errorf("delete garrison for sector %d: %w", p.SectorID, err)
		}
	} else {
		if err := tx.UpdateGarrison(ctx, g); err != nil {
			return CollectFightersResult{}, fmt.Errorf("update garrison for sector %d: %w", p.SectorID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return CollectFightersResult{}, fmt.Errorf("commit collect fighters: %w", err)
	}

	return CollectFightersResult{
		CurrentFighters: shp.CurrentFighters,
		Credits:         shp.Credits,
		Garrison:        g,
		Removed:         removed,
	}, nil
}

// resolveOwner maps the acting character to the garrison owner key.
//
// When the ship is corporation-owned and the character is a member of that
// corporation, the corporation is the owner: corpmates manage a shared
// garrison. An outsider flying a corp ship acts under their own key and
// cannot claim the corporation's garrisons.
func (s *GarrisonService) resolveOwner(ctx context.Context, tx storage.WorldTx, characterID string, shp ship.Ship) (string, error) {
	if shp.OwnerCorporationID == "" {
		return characterID, nil
	}
	corporationID, err := tx.CorporationFor(ctx, characterID)
	if err != nil {
		return "", fmt.Errorf("resolve corporation for %s: %w", characterID, err)
	}
	if corporationID == shp.OwnerCorporationID {
		return corporationID, nil
	}
	return characterID, nil
}

// logGarrisonConflict emits a structured log for rejected garrison mutations.
func logGarrisonConflict(op string, sectorID int64, actorID, ownerID string) {
	log.Printf(
		"garrison %s blocked sector_id=%d actor_id=%s owner_id=%s",
		op,
		sectorID,
		actorID,
		ownerID,
	)
}
