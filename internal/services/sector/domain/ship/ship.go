// Package ship models the ship record mutated by garrison transactions.
//
// Movement and cargo belong to other services; this package only owns the
// fighter-bay and credit arithmetic that deploy/collect operations perform,
// with the guard that fighter counts never go negative.
package ship

import (
	"strconv"

	apperrors "github.com/starfall-games/driftspace/internal/platform/errors"
)

// Ship is a player- or corporation-owned vessel.
type Ship struct {
	// ID is the immutable ship identifier.
	ID string
	// CurrentSector is the sector the ship occupies. Mutated by movement,
	// never by garrison transactions.
	CurrentSector int64
	// CurrentFighters is the fighter complement aboard. Never negative.
	CurrentFighters int
	// Credits is the ship's credit balance. Never negative.
	Credits int64
	// OwnerCorporationID references the owning corporation, empty for
	// player-owned ships.
	OwnerCorporationID string
}

// DeductFighters removes quantity fighters from the bay.
//
// A deduction that would drive the count negative fails the whole operation;
// callers are expected to roll back any surrounding transaction.
func (s Ship) DeductFighters(quantity int) (Ship, error) {
	if quantity > s.CurrentFighters {
		return Ship{}, apperrors.WithMetadata(
			apperrors.CodeInsufficientFighters,
			"ship has insufficient fighters",
			map[string]string{
				"ship_id":   s.ID,
				"requested": strconv.Itoa(quantity),
				"available": strconv.Itoa(s.CurrentFighters),
			},
		)
	}
	s.CurrentFighters -= quantity
	return s, nil
}

// AddFighters returns the ship with quantity fighters added to the bay.
func (s Ship) AddFighters(quantity int) Ship {
	s.CurrentFighters += quantity
	return s
}

// AddCredits returns the ship credited with amount.
func (s Ship) AddCredits(amount int64) Ship {
	s.Credits += amount
	return s
}
