// Package garrison models deployed fighter forces.
//
// A garrison is a single owner's fighter force attached to exactly one
// sector. It is created by a first deploy, topped up (and reconfigured) by
// later deploys from the same owner, and removed once a collect drains it to
// zero fighters. Ownership never changes in place.
package garrison

import (
	"strconv"
	"time"

	apperrors "github.com/starfall-games/driftspace/internal/platform/errors"
)

// Mode is a garrison's behavioral posture.
type Mode string

const (
	// ModeDefensive garrisons only engage hostiles entering the sector.
	ModeDefensive Mode = "defensive"
	// ModeOffensive garrisons attack all non-owner traffic on sight.
	ModeOffensive Mode = "offensive"
	// ModeToll garrisons charge passing ships and accrue the toll balance.
	ModeToll Mode = "toll"
)

// ParseMode validates a wire-level mode string.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModeDefensive, ModeOffensive, ModeToll:
		return Mode(raw), nil
	default:
		return "", apperrors.WithMetadata(apperrors.CodeInvalidMode,
			"unknown garrison mode", map[string]string{"mode": raw})
	}
}

// Garrison is a deployed fighter force defending or tolling a sector.
type Garrison struct {
	// SectorID locates the garrison; at most one garrison exists per sector.
	SectorID int64
	// OwnerID is the owning actor key, immutable once created.
	OwnerID string
	// Fighters is the deployed force size. Never negative.
	Fighters int
	// Mode is the current posture.
	Mode Mode
	// TollAmount is the per-passage charge, meaningful only in toll mode.
	TollAmount int64
	// TollBalance is the accrued toll income, reset to zero on collection.
	TollBalance int64
	// DeployedAt records when the garrison was first created.
	DeployedAt time.Time
}

// Deploy creates a new garrison from a first fighter drop.
func Deploy(sectorID int64, ownerID string, fighters int, mode Mode, tollAmount int64, now time.Time) Garrison {
	return Garrison{
		SectorID:   sectorID,
		OwnerID:    ownerID,
		Fighters:   fighters,
		Mode:       mode,
		TollAmount: tollAmount,
		DeployedAt: now.UTC(),
	}
}

// TopUp adds fighters and lets the owner reconfigure posture on every deploy.
func (g Garrison) TopUp(quantity int, mode Mode, tollAmount int64) Garrison {
	g.Fighters += quantity
	g.Mode = mode
	g.TollAmount = tollAmount
	return g
}

// Withdraw removes quantity fighters from the garrison.
func (g Garrison) Withdraw(quantity int) (Garrison, error) {
	if quantity > g.Fighters {
		return Garrison{}, apperrors.WithMetadata(
			apperrors.CodeInsufficientFighters,
			"garrison has insufficient fighters",
			map[string]string{
				"sector_id": strconv.FormatInt(g.SectorID, 10),
				"requested": strconv.Itoa(quantity),
				"available": strconv.Itoa(g.Fighters),
			},
		)
	}
	g.Fighters -= quantity
	return g, nil
}

// CollectToll drains the accrued toll balance, returning the payout.
func (g Garrison) CollectToll() (Garrison, int64) {
	payout := g.TollBalance
	g.TollBalance = 0
	return g, payout
}
