package combat

import (
	"time"

	"github.com/google/uuid"
)

// Action values a combatant may submit for a round.
const (
	// ActionAttack commits the combatant's fighters against a target.
	ActionAttack = "attack"
	// ActionBrace halves incoming damage for the round. Combatants that
	// submit nothing default to bracing.
	ActionBrace = "brace"
	// ActionFlee withdraws the combatant from the encounter.
	ActionFlee = "flee"
)

// End states recorded when an encounter terminates.
const (
	// EndStateDecided marks an encounter where at most one side still has
	// fighters in the sector.
	EndStateDecided = "decided"
	// EndStateAbandoned marks an administratively cleared encounter.
	EndStateAbandoned = "abandoned"
)

// RoundInterval is how long combatants have to submit actions for a round.
const RoundInterval = 60 * time.Second

// Combatant is one participant's standing state within an encounter.
type Combatant struct {
	// ShipID is the vessel engaged in the encounter, empty for garrisons.
	ShipID string `json:"ship_id,omitempty"`
	// OwnerID is the actor key the combatant fights under.
	OwnerID string `json:"owner_id"`
	// Fighters is the remaining fighter strength.
	Fighters int `json:"fighters"`
	// Fled marks a combatant that has withdrawn from the encounter.
	Fled bool `json:"fled,omitempty"`
}

// RoundAction is a combatant's submitted order for the current round.
type RoundAction struct {
	// Action is one of ActionAttack, ActionBrace, ActionFlee.
	Action string `json:"action"`
	// TargetKey selects the attack target; empty picks the first standing
	// opponent in key order.
	TargetKey string `json:"target_key,omitempty"`
}

// RoundLog summarizes one resolved round.
type RoundLog struct {
	Round  int      `json:"round"`
	Events []string `json:"events"`
}

// Encounter is the durable state of a multi-round combat in a sector.
type Encounter struct {
	// CombatID uniquely identifies the encounter.
	CombatID string `json:"combat_id"`
	// SectorID locates the encounter; one live encounter per sector.
	SectorID int64 `json:"sector_id"`
	// Round starts at 1 and increments on each resolution.
	Round int `json:"round"`
	// Deadline is when the current round resolves; nil once combat ends.
	Deadline *time.Time `json:"deadline,omitempty"`
	// Participants maps combatant keys to their standing state.
	Participants map[string]Combatant `json:"participants"`
	// PendingActions maps combatant keys to orders submitted this round.
	PendingActions map[string]RoundAction `json:"pending_actions"`
	// Logs records past-round summaries in order.
	Logs []RoundLog `json:"logs"`
	// Context carries free-form auxiliary data for resolution hooks.
	Context map[string]any `json:"context"`
	// AwaitingResolution flags an encounter picked up by the resolver.
	AwaitingResolution bool `json:"awaiting_resolution"`
	// Ended marks a terminal encounter; EndState records the cause.
	Ended    bool   `json:"ended"`
	EndState string `json:"end_state,omitempty"`
	// BaseSeed feeds the deterministic resolution rolls.
	BaseSeed int64 `json:"base_seed"`
	// LastUpdated is refreshed on every persist.
	LastUpdated time.Time `json:"last_updated"`
}

// New starts an encounter in a sector at round 1.
func New(sectorID int64, participants map[string]Combatant, baseSeed int64, now time.Time) Encounter {
	deadline := now.UTC().Add(RoundInterval)
	if participants == nil {
		participants = map[string]Combatant{}
	}
	return Encounter{
		CombatID:       uuid.NewString(),
		SectorID:       sectorID,
		Round:          1,
		Deadline:       &deadline,
		Participants:   participants,
		PendingActions: map[string]RoundAction{},
		Logs:           []RoundLog{},
		Context:        map[string]any{},
		BaseSeed:       baseSeed,
	}
}

// Due reports whether the encounter's round deadline has passed.
func (e Encounter) Due(now time.Time) bool {
	return !e.Ended && e.Deadline != nil && !e.Deadline.After(now)
}

// Standing reports how many combatants can still fight.
func (e Encounter) Standing() int {
	count := 0
	for _, p := range e.Participants {
		if p.Fighters > 0 && !p.Fled {
			count++
		}
	}
	return count
}
