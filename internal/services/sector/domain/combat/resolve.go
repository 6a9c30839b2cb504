package combat

import (
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// ResolveRound applies the pending actions for the current round and advances
// the encounter.
//
// Resolution is deterministic: rolls derive from the encounter's base seed and
// the round number, and combatants act in key order against the fighter counts
// they held at the start of the round. Combatants that submitted nothing
// brace. The encounter ends when fewer than two combatants are standing.
func ResolveRound(enc Encounter, now time.Time) Encounter {
	if enc.Ended {
		return enc
	}

	rng := rand.New(rand.NewSource(enc.BaseSeed + int64(enc.Round)))

	keys := make([]string, 0, len(enc.Participants))
	for key := range enc.Participants {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// Effective action per standing combatant. Resolved before any damage so
	// a brace protects against attacks rolled later in key order too.
	actions := make(map[string]RoundAction, len(keys))
	for _, key := range keys {
		p := enc.Participants[key]
		if p.Fled || p.Fighters <= 0 {
			continue
		}
		action, ok := enc.PendingActions[key]
		if !ok || action.Action == "" {
			action = RoundAction{Action: ActionBrace}
		}
		actions[key] = action
	}

	// Damage is computed against round-start fighter counts; order of attack
	// rolls affects only the dice, never who can act.
	startFighters := make(map[string]int, len(keys))
	for _, key := range keys {
		startFighters[key] = enc.Participants[key].Fighters
	}

	damage := make(map[string]int, len(keys))
	var events []string

	for _, key := range keys {
		action, ok := actions[key]
		if !ok {
			continue
		}
		switch action.Action {
		case ActionFlee:
			p := enc.Participants[key]
			p.Fled = true
			enc.Participants[key] = p
			events = append(events, fmt.Sprintf("%s fled the sector", key))
		case ActionAttack:
			target := pickTarget(keys, actions, key, action.TargetKey)
			if target == "" {
				events = append(events, fmt.Sprintf("%s found no target", key))
				continue
			}
			roll := 1 + rng.Intn(startFighters[key])
			if actions[target].Action == ActionBrace {
				roll = (roll + 1) / 2
			}
			damage[target] += roll
			events = append(events, fmt.Sprintf("%s hit %s for %d fighters", key, target, roll))
		default:
			events = append(events, fmt.Sprintf("%s braced for impact", key))
		}
	}

	for key, dmg := range damage {
		p := enc.Participants[key]
		p.Fighters -= dmg
		if p.Fighters < 0 {
			p.Fighters = 0
		}
		enc.Participants[key] = p
	}

	enc.Logs = append(enc.Logs, RoundLog{Round: enc.Round, Events: events})
	enc.Round++
	enc.PendingActions = map[string]RoundAction{}
	enc.AwaitingResolution = false

	if enc.Standing() < 2 {
		enc.Ended = true
		enc.EndState = EndStateDecided
		enc.Deadline = nil
		return enc
	}

	deadline := now.UTC().Add(RoundInterval)
	enc.Deadline = &deadline
	return enc
}

// pickTarget selects an attack target: the requested key when it can still be
// hit, otherwise the first other standing combatant in key order.
func pickTarget(keys []string, actions map[string]RoundAction, attacker, requested string) string {
	isStanding := func(key string) bool {
		_, ok := actions[key]
		return ok && actions[key].Action != ActionFlee
	}
	if requested != "" && requested != attacker && isStanding(requested) {
		return requested
	}
	for _, key := range keys {
		if key != attacker && isStanding(key) {
			return key
		}
	}
	return ""
}
