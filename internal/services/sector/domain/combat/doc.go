// Package combat models the round-based encounter document attached to a
// sector record.
//
// Exactly one live encounter may exist per sector. The document is decoded
// defensively: optional containers default to empty, while a document missing
// its identity fields is rejected outright so corrupt or partially-written
// state never flows into resolution.
//
// The package holds:
//   - the Encounter aggregate and its combatant/action/log records,
//   - the Decode/Encode storage codec,
//   - and the deterministic round resolution math seeded by the encounter's
//     base seed.
package combat
