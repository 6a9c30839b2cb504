// Package storage defines the persistence interfaces for the sector core.
//
// World is the store adapter every garrison and combat operation runs
// against. Mutations happen inside a WorldTx, which exposes the transaction
// bracket plus typed row operations with locking semantics; reads for
// decision-making must go through the ForUpdate variants so no operation
// computes a delta from a stale snapshot.
//
// Implementations live in subpackages: postgres (multi-instance production,
// advisory locks + FOR UPDATE) and sqlite (single-instance deployments that
// rely on the in-process sector lock).
//
// # Error Types
//
//   - ErrNotFound: a requested record is missing. Callers use this to
//     differentiate legitimate "no such entity" states from storage faults.
package storage
