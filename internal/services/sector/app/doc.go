// Package app wires the sector core's services together: the garrison
// transaction engine, the combat encounter store, the due-round resolver
// loop, and the runtime bootstrap for both service binaries.
//
// Every mutating operation runs under two exclusion layers: the in-process
// sector lock manager serializes operations within one instance, and the
// storage backend's advisory lock serializes across instances. Operations
// either commit as a unit or roll back completely; no caller-visible error
// state ever corresponds to partially-applied writes.
package app
