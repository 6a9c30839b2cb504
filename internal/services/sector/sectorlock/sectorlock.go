// Package sectorlock serializes in-process operations against a sector.
//
// Every garrison- or combat-affecting operation acquires the sector's lock
// before opening a database transaction, so two operations on the same sector
// never interleave within one process. Different sectors never block each
// other. This is the first of two exclusion layers; the database-level
// advisory lock covers operations arriving from other processes.
package sectorlock

import "sync"

// Manager hands out per-sector FIFO locks.
//
// The zero value is not usable; construct with NewManager.
type Manager struct {
	mu sync.Mutex
	// tails holds, per sector, the channel the next acquirer must wait on.
	// The channel is closed when its holder releases.
	tails map[int64]chan struct{}
	// queued counts holders plus waiters per sector so map entries can be
	// dropped once a sector goes idle.
	queued map[int64]int
}

// NewManager constructs an empty lock manager.
func NewManager() *Manager {
	return &Manager{
		tails:  make(map[int64]chan struct{}),
		queued: make(map[int64]int),
	}
}

// Acquire blocks until the caller holds exclusive access to the sector and
// returns the release callback.
//
// Waiters are admitted in arrival order. Acquisition itself cannot fail, and
// the returned release is idempotent, but a caller that never releases
// deadlocks the sector permanently: release under defer.
func (m *Manager) Acquire(sectorID int64) (release func()) {
	wait, done := m.enqueue(sectorID)
	if wait != nil {
		<-wait
	}
	return done
}

// enqueue registers a waiter behind the sector's current tail without
// blocking, returning the predecessor's channel (nil when the sector is
// idle) and the release callback.
func (m *Manager) enqueue(sectorID int64) (wait <-chan struct{}, release func()) {
	m.mu.Lock()
	prev, held := m.tails[sectorID]
	next := make(chan struct{})
	m.tails[sectorID] = next
	m.queued[sectorID]++
	m.mu.Unlock()

	var once sync.Once
	release = func() {
		once.Do(func() {
			close(next)
			m.mu.Lock()
			m.queued[sectorID]--
			if m.queued[sectorID] == 0 {
				delete(m.tails, sectorID)
				delete(m.queued, sectorID)
			}
			m.mu.Unlock()
		})
	}

	if !held {
		return nil, release
	}
	return prev, release
}
