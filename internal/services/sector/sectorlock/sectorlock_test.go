package sectorlock

import (
	"sync"
	"testing"
	"time"
)

func TestAcquireUncontested(t *testing.T) {
	m := NewManager()

	release := m.Acquire(7)
	release()

	// The sector must be fully reclaimed once idle.
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tails) != 0 || len(m.queued) != 0 {
		t.Fatalf("lock state not reclaimed: tails=%d queued=%d", len(m.tails), len(m.queued))
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := NewManager()

	release := m.Acquire(7)
	release()
	release()
	release()

	// A second acquisition must still work normally.
	done := make(chan struct{})
	go func() {
		r := m.Acquire(7)
		r()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sector stayed locked after idempotent release")
	}
}

func TestWaitersAdmittedInArrivalOrder(t *testing.T) {
	m := NewManager()

	// Enqueue deterministically, then let each waiter run.
	type waiter struct {
		wait    <-chan struct{}
		release func()
	}
	var queue []waiter
	for i := 0; i < 5; i++ {
		wait, release := m.enqueue(7)
		queue = append(queue, waiter{wait, release})
	}

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 1; i < len(queue); i++ {
		wg.Add(1)
		go func(idx int, w waiter) {
			defer wg.Done()
			<-w.wait
			mu.Lock()
			order = append(order, idx)
			mu.Unlock()
			w.release()
		}(i, queue[i])
	}

	queue[0].release()
	wg.Wait()

	for i, got := range order {
		if got != i+1 {
			t.Fatalf("admission order = %v, want strictly increasing from 1", order)
		}
	}
}

func TestMutualExclusion(t *testing.T) {
	m := NewManager()

	const workers = 32
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := m.Acquire(9)
			defer release()
			// Unsynchronized read-modify-write: only safe under the lock.
			v := counter
			time.Sleep(time.Millisecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Fatalf("counter = %d, want %d (lost update under lock)", counter, workers)
	}
}

func TestSectorsDoNotBlockEachOther(t *testing.T) {
	m := NewManager()

	releaseA := m.Acquire(1)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB := m.Acquire(2)
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sector 2 blocked behind sector 1's lock")
	}
}
