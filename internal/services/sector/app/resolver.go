package app

import (
	"context"
	"log"
	"time"

	"github.com/starfall-games/driftspace/internal/platform/timeouts"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultBatchSize    = 50
)

// ResolverConfig controls the due-combat sweep loop.
type ResolverConfig struct {
	// PollInterval is how often the resolver scans for due rounds.
	PollInterval time.Duration
	// BatchSize caps how many encounters one sweep picks up.
	BatchSize int
}

func (c ResolverConfig) normalized() ResolverConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	return c
}

// Resolver drives overdue combat rounds forward in the background.
type Resolver struct {
	combats *CombatService
	cfg     ResolverConfig
	now     func() time.Time
}

// NewResolver constructs the background round resolver.
func NewResolver(combats *CombatService, cfg ResolverConfig) *Resolver {
	return &Resolver{
		combats: combats,
		cfg:     cfg.normalized(),
		now:     time.Now,
	}
}

// WithClock overrides the resolver clock, for tests.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	if now != nil {
		r.now = now
	}
	return r
}

// Run sweeps for due rounds until the context is canceled.
//
// Sweep errors are logged and do not stop the loop; a transient storage
// outage must not kill the resolver.
func (r *Resolver) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				log.Printf("resolver sweep failed: %v", err)
			}
		}
	}
}

// RunOnce performs a single sweep and reports how many rounds it resolved.
//
// Each encounter resolves under its own deadline so one stuck sector cannot
// starve the rest of the batch.
func (r *Resolver) RunOnce(ctx context.Context) (int, error) {
	now := r.now()
	due, err := r.combats.ListDueCombats(ctx, now, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, enc := range due {
		resolveCtx, cancel := context.WithTimeout(ctx, timeouts.Resolve)
		err := r.combats.ResolveSector(resolveCtx, enc.SectorID, now)
		cancel()
		if err != nil {
			log.Printf("resolve combat failed sector_id=%d combat_id=%s err=%v", enc.SectorID, enc.CombatID, err)
			continue
		}
		resolved++
	}
	return resolved, nil
}
