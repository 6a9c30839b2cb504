package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/starfall-games/driftspace/internal/platform/timeouts"
	"github.com/starfall-games/driftspace/internal/services/sector/app"
	"github.com/starfall-games/driftspace/internal/services/sector/sectorlock"
)

// ServerConfig controls the sector HTTP service runtime.
type ServerConfig struct {
	Port    int
	Storage app.StorageConfig
}

const defaultSectorPort = 8090

// RunServer starts the sector JSON API and blocks until the context is
// canceled or the server fails.
func RunServer(ctx context.Context, cfg ServerConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultSectorPort
	}

	world, closeWorld, err := app.OpenWorld(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeWorld()

	locks := sectorlock.NewManager()
	garrisons := app.NewGarrisonService(world, locks)
	combats := app.NewCombatService(world, locks)
	handler := NewHandler(garrisons, combats)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Printf("sector server listening at %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve sector api: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown sector api: %w", err)
		}
		return nil
	})

	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
