package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/starfall-games/driftspace/internal/services/sector/storage"
	"github.com/starfall-games/driftspace/internal/services/sector/storage/postgres"
	"github.com/starfall-games/driftspace/internal/services/sector/storage/sqlite"
)

// StorageConfig selects and configures the world storage backend.
type StorageConfig struct {
	// DatabaseURL selects the postgres backend when set.
	DatabaseURL string
	// DBPath is the sqlite file used when DatabaseURL is empty.
	DBPath string
}

const defaultSectorDB = "data/sector.db"

// OpenWorld opens the configured world store.
//
// A postgres URL selects the multi-instance backend; otherwise a local
// SQLite file is used. The returned close function is safe to defer.
func OpenWorld(ctx context.Context, cfg StorageConfig) (storage.World, func(), error) {
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		store, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, store.Close, nil
	}

	path := cfg.DBPath
	if strings.TrimSpace(path) == "" {
		path = defaultSectorDB
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite store: %w", err)
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			log.Printf("close sqlite store: %v", err)
		}
	}
	return store, closeStore, nil
}
