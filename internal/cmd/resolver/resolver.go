// Package resolver parses resolver command flags and launches the combat
// round resolver runtime.
package resolver

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/starfall-games/driftspace/internal/platform/cmd"
	"github.com/starfall-games/driftspace/internal/services/sector/app"
)

// Config holds resolver command configuration.
type Config struct {
	Port         int           `env:"DRIFTSPACE_RESOLVER_PORT" envDefault:"8091"`
	DatabaseURL  string        `env:"DRIFTSPACE_DATABASE_URL"`
	DBPath       string        `env:"DRIFTSPACE_SECTOR_DB_PATH" envDefault:"data/sector.db"`
	PollInterval time.Duration `env:"DRIFTSPACE_RESOLVER_POLL_INTERVAL" envDefault:"5s"`
	BatchSize    int           `env:"DRIFTSPACE_RESOLVER_BATCH_SIZE" envDefault:"50"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The resolver health gRPC server port")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL connection URL (uses SQLite when empty)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The sector SQLite database path")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Due-combat sweep interval")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Maximum encounters resolved per sweep")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the resolver runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceResolver, func(ctx context.Context) error {
		return app.RunResolver(ctx, app.ResolverRuntimeConfig{
			Port: cfg.Port,
			Storage: app.StorageConfig{
				DatabaseURL: cfg.DatabaseURL,
				DBPath:      cfg.DBPath,
			},
			PollInterval: cfg.PollInterval,
			BatchSize:    cfg.BatchSize,
		})
	})
}
