// Package sector parses sector command flags and launches the sector API
// runtime.
package sector

import (
	"context"
	"flag"

	entrypoint "github.com/starfall-games/driftspace/internal/platform/cmd"
	sectorhttp "github.com/starfall-games/driftspace/internal/services/sector/api/http"
	"github.com/starfall-games/driftspace/internal/services/sector/app"
)

// Config holds sector command configuration.
type Config struct {
	Port        int    `env:"DRIFTSPACE_SECTOR_PORT" envDefault:"8090"`
	DatabaseURL string `env:"DRIFTSPACE_DATABASE_URL"`
	DBPath      string `env:"DRIFTSPACE_SECTOR_DB_PATH" envDefault:"data/sector.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The sector HTTP server port")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL connection URL (uses SQLite when empty)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The sector SQLite database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the sector API runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSector, func(ctx context.Context) error {
		return sectorhttp.RunServer(ctx, sectorhttp.ServerConfig{
			Port: cfg.Port,
			Storage: app.StorageConfig{
				DatabaseURL: cfg.DatabaseURL,
				DBPath:      cfg.DBPath,
			},
		})
	})
}
