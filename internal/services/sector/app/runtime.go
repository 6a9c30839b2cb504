package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/starfall-games/driftspace/internal/services/sector/sectorlock"
)

// ResolverRuntimeConfig controls resolver startup and loop behavior.
type ResolverRuntimeConfig struct {
	Port         int
	Storage      StorageConfig
	PollInterval time.Duration
	BatchSize    int
}

const defaultResolverPort = 8091

// RunResolver starts resolver runtime dependencies and the background sweep
// loop. A gRPC health endpoint is served so orchestrators can probe the
// process.
func RunResolver(ctx context.Context, cfg ResolverRuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultResolverPort
	}

	world, closeWorld, err := OpenWorld(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeWorld()

	combats := NewCombatService(world, sectorlock.NewManager())
	resolver := NewResolver(combats, ResolverConfig{
		PollInterval: cfg.PollInterval,
		BatchSize:    cfg.BatchSize,
	})

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on resolver port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("resolver.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("resolver server listening at %v", listener.Addr())
	return resolver.Run(ctx)
}
