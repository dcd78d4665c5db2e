package grpc

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

// Server exposes the standard gRPC health service for orchestrators. Its status follows
// the dependency checks run by Watch.
type Server struct {
	*grpc.Server
	health *health.Server
	checks map[string]Check
	logger *slog.Logger
}

func NewServer(checks map[string]Check, logger *slog.Logger) *Server {
	gs := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	return &Server{Server: gs, health: hs, checks: checks, logger: logger}
}

// Watch re-evaluates the checks every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	s.evaluate(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.evaluate(ctx)
		}
	}
}

func (s *Server) evaluate(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	for name, check := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := check(checkCtx)
		cancel()
		if err != nil {
			s.logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
}

// Shutdown marks the server as not serving before draining it.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.GracefulStop()
}
