package server

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthSidecar is a gRPC server carrying only the health and reflection services.
type HealthSidecar struct {
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

func NewHealthSidecar(logger *slog.Logger) *HealthSidecar {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	// Reflection for grpcurl
	reflection.Register(gs)
	return &HealthSidecar{grpc: gs, health: hs, logger: logger}
}

// SetReady flips the overall serving status.
func (h *HealthSidecar) SetReady(ready bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.logger.Info("grpc.health", "status", status.String())
}

// Serve blocks on lis until ctx is cancelled.
func (h *HealthSidecar) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("grpc.listen", "addr", lis.Addr().String())
		errCh <- h.grpc.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	case <-ctx.Done():
		h.health.Shutdown()
		h.grpc.GracefulStop()
		<-errCh
		return nil
	}
}
