package server

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer answers gRPC health probes on a side port so the plugin
// scheduler can gate traffic on liveness without touching the dispatch
// surface.
type HealthServer struct {
	grpc   *grpc.Server
	status *health.Server
}

// NewHealthServer builds the probe server in NOT_SERVING state.
func NewHealthServer() *HealthServer {
	status := health.NewServer()
	status.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, status)

	return &HealthServer{grpc: srv, status: status}
}

// Start listens on addr, flips to SERVING and blocks until Stop.
func (h *HealthServer) Start(addr string, logger zerolog.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	h.status.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	logger.Info().Str("addr", addr).Msg("health server listening")
	return h.grpc.Serve(lis)
}

// Stop marks the probe NOT_SERVING and stops the server gracefully.
func (h *HealthServer) Stop() {
	h.status.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.grpc.GracefulStop()
}
