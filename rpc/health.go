package rpc

import (
	"net"

	"github.com/wfunc/picword/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported next to the overall ("") status.
const ServiceName = "picword"

// HealthServer serves the standard gRPC health protocol.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
}

func NewHealthServer(addr string) (*HealthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{server: grpcServer, health: healthServer, listener: listener}, nil
}

func (h *HealthServer) Addr() string {
	return h.listener.Addr().String()
}

// Start marks the service SERVING and blocks serving requests.
func (h *HealthServer) Start() error {
	h.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	h.health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	logger.Log.Infof("gRPC health server listening on %s", h.Addr())
	return h.server.Serve(h.listener)
}

// Stop reports NOT_SERVING to watchers, then stops gracefully.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
