package grpc

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// UserServiceName is the service name health checks use for the user API.
const UserServiceName = "user.UserService"

// HealthService exposes grpc.health.v1.Health for the user API.
type HealthService struct {
	server *health.Server
	log    *zap.Logger
}

// NewHealthService creates a health service reporting SERVING for the
// whole server and for UserServiceName.
func NewHealthService(log *zap.Logger) *HealthService {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(UserServiceName, healthpb.HealthCheckResponse_SERVING)

	return &HealthService{server: hs, log: log}
}

// Register attaches the health service to a gRPC server.
func (h *HealthService) Register(s grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(s, h.server)
}

// Shutdown marks every service NOT_SERVING. Later status updates are ignored.
func (h *HealthService) Shutdown() {
	h.server.Shutdown()
	h.log.Info("gRPC health set to NOT_SERVING")
}
