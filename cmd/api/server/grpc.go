package server

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpcadapter "user-api/internal/adapter/grpc"
	"user-api/internal/adapter/grpc/middleware"
	"user-api/pkg/logger"
	"user-api/pkg/ratelimit"
)

// SetupGRPC creates and configures the gRPC server
func SetupGRPC(health *grpcadapter.HealthService, limiter *ratelimit.Limiter, l *zap.Logger) *grpc.Server {
	// Create gRPC server with request ID and rate limit interceptors
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logger.RequestIDInterceptor(),
			middleware.NewRateLimiter(limiter, l).UnaryInterceptor(),
		),
	)
	health.Register(grpcServer)
	reflection.Register(grpcServer)

	return grpcServer
}
