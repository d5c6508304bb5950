package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	ginhandler "user-api/internal/adapter/gin/handler"
	ginrouter "user-api/internal/adapter/gin/router"
	"user-api/pkg/ratelimit"
)

// SetupGinServer creates and configures the Gin REST API server
func SetupGinServer(
	basePath string,
	userHandler *ginhandler.UserHandler,
	healthHandler *ginhandler.HealthHandler,
	limiter *ratelimit.Limiter,
	ginAddr string,
	l *zap.Logger,
) *http.Server {
	// Setup Gin router with all middleware and routes
	router := ginrouter.SetupRouter(basePath, userHandler, healthHandler, limiter, l)

	l.Info("Gin REST API configured",
		zap.String("address", ginAddr),
		zap.String("base_path", basePath),
	)

	return &http.Server{
		Addr:              ginAddr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
