package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-api/internal/adapter/gin/handler"
	"user-api/internal/adapter/gin/middleware"
	"user-api/pkg/ratelimit"
)

// SetupRouter configures and returns a Gin router with all routes and middleware.
// Every route lives under basePath, which may be empty.
func SetupRouter(
	basePath string,
	userHandler *handler.UserHandler,
	healthHandler *handler.HealthHandler,
	limiter *ratelimit.Limiter,
	log *zap.Logger,
) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handler.ErrorResponse{Detail: handler.DetailNotFound})
	})
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, handler.ErrorResponse{
			Detail: fmt.Sprintf("Method %q not allowed.", c.Request.Method),
		})
	})

	api := router.Group(basePath)
	{
		// Health checks are never throttled
		api.GET("/health/", healthHandler.Health)
		api.GET("/ready/", healthHandler.Ready)

		users := api.Group("/users", middleware.RateLimiter(limiter, log))
		{
			users.GET("/", userHandler.ListUsers)
			users.POST("/", userHandler.CreateUser)
			users.GET("/:id/", userHandler.GetUser)
		}
	}

	return router
}
