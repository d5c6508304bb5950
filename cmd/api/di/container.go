package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-api/cmd/api/infrastructure"
	"user-api/internal/adapter/cache"
	"user-api/internal/adapter/db/postgres"
	ginhandler "user-api/internal/adapter/gin/handler"
	grpcadapter "user-api/internal/adapter/grpc"
	"user-api/internal/adapter/repository/cached"
	"user-api/internal/config"
	"user-api/internal/usecase/user"
	"user-api/pkg/ratelimit"
	redisclient "user-api/pkg/redis"
)

// readyTimeout bounds each readiness check
const readyTimeout = 2 * time.Second

// Container holds all application dependencies
type Container struct {
	Config        *config.Config
	Logger        *zap.Logger
	DB            *gorm.DB
	RedisClient   *redisclient.Client
	UserUC        user.UserUsecase
	RateLimiter   *ratelimit.Limiter
	UserHandler   *ginhandler.UserHandler
	HealthHandler *ginhandler.HealthHandler
	GRPCHealth    *grpcadapter.HealthService
}

// NewContainer creates and initializes all application dependencies
func NewContainer(ctx context.Context, cfg *config.Config, l *zap.Logger) (*Container, error) {
	// Validate configuration before initializing any dependencies
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Initialize database
	db, err := infrastructure.NewDatabase(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize Redis client (nil when disabled)
	rdb, err := infrastructure.NewRedisClient(ctx, cfg, l)
	if err != nil {
		_ = infrastructure.CloseDatabase(db)
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	// Interfaces stay untyped nil without Redis
	var (
		userCache cache.UserCache
		scripter  redis.Scripter
	)
	if rdb != nil {
		userCache = cache.NewRedisUserCache(rdb.Client, time.Duration(cfg.Redis.CacheTTL)*time.Second, l)
		scripter = rdb.Client
	}

	// Initialize repository
	dbRepo := postgres.NewUserRepoPG(db, l)
	repo := cached.NewCachedUserRepository(dbRepo, userCache, l)

	// Initialize use case
	userUC := user.New(repo, l)

	// Initialize rate limiter
	rateLimiter := ratelimit.New(scripter, ratelimit.Config{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstCapacity:     cfg.RateLimit.BurstCapacity,
		Enabled:           cfg.RateLimit.Enabled,
	})
	if cfg.RateLimit.Enabled && !rateLimiter.Enabled() {
		l.Warn("rate limiting requested but Redis is disabled, requests will not be throttled")
	}

	// Initialize HTTP handlers
	checks := map[string]ginhandler.Checker{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb != nil {
		checks["redis"] = rdb.Ping
	}

	return &Container{
		Config:        cfg,
		Logger:        l,
		DB:            db,
		RedisClient:   rdb,
		UserUC:        userUC,
		RateLimiter:   rateLimiter,
		UserHandler:   ginhandler.NewUserHandler(userUC, l),
		HealthHandler: ginhandler.NewHealthHandler(checks, readyTimeout, l),
		GRPCHealth:    grpcadapter.NewHealthService(l),
	}, nil
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	var errs []error

	// Close Redis connection
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	// Close database connection
	if c.DB != nil {
		if err := infrastructure.CloseDatabase(c.DB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("container close errors: %v", errs)
	}

	return nil
}
