package routes

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"poolgateway/internal/api/handlers"
	"poolgateway/internal/api/middleware"
	"poolgateway/internal/config"
	"poolgateway/internal/orchestrator"
	"poolgateway/internal/ratelimit"
)

// SetupRoutes wires the global middleware chain and every route this
// service exposes, following the teacher's SetupRoutes(e, cfg, ...) shape
// in cmd/server/main.go.
func SetupRoutes(e *echo.Echo, cfg *config.Config, admin *orchestrator.PoolAdmin, limiter *ratelimit.ClientLimiter) {
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(middleware.CORSConfig())
	e.Use(middleware.RequestValidation())
	e.Use(middleware.TimeoutConfig(cfg.Concurrency.DefaultTimeout))
	e.Use(middleware.ConcurrencyLimit(cfg.Concurrency.LimitConcurrency))
	e.Use(middleware.RateLimit(limiter))

	health := e.Group("/health")
	health.GET("", handlers.HealthHandler)
	health.GET("/ready", handlers.ReadinessHandler)
	health.GET("/live", handlers.LivenessHandler)

	v1 := e.Group("/api/v1")
	v1.POST("/browser-pools", handlers.CreatePoolHandler(admin, cfg))
	v1.GET("/browser-pools/list", handlers.ListPoolsHandler(admin))
	v1.GET("/browser-pools/:pool_id", handlers.GetPoolHandler(admin))
	v1.DELETE("/browser-pools/:pool_id", handlers.DeletePoolHandler(admin))
	v1.PATCH("/browser-pools/:pool_id/scale-up", handlers.ScaleUpHandler(admin))
	v1.PATCH("/browser-pools/:pool_id/scale-down", handlers.ScaleDownHandler(admin))

	v1.GET("/sessions/actions", handlers.ListActionsHandler())
	v1.GET("/sessions/new", handlers.CreateSessionHandler(admin))
	v1.GET("/sessions/:session_id", handlers.GetSessionHandler(admin))
	v1.PATCH("/sessions/close/:session_id", handlers.CloseSessionHandler(admin))
	v1.POST("/sessions/action/:session_id", handlers.PerformActionHandler(admin))

	e.GET("/", handlers.ServiceInfoHandler(admin))
}
