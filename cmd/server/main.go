package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"poolgateway/internal/api/routes"
	"poolgateway/internal/config"
	"poolgateway/internal/driver"
	"poolgateway/internal/logging"
	"poolgateway/internal/orchestrator"
	"poolgateway/internal/ratelimit"
	"poolgateway/internal/snapshot"
)

func main() {
	cfg, err := config.LoadConfig("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logging.InitializeLogging(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseLogging()

	logger := logging.GetGlobalLogger()
	logger.Info("Starting pool gateway service")

	var snapStore snapshot.Store
	if cfg.Snapshot.Backend == "redis" {
		redisStore, err := snapshot.NewRedisStore(cfg, logger)
		if err != nil {
			logger.Error("Failed to initialize redis snapshot store, falling back to memory", map[string]interface{}{"error": err.Error()})
			snapStore = snapshot.NewMemoryStore(cfg.Snapshot.TTL)
		} else {
			snapStore = redisStore
		}
	} else {
		snapStore = snapshot.NewMemoryStore(cfg.Snapshot.TTL)
	}

	rodDriver := driver.NewRodDriver()
	admin := orchestrator.NewPoolAdmin(rodDriver, logger).WithSnapshotStore(snapStore)

	thresholds := orchestrator.AutoscaleThresholds{
		ScaleUpLoadRatio:   cfg.Autoscale.ScaleUpLoadRatio,
		ScaleUpCPURatio:    cfg.Autoscale.ScaleUpCPURatio,
		ScaleDownLoadRatio: cfg.Autoscale.ScaleDownLoadRatio,
		ScaleDownCPURatio:  cfg.Autoscale.ScaleDownCPURatio,
	}
	scheduler := orchestrator.NewScheduler(admin, thresholds, cfg.BackgroundTasks.ReapInterval, cfg.BackgroundTasks.ScalingInterval, logger)

	ctx, cancelScheduler := context.WithCancel(context.Background())
	scheduler.Start(ctx)
	defer func() {
		cancelScheduler()
		scheduler.Stop()
	}()

	limiter := ratelimit.New(cfg.Concurrency.RateLimit, cfg.Concurrency.RateLimitWindow)
	defer limiter.Stop()

	e := echo.New()
	routes.SetupRoutes(e, cfg, admin, limiter)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		logger.Info("Stopping HTTP server...")
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", map[string]interface{}{"error": err.Error()})
		}

		logger.Info("Stopping background scheduler...")
		cancelScheduler()
		scheduler.Stop()

		logger.Info("Draining pools...")
		for _, pool := range admin.ListPools() {
			if err := admin.DeletePool(shutdownCtx, pool.ID, true); err != nil {
				logger.Error("Error deleting pool during shutdown", map[string]interface{}{"pool_id": pool.ID, "error": err.Error()})
			}
		}

		logger.Info("Server shutdown complete")
	}()

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Starting HTTP server", map[string]interface{}{"address": address})

	if err := e.Start(address); err != nil {
		logger.Info("HTTP server stopped", map[string]interface{}{"reason": err.Error()})
	}
}
