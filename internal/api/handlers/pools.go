package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"poolgateway/internal/api"
	"poolgateway/internal/config"
	"poolgateway/internal/driver"
	"poolgateway/internal/orchestrator"
	"poolgateway/internal/poolerr"
	"poolgateway/pkg/models"
)

// CreatePoolHandler handles POST /api/v1/browser-pools.
func CreatePoolHandler(admin *orchestrator.PoolAdmin, cfg *config.Config) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.PoolCreateRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: "bad_params", Message: err.Error(), RequestID: api.RequestIDFrom(c), Timestamp: api.NowRFC3339(),
			})
		}

		poolCfg := buildPoolConfig(req, cfg)

		pool, created, err := admin.CreatePool(poolCfg)
		if err != nil {
			return api.WriteError(c, err)
		}

		if !created {
			return api.WriteError(c, poolerr.New(poolerr.KindPoolAlreadyExists, pool.ID))
		}

		return c.JSON(http.StatusCreated, poolResponse(pool, created))
	}
}

// GetPoolHandler handles GET /api/v1/browser-pools/:pool_id.
func GetPoolHandler(admin *orchestrator.PoolAdmin) echo.HandlerFunc {
	return func(c echo.Context) error {
		poolID := c.Param("pool_id")
		pool, ok := admin.GetPool(poolID)
		if !ok {
			return api.WriteError(c, poolerr.New(poolerr.KindPoolInactive, poolID))
		}
		return c.JSON(http.StatusOK, poolResponse(pool, false))
	}
}

// ListPoolsHandler handles GET /api/v1/browser-pools/list.
func ListPoolsHandler(admin *orchestrator.PoolAdmin) echo.HandlerFunc {
	return func(c echo.Context) error {
		pools := admin.ListPools()
		out := make([]models.PoolResponse, 0, len(pools))
		for _, p := range pools {
			out = append(out, poolResponse(p, false))
		}
		return c.JSON(http.StatusOK, models.PoolListResponse{Pools: out})
	}
}

// DeletePoolHandler handles DELETE /api/v1/browser-pools/:pool_id?force=bool.
// force defaults to false (graceful deletion, §4.5): the pool is marked
// inactive and left to the reaper, existing sessions keep serving. force=true
// closes every browser and removes the pool immediately.
func DeletePoolHandler(admin *orchestrator.PoolAdmin) echo.HandlerFunc {
	return func(c echo.Context) error {
		poolID := c.Param("pool_id")
		ctx := c.Request().Context()
		force := c.QueryParam("force") == "true"
		if err := admin.DeletePool(ctx, poolID, force); err != nil {
			return api.WriteError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// ScaleUpHandler handles PATCH /api/v1/browser-pools/:pool_id/scale-up.
func ScaleUpHandler(admin *orchestrator.PoolAdmin) echo.HandlerFunc {
	return func(c echo.Context) error {
		poolID := c.Param("pool_id")
		ctx := c.Request().Context()
		pool, err := admin.ScaleUp(ctx, poolID)
		if err != nil {
			return api.WriteError(c, err)
		}
		return c.JSON(http.StatusOK, poolResponse(pool, false))
	}
}

// ScaleDownHandler handles PATCH /api/v1/browser-pools/:pool_id/scale-down.
func ScaleDownHandler(admin *orchestrator.PoolAdmin) echo.HandlerFunc {
	return func(c echo.Context) error {
		poolID := c.Param("pool_id")
		ctx := c.Request().Context()
		pool, err := admin.ScaleDown(ctx, poolID)
		if err != nil {
			return api.WriteError(c, err)
		}
		return c.JSON(http.StatusOK, poolResponse(pool, false))
	}
}

// ServiceInfoHandler handles GET / — service identity plus a pool listing.
func ServiceInfoHandler(admin *orchestrator.PoolAdmin) echo.HandlerFunc {
	return func(c echo.Context) error {
		pools := admin.ListPools()
		out := make([]models.PoolResponse, 0, len(pools))
		for _, p := range pools {
			out = append(out, poolResponse(p, false))
		}
		return c.JSON(http.StatusOK, models.ServiceInfoResponse{
			Service: "pool-gateway",
			Status:  "running",
			Pools:   out,
		})
	}
}

func poolResponse(pool *orchestrator.BrowserPool, created bool) models.PoolResponse {
	return models.PoolResponse{
		PoolID:       pool.ID,
		Status:       string(pool.Status()),
		BrowserCount: pool.BrowserCount(),
		TotalPages:   pool.TotalPages(),
		Created:      created,
	}
}

func buildPoolConfig(req models.PoolCreateRequest, cfg *config.Config) orchestrator.PoolConfig {
	poolCfg := orchestrator.PoolConfig{
		MaxBrowsers:        cfg.Pool.MaxBrowsers,
		MinBrowsers:        cfg.Pool.MinBrowsers,
		MaxPagesPerBrowser: cfg.Pool.MaxPagesPerTab,
		BrowserIdleTTL:     cfg.Pool.BrowserIdleTTL,
		PageIdleTTL:        cfg.Pool.PageIdleTTL,
		PageMaxTTL:         cfg.Pool.PageMaxTTL,
		CacheCapacity:      cfg.Pool.CacheCapacity,
		Launch: driver.LaunchConfig{
			Headless:   cfg.Driver.HeadlessMode,
			Stealth:    cfg.Driver.StealthMode,
			UserAgent:  cfg.Driver.UserAgent,
			ChromePath: cfg.Driver.ChromePath,
		},
	}

	if req.MaxBrowsers > 0 {
		poolCfg.MaxBrowsers = req.MaxBrowsers
	}
	if req.MinBrowsers > 0 {
		poolCfg.MinBrowsers = req.MinBrowsers
	}
	if req.MaxPagesPerBrowser > 0 {
		poolCfg.MaxPagesPerBrowser = req.MaxPagesPerBrowser
	}
	if d, err := time.ParseDuration(req.BrowserIdleTTL); err == nil && req.BrowserIdleTTL != "" {
		poolCfg.BrowserIdleTTL = d
	}
	if d, err := time.ParseDuration(req.PageIdleTTL); err == nil && req.PageIdleTTL != "" {
		poolCfg.PageIdleTTL = d
	}
	if d, err := time.ParseDuration(req.PageMaxTTL); err == nil && req.PageMaxTTL != "" {
		poolCfg.PageMaxTTL = d
	}
	if req.UserAgent != "" {
		poolCfg.Launch.UserAgent = req.UserAgent
	}
	if req.Headless != nil {
		poolCfg.Launch.Headless = *req.Headless
	}
	if req.Stealth != nil {
		poolCfg.Launch.Stealth = *req.Stealth
	}

	return poolCfg
}
