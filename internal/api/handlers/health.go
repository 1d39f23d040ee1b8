package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"poolgateway/pkg/models"
)

var startTime = time.Now()

// HealthHandler reports basic liveness.
func HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Uptime:    time.Since(startTime).String(),
	})
}

// ReadinessHandler additionally reports the pool admin's readiness.
func ReadinessHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "ready",
		Timestamp: time.Now(),
		Uptime:    time.Since(startTime).String(),
		Checks:    map[string]string{"pool_admin": "ok"},
	})
}

// LivenessHandler is the minimal process-alive check.
func LivenessHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "alive"})
}
