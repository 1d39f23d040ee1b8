package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"poolgateway/pkg/models"
)

// ConcurrencyLimit bounds the number of in-flight requests with a
// buffered-channel semaphore, the same shape as the teacher's
// workerPool chan struct{} in internal/background/manager.go.
func ConcurrencyLimit(limit int) echo.MiddlewareFunc {
	sem := make(chan struct{}, limit)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			default:
				return c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
					Error:     "no_available_browser",
					Message:   "server is at its concurrency limit",
					Timestamp: c.Response().Header().Get("Date"),
				})
			}
			return next(c)
		}
	}
}
