package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"poolgateway/internal/ratelimit"
	"poolgateway/pkg/models"
)

// RateLimit rejects requests once a client (by X-API-Key header when
// present, otherwise by remote IP) exceeds its token-bucket allowance,
// adapted from the teacher's per-domain workers.RateLimiter.
func RateLimit(limiter *ratelimit.ClientLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()
			if apiKey := c.Request().Header.Get("X-API-Key"); apiKey != "" {
				key = apiKey
			}

			if !limiter.Allow(key) {
				return c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
					Error:   "rate_limit_exceeded",
					Message: "too many requests, slow down",
				})
			}
			return next(c)
		}
	}
}
