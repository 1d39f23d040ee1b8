package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

// TimeoutConfig bounds every request to timeout, the way the teacher's
// SelectiveTimeoutConfig wraps middleware.TimeoutWithConfig.
func TimeoutConfig(timeout time.Duration) echo.MiddlewareFunc {
	return echomiddleware.TimeoutWithConfig(echomiddleware.TimeoutConfig{
		Timeout: timeout,
	})
}
