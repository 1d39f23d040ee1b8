package middleware

import (
	"github.com/labstack/echo/v4"

	"poolgateway/pkg/utils"
)

// RequestValidation stamps a request id onto the context and response
// header and enforces a 1MB request body cap, mirroring the teacher's
// internal/api/middleware/validation.go.
func RequestValidation() echo.MiddlewareFunc {
	const maxBodyBytes = 1 << 20

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := utils.GenerateRequestID()
			c.Set("request_id", requestID)
			c.Response().Header().Set("X-Request-ID", requestID)

			if c.Request().ContentLength > maxBodyBytes {
				return c.JSON(413, map[string]string{
					"error":      "request_too_large",
					"message":    "request body exceeds the 1MB limit",
					"request_id": requestID,
				})
			}

			return next(c)
		}
	}
}
