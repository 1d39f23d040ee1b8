// Package api wires the Echo-based HTTP facade: the sole translator from
// the core's error kinds to HTTP status codes.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"poolgateway/internal/poolerr"
	"poolgateway/pkg/models"
	"poolgateway/pkg/utils"
)

// StatusForKind is the single status-code mapping table for the service;
// nothing else in the codebase should branch on poolerr.Kind to pick an
// HTTP status.
func StatusForKind(kind poolerr.Kind) int {
	switch kind {
	case poolerr.KindPoolInactive:
		return http.StatusForbidden
	case poolerr.KindPoolAlreadyExists:
		return http.StatusConflict
	case poolerr.KindNoAvailableBrowser:
		return http.StatusServiceUnavailable
	case poolerr.KindTimeout:
		return http.StatusRequestTimeout
	case poolerr.KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case poolerr.KindInvalidSessionID, poolerr.KindBadParams:
		return http.StatusBadRequest
	case poolerr.KindPageSessionNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as the uniform ErrorResponse envelope, mapping a
// *poolerr.Error to its status via StatusForKind and anything else to 500.
func WriteError(c echo.Context, err error) error {
	requestID, _ := c.Get("request_id").(string)

	kind := poolerr.Kind("internal_error")
	status := http.StatusInternalServerError
	if pe, ok := poolerr.As(err); ok {
		kind = pe.Kind
		status = StatusForKind(pe.Kind)
	}

	return c.JSON(status, models.ErrorResponse{
		Error:     string(kind),
		Message:   err.Error(),
		RequestID: requestID,
		Timestamp: NowRFC3339(),
	})
}

// RequestIDFrom returns the request id stamped by RequestValidation
// middleware, generating one if absent (e.g. in tests).
func RequestIDFrom(c echo.Context) string {
	if id, ok := c.Get("request_id").(string); ok && id != "" {
		return id
	}
	id := utils.GenerateRequestID()
	c.Set("request_id", id)
	return id
}
