package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"poolgateway/internal/api"
	"poolgateway/internal/driver"
	"poolgateway/internal/orchestrator"
	"poolgateway/pkg/models"
)

// CreateSessionHandler handles GET /api/v1/sessions/new?pool_id=....
func CreateSessionHandler(admin *orchestrator.PoolAdmin) echo.HandlerFunc {
	return func(c echo.Context) error {
		poolID := c.QueryParam("pool_id")
		ctx := c.Request().Context()

		sid, err := admin.NewSession(ctx, poolID)
		if err != nil {
			return api.WriteError(c, err)
		}

		return c.JSON(http.StatusCreated, models.SessionCreateResponse{SessionID: sid.String()})
	}
}

// GetSessionHandler handles GET /api/v1/sessions/:session_id — session
// metrics resolved by peek, so the request never contends with the
// per-session pop/put mutex an action dispatch uses.
func GetSessionHandler(admin *orchestrator.PoolAdmin) echo.HandlerFunc {
	return func(c echo.Context) error {
		sessionID := c.Param("session_id")
		session, err := admin.GetSessionMetrics(sessionID)
		if err != nil {
			return api.WriteError(c, err)
		}
		return c.JSON(http.StatusOK, models.SessionMetricsResponse{
			SessionID: sessionID,
			LastUsed:  session.LastUsed,
		})
	}
}

// PerformActionHandler handles POST /api/v1/sessions/action/:session_id.
func PerformActionHandler(admin *orchestrator.PoolAdmin) echo.HandlerFunc {
	return func(c echo.Context) error {
		sessionID := c.Param("session_id")

		var req models.SessionActionRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: "bad_params", Message: err.Error(), RequestID: api.RequestIDFrom(c), Timestamp: api.NowRFC3339(),
			})
		}
		if req.Action == "" {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: "bad_params", Message: "action is required", RequestID: api.RequestIDFrom(c), Timestamp: api.NowRFC3339(),
			})
		}

		ctx := c.Request().Context()
		result, err := admin.ResolveAndPerform(ctx, sessionID, driver.ActionKind(req.Action), req.Params)
		if err != nil {
			return api.WriteError(c, err)
		}

		return c.JSON(http.StatusOK, models.SessionActionResponse{
			Result:    result,
			RequestID: api.RequestIDFrom(c),
		})
	}
}

// CloseSessionHandler handles PATCH /api/v1/sessions/close/:session_id.
func CloseSessionHandler(admin *orchestrator.PoolAdmin) echo.HandlerFunc {
	return func(c echo.Context) error {
		sessionID := c.Param("session_id")
		ctx := c.Request().Context()
		if err := admin.CloseSession(ctx, sessionID); err != nil {
			return api.WriteError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// ListActionsHandler handles GET /api/v1/sessions/actions — enumerates the
// closed set of dispatchable action kinds.
func ListActionsHandler() echo.HandlerFunc {
	kinds := driver.AllActionKinds()
	actions := make([]string, len(kinds))
	for i, k := range kinds {
		actions[i] = string(k)
	}
	resp := models.ActionListResponse{Actions: actions}
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, resp)
	}
}
