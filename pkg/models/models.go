// Package models holds the HTTP request/response DTOs for the pool
// gateway API, mirroring the teacher's pkg/models request/response split.
package models

import "time"

// PoolCreateRequest is the body of POST /api/v1/browser-pools.
type PoolCreateRequest struct {
	MaxBrowsers        int    `json:"max_browsers" validate:"omitempty,min=1"`
	MinBrowsers        int    `json:"min_browsers" validate:"omitempty,min=0"`
	MaxPagesPerBrowser int    `json:"max_pages_per_browser" validate:"omitempty,min=1"`
	BrowserIdleTTL     string `json:"browser_idle_ttl" validate:"omitempty"`
	PageIdleTTL        string `json:"page_idle_ttl" validate:"omitempty"`
	PageMaxTTL         string `json:"page_max_ttl" validate:"omitempty"`
	UserAgent          string `json:"user_agent" validate:"omitempty"`
	Headless           *bool  `json:"headless" validate:"omitempty"`
	Stealth            *bool  `json:"stealth" validate:"omitempty"`
}

// PoolResponse describes a pool's current state.
type PoolResponse struct {
	PoolID       string `json:"pool_id"`
	Status       string `json:"status"`
	BrowserCount int    `json:"browser_count"`
	TotalPages   int    `json:"total_pages"`
	Created      bool   `json:"created"`
}

// PoolListResponse is returned by GET /api/v1/browser-pools/list.
type PoolListResponse struct {
	Pools []PoolResponse `json:"pools"`
}

// ServiceInfoResponse is returned by GET /.
type ServiceInfoResponse struct {
	Service string         `json:"service"`
	Status  string         `json:"status"`
	Pools   []PoolResponse `json:"pools"`
}

// SessionCreateResponse is returned by GET /api/v1/sessions/new.
type SessionCreateResponse struct {
	SessionID string `json:"session_id"`
}

// SessionMetricsResponse is returned by GET /api/v1/sessions/:session_id.
type SessionMetricsResponse struct {
	SessionID string    `json:"session_id"`
	LastUsed  time.Time `json:"last_used"`
}

// ActionListResponse is returned by GET /api/v1/sessions/actions.
type ActionListResponse struct {
	Actions []string `json:"actions"`
}

// SessionActionRequest is the body of POST /api/v1/sessions/action/:session_id.
type SessionActionRequest struct {
	Action string                 `json:"action" validate:"required"`
	Params map[string]interface{} `json:"params"`
}

// SessionActionResponse wraps an action's result payload.
type SessionActionResponse struct {
	Result    interface{} `json:"result,omitempty"`
	RequestID string      `json:"request_id"`
}

// ErrorResponse is the uniform error envelope returned by the HTTP facade.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}
