// Package driver abstracts the headless-browser process a LeasedBrowser
// wraps and the page a PageSession performs actions against. BrowserDriver
// is the only seam between the orchestration core and an actual browser
// engine; RodDriver is the concrete implementation shipped with this
// service.
package driver

import "context"

// ActionKind is the closed set of operations a PageSession can dispatch.
type ActionKind string

const (
	ActionClick                  ActionKind = "click"
	ActionAuthenticate           ActionKind = "authenticate"
	ActionSetUserAgent           ActionKind = "set_user_agent"
	ActionScreenshot             ActionKind = "screenshot"
	ActionGoto                   ActionKind = "goto"
	ActionGoBack                 ActionKind = "go_back"
	ActionGoForward              ActionKind = "go_forward"
	ActionEvaluate               ActionKind = "evaluate"
	ActionExtractPageContents    ActionKind = "extract_page_contents"
	ActionExposeFunction         ActionKind = "expose_function"
	ActionRemoveFunction         ActionKind = "remove_function"
	ActionSetViewport            ActionKind = "set_viewport"
	ActionSetGeolocation         ActionKind = "set_geolocation"
	ActionClearGeolocation       ActionKind = "clear_geolocation"
	ActionAddScriptTag           ActionKind = "add_script_tag"
	ActionRemoveScriptTag        ActionKind = "remove_script_tag"
	ActionEvaluateHandle         ActionKind = "evaluate_handle"
	ActionEvaluateOnNewDocument  ActionKind = "evaluate_on_new_document"
	ActionSetCookie              ActionKind = "set_cookie"
	ActionDeleteCookie           ActionKind = "delete_cookie"
	ActionEmulateMedia           ActionKind = "emulate_media"
	ActionStartJSCoverage        ActionKind = "start_js_coverage"
	ActionStopJSCoverage         ActionKind = "stop_js_coverage"
	ActionGetPageMetrics         ActionKind = "get_page_metrics"
	ActionGetAccessibilityTree  ActionKind = "get_accessibility_tree"
	ActionSetContent             ActionKind = "set_content"
	ActionSetExtraHTTPHeaders    ActionKind = "set_extra_http_headers"
	ActionSaveSnapshot           ActionKind = "save_snapshot"
	ActionRestoreSnapshot        ActionKind = "restore_snapshot"
)

// AllActionKinds lists the closed set of supported action kinds, in
// declaration order — backs the GET /sessions/actions enumeration.
func AllActionKinds() []ActionKind {
	return []ActionKind{
		ActionClick, ActionAuthenticate, ActionSetUserAgent, ActionScreenshot,
		ActionGoto, ActionGoBack, ActionGoForward, ActionEvaluate,
		ActionExtractPageContents, ActionExposeFunction, ActionRemoveFunction,
		ActionSetViewport, ActionSetGeolocation, ActionClearGeolocation,
		ActionAddScriptTag, ActionRemoveScriptTag, ActionEvaluateHandle,
		ActionEvaluateOnNewDocument, ActionSetCookie, ActionDeleteCookie,
		ActionEmulateMedia, ActionStartJSCoverage, ActionStopJSCoverage,
		ActionGetPageMetrics, ActionGetAccessibilityTree, ActionSetContent,
		ActionSetExtraHTTPHeaders, ActionSaveSnapshot, ActionRestoreSnapshot,
	}
}

// LaunchConfig configures a single headless-browser process.
type LaunchConfig struct {
	Headless   bool
	Stealth    bool
	UserAgent  string
	ChromePath string
	Timeout    int64 // seconds, 0 = driver default
}

// ProcessHandle identifies one launched browser process.
type ProcessHandle interface {
	ID() string
}

// PageHandle identifies one page/tab within a process.
type PageHandle interface {
	ID() string
}

// Snapshot lists the fields of a page-state snapshot payload. RodDriver's
// save_snapshot fills only cookies, local_storage, session_storage, url and
// captured_at_unix; form values, user agent and viewport are not captured.
// Its restore_snapshot re-applies cookies and storage and does not navigate
// to url.
type Snapshot struct {
	Cookies        []map[string]interface{} `json:"cookies"`
	LocalStorage   map[string]string        `json:"local_storage"`
	SessionStorage map[string]string        `json:"session_storage"`
	FormValues     map[string]string        `json:"form_values"`
	UserAgent      string                   `json:"user_agent"`
	Viewport       map[string]int           `json:"viewport"`
	URL            string                   `json:"url"`
	CapturedAt     int64                    `json:"captured_at_unix"`
}

// BrowserDriver is the single seam between the orchestration core and a
// concrete headless-browser engine.
type BrowserDriver interface {
	Launch(ctx context.Context, cfg LaunchConfig) (ProcessHandle, error)
	NewPage(ctx context.Context, proc ProcessHandle) (PageHandle, error)
	ClosePage(ctx context.Context, page PageHandle) error
	CloseProcess(ctx context.Context, proc ProcessHandle) error

	// Perform executes one action against page and returns the action's
	// result payload (nil for actions without a return value).
	Perform(ctx context.Context, page PageHandle, action ActionKind, params map[string]interface{}) (interface{}, error)

	// Sample returns a best-effort CPU (fraction, 0-1) and memory
	// (megabytes) reading for the process. Never fails; returns zeros
	// when unavailable.
	Sample(proc ProcessHandle) (cpuFraction float64, memMB float64)

	// Healthy reports whether the process still responds.
	Healthy(proc ProcessHandle) bool
}
