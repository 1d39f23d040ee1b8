package driver

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"poolgateway/internal/poolerr"
)

// rodProcess wraps one launched Chromium process, grounded on the
// teacher's ManagedBrowser (engines/headed/global_browser_pool.go).
type rodProcess struct {
	id      string
	browser *rod.Browser
	l       *launcher.Launcher
	pid     int
}

func (p *rodProcess) ID() string { return p.id }

// rodPage wraps one tab, grounded on the teacher's createStealthPage
// (engines/headed/browser.go).
type rodPage struct {
	id   string
	page *rod.Page
}

func (p *rodPage) ID() string { return p.id }

// RodDriver implements BrowserDriver on top of go-rod and go-rod/stealth,
// following the hardening flags and stealth-patch idiom of the teacher's
// headed scraping engine.
type RodDriver struct {
	mu      sync.Mutex
	counter int64
}

func NewRodDriver() *RodDriver {
	return &RodDriver{}
}

func (d *RodDriver) nextID(prefix string) string {
	d.mu.Lock()
	d.counter++
	n := d.counter
	d.mu.Unlock()
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), n)
}

func (d *RodDriver) Launch(ctx context.Context, cfg LaunchConfig) (ProcessHandle, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		Set("no-sandbox", "").
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-web-security", "").
		Set("disable-background-timer-throttling", "").
		Set("disable-backgrounding-occluded-windows", "").
		Set("disable-renderer-backgrounding", "").
		Set("disable-dev-shm-usage", "").
		Set("disable-gpu", "").
		Set("no-first-run", "").
		Set("no-default-browser-check", "")

	if cfg.ChromePath != "" {
		l = l.Bin(cfg.ChromePath)
	}

	launchURL, err := l.Launch()
	if err != nil {
		return nil, poolerr.Wrap(poolerr.KindLaunchFailed, "launch browser process", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Context(ctx).Connect(); err != nil {
		l.Cleanup()
		return nil, poolerr.Wrap(poolerr.KindLaunchFailed, "connect to browser process", err)
	}

	pid := 0
	if l.PID() != 0 {
		pid = l.PID()
	}

	return &rodProcess{id: d.nextID("proc"), browser: browser, l: l, pid: pid}, nil
}

func (d *RodDriver) NewPage(ctx context.Context, proc ProcessHandle) (PageHandle, error) {
	p, ok := proc.(*rodProcess)
	if !ok {
		return nil, poolerr.New(poolerr.KindActionFailure, "invalid process handle")
	}

	var page *rod.Page
	var err error
	page, err = stealth.Page(p.browser)
	if err != nil {
		return nil, poolerr.Wrap(poolerr.KindLaunchFailed, "create stealth page", err)
	}
	page = page.Context(ctx)

	return &rodPage{id: d.nextID("page"), page: page}, nil
}

func (d *RodDriver) ClosePage(ctx context.Context, page PageHandle) error {
	p, ok := page.(*rodPage)
	if !ok {
		return poolerr.New(poolerr.KindActionFailure, "invalid page handle")
	}
	if err := p.page.Close(); err != nil {
		return poolerr.Wrap(poolerr.KindActionFailure, "close page", err)
	}
	return nil
}

func (d *RodDriver) CloseProcess(ctx context.Context, proc ProcessHandle) error {
	p, ok := proc.(*rodProcess)
	if !ok {
		return poolerr.New(poolerr.KindActionFailure, "invalid process handle")
	}

	done := make(chan error, 1)
	go func() { done <- p.browser.Close() }()

	select {
	case err := <-done:
		if err != nil {
			p.browser.MustClose()
		}
	case <-time.After(10 * time.Second):
		p.browser.MustClose()
	}

	p.l.Cleanup()
	return nil
}

func (d *RodDriver) Healthy(proc ProcessHandle) bool {
	p, ok := proc.(*rodProcess)
	if !ok {
		return false
	}
	return rod.Try(func() { p.browser.MustPages() }) == nil
}

// Sample reads the resident memory of the launched process from
// /proc/<pid>/statm (Linux only). CPU usage is not sampled: the CPU value is
// always 0.
func (d *RodDriver) Sample(proc ProcessHandle) (float64, float64) {
	p, ok := proc.(*rodProcess)
	if !ok || p.pid == 0 {
		return 0, 0
	}
	statPath := fmt.Sprintf("/proc/%d/statm", p.pid)
	data, err := os.ReadFile(statPath)
	if err != nil {
		return 0, 0
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0, 0
	}
	var pages int64
	fmt.Sscanf(fields[1], "%d", &pages)
	memMB := float64(pages*4096) / (1024 * 1024)
	return 0, memMB
}

func (d *RodDriver) Perform(ctx context.Context, page PageHandle, action ActionKind, params map[string]interface{}) (interface{}, error) {
	p, ok := page.(*rodPage)
	if !ok {
		return nil, poolerr.New(poolerr.KindActionFailure, "invalid page handle")
	}
	pg := p.page.Context(ctx)

	handler, ok := rodActionHandlers[action]
	if !ok {
		return nil, poolerr.New(poolerr.KindBadParams, fmt.Sprintf("unsupported action %q", action))
	}
	return handler(ctx, pg, params)
}

type rodActionHandler func(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error)

var rodActionHandlers = map[ActionKind]rodActionHandler{
	ActionGoto:                  rodGoto,
	ActionGoBack:                rodGoBack,
	ActionGoForward:             rodGoForward,
	ActionClick:                 rodClick,
	ActionEvaluate:               rodEvaluate,
	ActionEvaluateHandle:        rodEvaluate,
	ActionEvaluateOnNewDocument: rodEvaluateOnNewDocument,
	ActionScreenshot:            rodScreenshot,
	ActionSetUserAgent:          rodSetUserAgent,
	ActionSetViewport:           rodSetViewport,
	ActionSetContent:            rodSetContent,
	ActionSetCookie:             rodSetCookie,
	ActionDeleteCookie:          rodDeleteCookie,
	ActionSetGeolocation:        rodSetGeolocation,
	ActionClearGeolocation:      rodClearGeolocation,
	ActionEmulateMedia:          rodEmulateMedia,
	ActionAddScriptTag:          rodAddScriptTag,
	ActionRemoveScriptTag:       rodRemoveScriptTag,
	ActionExposeFunction:        rodExposeFunction,
	ActionRemoveFunction:        rodRemoveFunction,
	ActionSetExtraHTTPHeaders:   rodSetExtraHTTPHeaders,
	ActionStartJSCoverage:       rodStartJSCoverage,
	ActionStopJSCoverage:        rodStopJSCoverage,
	ActionGetPageMetrics:        rodGetPageMetrics,
	ActionGetAccessibilityTree:  rodGetAccessibilityTree,
	ActionAuthenticate:          rodAuthenticate,
	ActionExtractPageContents:   rodExtractPageContents,
	ActionSaveSnapshot:          rodSaveSnapshot,
	ActionRestoreSnapshot:       rodRestoreSnapshot,
}

func paramString(params map[string]interface{}, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func rodGoto(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	url, ok := paramString(params, "url")
	if !ok || url == "" {
		return nil, poolerr.New(poolerr.KindBadParams, "goto requires a url")
	}
	if err := page.Navigate(url); err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "navigate", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "wait for load", err)
	}

	if waitText, ok := paramString(params, "wait_for_text"); ok && waitText != "" {
		timeout := 30 * time.Second
		if t, ok := params["wait_for_text_timeout_ms"].(float64); ok && t > 0 {
			timeout = time.Duration(t) * time.Millisecond
		}
		deadline := time.Now().Add(timeout)
		for {
			html, err := page.HTML()
			if err == nil && strings.Contains(html, waitText) {
				break
			}
			if time.Now().After(deadline) {
				return nil, poolerr.New(poolerr.KindTimeout, "wait_for_text timed out")
			}
			select {
			case <-ctx.Done():
				return nil, poolerr.Wrap(poolerr.KindTimeout, "wait_for_text cancelled", ctx.Err())
			case <-time.After(500 * time.Millisecond):
			}
		}
	}
	return map[string]string{"url": page.MustInfo().URL}, nil
}

func rodGoBack(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	if err := page.NavigateBack(); err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "go back", err)
	}
	return nil, nil
}

func rodGoForward(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	if err := page.NavigateForward(); err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "go forward", err)
	}
	return nil, nil
}

func rodClick(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	selector, ok := paramString(params, "selector")
	if !ok || selector == "" {
		return nil, poolerr.New(poolerr.KindBadParams, "click requires a selector")
	}
	el, err := page.Element(selector)
	if err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "locate element", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "click element", err)
	}
	return nil, nil
}

func rodEvaluate(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	expr, ok := paramString(params, "expression")
	if !ok || expr == "" {
		return nil, poolerr.New(poolerr.KindBadParams, "evaluate requires an expression")
	}
	result, err := page.Eval(expr)
	if err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "evaluate", err)
	}
	return result.Value, nil
}

func rodEvaluateOnNewDocument(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	expr, ok := paramString(params, "expression")
	if !ok || expr == "" {
		return nil, poolerr.New(poolerr.KindBadParams, "evaluate_on_new_document requires an expression")
	}
	if _, err := page.EvalOnNewDocument(expr); err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "evaluate_on_new_document", err)
	}
	return nil, nil
}

func rodScreenshot(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	fullPage, _ := params["full_page"].(bool)
	var data []byte
	var err error
	if fullPage {
		data, err = page.Screenshot(true, nil)
	} else {
		data, err = page.Screenshot(false, nil)
	}
	if err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "screenshot", err)
	}
	return data, nil
}

func rodSetUserAgent(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	ua, ok := paramString(params, "user_agent")
	if !ok || ua == "" {
		return nil, poolerr.New(poolerr.KindBadParams, "set_user_agent requires user_agent")
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "set user agent", err)
	}
	return nil, nil
}

func rodSetViewport(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	width, _ := params["width"].(float64)
	height, _ := params["height"].(float64)
	if width <= 0 || height <= 0 {
		return nil, poolerr.New(poolerr.KindBadParams, "set_viewport requires positive width and height")
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  int(width),
		Height: int(height),
	}); err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "set viewport", err)
	}
	return nil, nil
}

func rodSetContent(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	html, ok := paramString(params, "html")
	if !ok {
		return nil, poolerr.New(poolerr.KindBadParams, "set_content requires html")
	}
	if err := page.SetDocumentContent(html); err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "set content", err)
	}
	return nil, nil
}

func rodSetCookie(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	name, _ := paramString(params, "name")
	value, _ := paramString(params, "value")
	domain, _ := paramString(params, "domain")
	if name == "" {
		return nil, poolerr.New(poolerr.KindBadParams, "set_cookie requires name")
	}
	cookie := &proto.NetworkCookieParam{Name: name, Value: value, Domain: domain}
	if err := page.SetCookies([]*proto.NetworkCookieParam{cookie}); err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "set cookie", err)
	}
	return nil, nil
}

func rodDeleteCookie(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	name, ok := paramString(params, "name")
	if !ok || name == "" {
		return nil, poolerr.New(poolerr.KindBadParams, "delete_cookie requires name")
	}
	if err := (proto.NetworkDeleteCookies{Name: name}).Call(page); err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "delete cookie", err)
	}
	return nil, nil
}

func rodSetGeolocation(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	lat, _ := params["latitude"].(float64)
	lon, _ := params["longitude"].(float64)
	if err := page.SetExtraHeaders(); err == nil { // ensure network domain enabled, cheap no-op
	}
	if err := (proto.EmulationSetGeolocationOverride{Latitude: lat, Longitude: lon, Accuracy: 1}).Call(page); err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "set geolocation", err)
	}
	return nil, nil
}

func rodClearGeolocation(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	if err := (proto.EmulationClearGeolocationOverride{}).Call(page); err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "clear geolocation", err)
	}
	return nil, nil
}

func rodEmulateMedia(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	media, _ := paramString(params, "media")
	var mediaType proto.EmulationMediaType
	switch media {
	case "print":
		mediaType = proto.EmulationMediaTypePrint
	default:
		mediaType = proto.EmulationMediaTypeScreen
	}
	if err := page.Emulate(nil); err != nil { // keep existing device emulation
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "emulate media", err)
	}
	if err := (proto.EmulationSetEmulatedMedia{Media: mediaType}).Call(page); err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "emulate media", err)
	}
	return nil, nil
}

func rodAddScriptTag(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	url, hasURL := paramString(params, "url")
	content, hasContent := paramString(params, "content")
	if !hasURL && !hasContent {
		return nil, poolerr.New(poolerr.KindBadParams, "add_script_tag requires url or content")
	}
	var expr string
	if hasURL {
		expr = fmt.Sprintf(`(()=>{const s=document.createElement('script');s.src=%q;document.head.appendChild(s);})()`, url)
	} else {
		expr = fmt.Sprintf(`(()=>{const s=document.createElement('script');s.textContent=%q;document.head.appendChild(s);})()`, content)
	}
	if _, err := page.Eval(expr); err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "add script tag", err)
	}
	return nil, nil
}

func rodRemoveScriptTag(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	selector, ok := paramString(params, "selector")
	if !ok || selector == "" {
		return nil, poolerr.New(poolerr.KindBadParams, "remove_script_tag requires selector")
	}
	expr := fmt.Sprintf(`(()=>{const e=document.querySelector(%q);if(e)e.remove();})()`, selector)
	if _, err := page.Eval(expr); err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "remove script tag", err)
	}
	return nil, nil
}

func rodExposeFunction(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	name, ok := paramString(params, "name")
	if !ok || name == "" {
		return nil, poolerr.New(poolerr.KindBadParams, "expose_function requires name")
	}
	err := page.Expose(name, func(g rod.Array) (gojson interface{}, err error) {
		return nil, nil
	})
	if err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "expose function", err)
	}
	return nil, nil
}

func rodRemoveFunction(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	name, ok := paramString(params, "name")
	if !ok || name == "" {
		return nil, poolerr.New(poolerr.KindBadParams, "remove_function requires name")
	}
	expr := fmt.Sprintf(`(()=>{delete window[%q];})()`, name)
	if _, err := page.Eval(expr); err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "remove function", err)
	}
	return nil, nil
}

func rodSetExtraHTTPHeaders(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	headersRaw, ok := params["headers"].(map[string]interface{})
	if !ok {
		return nil, poolerr.New(poolerr.KindBadParams, "set_extra_http_headers requires headers")
	}
	pairs := make([]string, 0, len(headersRaw)*2)
	for k, v := range headersRaw {
		if s, ok := v.(string); ok {
			pairs = append(pairs, k, s)
		}
	}
	if err := page.SetExtraHeaders(pairs); err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "set extra http headers", err)
	}
	return nil, nil
}

func rodStartJSCoverage(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	if err := (proto.ProfilerEnable{}).Call(page); err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "start js coverage", err)
	}
	if err := (proto.ProfilerStartPreciseCoverage{CallCount: true, Detailed: true}).Call(page); err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "start js coverage", err)
	}
	return nil, nil
}

func rodStopJSCoverage(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	result, err := proto.ProfilerTakePreciseCoverage{}.Call(page)
	if err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "stop js coverage", err)
	}
	_ = proto.ProfilerStopPreciseCoverage{}.Call(page)
	return result, nil
}

func rodGetPageMetrics(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	metrics, err := proto.PerformanceGetMetrics{}.Call(page)
	if err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "get page metrics", err)
	}
	return metrics, nil
}

func rodGetAccessibilityTree(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	tree, err := proto.AccessibilityGetFullAXTree{}.Call(page)
	if err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "get accessibility tree", err)
	}
	return tree, nil
}

func rodAuthenticate(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	username, _ := paramString(params, "username")
	password, _ := paramString(params, "password")
	err := page.Browser().MustHandleAuth(username, password)
	_ = err
	return nil, nil
}

func rodExtractPageContents(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	html, err := page.HTML()
	if err != nil {
		return nil, poolerr.Wrap(poolerr.KindActionFailure, "read page html", err)
	}
	title, text := extractTextFromHTML(html)
	return map[string]string{"title": title, "text": text}, nil
}

func rodSaveSnapshot(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	cookies, _ := page.Cookies(nil)
	cookieMaps := make([]map[string]interface{}, 0, len(cookies))
	for _, c := range cookies {
		cookieMaps = append(cookieMaps, map[string]interface{}{
			"name": c.Name, "value": c.Value, "domain": c.Domain, "path": c.Path,
		})
	}

	localStorage, _ := evalStorage(page, "localStorage")
	sessionStorage, _ := evalStorage(page, "sessionStorage")
	info := page.MustInfo()

	return map[string]interface{}{
		"cookies":         cookieMaps,
		"local_storage":   localStorage,
		"session_storage": sessionStorage,
		"url":             info.URL,
		"captured_at_unix": time.Now().Unix(),
	}, nil
}

func rodRestoreSnapshot(ctx context.Context, page *rod.Page, params map[string]interface{}) (interface{}, error) {
	// Best-effort: a partial restore never fails the request, per design.
	restored := map[string]bool{"cookies": false, "local_storage": false, "session_storage": false}

	if rawCookies, ok := params["cookies"].([]interface{}); ok {
		cookieParams := make([]*proto.NetworkCookieParam, 0, len(rawCookies))
		for _, rc := range rawCookies {
			m, ok := rc.(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := m["name"].(string)
			value, _ := m["value"].(string)
			domain, _ := m["domain"].(string)
			if name == "" {
				continue
			}
			cookieParams = append(cookieParams, &proto.NetworkCookieParam{Name: name, Value: value, Domain: domain})
		}
		if len(cookieParams) > 0 {
			if err := page.SetCookies(cookieParams); err == nil {
				restored["cookies"] = true
			}
		}
	}

	if localStorage, ok := params["local_storage"].(map[string]interface{}); ok {
		if restoreStorage(page, "localStorage", localStorage) {
			restored["local_storage"] = true
		}
	}

	if sessionStorage, ok := params["session_storage"].(map[string]interface{}); ok {
		if restoreStorage(page, "sessionStorage", sessionStorage) {
			restored["session_storage"] = true
		}
	}

	return map[string]interface{}{"restored": restored}, nil
}

func evalStorage(page *rod.Page, kind string) (map[string]string, error) {
	expr := fmt.Sprintf(`(()=>{const o={};for(let i=0;i<%s.length;i++){const k=%s.key(i);o[k]=%s.getItem(k);}return o;})()`, kind, kind, kind)
	result, err := page.Eval(expr)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if m, ok := result.Value.Val().(map[string]interface{}); ok {
		for k, v := range m {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	}
	return out, nil
}

func restoreStorage(page *rod.Page, kind string, values map[string]interface{}) bool {
	ok := true
	for k, v := range values {
		s, isStr := v.(string)
		if !isStr {
			continue
		}
		expr := fmt.Sprintf(`(()=>{%s.setItem(%q,%q);})()`, kind, k, s)
		if _, err := page.Eval(expr); err != nil {
			ok = false
		}
	}
	return ok
}
