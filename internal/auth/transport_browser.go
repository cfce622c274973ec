package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const maxBrowserRedirects = 15

// BrowserTransport runs the login protocol through a real browser engine.
// The vendor's edge fingerprints the TLS handshake of ordinary HTTP clients
// and returns 403; a headless Chromium's network stack passes. Spinning a
// browser is expensive, so the engine starts lazily on the first call and
// tears itself down after an idle timeout.
type BrowserTransport struct {
	mu          sync.Mutex
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
	idleTimeout time.Duration
	idleTimer   *time.Timer
	logger      *zap.Logger
}

func NewBrowserTransport(idleTimeout time.Duration, logger *zap.Logger) *BrowserTransport {
	return &BrowserTransport{
		idleTimeout: idleTimeout,
		logger:      logger.With(zap.String("transport", "browser")),
	}
}

func (t *BrowserTransport) ensureStarted() (context.Context, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.browserCtx != nil {
		t.touchIdleLocked()
		return t.browserCtx, nil
	}
	t.logger.Info("starting browser engine")
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(),
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
		)...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	// first Run starts the process; fail fast if chromium is unavailable
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("browser engine start: %w", err)
	}
	t.allocCancel = allocCancel
	t.browserCtx = browserCtx
	t.cancel = cancel
	t.touchIdleLocked()
	return browserCtx, nil
}

func (t *BrowserTransport) touchIdleLocked() {
	if t.idleTimeout <= 0 {
		return
	}
	if t.idleTimer != nil {
		t.idleTimer.Stop()
	}
	t.idleTimer = time.AfterFunc(t.idleTimeout, func() {
		t.logger.Info("browser engine idle, tearing down")
		_ = t.Close()
	})
}

// redirectWatch records the Location header of every redirect response the
// browser's network stack sees, keyed by the URL that produced it. The
// renderer hides these behind opaqueredirect responses; devtools does not.
type redirectWatch struct {
	mu   sync.Mutex
	locs map[string]string
}

func watchRedirects(ctx context.Context) *redirectWatch {
	w := &redirectWatch{locs: map[string]string{}}
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			if loc := headerValue(e.Response.Headers, "Location"); loc != "" {
				w.record(e.Response.URL, loc)
			}
		case *network.EventRequestWillBeSent:
			if e.RedirectResponse != nil {
				if loc := headerValue(e.RedirectResponse.Headers, "Location"); loc != "" {
					w.record(e.RedirectResponse.URL, loc)
				}
			}
		}
	})
	return w
}

func (w *redirectWatch) record(requestURL, location string) {
	w.mu.Lock()
	w.locs[requestURL] = location
	w.mu.Unlock()
}

// locationFor waits briefly for the redirect target produced by requestURL;
// the devtools event can trail the evaluate result.
func (w *redirectWatch) locationFor(ctx context.Context, requestURL string) string {
	deadline := time.Now().Add(2 * time.Second)
	for {
		w.mu.Lock()
		loc := w.locs[requestURL]
		w.mu.Unlock()
		if loc != "" || time.Now().After(deadline) || ctx.Err() != nil {
			return loc
		}
		time.Sleep(25 * time.Millisecond)
	}
}

// appRedirect returns the first recorded redirect target that is not a web
// URL, which is how the authorization code leaves the IdP.
func (w *redirectWatch) appRedirect(ctx context.Context) *url.URL {
	deadline := time.Now().Add(2 * time.Second)
	for {
		w.mu.Lock()
		for _, loc := range w.locs {
			if u, err := url.Parse(loc); err == nil && u.IsAbs() && !isWebScheme(u.Scheme) {
				w.mu.Unlock()
				return u
			}
		}
		w.mu.Unlock()
		if time.Now().After(deadline) || ctx.Err() != nil {
			return nil
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func headerValue(h network.Headers, name string) string {
	for k, v := range h {
		if strings.EqualFold(k, name) {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func isWebScheme(scheme string) bool {
	return scheme == "http" || scheme == "https"
}

func (t *BrowserTransport) Get(ctx context.Context, rawURL string) (*Response, error) {
	browserCtx, err := t.ensureStarted()
	if err != nil {
		return nil, err
	}
	runCtx, cancel := mergeDeadline(browserCtx, ctx)
	defer cancel()

	watch := watchRedirects(runCtx)

	var loc, body string
	err = chromedp.Run(runCtx,
		network.Enable(),
		chromedp.Navigate(rawURL),
		chromedp.Location(&loc),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &body),
	)
	if err != nil {
		// a navigation onto the app-scheme callback aborts; the network
		// stack still saw the redirect that carries the code
		if target := watch.appRedirect(runCtx); target != nil {
			return &Response{Status: http.StatusFound, FinalURL: target}, nil
		}
		return nil, err
	}
	finalURL, err := url.Parse(loc)
	if err != nil {
		return nil, err
	}
	// Navigation status codes are not directly observable here; a page that
	// rendered is treated as 200. Protocol state is read off the URL anyway.
	return &Response{Status: 200, Body: body, FinalURL: finalURL}, nil
}

// PostForm submits the form from page context and walks the redirect chain
// hop by hop. fetch cannot follow the final hop onto the app-scheme
// callback, so every redirect is taken manually with the target read off
// the devtools events.
func (t *BrowserTransport) PostForm(ctx context.Context, rawURL string, form url.Values) (*Response, error) {
	browserCtx, err := t.ensureStarted()
	if err != nil {
		return nil, err
	}
	runCtx, cancel := mergeDeadline(browserCtx, ctx)
	defer cancel()

	watch := watchRedirects(runCtx)
	if err := chromedp.Run(runCtx, network.Enable()); err != nil {
		return nil, err
	}

	current, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := t.pageFetch(runCtx, current.String(), "POST", form.Encode())
	for hop := 0; hop < maxBrowserRedirects; hop++ {
		if err != nil {
			return nil, err
		}
		if !resp.redirected {
			return &Response{Status: resp.status, Body: resp.body, FinalURL: current}, nil
		}
		loc := watch.locationFor(runCtx, current.String())
		if loc == "" {
			return nil, fmt.Errorf("redirect from %s without observable target", current)
		}
		target, err2 := current.Parse(loc)
		if err2 != nil {
			return nil, err2
		}
		if !isWebScheme(target.Scheme) {
			return &Response{Status: http.StatusFound, FinalURL: target}, nil
		}
		current = target
		resp, err = t.pageFetch(runCtx, current.String(), "GET", "")
	}
	return nil, fmt.Errorf("too many redirects from %s", rawURL)
}

type pageFetchResult struct {
	status     int
	body       string
	redirected bool
}

func (t *BrowserTransport) pageFetch(runCtx context.Context, rawURL, method, body string) (pageFetchResult, error) {
	script := fmt.Sprintf(`(async () => {
		const init = {
			method: %q,
			redirect: "manual",
			credentials: "include",
		};
		if (%q === "POST") {
			init.headers = {"Content-Type": "application/x-www-form-urlencoded"};
			init.body = %q;
		}
		const r = await fetch(%q, init);
		const t = r.type === "opaqueredirect" ? "" : await r.text();
		return JSON.stringify({status: r.status, type: r.type, body: t});
	})()`, method, method, body, rawURL)

	var raw string
	err := chromedp.Run(runCtx,
		chromedp.Evaluate(script, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return pageFetchResult{}, err
	}
	var decoded struct {
		Status int    `json:"status"`
		Type   string `json:"type"`
		Body   string `json:"body"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return pageFetchResult{}, fmt.Errorf("browser fetch result: %w", err)
	}
	return pageFetchResult{
		status:     decoded.Status,
		body:       decoded.Body,
		redirected: decoded.Type == "opaqueredirect",
	}, nil
}

func (t *BrowserTransport) Reset() error {
	// a fresh tab context drops cookies along with the old one
	return t.Close()
}

func (t *BrowserTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.idleTimer != nil {
		t.idleTimer.Stop()
		t.idleTimer = nil
	}
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if t.allocCancel != nil {
		t.allocCancel()
		t.allocCancel = nil
	}
	t.browserCtx = nil
	return nil
}

func mergeDeadline(base, from context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := from.Deadline(); ok {
		return context.WithDeadline(base, deadline)
	}
	return context.WithCancel(base)
}
