package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/yourusername/linkedin-connector/internal/cookies"
)

// cookieChunkSize is the batch size used when a bulk cookie injection is rejected
const cookieChunkSize = 5

type closer interface {
	Close() error
}

// Runtime is one launched browser with its automation page.
// Close may be called any number of times from any goroutine.
type Runtime struct {
	page     Page
	log      *zap.SugaredLogger
	headless bool

	mu      sync.Mutex
	closed  bool
	pageRes closer
	browser closer
	cleanup func()

	// prepare re-applies identity and cookies on a reused runtime; reset clears it between leases
	prepare func(ctx context.Context, opts LaunchOptions) error
	reset   func(ctx context.Context) error
}

// Page returns the automation page
func (r *Runtime) Page() Page {
	return r.page
}

// Closed reports whether Close has run
func (r *Runtime) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close releases the page, then the browser, then the process.
// Failures and panics are logged and swallowed per step so teardown never fails
// the caller and a broken page still lets the process be killed.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	if r.pageRes != nil {
		r.teardownStep("page", r.pageRes.Close)
		r.pageRes = nil
	}
	if r.browser != nil {
		r.teardownStep("browser", r.browser.Close)
		r.browser = nil
	}
	if r.cleanup != nil {
		cleanup := r.cleanup
		r.teardownStep("process", func() error {
			cleanup()
			return nil
		})
		r.cleanup = nil
	}

	r.log.Debug("Browser runtime closed")
}

func (r *Runtime) teardownStep(name string, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Warnw("Recovered during browser teardown", "step", name, "panic", rec)
		}
	}()
	if err := fn(); err != nil {
		r.log.Debugw("Failed to close "+name, "error", err)
	}
}

// cookieSetter is the part of *rod.Page used for injection
type cookieSetter interface {
	SetCookies(cookies []*proto.NetworkCookieParam) error
}

func cookieParams(prepared []cookies.Prepared) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(prepared))
	for _, c := range prepared {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
			Expires:  proto.TimeSinceEpoch(c.Expires.Unix()),
		})
	}
	return params
}

// injectCookies tries one bulk call and falls back to chunks of cookieChunkSize when the
// browser rejects the batch. A partially applied jar is accepted; an empty one is an error.
func injectCookies(setter cookieSetter, params []*proto.NetworkCookieParam, log *zap.SugaredLogger) (int, error) {
	if len(params) == 0 {
		return 0, fmt.Errorf("no cookies to inject")
	}

	err := setter.SetCookies(params)
	if err == nil {
		return len(params), nil
	}
	log.Warnw("Bulk cookie injection rejected, retrying in chunks", "cookies", len(params), "error", err)

	applied := 0
	for start := 0; start < len(params); start += cookieChunkSize {
		end := start + cookieChunkSize
		if end > len(params) {
			end = len(params)
		}
		if err := setter.SetCookies(params[start:end]); err != nil {
			log.Warnw("Cookie chunk rejected", "from", start, "to", end, "error", err)
			continue
		}
		applied += end - start
	}

	if applied == 0 {
		return 0, fmt.Errorf("browser rejected every cookie: %w", err)
	}
	if applied < len(params) {
		log.Warnw("Cookie jar partially applied", "applied", applied, "total", len(params))
	}
	return applied, nil
}
