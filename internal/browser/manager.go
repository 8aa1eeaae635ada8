package browser

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	rodstealth "github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/yourusername/linkedin-connector/internal/config"
	"github.com/yourusername/linkedin-connector/internal/cookies"
	"github.com/yourusername/linkedin-connector/internal/stealth"
)

// LaunchOptions carries the per-run identity applied to a runtime
type LaunchOptions struct {
	UserAgent string
	Cookies   []cookies.Prepared
	// Headless overrides the configured mode when set
	Headless *bool
}

type launchFunc func(ctx context.Context, opts LaunchOptions) (*Runtime, error)

// Manager hands out browser runtimes. With reuse enabled it keeps one idle runtime
// between leases; a concurrent Acquire while that runtime is leased gets a fresh,
// independent one that is torn down on release.
type Manager struct {
	cfg  config.BrowserConfig
	nav  time.Duration
	wait time.Duration
	log  *zap.SugaredLogger

	launch launchFunc

	mu     sync.Mutex
	rng    *rand.Rand
	idle   *Runtime
	busy   bool
	closed bool
}

// NewManager creates a manager that launches Chromium through rod
func NewManager(cfg *config.Config, log *zap.SugaredLogger) *Manager {
	m := &Manager{
		cfg:  cfg.Browser,
		nav:  cfg.NavigationTimeout(),
		wait: cfg.WaitTimeout(),
		log:  log,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	m.launch = m.launchRod
	return m
}

// Acquire returns a lease on a prepared runtime. The lease must be closed exactly once
// by the caller; Close is idempotent so a deferred call is always safe.
func (m *Manager) Acquire(ctx context.Context, opts LaunchOptions) (*Lease, error) {
	if opts.UserAgent == "" {
		m.mu.Lock()
		opts.UserAgent = stealth.RandomUserAgent(m.rng)
		m.mu.Unlock()
	}

	headless := m.cfg.Headless
	if opts.Headless != nil {
		headless = *opts.Headless
	}
	opts.Headless = &headless

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}

	if m.idle != nil && m.idle.headless != headless {
		stale := m.idle
		m.idle = nil
		m.mu.Unlock()
		m.log.Debugw("Idle runtime has a different display mode, closing it", "headless", headless)
		stale.Close()
		m.mu.Lock()
	}

	if m.cfg.Reuse && !m.busy && m.idle != nil {
		rt := m.idle
		m.idle = nil
		m.busy = true
		m.mu.Unlock()

		err := rt.prepare(ctx, opts)
		if err == nil {
			m.log.Debug("Reusing idle browser runtime")
			return &Lease{m: m, rt: rt, reusable: true}, nil
		}
		m.log.Warnw("Idle runtime could not be prepared, launching a new one", "error", err)
		rt.Close()

		m.mu.Lock()
		m.busy = false
	}

	reusable := m.cfg.Reuse && !m.busy
	if reusable {
		m.busy = true
	}
	m.mu.Unlock()

	rt, err := m.launch(ctx, opts)
	if err != nil {
		if reusable {
			m.mu.Lock()
			m.busy = false
			m.mu.Unlock()
		}
		return nil, err
	}

	return &Lease{m: m, rt: rt, reusable: reusable}, nil
}

// Close tears down the idle runtime and refuses further leases. Runtimes still on
// lease are torn down when their lease closes.
func (m *Manager) Close() {
	m.mu.Lock()
	idle := m.idle
	m.idle = nil
	m.closed = true
	m.mu.Unlock()

	if idle != nil {
		idle.Close()
	}
}

func (m *Manager) release(l *Lease) {
	m.mu.Lock()
	keep := l.reusable && !m.closed && !l.rt.Closed()
	m.mu.Unlock()

	if keep && l.rt.reset != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.wait)
		err := l.rt.reset(ctx)
		cancel()
		if err != nil {
			m.log.Warnw("Failed to reset runtime for reuse", "error", err)
			keep = false
		}
	}

	m.mu.Lock()
	if l.reusable {
		m.busy = false
	}
	if keep && !m.closed {
		m.idle = l.rt
		m.mu.Unlock()
		m.log.Debug("Browser runtime returned to idle")
		return
	}
	m.mu.Unlock()

	l.rt.Close()
}

// Lease is exclusive use of a runtime for one automation run
type Lease struct {
	m        *Manager
	rt       *Runtime
	reusable bool
	once     sync.Once
}

// Page returns the leased automation page
func (l *Lease) Page() Page {
	return l.rt.Page()
}

// Invalidate marks the runtime as unfit for reuse; Close will tear it down
func (l *Lease) Invalidate() {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	if l.reusable {
		l.reusable = false
		l.m.busy = false
	}
}

// Close returns the runtime to the manager or tears it down
func (l *Lease) Close() {
	l.once.Do(func() {
		l.m.release(l)
	})
}

func (m *Manager) launchRod(ctx context.Context, opts LaunchOptions) (*Runtime, error) {
	headless := m.cfg.Headless
	if opts.Headless != nil {
		headless = *opts.Headless
	}
	m.log.Infow("Launching browser", "headless", headless)

	l := launcher.New().
		Context(ctx).
		Headless(headless).
		Leakless(false).
		NoSandbox(m.cfg.NoSandbox).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-infobars").
		Set("window-size", fmt.Sprintf("%d,%d", m.cfg.ViewportWidth, m.cfg.ViewportHeight)).
		Set("user-agent", opts.UserAgent)

	if m.cfg.BinPath != "" {
		l = l.Bin(m.cfg.BinPath)
	} else if path, found := launcher.LookPath(); found {
		l = l.Bin(path)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	rt := &Runtime{
		log:      m.log,
		headless: headless,
		cleanup: func() {
			l.Kill()
			l.Cleanup()
		},
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	rt.browser = b

	incognito, err := b.Incognito()
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := rodstealth.Page(incognito)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to create stealth page: %w", err)
	}
	rt.pageRes = page
	rt.page = NewPage(page, m.nav, m.wait)

	if _, err := page.EvalOnNewDocument(stealth.AutomationPatchJS); err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to install automation patch: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.ViewportWidth,
		Height:            m.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	rt.prepare = func(ctx context.Context, opts LaunchOptions) error {
		return m.preparePage(page.Context(ctx), opts)
	}
	rt.reset = func(ctx context.Context) error {
		p := page.Context(ctx)
		if err := p.Navigate("about:blank"); err != nil {
			return fmt.Errorf("failed to blank page: %w", err)
		}
		return p.SetCookies(nil)
	}

	if err := rt.prepare(ctx, opts); err != nil {
		rt.Close()
		return nil, err
	}

	m.log.Infow("Browser launched", "viewport", fmt.Sprintf("%dx%d", m.cfg.ViewportWidth, m.cfg.ViewportHeight))
	return rt, nil
}

// preparePage applies the user agent, request headers and cookie jar
func (m *Manager) preparePage(page *rod.Page, opts LaunchOptions) error {
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      opts.UserAgent,
		AcceptLanguage: m.cfg.AcceptLanguage,
	}); err != nil {
		return fmt.Errorf("failed to set user agent: %w", err)
	}

	if _, err := page.SetExtraHeaders([]string{
		"Accept-Language", m.cfg.AcceptLanguage,
		"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Sec-Fetch-Dest", "document",
		"Sec-Fetch-Mode", "navigate",
		"Sec-Fetch-Site", "none",
		"Sec-Fetch-User", "?1",
		"Upgrade-Insecure-Requests", "1",
	}); err != nil {
		return fmt.Errorf("failed to set request headers: %w", err)
	}

	if err := page.SetCookies(nil); err != nil {
		m.log.Debugw("Failed to clear cookies", "error", err)
	}

	applied, err := injectCookies(page, cookieParams(opts.Cookies), m.log)
	if err != nil {
		return fmt.Errorf("failed to inject session cookies: %w", err)
	}
	m.log.Debugw("Session cookies injected", "applied", applied)
	return nil
}
