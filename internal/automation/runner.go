// Package automation runs one connection request end to end:
// cookies, browser, login check, profile action, result.
package automation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/linkedin-connector/internal/auth"
	"github.com/yourusername/linkedin-connector/internal/browser"
	"github.com/yourusername/linkedin-connector/internal/config"
	"github.com/yourusername/linkedin-connector/internal/connection"
	"github.com/yourusername/linkedin-connector/internal/cookies"
	"github.com/yourusername/linkedin-connector/internal/report"
	"github.com/yourusername/linkedin-connector/internal/stealth"
)

const screenshotTimeout = 10 * time.Second

// Request is one caller invocation
type Request struct {
	RunID      string
	ProfileURL string
	Note       string
	Mode       connection.Mode
	Session    cookies.Session
	// Headless overrides browser.headless for this run when set
	Headless *bool
}

// Lease is exclusive use of a browser page for one run
type Lease interface {
	Page() browser.Page
	Invalidate()
	Close()
}

// Browsers hands out leases
type Browsers interface {
	Acquire(ctx context.Context, opts browser.LaunchOptions) (Lease, error)
}

type managerBrowsers struct {
	m *browser.Manager
}

// FromManager adapts a browser.Manager to Browsers
func FromManager(m *browser.Manager) Browsers {
	return managerBrowsers{m: m}
}

func (b managerBrowsers) Acquire(ctx context.Context, opts browser.LaunchOptions) (Lease, error) {
	lease, err := b.m.Acquire(ctx, opts)
	if err != nil {
		return nil, err
	}
	return lease, nil
}

// Runner executes requests against a shared set of browsers
type Runner struct {
	cfg          *config.Config
	browsers     Browsers
	materializer *cookies.Materializer
	verifier     *auth.Verifier
	newHuman     func(log *zap.SugaredLogger) *stealth.Emulator
	log          *zap.SugaredLogger
}

// Option configures a Runner
type Option func(*Runner)

// WithEmulator overrides how the per-run behavior emulator is built
func WithEmulator(fn func(log *zap.SugaredLogger) *stealth.Emulator) Option {
	return func(r *Runner) { r.newHuman = fn }
}

// NewRunner creates a Runner
func NewRunner(cfg *config.Config, browsers Browsers, log *zap.SugaredLogger, opts ...Option) *Runner {
	r := &Runner{
		cfg:          cfg,
		browsers:     browsers,
		materializer: cookies.New(log),
		verifier:     auth.NewVerifier(cfg.Login, log),
		log:          log,
	}
	r.newHuman = func(log *zap.SugaredLogger) *stealth.Emulator {
		return stealth.New(
			stealth.WithPersonality(stealth.Personality(cfg.Human.Personality)),
			stealth.WithTypoRate(cfg.Human.TypoRate),
			stealth.WithLogger(log),
		)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run never returns an error or panics; every outcome is an ActionResult.
// A browser acquired for the run is always released before Run returns.
func (r *Runner) Run(ctx context.Context, req Request) (res report.ActionResult) {
	log := r.log.With("run_id", req.RunID, "profile_url", req.ProfileURL, "mode", req.Mode)
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			log.Errorw("Recovered from panic in runner", "panic", rec)
			res = report.Finalize(report.StateFailed, report.Fail(
				fmt.Sprintf("unexpected error during automation: %v", rec), fmt.Errorf("panic: %v", rec)))
		}
		log.Infow("Automation finished",
			"success", res.Success,
			"status", res.Status,
			"action", res.Action,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	}()

	task := connection.Task{
		ProfileURL: connection.CleanProfileURL(req.ProfileURL),
		Note:       req.Note,
		Mode:       req.Mode,
	}
	if err := task.Validate(); err != nil {
		return setupFailure("invalid request", err, nil)
	}

	jar, err := r.materializer.FromSession(req.Session)
	if err != nil {
		log.Warnw("No usable session cookies", "error", err)
		return setupFailure("no usable session cookies", err, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.RunTimeout())
	defer cancel()

	lease, err := r.browsers.Acquire(ctx, browser.LaunchOptions{
		UserAgent: req.Session.UserAgent,
		Cookies:   jar,
		Headless:  req.Headless,
	})
	if err != nil {
		log.Errorw("Failed to start browser", "error", err)
		return setupFailure("browser launch failed", err, nil)
	}
	defer lease.Close()

	return r.drive(ctx, lease, task, log)
}

// drive runs the login gate and the executor on an acquired lease
func (r *Runner) drive(ctx context.Context, lease Lease, task connection.Task, log *zap.SugaredLogger) (res report.ActionResult) {
	page := lease.Page()

	defer func() {
		if rec := recover(); rec != nil {
			log.Errorw("Recovered from panic during automation", "panic", rec)
			lease.Invalidate()
			res = report.Finalize(report.StateFailed, report.Context{
				Message:    fmt.Sprintf("unexpected error during automation: %v", rec),
				Err:        fmt.Errorf("panic: %v", rec),
				Screenshot: screenshot(ctx, page, log),
			})
		}
	}()

	vr, err := r.verifier.Verify(ctx, page)
	if err != nil {
		lease.Invalidate()
		return setupFailure("login verification failed", err, screenshot(ctx, page, log))
	}
	if !vr.LoggedIn {
		lease.Invalidate()
		log.Warnw("Session is not logged in", "signal", vr.Signal, "redirected_to", vr.RedirectedTo, "challenge", vr.Challenge)
		return setupFailure(fmt.Sprintf("session is not logged in (%s)", vr.Signal), nil, screenshot(ctx, page, log))
	}

	var opts []connection.Option
	if r.cfg.Human.ReadProfile {
		opts = append(opts, connection.WithProfileReading(r.cfg.Human.Sections))
	}
	exec := connection.NewExecutor(page, r.newHuman(log), r.cfg.Markers, r.cfg.Timing, log, opts...)

	rc := exec.Execute(ctx, task)
	if rc.Panicked || ctx.Err() != nil {
		lease.Invalidate()
	}
	return report.Finalize(rc.State, rc)
}

func setupFailure(reason string, err error, shot []byte) report.ActionResult {
	return report.Finalize(report.StateFailed, report.Context{
		Message:    "setup failed: " + reason,
		Err:        err,
		Screenshot: shot,
	})
}

func screenshot(ctx context.Context, page browser.Page, log *zap.SugaredLogger) []byte {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotTimeout)
	defer cancel()

	data, err := page.Screenshot(ctx)
	if err != nil {
		log.Warnw("Failed to capture screenshot", "error", err)
		return nil
	}
	return data
}
