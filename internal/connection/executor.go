// Package connection drives a profile page from load to a classified connect/follow outcome.
package connection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/linkedin-connector/internal/browser"
	"github.com/yourusername/linkedin-connector/internal/config"
	"github.com/yourusername/linkedin-connector/internal/report"
	"github.com/yourusername/linkedin-connector/internal/stealth"
)

const (
	screenshotTimeout = 10 * time.Second
	// downward scrolls over a freshly loaded profile before acting
	skimPasses = 2
)

// Executor runs the connection state machine on one page
type Executor struct {
	page    browser.Page
	human   *stealth.Emulator
	markers config.Markers
	timing  config.TimingConfig
	locator *Locator
	log     *zap.SugaredLogger

	readProfile bool
	sections    []string

	state report.State
}

// Option configures an Executor
type Option func(*Executor)

// WithLocator replaces the default two-strategy locator
func WithLocator(l *Locator) Option {
	return func(e *Executor) { e.locator = l }
}

// WithProfileReading pads dwell time by reading the named sections before acting
func WithProfileReading(sections []string) Option {
	return func(e *Executor) {
		e.readProfile = len(sections) > 0
		e.sections = sections
	}
}

// NewExecutor creates an executor bound to page
func NewExecutor(page browser.Page, human *stealth.Emulator, markers config.Markers, timing config.TimingConfig, log *zap.SugaredLogger, opts ...Option) *Executor {
	e := &Executor{
		page:    page,
		human:   human,
		markers: markers,
		timing:  timing,
		log:     log,
		state:   report.StateStart,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.locator == nil {
		e.locator = NewLocator(log)
	}
	return e
}

// connectOutcome is what the connect sub-flow observed
type connectOutcome struct {
	found     bool
	sent      bool
	status    report.Status
	noDialog  bool
	noteUsed  bool
	confirmed bool
	failure   string
	err       error
}

// followOutcome is what the follow sub-flow observed
type followOutcome struct {
	found     bool
	done      bool
	already   bool
	confirmed bool
	err       error
}

// Execute runs task to a terminal state. It never panics; every terminal
// transition carries a best-effort screenshot.
func (e *Executor) Execute(ctx context.Context, task Task) (rc report.Context) {
	e.state = report.StateStart
	log := e.log.With("profile_url", task.ProfileURL, "mode", task.Mode)

	defer func() {
		if r := recover(); r != nil {
			log.Errorw("Recovered from panic in executor", "panic", r, "state", e.state)
			rc = report.Fail(fmt.Sprintf("unexpected error during automation: %v", r), fmt.Errorf("panic: %v", r))
			rc.Panicked = true
			e.enter(report.StateFailed)
		}
		rc.State = e.state
		rc.Screenshot = e.screenshot(ctx)
	}()

	mode, err := ParseMode(string(task.Mode))
	if err != nil {
		e.enter(report.StateFailed)
		return report.Fail(err.Error(), err)
	}

	if err := e.navigate(ctx, task.ProfileURL); err != nil {
		log.Warnw("Failed to load profile", "error", err)
		e.enter(report.StateFailed)
		return report.Fail("failed to load profile page", err)
	}

	e.enter(report.StateStatusChecked)
	switch {
	case e.locator.Present(ctx, e.page, e.markers.Message):
		log.Infow("Already connected")
		e.enter(report.StateAlreadyConnected)
		return report.Context{Status: report.StatusConnected, Action: report.ActionNone, Message: "already connected"}
	case e.locator.Present(ctx, e.page, e.markers.Pending):
		log.Infow("Connection request already pending")
		e.enter(report.StateAlreadyPending)
		return report.Context{Status: report.StatusPending, Action: report.ActionNone, Message: "connection request already pending"}
	}
	if err := ctx.Err(); err != nil {
		e.enter(report.StateFailed)
		return report.Fail("run timed out during status check", err)
	}

	hasConnect := e.locator.Present(ctx, e.page, e.markers.Connect)
	hasFollow := e.locator.Present(ctx, e.page, e.markers.Follow)
	log.Debugw("Relationship status checked", "connect", hasConnect, "follow", hasFollow)
	e.enter(report.StateActionable)

	switch mode {
	case ModeFollow:
		return e.finishFollowOnly(e.follow(ctx))
	case ModeConnect:
		c := e.connect(ctx, task.Note)
		if c.found || !hasFollow {
			return e.finishConnect(c)
		}
		log.Infow("Profile can only be followed, falling back to follow")
		return e.finishCombined(c, e.follow(ctx))
	default:
		c := e.connect(ctx, task.Note)
		var f followOutcome
		if ctx.Err() == nil {
			f = e.follow(ctx)
		}
		return e.finishCombined(c, f)
	}
}

func (e *Executor) enter(s report.State) {
	if e.state == s {
		return
	}
	e.log.Debugw("State transition", "from", e.state, "to", s)
	e.state = s
}

func (e *Executor) navigate(ctx context.Context, profileURL string) error {
	e.log.Infow("Navigating to profile", "url", profileURL)
	if err := e.page.Navigate(ctx, profileURL); err != nil {
		return err
	}
	if err := e.page.WaitLoad(ctx); err != nil {
		return err
	}
	if err := e.page.WaitIdle(ctx); err != nil {
		e.log.Debugw("Profile page did not go idle", "error", err)
	}
	e.enter(report.StateNavigated)

	lo, hi := e.timing.PostLoadDelay()
	if err := e.human.Pause(ctx, lo, hi); err != nil {
		return err
	}

	if err := e.human.Skim(ctx, e.page, skimPasses); err != nil {
		return fmt.Errorf("profile skim interrupted: %w", err)
	}

	if e.readProfile {
		if err := e.human.ReadProfile(ctx, e.page, e.page.Section, e.sections); err != nil {
			return fmt.Errorf("profile reading interrupted: %w", err)
		}
	}
	return nil
}

// click scrolls el into centered view, pauses, and clicks it with the emulated pointer
func (e *Executor) click(ctx context.Context, el browser.Element) error {
	if err := el.ScrollIntoView(ctx); err != nil {
		e.log.Debugw("Failed to scroll control into view", "label", el.Label(), "error", err)
	}
	if err := e.human.ShortPause(ctx); err != nil {
		return err
	}
	if err := e.human.ClickRegion(ctx, e.page, el); err != nil {
		if ctx.Err() != nil {
			return err
		}
		e.log.Debugw("Pointer click failed, using element click", "label", el.Label(), "error", err)
		return el.Click(ctx)
	}
	return nil
}

// locateWithMore looks for a control on the page, then inside the More overflow menu
func (e *Executor) locateWithMore(ctx context.Context, m config.VerbMarkers, what string) (browser.Element, error) {
	el, err := e.locator.Locate(ctx, e.page, m)
	if !errors.Is(err, ErrControlNotFound) {
		return el, err
	}

	more, moreErr := e.locator.Locate(ctx, e.page, e.markers.More)
	if moreErr != nil {
		return nil, err
	}

	e.log.Debugw("Control not on page, trying More menu", "control", what)
	if err := e.click(ctx, more); err != nil {
		return nil, err
	}
	if err := e.human.ShortPause(ctx); err != nil {
		return nil, err
	}

	el, err = e.locator.Locate(ctx, e.page, m)
	if err != nil {
		// close the menu again so later lookups see the top card
		if clickErr := more.Click(ctx); clickErr != nil {
			e.log.Debugw("Failed to close More menu", "error", clickErr)
		}
		return nil, err
	}
	return el, nil
}

func (e *Executor) connect(ctx context.Context, note string) connectOutcome {
	btn, err := e.locateWithMore(ctx, e.markers.Connect, "connect")
	if err != nil {
		if ctx.Err() != nil {
			return connectOutcome{failure: "run timed out looking for connect control", err: err}
		}
		e.log.Infow("Connect control not found", "error", err)
		return connectOutcome{err: err}
	}

	if err := e.click(ctx, btn); err != nil {
		return connectOutcome{found: true, failure: "failed to click connect control", err: err}
	}
	e.enter(report.StateButtonClicked)

	out := connectOutcome{found: true}

	dialog, err := e.page.WaitVisible(ctx, e.markers.Dialog, e.timing.DialogTimeout())
	if err != nil || dialog == nil {
		if ctx.Err() != nil {
			return connectOutcome{found: true, failure: "run timed out waiting for invitation dialog", err: ctx.Err()}
		}
		e.log.Warnw("no dialog after connect click", "label", btn.Label())
		out.noDialog = true
	} else {
		if note != "" {
			out.noteUsed = e.fillNote(ctx, note)
		}

		send, err := e.locator.Locate(ctx, e.page, e.markers.Send)
		if err != nil {
			return connectOutcome{found: true, failure: "invitation dialog has no send control", err: err}
		}
		if err := e.click(ctx, send); err != nil {
			return connectOutcome{found: true, failure: "failed to click send control", err: err}
		}
	}
	e.enter(report.StateDialogHandled)

	lo, hi := e.timing.SettleDelay()
	if err := e.human.Pause(ctx, lo, hi); err != nil {
		return connectOutcome{found: true, failure: "run timed out after sending invitation", err: err}
	}

	out.sent = true
	out.confirmed = e.locator.Present(ctx, e.page, e.markers.Pending)
	if out.confirmed {
		out.status = report.StatusPending
	} else {
		out.status = report.StatusSent
		e.log.Warnw("Pending state not confirmed after connect", "no_dialog", out.noDialog)
	}
	return out
}

// fillNote types note into the invitation dialog. It reports whether the note was entered.
func (e *Executor) fillNote(ctx context.Context, note string) bool {
	note = TruncateNote(note)
	if note == "" {
		return false
	}

	field, err := e.page.QueryVisible(ctx, e.markers.NoteField)
	if err != nil {
		if addNote, err := e.locator.Locate(ctx, e.page, e.markers.AddNote); err == nil {
			if err := e.click(ctx, addNote); err != nil {
				e.log.Warnw("Failed to click add note button", "error", err)
				return false
			}
		}
		field, err = e.page.WaitVisible(ctx, e.markers.NoteField, e.timing.DialogTimeout())
		if err != nil {
			e.log.Warnw("Note field not available, sending without note")
			return false
		}
	}

	if err := e.click(ctx, field); err != nil {
		e.log.Warnw("Failed to focus note field", "error", err)
		return false
	}
	if err := e.human.Type(ctx, e.page, note); err != nil {
		e.log.Warnw("Failed to type personalized note", "error", err)
		return false
	}

	e.log.Debugw("Personalized note entered", "length", len([]rune(note)))
	return true
}

func (e *Executor) follow(ctx context.Context) followOutcome {
	if e.locator.Present(ctx, e.page, e.markers.Following) {
		e.log.Infow("Already following")
		return followOutcome{found: true, already: true, confirmed: true}
	}

	btn, err := e.locateWithMore(ctx, e.markers.Follow, "follow")
	if err != nil {
		e.log.Infow("Follow control not found", "error", err)
		return followOutcome{err: err}
	}
	if err := e.click(ctx, btn); err != nil {
		return followOutcome{found: true, err: err}
	}
	e.enter(report.StateButtonClicked)

	lo, hi := e.timing.SettleDelay()
	if err := e.human.Pause(ctx, lo, hi); err != nil {
		return followOutcome{found: true, done: true, err: err}
	}

	out := followOutcome{found: true, done: true}
	out.confirmed = e.locator.Present(ctx, e.page, e.markers.Following)
	if !out.confirmed {
		e.log.Warnw("Following state not confirmed after follow click")
	}
	return out
}

func (e *Executor) finishConnect(c connectOutcome) report.Context {
	if !c.sent {
		return e.fail(c)
	}
	e.enter(report.StateSent)
	e.log.Infow("Connection request sent", "status", c.status, "note", c.noteUsed)
	return report.Context{Status: c.status, Action: report.ActionConnect, Message: connectMessage(c)}
}

func (e *Executor) finishFollowOnly(f followOutcome) report.Context {
	if f.already {
		e.enter(report.StateSent)
		return report.Context{Status: report.StatusSent, Action: report.ActionNone, Message: "already following"}
	}
	if !f.done {
		e.enter(report.StateFailed)
		msg := ErrControlNotFound.Error()
		if f.found {
			msg = "failed to click follow control"
		}
		return report.Context{Status: report.StatusFailed, Action: report.ActionNone, Message: msg, Err: f.err}
	}
	e.enter(report.StateSent)
	return report.Context{Status: report.StatusSent, Action: report.ActionFollow, Message: followMessage(f)}
}

func (e *Executor) finishCombined(c connectOutcome, f followOutcome) report.Context {
	followed := f.done
	if !c.sent && !followed {
		if f.already {
			e.enter(report.StateSent)
			return report.Context{Status: report.StatusSent, Action: report.ActionNone, Message: "already following; connect not available"}
		}
		return e.fail(c)
	}

	e.enter(report.StateSent)
	rc := report.Context{Action: report.Combine(c.sent, followed), Status: report.StatusSent}

	var parts []string
	if c.sent {
		rc.Status = c.status
		parts = append(parts, connectMessage(c))
	} else if c.failure != "" {
		parts = append(parts, "connect failed: "+c.failure)
	} else {
		parts = append(parts, "connect not available")
	}
	switch {
	case followed:
		parts = append(parts, followMessage(f))
	case f.already:
		parts = append(parts, "already following")
	}
	rc.Message = strings.Join(parts, "; ")

	e.log.Infow("Profile actions completed", "action", rc.Action, "status", rc.Status)
	return rc
}

func (e *Executor) fail(c connectOutcome) report.Context {
	e.enter(report.StateFailed)
	msg := c.failure
	if msg == "" {
		msg = ErrControlNotFound.Error()
	}
	e.log.Warnw("Connection request failed", "reason", msg, "error", c.err)
	return report.Context{Status: report.StatusFailed, Action: report.ActionNone, Message: msg, Err: c.err}
}

func (e *Executor) screenshot(ctx context.Context) []byte {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotTimeout)
	defer cancel()

	data, err := e.page.Screenshot(ctx)
	if err != nil {
		e.log.Warnw("Failed to capture screenshot", "error", err)
		return nil
	}
	return data
}

func connectMessage(c connectOutcome) string {
	msg := "connection request sent"
	if c.noteUsed {
		msg += " with note"
	}
	if c.noDialog {
		msg += " (no invitation dialog appeared)"
	}
	if !c.confirmed {
		msg += "; pending state not confirmed"
	}
	return msg
}

func followMessage(f followOutcome) string {
	if f.confirmed {
		return "followed profile"
	}
	return "follow clicked; following state not confirmed"
}
