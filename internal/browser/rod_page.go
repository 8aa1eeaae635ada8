package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/yourusername/linkedin-connector/internal/stealth"
)

// scanControlsJS scores button-like elements against the include markers.
// Exact text beats substring text, which beats an aria-label match.
// Only controls under an element matching root are considered; an empty root scans the document.
const scanControlsJS = `(root, include, exclude) => {
	const norm = (s) => (s || '').replace(/\s+/g, ' ').trim().toLowerCase();
	const inc = include.map(norm).filter(Boolean);
	const exc = exclude.map(norm).filter(Boolean);
	const scopes = root ? Array.from(document.querySelectorAll(root)) : [document];
	const controls = 'button, a[role="button"], div[role="button"], span[role="button"], [role="menuitem"], a.artdeco-button';
	const nodes = new Set();
	for (const scope of scopes) {
		for (const el of scope.querySelectorAll(controls)) nodes.add(el);
	}

	let best = null;
	let bestScore = 0;
	for (const el of nodes) {
		const text = norm(el.innerText || el.textContent);
		const label = norm(el.getAttribute('aria-label'));
		const haystack = text + ' | ' + label;
		if (exc.some((x) => haystack.includes(x))) continue;

		const rect = el.getBoundingClientRect();
		if (rect.width === 0 || rect.height === 0) continue;

		let score = 0;
		for (const want of inc) {
			if (text === want) score = Math.max(score, 3);
			else if (text.includes(want)) score = Math.max(score, 2);
			else if (label.includes(want)) score = Math.max(score, 1);
		}
		if (score > bestScore) {
			best = el;
			bestScore = score;
		}
	}
	return best;
}`

// firstVisibleJS returns the first element, in selector order, that is rendered and on screen
const firstVisibleJS = `(selectors) => {
	const visible = (el) => {
		const style = window.getComputedStyle(el);
		const rect = el.getBoundingClientRect();
		return style.display !== 'none' &&
			style.visibility !== 'hidden' &&
			parseFloat(style.opacity || '1') > 0 &&
			rect.width > 0 && rect.height > 0;
	};
	for (const selector of selectors) {
		for (const el of document.querySelectorAll(selector)) {
			if (visible(el)) return el;
		}
	}
	return null;
}`

const sectionJS = `(id) => {
	const anchor = document.getElementById(id);
	if (!anchor) return null;
	return anchor.closest('section') || anchor;
}`

const labelJS = `() => (this.getAttribute('aria-label') || this.innerText || '').replace(/\s+/g, ' ').trim().slice(0, 80)`

// rodPage adapts a *rod.Page to Page, bounding every call with a timeout
type rodPage struct {
	page        *rod.Page
	navTimeout  time.Duration
	waitTimeout time.Duration
}

// NewPage wraps a rod page
func NewPage(page *rod.Page, navTimeout, waitTimeout time.Duration) Page {
	return &rodPage{page: page, navTimeout: navTimeout, waitTimeout: waitTimeout}
}

func (p *rodPage) nav(ctx context.Context) *rod.Page {
	return p.page.Context(ctx).Timeout(p.navTimeout)
}

func (p *rodPage) wait(ctx context.Context) *rod.Page {
	return p.page.Context(ctx).Timeout(p.waitTimeout)
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	if err := p.nav(ctx).Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *rodPage) WaitLoad(ctx context.Context) error {
	if err := p.nav(ctx).WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	return nil
}

func (p *rodPage) WaitIdle(ctx context.Context) error {
	if err := p.nav(ctx).WaitIdle(p.waitTimeout); err != nil {
		return fmt.Errorf("failed to wait for page idle: %w", err)
	}
	return nil
}

func (p *rodPage) URL(ctx context.Context) (string, error) {
	info, err := p.wait(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to get page info: %w", err)
	}
	return info.URL, nil
}

func (p *rodPage) BodyText(ctx context.Context) (string, error) {
	res, err := p.wait(ctx).Eval(`() => document.body ? document.body.innerText : ''`)
	if err != nil {
		return "", fmt.Errorf("failed to read page text: %w", err)
	}
	return res.Value.Str(), nil
}

func (p *rodPage) Has(ctx context.Context, selector string) (bool, error) {
	has, _, err := p.wait(ctx).Has(selector)
	if err != nil {
		return false, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	return has, nil
}

func (p *rodPage) ScanControls(ctx context.Context, root string, include, exclude []string) (Element, error) {
	if include == nil {
		include = []string{}
	}
	if exclude == nil {
		exclude = []string{}
	}
	el, err := p.wait(ctx).Sleeper(rod.NotFoundSleeper).ElementByJS(rod.Eval(scanControlsJS, root, include, exclude))
	if err != nil {
		return nil, notFound(err)
	}
	return newRodElement(el), nil
}

func (p *rodPage) QueryVisible(ctx context.Context, selectors []string) (Element, error) {
	if len(selectors) == 0 {
		return nil, ErrNotFound
	}
	el, err := p.wait(ctx).Sleeper(rod.NotFoundSleeper).ElementByJS(rod.Eval(firstVisibleJS, selectors))
	if err != nil {
		return nil, notFound(err)
	}
	return newRodElement(el), nil
}

// WaitVisible lets rod retry the visibility query with its default backoff until
// an element shows up or timeout passes
func (p *rodPage) WaitVisible(ctx context.Context, selectors []string, timeout time.Duration) (Element, error) {
	if len(selectors) == 0 {
		return nil, ErrNotFound
	}
	page := p.page.Context(ctx).Timeout(timeout)
	defer page.CancelTimeout()

	el, err := page.ElementByJS(rod.Eval(firstVisibleJS, selectors))
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrNotFound
		}
		return nil, notFound(err)
	}
	return newRodElement(el), nil
}

func (p *rodPage) Section(ctx context.Context, name string) (stealth.Region, error) {
	el, err := p.wait(ctx).Sleeper(rod.NotFoundSleeper).ElementByJS(rod.Eval(sectionJS, name))
	if err != nil {
		return nil, notFound(err)
	}
	return newRodElement(el), nil
}

func (p *rodPage) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := p.wait(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return data, nil
}

func (p *rodPage) MoveMouse(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Mouse.MoveTo(proto.Point{X: x, Y: y})
}

func (p *rodPage) MouseDown(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Mouse.Down(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) MouseUp(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Mouse.Up(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) InsertText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.InsertText(text)
}

func (p *rodPage) PressBackspace(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Keyboard.Press(input.Backspace)
}

func (p *rodPage) ScrollBy(ctx context.Context, dy float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Mouse.Scroll(0, dy, 1)
}

// rodElement adapts a *rod.Element to Element
type rodElement struct {
	el    *rod.Element
	label string
}

func newRodElement(el *rod.Element) *rodElement {
	e := &rodElement{el: el}
	if res, err := el.Eval(labelJS); err == nil {
		e.label = res.Value.Str()
	}
	return e
}

func (e *rodElement) Label() string {
	return e.label
}

func (e *rodElement) Box(ctx context.Context) (stealth.Rect, error) {
	shape, err := e.el.Context(ctx).Shape()
	if err != nil {
		return stealth.Rect{}, fmt.Errorf("failed to get element shape: %w", err)
	}
	box := shape.Box()
	if box == nil {
		return stealth.Rect{}, fmt.Errorf("element %q has no layout box", e.label)
	}
	return stealth.Rect{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}, nil
}

func (e *rodElement) ScrollIntoView(ctx context.Context) error {
	_, err := e.el.Context(ctx).Eval(`() => this.scrollIntoView({block: 'center', inline: 'nearest', behavior: 'smooth'})`)
	if err != nil {
		return fmt.Errorf("failed to scroll element into view: %w", err)
	}
	return nil
}

func (e *rodElement) Click(ctx context.Context) error {
	if err := e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click %q: %w", e.label, err)
	}
	return nil
}

func notFound(err error) error {
	var nf *rod.ErrElementNotFound
	if errors.As(err, &nf) {
		return ErrNotFound
	}
	return fmt.Errorf("element query failed: %w", err)
}
