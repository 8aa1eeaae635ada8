// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yourusername/linkedin-connector/internal/browser"
	"github.com/yourusername/linkedin-connector/internal/stealth"
)

// Element is a fake control. OnClick runs on every click, pointer or direct.
// Root is the scope selector the control sits under; an empty Root is inside every scope.
type Element struct {
	Root     string
	Text     string
	Aria     string
	Rect     stealth.Rect
	Hidden   bool
	ClickErr error
	OnClick  func()

	page   *Page
	clicks int
}

func (e *Element) Label() string {
	if e.Aria != "" {
		return e.Aria
	}
	return e.Text
}

func (e *Element) Box(context.Context) (stealth.Rect, error) {
	return e.Rect, nil
}

func (e *Element) ScrollIntoView(context.Context) error {
	return nil
}

func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.ClickErr != nil {
		return e.ClickErr
	}
	e.page.clicked(e)
	return nil
}

// Clicks returns how often the element was clicked
func (e *Element) Clicks() int {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.clicks
}

// Page is a scriptable browser.Page. Controls answer ScanControls, Selectors answer
// QueryVisible and Has. Pointer clicks land on the most recently hovered element.
type Page struct {
	mu sync.Mutex

	CurrentURL    string
	Redirects     map[string]string
	Body          string
	NavigateErr   error
	ScreenshotErr error
	PanicOn       string

	controls  []*Element
	selectors map[string]*Element
	present   map[string]bool
	sections  map[string]*Element

	calls  []string
	typed  strings.Builder
	shots  int
	hover  *Element
	placed int
}

// NewPage returns an empty page
func NewPage() *Page {
	return &Page{
		Redirects: map[string]string{},
		selectors: map[string]*Element{},
		present:   map[string]bool{},
		sections:  map[string]*Element{},
	}
}

// nextRect lays elements out in a column so pointer hit-testing is unambiguous
func (p *Page) nextRect() stealth.Rect {
	r := stealth.Rect{X: 400, Y: 100 + float64(p.placed)*40, Width: 120, Height: 32}
	p.placed++
	return r
}

// AddControl adds a button-like element found by text or aria-label scanning
func (p *Page) AddControl(text, aria string) *Element {
	return p.AddControlIn("", text, aria)
}

// AddControlIn adds a control that only scans rooted at root (or unrooted scans) can see
func (p *Page) AddControlIn(root, text, aria string) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	el := &Element{Root: root, Text: text, Aria: aria, Rect: p.nextRect(), page: p}
	p.controls = append(p.controls, el)
	return el
}

// RemoveControl takes el off the page
func (p *Page) RemoveControl(el *Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.controls {
		if c == el {
			p.controls = append(p.controls[:i], p.controls[i+1:]...)
			break
		}
	}
	for sel, c := range p.selectors {
		if c == el {
			delete(p.selectors, sel)
		}
	}
}

// SetSelector makes selector resolve to a visible element
func (p *Page) SetSelector(selector string, label string) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	el := &Element{Aria: label, Rect: p.nextRect(), page: p}
	p.selectors[selector] = el
	p.present[selector] = true
	return el
}

// SetPresent marks selector as matching for Has
func (p *Page) SetPresent(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.present[selector] = true
}

// AddSection registers a profile section anchor
func (p *Page) AddSection(name string) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	el := &Element{Aria: name, Rect: stealth.Rect{X: 100, Y: 200, Width: 600, Height: 300}, page: p}
	p.sections[name] = el
	return el
}

// Calls returns the recorded operations in order
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// CallsWithPrefix returns the recorded operations starting with prefix
func (p *Page) CallsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range p.Calls() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Typed returns the text left in the focused field after backspaces
func (p *Page) Typed() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.typed.String()
}

// Screenshots returns how many screenshots were taken
func (p *Page) Screenshots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shots
}

func (p *Page) record(op string) {
	p.mu.Lock()
	p.calls = append(p.calls, op)
	panicOn := p.PanicOn
	p.mu.Unlock()

	if panicOn != "" && strings.HasPrefix(op, panicOn) {
		panic("browsertest: " + op)
	}
}

func (p *Page) clicked(el *Element) {
	p.mu.Lock()
	el.clicks++
	onClick := el.OnClick
	p.calls = append(p.calls, "click:"+el.Label())
	p.mu.Unlock()

	if onClick != nil {
		onClick()
	}
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.record("navigate:" + url)
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if to, ok := p.Redirects[url]; ok {
		p.CurrentURL = to
	} else {
		p.CurrentURL = url
	}
	return nil
}

func (p *Page) WaitLoad(ctx context.Context) error { return ctx.Err() }
func (p *Page) WaitIdle(ctx context.Context) error { return ctx.Err() }

func (p *Page) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL, nil
}

func (p *Page) BodyText(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Body, nil
}

func (p *Page) Has(_ context.Context, selector string) (bool, error) {
	p.record("has:" + selector)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.present[selector], nil
}

// ScanControls mirrors the in-page scan: exact text, then text substring, then aria-label.
// root is treated as a comma-separated list of scopes.
func (p *Page) ScanControls(ctx context.Context, root string, include, exclude []string) (browser.Element, error) {
	p.record("scan:" + strings.Join(include, "|"))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var best *Element
	bestScore := 0
	for _, el := range p.controls {
		if el.Hidden || el.Rect.Width == 0 || el.Rect.Height == 0 || !inScope(el.Root, root) {
			continue
		}
		text := strings.ToLower(el.Text)
		label := strings.ToLower(el.Aria)
		haystack := text + " | " + label
		if containsAny(haystack, exclude) {
			continue
		}
		score := 0
		for _, want := range include {
			want = strings.ToLower(want)
			switch {
			case text == want:
				score = max(score, 3)
			case strings.Contains(text, want):
				score = max(score, 2)
			case strings.Contains(label, want):
				score = max(score, 1)
			}
		}
		if score > bestScore {
			best, bestScore = el, score
		}
	}
	if best == nil {
		return nil, browser.ErrNotFound
	}
	return best, nil
}

func (p *Page) QueryVisible(ctx context.Context, selectors []string) (browser.Element, error) {
	for _, sel := range selectors {
		p.record("query:" + sel)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sel := range selectors {
		if el, ok := p.selectors[sel]; ok && !el.Hidden {
			return el, nil
		}
	}
	return nil, browser.ErrNotFound
}

// WaitVisible checks once; the fake page never changes on its own
func (p *Page) WaitVisible(ctx context.Context, selectors []string, _ time.Duration) (browser.Element, error) {
	return p.QueryVisible(ctx, selectors)
}

func (p *Page) Section(_ context.Context, name string) (stealth.Region, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.sections[name]; ok {
		return el, nil
	}
	return nil, browser.ErrNotFound
}

func (p *Page) Screenshot(context.Context) ([]byte, error) {
	p.record("screenshot")
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	p.shots++
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func (p *Page) MoveMouse(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hover = nil
	for _, el := range p.allElements() {
		r := el.Rect
		if x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height {
			p.hover = el
		}
	}
	return nil
}

// allElements lists elements in hit-test order; later entries win
func (p *Page) allElements() []*Element {
	out := append([]*Element(nil), p.controls...)
	for _, el := range p.selectors {
		out = append(out, el)
	}
	return out
}

func (p *Page) MouseDown(ctx context.Context) error { return ctx.Err() }

// MouseUp completes a click on the hovered element
func (p *Page) MouseUp(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	target := p.hover
	p.hover = nil
	p.mu.Unlock()

	if target == nil {
		return errors.New("browsertest: click landed on nothing")
	}
	if target.ClickErr != nil {
		return target.ClickErr
	}
	p.clicked(target)
	return nil
}

func (p *Page) InsertText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typed.WriteString(text)
	return nil
}

func (p *Page) PressBackspace(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r := []rune(p.typed.String())
	if len(r) > 0 {
		p.typed.Reset()
		p.typed.WriteString(string(r[:len(r)-1]))
	}
	return nil
}

// ScrollBy records the scroll so tests can see reading behavior
func (p *Page) ScrollBy(ctx context.Context, dy float64) error {
	p.record(fmt.Sprintf("scroll:%.0f", dy))
	return ctx.Err()
}

func inScope(elRoot, root string) bool {
	if elRoot == "" || root == "" {
		return true
	}
	for _, scope := range strings.Split(root, ",") {
		if strings.TrimSpace(scope) == elRoot {
			return true
		}
	}
	return false
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
