package connection

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/yourusername/linkedin-connector/internal/browser"
	"github.com/yourusername/linkedin-connector/internal/config"
)

// ErrControlNotFound means no strategy could find the requested control
var ErrControlNotFound = errors.New("control not found for requested action")

// Strategy is one way of finding a control on the page
type Strategy interface {
	Name() string
	Find(ctx context.Context, page browser.Page, m config.VerbMarkers) (browser.Element, error)
}

// ScriptScan scores the button-like elements under the markers' root by visible text and aria-label
type ScriptScan struct{}

func (ScriptScan) Name() string { return "script_scan" }

func (ScriptScan) Find(ctx context.Context, page browser.Page, m config.VerbMarkers) (browser.Element, error) {
	if len(m.Include) == 0 {
		return nil, browser.ErrNotFound
	}
	return page.ScanControls(ctx, m.Root, m.Include, m.Exclude)
}

// SelectorScan walks the configured structural selectors and keeps the first truly visible hit
type SelectorScan struct{}

func (SelectorScan) Name() string { return "selector_scan" }

func (SelectorScan) Find(ctx context.Context, page browser.Page, m config.VerbMarkers) (browser.Element, error) {
	if len(m.Selectors) == 0 {
		return nil, browser.ErrNotFound
	}
	return page.QueryVisible(ctx, m.Selectors)
}

// Locator runs its strategies in order; the first match wins
type Locator struct {
	strategies []Strategy
	log        *zap.SugaredLogger
}

// NewLocator creates a locator. Without strategies it uses ScriptScan then SelectorScan.
func NewLocator(log *zap.SugaredLogger, strategies ...Strategy) *Locator {
	if len(strategies) == 0 {
		strategies = []Strategy{ScriptScan{}, SelectorScan{}}
	}
	return &Locator{strategies: strategies, log: log}
}

// Locate returns the first element any strategy finds, or ErrControlNotFound
func (l *Locator) Locate(ctx context.Context, page browser.Page, m config.VerbMarkers) (browser.Element, error) {
	for _, s := range l.strategies {
		el, err := s.Find(ctx, page, m)
		if err == nil {
			l.log.Debugw("Control located", "strategy", s.Name(), "label", el.Label())
			return el, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !errors.Is(err, browser.ErrNotFound) {
			l.log.Debugw("Locator strategy failed", "strategy", s.Name(), "error", err)
		}
	}
	return nil, ErrControlNotFound
}

// Present reports whether the control can be located
func (l *Locator) Present(ctx context.Context, page browser.Page, m config.VerbMarkers) bool {
	_, err := l.Locate(ctx, page, m)
	return err == nil
}
