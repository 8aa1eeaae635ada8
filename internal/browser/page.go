// Package browser owns the browser process, its automation page and the cookie jar applied to it.
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/yourusername/linkedin-connector/internal/stealth"
)

var (
	// ErrNotFound is returned by page queries that matched nothing
	ErrNotFound = errors.New("element not found")
	// ErrClosed is returned when acquiring from a manager that has been shut down
	ErrClosed = errors.New("browser manager closed")
)

// Element is a located control on the page
type Element interface {
	stealth.Region
	Click(ctx context.Context) error
	Label() string
}

// Page is everything the verifier and executor need from a live page. Pointer and
// keyboard input come through the embedded stealth.Driver.
type Page interface {
	stealth.Driver

	Navigate(ctx context.Context, url string) error
	// WaitLoad waits for the document to finish loading
	WaitLoad(ctx context.Context) error
	// WaitIdle waits until the page stops doing work
	WaitIdle(ctx context.Context) error
	URL(ctx context.Context) (string, error)
	BodyText(ctx context.Context) (string, error)
	Has(ctx context.Context, selector string) (bool, error)

	// ScanControls scans the button-like elements under root (the whole document when
	// root is empty) and returns the best text or aria-label match for include that
	// contains none of exclude and has a nonzero box.
	ScanControls(ctx context.Context, root string, include, exclude []string) (Element, error)
	// QueryVisible returns the first element matching selectors, in order, that is
	// actually visible (computed style and bounding box).
	QueryVisible(ctx context.Context, selectors []string) (Element, error)
	// WaitVisible retries QueryVisible until something shows up or timeout passes
	WaitVisible(ctx context.Context, selectors []string, timeout time.Duration) (Element, error)

	Section(ctx context.Context, name string) (stealth.Region, error)
	Screenshot(ctx context.Context) ([]byte, error)
}
