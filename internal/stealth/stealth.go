package stealth

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Point represents a 2D coordinate
type Point struct {
	X float64
	Y float64
}

// Rect is an element's bounding box in viewport coordinates
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Center returns the middle of the box
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Driver is the input surface the emulator drives. The browser page implements it.
type Driver interface {
	MoveMouse(ctx context.Context, x, y float64) error
	MouseDown(ctx context.Context) error
	MouseUp(ctx context.Context) error
	InsertText(ctx context.Context, text string) error
	PressBackspace(ctx context.Context) error
	ScrollBy(ctx context.Context, dy float64) error
}

// Region is anything on the page with a box that can be scrolled to
type Region interface {
	Box(ctx context.Context) (Rect, error)
	ScrollIntoView(ctx context.Context) error
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Personality selects a typing cadence
type Personality string

const (
	Careful Personality = "careful"
	Normal  Personality = "normal"
	Fast    Personality = "fast"
)

// Emulator synthesizes pointer paths, typing cadence and reading pauses.
// Its only state is the last known pointer position.
type Emulator struct {
	mu          sync.Mutex
	rng         *rand.Rand
	sleep       SleepFunc
	personality Personality
	typoRate    float64
	pos         Point
	log         *zap.SugaredLogger
}

// Option configures an Emulator
type Option func(*Emulator)

// WithRand makes every random draw come from r
func WithRand(r *rand.Rand) Option {
	return func(e *Emulator) { e.rng = r }
}

// WithSleep replaces the real-time sleep, mostly for tests
func WithSleep(fn SleepFunc) Option {
	return func(e *Emulator) { e.sleep = fn }
}

// WithPersonality sets the typing cadence
func WithPersonality(p Personality) Option {
	return func(e *Emulator) { e.personality = p }
}

// WithTypoRate sets the per-character probability of a corrected typo
func WithTypoRate(rate float64) Option {
	return func(e *Emulator) { e.typoRate = rate }
}

// WithLogger sets the diagnostic logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Emulator) { e.log = l }
}

// New creates an Emulator seeded from the clock unless WithRand is given
func New(opts ...Option) *Emulator {
	e := &Emulator{
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:       Sleep,
		personality: Normal,
		typoRate:    0.025,
		log:         zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sleep waits for d unless ctx ends first
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Position returns the last pointer position the emulator moved to
func (e *Emulator) Position() Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

func (e *Emulator) setPosition(p Point) {
	e.mu.Lock()
	e.pos = p
	e.mu.Unlock()
}

func (e *Emulator) float64() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}

func (e *Emulator) intn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Intn(n)
}

// RandomDelay returns a uniform duration in [min, max)
func (e *Emulator) RandomDelay(min, max time.Duration) time.Duration {
	if min >= max {
		return min
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return min + time.Duration(e.rng.Int63n(int64(max-min)))
}

// uniform returns a value in [min, max)
func (e *Emulator) uniform(min, max float64) float64 {
	return min + e.float64()*(max-min)
}

// Pause sleeps for a uniform duration in [min, max)
func (e *Emulator) Pause(ctx context.Context, min, max time.Duration) error {
	return e.sleep(ctx, e.RandomDelay(min, max))
}

// ShortPause is the small hesitation used between discrete UI steps
func (e *Emulator) ShortPause(ctx context.Context) error {
	return e.Pause(ctx, 300*time.Millisecond, 800*time.Millisecond)
}
