package stealth

import (
	"context"
	"fmt"
	"time"
)

// SectionFinder resolves a named profile section (about, experience, ...) to a region
type SectionFinder func(ctx context.Context, name string) (Region, error)

// Scroll scrolls by amount ±10px in a few smooth steps, then pauses 0.8-2s as if reading.
func (e *Emulator) Scroll(ctx context.Context, d Driver, amount float64) error {
	total := amount + e.uniform(-10, 10)
	steps := 3 + e.intn(4)
	step := total / float64(steps)

	for i := 0; i < steps; i++ {
		if err := d.ScrollBy(ctx, step); err != nil {
			return fmt.Errorf("failed to scroll: %w", err)
		}
		if err := e.Pause(ctx, 40*time.Millisecond, 120*time.Millisecond); err != nil {
			return err
		}
	}

	return e.Pause(ctx, 800*time.Millisecond, 2*time.Second)
}

// Skim scrolls down passes times by 200-450px each, like glancing over a page,
// then scrolls back by the same distance so the top of the page is in view again.
func (e *Emulator) Skim(ctx context.Context, d Driver, passes int) error {
	var travelled float64
	for i := 0; i < passes; i++ {
		amount := e.uniform(200, 450)
		if err := e.Scroll(ctx, d, amount); err != nil {
			return err
		}
		travelled += amount
	}
	if travelled == 0 {
		return nil
	}
	return e.Scroll(ctx, d, -travelled)
}

// ReadProfile pads dwell time on a profile. Each named section has a 60% chance of being
// scrolled into view, looked at for 1.5-3.5s and hovered over. Missing sections are skipped.
func (e *Emulator) ReadProfile(ctx context.Context, d Driver, find SectionFinder, sections []string) error {
	visited := 0

	for _, name := range sections {
		if e.float64() >= 0.6 {
			continue
		}

		region, err := find(ctx, name)
		if err != nil {
			e.log.Debugw("Profile section not available", "section", name, "error", err)
			continue
		}

		if err := region.ScrollIntoView(ctx); err != nil {
			e.log.Debugw("Failed to scroll section into view", "section", name, "error", err)
			continue
		}
		if err := e.Pause(ctx, 1500*time.Millisecond, 3500*time.Millisecond); err != nil {
			return err
		}

		box, err := region.Box(ctx)
		if err == nil {
			if err := e.Wander(ctx, d, box); err != nil {
				return err
			}
		}
		visited++
	}

	e.log.Debugw("Profile reading simulated", "sections", len(sections), "visited", visited)
	return ctx.Err()
}
