package stealth

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	minPathPoints = 15
	maxPathPoints = 25
	controlJitter = 50.0
	minPointDelay = 10 * time.Millisecond
	maxPointDelay = 30 * time.Millisecond
)

// CubicBezierCurve generates points along a cubic Bézier curve
func CubicBezierCurve(start, end, control1, control2 Point, steps int) []Point {
	if steps < 2 {
		return []Point{end}
	}
	points := make([]Point, steps)

	for i := 0; i < steps; i++ {
		t := float64(i) / float64(steps-1)

		// B(t) = (1-t)³P₀ + 3(1-t)²tP₁ + 3(1-t)t²P₂ + t³P₃
		u := 1 - t
		points[i] = Point{
			X: u*u*u*start.X + 3*u*u*t*control1.X + 3*u*t*t*control2.X + t*t*t*end.X,
			Y: u*u*u*start.Y + 3*u*u*t*control1.Y + 3*u*t*t*control2.Y + t*t*t*end.Y,
		}
	}

	return points
}

// BezierPath returns the intermediate points of a curved move from start to end.
// The path has 15-25 points and its control points sit at 1/3 and 2/3 of the straight
// line, each offset by up to ±50px on both axes. The last point is always end.
func (e *Emulator) BezierPath(start, end Point) []Point {
	n := minPathPoints + e.intn(maxPathPoints-minPathPoints+1)

	dx := end.X - start.X
	dy := end.Y - start.Y
	c1 := Point{
		X: start.X + dx/3 + e.uniform(-controlJitter, controlJitter),
		Y: start.Y + dy/3 + e.uniform(-controlJitter, controlJitter),
	}
	c2 := Point{
		X: start.X + 2*dx/3 + e.uniform(-controlJitter, controlJitter),
		Y: start.Y + 2*dy/3 + e.uniform(-controlJitter, controlJitter),
	}

	// n+1 samples including start; start itself is not revisited
	return CubicBezierCurve(start, end, c1, c2, n+1)[1:]
}

// MoveTo moves the pointer to target along a Bézier path with a 10-30ms pause per point.
func (e *Emulator) MoveTo(ctx context.Context, d Driver, target Point) error {
	path := e.BezierPath(e.Position(), target)

	for _, p := range path {
		if err := d.MoveMouse(ctx, p.X, p.Y); err != nil {
			return fmt.Errorf("failed to move mouse: %w", err)
		}
		e.setPosition(p)
		if err := e.Pause(ctx, minPointDelay, maxPointDelay); err != nil {
			return err
		}
	}

	return nil
}

// Click moves to target, hesitates 200-500ms, clicks with a short press, and waits 100-300ms.
func (e *Emulator) Click(ctx context.Context, d Driver, target Point) error {
	if err := e.MoveTo(ctx, d, target); err != nil {
		return err
	}
	if err := e.Pause(ctx, 200*time.Millisecond, 500*time.Millisecond); err != nil {
		return err
	}
	if err := d.MouseDown(ctx); err != nil {
		return fmt.Errorf("failed to press mouse: %w", err)
	}
	if err := e.Pause(ctx, 40*time.Millisecond, 120*time.Millisecond); err != nil {
		return err
	}
	if err := d.MouseUp(ctx); err != nil {
		return fmt.Errorf("failed to release mouse: %w", err)
	}
	return e.Pause(ctx, 100*time.Millisecond, 300*time.Millisecond)
}

// ClickRegion clicks a point near the middle of region, avoiding its exact center.
func (e *Emulator) ClickRegion(ctx context.Context, d Driver, region Region) error {
	box, err := region.Box(ctx)
	if err != nil {
		return fmt.Errorf("failed to get element box: %w", err)
	}
	return e.Click(ctx, d, e.pointWithin(box, 0.3))
}

// Wander drifts the pointer between a few points inside box
func (e *Emulator) Wander(ctx context.Context, d Driver, box Rect) error {
	moves := 1 + e.intn(3)
	for i := 0; i < moves; i++ {
		if err := e.MoveTo(ctx, d, e.pointWithin(box, 0.8)); err != nil {
			return err
		}
		if err := e.Pause(ctx, 150*time.Millisecond, 600*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

// pointWithin picks a point in the central spread fraction of box
func (e *Emulator) pointWithin(box Rect, spread float64) Point {
	c := box.Center()
	halfW := math.Max(box.Width*spread/2, 0)
	halfH := math.Max(box.Height*spread/2, 0)
	return Point{
		X: c.X + e.uniform(-halfW, halfW),
		Y: c.Y + e.uniform(-halfH, halfH),
	}
}
