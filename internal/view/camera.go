package view

import "math"

// Camera maps world coordinates onto a screen of a given size.
type Camera struct {
	Scale   float64
	CenterX float64
	CenterY float64
	Width   float64
	Height  float64
}

// Fit returns a camera showing all of b on a w×h screen with padding
// screen units on every side. Aspect scales a screen unit horizontally,
// which terminals need because cells are about twice as tall as wide.
// The scale never exceeds maxScale.
func Fit(b Bounds, w, h, padding, aspect, maxScale float64) Camera {
	if aspect <= 0 {
		aspect = 1
	}
	c := Camera{
		Scale:   maxScale,
		CenterX: (b.MinX + b.MaxX) / 2,
		CenterY: (b.MinY + b.MaxY) / 2,
		Width:   w,
		Height:  h,
	}
	availW := (w - 2*padding) / aspect
	availH := h - 2*padding
	if availW <= 0 || availH <= 0 {
		return c
	}
	if bw := b.Width(); bw > 0 {
		c.Scale = math.Min(c.Scale, availW/bw)
	}
	if bh := b.Height(); bh > 0 {
		c.Scale = math.Min(c.Scale, availH/bh)
	}
	return c
}

// ToScreen converts a world point to screen coordinates. Aspect must match
// the value given to Fit.
func (c Camera) ToScreen(x, y, aspect float64) (float64, float64) {
	if aspect <= 0 {
		aspect = 1
	}
	sx := c.Width/2 + (x-c.CenterX)*c.Scale*aspect
	sy := c.Height/2 + (y-c.CenterY)*c.Scale
	return sx, sy
}

// ToWorld is the inverse of ToScreen.
func (c Camera) ToWorld(sx, sy, aspect float64) (float64, float64) {
	if aspect <= 0 {
		aspect = 1
	}
	if c.Scale == 0 {
		return c.CenterX, c.CenterY
	}
	x := c.CenterX + (sx-c.Width/2)/(c.Scale*aspect)
	y := c.CenterY + (sy-c.Height/2)/c.Scale
	return x, y
}
