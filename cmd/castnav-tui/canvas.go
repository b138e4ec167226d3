package main

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/latebit/castnav/internal/view"
	"github.com/latebit/castnav/internal/visibility"
)

// aspect is the width of a terminal cell relative to its height.
const aspect = 2.0

// ink is what a canvas cell was drawn with. Higher ink wins when two
// drawings overlap, so labels are never cut by edges.
type ink int

const (
	inkNone ink = iota
	inkSecondary
	inkDim
	inkHighlighted
	inkNode
	inkFromSource
	inkFocused
	inkCursor
)

type cell struct {
	r   rune
	ink ink
}

// canvas is a fixed-size grid of runes.
type canvas struct {
	w, h  int
	cells []cell
}

func newCanvas(w, h int) *canvas {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	c := &canvas{w: w, h: h, cells: make([]cell, w*h)}
	for i := range c.cells {
		c.cells[i] = cell{r: ' '}
	}
	return c
}

func (c *canvas) set(x, y int, r rune, k ink) {
	if x < 0 || y < 0 || x >= c.w || y >= c.h {
		return
	}
	i := y*c.w + x
	if c.cells[i].ink > k {
		return
	}
	c.cells[i] = cell{r: r, ink: k}
}

// line draws from (x0, y0) to (x1, y1) with Bresenham's algorithm. The
// endpoints are left blank for the node glyphs.
func (c *canvas) line(x0, y0, x1, y1 int, k ink) {
	r := edgeRune(x1-x0, y1-y0, k)
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	x, y := x0, y0
	e := dx + dy
	for {
		if (x != x0 || y != y0) && (x != x1 || y != y1) {
			c.set(x, y, r, k)
		}
		if x == x1 && y == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

func (c *canvas) text(x, y int, s string, k ink) {
	for i, r := range []rune(s) {
		c.set(x+i, y, r, k)
	}
}

// String returns the canvas without styling.
func (c *canvas) String() string {
	var b strings.Builder
	for y := 0; y < c.h; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		for x := 0; x < c.w; x++ {
			b.WriteRune(c.cells[y*c.w+x].r)
		}
	}
	return b.String()
}

// Render returns the canvas with every run of equal ink styled by th.
func (c *canvas) Render(th theme) string {
	var b strings.Builder
	var run strings.Builder
	for y := 0; y < c.h; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		cur := inkNone
		flush := func() {
			if run.Len() == 0 {
				return
			}
			b.WriteString(th.style(cur).Render(run.String()))
			run.Reset()
		}
		for x := 0; x < c.w; x++ {
			cl := c.cells[y*c.w+x]
			k := cl.ink
			if cl.r == ' ' {
				k = inkNone
			}
			if k != cur {
				flush()
				cur = k
			}
			run.WriteRune(cl.r)
		}
		flush()
	}
	return b.String()
}

func edgeRune(dx, dy int, k ink) rune {
	if k == inkSecondary {
		return '·'
	}
	switch {
	case dy == 0 || abs(dx) > 4*abs(dy):
		if k == inkHighlighted {
			return '═'
		}
		return '─'
	case dx == 0 || abs(dy) > 2*abs(dx):
		if k == inkHighlighted {
			return '║'
		}
		return '│'
	case (dx > 0) == (dy > 0):
		return '╲'
	default:
		return '╱'
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// theme holds the lipgloss styles of the graph view. The accent colour
// comes from the work's cover colour.
type theme struct {
	accent      lipgloss.Color
	secondary   lipgloss.Style
	dim         lipgloss.Style
	highlighted lipgloss.Style
	node        lipgloss.Style
	fromSource  lipgloss.Style
	focused     lipgloss.Style
	cursor      lipgloss.Style
	header      lipgloss.Style
}

const defaultAccent = "#7D56F4"

func newTheme(accent string) theme {
	if accent == "" {
		accent = defaultAccent
	}
	a := lipgloss.Color(accent)
	return theme{
		accent:      a,
		secondary:   lipgloss.NewStyle().Faint(true),
		dim:         lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		highlighted: lipgloss.NewStyle().Foreground(a),
		node:        lipgloss.NewStyle(),
		fromSource:  lipgloss.NewStyle().Foreground(a),
		focused:     lipgloss.NewStyle().Foreground(a).Bold(true),
		cursor:      lipgloss.NewStyle().Reverse(true),
		header:      lipgloss.NewStyle().Foreground(a).Bold(true).Padding(0, 1),
	}
}

func (th theme) style(k ink) lipgloss.Style {
	switch k {
	case inkSecondary:
		return th.secondary
	case inkDim:
		return th.dim
	case inkHighlighted:
		return th.highlighted
	case inkNode:
		return th.node
	case inkFromSource:
		return th.fromSource
	case inkFocused:
		return th.focused
	case inkCursor:
		return th.cursor
	default:
		return lipgloss.NewStyle()
	}
}

func edgeInk(c visibility.Class) ink {
	switch c {
	case visibility.MainHighlighted:
		return inkHighlighted
	case visibility.MainDim:
		return inkDim
	default:
		return inkSecondary
	}
}

func nodeGlyph(n view.PositionedNode) (rune, ink) {
	switch n.Class {
	case view.ClassFocused:
		return '◉', inkFocused
	case view.ClassFromSource:
		return '◆', inkFromSource
	default:
		return '○', inkNode
	}
}

// drawFrame paints f through cam onto a w×h canvas. The node under the
// cursor is drawn with cursor ink.
func drawFrame(f view.Frame, cam view.Camera, w, h int, cursor string) *canvas {
	c := newCanvas(w, h)
	type point struct{ x, y int }
	at := make(map[string]point, len(f.Nodes))
	for _, n := range f.Nodes {
		sx, sy := cam.ToScreen(n.X, n.Y, aspect)
		at[n.ID] = point{int(math.Round(sx)), int(math.Round(sy))}
	}
	for _, e := range f.Edges {
		a, okA := at[e.Source]
		b, okB := at[e.Target]
		if !okA || !okB {
			continue
		}
		c.line(a.x, a.y, b.x, b.y, edgeInk(e.Class))
	}
	for _, n := range f.Nodes {
		p := at[n.ID]
		glyph, k := nodeGlyph(n)
		label := n.Label
		if n.Pinned {
			label += "*"
		}
		c.set(p.x, p.y, glyph, k)
		if n.ID == cursor {
			k = inkCursor
		}
		c.text(p.x+2, p.y, label, k)
	}
	return c
}
