// Package view turns the visible subgraph and the simulated positions into
// render-ready frames, and decides when the camera should be refitted.
package view

import (
	"math"

	"github.com/latebit/castnav/internal/layout"
	"github.com/latebit/castnav/internal/visibility"
)

// CSS-style class names carried by positioned nodes.
const (
	ClassFocused    = "focused"
	ClassFromSource = "from-source"
	ClassDefault    = "default"
)

// Locator looks up the simulated position of a node.
type Locator interface {
	Position(id string) (layout.Position, bool)
}

// PositionedNode is a visible node placed in world coordinates.
type PositionedNode struct {
	ID           string  `json:"id"`
	Label        string  `json:"label"`
	Role         string  `json:"role,omitempty"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Pinned       bool    `json:"pinned,omitempty"`
	IsFocused    bool    `json:"isFocused"`
	IsFromSource bool    `json:"isFromSource"`
	Class        string  `json:"className"`
}

// StyledEdge is a visible edge with its classification.
type StyledEdge struct {
	Source string           `json:"source"`
	Target string           `json:"target"`
	Label  string           `json:"label,omitempty"`
	Class  visibility.Class `json:"classification"`
}

// Stats is the header summary shown above the graph.
type Stats struct {
	Focus    string `json:"focus"`
	Expanded int    `json:"expanded"`
	Visible  int    `json:"visible"`
	Edges    int    `json:"edges"`
}

// Frame is one render-ready snapshot.
type Frame struct {
	Run      uint64           `json:"run"`
	Ready    bool             `json:"ready"`
	Settled  bool             `json:"settled"`
	Fit      bool             `json:"fit"`
	CanReset bool             `json:"canReset"`
	Stats    Stats            `json:"stats"`
	Nodes    []PositionedNode `json:"nodes"`
	Edges    []StyledEdge     `json:"edges"`
}

// Project builds a frame from the visible subgraph and the simulator's
// positions. Nodes the locator does not know are placed at the origin.
func Project(vis visibility.Result, pos Locator, expanded int) Frame {
	f := Frame{
		Stats: Stats{
			Focus:    vis.Focus,
			Expanded: expanded,
			Visible:  len(vis.Nodes),
			Edges:    len(vis.Edges),
		},
		Nodes: make([]PositionedNode, 0, len(vis.Nodes)),
		Edges: make([]StyledEdge, 0, len(vis.Edges)),
	}
	for _, n := range vis.Nodes {
		pn := PositionedNode{
			ID:           n.ID,
			Label:        n.Label,
			Role:         n.Role,
			IsFocused:    n.IsFocused,
			IsFromSource: n.IsFromSource,
			Class:        ClassName(n.Flags),
		}
		if pn.Label == "" {
			pn.Label = n.ID
		}
		if pos != nil {
			if p, ok := pos.Position(n.ID); ok {
				pn.X, pn.Y, pn.Pinned = p.X, p.Y, p.Pinned
			}
		}
		f.Nodes = append(f.Nodes, pn)
	}
	for _, e := range vis.Edges {
		f.Edges = append(f.Edges, StyledEdge{
			Source: e.Source,
			Target: e.Target,
			Label:  e.Label,
			Class:  e.Class,
		})
	}
	return f
}

// ClassName maps node flags to a class name. The focus wins over the
// from-source flag.
func ClassName(fl visibility.Flags) string {
	switch {
	case fl.IsFocused:
		return ClassFocused
	case fl.IsFromSource:
		return ClassFromSource
	default:
		return ClassDefault
	}
}

// Node returns the positioned node with the given id.
func (f Frame) Node(id string) (PositionedNode, bool) {
	for _, n := range f.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return PositionedNode{}, false
}

// Nearest returns the node closest to (x, y) within radius, in world units.
func (f Frame) Nearest(x, y, radius float64) (PositionedNode, bool) {
	best := -1
	bestD := radius * radius
	for i, n := range f.Nodes {
		dx, dy := n.X-x, n.Y-y
		if d := dx*dx + dy*dy; d <= bestD {
			best, bestD = i, d
		}
	}
	if best < 0 {
		return PositionedNode{}, false
	}
	return f.Nodes[best], true
}

// Bounds is an axis-aligned box in world coordinates.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width returns the horizontal extent.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent.
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Bounds returns the box enclosing every node. An empty frame has zero
// bounds.
func (f Frame) Bounds() Bounds {
	if len(f.Nodes) == 0 {
		return Bounds{}
	}
	b := Bounds{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
	for _, n := range f.Nodes {
		b.MinX = math.Min(b.MinX, n.X)
		b.MinY = math.Min(b.MinY, n.Y)
		b.MaxX = math.Max(b.MaxX, n.X)
		b.MaxY = math.Max(b.MaxY, n.Y)
	}
	return b
}
