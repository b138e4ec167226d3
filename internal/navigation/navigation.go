// Package navigation tracks which character is in focus, which characters
// have their neighbourhoods expanded, the back-navigation history and the
// nodes currently being dragged.
//
// The focus is always a member of the expanded set. Every operation either
// succeeds or returns an error and leaves the state untouched.
package navigation

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/latebit/castnav/internal/graph"
	"github.com/latebit/castnav/internal/visibility"
)

// ErrExpansionDisabled is returned by ToggleExpand in ModeNeighbors.
var ErrExpansionDisabled = errors.New("expansion disabled in neighbors mode")

// Mode selects how focus changes and toggles affect the expanded set.
type Mode int

const (
	// ModeCumulative grows the set with ToggleExpand and resets it to the
	// new focus on SetFocus.
	ModeCumulative Mode = iota
	// ModeUnion also grows the set on SetFocus instead of resetting it.
	ModeUnion
	// ModeNeighbors shows only the focus and its direct neighbours.
	ModeNeighbors
)

func (m Mode) String() string {
	switch m {
	case ModeUnion:
		return "union"
	case ModeNeighbors:
		return "neighbors"
	default:
		return "cumulative"
	}
}

// ParseMode parses a mode name as produced by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cumulative":
		return ModeCumulative, nil
	case "union":
		return ModeUnion, nil
	case "neighbors", "neighbours":
		return ModeNeighbors, nil
	}
	return ModeCumulative, fmt.Errorf("unknown expansion mode %q", s)
}

// Pinner is the fixed-position table a drag writes to.
type Pinner interface {
	Pin(id string, x, y float64) error
	Unpin(id string) error
}

// Options configures a Navigator.
type Options struct {
	Protagonist string // default: first node of the graph
	Mode        Mode
	Pins        Pinner // may be nil; pin operations then only validate ids
}

// State is a copy of the navigation state.
type State struct {
	Focus    string
	Expanded visibility.Set
	History  []string
	Source   string
}

// Navigator is the navigation state machine. It is not safe for concurrent
// use.
type Navigator struct {
	g           *graph.Graph
	mode        Mode
	protagonist string
	pins        Pinner

	focus    string
	expanded visibility.Set
	history  []string
	source   string
	dragging map[string]struct{}
}

// New creates a navigator focused on the protagonist.
func New(g *graph.Graph, opts Options) (*Navigator, error) {
	if g.Empty() {
		return nil, graph.ErrEmptyGraph
	}
	p := opts.Protagonist
	if p == "" {
		p, _ = g.First()
	}
	if err := g.Check(p); err != nil {
		return nil, fmt.Errorf("protagonist: %w", err)
	}
	return &Navigator{
		g:           g,
		mode:        opts.Mode,
		protagonist: p,
		pins:        opts.Pins,
		focus:       p,
		expanded:    visibility.NewSet(p),
		dragging:    make(map[string]struct{}),
	}, nil
}

// Focus returns the focused node id.
func (n *Navigator) Focus() string { return n.focus }

// Protagonist returns the node id Reset returns to.
func (n *Navigator) Protagonist() string { return n.protagonist }

// Mode returns the expansion mode.
func (n *Navigator) Mode() Mode { return n.mode }

// Source returns the focus that was left by the last focus change, or "".
func (n *Navigator) Source() string { return n.source }

// Expanded returns a copy of the expanded set.
func (n *Navigator) Expanded() visibility.Set { return n.expanded.Clone() }

// IsExpanded reports whether id is expanded.
func (n *Navigator) IsExpanded(id string) bool { return n.expanded.Has(id) }

// History returns a copy of the history stack, oldest first.
func (n *Navigator) History() []string { return slices.Clone(n.history) }

// State returns a copy of the full state.
func (n *Navigator) State() State {
	return State{
		Focus:    n.focus,
		Expanded: n.Expanded(),
		History:  n.History(),
		Source:   n.source,
	}
}

// CanReset reports whether Reset would change anything visible: the focus
// has moved away from the protagonist or more than one node is expanded.
func (n *Navigator) CanReset() bool {
	return n.focus != n.protagonist || len(n.expanded) > 1
}

// SetFocus makes id the focus and pushes the previous focus onto the
// history. Focusing the current focus is a no-op.
func (n *Navigator) SetFocus(id string) error {
	if err := n.g.Check(id); err != nil {
		return err
	}
	if id == n.focus {
		return nil
	}
	prev := n.focus
	n.history = append(n.history, prev)
	n.focus = id
	n.source = prev
	if n.mode == ModeUnion {
		n.expanded[id] = struct{}{}
	} else {
		n.expanded = visibility.NewSet(id)
	}
	return nil
}

// GoBack restores the most recent history entry as the focus without
// pushing the current focus. The focus being left becomes the source
// highlight. It reports false when the history was empty.
func (n *Navigator) GoBack() bool {
	if len(n.history) == 0 {
		return false
	}
	last := len(n.history) - 1
	prev := n.history[last]
	n.history = n.history[:last]

	left := n.focus
	n.focus = prev
	n.source = left
	switch n.mode {
	case ModeUnion:
		n.expanded[prev] = struct{}{}
	case ModeNeighbors:
		n.expanded = visibility.NewSet(prev)
	default:
		n.expanded = visibility.NewSet(prev, left)
	}
	return true
}

// Reset returns to the protagonist with an empty history and only the
// protagonist expanded.
func (n *Navigator) Reset() {
	n.focus = n.protagonist
	n.history = nil
	n.source = ""
	n.expanded = visibility.NewSet(n.protagonist)
}

// ToggleExpand flips whether id is expanded. The focus cannot be collapsed,
// so toggling it is a no-op. It reports the new membership of id.
func (n *Navigator) ToggleExpand(id string) (bool, error) {
	if err := n.g.Check(id); err != nil {
		return false, err
	}
	if id == n.focus {
		return true, nil
	}
	if n.mode == ModeNeighbors {
		return n.expanded.Has(id), ErrExpansionDisabled
	}
	if n.expanded.Has(id) {
		delete(n.expanded, id)
		return false, nil
	}
	n.expanded[id] = struct{}{}
	return true, nil
}

// PinNode fixes id at (x, y) in the pin table.
func (n *Navigator) PinNode(id string, x, y float64) error {
	if err := n.g.Check(id); err != nil {
		return err
	}
	if n.pins == nil {
		return nil
	}
	return n.pins.Pin(id, x, y)
}

// UnpinNode clears the pin on id. The focus is the exception: the pin table
// re-anchors it where it was dropped instead of releasing it, so the layout
// keeps a fixed centre after the focus is dragged.
func (n *Navigator) UnpinNode(id string) error {
	if err := n.g.Check(id); err != nil {
		return err
	}
	if n.pins == nil {
		return nil
	}
	return n.pins.Unpin(id)
}

// BeginDrag puts id under pointer control at (x, y).
func (n *Navigator) BeginDrag(id string, x, y float64) error {
	if err := n.PinNode(id, x, y); err != nil {
		return err
	}
	n.dragging[id] = struct{}{}
	return nil
}

// DragTo moves a dragged node to (x, y).
func (n *Navigator) DragTo(id string, x, y float64) error {
	if !n.IsDragging(id) {
		return fmt.Errorf("drag %q: not dragging", id)
	}
	return n.PinNode(id, x, y)
}

// EndDrag releases id from pointer control.
func (n *Navigator) EndDrag(id string) error {
	if !n.IsDragging(id) {
		return fmt.Errorf("drag %q: not dragging", id)
	}
	if err := n.UnpinNode(id); err != nil {
		return err
	}
	delete(n.dragging, id)
	return nil
}

// IsDragging reports whether id is under pointer control.
func (n *Navigator) IsDragging(id string) bool {
	_, ok := n.dragging[id]
	return ok
}

// Dragging reports whether any node is under pointer control.
func (n *Navigator) Dragging() bool { return len(n.dragging) > 0 }

// CancelDrags forgets every drag without touching the pin table. The
// caller is expected to have discarded the pins, as a re-seed does.
func (n *Navigator) CancelDrags() []string {
	ids := make([]string, 0, len(n.dragging))
	for id := range n.dragging {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	clear(n.dragging)
	return ids
}
