package view

import "fmt"

// Interaction is the kind of a node interaction.
type Interaction string

const (
	InteractSelect    Interaction = "select"
	InteractExpand    Interaction = "expand"
	InteractCollapse  Interaction = "collapse"
	InteractFocus     Interaction = "focus"
	InteractDragStart Interaction = "drag-start"
	InteractDragEnd   Interaction = "drag-end"
)

// Event is emitted to collaborators such as menus and detail panels.
type Event interface {
	event()
	fmt.Stringer
}

// FocusChanged is emitted after the focus moved.
type FocusChanged struct {
	Focus    string
	Previous string
}

// SimulationSettled is emitted when a layout run comes to rest.
type SimulationSettled struct {
	Run   uint64
	Ticks int
}

// NodeInteracted is emitted for every user interaction with a node.
type NodeInteracted struct {
	ID   string
	Kind Interaction
}

func (FocusChanged) event()      {}
func (SimulationSettled) event() {}
func (NodeInteracted) event()    {}

func (e FocusChanged) String() string {
	return fmt.Sprintf("focusChanged(%s)", e.Focus)
}

func (e SimulationSettled) String() string {
	return fmt.Sprintf("simulationSettled(run=%d, ticks=%d)", e.Run, e.Ticks)
}

func (e NodeInteracted) String() string {
	return fmt.Sprintf("nodeInteracted(%s, %s)", e.ID, e.Kind)
}

// MenuFor returns the menu entries offered for a node: expand or collapse,
// then set as focus unless the node already is the focus. The focus itself
// cannot be collapsed, so it gets no expand entry either.
func MenuFor(id, focus string, expanded bool) []Interaction {
	if id == focus {
		return nil
	}
	if expanded {
		return []Interaction{InteractCollapse, InteractFocus}
	}
	return []Interaction{InteractExpand, InteractFocus}
}
