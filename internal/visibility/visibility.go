// Package visibility derives the visible subgraph from a full graph, a focus
// node and a set of expanded nodes.
//
// A node is visible when it is the focus, is expanded, or is a direct
// neighbour of an expanded node. An edge is visible when both endpoints are
// visible and at least one endpoint is expanded, so two unexpanded
// second-degree nodes never get connected just because both happen to be
// on screen.
package visibility

import (
	"fmt"
	"sort"

	"github.com/latebit/castnav/internal/graph"
)

// Class is the display classification of a visible edge.
type Class int

const (
	// Secondary edges connect two non-focus nodes.
	Secondary Class = iota
	// MainDim edges connect the focus to an unexpanded neighbour.
	MainDim
	// MainHighlighted edges connect the focus to an expanded neighbour.
	MainHighlighted
)

func (c Class) String() string {
	switch c {
	case MainHighlighted:
		return "main-highlighted"
	case MainDim:
		return "main-dim"
	default:
		return "secondary"
	}
}

// MarshalText encodes the class by name.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a class name.
func (c *Class) UnmarshalText(b []byte) error {
	switch string(b) {
	case "main-highlighted":
		*c = MainHighlighted
	case "main-dim":
		*c = MainDim
	case "secondary":
		*c = Secondary
	default:
		return fmt.Errorf("unknown edge class %q", b)
	}
	return nil
}

// Flags are the per-node display flags.
type Flags struct {
	IsFocused    bool
	IsFromSource bool
}

// Node is a visible graph node with its flags.
type Node struct {
	graph.Node
	Flags
}

// Edge is a visible graph edge with its classification.
type Edge struct {
	graph.Edge
	Class Class
}

// Result is the visible subgraph. Nodes keep graph load order and Edges
// keep graph edge order, so equal inputs produce equal results.
type Result struct {
	Focus string
	Nodes []Node
	Edges []Edge
}

// Has reports whether id is in the visible node set.
func (r Result) Has(id string) bool {
	for _, n := range r.Nodes {
		if n.ID == id {
			return true
		}
	}
	return false
}

// IDs returns the visible node ids in order.
func (r Result) IDs() []string {
	ids := make([]string, len(r.Nodes))
	for i, n := range r.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// Set is a set of node ids.
type Set map[string]struct{}

// NewSet returns a set containing ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Resolve computes the visible subgraph. The focus is always treated as
// expanded even if the caller's set omits it. Unknown ids in expanded are
// ignored. Resolve does not modify its arguments.
func Resolve(g *graph.Graph, focus string, expanded Set) Result {
	res := Result{Focus: focus}
	if g.Empty() || !g.Has(focus) {
		return res
	}

	isExpanded := func(id string) bool {
		return id == focus || expanded.Has(id)
	}

	visible := NewSet(focus)
	edgeIdx := make(map[int]struct{})
	for id := range expanded {
		if !g.Has(id) {
			continue
		}
		visible[id] = struct{}{}
		for _, i := range g.EdgeIndexesOf(id) {
			visible[g.EdgeAt(i).Other(id)] = struct{}{}
			edgeIdx[i] = struct{}{}
		}
	}
	for _, i := range g.EdgeIndexesOf(focus) {
		visible[g.EdgeAt(i).Other(focus)] = struct{}{}
		edgeIdx[i] = struct{}{}
	}

	ids := make([]string, 0, len(visible))
	for id := range visible {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return g.Order(ids[a]) < g.Order(ids[b]) })

	res.Nodes = make([]Node, 0, len(ids))
	for _, id := range ids {
		n, _ := g.GetNode(id)
		res.Nodes = append(res.Nodes, Node{
			Node: n,
			Flags: Flags{
				IsFocused:    id == focus,
				IsFromSource: id != focus && expanded.Has(id),
			},
		})
	}

	// Every candidate edge touches an expanded node and both of its
	// endpoints were added to visible above, so the visibility rule holds
	// by construction.
	order := make([]int, 0, len(edgeIdx))
	for i := range edgeIdx {
		order = append(order, i)
	}
	sort.Ints(order)

	res.Edges = make([]Edge, 0, len(order))
	for _, i := range order {
		e := g.EdgeAt(i)
		if !isExpanded(e.Source) && !isExpanded(e.Target) {
			continue
		}
		res.Edges = append(res.Edges, Edge{Edge: e, Class: Classify(e, focus, isExpanded)})
	}

	return res
}

// Classify returns the display class of e given the focus and an expansion
// predicate.
func Classify(e graph.Edge, focus string, isExpanded func(string) bool) Class {
	if !e.Touches(focus) {
		return Secondary
	}
	if isExpanded(e.Other(focus)) {
		return MainHighlighted
	}
	return MainDim
}
