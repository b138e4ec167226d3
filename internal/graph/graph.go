// Package graph provides the immutable character graph for one work: nodes
// keyed by stable string identifiers and undirected relationship edges.
package graph

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidReference is returned when an id does not name a known node.
	ErrInvalidReference = errors.New("invalid node reference")

	// ErrEmptyGraph is returned when a graph has no nodes to show.
	ErrEmptyGraph = errors.New("graph has no nodes")
)

var validate = validator.New()

// Node represents a character in the graph.
type Node struct {
	ID          string `validate:"required,max=200"`
	Label       string `validate:"max=200"`
	Role        string
	Avatar      string
	Description string
}

// Edge represents an undirected relationship between two characters.
// Source and Target order carries no meaning for traversal.
type Edge struct {
	Source      string `validate:"required"`
	Target      string `validate:"required"`
	Label       string
	Description string
}

// Other returns the endpoint of e that is not id.
func (e Edge) Other(id string) string {
	if e.Source == id {
		return e.Target
	}
	return e.Source
}

// Touches reports whether id is one of the endpoints of e.
func (e Edge) Touches(id string) bool {
	return e.Source == id || e.Target == id
}

// Graph is an immutable set of nodes and edges. It is safe for concurrent
// reads because nothing mutates it after New returns.
type Graph struct {
	nodes []Node
	edges []Edge
	index map[string]int
	adj   map[string][]int // node id -> indexes into edges
}

// New builds a graph from node and edge lists. Node ids must be unique and
// every edge endpoint must name an existing node. An edge that repeats an
// already-seen pair (in either direction) is dropped, as are self-loops.
// An empty label defaults to the node id.
func New(nodes []Node, edges []Edge) (*Graph, error) {
	g := &Graph{
		nodes: make([]Node, 0, len(nodes)),
		index: make(map[string]int, len(nodes)),
		adj:   make(map[string][]int, len(nodes)),
	}

	for i, n := range nodes {
		if err := validate.Struct(n); err != nil {
			return nil, fmt.Errorf("node %d: %w", i, firstFieldError(err))
		}
		if _, dup := g.index[n.ID]; dup {
			return nil, fmt.Errorf("node %d: duplicate id %q", i, n.ID)
		}
		if n.Label == "" {
			n.Label = n.ID
		}
		g.index[n.ID] = len(g.nodes)
		g.nodes = append(g.nodes, n)
	}

	seen := make(map[[2]string]struct{}, len(edges))
	for i, e := range edges {
		if err := validate.Struct(e); err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, firstFieldError(err))
		}
		if !g.Has(e.Source) {
			return nil, fmt.Errorf("edge %d: source %w: %q", i, ErrInvalidReference, e.Source)
		}
		if !g.Has(e.Target) {
			return nil, fmt.Errorf("edge %d: target %w: %q", i, ErrInvalidReference, e.Target)
		}
		if e.Source == e.Target {
			continue
		}
		key := pairKey(e.Source, e.Target)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		idx := len(g.edges)
		g.edges = append(g.edges, e)
		g.adj[e.Source] = append(g.adj[e.Source], idx)
		g.adj[e.Target] = append(g.adj[e.Target], idx)
	}

	return g, nil
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

func firstFieldError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%s: failed %q constraint", fe.Field(), fe.Tag())
	}
	return err
}

// Has reports whether id names a node in the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Check returns an ErrInvalidReference error if id is not a known node.
func (g *Graph) Check(id string) error {
	if !g.Has(id) {
		return fmt.Errorf("%w: %q", ErrInvalidReference, id)
	}
	return nil
}

// GetNode returns the node for id, or false if not found.
func (g *Graph) GetNode(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Nodes returns a copy of the node list in load order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns a copy of the edge list in load order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Empty reports whether the graph has no nodes.
func (g *Graph) Empty() bool { return g == nil || len(g.nodes) == 0 }

// First returns the id of the first loaded node, the default protagonist.
func (g *Graph) First() (string, error) {
	if g.Empty() {
		return "", ErrEmptyGraph
	}
	return g.nodes[0].ID, nil
}

// Order returns the load position of id, or -1 if unknown. Resolvers use it
// to emit nodes in a stable order.
func (g *Graph) Order(id string) int {
	i, ok := g.index[id]
	if !ok {
		return -1
	}
	return i
}

// EdgesOf returns the edges touching id, in load order.
func (g *Graph) EdgesOf(id string) []Edge {
	idxs := g.adj[id]
	out := make([]Edge, len(idxs))
	for i, idx := range idxs {
		out[i] = g.edges[idx]
	}
	return out
}

// EdgeIndexesOf returns the load positions of the edges touching id.
// The returned slice must not be modified.
func (g *Graph) EdgeIndexesOf(id string) []int {
	return g.adj[id]
}

// EdgeAt returns the edge at load position i.
func (g *Graph) EdgeAt(i int) Edge {
	return g.edges[i]
}

// Neighbors returns the ids of all nodes sharing an edge with id.
func (g *Graph) Neighbors(id string) []string {
	idxs := g.adj[id]
	out := make([]string, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, g.edges[idx].Other(id))
	}
	return out
}

// Degree returns the number of edges touching id.
func (g *Graph) Degree(id string) int {
	return len(g.adj[id])
}
