package layout

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/latebit/castnav/internal/graph"
	"github.com/latebit/castnav/internal/visibility"
)

// Kind says how a reconciliation restarted the simulation.
type Kind int

const (
	// Initial is the first layout of a session, or a layout after an empty one.
	Initial Kind = iota
	// Reheat is a change that kept the focus; the run is re-energised gently.
	Reheat
	// Reseed is a focus change; the run restarts at full energy.
	Reseed
)

func (k Kind) String() string {
	switch k {
	case Reheat:
		return "reheat"
	case Reseed:
		return "reseed"
	default:
		return "initial"
	}
}

// Position is a read-only snapshot of one simulated node.
type Position struct {
	ID     string
	X, Y   float64
	Pinned bool
}

// body is the mutable simulation entry for one node id.
type body struct {
	id       string
	x, y     float64
	vx, vy   float64
	fx, fy   float64
	pinned   bool
	lastSeen int
}

type link struct {
	source, target *body
	distance       float64
	bias           float64
}

// Simulator owns every simulation entry. Nothing outside the package holds
// a reference to an entry; callers read Positions and mutate through Pin and
// Unpin only. A Simulator is not safe for concurrent use.
type Simulator struct {
	params Params
	rng    *rand.Rand
	now    func() time.Time

	table  map[string]*body
	active []*body
	links  []link

	focus       string
	cycle       int
	alpha       float64
	alphaTarget float64
	releaseAt   time.Time

	run       uint64
	ticks     int
	startedAt time.Time
	energy    float64
	settled   bool
	ready     bool
	evicted   int
}

// New returns an empty simulator.
func New(p Params) *Simulator {
	p.applyDefaults()
	seed := p.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Simulator{
		params:  p,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:     time.Now,
		table:   make(map[string]*body),
		settled: true,
	}
}

// SetClock replaces the wall clock used for the ready and run cutoffs.
func (s *Simulator) SetClock(now func() time.Time) {
	s.now = now
}

// Params returns the effective parameters.
func (s *Simulator) Params() Params {
	return s.params
}

// Reconcile replaces the active node set with the visible set in vis.
// Nodes already tracked keep their position and velocity; on a focus change
// they are all translated together so the new focus sits at the origin,
// where it is pinned. Other new nodes start near an already positioned
// neighbour, or on a ring around the origin when none exists.
func (s *Simulator) Reconcile(vis visibility.Result) Kind {
	kind := Reheat
	switch {
	case len(s.active) == 0 || s.focus == "":
		kind = Initial
	case vis.Focus != s.focus:
		kind = Reseed
	}

	s.cycle++
	visible := make(map[string]struct{}, len(vis.Nodes))
	for _, n := range vis.Nodes {
		visible[n.ID] = struct{}{}
	}

	if kind == Reseed {
		if old, ok := s.table[s.focus]; ok {
			old.pinned = false
		}
		for id := range s.table {
			if _, ok := visible[id]; !ok {
				delete(s.table, id)
				s.evicted++
			}
		}
		s.recenter(vis)
	}

	positioned := make(map[string]*body, len(vis.Nodes))
	active := make([]*body, len(vis.Nodes))
	var fresh []int

	for i, n := range vis.Nodes {
		b, ok := s.table[n.ID]
		if n.ID == vis.Focus && (!ok || kind != Reheat) {
			if !ok {
				b = &body{id: n.ID}
				s.table[n.ID] = b
			}
			b.x, b.y, b.vx, b.vy = 0, 0, 0, 0
			b.fx, b.fy, b.pinned = 0, 0, true
			ok = true
		}
		if !ok {
			fresh = append(fresh, i)
			continue
		}
		b.lastSeen = s.cycle
		active[i] = b
		positioned[n.ID] = b
	}

	for _, i := range fresh {
		n := vis.Nodes[i]
		b := &body{id: n.ID, lastSeen: s.cycle}
		if parent := s.findParent(n.ID, vis.Edges, positioned); parent != nil {
			angle := s.rng.Float64() * 2 * math.Pi
			b.x = parent.x + math.Cos(angle)*s.params.SeedDistance
			b.y = parent.y + math.Sin(angle)*s.params.SeedDistance
		} else {
			count := len(vis.Nodes) - 1
			if count < 1 {
				count = 1
			}
			angle := 2 * math.Pi * float64(i) / float64(count)
			radius := s.params.RingRadius + s.rng.Float64()*s.params.RingJitter
			b.x = math.Cos(angle) * radius
			b.y = math.Sin(angle) * radius
		}
		s.table[n.ID] = b
		active[i] = b
		positioned[n.ID] = b
	}
	s.active = active

	for id, b := range s.table {
		if _, ok := visible[id]; ok {
			continue
		}
		if s.cycle-b.lastSeen > s.params.EvictAfter {
			delete(s.table, id)
			s.evicted++
		}
	}

	s.buildLinks(vis.Edges, positioned)
	s.focus = vis.Focus

	switch kind {
	case Reheat:
		s.alpha = math.Min(1, math.Max(s.alpha, s.params.ReheatAlpha))
	default:
		s.alpha = 1
		s.ready = false
	}
	s.restart()
	return kind
}

// recenter translates every tracked entry so the new focus lands on the
// origin. Relative geometry is kept, and the old focus moves off the anchor
// with everyone else. A focus that was not tracked is placed next to a
// tracked neighbour first, or on the ring when it has none.
func (s *Simulator) recenter(vis visibility.Result) {
	var ax, ay float64
	if b, ok := s.table[vis.Focus]; ok {
		ax, ay = b.x, b.y
	} else if parent := s.findParent(vis.Focus, vis.Edges, s.table); parent != nil {
		angle := s.rng.Float64() * 2 * math.Pi
		ax = parent.x + math.Cos(angle)*s.params.SeedDistance
		ay = parent.y + math.Sin(angle)*s.params.SeedDistance
	} else {
		angle := s.rng.Float64() * 2 * math.Pi
		ax = math.Cos(angle) * s.params.RingRadius
		ay = math.Sin(angle) * s.params.RingRadius
	}
	for _, b := range s.table {
		b.x -= ax
		b.y -= ay
		b.fx -= ax
		b.fy -= ay
	}
}

func (s *Simulator) findParent(id string, edges []visibility.Edge, positioned map[string]*body) *body {
	for _, e := range edges {
		if !e.Touches(id) {
			continue
		}
		if p, ok := positioned[e.Other(id)]; ok {
			return p
		}
	}
	return nil
}

func (s *Simulator) buildLinks(edges []visibility.Edge, positioned map[string]*body) {
	s.links = s.links[:0]
	count := make(map[*body]int, len(positioned))
	for _, e := range edges {
		src, okS := positioned[e.Source]
		dst, okT := positioned[e.Target]
		if !okS || !okT {
			continue
		}
		count[src]++
		count[dst]++
		s.links = append(s.links, link{source: src, target: dst, distance: s.distance(e.Class)})
	}
	for i := range s.links {
		l := &s.links[i]
		l.bias = float64(count[l.source]) / float64(count[l.source]+count[l.target])
	}
}

func (s *Simulator) distance(c visibility.Class) float64 {
	switch c {
	case visibility.MainHighlighted:
		return s.params.LinkDistanceHighlighted
	case visibility.MainDim:
		return s.params.LinkDistanceDim
	default:
		return s.params.LinkDistanceSecondary
	}
}

func (s *Simulator) restart() {
	s.run++
	s.ticks = 0
	s.energy = 0
	s.settled = false
	s.startedAt = s.now()
}

// Step advances the simulation by one tick and reports whether the current
// run has settled. A settled run stays settled until the next Reconcile or
// Warm; calling Step on it does nothing.
func (s *Simulator) Step() bool {
	if len(s.active) == 0 {
		s.settled = true
		s.ready = true
		return true
	}

	now := s.now()
	if !s.releaseAt.IsZero() && !now.Before(s.releaseAt) {
		s.alphaTarget = 0
		s.releaseAt = time.Time{}
	}
	warm := s.alphaTarget >= s.params.AlphaMin
	if s.settled && !warm {
		return true
	}

	s.alpha += (s.alphaTarget - s.alpha) * s.params.AlphaDecay
	s.applyLink()
	s.applyCharge()
	s.applyCollide()
	s.applyCenter()
	s.integrate()
	s.ticks++

	elapsed := now.Sub(s.startedAt)
	if !warm {
		s.settled = s.alpha < s.params.AlphaMin ||
			(s.ticks >= s.params.MinTicks && s.energy < s.params.EnergyThreshold) ||
			elapsed >= s.params.MaxRun
	}
	if s.settled || elapsed >= s.params.ReadyAfter {
		s.ready = true
	}
	return s.settled
}

func (s *Simulator) integrate() {
	decay := 1 - s.params.VelocityDecay
	var sum float64
	var free int
	for _, b := range s.active {
		if b.pinned {
			b.x, b.y = b.fx, b.fy
			b.vx, b.vy = 0, 0
			continue
		}
		b.vx *= decay
		b.vy *= decay
		b.x += b.vx
		b.y += b.vy
		sum += b.vx*b.vx + b.vy*b.vy
		free++
	}
	if free > 0 {
		s.energy = sum / float64(free)
	} else {
		s.energy = 0
	}
}

// Warm keeps the simulation energised, as while a node is dragged.
func (s *Simulator) Warm() {
	s.alphaTarget = s.params.DragAlphaTarget
	s.releaseAt = time.Time{}
	if s.settled {
		s.settled = false
		s.run++
		s.ticks = 0
		s.startedAt = s.now()
	}
}

// Cool lets a warmed simulation decay back to rest over the release window.
func (s *Simulator) Cool() {
	now := s.now()
	s.alphaTarget = s.params.ReleaseAlphaTarget
	s.releaseAt = now.Add(s.params.ReleaseWindow)
	s.ticks = 0
	s.startedAt = now
}

// Pin fixes the node at (x, y), bypassing physics until Unpin. Only visible
// nodes can be pinned.
func (s *Simulator) Pin(id string, x, y float64) error {
	b, ok := s.table[id]
	if !ok || b.lastSeen != s.cycle {
		return fmt.Errorf("pin: %w: %q", graph.ErrInvalidReference, id)
	}
	b.x, b.y = x, y
	b.fx, b.fy = x, y
	b.vx, b.vy = 0, 0
	b.pinned = true
	return nil
}

// Unpin releases a pin. The focus node stays anchored where it was left so
// the layout does not drift away from it.
func (s *Simulator) Unpin(id string) error {
	b, ok := s.table[id]
	if !ok {
		return fmt.Errorf("unpin: %w: %q", graph.ErrInvalidReference, id)
	}
	if id == s.focus {
		b.fx, b.fy = b.x, b.y
		b.pinned = true
		return nil
	}
	b.pinned = false
	return nil
}

// Positions returns the active nodes in visible order.
func (s *Simulator) Positions() []Position {
	out := make([]Position, len(s.active))
	for i, b := range s.active {
		out[i] = Position{ID: b.id, X: b.x, Y: b.y, Pinned: b.pinned}
	}
	return out
}

// Position returns the tracked position of id, visible or not.
func (s *Simulator) Position(id string) (Position, bool) {
	b, ok := s.table[id]
	if !ok {
		return Position{}, false
	}
	return Position{ID: b.id, X: b.x, Y: b.y, Pinned: b.pinned}, true
}

// Run returns the sequence number of the current run. It changes on every
// Reconcile and whenever Warm wakes a settled simulation.
func (s *Simulator) Run() uint64 { return s.run }

// Settled reports whether the current run has come to rest.
func (s *Simulator) Settled() bool { return s.settled }

// Ready reports whether the layout is stable enough to show, either because
// the run settled or because the ready cutoff passed.
func (s *Simulator) Ready() bool { return s.ready }

// Alpha returns the current simulation energy.
func (s *Simulator) Alpha() float64 { return s.alpha }

// Energy returns the mean squared speed of free nodes after the last tick.
func (s *Simulator) Energy() float64 { return s.energy }

// Ticks returns the number of ticks in the current run.
func (s *Simulator) Ticks() int { return s.ticks }

// Tracked returns the number of entries in the table, visible or not.
func (s *Simulator) Tracked() int { return len(s.table) }

// Active returns the number of visible entries.
func (s *Simulator) Active() int { return len(s.active) }

// Evicted returns the number of entries dropped so far.
func (s *Simulator) Evicted() int { return s.evicted }
