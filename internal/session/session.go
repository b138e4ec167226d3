// Package session ties navigation, visibility, layout and projection
// together for one open work. A Session is single-threaded: every mutation
// recomputes the visible subgraph and then reconciles the simulator before
// it returns, so a tick never sees a half-updated visible set. Loop drives a
// Session from one goroutine for callers that need a clocked frame stream.
package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/latebit/castnav/internal/graph"
	"github.com/latebit/castnav/internal/layout"
	"github.com/latebit/castnav/internal/logging"
	"github.com/latebit/castnav/internal/metrics"
	"github.com/latebit/castnav/internal/navigation"
	"github.com/latebit/castnav/internal/view"
	"github.com/latebit/castnav/internal/visibility"
	"golang.org/x/time/rate"
)

// Options configures a Session.
type Options struct {
	Work        string // work id, for logs
	Protagonist string
	Mode        navigation.Mode
	Params      layout.Params
	Logger      *slog.Logger
	Metrics     *metrics.Registry
	Clock       func() time.Time
}

// Session is one user's view of one work.
type Session struct {
	id      string
	g       *graph.Graph
	nav     *navigation.Navigator
	sim     *layout.Simulator
	fit     *view.FitPolicy
	vis     visibility.Result
	log     *slog.Logger
	metrics *metrics.Registry

	subs       []func(view.Event)
	selected   string
	settledRun uint64
	tickLog    rate.Sometimes
	closed     bool
}

// New opens a session on g focused on the protagonist and computes the
// initial layout run. An empty graph is rejected with graph.ErrEmptyGraph
// and no simulation is started.
func New(g *graph.Graph, opts Options) (*Session, error) {
	if g.Empty() {
		return nil, graph.ErrEmptyGraph
	}
	sim := layout.New(opts.Params)
	if opts.Clock != nil {
		sim.SetClock(opts.Clock)
	}
	nav, err := navigation.New(g, navigation.Options{
		Protagonist: opts.Protagonist,
		Mode:        opts.Mode,
		Pins:        sim,
	})
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Session{
		id:      id,
		g:       g,
		nav:     nav,
		sim:     sim,
		fit:     view.NewFitPolicy(),
		log:     logger.With("session", id, "work", opts.Work),
		metrics: opts.Metrics,
		tickLog: rate.Sometimes{Interval: time.Second},
	}
	s.metrics.SessionOpened()
	s.recompute()
	s.log.Info("session opened",
		"focus", nav.Focus(),
		"mode", nav.Mode().String(),
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
	)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Graph returns the graph being navigated.
func (s *Session) Graph() *graph.Graph { return s.g }

// Focus returns the focused node id.
func (s *Session) Focus() string { return s.nav.Focus() }

// Protagonist returns the node Reset returns to.
func (s *Session) Protagonist() string { return s.nav.Protagonist() }

// Mode returns the expansion mode.
func (s *Session) Mode() navigation.Mode { return s.nav.Mode() }

// Expanded returns a copy of the expanded set.
func (s *Session) Expanded() visibility.Set { return s.nav.Expanded() }

// IsExpanded reports whether id is expanded.
func (s *Session) IsExpanded(id string) bool { return s.nav.IsExpanded(id) }

// History returns a copy of the focus history, oldest first.
func (s *Session) History() []string { return s.nav.History() }

// CanReset reports whether the reset control should be offered.
func (s *Session) CanReset() bool { return s.nav.CanReset() }

// Selected returns the node shown in the details panel, or "".
func (s *Session) Selected() string { return s.selected }

// Visible returns the current visible subgraph.
func (s *Session) Visible() visibility.Result { return s.vis }

// Run returns the simulator run sequence. It changes whenever a running
// loop has to restart.
func (s *Session) Run() uint64 { return s.sim.Run() }

// Settled reports whether the current layout run is at rest.
func (s *Session) Settled() bool { return s.sim.Settled() }

// Menu returns the interaction menu entries for id.
func (s *Session) Menu(id string) []view.Interaction {
	return view.MenuFor(id, s.nav.Focus(), s.nav.IsExpanded(id))
}

// Subscribe registers fn to receive every event. Events are delivered
// synchronously on the calling goroutine.
func (s *Session) Subscribe(fn func(view.Event)) {
	s.subs = append(s.subs, fn)
}

func (s *Session) emit(e view.Event) {
	s.log.Debug("event", "event", e.String())
	for _, fn := range s.subs {
		fn(e)
	}
}

func (s *Session) recompute() layout.Kind {
	evicted := s.sim.Evicted()
	s.vis = visibility.Resolve(s.g, s.nav.Focus(), s.nav.Expanded())
	kind := s.sim.Reconcile(s.vis)
	s.metrics.RecordReconcile(kind.String(), s.sim.Active(), s.sim.Tracked())
	s.metrics.RecordEvictions(s.sim.Evicted() - evicted)
	s.log.Debug("reconciled",
		"kind", kind.String(),
		"focus", s.vis.Focus,
		"visible", len(s.vis.Nodes),
		"edges", len(s.vis.Edges),
		"tracked", s.sim.Tracked(),
		"run", s.sim.Run(),
	)
	return kind
}

// releaseDrags drops any drag in progress ahead of a focus change.
func (s *Session) releaseDrags() {
	ids := s.nav.CancelDrags()
	for _, id := range ids {
		_ = s.sim.Unpin(id)
	}
	if len(ids) > 0 {
		s.sim.Cool()
	}
}

func (s *Session) focusChanged(prev string) {
	s.releaseDrags()
	s.recompute()
	s.fit.Request()
	s.emit(view.FocusChanged{Focus: s.nav.Focus(), Previous: prev})
}

// SetFocus makes id the focus.
func (s *Session) SetFocus(id string) error {
	prev := s.nav.Focus()
	err := s.nav.SetFocus(id)
	s.metrics.RecordNavigation("focus", err)
	if err != nil {
		return err
	}
	if id != prev {
		s.emit(view.NodeInteracted{ID: id, Kind: view.InteractFocus})
		s.focusChanged(prev)
	}
	return nil
}

// GoBack returns to the previous focus. It reports false when there was no
// history.
func (s *Session) GoBack() bool {
	prev := s.nav.Focus()
	ok := s.nav.GoBack()
	if !ok {
		s.metrics.RecordNavigation("back", fmt.Errorf("empty history"))
		return false
	}
	s.metrics.RecordNavigation("back", nil)
	s.focusChanged(prev)
	return true
}

// Reset returns to the protagonist and always requests a camera fit.
func (s *Session) Reset() {
	prev := s.nav.Focus()
	before := len(s.nav.Expanded())
	s.nav.Reset()
	s.metrics.RecordNavigation("reset", nil)
	s.fit.Request()
	switch {
	case prev != s.nav.Focus():
		s.focusChanged(prev)
	case before != 1:
		s.recompute()
	}
}

// ToggleExpand expands or collapses id and reports whether it is now
// expanded.
func (s *Session) ToggleExpand(id string) (bool, error) {
	was := s.nav.IsExpanded(id)
	on, err := s.nav.ToggleExpand(id)
	s.metrics.RecordNavigation("expand", err)
	if err != nil {
		return on, err
	}
	if on == was {
		return on, nil
	}
	kind := view.InteractCollapse
	if on {
		kind = view.InteractExpand
	}
	s.emit(view.NodeInteracted{ID: id, Kind: kind})
	s.recompute()
	return on, nil
}

// Select shows id in the details panel. An empty id clears the selection.
func (s *Session) Select(id string) error {
	if id == "" {
		s.selected = ""
		return nil
	}
	if err := s.g.Check(id); err != nil {
		return err
	}
	s.selected = id
	s.emit(view.NodeInteracted{ID: id, Kind: view.InteractSelect})
	return nil
}

// Details returns the selected node, if any.
func (s *Session) Details() (graph.Node, bool) {
	if s.selected == "" {
		return graph.Node{}, false
	}
	return s.g.GetNode(s.selected)
}

// DragStart puts id under pointer control at world position (x, y) and
// keeps the simulation warm.
func (s *Session) DragStart(id string, x, y float64) error {
	if err := s.nav.BeginDrag(id, x, y); err != nil {
		return err
	}
	s.sim.Warm()
	s.emit(view.NodeInteracted{ID: id, Kind: view.InteractDragStart})
	return nil
}

// DragMove moves a dragged node to (x, y).
func (s *Session) DragMove(id string, x, y float64) error {
	if err := s.nav.DragTo(id, x, y); err != nil {
		return err
	}
	s.sim.Warm()
	return nil
}

// DragEnd releases id and lets the simulation cool down.
func (s *Session) DragEnd(id string) error {
	if err := s.nav.EndDrag(id); err != nil {
		return err
	}
	if !s.nav.Dragging() {
		s.sim.Cool()
	}
	s.emit(view.NodeInteracted{ID: id, Kind: view.InteractDragEnd})
	return nil
}

// Step advances the layout by one tick and reports whether the run has
// settled. SimulationSettled is emitted once per run.
func (s *Session) Step() bool {
	settled := s.sim.Step()
	s.metrics.RecordTick()
	s.tickLog.Do(func() {
		s.log.Debug("tick",
			"run", s.sim.Run(),
			"ticks", s.sim.Ticks(),
			"alpha", s.sim.Alpha(),
			"energy", s.sim.Energy(),
		)
	})
	if settled && s.settledRun != s.sim.Run() {
		s.settledRun = s.sim.Run()
		s.metrics.RecordSettle(s.sim.Ticks())
		s.log.Debug("settled", "run", s.sim.Run(), "ticks", s.sim.Ticks())
		s.emit(view.SimulationSettled{Run: s.sim.Run(), Ticks: s.sim.Ticks()})
	}
	return settled
}

// Settle steps until the run settles or max steps have been taken, and
// returns the number of steps taken.
func (s *Session) Settle(max int) int {
	n := 0
	for n < max {
		n++
		if s.Step() {
			break
		}
	}
	return n
}

// Frame projects the current state. The frame carries Fit when the camera
// should be refitted; that request is consumed by this call.
func (s *Session) Frame() view.Frame {
	f := view.Project(s.vis, s.sim, len(s.nav.Expanded()))
	f.Run = s.sim.Run()
	f.Ready = s.sim.Ready()
	f.Settled = s.sim.Settled()
	f.Fit = s.fit.Observe(s.nav.Focus(), f.Ready)
	f.CanReset = s.nav.CanReset()
	return f
}

// Close releases the session.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.metrics.SessionClosed()
	s.log.Info("session closed")
}
