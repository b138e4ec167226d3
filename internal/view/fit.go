package view

// FitPolicy decides when the camera should be refitted. A fit fires once
// the layout is first ready and again after every focus change once the
// new layout is ready. Expanding or collapsing without a focus change never
// fires one, so the viewport the user chose is kept.
type FitPolicy struct {
	focus   string
	started bool
	pending bool
}

// NewFitPolicy returns a policy that will fit on the first ready frame.
func NewFitPolicy() *FitPolicy {
	return &FitPolicy{pending: true}
}

// Observe records the current focus and readiness and reports whether a
// fit should happen now.
func (p *FitPolicy) Observe(focus string, ready bool) bool {
	if p.started && focus != p.focus {
		p.pending = true
	}
	p.focus = focus
	p.started = true
	if p.pending && ready {
		p.pending = false
		return true
	}
	return false
}

// Request asks for a fit on the next ready frame regardless of focus, as a
// reset does.
func (p *FitPolicy) Request() { p.pending = true }

// Pending reports whether a fit is waiting for the layout to become ready.
func (p *FitPolicy) Pending() bool { return p.pending }
