// Package layout is the force-directed physics engine that positions the
// visible nodes. It keeps one simulation entry per node id across visibility
// changes so nodes that stay on screen never jump, and advances one tick at a
// time under the control of an external scheduler.
package layout

import "time"

// Params holds the force constants and scheduling knobs of the simulator.
// Zero fields are replaced by the defaults from DefaultParams.
type Params struct {
	// Target separation per edge class.
	LinkDistanceHighlighted float64 `toml:"link_distance_highlighted"`
	LinkDistanceDim         float64 `toml:"link_distance_dim"`
	LinkDistanceSecondary   float64 `toml:"link_distance_secondary"`
	LinkStrength            float64 `toml:"link_strength"`

	// Pairwise repulsion. ChargeStrength is negative for repulsion.
	ChargeStrength    float64 `toml:"charge_strength"`
	ChargeDistanceMax float64 `toml:"charge_distance_max"`
	ChargeDistanceMin float64 `toml:"charge_distance_min"`

	CollideRadius   float64 `toml:"collide_radius"`
	CollideStrength float64 `toml:"collide_strength"`
	CenterStrength  float64 `toml:"center_strength"`

	AlphaDecay    float64 `toml:"alpha_decay"`
	AlphaMin      float64 `toml:"alpha_min"`
	VelocityDecay float64 `toml:"velocity_decay"`
	ReheatAlpha   float64 `toml:"reheat_alpha"`

	DragAlphaTarget    float64       `toml:"drag_alpha_target"`
	ReleaseAlphaTarget float64       `toml:"release_alpha_target"`
	ReleaseWindow      time.Duration `toml:"release_window"`

	// EnergyThreshold is the mean squared speed under which a run counts as
	// settled once MinTicks have elapsed.
	EnergyThreshold float64       `toml:"energy_threshold"`
	MinTicks        int           `toml:"min_ticks"`
	ReadyAfter      time.Duration `toml:"ready_after"`
	MaxRun          time.Duration `toml:"max_run"`

	SeedDistance float64 `toml:"seed_distance"`
	RingRadius   float64 `toml:"ring_radius"`
	RingJitter   float64 `toml:"ring_jitter"`

	// EvictAfter is the number of reconciliations a node may stay hidden
	// before its entry is dropped.
	EvictAfter int `toml:"evict_after"`

	// Seed feeds the random source used for seeding and jiggle. Zero picks
	// a time-based seed.
	Seed uint64 `toml:"seed"`
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		LinkDistanceHighlighted: 550,
		LinkDistanceDim:         250,
		LinkDistanceSecondary:   150,
		LinkStrength:            0.2,

		ChargeStrength:    -2000,
		ChargeDistanceMax: 3000,
		ChargeDistanceMin: 1,

		CollideRadius:   95,
		CollideStrength: 0.8,
		CenterStrength:  0.005,

		AlphaDecay:    0.02,
		AlphaMin:      0.001,
		VelocityDecay: 0.3,
		ReheatAlpha:   0.8,

		DragAlphaTarget:    0.3,
		ReleaseAlphaTarget: 0.1,
		ReleaseWindow:      600 * time.Millisecond,

		EnergyThreshold: 0.01,
		MinTicks:        30,
		ReadyAfter:      700 * time.Millisecond,
		MaxRun:          10 * time.Second,

		SeedDistance: 50,
		RingRadius:   250,
		RingJitter:   100,

		EvictAfter: 8,
	}
}

func (p *Params) applyDefaults() {
	d := DefaultParams()
	setF := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}
	setF(&p.LinkDistanceHighlighted, d.LinkDistanceHighlighted)
	setF(&p.LinkDistanceDim, d.LinkDistanceDim)
	setF(&p.LinkDistanceSecondary, d.LinkDistanceSecondary)
	setF(&p.LinkStrength, d.LinkStrength)
	setF(&p.ChargeStrength, d.ChargeStrength)
	setF(&p.ChargeDistanceMax, d.ChargeDistanceMax)
	setF(&p.ChargeDistanceMin, d.ChargeDistanceMin)
	setF(&p.CollideRadius, d.CollideRadius)
	setF(&p.CollideStrength, d.CollideStrength)
	setF(&p.CenterStrength, d.CenterStrength)
	setF(&p.AlphaDecay, d.AlphaDecay)
	setF(&p.AlphaMin, d.AlphaMin)
	setF(&p.VelocityDecay, d.VelocityDecay)
	setF(&p.ReheatAlpha, d.ReheatAlpha)
	setF(&p.DragAlphaTarget, d.DragAlphaTarget)
	setF(&p.ReleaseAlphaTarget, d.ReleaseAlphaTarget)
	setF(&p.EnergyThreshold, d.EnergyThreshold)
	setF(&p.SeedDistance, d.SeedDistance)
	setF(&p.RingRadius, d.RingRadius)
	setF(&p.RingJitter, d.RingJitter)

	if p.ReleaseWindow <= 0 {
		p.ReleaseWindow = d.ReleaseWindow
	}
	if p.ReadyAfter <= 0 {
		p.ReadyAfter = d.ReadyAfter
	}
	if p.MaxRun <= 0 {
		p.MaxRun = d.MaxRun
	}
	if p.MinTicks <= 0 {
		p.MinTicks = d.MinTicks
	}
	if p.EvictAfter <= 0 {
		p.EvictAfter = d.EvictAfter
	}
}
