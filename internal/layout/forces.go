package layout

import "math"

// jiggle returns a tiny random offset used to separate coincident nodes.
func (s *Simulator) jiggle() float64 {
	return (s.rng.Float64() - 0.5) * 1e-6
}

// applyLink pulls linked nodes toward their target separation. The velocity
// change is split between the two ends by degree, so hubs move less.
func (s *Simulator) applyLink() {
	k := s.alpha * s.params.LinkStrength
	for _, l := range s.links {
		src, dst := l.source, l.target
		x := dst.x + dst.vx - src.x - src.vx
		y := dst.y + dst.vy - src.y - src.vy
		if x == 0 {
			x = s.jiggle()
		}
		if y == 0 {
			y = s.jiggle()
		}
		d := math.Sqrt(x*x + y*y)
		f := (d - l.distance) / d * k
		x *= f
		y *= f
		dst.vx -= x * l.bias
		dst.vy -= y * l.bias
		src.vx += x * (1 - l.bias)
		src.vy += y * (1 - l.bias)
	}
}

// applyCharge repels every pair closer than ChargeDistanceMax.
func (s *Simulator) applyCharge() {
	maxSq := s.params.ChargeDistanceMax * s.params.ChargeDistanceMax
	minSq := s.params.ChargeDistanceMin * s.params.ChargeDistanceMin
	k := s.params.ChargeStrength * s.alpha

	for i, a := range s.active {
		for j, b := range s.active {
			if i == j {
				continue
			}
			x := b.x - a.x
			y := b.y - a.y
			d2 := x*x + y*y
			if d2 >= maxSq {
				continue
			}
			if x == 0 {
				x = s.jiggle()
				d2 += x * x
			}
			if y == 0 {
				y = s.jiggle()
				d2 += y * y
			}
			if d2 < minSq {
				d2 = math.Sqrt(minSq * d2)
			}
			a.vx += x * k / d2
			a.vy += y * k / d2
		}
	}
}

// applyCollide pushes apart nodes whose predicted positions are closer than
// two collision radii.
func (s *Simulator) applyCollide() {
	r := 2 * s.params.CollideRadius
	r2 := r * r
	for i := 0; i < len(s.active); i++ {
		a := s.active[i]
		xi := a.x + a.vx
		yi := a.y + a.vy
		for j := i + 1; j < len(s.active); j++ {
			b := s.active[j]
			x := xi - b.x - b.vx
			y := yi - b.y - b.vy
			d2 := x*x + y*y
			if d2 >= r2 {
				continue
			}
			if x == 0 {
				x = s.jiggle()
				d2 += x * x
			}
			if y == 0 {
				y = s.jiggle()
				d2 += y * y
			}
			d := math.Sqrt(d2)
			f := (r - d) / d * s.params.CollideStrength
			x *= f
			y *= f
			// Equal radii split the correction evenly.
			a.vx += x * 0.5
			a.vy += y * 0.5
			b.vx -= x * 0.5
			b.vy -= y * 0.5
		}
	}
}

// applyCenter shifts the whole layout a little toward the origin without
// anchoring any node.
func (s *Simulator) applyCenter() {
	if len(s.active) == 0 {
		return
	}
	var sx, sy float64
	for _, b := range s.active {
		sx += b.x
		sy += b.y
	}
	n := float64(len(s.active))
	dx := sx / n * s.params.CenterStrength
	dy := sy / n * s.params.CenterStrength
	for _, b := range s.active {
		b.x -= dx
		b.y -= dy
	}
}
