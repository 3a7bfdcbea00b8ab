package visual

import (
	"image/color"
	"math"
	"math/rand/v2"
)

const (
	ParticleCount = 48
	rayCount      = 12
)

func lighten(c color.NRGBA, t float64) color.NRGBA {
	return mix(c, color.NRGBA{255, 255, 255, c.A}, t)
}

// drawBackground paints the base color and a soft radial glow; with motion
// effects it adds slowly rotating light rays.
func drawBackground(f *frame) {
	w, h := f.c.Size()
	cx, cy := float64(w)/2, float64(h)/2
	reach := math.Hypot(cx, cy)

	f.c.SetLayer(LayerBackground)
	f.c.Clear(f.theme.Background)
	f.c.RadialGradient(cx, cy, reach, lighten(f.theme.Background, 0.08), f.theme.Background)

	if !f.motion {
		return
	}
	f.c.SetLayer(LayerRays)
	spread := math.Pi / rayCount / 3
	for i := 0; i < rayCount; i++ {
		a := f.t*0.05 + 2*math.Pi*float64(i)/rayCount
		s0, c0 := math.Sincos(a - spread)
		s1, c1 := math.Sincos(a + spread)
		ray := []Point{{cx, cy}, {cx + c0*reach, cy + s0*reach}, {cx + c1*reach, cy + s1*reach}}
		f.c.FillPath(ray, withAlpha(f.theme.Primary, 0.035+0.02*math.Sin(f.t+float64(i))))
	}
}

// particle positions are fractions of the surface so resizes keep them spread.
type particle struct {
	x, y   float64
	vx, vy float64 // surface fractions per second
	size   float64 // design pixels
	phase  float64
}

type particles struct {
	ps [ParticleCount]particle
}

func newParticles(seed uint64) *particles {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var p particles
	for i := range p.ps {
		p.ps[i] = particle{
			x:     r.Float64(),
			y:     r.Float64(),
			vx:    (r.Float64() - 0.5) * 0.02,
			vy:    -0.005 - r.Float64()*0.015,
			size:  1 + r.Float64()*2.5,
			phase: r.Float64() * 2 * math.Pi,
		}
	}
	return &p
}

// step advances every particle, wrapping at the edges.
func (p *particles) step(dt float64) {
	for i := range p.ps {
		q := &p.ps[i]
		q.x = wrap01(q.x + q.vx*dt)
		q.y = wrap01(q.y + q.vy*dt)
	}
}

func wrap01(v float64) float64 {
	v -= math.Floor(v)
	if v >= 1 {
		v = 0
	}
	return v
}

// draw scales size and opacity by the audio energy.
func (p *particles) draw(f *frame, now float64) {
	w, h := f.c.Size()
	f.c.SetLayer(LayerParticles)
	for _, q := range p.ps {
		pulse := 0.5 + 0.5*math.Sin(now*1.5+q.phase)
		r := f.width(q.size * (0.7 + 0.6*pulse) * (1 + f.energy))
		a := (0.15 + 0.35*pulse) * (0.6 + 0.8*f.energy)
		f.c.FillCircle(q.x*float64(w), q.y*float64(h), r, withAlpha(f.theme.Accent, a))
	}
}

// drawIdle is the resting animation shown while nothing plays: a gentle wave
// across the middle and a slowly breathing glow.
func drawIdle(f *frame, now float64) {
	w, h := f.c.Size()
	cx, cy := float64(w)/2, float64(h)/2
	f.c.SetLayer(LayerIdle)

	breath := 0.5 + 0.5*math.Sin(now*0.8)
	f.c.RadialGradient(cx, cy, f.width(140+30*breath), withAlpha(f.theme.Primary, 0.12+0.08*breath), withAlpha(f.theme.Primary, 0))

	const n = 64
	wave := make([]Point, n)
	amp := f.width(8)
	for i := range wave {
		x := float64(w) * float64(i) / (n - 1)
		wave[i] = Point{x, cy + amp*math.Sin(x/float64(max(w, 1))*4*math.Pi+now*0.9)}
	}
	f.c.StrokePath(wave, false, f.width(1.2), withAlpha(f.theme.Accent, 0.25))
}
