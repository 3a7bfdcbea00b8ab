package visual

import (
	"image/color"
	"math"

	"github.com/satindergrewal/attune/internal/catalog"
)

// frame carries everything a pattern needs for one draw.
type frame struct {
	c         Canvas
	p         *Projector
	t         float64 // pattern clock, already scaled by speed
	intensity float64
	theme     catalog.ColorTheme
	motion    bool
	energy    float64
}

func (f *frame) project(v Vec3, phase float64) (Point, float64) {
	return f.p.Project(v, phase, f.intensity)
}

// line width in pixels for a design width
func (f *frame) width(w float64) float64 {
	return math.Max(0.5, w*f.p.Scale)
}

type patternFunc func(f *frame)

// patterns maps a pattern key to its draw routine.
var patterns = map[string]patternFunc{
	catalog.PatternFlower:  drawFlower,
	catalog.PatternSoft:    drawSoftFlower,
	catalog.PatternMandala: drawMandala,
	catalog.PatternLens:    drawLens,
	catalog.PatternTetra:   drawTetra,
	catalog.PatternTorus:   drawTorus,
}

// ringCircles places 6k centers evenly on ring k (one at the center for k=0).
func ringCircles(k int, spacing, rot float64) []Vec3 {
	if k == 0 {
		return []Vec3{{}}
	}
	n := 6 * k
	out := make([]Vec3, n)
	for i := range out {
		a := rot + 2*math.Pi*float64(i)/float64(n)
		s, c := math.Sincos(a)
		out[i] = Vec3{X: c * spacing * float64(k), Y: s * spacing * float64(k)}
	}
	return out
}

type flowerStyle struct {
	rings    int
	radius   float64
	tempo    float64
	depth    float64
	alpha    float64
	blur     int // extra soft passes under each stroke
	glow     float64
	lineWide float64
}

var (
	flowerSharp = flowerStyle{rings: 4, radius: 45, tempo: 1, depth: 20, alpha: 0.6, blur: 0, glow: 1.6, lineWide: 1.5}
	flowerSoft  = flowerStyle{rings: 2, radius: 60, tempo: 0.45, depth: 12, alpha: 0.35, blur: 2, glow: 2.4, lineWide: 2.5}
)

func drawFlower(f *frame)     { flower(f, flowerSharp) }
func drawSoftFlower(f *frame) { flower(f, flowerSoft) }

// flower draws rings 0..rings-1 of overlapping circles (1, 6, 12, 18) with a
// per-ring depth oscillation and alpha pulse, then a glow at the center.
func flower(f *frame, st flowerStyle) {
	t := f.t * st.tempo
	rot := t * 0.1
	for k := 0; k < st.rings; k++ {
		ringCol := mix(f.theme.Primary, f.theme.Secondary, float64(k)/float64(max(st.rings-1, 1)))
		pulse := 0.75 + 0.25*math.Sin(t*1.5+float64(k))
		for i, c := range ringCircles(k, st.radius, rot) {
			c.Z = math.Sin(t*0.8+float64(k)*0.7+float64(i)*0.3) * st.depth * f.intensity
			pt, s := f.project(c, t+float64(k))
			r := f.p.Length(st.radius, s)
			a := st.alpha * pulse * (0.6 + 0.4*f.intensity)
			for b := st.blur; b > 0; b-- {
				f.c.StrokeCircle(pt.X, pt.Y, r, f.width(st.lineWide*float64(2+2*b)), withAlpha(ringCol, a*0.15))
			}
			f.c.StrokeCircle(pt.X, pt.Y, r, f.width(st.lineWide), withAlpha(ringCol, a))
		}
	}
	center, s := f.project(Vec3{}, t)
	glow := withAlpha(f.theme.Accent, 0.35+0.15*math.Sin(t*2))
	f.c.RadialGradient(center.X, center.Y, f.p.Length(st.radius*st.glow, s), glow, withAlpha(f.theme.Accent, 0))
}

// drawMandala draws nine nested triangles with alternating spin, a counter
// rotated twin on every other layer, a fixed ring of petals and, with
// motion effects, radial energy lines.
func drawMandala(f *frame) {
	t := f.t
	for i := 0; i < 9; i++ {
		size := 220 * (1 - float64(i)*0.09)
		dir := 1.0
		if i%2 == 1 {
			dir = -1
		}
		rot := dir * t * (0.15 + float64(i)*0.03)
		z := math.Sin(t+float64(i)) * 10 * f.intensity
		col := mix(f.theme.Primary, f.theme.Secondary, float64(i)/8)
		a := 0.45 + 0.3*f.intensity

		f.c.StrokePath(triangle(f, size, rot, z, t), true, f.width(1.5), withAlpha(col, a))
		if i%2 == 1 {
			f.c.StrokePath(triangle(f, size, -rot+math.Pi/3, z, t), true, f.width(1), withAlpha(f.theme.Accent, a*0.7))
		}
	}

	const petals = 12
	for i := 0; i < petals; i++ {
		a := 2 * math.Pi * float64(i) / petals
		s, c := math.Sincos(a)
		pt, sc := f.project(Vec3{X: c * 245, Y: s * 245}, t*0.5+float64(i))
		f.c.StrokeEllipse(pt.X, pt.Y, f.p.Length(34, sc), f.p.Length(13, sc), a, f.width(1.2),
			withAlpha(f.theme.Secondary, 0.5*(0.6+0.4*f.intensity)))
	}

	if !f.motion {
		return
	}
	const lines = 24
	for i := 0; i < lines; i++ {
		a := 2*math.Pi*float64(i)/lines + t*0.05
		s, c := math.Sincos(a)
		reach := 240 * (0.75 + 0.25*math.Sin(t*2+float64(i)))
		p0, _ := f.project(Vec3{X: c * 60, Y: s * 60}, t)
		p1, _ := f.project(Vec3{X: c * reach, Y: s * reach}, t)
		f.c.Line(p0.X, p0.Y, p1.X, p1.Y, f.width(1), withAlpha(f.theme.Accent, 0.15+0.25*f.energy))
	}
}

func triangle(f *frame, size, rot, z, phase float64) []Point {
	pts := make([]Point, 3)
	for k := range pts {
		a := rot - math.Pi/2 + 2*math.Pi*float64(k)/3
		s, c := math.Sincos(a)
		pts[k], _ = f.project(Vec3{X: c * size, Y: s * size, Z: z}, phase)
	}
	return pts
}

// drawLens draws twelve layers of two overlapping circles on a rotating axis.
// Every third layer fills the shared lens with a gradient and outlines it.
func drawLens(f *frame) {
	const (
		layers = 12
		radius = 110.0
	)
	t := f.t
	for l := 0; l < layers; l++ {
		axis := t*0.3 + float64(l)*math.Pi/layers
		k := 1 - float64(l)*0.055
		r := radius * k
		h := r / 2 // centers one radius apart
		z := math.Sin(t+float64(l)*0.5) * 15 * f.intensity
		col := mix(f.theme.Primary, f.theme.Secondary, float64(l)/(layers-1))
		a := 0.3 + 0.3*f.intensity

		for _, side := range []float64{-1, 1} {
			c := Vec3{X: side * h, Z: z}.RotateZ(axis)
			pt, s := f.project(c, t+float64(l)*0.2)
			f.c.StrokeCircle(pt.X, pt.Y, f.p.Length(r, s), f.width(1.2), withAlpha(col, a))
		}

		if l%3 != 0 {
			continue
		}
		lens := lensOutline(f, r, h, z, axis, t+float64(l)*0.2)
		center, s := f.project(Vec3{Z: z}, t+float64(l)*0.2)
		f.c.FillPathGradient(lens, center.X, center.Y, f.p.Length(r*0.9, s),
			withAlpha(f.theme.Accent, 0.35*f.intensity+0.1), withAlpha(f.theme.Secondary, 0))
		f.c.StrokePath(lens, true, f.width(1.5), withAlpha(f.theme.Accent, 0.6))
	}
}

// lensOutline traces the intersection of circles of radius r centered at
// (-h, 0) and (h, 0), rotated by axis.
func lensOutline(f *frame, r, h, z, axis, phase float64) []Point {
	const n = 16
	theta := math.Acos(h / r)
	pts := make([]Point, 0, 2*n)
	arc := func(cx, from, to float64) {
		for i := 0; i < n; i++ {
			a := from + (to-from)*float64(i)/(n-1)
			s, c := math.Sincos(a)
			p, _ := f.project(Vec3{X: cx + c*r, Y: s * r, Z: z}.RotateZ(axis), phase)
			pts = append(pts, p)
		}
	}
	arc(-h, -theta, theta)
	arc(h, math.Pi-theta, math.Pi+theta)
	return pts
}

func glowLine(f *frame, a, b Point, col color.NRGBA, alpha float64) {
	f.c.Line(a.X, a.Y, b.X, b.Y, f.width(6), withAlpha(col, alpha*0.15))
	f.c.Line(a.X, a.Y, b.X, b.Y, f.width(1.5), withAlpha(col, alpha))
}
