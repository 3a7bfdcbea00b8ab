package visual

import (
	"math"
	"sort"
)

var (
	tetraVerts = [4]Vec3{{1, 1, 1}, {1, -1, -1}, {-1, 1, -1}, {-1, -1, 1}}
	tetraEdges = [6][2]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}
)

// drawTetra draws two interlocked tetrahedra, the second inverted and
// smaller, spinning on all three axes with a breathing depth.
func drawTetra(f *frame) {
	t := f.t
	breath := math.Sin(t*1.2) * 20 * f.intensity

	solid := func(size, dir float64) [4]Point {
		var out [4]Point
		for i, v := range tetraVerts {
			if dir < 0 {
				v = v.Neg()
			}
			v = v.Scale(size).
				RotateX(dir * t * 0.3).
				RotateY(dir * t * 0.4).
				RotateZ(t * 0.2)
			v.Z += breath
			out[i], _ = f.project(v, t)
		}
		return out
	}
	up := solid(120, 1)
	down := solid(120*0.85, -1)

	a := 0.5 + 0.4*f.intensity
	for _, e := range tetraEdges {
		glowLine(f, up[e[0]], up[e[1]], f.theme.Primary, a)
		glowLine(f, down[e[0]], down[e[1]], f.theme.Secondary, a)
	}
	if f.motion {
		for i := range up {
			f.c.Line(up[i].X, up[i].Y, down[i].X, down[i].Y, f.width(0.8), withAlpha(f.theme.Accent, 0.25))
		}
	}
	for i := range up {
		f.c.FillCircle(up[i].X, up[i].Y, f.width(3), withAlpha(f.theme.Accent, a))
		f.c.FillCircle(down[i].X, down[i].Y, f.width(2.5), withAlpha(f.theme.Accent, a*0.8))
	}
}

const (
	torusU     = 60
	torusV     = 30
	torusMajor = 130.0
	torusMinor = 48.0
	torusCullZ = 0.55 * (torusMajor + torusMinor)
	torusNodes = 6
)

type torusPoint struct {
	p    Point
	s    float64
	z    float64
	flow float64
}

// drawTorus samples a tube surface on a 60x30 grid, rotates it on two axes,
// culls points past the depth threshold and draws the rest back to front.
// Size, opacity and glow follow a flow phase travelling along the tube.
func drawTorus(f *frame) {
	t := f.t
	rx, ry := 1.0+t*0.3, t*0.2
	pts := make([]torusPoint, 0, torusU*torusV)

	for i := 0; i < torusU; i++ {
		u := 2 * math.Pi * float64(i) / torusU
		su, cu := math.Sincos(u)
		flow := math.Sin(u*3 - t*2)
		for j := 0; j < torusV; j++ {
			sv, cv := math.Sincos(2 * math.Pi * float64(j) / torusV)
			ring := torusMajor + torusMinor*cv
			v := Vec3{X: ring * cu, Y: ring * su, Z: torusMinor * sv}.RotateX(rx).RotateY(ry)
			if v.Z > torusCullZ {
				continue
			}
			p, s := f.project(v, t+u)
			pts = append(pts, torusPoint{p: p, s: s, z: v.Z, flow: flow})
		}
	}
	// far first
	sort.Slice(pts, func(i, j int) bool { return pts[i].z > pts[j].z })

	for _, tp := range pts {
		k := (tp.flow + 1) / 2
		col := mix(f.theme.Primary, f.theme.Secondary, k)
		size := f.p.Length(1.2+1.3*k*f.intensity, tp.s)
		alpha := (0.25 + 0.5*k) * (0.5 + 0.5*f.intensity)
		if tp.flow > 0.7 {
			f.c.FillCircle(tp.p.X, tp.p.Y, size*3, withAlpha(f.theme.Accent, alpha*0.15))
		}
		f.c.FillCircle(tp.p.X, tp.p.Y, size, withAlpha(col, alpha))
	}

	outline := make([]Point, 0, torusU)
	for i := 0; i < torusU; i++ {
		s, c := math.Sincos(2 * math.Pi * float64(i) / torusU)
		v := Vec3{X: (torusMajor + torusMinor) * c, Y: (torusMajor + torusMinor) * s}.RotateX(rx).RotateY(ry)
		p, _ := f.project(v, t)
		outline = append(outline, p)
	}
	f.c.StrokePath(outline, true, f.width(1), withAlpha(f.theme.Accent, 0.3))

	if !f.motion {
		return
	}
	for n := 0; n < torusNodes; n++ {
		u := 2*math.Pi*float64(n)/torusNodes + t*0.5
		s, c := math.Sincos(u)
		v := Vec3{X: torusMajor * c, Y: torusMajor * s}.RotateX(rx).RotateY(ry)
		p, sc := f.project(v, t)
		pulse := 0.5 + 0.5*math.Sin(t*3+float64(n))
		r := f.p.Length(6+6*pulse, sc)
		f.c.RadialGradient(p.X, p.Y, r*2.5, withAlpha(f.theme.Accent, 0.4*pulse+0.1), withAlpha(f.theme.Accent, 0))
		f.c.FillCircle(p.X, p.Y, r*0.5, withAlpha(f.theme.Accent, 0.8))
	}
}
