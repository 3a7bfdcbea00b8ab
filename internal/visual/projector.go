package visual

import "math"

// Vec3 is a point in pattern space. Units are "design pixels" on a 600px
// reference square; +z points away from the viewer.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Scale(k float64) Vec3 { return Vec3{v.X * k, v.Y * k, v.Z * k} }
func (v Vec3) Neg() Vec3            { return Vec3{-v.X, -v.Y, -v.Z} }

func (v Vec3) RotateX(a float64) Vec3 {
	s, c := math.Sincos(a)
	return Vec3{v.X, v.Y*c - v.Z*s, v.Y*s + v.Z*c}
}

func (v Vec3) RotateY(a float64) Vec3 {
	s, c := math.Sincos(a)
	return Vec3{v.X*c + v.Z*s, v.Y, -v.X*s + v.Z*c}
}

func (v Vec3) RotateZ(a float64) Vec3 {
	s, c := math.Sincos(a)
	return Vec3{v.X*c - v.Y*s, v.X*s + v.Y*c, v.Z}
}

// Point is a projected position in surface pixels.
type Point struct {
	X, Y float64
}

const (
	// ReferenceSize is the design square patterns are authored against.
	ReferenceSize = 600.0
	// Focal is the perspective distance f in scale = f / (f + z + wobble).
	Focal = 400.0
	// wobbleDepth is k in the wobble term sin(phase)·k·intensity.
	wobbleDepth = 30.0
)

// Projector maps pattern space onto the surface: perspective divide, then a
// uniform scale from the smaller surface side, then the center translation.
type Projector struct {
	Width, Height    int     // surface pixels
	DPR              float64 // device pixel ratio
	CenterX, CenterY float64
	Scale            float64
	Offset           Point // pointer perturbation in surface pixels
}

// Resize recomputes the surface dimensions from a CSS size and pixel ratio.
func (p *Projector) Resize(cssW, cssH, dpr float64) {
	if dpr <= 0 || math.IsNaN(dpr) {
		dpr = 1
	}
	p.DPR = dpr
	p.Width = max(1, int(math.Round(cssW*dpr)))
	p.Height = max(1, int(math.Round(cssH*dpr)))
	p.CenterX = float64(p.Width) / 2
	p.CenterY = float64(p.Height) / 2
	p.Scale = float64(min(p.Width, p.Height)) / ReferenceSize
}

// Project returns the surface position of v and its perspective factor.
// phase drives the depth wobble; at intensity 0 there is none.
func (p *Projector) Project(v Vec3, phase, intensity float64) (Point, float64) {
	d := Focal + v.Z + math.Sin(phase)*wobbleDepth*intensity
	if d < 1 {
		d = 1
	}
	s := Focal / d
	return Point{
		X: p.CenterX + v.X*s*p.Scale + p.Offset.X,
		Y: p.CenterY + v.Y*s*p.Scale + p.Offset.Y,
	}, s
}

// Length converts a pattern-space length at perspective factor s to pixels.
func (p *Projector) Length(l, s float64) float64 {
	return l * s * p.Scale
}
