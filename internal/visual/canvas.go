package visual

import (
	"image/color"
	"math"
)

// Draw layers. Every call lands on the layer most recently selected.
const (
	LayerBackground = "background"
	LayerRays       = "rays"
	LayerPattern    = "pattern"
	LayerParticles  = "particles"
	LayerIdle       = "idle"
)

// Canvas is the drawing surface the renderer targets. Coordinates are
// surface pixels with the origin top-left.
type Canvas interface {
	Size() (w, h int)
	Resize(w, h int)
	SetLayer(layer string)

	Clear(c color.NRGBA)
	FillCircle(x, y, r float64, c color.NRGBA)
	StrokeCircle(x, y, r, width float64, c color.NRGBA)
	StrokeEllipse(x, y, rx, ry, rot, width float64, c color.NRGBA)
	Line(x0, y0, x1, y1, width float64, c color.NRGBA)
	StrokePath(pts []Point, closed bool, width float64, c color.NRGBA)
	FillPath(pts []Point, c color.NRGBA)
	// RadialGradient fills the disc of radius r, blending inner at the center
	// to outer at the rim.
	RadialGradient(x, y, r float64, inner, outer color.NRGBA)
	// FillPathGradient fills pts with a radial gradient centered at (x, y).
	FillPathGradient(pts []Point, x, y, r float64, inner, outer color.NRGBA)
}

// Call is one recorded draw operation.
type Call struct {
	Layer string
	Op    string
	X, Y  float64
	R     float64
	Color color.NRGBA
}

// Recorder is a Canvas that keeps a trace of draw calls instead of pixels.
type Recorder struct {
	w, h  int
	layer string
	calls []Call
}

// NewRecorder creates a recorder reporting size w x h.
func NewRecorder(w, h int) *Recorder {
	return &Recorder{w: w, h: h, layer: LayerBackground}
}

func (r *Recorder) Size() (int, int)      { return r.w, r.h }
func (r *Recorder) Resize(w, h int)       { r.w, r.h = w, h }
func (r *Recorder) SetLayer(layer string) { r.layer = layer }

func (r *Recorder) add(op string, x, y, rad float64, c color.NRGBA) {
	r.calls = append(r.calls, Call{Layer: r.layer, Op: op, X: x, Y: y, R: rad, Color: c})
}

func (r *Recorder) Clear(c color.NRGBA) {
	r.add("clear", 0, 0, 0, c)
}

func (r *Recorder) FillCircle(x, y, rad float64, c color.NRGBA) {
	r.add("fill-circle", x, y, rad, c)
}

func (r *Recorder) StrokeCircle(x, y, rad, _ float64, c color.NRGBA) {
	r.add("stroke-circle", x, y, rad, c)
}

func (r *Recorder) StrokeEllipse(x, y, rx, _, _, _ float64, c color.NRGBA) {
	r.add("stroke-ellipse", x, y, rx, c)
}

func (r *Recorder) Line(x0, y0, x1, y1, _ float64, c color.NRGBA) {
	r.add("line", x0, y0, math.Hypot(x1-x0, y1-y0), c)
}

func (r *Recorder) StrokePath(pts []Point, _ bool, _ float64, c color.NRGBA) {
	x, y := centroid(pts)
	r.add("stroke-path", x, y, float64(len(pts)), c)
}

func (r *Recorder) FillPath(pts []Point, c color.NRGBA) {
	x, y := centroid(pts)
	r.add("fill-path", x, y, float64(len(pts)), c)
}

func (r *Recorder) RadialGradient(x, y, rad float64, inner, _ color.NRGBA) {
	r.add("radial-gradient", x, y, rad, inner)
}

func (r *Recorder) FillPathGradient(pts []Point, x, y, rad float64, inner, _ color.NRGBA) {
	r.add("fill-path-gradient", x, y, rad, inner)
}

// Calls returns the trace so far.
func (r *Recorder) Calls() []Call { return r.calls }

// Reset drops the trace.
func (r *Recorder) Reset() { r.calls = r.calls[:0] }

// Count returns how many calls landed on layer.
func (r *Recorder) Count(layer string) int {
	n := 0
	for _, c := range r.calls {
		if c.Layer == layer {
			n++
		}
	}
	return n
}

func centroid(pts []Point) (float64, float64) {
	if len(pts) == 0 {
		return 0, 0
	}
	var x, y float64
	for _, p := range pts {
		x += p.X
		y += p.Y
	}
	return x / float64(len(pts)), y / float64(len(pts))
}

// withAlpha returns c with its alpha scaled by a in [0,1].
func withAlpha(c color.NRGBA, a float64) color.NRGBA {
	a = math.Max(0, math.Min(1, a))
	c.A = uint8(math.Round(float64(c.A) * a))
	return c
}

// mix blends two colors, t=0 is a.
func mix(a, b color.NRGBA, t float64) color.NRGBA {
	t = math.Max(0, math.Min(1, t))
	l := func(x, y uint8) uint8 { return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t)) }
	return color.NRGBA{l(a.R, b.R), l(a.G, b.G), l(a.B, b.B), l(a.A, b.A)}
}
