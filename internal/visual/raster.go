package visual

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

// Raster is a Canvas backed by an RGBA image, filled with an anti-aliasing
// vector rasterizer. Strokes are converted to filled outlines.
type Raster struct {
	img   *image.RGBA
	z     *vector.Rasterizer
	layer string
}

// NewRaster creates a w x h surface.
func NewRaster(w, h int) *Raster {
	w, h = max(w, 1), max(h, 1)
	return &Raster{
		img: image.NewRGBA(image.Rect(0, 0, w, h)),
		z:   vector.NewRasterizer(w, h),
	}
}

// Image returns the backing image. It is redrawn in place every frame.
func (r *Raster) Image() *image.RGBA { return r.img }

func (r *Raster) Size() (int, int) {
	b := r.img.Bounds()
	return b.Dx(), b.Dy()
}

func (r *Raster) Resize(w, h int) {
	w, h = max(w, 1), max(h, 1)
	if cw, ch := r.Size(); cw == w && ch == h {
		return
	}
	r.img = image.NewRGBA(image.Rect(0, 0, w, h))
}

func (r *Raster) SetLayer(layer string) { r.layer = layer }

func (r *Raster) Clear(c color.NRGBA) {
	draw.Draw(r.img, r.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// visible reports whether the box around (x, y) with half-extent e touches
// the surface.
func (r *Raster) visible(x, y, e float64) bool {
	w, h := r.Size()
	return x+e >= 0 && y+e >= 0 && x-e <= float64(w) && y-e <= float64(h) &&
		!math.IsNaN(x) && !math.IsNaN(y)
}

func (r *Raster) paint(src image.Image, path func(z *vector.Rasterizer)) {
	w, h := r.Size()
	r.z.Reset(w, h)
	r.z.DrawOp = draw.Over
	path(r.z)
	r.z.Draw(r.img, r.img.Bounds(), src, image.Point{})
}

func (r *Raster) FillCircle(x, y, rad float64, c color.NRGBA) {
	if rad <= 0 || c.A == 0 || !r.visible(x, y, rad) {
		return
	}
	r.paint(image.NewUniform(c), func(z *vector.Rasterizer) {
		circlePath(z, x, y, rad)
	})
}

func (r *Raster) StrokeCircle(x, y, rad, width float64, c color.NRGBA) {
	r.StrokeEllipse(x, y, rad, rad, 0, width, c)
}

func (r *Raster) StrokeEllipse(x, y, rx, ry, rot, width float64, c color.NRGBA) {
	if rx <= 0 || ry <= 0 || c.A == 0 || !r.visible(x, y, math.Max(rx, ry)+width) {
		return
	}
	hw := math.Max(width, 0.5) / 2
	n := segments(math.Max(rx, ry))
	outer := ellipsePoints(x, y, rx+hw, ry+hw, rot, n)
	inner := ellipsePoints(x, y, math.Max(rx-hw, 0), math.Max(ry-hw, 0), rot, n)
	r.paint(image.NewUniform(c), func(z *vector.Rasterizer) {
		polyPath(z, outer, false)
		// the hole winds the other way so coverage cancels
		polyPath(z, inner, true)
	})
}

func (r *Raster) Line(x0, y0, x1, y1, width float64, c color.NRGBA) {
	if c.A == 0 {
		return
	}
	q, ok := lineQuad(x0, y0, x1, y1, math.Max(width, 0.5))
	if !ok {
		return
	}
	r.paint(image.NewUniform(c), func(z *vector.Rasterizer) {
		polyPath(z, q[:], false)
	})
}

func (r *Raster) StrokePath(pts []Point, closed bool, width float64, c color.NRGBA) {
	if len(pts) < 2 || c.A == 0 {
		return
	}
	width = math.Max(width, 0.5)
	r.paint(image.NewUniform(c), func(z *vector.Rasterizer) {
		n := len(pts) - 1
		if closed {
			n = len(pts)
		}
		for i := 0; i < n; i++ {
			a, b := pts[i], pts[(i+1)%len(pts)]
			if q, ok := lineQuad(a.X, a.Y, b.X, b.Y, width); ok {
				polyPath(z, q[:], false)
			}
		}
	})
}

func (r *Raster) FillPath(pts []Point, c color.NRGBA) {
	if len(pts) < 3 || c.A == 0 {
		return
	}
	r.paint(image.NewUniform(c), func(z *vector.Rasterizer) {
		polyPath(z, pts, false)
	})
}

func (r *Raster) RadialGradient(x, y, rad float64, inner, outer color.NRGBA) {
	if rad <= 0 || !r.visible(x, y, rad) {
		return
	}
	r.paint(&radialGradient{x, y, rad, inner, outer}, func(z *vector.Rasterizer) {
		circlePath(z, x, y, rad)
	})
}

func (r *Raster) FillPathGradient(pts []Point, x, y, rad float64, inner, outer color.NRGBA) {
	if len(pts) < 3 || rad <= 0 {
		return
	}
	r.paint(&radialGradient{x, y, rad, inner, outer}, func(z *vector.Rasterizer) {
		polyPath(z, pts, false)
	})
}

// radialGradient is an unbounded image whose color depends on the distance
// from (cx, cy).
type radialGradient struct {
	cx, cy, r    float64
	inner, outer color.NRGBA
}

func (g *radialGradient) ColorModel() color.Model { return color.NRGBAModel }

func (g *radialGradient) Bounds() image.Rectangle {
	return image.Rectangle{Min: image.Point{-1e9, -1e9}, Max: image.Point{1e9, 1e9}}
}

func (g *radialGradient) At(x, y int) color.Color {
	d := math.Hypot(float64(x)+0.5-g.cx, float64(y)+0.5-g.cy) / g.r
	return mix(g.inner, g.outer, d)
}

func segments(r float64) int {
	return max(12, min(96, int(r*0.75)))
}

func ellipsePoints(cx, cy, rx, ry, rot float64, n int) []Point {
	pts := make([]Point, n)
	sr, cr := math.Sincos(rot)
	for i := range pts {
		s, c := math.Sincos(2 * math.Pi * float64(i) / float64(n))
		px, py := rx*c, ry*s
		pts[i] = Point{cx + px*cr - py*sr, cy + px*sr + py*cr}
	}
	return pts
}

// circlePath adds a circle built from four cubic arcs.
func circlePath(z *vector.Rasterizer, x, y, r float64) {
	const k = 0.5522847498
	f := func(v float64) float32 { return float32(v) }
	z.MoveTo(f(x+r), f(y))
	z.CubeTo(f(x+r), f(y+k*r), f(x+k*r), f(y+r), f(x), f(y+r))
	z.CubeTo(f(x-k*r), f(y+r), f(x-r), f(y+k*r), f(x-r), f(y))
	z.CubeTo(f(x-r), f(y-k*r), f(x-k*r), f(y-r), f(x), f(y-r))
	z.CubeTo(f(x+k*r), f(y-r), f(x+r), f(y-k*r), f(x+r), f(y))
	z.ClosePath()
}

func polyPath(z *vector.Rasterizer, pts []Point, reverse bool) {
	if len(pts) == 0 {
		return
	}
	at := func(i int) Point {
		if reverse {
			return pts[len(pts)-1-i]
		}
		return pts[i]
	}
	p := at(0)
	z.MoveTo(float32(p.X), float32(p.Y))
	for i := 1; i < len(pts); i++ {
		p = at(i)
		z.LineTo(float32(p.X), float32(p.Y))
	}
	z.ClosePath()
}

// lineQuad is the rectangle covering a segment of the given width.
func lineQuad(x0, y0, x1, y1, width float64) ([4]Point, bool) {
	dx, dy := x1-x0, y1-y0
	l := math.Hypot(dx, dy)
	if l == 0 || math.IsNaN(l) {
		return [4]Point{}, false
	}
	nx, ny := -dy/l*width/2, dx/l*width/2
	return [4]Point{
		{x0 + nx, y0 + ny},
		{x1 + nx, y1 + ny},
		{x1 - nx, y1 - ny},
		{x0 - nx, y0 - ny},
	}, true
}
