package visual

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/harmonica"

	"github.com/satindergrewal/attune/internal/catalog"
)

var (
	ErrUnknownPattern = errors.New("unknown pattern")
	ErrUnknownTheme   = errors.New("unknown color theme")
	ErrNoRaster       = errors.New("canvas has no pixels")
)

const (
	MinSpeed     = 0.5
	MaxSpeed     = 2.0
	MinIntensity = 0.2
	MaxIntensity = 1.0

	DefaultFPS = 30
	// maxStep caps one frame's clock advance so a stalled loop does not jump.
	maxStep = 250 * time.Millisecond
	// pointerReach is the largest pointer offset in CSS pixels.
	pointerReach = 18.0
)

// EnergySource supplies a 0-1 loudness reading, typically the audio
// analyser.
type EnergySource interface {
	Energy() float64
}

// State is the visualiser's user-facing configuration plus its clock.
type State struct {
	Pattern       string  `json:"pattern"`
	Speed         float64 `json:"speed"`
	Intensity     float64 `json:"intensity"`
	Theme         string  `json:"color_theme"`
	MotionEffects bool    `json:"motion_effects"`
	Playing       bool    `json:"playing"`
	Fullscreen    bool    `json:"fullscreen"`
	Clock         float64 `json:"clock"`
}

// Renderer redraws its canvas once per Frame. All methods are safe for
// concurrent use; Frame holds the lock for the whole draw.
type Renderer struct {
	mu     sync.Mutex
	canvas Canvas
	proj   Projector
	state  State
	wall   float64 // seconds since creation, advances even when paused
	source EnergySource

	level, levelVel float64
	levelSpring     harmonica.Spring

	aim           Point // pointer in [-1,1]
	offX, offY    float64
	velX, velY    float64
	pointerSpring harmonica.Spring
	parts         *particles
	errs          ErrorLog
	lastFault     string
}

// NewRenderer draws onto c, sized from the canvas at pixel ratio 1.
func NewRenderer(c Canvas) *Renderer {
	r := &Renderer{
		canvas: c,
		state: State{
			Pattern:       catalog.DefaultPattern,
			Speed:         1,
			Intensity:     0.7,
			Theme:         catalog.ThemePattern,
			MotionEffects: true,
		},
		levelSpring:   harmonica.NewSpring(harmonica.FPS(DefaultFPS), 8.0, 1.0),
		pointerSpring: harmonica.NewSpring(harmonica.FPS(DefaultFPS), 5.0, 0.8),
		parts:         newParticles(7),
	}
	w, h := c.Size()
	r.proj.Resize(float64(w), float64(h), 1)
	return r
}

// Resize recomputes the surface from the container's CSS size and pixel
// ratio. Call it on every resize, fullscreen change or DPR change.
func (r *Renderer) Resize(cssW, cssH, dpr float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.proj.Resize(cssW, cssH, dpr)
	r.canvas.Resize(r.proj.Width, r.proj.Height)
}

// Projector returns the current projection.
func (r *Renderer) Projector() Projector {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.proj
}

// State returns a copy of the visualiser state.
func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Renderer) SetPattern(key string) error {
	if !catalog.IsValidPattern(key) {
		return fmt.Errorf("%w: %s", ErrUnknownPattern, key)
	}
	r.mu.Lock()
	r.state.Pattern = key
	r.mu.Unlock()
	return nil
}

// SetSpeed clamps to [MinSpeed, MaxSpeed] and returns the value applied.
func (r *Renderer) SetSpeed(v float64) float64 {
	v = clamp(v, MinSpeed, MaxSpeed)
	r.mu.Lock()
	r.state.Speed = v
	r.mu.Unlock()
	return v
}

// SetIntensity clamps to [MinIntensity, MaxIntensity] and returns the value applied.
func (r *Renderer) SetIntensity(v float64) float64 {
	v = clamp(v, MinIntensity, MaxIntensity)
	r.mu.Lock()
	r.state.Intensity = v
	r.mu.Unlock()
	return v
}

func (r *Renderer) SetTheme(name string) error {
	if !catalog.IsValidTheme(name) {
		return fmt.Errorf("%w: %s", ErrUnknownTheme, name)
	}
	r.mu.Lock()
	r.state.Theme = name
	r.mu.Unlock()
	return nil
}

func (r *Renderer) SetMotionEffects(on bool) {
	r.mu.Lock()
	r.state.MotionEffects = on
	r.mu.Unlock()
}

// SetPlaying starts or freezes the pattern clock.
func (r *Renderer) SetPlaying(on bool) {
	r.mu.Lock()
	r.state.Playing = on
	r.mu.Unlock()
}

func (r *Renderer) SetFullscreen(on bool) {
	r.mu.Lock()
	r.state.Fullscreen = on
	r.mu.Unlock()
}

// SetEnergySource attaches the audio reading. nil detaches it.
func (r *Renderer) SetEnergySource(src EnergySource) {
	r.mu.Lock()
	r.source = src
	r.mu.Unlock()
}

// Pointer records the latest pointer position relative to the surface
// center, each axis in [-1, 1].
func (r *Renderer) Pointer(x, y float64) {
	r.mu.Lock()
	r.aim = Point{clamp(x, -1, 1), clamp(y, -1, 1)}
	r.mu.Unlock()
}

// Errors returns the retained render faults, oldest first.
func (r *Renderer) Errors() []ErrorEntry {
	return r.errs.Entries()
}

// Frame advances the clocks by dt and draws one frame.
func (r *Renderer) Frame(dt time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dt = min(max(dt, 0), maxStep)
	sec := dt.Seconds()
	r.wall += sec
	st := &r.state
	if st.Playing {
		st.Clock += sec * st.Speed
	}

	var energy float64
	if st.Playing && r.source != nil {
		energy = clamp(r.source.Energy(), 0, 1)
	}
	r.level, r.levelVel = r.levelSpring.Update(r.level, r.levelVel, energy)

	if st.MotionEffects {
		reach := pointerReach * r.proj.DPR
		r.offX, r.velX = r.pointerSpring.Update(r.offX, r.velX, r.aim.X*reach)
		r.offY, r.velY = r.pointerSpring.Update(r.offY, r.velY, r.aim.Y*reach)
		r.parts.step(sec)
	} else {
		r.offX, r.offY, r.velX, r.velY = 0, 0, 0, 0
	}
	r.proj.Offset = Point{r.offX, r.offY}

	f := &frame{
		c:         r.canvas,
		p:         &r.proj,
		t:         st.Clock,
		intensity: st.Intensity,
		theme:     catalog.ResolveTheme(st.Theme, st.Pattern),
		motion:    st.MotionEffects,
		energy:    clamp(r.level, 0, 1),
	}

	r.guard("background", func() { drawBackground(f) })
	r.guard(st.Pattern, func() {
		draw, ok := patterns[st.Pattern]
		if !ok {
			panic("no draw routine")
		}
		f.c.SetLayer(LayerPattern)
		draw(f)
	})
	if !st.Playing {
		r.guard("idle", func() { drawIdle(f, r.wall) })
	}
	if st.MotionEffects {
		r.guard("particles", func() { r.parts.draw(f, r.wall) })
	}
}

// guard runs one draw step, turning a panic into a logged fault so the
// next frame still runs.
func (r *Renderer) guard(name string, fn func()) {
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		msg := fmt.Sprint(v)
		r.errs.Add(ErrorEntry{Time: time.Now(), Pattern: name, Message: msg})
		if key := name + ": " + msg; key != r.lastFault {
			r.lastFault = key
			log.Printf("Render fault in %s: %v", name, v)
		}
	}()
	fn()
}

// Run draws frames at fps until ctx is cancelled.
func (r *Renderer) Run(ctx context.Context, fps int) {
	if fps <= 0 {
		fps = DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Frame(now.Sub(last))
			last = now
		}
	}
}

// Snapshot encodes the last drawn frame as PNG.
func (r *Renderer) Snapshot(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raster, ok := r.canvas.(*Raster)
	if !ok {
		return ErrNoRaster
	}
	return png.Encode(w, raster.Image())
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
