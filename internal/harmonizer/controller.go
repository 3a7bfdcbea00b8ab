package harmonizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/satindergrewal/attune/internal/analytics"
	"github.com/satindergrewal/attune/internal/audio"
	"github.com/satindergrewal/attune/internal/catalog"
	"github.com/satindergrewal/attune/internal/session"
	"github.com/satindergrewal/attune/internal/store"
	"github.com/satindergrewal/attune/internal/visual"
)

var ErrUnknownEffect = errors.New("unknown effect")

// Display modes for the visualiser surface.
const (
	DisplayWindow     = "window"
	DisplayFullscreen = "fullscreen"
	DisplayViewport   = "viewport" // full-viewport fallback when the host has no fullscreen
)

// Options wires a Controller to its engines.
type Options struct {
	Engine   *audio.Engine
	Renderer *visual.Renderer
	Store    *store.Store
	Sink     analytics.Sink
	Clock    session.Clock
	// NativeFullscreen reports whether the host can enter real fullscreen.
	NativeFullscreen bool
}

// State is everything the host needs to draw its controls.
type State struct {
	Playback       audio.PlaybackState `json:"playback"`
	Visual         visual.State        `json:"visual"`
	Timer          session.State       `json:"timer"`
	Effect         string              `json:"effect"`
	Display        string              `json:"display"`
	NoScreen       bool                `json:"no_screen"`
	TimerMinutes   int                 `json:"timer_minutes"`
	AudioAvailable bool                `json:"audio_available"`
}

// Controller turns user intent into calls on the audio engine, the renderer,
// the session timer and the store, and keeps them consistent.
//
// Engine and renderer calls are made without holding mu: the engine runs its
// stop hooks synchronously and those re-enter the controller.
type Controller struct {
	engine   *audio.Engine
	renderer *visual.Renderer
	timer    *session.Timer
	store    *store.Store
	sink     analytics.Sink
	native   bool

	mu           sync.Mutex
	effect       string
	display      string
	noScreen     bool
	timerMinutes int

	persistMu sync.Mutex
}

// New creates a controller and restores the saved settings.
func New(opts Options) *Controller {
	if opts.Sink == nil {
		opts.Sink = analytics.NopSink{}
	}
	c := &Controller{
		engine:   opts.Engine,
		renderer: opts.Renderer,
		timer:    session.NewTimer(opts.Engine, opts.Clock),
		store:    opts.Store,
		sink:     opts.Sink,
		native:   opts.NativeFullscreen,
		display:  DisplayWindow,
	}
	c.restore(c.store.LoadSettings())

	c.engine.OnStop(c.audioStopped)
	c.timer.OnComplete(c.sessionComplete)
	c.renderer.SetEnergySource(c.engine)
	return c
}

// restore pushes saved settings into the engines. Settings the deployment
// cannot honour are skipped.
func (c *Controller) restore(st store.Settings) {
	if err := c.engine.SetTrack(st.TrackKey); err != nil {
		log.Printf("Restore track: %v", err)
	}
	if err := c.engine.SetMode(st.Binaural); err != nil {
		log.Printf("Restore mode: %v", err)
	}
	if st.AmbientMode {
		if err := c.engine.SetAmbient(st.AmbientKey, true); err != nil {
			log.Printf("Restore ambient: %v", err)
		}
	}
	c.engine.SetVolume(st.Volume)
	c.engine.SetAmbientVolume(st.AmbientVolume)

	if err := c.renderer.SetPattern(st.Pattern); err != nil {
		log.Printf("Restore pattern: %v", err)
	}
	if err := c.renderer.SetTheme(st.ColorTheme); err != nil {
		log.Printf("Restore theme: %v", err)
	}
	c.renderer.SetSpeed(st.Speed)
	c.renderer.SetIntensity(st.Intensity)
	c.renderer.SetMotionEffects(st.MotionEffects)

	effect, _ := catalog.EffectForPattern(c.renderer.State().Pattern)
	c.effect = effect
	c.timerMinutes = st.TimerMinutes
}

// Timer exposes the session timer so the host can drive it.
func (c *Controller) Timer() *session.Timer { return c.timer }

// State returns a snapshot across all engines.
func (c *Controller) State() State {
	c.mu.Lock()
	st := State{
		Effect:       c.effect,
		Display:      c.display,
		NoScreen:     c.noScreen,
		TimerMinutes: c.timerMinutes,
	}
	c.mu.Unlock()
	st.Playback = c.engine.State()
	st.Visual = c.renderer.State()
	st.Timer = c.timer.State()
	st.AudioAvailable = c.engine.Available()
	return st
}

// --- Transport ---

// Play starts playback. It does nothing while the engine is already sounding,
// including the fade-out at the end of a timed session.
func (c *Controller) Play() error {
	if c.engine.Playing() {
		return nil
	}
	if err := c.engine.Start(); err != nil {
		return err
	}
	c.renderer.SetPlaying(true)
	c.emit(analytics.CategoryAudio, "play", c.engine.State().TrackKey, nil)
	return nil
}

// Stop ends playback. The engine's stop hook cancels any running session
// and lifts no-screen mode.
func (c *Controller) Stop() error {
	if !c.engine.Playing() {
		return nil
	}
	if err := c.engine.Stop(); err != nil {
		return err
	}
	c.emit(analytics.CategoryAudio, "stop", c.engine.State().TrackKey, nil)
	return nil
}

// Toggle plays when idle and stops when playing.
func (c *Controller) Toggle() error {
	if c.engine.Playing() {
		return c.Stop()
	}
	return c.Play()
}

// audioStopped runs after every engine stop, whoever asked for it.
func (c *Controller) audioStopped() {
	if c.timer.Active() {
		elapsed := c.timer.Elapsed()
		c.timer.Cancel()
		c.recordSession(elapsed)
		c.emit(analytics.CategoryTimer, "stop", "playback stopped", analytics.Value(elapsed.Seconds()))
	}
	c.mu.Lock()
	c.noScreen = false
	c.mu.Unlock()
	c.renderer.SetPlaying(false)
}

func (c *Controller) sessionComplete(elapsed time.Duration) {
	c.recordSession(elapsed)
	c.emit(analytics.CategoryTimer, "complete", "", analytics.Value(elapsed.Seconds()))
}

func (c *Controller) recordSession(elapsed time.Duration) {
	pb := c.engine.State()
	e := store.HistoryEntry{
		TrackKey:       pb.TrackKey,
		Pattern:        c.renderer.State().Pattern,
		ElapsedSeconds: int(elapsed / time.Second),
		Binaural:       pb.Binaural,
	}
	if pb.AmbientMode {
		e.AmbientKey = pb.AmbientKey
	}
	if err := c.store.AppendHistory(e); err != nil {
		log.Printf("Record session: %v", err)
	}
}

// --- Audio settings ---

func (c *Controller) SelectTrack(key string) error {
	if err := c.engine.SetTrack(key); err != nil {
		return err
	}
	c.persist()
	c.emit(analytics.CategoryAudio, "track", key, nil)
	return nil
}

func (c *Controller) SetBinaural(on bool) error {
	if err := c.engine.SetMode(on); err != nil {
		return err
	}
	c.persist()
	mode := "monaural"
	if on {
		mode = "binaural"
	}
	c.emit(analytics.CategoryAudio, "mode", mode, nil)
	return nil
}

func (c *Controller) SetAmbient(key string, enabled bool) error {
	if err := c.engine.SetAmbient(key, enabled); err != nil {
		return err
	}
	c.persist()
	c.emit(analytics.CategoryAudio, "ambient", key, nil)
	return nil
}

// SetVolume returns the clamped volume applied.
func (c *Controller) SetVolume(v float64) float64 {
	v = c.engine.SetVolume(v)
	c.persist()
	return v
}

// SetAmbientVolume returns the clamped volume applied.
func (c *Controller) SetAmbientVolume(v float64) float64 {
	v = c.engine.SetAmbientVolume(v)
	c.persist()
	return v
}

// --- Visual settings ---

// SelectPattern switches the pattern; the effect follows by reverse lookup.
func (c *Controller) SelectPattern(key string) error {
	if err := c.renderer.SetPattern(key); err != nil {
		return err
	}
	effect, _ := catalog.EffectForPattern(key)
	c.mu.Lock()
	c.effect = effect
	c.mu.Unlock()
	c.persist()
	c.emit(analytics.CategoryVisual, "pattern", key, nil)
	return nil
}

// SelectEffect forces the pattern mapped to effect.
func (c *Controller) SelectEffect(effect string) error {
	pattern, ok := catalog.PatternForEffect(effect)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEffect, effect)
	}
	if err := c.renderer.SetPattern(pattern); err != nil {
		return err
	}
	c.mu.Lock()
	c.effect = effect
	c.mu.Unlock()
	c.persist()
	c.emit(analytics.CategoryVisual, "effect", effect, nil)
	return nil
}

func (c *Controller) SetSpeed(v float64) float64 {
	v = c.renderer.SetSpeed(v)
	c.persist()
	return v
}

func (c *Controller) SetIntensity(v float64) float64 {
	v = c.renderer.SetIntensity(v)
	c.persist()
	return v
}

func (c *Controller) SetColorTheme(name string) error {
	if err := c.renderer.SetTheme(name); err != nil {
		return err
	}
	c.persist()
	return nil
}

func (c *Controller) SetMotionEffects(on bool) {
	c.renderer.SetMotionEffects(on)
	c.persist()
}

// Pointer forwards pointer movement to the renderer, each axis in [-1, 1].
func (c *Controller) Pointer(x, y float64) {
	c.renderer.Pointer(x, y)
}

// ToggleFullscreen enters or leaves fullscreen, using the full-viewport
// presentation when the host cannot go fullscreen. Returns the new mode.
func (c *Controller) ToggleFullscreen() string {
	c.mu.Lock()
	if c.display != DisplayWindow {
		c.display = DisplayWindow
	} else if c.native {
		c.display = DisplayFullscreen
	} else {
		c.display = DisplayViewport
	}
	mode := c.display
	c.mu.Unlock()

	c.renderer.SetFullscreen(mode != DisplayWindow)
	c.emit(analytics.CategoryDisplay, "fullscreen", mode, nil)
	return mode
}

// SetNoScreen hides the visualiser during playback. It is rejected while
// idle and cleared by every stop.
func (c *Controller) SetNoScreen(on bool) error {
	if on && !c.engine.Playing() {
		return audio.ErrNotPlaying
	}
	c.mu.Lock()
	c.noScreen = on
	c.mu.Unlock()
	return nil
}

// Snapshot writes the current frame as PNG.
func (c *Controller) Snapshot(w io.Writer) error {
	return c.renderer.Snapshot(w)
}

// RenderErrors returns the most recent render faults.
func (c *Controller) RenderErrors() []visual.ErrorEntry {
	return c.renderer.Errors()
}

// DeviceChanged tells the engine the output device changed.
func (c *Controller) DeviceChanged() {
	c.engine.NotifyDeviceChange()
}

// --- Session timer ---

func (c *Controller) StartTimer(minutes int) error {
	if err := c.timer.Start(minutes); err != nil {
		return err
	}
	c.mu.Lock()
	c.timerMinutes = minutes
	c.mu.Unlock()
	c.persist()
	c.emit(analytics.CategoryTimer, "start", "", analytics.Value(float64(minutes)))
	return nil
}

// CancelTimer abandons the session without recording it.
func (c *Controller) CancelTimer() {
	if c.timer.Cancel() {
		c.emit(analytics.CategoryTimer, "cancel", "", nil)
	}
}

// --- Presets ---

func (c *Controller) snapshot() store.Snapshot {
	pb, vs := c.engine.State(), c.renderer.State()
	s := store.Snapshot{
		TrackKey:      pb.TrackKey,
		Pattern:       vs.Pattern,
		Binaural:      pb.Binaural,
		Volume:        pb.Volume,
		AmbientVolume: pb.AmbientVolume,
		Intensity:     vs.Intensity,
		ColorTheme:    vs.Theme,
	}
	if pb.AmbientMode {
		s.AmbientKey = pb.AmbientKey
	}
	return s
}

func (c *Controller) SavePreset(name string) (store.Preset, error) {
	p, err := c.store.SavePreset(name, c.snapshot())
	if err != nil {
		return store.Preset{}, err
	}
	c.emit(analytics.CategoryPreset, "save", p.Name, nil)
	return p, nil
}

// ApplyPreset pushes every field of the preset into the live state. Fields
// this deployment cannot honour (a disabled mode, say) are logged and skipped.
func (c *Controller) ApplyPreset(id string) error {
	p, err := c.store.Preset(id)
	if err != nil {
		return err
	}
	if err := c.engine.SetTrack(p.TrackKey); err != nil {
		log.Printf("Preset %s: %v", p.Name, err)
	}
	if err := c.engine.SetMode(p.Binaural); err != nil {
		log.Printf("Preset %s: %v", p.Name, err)
	}
	ambient := p.AmbientKey != "" && p.AmbientKey != catalog.AmbientNone
	key := p.AmbientKey
	if !ambient {
		key = catalog.AmbientNone
	}
	if err := c.engine.SetAmbient(key, ambient); err != nil {
		log.Printf("Preset %s: %v", p.Name, err)
	}
	c.engine.SetVolume(p.Volume)
	c.engine.SetAmbientVolume(p.AmbientVolume)

	if err := c.renderer.SetPattern(p.Pattern); err != nil {
		log.Printf("Preset %s: %v", p.Name, err)
	} else {
		effect, _ := catalog.EffectForPattern(p.Pattern)
		c.mu.Lock()
		c.effect = effect
		c.mu.Unlock()
	}
	c.renderer.SetIntensity(p.Intensity)
	if err := c.renderer.SetTheme(p.ColorTheme); err != nil {
		log.Printf("Preset %s: %v", p.Name, err)
	}

	c.persist()
	c.emit(analytics.CategoryPreset, "apply", p.Name, nil)
	return nil
}

func (c *Controller) DeletePreset(id string) error {
	if err := c.store.DeletePreset(id); err != nil {
		return err
	}
	c.emit(analytics.CategoryPreset, "delete", id, nil)
	return nil
}

func (c *Controller) Presets() []store.Preset { return c.store.Presets() }

// ExportPresets writes every preset as YAML.
func (c *Controller) ExportPresets(w io.Writer) error { return c.store.ExportPresets(w) }

// ImportPresets merges presets from YAML and reports how many were added.
func (c *Controller) ImportPresets(r io.Reader) (int, error) {
	n, err := c.store.ImportPresets(r)
	if err != nil {
		return 0, err
	}
	c.emit(analytics.CategoryPreset, "import", "", analytics.Value(float64(n)))
	return n, nil
}

func (c *Controller) History() []store.HistoryEntry { return c.store.History() }

// --- Lifecycle ---

// Run drives the session timer and the render loop until ctx is cancelled.
func (c *Controller) Run(ctx context.Context, fps int) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.timer.Run(ctx, time.Second)
	}()
	go func() {
		defer wg.Done()
		c.renderer.Run(ctx, fps)
	}()
	wg.Wait()
}

// Close stops every oscillator and releases the audio context.
func (c *Controller) Close() {
	c.timer.Cancel()
	c.engine.Destroy()
	c.renderer.SetPlaying(false)
}

// persist writes the settings record through.
func (c *Controller) persist() {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	pb, vs := c.engine.State(), c.renderer.State()
	c.mu.Lock()
	st := store.Settings{
		TrackKey:      pb.TrackKey,
		Pattern:       vs.Pattern,
		Effect:        c.effect,
		Binaural:      pb.Binaural,
		AmbientMode:   pb.AmbientMode,
		AmbientKey:    pb.AmbientKey,
		Volume:        pb.Volume,
		AmbientVolume: pb.AmbientVolume,
		Speed:         vs.Speed,
		Intensity:     vs.Intensity,
		ColorTheme:    vs.Theme,
		MotionEffects: vs.MotionEffects,
		TimerMinutes:  c.timerMinutes,
	}
	c.mu.Unlock()

	if err := c.store.SaveSettings(st); err != nil {
		log.Printf("Save settings: %v", err)
	}
}

func (c *Controller) emit(category, action, label string, value *float64) {
	c.sink.Emit(analytics.Event{Category: category, Action: action, Label: label, Value: value})
}
