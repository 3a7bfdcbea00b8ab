package audio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/satindergrewal/attune/internal/catalog"
)

var (
	ErrUnavailable     = errors.New("audio engine unavailable")
	ErrFeatureDisabled = errors.New("feature disabled")
	ErrNotPlaying      = errors.New("not playing")
	ErrUnknownTrack    = errors.New("unknown track")
	ErrUnknownAmbient  = errors.New("unknown ambient sound")
)

// Status is the transport state of the engine.
type Status int

const (
	Idle Status = iota
	Playing
	FadingOut
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case FadingOut:
		return "fading"
	}
	return "unknown"
}

// PlaybackState is the engine's live configuration.
type PlaybackState struct {
	Status        Status  `json:"status"`
	TrackKey      string  `json:"track"`
	Binaural      bool    `json:"binaural"`
	AmbientMode   bool    `json:"ambient_mode"`
	AmbientKey    string  `json:"ambient"`
	Volume        float64 `json:"volume"`
	AmbientVolume float64 `json:"ambient_volume"`
}

// Features gates capabilities that are not available on every deployment.
type Features struct {
	Ambient  bool // looping ambient layer
	Monaural bool // single-carrier speaker mode
}

// Options configures an Engine.
type Options struct {
	// NewContext creates the audio context on first use. An error marks the
	// engine permanently unavailable.
	NewContext     func() (*Context, error)
	Loader         Loader
	Features       Features
	ResumeInterval time.Duration
}

// Engine synthesises entrainment tones. It owns the node graph; the gain
// node, the analyser and the context survive stop/start cycles, oscillators
// do not.
type Engine struct {
	opts Options

	mu          sync.Mutex
	ctx         *Context
	unavailable bool
	bus         *beep.Mixer
	master      *Gain
	analyser    *Analyser
	voice       *voice
	retiring    []*voice
	ambient     *ambientLayer
	state       PlaybackState
	onStop      []func()

	resumeCancel context.CancelFunc
	deviceCh     chan struct{}
	loads        sync.WaitGroup
}

// NewEngine creates an idle engine. Nothing touches the audio output until
// Init or Start.
func NewEngine(opts Options) *Engine {
	if opts.ResumeInterval <= 0 {
		opts.ResumeInterval = 500 * time.Millisecond
	}
	return &Engine{
		opts:     opts,
		deviceCh: make(chan struct{}, 1),
		state: PlaybackState{
			TrackKey:      catalog.DefaultTrack,
			Binaural:      true,
			AmbientKey:    catalog.AmbientNone,
			Volume:        0.5,
			AmbientVolume: 0.3,
		},
	}
}

// Init creates the context and the persistent part of the graph.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ensureContext()
}

func (e *Engine) ensureContext() error {
	if e.unavailable {
		return ErrUnavailable
	}
	if e.ctx != nil {
		return nil
	}
	if e.opts.NewContext == nil {
		e.unavailable = true
		return ErrUnavailable
	}
	c, err := e.opts.NewContext()
	if err != nil || c == nil {
		log.Printf("Audio unavailable: %v", err)
		e.unavailable = true
		return ErrUnavailable
	}
	e.ctx = c
	c.Do(func(now float64) {
		e.bus = &beep.Mixer{}
		e.master = NewGain(c, e.bus, MinGain)
		e.analyser = NewAnalyser(e.master)
		c.Connect(e.analyser)
	})
	if c.Channels() < 2 {
		log.Println("Stereo output unavailable, binaural tones summed to mono")
	}
	return nil
}

// Available reports whether audio can ever play.
func (e *Engine) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.unavailable
}

// Context returns the audio context, or nil before Init.
func (e *Engine) Context() *Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx
}

// Analyser returns the analysis tap, or nil before Init.
func (e *Engine) Analyser() *Analyser {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.analyser
}

// Energy is the normalised spectral energy of the tone while playing, else 0.
func (e *Engine) Energy() float64 {
	e.mu.Lock()
	a, playing := e.analyser, e.state.Status != Idle
	e.mu.Unlock()
	if a == nil || !playing {
		return 0
	}
	return a.Energy()
}

// State returns a copy of the playback state.
func (e *Engine) State() PlaybackState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Playing reports whether tones are sounding (including a fade-out).
func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Status != Idle
}

// OnStop registers fn to run after every Stop.
func (e *Engine) OnStop(fn func()) {
	e.mu.Lock()
	e.onStop = append(e.onStop, fn)
	e.mu.Unlock()
}

// Start builds the oscillator topology and ramps the tone in. It is a no-op
// while already playing.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Status != Idle {
		return nil
	}
	track, ok := catalog.LookupTrack(e.state.TrackKey)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTrack, e.state.TrackKey)
	}
	if err := e.ensureContext(); err != nil {
		return err
	}
	e.resume()

	e.ctx.Do(func(now float64) {
		// master comes back to volume once any releasing voice is gone
		at := now
		if e.retire(now) {
			at = now + SwapTime.Seconds()
		}
		e.master.Gain.CancelAndHoldAtTime(now)
		e.master.Gain.SetValueAtTime(e.state.Volume, at)

		e.voice = e.buildVoice(track, now, MinGain)
		rampTo(e.voice.out.Gain, now, MinGain, 1, AttackTime.Seconds())
	})
	e.state.Status = Playing
	e.startAmbient()
	log.Printf("Playing %s (%s)", track.Label, e.mode())
	return nil
}

// Stop ramps the tone out, retires the oscillators and fades the ambient
// layer before pausing it. It is a no-op while idle.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state.Status == Idle {
		e.mu.Unlock()
		return nil
	}
	e.ctx.Do(func(now float64) {
		release := ReleaseTime.Seconds()
		if e.voice != nil {
			glideTo(e.voice.out.Gain, now, 0, release)
			e.voice.stop(now + release)
			e.retiring = append(e.retiring, e.voice)
			e.voice = nil
		}
		if e.ambient != nil {
			e.ambient.pauseAfter(now, release)
		}
	})
	e.state.Status = Idle
	hooks := append([]func(){}, e.onStop...)
	e.mu.Unlock()

	log.Println("Playback stopped")
	for _, fn := range hooks {
		fn()
	}
	return nil
}

// SetVolume sets the tone volume, clamped to [0,1], ramping if playing.
func (e *Engine) SetVolume(v float64) float64 {
	v = Clamp01(v)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Volume = v
	if e.state.Status == Playing {
		e.ctx.Do(func(now float64) {
			glideTo(e.master.Gain, now, v, VolumeRampTime.Seconds())
		})
	}
	return v
}

// SetAmbientVolume sets the ambient layer volume, clamped to [0,1].
func (e *Engine) SetAmbientVolume(v float64) float64 {
	v = Clamp01(v)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.AmbientVolume = v
	if e.state.Status == Playing && e.ambient != nil && !e.ambient.paused() {
		e.ctx.Do(func(now float64) {
			glideTo(e.ambient.gain.Gain, now, v, VolumeRampTime.Seconds())
		})
	}
	return v
}

// SetMode switches between binaural (true) and monaural. While playing the
// topology is rebuilt immediately.
func (e *Engine) SetMode(binaural bool) error {
	if !binaural && !e.opts.Features.Monaural {
		return fmt.Errorf("%w: monaural mode", ErrFeatureDisabled)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Binaural == binaural {
		return nil
	}
	e.state.Binaural = binaural
	e.rebuild()
	return nil
}

// SetTrack selects a track. While playing the topology is rebuilt immediately.
func (e *Engine) SetTrack(key string) error {
	if _, ok := catalog.LookupTrack(key); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTrack, key)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.TrackKey == key {
		return nil
	}
	e.state.TrackKey = key
	e.rebuild()
	return nil
}

// SetAmbient selects the ambient sound and whether the layer is on. While
// playing the change is applied immediately.
func (e *Engine) SetAmbient(key string, enabled bool) error {
	if _, ok := catalog.LookupAmbient(key); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAmbient, key)
	}
	if enabled && !e.opts.Features.Ambient {
		return fmt.Errorf("%w: ambient sounds", ErrFeatureDisabled)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.AmbientKey = key
	e.state.AmbientMode = enabled
	if e.state.Status == Idle {
		return nil
	}
	if e.ambient != nil && (!enabled || e.ambient.key != key) {
		e.ctx.Do(func(float64) { e.ambient.release() })
		e.ambient = nil
	}
	e.startAmbient()
	return nil
}

// FadeTo ramps the output towards target over d without stopping the
// oscillators. A fade to zero marks the engine as fading out.
func (e *Engine) FadeTo(target float64, d time.Duration) error {
	target = Clamp01(target)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Status == Idle {
		return ErrNotPlaying
	}
	e.ctx.Do(func(now float64) {
		glideTo(e.master.Gain, now, target*e.state.Volume, d.Seconds())
		if e.ambient != nil && !e.ambient.paused() {
			glideTo(e.ambient.gain.Gain, now, target*e.state.AmbientVolume, d.Seconds())
		}
	})
	if target == 0 {
		e.state.Status = FadingOut
	} else {
		e.state.Status = Playing
	}
	return nil
}

// NotifyDeviceChange tells the engine the output device changed, which may
// unblock a suspended context.
func (e *Engine) NotifyDeviceChange() {
	select {
	case e.deviceCh <- struct{}{}:
	default:
	}
}

// Destroy stops every oscillator at once, releases the ambient layer and
// closes the context. The engine is unusable afterwards.
func (e *Engine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resumeCancel != nil {
		e.resumeCancel()
		e.resumeCancel = nil
	}
	if e.ctx != nil {
		e.ctx.Do(func(now float64) {
			if e.voice != nil {
				e.voice.stop(now)
			}
			for _, v := range e.retiring {
				v.stop(now)
			}
			if e.ambient != nil {
				e.ambient.release()
			}
		})
		e.ctx.Close()
	}
	e.voice = nil
	e.retiring = nil
	e.ambient = nil
	e.state.Status = Idle
	e.unavailable = true
}

func (e *Engine) mode() string {
	if e.state.Binaural {
		return "binaural"
	}
	return "monaural"
}

// rebuild swaps the live topology for one matching the current state.
// Must be called with e.mu held.
func (e *Engine) rebuild() {
	if e.state.Status == Idle || e.voice == nil {
		return
	}
	track, ok := catalog.LookupTrack(e.state.TrackKey)
	if !ok {
		return
	}
	e.ctx.Do(func(now float64) {
		old := e.voice
		swap := SwapTime.Seconds()
		glideTo(old.out.Gain, now, 0, swap)
		old.stop(now + swap)
		e.voice = e.buildVoice(track, now, 0)
		e.voice.out.Gain.SetValueAtTime(0, now)
		e.voice.out.Gain.LinearRampToValueAtTime(1, now+swap)
	})
	log.Printf("Switched to %s (%s)", track.Label, e.mode())
}

// startAmbient resumes the current layer or loads a new one in the
// background. Must be called with e.mu held.
func (e *Engine) startAmbient() {
	if !e.state.AmbientMode || !e.opts.Features.Ambient {
		return
	}
	amb, ok := catalog.LookupAmbient(e.state.AmbientKey)
	if !ok || amb.Source == "" {
		return
	}
	if e.ambient != nil && e.ambient.key == amb.Key {
		vol := e.state.AmbientVolume
		e.ctx.Do(func(now float64) { e.ambient.play(now, vol) })
		return
	}
	if e.opts.Loader == nil {
		log.Printf("Ambient %s skipped: no loader configured", amb.Key)
		return
	}

	e.loads.Add(1)
	go func() {
		defer e.loads.Done()
		src, format, err := e.opts.Loader.Load(amb.Source)
		if err != nil {
			log.Printf("Ambient %s failed to load: %v", amb.Key, err)
			return
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		// the user may have moved on while we were loading
		if e.ctx == nil || e.state.Status == Idle || !e.state.AmbientMode ||
			e.state.AmbientKey != amb.Key || e.ambient != nil {
			return
		}
		vol := e.state.AmbientVolume
		e.ctx.Do(func(now float64) {
			e.ambient = newAmbientLayer(e.ctx, amb.Key, src, format)
			e.ambient.play(now, vol)
		})
		log.Printf("Ambient %s playing", amb.Label)
	}()
}

// resume starts the context, retrying in the background while the output
// stays blocked. Must be called with e.mu held.
func (e *Engine) resume() {
	if err := e.ctx.Resume(); err == nil {
		return
	} else if errors.Is(err, ErrClosed) {
		return
	} else {
		log.Printf("Audio output suspended, retrying: %v", err)
	}
	if e.resumeCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.resumeCancel = cancel
	go e.retryResume(ctx, e.ctx)
}

func (e *Engine) retryResume(ctx context.Context, c *Context) {
	ticker := time.NewTicker(e.opts.ResumeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-e.deviceCh:
		}
		err := c.Resume()
		if err != nil && !errors.Is(err, ErrClosed) {
			continue
		}
		if err == nil {
			log.Println("Audio output resumed")
		}
		e.mu.Lock()
		if e.resumeCancel != nil {
			e.resumeCancel()
			e.resumeCancel = nil
		}
		e.mu.Unlock()
		return
	}
}

// voice is one oscillator topology. It is discarded after every stop.
type voice struct {
	oscs []*Oscillator
	out  *Gain
}

// buildVoice creates and starts the topology for track at gain g and
// connects it to the tone bus. Call inside Context.Do.
func (e *Engine) buildVoice(track *catalog.Track, now, g float64) *voice {
	c := e.ctx
	v := &voice{}
	var src beep.Streamer

	if e.state.Binaural || !e.opts.Features.Monaural {
		left := NewOscillator(c, track.Freqs[0])
		right := NewOscillator(c, track.Freqs[1])
		v.oscs = append(v.oscs, left, right)
		if c.Channels() >= 2 {
			src = beep.Mix(Pan(left, -1), Pan(right, 1))
		} else {
			src = NewGain(c, beep.Mix(left, right), 0.5)
		}
	} else {
		carrier := NewOscillator(c, track.BaseFreq)
		v.oscs = append(v.oscs, carrier)
		if track.BeatFreq > 0 {
			// gain = 0.5 + 0.5*sin(2π·beat·t): a full-depth pulse at the beat rate
			lfo := NewOscillator(c, track.BeatFreq)
			v.oscs = append(v.oscs, lfo)
			am := NewGain(c, carrier, 0.5)
			am.Gain.Connect(NewGain(c, lfo, 0.5))
			src = am
		} else {
			src = carrier
		}
	}

	for _, o := range v.oscs {
		o.Start(now)
	}
	v.out = NewGain(c, src, g)
	e.bus.Add(v.out)
	return v
}

// retire fades out voices still releasing from an earlier Stop and reports
// whether any were audible. Call inside Context.Do.
func (e *Engine) retire(now float64) bool {
	audible := false
	for _, v := range e.retiring {
		if v.ended() {
			continue
		}
		swap := SwapTime.Seconds()
		glideTo(v.out.Gain, now, 0, swap)
		v.stop(now + swap)
		audible = true
	}
	e.retiring = nil
	return audible
}

func (v *voice) ended() bool {
	for _, o := range v.oscs {
		if !o.Ended() {
			return false
		}
	}
	return true
}

func (v *voice) stop(t float64) {
	for _, o := range v.oscs {
		o.Stop(t)
	}
}

// rampTo cancels pending automation, pins from at now and ramps to `to`,
// exponentially when both ends are audible, linearly otherwise.
func rampTo(p *Param, now, from, to, dur float64) {
	p.CancelScheduledValues(now)
	p.SetValueAtTime(from, now)
	if from >= MinGain && to >= MinGain {
		p.ExponentialRampToValueAtTime(to, now+dur)
		return
	}
	p.LinearRampToValueAtTime(to, now+dur)
}

// glideTo continues from wherever the param currently is.
func glideTo(p *Param, now, to, dur float64) {
	from := p.CancelAndHoldAtTime(now)
	if from >= MinGain && to >= MinGain {
		p.ExponentialRampToValueAtTime(to, now+dur)
		return
	}
	p.LinearRampToValueAtTime(to, now+dur)
}
