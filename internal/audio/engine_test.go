package audio

import (
	"errors"
	"math"
	"math/cmplx"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"gonum.org/v1/gonum/dsp/fourier"
)

func newTestEngine(t *testing.T, channels int, f Features, loader Loader) (*Engine, *Context) {
	t.Helper()
	c := NewContext(SampleRate, channels, nil)
	e := NewEngine(Options{
		NewContext: func() (*Context, error) { return c, nil },
		Features:   f,
		Loader:     loader,
	})
	return e, c
}

func render(c *Context, d time.Duration) [][2]float64 {
	buf := make([][2]float64, int(d.Seconds()*SampleRate))
	c.Render(buf)
	return buf
}

func peak(buf [][2]float64, ch int) float64 {
	m := 0.0
	for _, s := range buf {
		m = math.Max(m, math.Abs(s[ch]))
	}
	return m
}

// upCrossings counts negative-to-positive transitions, i.e. cycles.
func upCrossings(buf [][2]float64, ch int) int {
	n := 0
	for i := 1; i < len(buf); i++ {
		if buf[i-1][ch] < 0 && buf[i][ch] >= 0 {
			n++
		}
	}
	return n
}

// amplitude measures the sine amplitude of freq Hz in one channel of buf.
// freq should complete a whole number of cycles over buf.
func amplitude(buf [][2]float64, ch int, freq float64) float64 {
	seq := make([]float64, len(buf))
	for i, s := range buf {
		seq[i] = s[ch]
	}
	coeff := fourier.NewFFT(len(seq)).Coefficients(nil, seq)
	k := int(math.Round(freq * float64(len(seq)) / SampleRate))
	return 2 * cmplx.Abs(coeff[k]) / float64(len(seq))
}

func busLen(e *Engine) int {
	n := 0
	e.ctx.Do(func(float64) { n = e.bus.Len() })
	return n
}

// --- Transport ---

func TestStartStopStartLeavesNoDanglingVoices(t *testing.T) {
	e, c := newTestEngine(t, 2, Features{}, nil)

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	render(c, time.Second)

	if got := busLen(e); got != 1 {
		t.Errorf("voices on bus = %d, want 1 after the stopped voice drained", got)
	}
	if e.State().Status != Playing {
		t.Errorf("Status = %v, want playing", e.State().Status)
	}
}

func TestRestartSilencesReleasingVoice(t *testing.T) {
	e, c := newTestEngine(t, 2, Features{}, nil)
	e.Start() // alpha: 200 Hz left
	render(c, time.Second)
	e.Stop()
	render(c, 20*time.Millisecond)
	if err := e.SetTrack("gamma"); err != nil {
		t.Fatal(err)
	}
	e.Start() // gamma: 300 Hz left

	buf := render(c, 470*time.Millisecond)
	window := buf[int(0.32*SampleRate):]
	if a := amplitude(window, 0, 200); a > 1e-3 {
		t.Errorf("stopped track still sounding at amplitude %v", a)
	}
	if a := amplitude(window, 0, 300); !near(a, e.State().Volume, 0.02) {
		t.Errorf("new track amplitude = %v, want %v", a, e.State().Volume)
	}
	if got := busLen(e); got != 1 {
		t.Errorf("voices on bus = %d, want 1", got)
	}
}

func TestRestartDuringReleaseFollowsAttack(t *testing.T) {
	e, c := newTestEngine(t, 2, Features{}, nil)
	vol := e.State().Volume
	e.Start()
	render(c, time.Second)
	e.Stop()
	before := render(c, 100*time.Millisecond)
	released := peak(before[len(before)-240:], 0)
	e.Start()

	const block = 240 // 5ms
	buf := render(c, AttackTime)
	for off := 0; off+block <= len(buf); off += block {
		p := peak(buf[off:off+block], 0)
		end := float64(off+block) / SampleRate
		if end <= SwapTime.Seconds() {
			if p > released+1e-3 {
				t.Fatalf("level rose to %v at %.3fs while the old voice faded from %v", p, end, released)
			}
			continue
		}
		env := vol * MinGain * math.Pow(1/MinGain, end/AttackTime.Seconds())
		if p > env+1e-3 {
			t.Fatalf("level %v at %.3fs exceeds the attack envelope %v", p, end, env)
		}
	}
}

func TestStartIsNoOpWhilePlaying(t *testing.T) {
	e, _ := newTestEngine(t, 2, Features{}, nil)
	e.Start()
	e.Start()
	if got := busLen(e); got != 1 {
		t.Errorf("voices on bus = %d, want 1", got)
	}
}

func TestStopIsNoOpWhileIdle(t *testing.T) {
	e, _ := newTestEngine(t, 2, Features{}, nil)
	calls := 0
	e.OnStop(func() { calls++ })
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if calls != 0 {
		t.Errorf("stop hooks ran %d times while idle", calls)
	}
	e.Start()
	e.Stop()
	if calls != 1 {
		t.Errorf("stop hooks ran %d times, want 1", calls)
	}
}

func TestAttackReachesVolume(t *testing.T) {
	e, c := newTestEngine(t, 2, Features{}, nil)
	e.SetVolume(0.5)
	e.Start()

	head := render(c, 10*time.Millisecond)
	if p := peak(head, 0); p > 0.05 {
		t.Errorf("first 10ms peak = %v, want a quiet ramp start", p)
	}
	render(c, 350*time.Millisecond)
	steady := render(c, 50*time.Millisecond)
	if p := peak(steady, 0); !near(p, 0.5, 0.01) {
		t.Errorf("steady peak = %v, want 0.5", p)
	}
}

func TestStopRampsToSilence(t *testing.T) {
	e, c := newTestEngine(t, 2, Features{}, nil)
	e.Start()
	render(c, 400*time.Millisecond)
	e.Stop()

	tail := render(c, 100*time.Millisecond)
	if p := peak(tail, 0); p == 0 {
		t.Error("output cut instantly, want a release ramp")
	}
	render(c, 500*time.Millisecond)
	after := render(c, 100*time.Millisecond)
	if p := peak(after, 0); p != 0 {
		t.Errorf("peak after release = %v, want silence", p)
	}
	if got := busLen(e); got != 0 {
		t.Errorf("voices on bus = %d, want 0", got)
	}
}

// --- Topology ---

func TestBinauralChannelsCarryTrackFrequencies(t *testing.T) {
	e, c := newTestEngine(t, 2, Features{}, nil)
	if err := e.SetTrack("alpha"); err != nil {
		t.Fatal(err)
	}
	e.Start()
	render(c, 400*time.Millisecond)
	buf := render(c, time.Second)

	if got := upCrossings(buf, 0); got < 199 || got > 201 {
		t.Errorf("left cycles = %d, want 200", got)
	}
	if got := upCrossings(buf, 1); got < 209 || got > 211 {
		t.Errorf("right cycles = %d, want 210", got)
	}
}

func TestMonoOutputSumsBinaural(t *testing.T) {
	e, c := newTestEngine(t, 1, Features{}, nil)
	e.Start()
	render(c, 400*time.Millisecond)
	buf := render(c, 100*time.Millisecond)
	for i, s := range buf {
		if s[0] != s[1] {
			t.Fatalf("sample %d = %v, want identical channels on mono output", i, s)
		}
	}
	if p := peak(buf, 0); p == 0 {
		t.Error("mono output is silent")
	}
}

func TestMonauralPulsesAtBeatRate(t *testing.T) {
	e, c := newTestEngine(t, 2, Features{Monaural: true}, nil)
	e.SetTrack("delta")
	if err := e.SetMode(false); err != nil {
		t.Fatalf("SetMode(false): %v", err)
	}
	e.SetVolume(1)
	e.Start()
	render(c, 400*time.Millisecond)
	buf := render(c, time.Second)

	// 25ms windows cover a few carrier cycles but only 1/20 of a beat
	const win = SampleRate / 40
	lo, hi := math.Inf(1), 0.0
	for off := 0; off+win <= len(buf); off += win {
		p := peak(buf[off:off+win], 0)
		lo, hi = math.Min(lo, p), math.Max(hi, p)
		for _, s := range buf[off : off+win] {
			if s[0] != s[1] {
				t.Fatal("monaural output differs between channels")
			}
		}
	}
	if hi < 0.8 {
		t.Errorf("loudest window = %v, want close to full scale", hi)
	}
	if lo > 0.1 {
		t.Errorf("quietest window = %v, want a deep trough", lo)
	}
}

func TestMonauralRequiresFeature(t *testing.T) {
	e, _ := newTestEngine(t, 2, Features{}, nil)
	if err := e.SetMode(false); !errors.Is(err, ErrFeatureDisabled) {
		t.Errorf("SetMode(false) err = %v, want ErrFeatureDisabled", err)
	}
	if !e.State().Binaural {
		t.Error("mode changed despite disabled feature")
	}
}

func TestLiveTrackChangeRebuildsImmediately(t *testing.T) {
	e, c := newTestEngine(t, 2, Features{}, nil)
	e.SetTrack("alpha")
	e.Start()
	render(c, 400*time.Millisecond)

	if err := e.SetTrack("gamma"); err != nil {
		t.Fatal(err)
	}
	render(c, 100*time.Millisecond)
	buf := render(c, time.Second)
	if got := upCrossings(buf, 0); got < 299 || got > 301 {
		t.Errorf("left cycles after switch = %d, want 300", got)
	}
	if got := busLen(e); got != 1 {
		t.Errorf("voices on bus = %d, want 1", got)
	}
}

func TestUnknownTrackRejected(t *testing.T) {
	e, _ := newTestEngine(t, 2, Features{}, nil)
	if err := e.SetTrack("epsilon"); !errors.Is(err, ErrUnknownTrack) {
		t.Errorf("SetTrack err = %v, want ErrUnknownTrack", err)
	}
}

// --- Volume & fades ---

func TestVolumeClamped(t *testing.T) {
	e, _ := newTestEngine(t, 2, Features{}, nil)
	tests := []struct {
		in, want float64
	}{
		{1.5, 1},
		{-0.2, 0},
		{math.NaN(), 0},
		{0.3, 0.3},
	}
	for _, tt := range tests {
		if got := e.SetVolume(tt.in); got != tt.want {
			t.Errorf("SetVolume(%v) = %v, want %v", tt.in, got, tt.want)
		}
		if got := e.State().Volume; got != tt.want {
			t.Errorf("State().Volume = %v, want %v", got, tt.want)
		}
		if got := e.SetAmbientVolume(tt.in); got != tt.want {
			t.Errorf("SetAmbientVolume(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestVolumeChangeRamps(t *testing.T) {
	e, c := newTestEngine(t, 2, Features{}, nil)
	e.SetVolume(0.2)
	e.Start()
	render(c, 400*time.Millisecond)
	e.SetVolume(1)

	var mid float64
	c.Do(func(now float64) { mid = e.master.Gain.ValueAt(now + VolumeRampTime.Seconds()/2) })
	if mid <= 0.2 || mid >= 1 {
		t.Errorf("gain halfway through ramp = %v, want strictly between 0.2 and 1", mid)
	}
}

func TestFadeToKeepsOscillators(t *testing.T) {
	e, c := newTestEngine(t, 2, Features{}, nil)
	e.Start()
	render(c, 400*time.Millisecond)

	if err := e.FadeTo(0, time.Second); err != nil {
		t.Fatalf("FadeTo: %v", err)
	}
	if e.State().Status != FadingOut {
		t.Errorf("Status = %v, want fading", e.State().Status)
	}
	render(c, 1100*time.Millisecond)
	buf := render(c, 100*time.Millisecond)
	if p := peak(buf, 0); p > 1e-3 {
		t.Errorf("peak after fade = %v, want near silence", p)
	}
	if got := busLen(e); got != 1 {
		t.Errorf("voices on bus = %d, want the voice kept alive", got)
	}
}

func TestFadeToWhileIdle(t *testing.T) {
	e, _ := newTestEngine(t, 2, Features{}, nil)
	if err := e.FadeTo(0, time.Second); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("FadeTo err = %v, want ErrNotPlaying", err)
	}
}

// --- Failure handling ---

func TestUnavailableContext(t *testing.T) {
	e := NewEngine(Options{NewContext: func() (*Context, error) {
		return nil, errors.New("no audio device")
	}})
	if err := e.Start(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Start err = %v, want ErrUnavailable", err)
	}
	if e.Available() {
		t.Error("Available() = true after failed context creation")
	}
	if err := e.Start(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("second Start err = %v, want ErrUnavailable", err)
	}
	if e.Energy() != 0 {
		t.Error("Energy() should be 0 without audio")
	}
}

func TestResumeRetriesOnDeviceChange(t *testing.T) {
	var ready atomic.Bool
	c := NewContext(SampleRate, 2, GateFunc(func() error {
		if !ready.Load() {
			return errors.New("autoplay blocked")
		}
		return nil
	}))
	e := NewEngine(Options{
		NewContext:     func() (*Context, error) { return c, nil },
		ResumeInterval: time.Hour,
	})
	defer e.Destroy()

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.State() != Suspended {
		t.Fatalf("context state = %v, want suspended", c.State())
	}

	ready.Store(true)
	e.NotifyDeviceChange()

	deadline := time.Now().Add(2 * time.Second)
	for c.State() != Running {
		if time.Now().After(deadline) {
			t.Fatal("context did not resume after device change")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDestroyClosesContext(t *testing.T) {
	e, c := newTestEngine(t, 2, Features{}, nil)
	e.Start()
	e.Destroy()
	if c.State() != Closed {
		t.Errorf("context state = %v, want closed", c.State())
	}
	if err := e.Start(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Start after Destroy err = %v, want ErrUnavailable", err)
	}
}

// --- Ambient ---

func constantLoader(v float64) Loader {
	return LoaderFunc(func(string) (beep.StreamSeeker, beep.Format, error) {
		s := int16(v * 32768)
		samples := make([]int16, 2*480)
		for i := range samples {
			samples[i] = s
		}
		return NewPCMStreamer(samples), beep.Format{SampleRate: SampleRate, NumChannels: 2, Precision: 2}, nil
	})
}

func TestAmbientLoadFailureKeepsTone(t *testing.T) {
	failing := LoaderFunc(func(string) (beep.StreamSeeker, beep.Format, error) {
		return nil, beep.Format{}, errors.New("404")
	})
	e, c := newTestEngine(t, 2, Features{Ambient: true}, failing)
	if err := e.SetAmbient("rain", true); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	e.loads.Wait()

	render(c, 400*time.Millisecond)
	if p := peak(render(c, 50*time.Millisecond), 0); p == 0 {
		t.Error("tone silent after ambient failure")
	}
	if e.ambient != nil {
		t.Error("ambient layer created despite load failure")
	}
}

func TestAmbientPlaysAndPauses(t *testing.T) {
	e, c := newTestEngine(t, 2, Features{Ambient: true}, constantLoader(0.5))
	e.SetVolume(0)
	e.SetAmbientVolume(0.5)
	e.SetAmbient("rain", true)
	e.Start()
	e.loads.Wait()

	render(c, 400*time.Millisecond)
	buf := render(c, 50*time.Millisecond)
	if p := peak(buf, 0); !near(p, 0.25, 0.01) {
		t.Errorf("ambient level = %v, want 0.25", p)
	}

	e.Stop()
	tail := render(c, 100*time.Millisecond)
	head, last := peak(tail[:240], 0), peak(tail[len(tail)-240:], 0)
	if head == 0 {
		t.Error("ambient cut instantly, want a release ramp")
	}
	if last >= head {
		t.Errorf("ambient level went %v -> %v during release, want falling", head, last)
	}
	render(c, 500*time.Millisecond)
	if !e.ambient.ctrl.Paused {
		t.Error("ambient not paused after the release")
	}
	if p := peak(render(c, 50*time.Millisecond), 0); p != 0 {
		t.Errorf("output after stop = %v, want silence", p)
	}
}

func TestAmbientRequiresFeature(t *testing.T) {
	e, _ := newTestEngine(t, 2, Features{}, nil)
	if err := e.SetAmbient("rain", true); !errors.Is(err, ErrFeatureDisabled) {
		t.Errorf("SetAmbient err = %v, want ErrFeatureDisabled", err)
	}
	if err := e.SetAmbient("thunder", false); !errors.Is(err, ErrUnknownAmbient) {
		t.Errorf("SetAmbient(unknown) err = %v, want ErrUnknownAmbient", err)
	}
}
