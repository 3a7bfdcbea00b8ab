package audio

import (
	"errors"
	"math"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
)

var (
	ErrOscillatorSpent = errors.New("oscillator already started")
	ErrNotStarted      = errors.New("oscillator not started")
)

// Oscillator is a one-shot sine source. Once stopped it reports drained and
// the mixer drops it; it can never be started again.
type Oscillator struct {
	c         *Context
	Frequency *Param
	phase     float64
	start     float64
	stop      float64
	started   bool
	freqs     []float64
}

// NewOscillator creates an unstarted sine oscillator at freq Hz.
func NewOscillator(c *Context, freq float64) *Oscillator {
	return &Oscillator{
		c:         c,
		Frequency: NewParam(freq),
		stop:      math.Inf(1),
	}
}

// Start schedules the oscillator to begin at t.
func (o *Oscillator) Start(t float64) error {
	if o.started {
		return ErrOscillatorSpent
	}
	o.started = true
	o.start = t
	return nil
}

// Stop schedules the oscillator to end at t.
func (o *Oscillator) Stop(t float64) error {
	if !o.started {
		return ErrNotStarted
	}
	if t < o.stop {
		o.stop = t
	}
	return nil
}

// Ended reports whether the oscillator has played past its stop time.
func (o *Oscillator) Ended() bool {
	return o.c.now() >= o.stop
}

func (o *Oscillator) Stream(samples [][2]float64) (int, bool) {
	if cap(o.freqs) < len(samples) {
		o.freqs = make([]float64, len(samples))
	}
	freqs := o.freqs[:len(samples)]
	o.Frequency.fill(freqs, o.c.pos, o.c.sr)

	sr := float64(o.c.sr)
	for i := range samples {
		t := o.c.timeAt(i)
		if t >= o.stop {
			return i, false
		}
		if !o.started || t < o.start {
			samples[i] = [2]float64{}
			continue
		}
		v := math.Sin(2 * math.Pi * o.phase)
		_, o.phase = math.Modf(o.phase + freqs[i]/sr)
		samples[i] = [2]float64{v, v}
	}
	return len(samples), true
}

func (o *Oscillator) Err() error { return nil }

// Gain scales its input by an automatable gain. It drains when its input
// drains or when it is disconnected.
type Gain struct {
	c            *Context
	in           beep.Streamer
	Gain         *Param
	disconnected bool
	vals         []float64
}

// NewGain wraps in with an initial gain of g.
func NewGain(c *Context, in beep.Streamer, g float64) *Gain {
	return &Gain{c: c, in: in, Gain: NewParam(g)}
}

// Disconnect removes the node from whatever mixes it on the next block.
func (g *Gain) Disconnect() {
	g.disconnected = true
}

func (g *Gain) Stream(samples [][2]float64) (int, bool) {
	if g.disconnected {
		return 0, false
	}
	n, ok := g.in.Stream(samples)
	if cap(g.vals) < n {
		g.vals = make([]float64, n)
	}
	vals := g.vals[:n]
	g.Gain.fill(vals, g.c.pos, g.c.sr)
	for i := 0; i < n; i++ {
		samples[i][0] *= vals[i]
		samples[i][1] *= vals[i]
	}
	return n, ok
}

func (g *Gain) Err() error { return g.in.Err() }

// Pan places a mono source hard left (-1), center (0) or hard right (1).
// effects.Pan folds one channel into the other, so the result is scaled
// back to the input's peak level.
func Pan(in beep.Streamer, pan float64) beep.Streamer {
	return &effects.Gain{
		Streamer: &effects.Pan{Streamer: in, Pan: pan},
		Gain:     1/(1+math.Abs(pan)) - 1,
	}
}
