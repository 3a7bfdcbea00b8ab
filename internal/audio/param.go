package audio

import (
	"errors"
	"math"
	"sort"

	"github.com/gopxl/beep/v2"
)

// ErrNonPositive is returned for exponential ramps to or from values <= 0.
var ErrNonPositive = errors.New("exponential ramp requires positive values")

type eventKind int

const (
	eventSet eventKind = iota
	eventLinear
	eventExp
)

type paramEvent struct {
	kind  eventKind
	time  float64 // seconds on the context clock
	value float64
}

// Param is a sample-accurate automation timeline, evaluated by the node that
// owns it once per rendered sample. Callers must hold the context lock while
// scheduling (see Context.Do).
type Param struct {
	def    float64
	events []paramEvent

	// input adds an audio-rate signal (left channel) to the automated value.
	input beep.Streamer
	buf   [][2]float64
}

// NewParam creates a Param whose value is def until something is scheduled.
func NewParam(def float64) *Param {
	return &Param{def: def}
}

// Connect routes an audio-rate source into the param, the way an LFO drives
// a gain. Pass nil to disconnect.
func (p *Param) Connect(src beep.Streamer) {
	p.input = src
}

func (p *Param) insert(e paramEvent) {
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time > e.time })
	p.events = append(p.events, paramEvent{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = e
}

// SetValueAtTime jumps to v at time t.
func (p *Param) SetValueAtTime(v, t float64) {
	p.insert(paramEvent{kind: eventSet, time: t, value: v})
}

// LinearRampToValueAtTime ramps linearly from the previous event to v, reaching it at t.
func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.insert(paramEvent{kind: eventLinear, time: t, value: v})
}

// ExponentialRampToValueAtTime ramps exponentially from the previous event to v at t.
// Both ends must be positive.
func (p *Param) ExponentialRampToValueAtTime(v, t float64) error {
	if v <= 0 {
		return ErrNonPositive
	}
	p.insert(paramEvent{kind: eventExp, time: t, value: v})
	return nil
}

// CancelScheduledValues removes every event at or after t.
func (p *Param) CancelScheduledValues(t float64) {
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time >= t })
	p.events = p.events[:i]
}

// CancelAndHoldAtTime removes events at or after t and pins the value the
// timeline had at t, so a following ramp starts where the sound actually is.
func (p *Param) CancelAndHoldAtTime(t float64) float64 {
	v := p.ValueAt(t)
	p.CancelScheduledValues(t)
	p.SetValueAtTime(v, t)
	return v
}

// ValueAt evaluates the automation timeline at t, excluding any connected input.
func (p *Param) ValueAt(t float64) float64 {
	// next is the first event strictly after t
	next := sort.Search(len(p.events), func(i int) bool { return p.events[i].time > t })

	prevTime, prevVal := 0.0, p.def
	if next > 0 {
		e := p.events[next-1]
		prevTime, prevVal = e.time, e.value
	}
	if next == len(p.events) {
		return prevVal
	}

	e := p.events[next]
	switch e.kind {
	case eventLinear:
		return lerp(prevVal, e.value, progress(prevTime, e.time, t))
	case eventExp:
		if prevVal <= 0 {
			return lerp(prevVal, e.value, progress(prevTime, e.time, t))
		}
		return prevVal * math.Pow(e.value/prevVal, progress(prevTime, e.time, t))
	default:
		return prevVal
	}
}

// Ramping reports whether an automation event is still pending after t.
func (p *Param) Ramping(t float64) bool {
	return len(p.events) > 0 && p.events[len(p.events)-1].time > t
}

// prune drops events that can no longer influence values at or after t,
// keeping the last one at or before t as the anchor.
func (p *Param) prune(t float64) {
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time > t })
	if i > 1 {
		p.events = append(p.events[:0], p.events[i-1:]...)
	}
}

// fill writes n per-sample values starting at frame start into dst.
func (p *Param) fill(dst []float64, start int64, sr beep.SampleRate) {
	if len(p.events) == 0 || !p.Ramping(float64(start)/float64(sr)) {
		v := p.ValueAt(float64(start) / float64(sr))
		for i := range dst {
			dst[i] = v
		}
	} else {
		for i := range dst {
			dst[i] = p.ValueAt(float64(start+int64(i)) / float64(sr))
		}
	}
	p.prune(float64(start) / float64(sr))
	if p.input == nil {
		return
	}
	if cap(p.buf) < len(dst) {
		p.buf = make([][2]float64, len(dst))
	}
	buf := p.buf[:len(dst)]
	n, ok := p.input.Stream(buf)
	for i := 0; i < n; i++ {
		dst[i] += buf[i][0]
	}
	if !ok {
		p.input = nil
	}
}

func progress(t0, t1, t float64) float64 {
	if t1 <= t0 {
		return 1
	}
	return math.Max(0, math.Min(1, (t-t0)/(t1-t0)))
}

func lerp(a, b, x float64) float64 {
	return a + (b-a)*x
}
