package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
)

// State is the lifecycle state of a Context.
type State int

const (
	Suspended State = iota
	Running
	Closed
)

func (s State) String() string {
	switch s {
	case Suspended:
		return "suspended"
	case Running:
		return "running"
	case Closed:
		return "closed"
	}
	return "unknown"
}

var (
	ErrClosed    = errors.New("audio context closed")
	ErrSuspended = errors.New("audio output not ready")
)

const (
	// declickFrames is how many frames fade in after the context resumes.
	declickFrames = 4
	renderChunk   = 256
)

// Gate reports whether the output device currently allows playback.
// A platform that blocks audio until a user gesture or device switch
// returns an error until it unblocks.
type Gate interface {
	Ready() error
}

// GateFunc adapts a function to Gate.
type GateFunc func() error

func (f GateFunc) Ready() error { return f() }

// Context owns the sample clock and the destination of the node graph.
// Every graph mutation and every Param schedule must happen inside Do,
// because rendering reads the graph under the same lock.
type Context struct {
	mu       sync.Mutex
	sr       beep.SampleRate
	channels int
	gate     Gate
	state    State
	pos      int64 // frames rendered while running
	dest     *beep.Mixer
	out      beep.Streamer
	frameCh  chan []int16
	declick  int
}

// NewContext creates a suspended context. channels is what the output device
// offers (1 or 2); frames on Frames() are always interleaved stereo.
// A nil gate means the output is always ready.
func NewContext(sampleRate, channels int, gate Gate) *Context {
	if channels < 1 {
		channels = 1
	}
	if channels > 2 {
		channels = 2
	}
	c := &Context{
		sr:       beep.SampleRate(sampleRate),
		channels: channels,
		gate:     gate,
		dest:     &beep.Mixer{},
		frameCh:  make(chan []int16, 100),
	}
	c.out = c.dest
	if channels == 1 {
		c.out = effects.Mono(c.dest)
	}
	return c
}

// SampleRate returns the context sample rate.
func (c *Context) SampleRate() beep.SampleRate { return c.sr }

// Channels returns the number of output channels (1 = no stereo panning).
func (c *Context) Channels() int { return c.channels }

// CurrentTime returns the context clock in seconds. It only advances while running.
func (c *Context) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now()
}

func (c *Context) now() float64 {
	return float64(c.pos) / float64(c.sr)
}

// timeAt is the clock time of sample i of the block being rendered.
func (c *Context) timeAt(i int) float64 {
	return float64(c.pos+int64(i)) / float64(c.sr)
}

// State returns the current lifecycle state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Resume starts the clock if the output gate allows it.
func (c *Context) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Closed:
		return ErrClosed
	case Running:
		return nil
	}
	if c.gate != nil {
		if err := c.gate.Ready(); err != nil {
			return errors.Join(ErrSuspended, err)
		}
	}
	c.state = Running
	c.declick = declickFrames
	return nil
}

// Suspend stops the clock without discarding the graph.
func (c *Context) Suspend() {
	c.mu.Lock()
	if c.state == Running {
		c.state = Suspended
	}
	c.mu.Unlock()
}

// Close stops rendering permanently and drops the graph.
func (c *Context) Close() {
	c.mu.Lock()
	c.state = Closed
	c.dest.Clear()
	c.mu.Unlock()
}

// Do runs fn with the graph locked. Schedules made inside fn are relative to
// the clock value passed in.
func (c *Context) Do(fn func(now float64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.now())
}

// Connect routes s into the destination. Call inside Do.
func (c *Context) Connect(s beep.Streamer) {
	c.dest.Add(s)
}

// Sources returns how many streamers feed the destination. Call inside Do.
func (c *Context) Sources() int {
	return c.dest.Len()
}

// Render pulls len(buf) frames from the graph. A suspended context renders
// silence without advancing the clock; a closed one renders nothing.
func (c *Context) Render(buf [][2]float64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.render(buf)
}

func (c *Context) render(buf [][2]float64) int {
	switch c.state {
	case Closed:
		return 0
	case Suspended:
		for i := range buf {
			buf[i] = [2]float64{}
		}
		return len(buf)
	}
	// Nodes derive sample times from pos, so every pull must be at most one
	// chunk: beep's mixers split larger requests internally.
	for off := 0; off < len(buf); off += renderChunk {
		chunk := buf[off:min(off+renderChunk, len(buf))]
		n, _ := c.out.Stream(chunk)
		for i := n; i < len(chunk); i++ {
			chunk[i] = [2]float64{}
		}
		c.pos += int64(len(chunk))
	}
	return len(buf)
}

// Frames returns the channel of rendered 20ms stereo PCM frames.
func (c *Context) Frames() <-chan []int16 {
	return c.frameCh
}

// Run renders the graph at real-time rate. Blocks until ctx is cancelled or
// the context is closed.
func (c *Context) Run(ctx context.Context) {
	defer close(c.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	block := make([][2]float64, FrameSize)
	silence := make([]int16, FrameSamples)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if c.render(block) == 0 {
			c.mu.Unlock()
			return
		}
		frame := toPCM(block)
		if c.declick > 0 && c.state == Running {
			// step in from silence over the first frames after a resume
			frame = CrossfadeFrames(silence, frame, float64(declickFrames-c.declick+1)/float64(declickFrames+1))
			c.declick--
		}
		c.mu.Unlock()

		select {
		case c.frameCh <- frame:
		case <-ctx.Done():
			return
		}
	}
}

// toPCM converts float frames to interleaved int16 with clipping.
func toPCM(block [][2]float64) []int16 {
	out := make([]int16, len(block)*Channels)
	for i, s := range block {
		out[i*2] = floatToInt16(s[0])
		out[i*2+1] = floatToInt16(s[1])
	}
	return out
}

func floatToInt16(v float64) int16 {
	v *= 32767
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
