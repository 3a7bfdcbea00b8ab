package audio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
)

func constant(v float64) beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			samples[i] = [2]float64{v, v}
		}
		return len(samples), true
	})
}

// --- Lifecycle ---

func TestContextStartsSuspended(t *testing.T) {
	c := NewContext(SampleRate, 2, nil)
	c.Do(func(float64) { c.Connect(constant(0.5)) })

	buf := make([][2]float64, 480)
	if n := c.Render(buf); n != len(buf) {
		t.Fatalf("Render = %d, want %d", n, len(buf))
	}
	if buf[0][0] != 0 {
		t.Errorf("suspended sample = %v, want silence", buf[0])
	}
	if got := c.CurrentTime(); got != 0 {
		t.Errorf("CurrentTime() = %v, want clock frozen at 0", got)
	}
}

func TestContextClockAdvancesWhileRunning(t *testing.T) {
	c := NewContext(SampleRate, 2, nil)
	c.Do(func(float64) { c.Connect(constant(0.5)) })
	if err := c.Resume(); err != nil {
		t.Fatal(err)
	}

	buf := make([][2]float64, 480)
	c.Render(buf)
	if got := c.CurrentTime(); got != 0.01 {
		t.Errorf("CurrentTime() = %v, want 0.01", got)
	}
	if buf[479][1] != 0.5 {
		t.Errorf("last sample = %v, want 0.5", buf[479])
	}

	c.Suspend()
	c.Render(buf)
	if got := c.CurrentTime(); got != 0.01 {
		t.Errorf("CurrentTime() after suspend = %v, want 0.01", got)
	}
}

func TestContextGateBlocksResume(t *testing.T) {
	blocked := errors.New("no user gesture")
	c := NewContext(SampleRate, 2, GateFunc(func() error { return blocked }))

	err := c.Resume()
	if !errors.Is(err, ErrSuspended) || !errors.Is(err, blocked) {
		t.Errorf("Resume err = %v, want ErrSuspended wrapping the gate error", err)
	}
	if c.State() != Suspended {
		t.Errorf("State() = %v, want suspended", c.State())
	}
}

func TestContextClose(t *testing.T) {
	c := NewContext(SampleRate, 2, nil)
	c.Resume()
	c.Close()
	if n := c.Render(make([][2]float64, 16)); n != 0 {
		t.Errorf("Render after Close = %d, want 0", n)
	}
	if err := c.Resume(); !errors.Is(err, ErrClosed) {
		t.Errorf("Resume after Close err = %v, want ErrClosed", err)
	}
}

func TestContextMonoDownmix(t *testing.T) {
	c := NewContext(SampleRate, 1, nil)
	c.Do(func(float64) { c.Connect(Pan(constant(0.4), -1)) })
	c.Resume()

	buf := make([][2]float64, 8)
	c.Render(buf)
	if buf[0][0] != buf[0][1] {
		t.Errorf("mono sample = %v, want equal channels", buf[0])
	}
}

// --- Run ---

func TestContextRunEmitsFrames(t *testing.T) {
	c := NewContext(SampleRate, 2, nil)
	c.Do(func(float64) { c.Connect(constant(0.5)) })
	c.Resume()

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)

	var frames [][]int16
	timeout := time.After(2 * time.Second)
	for len(frames) < declickFrames+2 {
		select {
		case f := <-c.Frames():
			frames = append(frames, f)
		case <-timeout:
			t.Fatalf("got %d frames before timeout", len(frames))
		}
	}
	cancel()

	for i, f := range frames {
		if len(f) != FrameSamples {
			t.Fatalf("frame %d has %d samples, want %d", i, len(f), FrameSamples)
		}
	}
	if frames[0][0] >= frames[declickFrames][0] {
		t.Errorf("first frame %d not quieter than frame %d (%d)", frames[0][0], declickFrames, frames[declickFrames][0])
	}
	if got := frames[declickFrames+1][0]; got != 16383 {
		t.Errorf("steady sample = %d, want 16383", got)
	}

	// Run closes the channel on exit
	for range c.Frames() {
	}
}
