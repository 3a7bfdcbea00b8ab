package audio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// Loader turns an ambient locator into a seekable, fully buffered source.
type Loader interface {
	Load(locator string) (beep.StreamSeeker, beep.Format, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(locator string) (beep.StreamSeeker, beep.Format, error)

func (f LoaderFunc) Load(locator string) (beep.StreamSeeker, beep.Format, error) { return f(locator) }

// Resolver maps a locator to a readable local file, fetching it if needed.
type Resolver interface {
	Resolve(locator string) (string, error)
}

// FileLoader decodes WAV natively and every other format through FFmpeg.
type FileLoader struct {
	Resolver Resolver
	FFmpeg   string // decoder binary, "ffmpeg" when empty
}

func (l FileLoader) Load(locator string) (beep.StreamSeeker, beep.Format, error) {
	path := locator
	if l.Resolver != nil {
		p, err := l.Resolver.Resolve(locator)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("resolve %s: %w", locator, err)
		}
		path = p
	}

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return decodeWAV(path)
	}

	samples, err := DecodeFile(l.FFmpeg, path)
	if err != nil {
		return nil, beep.Format{}, err
	}
	format := beep.Format{SampleRate: SampleRate, NumChannels: Channels, Precision: BitDepth / 8}
	return NewPCMStreamer(samples), format, nil
}

func decodeWAV(path string) (beep.StreamSeeker, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("open %s: %w", path, err)
	}
	s, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("wav decode %s: %w", path, err)
	}
	defer s.Close()

	buf := beep.NewBuffer(format)
	buf.Append(s)
	if buf.Len() == 0 {
		return nil, beep.Format{}, fmt.Errorf("wav decode %s: no samples", path)
	}
	return buf.Streamer(0, buf.Len()), format, nil
}

// PCMStreamer plays interleaved stereo int16 samples.
type PCMStreamer struct {
	samples []int16
	pos     int // frame index
}

// NewPCMStreamer wraps interleaved stereo samples.
func NewPCMStreamer(samples []int16) *PCMStreamer {
	return &PCMStreamer{samples: samples}
}

func (p *PCMStreamer) Stream(out [][2]float64) (int, bool) {
	n := 0
	for n < len(out) && p.pos < p.Len() {
		out[n][0] = float64(p.samples[p.pos*2]) / 32768
		out[n][1] = float64(p.samples[p.pos*2+1]) / 32768
		n++
		p.pos++
	}
	return n, n > 0
}

func (p *PCMStreamer) Err() error    { return nil }
func (p *PCMStreamer) Len() int      { return len(p.samples) / 2 }
func (p *PCMStreamer) Position() int { return p.pos }

func (p *PCMStreamer) Seek(pos int) error {
	if pos < 0 || pos > p.Len() {
		return fmt.Errorf("seek %d out of range [0, %d]", pos, p.Len())
	}
	p.pos = pos
	return nil
}

// ambientLayer is a looping sample with its own gain, independent of the tone.
type ambientLayer struct {
	c    *Context
	key  string
	ctrl *beep.Ctrl
	gain *Gain

	pauseAt float64 // context time the loop pauses at, +Inf when not scheduled
}

// newAmbientLayer builds the layer paused at MinGain. Call inside Context.Do.
func newAmbientLayer(c *Context, key string, src beep.StreamSeeker, format beep.Format) *ambientLayer {
	var s beep.Streamer = beep.Loop(-1, src)
	if format.SampleRate != 0 && format.SampleRate != c.sr {
		s = beep.Resample(4, format.SampleRate, c.sr, s)
	}
	l := &ambientLayer{
		c:       c,
		key:     key,
		ctrl:    &beep.Ctrl{Streamer: s, Paused: true},
		pauseAt: math.Inf(1),
	}
	l.gain = NewGain(c, l, MinGain)
	c.Connect(l.gain)
	return l
}

func (l *ambientLayer) Stream(samples [][2]float64) (int, bool) {
	if l.c.now() >= l.pauseAt {
		l.ctrl.Paused = true
		l.pauseAt = math.Inf(1)
	}
	return l.ctrl.Stream(samples)
}

func (l *ambientLayer) Err() error { return l.ctrl.Err() }

// play resumes the loop and glides up to volume from wherever the gain is.
func (l *ambientLayer) play(now, volume float64) {
	l.pauseAt = math.Inf(1)
	l.ctrl.Paused = false
	glideTo(l.gain.Gain, now, volume, AttackTime.Seconds())
}

// pauseAfter fades the layer out over d seconds and pauses the loop at the end.
func (l *ambientLayer) pauseAfter(now, d float64) {
	glideTo(l.gain.Gain, now, MinGain, d)
	l.pauseAt = now + d
}

// paused reports whether the loop is paused or on its way there.
func (l *ambientLayer) paused() bool {
	return l.ctrl.Paused || !math.IsInf(l.pauseAt, 1)
}

func (l *ambientLayer) release() {
	l.ctrl.Paused = true
	l.gain.Disconnect()
}
