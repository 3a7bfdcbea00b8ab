package audio

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/gopxl/beep/v2"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Analyser defaults, matching what browsers ship for their analyser node.
const (
	FFTSize         = 256
	MinDecibels     = -100.0
	MaxDecibels     = -30.0
	SmoothingFactor = 0.8
)

// Analyser is a pass-through tap that keeps the most recent FFTSize mono
// samples for frequency-domain reads. Stream runs on the render goroutine;
// the read methods are safe from any goroutine.
type Analyser struct {
	in beep.Streamer

	mu     sync.Mutex
	ring   []float64
	pos    int
	fft    *fourier.FFT
	frame  []float64
	coeffs []complex128
	smooth []float64
}

// NewAnalyser wraps in with a tap.
func NewAnalyser(in beep.Streamer) *Analyser {
	return &Analyser{
		in:     in,
		ring:   make([]float64, FFTSize),
		fft:    fourier.NewFFT(FFTSize),
		frame:  make([]float64, FFTSize),
		smooth: make([]float64, FFTSize/2),
	}
}

// BinCount is the number of frequency bins.
func (a *Analyser) BinCount() int { return FFTSize / 2 }

func (a *Analyser) Stream(samples [][2]float64) (int, bool) {
	n, ok := a.in.Stream(samples)
	a.mu.Lock()
	for i := 0; i < n; i++ {
		a.ring[a.pos] = (samples[i][0] + samples[i][1]) / 2
		a.pos = (a.pos + 1) % FFTSize
	}
	a.mu.Unlock()
	return n, ok
}

func (a *Analyser) Err() error { return a.in.Err() }

// ByteFrequencyData fills dst (up to BinCount entries) with smoothed
// magnitudes scaled from [MinDecibels, MaxDecibels] to [0, 255].
func (a *Analyser) ByteFrequencyData(dst []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.frame {
		a.frame[i] = a.ring[(a.pos+i)%FFTSize]
	}
	window.Hann(a.frame)
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

	n := min(len(dst), len(a.smooth))
	for i := 0; i < len(a.smooth); i++ {
		mag := cmplx.Abs(a.coeffs[i]) / FFTSize
		a.smooth[i] = SmoothingFactor*a.smooth[i] + (1-SmoothingFactor)*mag
		if i >= n {
			continue
		}
		db := MinDecibels
		if a.smooth[i] > 0 {
			db = 20 * math.Log10(a.smooth[i])
		}
		scaled := 255 * (db - MinDecibels) / (MaxDecibels - MinDecibels)
		dst[i] = byte(math.Max(0, math.Min(255, scaled)))
	}
	return n
}

// Energy returns the mean of the byte spectrum normalised to [0,1].
func (a *Analyser) Energy() float64 {
	var bins [FFTSize / 2]byte
	n := a.ByteFrequencyData(bins[:])
	if n == 0 {
		return 0
	}
	sum := 0
	for _, b := range bins[:n] {
		sum += int(b)
	}
	return float64(sum) / float64(n) / 255
}
