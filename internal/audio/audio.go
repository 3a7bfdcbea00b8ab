package audio

import "time"

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// Gain envelope constants. Exponential ramps cannot reach zero, so "silent"
// means MinGain.
const (
	MinGain        = 0.0001
	AttackTime     = 300 * time.Millisecond
	ReleaseTime    = 500 * time.Millisecond
	VolumeRampTime = 100 * time.Millisecond
	SwapTime       = 50 * time.Millisecond // topology crossfade on live track/mode change
)

// Clamp01 limits v to [0,1]. NaN becomes 0.
func Clamp01(v float64) float64 {
	if !(v >= 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
