package audio

// Smoothstep returns 3t^2 - 2t^3 for t clamped to [0,1].
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// CrossfadeFrames blends two PCM frames of equal length along a smoothstep
// curve (0.0 = all from, 1.0 = all to). The context uses it to step in from
// silence after a resume.
func CrossfadeFrames(from, to []int16, progress float64) []int16 {
	gain := Smoothstep(progress)
	result := make([]int16, len(from))
	for i := range from {
		mixed := float64(from[i])*(1-gain) + float64(to[i])*gain
		result[i] = int16(max(-32768, min(32767, mixed)))
	}
	return result
}
