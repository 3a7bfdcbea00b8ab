package catalog

import "sort"

// Band classifies a track by the brainwave range its beat targets.
type Band string

const (
	BandDelta Band = "delta"
	BandTheta Band = "theta"
	BandAlpha Band = "alpha"
	BandBeta  Band = "beta"
	BandGamma Band = "gamma"
)

// Track is an entrainment profile. Freqs[0] feeds the left ear, Freqs[1] the right;
// in monaural mode BaseFreq is the carrier and BeatFreq the modulation rate.
type Track struct {
	Key         string
	Label       string
	Freqs       [2]float64 // Hz, left/right
	BaseFreq    float64    // Hz, monaural carrier
	BeatFreq    float64    // Hz
	Description string
	Band        Band
	Color       string   // display color, #RRGGBB
	Ambients    []string // recommended AmbientSound keys
}

// DefaultTrack is used when no track has been chosen yet.
const DefaultTrack = "alpha"

// Tracks maps track keys to entrainment profiles.
var Tracks = map[string]*Track{
	"delta": {
		Key:         "delta",
		Label:       "Deep Sleep",
		Freqs:       [2]float64{100, 102},
		BaseFreq:    100,
		BeatFreq:    2,
		Description: "Slow 2 Hz delta pulse for deep rest and sleep onset",
		Band:        BandDelta,
		Color:       "#6366F1",
		Ambients:    []string{"ocean", "rain"},
	},
	"theta": {
		Key:         "theta",
		Label:       "Meditation",
		Freqs:       [2]float64{150, 156},
		BaseFreq:    150,
		BeatFreq:    6,
		Description: "6 Hz theta rhythm associated with meditation and daydreaming",
		Band:        BandTheta,
		Color:       "#8B5CF6",
		Ambients:    []string{"forest", "bowls"},
	},
	"alpha": {
		Key:         "alpha",
		Label:       "Relaxation",
		Freqs:       [2]float64{200, 210},
		BaseFreq:    200,
		BeatFreq:    10,
		Description: "10 Hz alpha wave for calm, relaxed alertness",
		Band:        BandAlpha,
		Color:       "#06B6D4",
		Ambients:    []string{"rain", "stream"},
	},
	"beta": {
		Key:         "beta",
		Label:       "Focus",
		Freqs:       [2]float64{250, 265},
		BaseFreq:    250,
		BeatFreq:    15,
		Description: "15 Hz low beta for sustained concentration",
		Band:        BandBeta,
		Color:       "#F59E0B",
		Ambients:    []string{"stream"},
	},
	"gamma": {
		Key:         "gamma",
		Label:       "Peak Awareness",
		Freqs:       [2]float64{300, 340},
		BaseFreq:    300,
		BeatFreq:    40,
		Description: "40 Hz gamma for heightened perception and memory work",
		Band:        BandGamma,
		Color:       "#EF4444",
		Ambients:    []string{"none"},
	},
}

// TrackKeys returns all track keys in sorted order.
func TrackKeys() []string {
	keys := make([]string, 0, len(Tracks))
	for k := range Tracks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LookupTrack returns the track for key.
func LookupTrack(key string) (*Track, bool) {
	t, ok := Tracks[key]
	return t, ok
}
