package catalog

import "sort"

// Pattern keys.
const (
	PatternFlower  = "flower-of-life"
	PatternSoft    = "seed-of-life"
	PatternMandala = "sri-yantra"
	PatternLens    = "vesica-piscis"
	PatternTetra   = "merkaba"
	PatternTorus   = "torus"
)

// DefaultPattern is drawn before the user picks one.
const DefaultPattern = PatternFlower

// PatternInfo describes a geometric pattern for display.
type PatternInfo struct {
	Key            string
	Title          string
	Description    string
	Benefits       string
	Science        string
	RecommendedUse string
	Theme          ColorTheme
}

// Patterns maps pattern keys to their metadata.
var Patterns = map[string]*PatternInfo{
	PatternFlower: {
		Key:            PatternFlower,
		Title:          "Flower of Life",
		Description:    "Concentric rings of overlapping circles unfolding from a single center",
		Benefits:       "Calms the mind and invites a sense of wholeness",
		Science:        "Slow symmetric motion lowers visual novelty, easing the orienting response",
		RecommendedUse: "General relaxation and unwinding after work",
		Theme:          Themes["cosmic"],
	},
	PatternSoft: {
		Key:            PatternSoft,
		Title:          "Seed of Life",
		Description:    "Seven large circles drifting slowly with a soft glow",
		Benefits:       "Minimal stimulation for winding down",
		Science:        "Low contrast and slow change reduce arousal before sleep",
		RecommendedUse: "The last minutes before sleep",
		Theme:          Themes["moonlight"],
	},
	PatternMandala: {
		Key:            PatternMandala,
		Title:          "Sri Yantra",
		Description:    "Nine interlocking triangles ringed by lotus petals",
		Benefits:       "Draws attention to a single center point",
		Science:        "A strong central fixation target supports sustained attention",
		RecommendedUse: "Focused work and concentration practice",
		Theme:          Themes["sunset"],
	},
	PatternLens: {
		Key:            PatternLens,
		Title:          "Vesica Piscis",
		Description:    "Two overlapping circles turning around their shared lens",
		Benefits:       "Playful rotation for open, associative thinking",
		Science:        "Gentle rotational flow is linked to divergent thinking states",
		RecommendedUse: "Brainstorming and creative sessions",
		Theme:          Themes["ocean"],
	},
	PatternTetra: {
		Key:            PatternTetra,
		Title:          "Merkaba",
		Description:    "Two counter-rotating tetrahedra forming a star",
		Benefits:       "Energising motion on three axes",
		Science:        "Faster multi-axis motion raises visual engagement and alertness",
		RecommendedUse: "Morning activation and energy boosts",
		Theme:          Themes["cosmic"],
	},
	PatternTorus: {
		Key:            PatternTorus,
		Title:          "Torus",
		Description:    "A flowing tube of light circulating around its core",
		Benefits:       "Steady circulating flow that feels anchored",
		Science:        "Continuous looping motion without edges supports a settled, grounded feeling",
		RecommendedUse: "Grounding after stress or travel",
		Theme:          Themes["forest"],
	},
}

// PatternKeys returns all pattern keys in sorted order.
func PatternKeys() []string {
	keys := make([]string, 0, len(Patterns))
	for k := range Patterns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsValidPattern checks if a pattern key exists.
func IsValidPattern(key string) bool {
	_, ok := Patterns[key]
	return ok
}
