package catalog

import "sort"

// Mental effects a user can ask for. Each maps to exactly one pattern.
const (
	EffectRelaxation = "relaxation"
	EffectSleep      = "sleep"
	EffectFocus      = "focus"
	EffectCreativity = "creativity"
	EffectEnergy     = "energy"
	EffectGrounding  = "grounding"
)

// EffectPatterns maps an effect to the pattern that produces it.
var EffectPatterns = map[string]string{
	EffectRelaxation: PatternFlower,
	EffectSleep:      PatternSoft,
	EffectFocus:      PatternMandala,
	EffectCreativity: PatternLens,
	EffectEnergy:     PatternTetra,
	EffectGrounding:  PatternTorus,
}

// PatternForEffect returns the pattern for effect.
func PatternForEffect(effect string) (string, bool) {
	p, ok := EffectPatterns[effect]
	return p, ok
}

// EffectForPattern is the reverse lookup of EffectPatterns.
func EffectForPattern(pattern string) (string, bool) {
	for e, p := range EffectPatterns {
		if p == pattern {
			return e, true
		}
	}
	return "", false
}

// EffectNames returns all effect names in sorted order.
func EffectNames() []string {
	names := make([]string, 0, len(EffectPatterns))
	for e := range EffectPatterns {
		names = append(names, e)
	}
	sort.Strings(names)
	return names
}
