package catalog

import (
	"fmt"
	"image/color"
	"sort"
	"strconv"
)

// ColorTheme is the palette a pattern is drawn with.
type ColorTheme struct {
	Primary    color.NRGBA
	Secondary  color.NRGBA
	Accent     color.NRGBA
	Background color.NRGBA
}

// ThemePattern selects the active pattern's own theme.
const ThemePattern = "pattern"

// Themes maps user-selectable theme names to palettes.
var Themes = map[string]ColorTheme{
	"cosmic": {
		Primary:    MustHex("#8B5CF6"),
		Secondary:  MustHex("#EC4899"),
		Accent:     MustHex("#F0ABFC"),
		Background: MustHex("#0F0A1E"),
	},
	"ocean": {
		Primary:    MustHex("#06B6D4"),
		Secondary:  MustHex("#3B82F6"),
		Accent:     MustHex("#A5F3FC"),
		Background: MustHex("#04131F"),
	},
	"forest": {
		Primary:    MustHex("#10B981"),
		Secondary:  MustHex("#84CC16"),
		Accent:     MustHex("#D9F99D"),
		Background: MustHex("#06140D"),
	},
	"sunset": {
		Primary:    MustHex("#F97316"),
		Secondary:  MustHex("#EF4444"),
		Accent:     MustHex("#FDE68A"),
		Background: MustHex("#1C0A05"),
	},
	"moonlight": {
		Primary:    MustHex("#CBD5E1"),
		Secondary:  MustHex("#818CF8"),
		Accent:     MustHex("#F8FAFC"),
		Background: MustHex("#020617"),
	},
}

// ThemeNames returns the selectable theme names, sorted, without ThemePattern.
func ThemeNames() []string {
	names := make([]string, 0, len(Themes))
	for n := range Themes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ResolveTheme returns the palette for name. ThemePattern, an empty name or an
// unknown name fall back to the pattern's default theme.
func ResolveTheme(name, pattern string) ColorTheme {
	if t, ok := Themes[name]; ok {
		return t
	}
	if p, ok := Patterns[pattern]; ok {
		return p.Theme
	}
	return Patterns[DefaultPattern].Theme
}

// IsValidTheme reports whether name can be stored as a color preference.
func IsValidTheme(name string) bool {
	if name == ThemePattern {
		return true
	}
	_, ok := Themes[name]
	return ok
}

// ParseHex parses #RRGGBB or #RRGGBBAA.
func ParseHex(s string) (color.NRGBA, error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 && len(s) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	if len(s) == 6 {
		v = v<<8 | 0xff
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// MustHex is ParseHex for static tables.
func MustHex(s string) color.NRGBA {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}
