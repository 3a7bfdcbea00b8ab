package catalog

import "sort"

// AmbientSound is a loopable background layer. An empty Source means silence.
type AmbientSound struct {
	Key    string
	Label  string
	Source string // locator, relative to the asset root or an http(s) URL
	Icon   string
}

// AmbientNone is the key of the silent ambient entry.
const AmbientNone = "none"

// Ambients maps ambient keys to their sources.
var Ambients = map[string]*AmbientSound{
	"none":   {Key: "none", Label: "None", Source: "", Icon: "volume-x"},
	"rain":   {Key: "rain", Label: "Gentle Rain", Source: "ambient/rain.wav", Icon: "cloud-rain"},
	"ocean":  {Key: "ocean", Label: "Ocean Waves", Source: "ambient/ocean.wav", Icon: "waves"},
	"forest": {Key: "forest", Label: "Forest", Source: "ambient/forest.wav", Icon: "trees"},
	"stream": {Key: "stream", Label: "Mountain Stream", Source: "ambient/stream.wav", Icon: "droplets"},
	"bowls":  {Key: "bowls", Label: "Singing Bowls", Source: "ambient/bowls.mp3", Icon: "bell"},
}

// AmbientKeys returns all ambient keys in sorted order.
func AmbientKeys() []string {
	keys := make([]string, 0, len(Ambients))
	for k := range Ambients {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LookupAmbient returns the ambient sound for key.
func LookupAmbient(key string) (*AmbientSound, bool) {
	a, ok := Ambients[key]
	return a, ok
}
