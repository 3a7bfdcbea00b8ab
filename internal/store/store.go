package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/satindergrewal/attune/internal/catalog"
)

// Record keys.
const (
	KeySettings = "attune.settings"
	KeyPresets  = "attune.presets"
	KeyHistory  = "attune.history"
)

// MaxHistory is how many session history entries are retained.
const MaxHistory = 10

var (
	ErrPresetNotFound = errors.New("preset not found")
	ErrPresetName     = errors.New("preset name required")
)

// Settings is the last-used state, rewritten in full on every change.
type Settings struct {
	TrackKey      string  `json:"track"`
	Pattern       string  `json:"pattern"`
	Effect        string  `json:"effect"`
	Binaural      bool    `json:"binaural"`
	AmbientMode   bool    `json:"ambient_mode"`
	AmbientKey    string  `json:"ambient"`
	Volume        float64 `json:"volume"`
	AmbientVolume float64 `json:"ambient_volume"`
	Speed         float64 `json:"speed"`
	Intensity     float64 `json:"intensity"`
	ColorTheme    string  `json:"color_theme"`
	MotionEffects bool    `json:"motion_effects"`
	TimerMinutes  int     `json:"timer_minutes"`
}

// DefaultSettings is what a first visit starts from.
func DefaultSettings() Settings {
	effect, _ := catalog.EffectForPattern(catalog.DefaultPattern)
	return Settings{
		TrackKey:      catalog.DefaultTrack,
		Pattern:       catalog.DefaultPattern,
		Effect:        effect,
		Binaural:      true,
		AmbientKey:    catalog.AmbientNone,
		Volume:        0.5,
		AmbientVolume: 0.3,
		Speed:         1,
		Intensity:     0.7,
		ColorTheme:    catalog.ThemePattern,
		MotionEffects: true,
		TimerMinutes:  15,
	}
}

// Snapshot is the part of the live state a preset captures.
type Snapshot struct {
	TrackKey      string  `json:"track" yaml:"track"`
	Pattern       string  `json:"pattern" yaml:"pattern"`
	Binaural      bool    `json:"binaural" yaml:"binaural"`
	AmbientKey    string  `json:"ambient,omitempty" yaml:"ambient,omitempty"`
	Volume        float64 `json:"volume" yaml:"volume"`
	AmbientVolume float64 `json:"ambient_volume" yaml:"ambient_volume"`
	Intensity     float64 `json:"intensity" yaml:"intensity"`
	ColorTheme    string  `json:"color_theme" yaml:"color_theme"`
}

// Preset is a named, immutable snapshot.
type Preset struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Snapshot  `yaml:",inline"`
}

// HistoryEntry records one finished timed session.
type HistoryEntry struct {
	Timestamp      time.Time `json:"timestamp"`
	TrackKey       string    `json:"track"`
	Pattern        string    `json:"pattern"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	Binaural       bool      `json:"binaural"`
	AmbientKey     string    `json:"ambient,omitempty"`
}

// Store reads and writes the three persisted records through a KV.
type Store struct {
	kv  KV
	now func() time.Time

	mu sync.Mutex // serialises read-modify-write of list records
}

// New creates a store over kv.
func New(kv KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

// load decodes key into v. A missing or unreadable record leaves v untouched
// and reports false.
func (s *Store) load(key string, v any) bool {
	data, err := s.kv.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		log.Printf("Store: read %s: %v", key, err)
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("Store: %s corrupted, using defaults: %v", key, err)
		return false
	}
	return true
}

func (s *Store) save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.kv.Set(key, data)
}

// LoadSettings returns the saved settings, or DefaultSettings when none are
// stored. Fields missing from an older record keep their defaults.
func (s *Store) LoadSettings() Settings {
	st := DefaultSettings()
	s.load(KeySettings, &st)
	return st
}

// SaveSettings overwrites the settings record.
func (s *Store) SaveSettings(st Settings) error {
	return s.save(KeySettings, st)
}

// Presets returns all presets in creation order.
func (s *Store) Presets() []Preset {
	var ps []Preset
	s.load(KeyPresets, &ps)
	return ps
}

// Preset looks up one preset by id.
func (s *Store) Preset(id string) (Preset, error) {
	for _, p := range s.Presets() {
		if p.ID == id {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("%w: %s", ErrPresetNotFound, id)
}

// SavePreset appends a new preset with a fresh id.
func (s *Store) SavePreset(name string, snap Snapshot) (Preset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Preset{}, ErrPresetName
	}
	p := Preset{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: s.now().UTC(),
		Snapshot:  snap,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ps := append(s.Presets(), p)
	if err := s.save(KeyPresets, ps); err != nil {
		return Preset{}, err
	}
	return p, nil
}

// DeletePreset removes the preset with id.
func (s *Store) DeletePreset(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps := s.Presets()
	for i, p := range ps {
		if p.ID == id {
			ps = append(ps[:i], ps[i+1:]...)
			return s.save(KeyPresets, ps)
		}
	}
	return fmt.Errorf("%w: %s", ErrPresetNotFound, id)
}

// History returns the retained sessions, oldest first.
func (s *Store) History() []HistoryEntry {
	var h []HistoryEntry
	s.load(KeyHistory, &h)
	return h
}

// AppendHistory records a session, evicting the oldest beyond MaxHistory.
func (s *Store) AppendHistory(e HistoryEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h := append(s.History(), e)
	if len(h) > MaxHistory {
		h = h[len(h)-MaxHistory:]
	}
	return s.save(KeyHistory, h)
}

// ExportPresets writes all presets as a YAML document.
func (s *Store) ExportPresets(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string][]Preset{"presets": s.Presets()}); err != nil {
		return fmt.Errorf("export presets: %w", err)
	}
	return enc.Close()
}

// ImportPresets appends presets from a YAML document written by
// ExportPresets. Entries whose id already exists, or that have none, get a
// new id. Returns how many were added.
func (s *Store) ImportPresets(r io.Reader) (int, error) {
	var doc struct {
		Presets []Preset `yaml:"presets"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return 0, fmt.Errorf("import presets: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ps := s.Presets()
	seen := make(map[string]bool, len(ps))
	for _, p := range ps {
		seen[p.ID] = true
	}
	added := 0
	for _, p := range doc.Presets {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			continue
		}
		if p.ID == "" || seen[p.ID] {
			p.ID = uuid.NewString()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = s.now().UTC()
		}
		seen[p.ID] = true
		ps = append(ps, p)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, s.save(KeyPresets, ps)
}
