// Package api exposes the harmonizer controller as JSON over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/satindergrewal/attune/internal/audio"
	"github.com/satindergrewal/attune/internal/catalog"
	"github.com/satindergrewal/attune/internal/harmonizer"
	"github.com/satindergrewal/attune/internal/session"
	"github.com/satindergrewal/attune/internal/store"
	"github.com/satindergrewal/attune/internal/visual"
)

// Handler serves /api/*.
type Handler struct {
	c   *harmonizer.Controller
	mux *http.ServeMux
}

// New builds the route table over c.
func New(c *harmonizer.Controller) *Handler {
	h := &Handler{c: c, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /api/state", h.state)
	h.mux.HandleFunc("GET /api/catalog", h.catalog)
	h.mux.HandleFunc("GET /api/history", h.history)
	h.mux.HandleFunc("GET /api/errors", h.renderErrors)
	h.mux.HandleFunc("GET /api/frame.png", h.frame)

	h.mux.HandleFunc("POST /api/play", h.transport(c.Play))
	h.mux.HandleFunc("POST /api/stop", h.transport(c.Stop))
	h.mux.HandleFunc("POST /api/toggle", h.transport(c.Toggle))

	h.mux.HandleFunc("POST /api/track", h.track)
	h.mux.HandleFunc("POST /api/mode", h.mode)
	h.mux.HandleFunc("POST /api/ambient", h.ambient)
	h.mux.HandleFunc("POST /api/volume", h.volume)

	h.mux.HandleFunc("POST /api/pattern", h.pattern)
	h.mux.HandleFunc("POST /api/effect", h.effect)
	h.mux.HandleFunc("POST /api/visual", h.visual)
	h.mux.HandleFunc("POST /api/fullscreen", h.fullscreen)
	h.mux.HandleFunc("POST /api/noscreen", h.noScreen)
	h.mux.HandleFunc("POST /api/pointer", h.pointer)
	h.mux.HandleFunc("POST /api/device", h.device)

	h.mux.HandleFunc("POST /api/timer", h.startTimer)
	h.mux.HandleFunc("DELETE /api/timer", h.cancelTimer)

	h.mux.HandleFunc("GET /api/presets", h.presets)
	h.mux.HandleFunc("POST /api/presets", h.savePreset)
	h.mux.HandleFunc("GET /api/presets/export", h.exportPresets)
	h.mux.HandleFunc("POST /api/presets/import", h.importPresets)
	h.mux.HandleFunc("DELETE /api/presets/{id}", h.deletePreset)
	h.mux.HandleFunc("POST /api/presets/{id}/apply", h.applyPreset)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	h.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("API: encode response: %v", err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return false
	}
	return true
}

// fail maps controller errors onto status codes.
func fail(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, audio.ErrUnknownTrack),
		errors.Is(err, audio.ErrUnknownAmbient),
		errors.Is(err, visual.ErrUnknownPattern),
		errors.Is(err, visual.ErrUnknownTheme),
		errors.Is(err, harmonizer.ErrUnknownEffect),
		errors.Is(err, session.ErrInvalidDuration),
		errors.Is(err, store.ErrPresetName):
		code = http.StatusBadRequest
	case errors.Is(err, audio.ErrFeatureDisabled):
		code = http.StatusForbidden
	case errors.Is(err, store.ErrPresetNotFound):
		code = http.StatusNotFound
	case errors.Is(err, audio.ErrNotPlaying), errors.Is(err, session.ErrNotPlaying):
		code = http.StatusConflict
	case errors.Is(err, audio.ErrUnavailable):
		code = http.StatusServiceUnavailable
	case errors.Is(err, visual.ErrNoRaster):
		code = http.StatusNotImplemented
	}
	if code == http.StatusInternalServerError {
		log.Printf("API error: %v", err)
	}
	http.Error(w, err.Error(), code)
}

func (h *Handler) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.c.State())
}

func (h *Handler) catalog(w http.ResponseWriter, r *http.Request) {
	var tracks []map[string]any
	for _, k := range catalog.TrackKeys() {
		t := catalog.Tracks[k]
		tracks = append(tracks, map[string]any{
			"key":         t.Key,
			"label":       t.Label,
			"left":        t.Freqs[0],
			"right":       t.Freqs[1],
			"beat":        t.BeatFreq,
			"band":        t.Band,
			"description": t.Description,
			"color":       t.Color,
			"ambients":    t.Ambients,
		})
	}
	var ambients []map[string]any
	for _, k := range catalog.AmbientKeys() {
		a := catalog.Ambients[k]
		ambients = append(ambients, map[string]any{"key": a.Key, "label": a.Label, "icon": a.Icon})
	}
	var patterns []map[string]any
	for _, k := range catalog.PatternKeys() {
		p := catalog.Patterns[k]
		effect, _ := catalog.EffectForPattern(k)
		patterns = append(patterns, map[string]any{
			"key":             p.Key,
			"title":           p.Title,
			"description":     p.Description,
			"benefits":        p.Benefits,
			"science":         p.Science,
			"recommended_use": p.RecommendedUse,
			"effect":          effect,
		})
	}
	writeJSON(w, map[string]any{
		"tracks":   tracks,
		"ambients": ambients,
		"patterns": patterns,
		"effects":  catalog.EffectNames(),
		"themes":   append([]string{catalog.ThemePattern}, catalog.ThemeNames()...),
	})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"history": h.c.History()})
}

func (h *Handler) renderErrors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"errors": h.c.RenderErrors()})
}

func (h *Handler) frame(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	if err := h.c.Snapshot(w); err != nil {
		fail(w, err)
	}
}

func (h *Handler) transport(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(); err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "playback": h.c.State().Playback})
	}
}

func (h *Handler) track(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Track string `json:"track"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.c.SelectTrack(req.Track); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "track": req.Track})
}

func (h *Handler) mode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Binaural bool `json:"binaural"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.c.SetBinaural(req.Binaural); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "binaural": req.Binaural})
}

func (h *Handler) ambient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ambient string `json:"ambient"`
		Enabled bool   `json:"enabled"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.c.SetAmbient(req.Ambient, req.Enabled); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "ambient": req.Ambient, "enabled": req.Enabled})
}

func (h *Handler) volume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Volume        *float64 `json:"volume"`
		AmbientVolume *float64 `json:"ambient_volume"`
	}
	if !decode(w, r, &req) {
		return
	}
	resp := map[string]any{"ok": true}
	if req.Volume != nil {
		resp["volume"] = h.c.SetVolume(*req.Volume)
	}
	if req.AmbientVolume != nil {
		resp["ambient_volume"] = h.c.SetAmbientVolume(*req.AmbientVolume)
	}
	writeJSON(w, resp)
}

func (h *Handler) pattern(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pattern string `json:"pattern"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.c.SelectPattern(req.Pattern); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "pattern": req.Pattern, "effect": h.c.State().Effect})
}

func (h *Handler) effect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Effect string `json:"effect"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.c.SelectEffect(req.Effect); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "effect": req.Effect, "pattern": h.c.State().Visual.Pattern})
}

func (h *Handler) visual(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed         *float64 `json:"speed"`
		Intensity     *float64 `json:"intensity"`
		Theme         *string  `json:"theme"`
		MotionEffects *bool    `json:"motion_effects"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Theme != nil {
		if err := h.c.SetColorTheme(*req.Theme); err != nil {
			fail(w, err)
			return
		}
	}
	if req.Speed != nil {
		h.c.SetSpeed(*req.Speed)
	}
	if req.Intensity != nil {
		h.c.SetIntensity(*req.Intensity)
	}
	if req.MotionEffects != nil {
		h.c.SetMotionEffects(*req.MotionEffects)
	}
	writeJSON(w, map[string]any{"ok": true, "visual": h.c.State().Visual})
}

func (h *Handler) fullscreen(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"ok": true, "display": h.c.ToggleFullscreen()})
}

func (h *Handler) noScreen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.c.SetNoScreen(req.Enabled); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "no_screen": req.Enabled})
}

func (h *Handler) pointer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.c.Pointer(req.X, req.Y)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) device(w http.ResponseWriter, r *http.Request) {
	h.c.DeviceChanged()
	writeJSON(w, map[string]any{"ok": true})
}

func (h *Handler) startTimer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Minutes int `json:"minutes"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.c.StartTimer(req.Minutes); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "timer": h.c.State().Timer})
}

func (h *Handler) cancelTimer(w http.ResponseWriter, r *http.Request) {
	h.c.CancelTimer()
	writeJSON(w, map[string]any{"ok": true, "timer": h.c.State().Timer})
}

func (h *Handler) presets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"presets": h.c.Presets()})
}

func (h *Handler) savePreset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	p, err := h.c.SavePreset(req.Name)
	if err != nil {
		fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(p)
}

func (h *Handler) deletePreset(w http.ResponseWriter, r *http.Request) {
	if err := h.c.DeletePreset(r.PathValue("id")); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (h *Handler) applyPreset(w http.ResponseWriter, r *http.Request) {
	if err := h.c.ApplyPreset(r.PathValue("id")); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, h.c.State())
}

func (h *Handler) exportPresets(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="attune-presets.yaml"`)
	if err := h.c.ExportPresets(w); err != nil {
		log.Printf("API: export presets: %v", err)
	}
}

func (h *Handler) importPresets(w http.ResponseWriter, r *http.Request) {
	n, err := h.c.ImportPresets(r.Body)
	if err != nil {
		http.Error(w, "invalid preset file", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "imported": n})
}
