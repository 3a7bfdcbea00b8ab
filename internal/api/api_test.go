package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/satindergrewal/attune/internal/audio"
	"github.com/satindergrewal/attune/internal/harmonizer"
	"github.com/satindergrewal/attune/internal/store"
	"github.com/satindergrewal/attune/internal/visual"
)

func newServer(t *testing.T, canvas visual.Canvas) *httptest.Server {
	t.Helper()
	eng := audio.NewEngine(audio.Options{
		NewContext: func() (*audio.Context, error) {
			return audio.NewContext(audio.SampleRate, 2, nil), nil
		},
	})
	c := harmonizer.New(harmonizer.Options{
		Engine:   eng,
		Renderer: visual.NewRenderer(canvas),
		Store:    store.New(store.NewMemoryKV()),
	})
	srv := httptest.NewServer(New(c))
	t.Cleanup(func() {
		srv.Close()
		c.Close()
	})
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp, out
}

// --- Transport ---

func TestPlayStopRoundTrip(t *testing.T) {
	srv := newServer(t, visual.NewRecorder(100, 100))

	resp, body := do(t, srv, "POST", "/api/play", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("play status = %d", resp.StatusCode)
	}
	pb := body["playback"].(map[string]any)
	if pb["status"].(float64) != float64(audio.Playing) {
		t.Errorf("playback status = %v, want playing", pb["status"])
	}

	_, body = do(t, srv, "GET", "/api/state", "")
	if body["visual"].(map[string]any)["playing"] != true {
		t.Error("visual not playing after /api/play")
	}

	resp, _ = do(t, srv, "POST", "/api/stop", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("stop status = %d", resp.StatusCode)
	}
}

func TestCORSHeader(t *testing.T) {
	srv := newServer(t, visual.NewRecorder(100, 100))
	resp, _ := do(t, srv, "GET", "/api/state", "")
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

// --- Validation ---

func TestErrorStatusCodes(t *testing.T) {
	srv := newServer(t, visual.NewRecorder(100, 100))
	tests := []struct {
		method, path, body string
		want               int
	}{
		{"POST", "/api/track", `{"track":"omega"}`, http.StatusBadRequest},
		{"POST", "/api/track", `not json`, http.StatusBadRequest},
		{"POST", "/api/pattern", `{"pattern":"spiral"}`, http.StatusBadRequest},
		{"POST", "/api/effect", `{"effect":"euphoria"}`, http.StatusBadRequest},
		{"POST", "/api/visual", `{"theme":"neon"}`, http.StatusBadRequest},
		{"POST", "/api/mode", `{"binaural":false}`, http.StatusForbidden},
		{"POST", "/api/ambient", `{"ambient":"rain","enabled":true}`, http.StatusForbidden},
		{"POST", "/api/timer", `{"minutes":15}`, http.StatusConflict},
		{"POST", "/api/noscreen", `{"enabled":true}`, http.StatusConflict},
		{"POST", "/api/presets", `{"name":"  "}`, http.StatusBadRequest},
		{"POST", "/api/presets/nope/apply", ``, http.StatusNotFound},
		{"DELETE", "/api/presets/nope", ``, http.StatusNotFound},
		{"GET", "/api/frame.png", ``, http.StatusNotImplemented},
		{"GET", "/api/play", ``, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		resp, _ := do(t, srv, tt.method, tt.path, tt.body)
		if resp.StatusCode != tt.want {
			t.Errorf("%s %s %s: status = %d, want %d", tt.method, tt.path, tt.body, resp.StatusCode, tt.want)
		}
	}
}

// --- Settings ---

func TestEffectSelectsPattern(t *testing.T) {
	srv := newServer(t, visual.NewRecorder(100, 100))
	_, body := do(t, srv, "POST", "/api/effect", `{"effect":"energy"}`)
	if body["pattern"] != "merkaba" {
		t.Errorf("pattern = %v, want merkaba", body["pattern"])
	}
	_, body = do(t, srv, "POST", "/api/pattern", `{"pattern":"torus"}`)
	if body["effect"] != "grounding" {
		t.Errorf("effect = %v, want grounding", body["effect"])
	}
}

func TestVolumeIsClamped(t *testing.T) {
	srv := newServer(t, visual.NewRecorder(100, 100))
	_, body := do(t, srv, "POST", "/api/volume", `{"volume":1.7,"ambient_volume":-1}`)
	if body["volume"].(float64) != 1 {
		t.Errorf("volume = %v, want 1", body["volume"])
	}
	if body["ambient_volume"].(float64) != 0 {
		t.Errorf("ambient_volume = %v, want 0", body["ambient_volume"])
	}
}

func TestTimerLifecycle(t *testing.T) {
	srv := newServer(t, visual.NewRecorder(100, 100))
	do(t, srv, "POST", "/api/play", "")

	resp, body := do(t, srv, "POST", "/api/timer", `{"minutes":20}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start timer status = %d", resp.StatusCode)
	}
	timer := body["timer"].(map[string]any)
	if timer["active"] != true || timer["remaining"].(float64) != 1200 {
		t.Errorf("timer = %v", timer)
	}

	_, body = do(t, srv, "DELETE", "/api/timer", "")
	if body["timer"].(map[string]any)["active"] != false {
		t.Errorf("timer still active after DELETE")
	}
}

// --- Presets ---

func TestPresetEndpoints(t *testing.T) {
	srv := newServer(t, visual.NewRecorder(100, 100))
	do(t, srv, "POST", "/api/track", `{"track":"theta"}`)

	resp, body := do(t, srv, "POST", "/api/presets", `{"name":"Evening"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("save status = %d", resp.StatusCode)
	}
	id := body["id"].(string)

	do(t, srv, "POST", "/api/track", `{"track":"gamma"}`)
	_, body = do(t, srv, "POST", "/api/presets/"+id+"/apply", "")
	if got := body["playback"].(map[string]any)["track"]; got != "theta" {
		t.Errorf("track after apply = %v, want theta", got)
	}

	_, body = do(t, srv, "GET", "/api/presets", "")
	if n := len(body["presets"].([]any)); n != 1 {
		t.Errorf("presets = %d, want 1", n)
	}

	resp, _ = do(t, srv, "DELETE", "/api/presets/"+id, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
}

func TestPresetExportImport(t *testing.T) {
	srv := newServer(t, visual.NewRecorder(100, 100))
	do(t, srv, "POST", "/api/presets", `{"name":"One"}`)
	do(t, srv, "POST", "/api/presets", `{"name":"Two"}`)

	resp, err := http.Get(srv.URL + "/api/presets/export")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	resp.Body.Close()
	if !strings.Contains(buf.String(), "name: One") {
		t.Fatalf("export missing preset:\n%s", buf.String())
	}

	other := newServer(t, visual.NewRecorder(100, 100))
	_, body := do(t, other, "POST", "/api/presets/import", buf.String())
	if body["imported"].(float64) != 2 {
		t.Errorf("imported = %v, want 2", body["imported"])
	}
}

// --- Read-only endpoints ---

func TestCatalog(t *testing.T) {
	srv := newServer(t, visual.NewRecorder(100, 100))
	_, body := do(t, srv, "GET", "/api/catalog", "")
	if n := len(body["tracks"].([]any)); n != 5 {
		t.Errorf("tracks = %d, want 5", n)
	}
	if n := len(body["patterns"].([]any)); n != 6 {
		t.Errorf("patterns = %d, want 6", n)
	}
	if n := len(body["effects"].([]any)); n != 6 {
		t.Errorf("effects = %d, want 6", n)
	}
	if themes := body["themes"].([]any); themes[0] != "pattern" {
		t.Errorf("themes[0] = %v, want pattern", themes[0])
	}
}

func TestFramePNG(t *testing.T) {
	srv := newServer(t, visual.NewRaster(64, 64))
	resp, err := http.Get(srv.URL + "/api/frame.png")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	sig := make([]byte, 8)
	resp.Body.Read(sig)
	if !bytes.Equal(sig, []byte("\x89PNG\r\n\x1a\n")) {
		t.Errorf("body is not a PNG: % x", sig)
	}
}

func TestPointerNoContent(t *testing.T) {
	srv := newServer(t, visual.NewRecorder(100, 100))
	resp, _ := do(t, srv, "POST", "/api/pointer", `{"x":0.5,"y":-0.5}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
}
