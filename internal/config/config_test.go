package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var allVars = []string{
	"ATTUNE_CONFIG", "ATTUNE_PORT", "ATTUNE_DATA_DIR", "ATTUNE_ASSET_DIR",
	"ATTUNE_CACHE_DIR", "ATTUNE_AMBIENT", "ATTUNE_MONAURAL", "ATTUNE_SPEAKER",
	"ATTUNE_NATIVE_FULLSCREEN", "ATTUNE_RESUME_INTERVAL_MS", "ATTUNE_FFMPEG",
	"ATTUNE_MP3_BITRATE", "ATTUNE_OPUS_BITRATE", "ATTUNE_STUN_URLS", "ATTUNE_FPS",
	"ATTUNE_FRAME_WIDTH", "ATTUNE_FRAME_HEIGHT", "ATTUNE_PIXEL_RATIO",
	"ATTUNE_ANALYTICS_URL", "ATTUNE_ANALYTICS_KEY", "ATTUNE_ANALYTICS_QUEUE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q, want data", cfg.DataDir)
	}
	if cfg.CacheDir != filepath.Join("data", "cache") {
		t.Errorf("CacheDir = %q, want data/cache", cfg.CacheDir)
	}
	if !cfg.Ambient || !cfg.Monaural {
		t.Errorf("Ambient, Monaural = %v, %v; want both on", cfg.Ambient, cfg.Monaural)
	}
	if cfg.Speaker {
		t.Error("Speaker on by default")
	}
	if cfg.ResumeInterval != 500*time.Millisecond {
		t.Errorf("ResumeInterval = %v, want 500ms", cfg.ResumeInterval)
	}
	if cfg.MP3Bitrate != 192 || cfg.OpusBitrate != 128 {
		t.Errorf("bitrates = %d/%d, want 192/128", cfg.MP3Bitrate, cfg.OpusBitrate)
	}
	if cfg.FPS != 30 {
		t.Errorf("FPS = %d, want 30", cfg.FPS)
	}
	if cfg.AnalyticsURL != "" {
		t.Errorf("AnalyticsURL = %q, want empty default", cfg.AnalyticsURL)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ATTUNE_PORT", "3000")
	t.Setenv("ATTUNE_DATA_DIR", "/var/lib/attune")
	t.Setenv("ATTUNE_AMBIENT", "false")
	t.Setenv("ATTUNE_SPEAKER", "1")
	t.Setenv("ATTUNE_RESUME_INTERVAL_MS", "250")
	t.Setenv("ATTUNE_STUN_URLS", "stun:a.example:3478, ,stun:b.example:3478")
	t.Setenv("ATTUNE_PIXEL_RATIO", "2")
	t.Setenv("ATTUNE_ANALYTICS_URL", "http://collector:9000/events")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.CacheDir != "/var/lib/attune/cache" {
		t.Errorf("CacheDir = %q, want derived from data dir", cfg.CacheDir)
	}
	if cfg.Ambient {
		t.Error("Ambient = true, want env override false")
	}
	if !cfg.Speaker {
		t.Error("Speaker = false, want env override true")
	}
	if cfg.ResumeInterval != 250*time.Millisecond {
		t.Errorf("ResumeInterval = %v, want 250ms", cfg.ResumeInterval)
	}
	if len(cfg.STUNURLs) != 2 || cfg.STUNURLs[1] != "stun:b.example:3478" {
		t.Errorf("STUNURLs = %q", cfg.STUNURLs)
	}
	if cfg.PixelRatio != 2 {
		t.Errorf("PixelRatio = %v, want 2", cfg.PixelRatio)
	}
	if cfg.AnalyticsURL != "http://collector:9000/events" {
		t.Errorf("AnalyticsURL = %q", cfg.AnalyticsURL)
	}
}

func TestInvalidEnvFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("ATTUNE_PORT", "not-a-number")
	t.Setenv("ATTUNE_MONAURAL", "sometimes")
	t.Setenv("ATTUNE_PIXEL_RATIO", "x")
	cfg, _ := Load()
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want fallback 8080", cfg.Port)
	}
	if !cfg.Monaural {
		t.Error("Monaural = false, want fallback true")
	}
	if cfg.PixelRatio != 1 {
		t.Errorf("PixelRatio = %v, want fallback 1", cfg.PixelRatio)
	}
}

// --- Config file ---

func TestFileOverlayThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "attune.yaml")
	os.WriteFile(path, []byte(`
port: 9090
monaural: false
fps: 60
stun_urls: [stun:file.example:3478]
resume_interval: 2s
`), 0o644)
	t.Setenv("ATTUNE_CONFIG", path)
	t.Setenv("ATTUNE_FPS", "24")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090 from file", cfg.Port)
	}
	if cfg.Monaural {
		t.Error("Monaural = true, want false from file")
	}
	if cfg.FPS != 24 {
		t.Errorf("FPS = %d, want env 24 over file", cfg.FPS)
	}
	if len(cfg.STUNURLs) != 1 {
		t.Errorf("STUNURLs = %q, want one from file", cfg.STUNURLs)
	}
	if cfg.ResumeInterval != 2*time.Second {
		t.Errorf("ResumeInterval = %v, want 2s", cfg.ResumeInterval)
	}
	if cfg.OpusBitrate != 128 {
		t.Errorf("OpusBitrate = %d, want default kept", cfg.OpusBitrate)
	}
}

func TestBadConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("ATTUNE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Error("Load with missing config file: want error")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("port: [nope"), 0o644)
	t.Setenv("ATTUNE_CONFIG", path)
	if _, err := Load(); err == nil {
		t.Error("Load with malformed config file: want error")
	}
}
