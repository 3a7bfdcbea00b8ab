package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration. Values come from defaults, then
// the optional YAML file named by ATTUNE_CONFIG, then environment variables.
type Config struct {
	// Server
	Port int `yaml:"port"`

	// Storage
	DataDir  string `yaml:"data_dir"`  // settings, presets, history
	AssetDir string `yaml:"asset_dir"` // ambient sound files
	CacheDir string `yaml:"cache_dir"` // downloaded remote assets

	// Capabilities
	Ambient          bool `yaml:"ambient"`
	Monaural         bool `yaml:"monaural"`
	Speaker          bool `yaml:"speaker"` // play on the local output device
	NativeFullscreen bool `yaml:"native_fullscreen"`

	// Audio
	ResumeInterval time.Duration `yaml:"resume_interval"`

	// Streaming
	FFmpeg      string   `yaml:"ffmpeg"`
	MP3Bitrate  int      `yaml:"mp3_bitrate"`  // kbps
	OpusBitrate int      `yaml:"opus_bitrate"` // kbps
	STUNURLs    []string `yaml:"stun_urls"`

	// Visuals
	FPS         int     `yaml:"fps"`
	FrameWidth  int     `yaml:"frame_width"` // CSS pixels
	FrameHeight int     `yaml:"frame_height"`
	PixelRatio  float64 `yaml:"pixel_ratio"`

	// Analytics (disabled when URL is empty)
	AnalyticsURL   string `yaml:"analytics_url"`
	AnalyticsKey   string `yaml:"analytics_key"`
	AnalyticsQueue int    `yaml:"analytics_queue"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:             8080,
		DataDir:          "data",
		AssetDir:         "assets",
		Ambient:          true,
		Monaural:         true,
		NativeFullscreen: true,
		ResumeInterval:   500 * time.Millisecond,
		FFmpeg:           "ffmpeg",
		MP3Bitrate:       192,
		OpusBitrate:      128,
		FPS:              30,
		FrameWidth:       800,
		FrameHeight:      600,
		PixelRatio:       1,
		AnalyticsQueue:   256,
	}
}

// Load reads configuration with sane defaults. A config file that cannot be
// read or parsed is an error; bad env values fall back silently.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("ATTUNE_CONFIG"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return cfg, err
		}
	}

	cfg.Port = envInt("ATTUNE_PORT", cfg.Port)
	cfg.DataDir = envStr("ATTUNE_DATA_DIR", cfg.DataDir)
	cfg.AssetDir = envStr("ATTUNE_ASSET_DIR", cfg.AssetDir)
	cfg.CacheDir = envStr("ATTUNE_CACHE_DIR", cfg.CacheDir)

	cfg.Ambient = envBool("ATTUNE_AMBIENT", cfg.Ambient)
	cfg.Monaural = envBool("ATTUNE_MONAURAL", cfg.Monaural)
	cfg.Speaker = envBool("ATTUNE_SPEAKER", cfg.Speaker)
	cfg.NativeFullscreen = envBool("ATTUNE_NATIVE_FULLSCREEN", cfg.NativeFullscreen)

	cfg.ResumeInterval = time.Duration(envInt("ATTUNE_RESUME_INTERVAL_MS", int(cfg.ResumeInterval/time.Millisecond))) * time.Millisecond

	cfg.FFmpeg = envStr("ATTUNE_FFMPEG", cfg.FFmpeg)
	cfg.MP3Bitrate = envInt("ATTUNE_MP3_BITRATE", cfg.MP3Bitrate)
	cfg.OpusBitrate = envInt("ATTUNE_OPUS_BITRATE", cfg.OpusBitrate)
	if v := os.Getenv("ATTUNE_STUN_URLS"); v != "" {
		cfg.STUNURLs = splitList(v)
	}

	cfg.FPS = envInt("ATTUNE_FPS", cfg.FPS)
	cfg.FrameWidth = envInt("ATTUNE_FRAME_WIDTH", cfg.FrameWidth)
	cfg.FrameHeight = envInt("ATTUNE_FRAME_HEIGHT", cfg.FrameHeight)
	cfg.PixelRatio = envFloat("ATTUNE_PIXEL_RATIO", cfg.PixelRatio)

	cfg.AnalyticsURL = envStr("ATTUNE_ANALYTICS_URL", cfg.AnalyticsURL)
	cfg.AnalyticsKey = envStr("ATTUNE_ANALYTICS_KEY", cfg.AnalyticsKey)
	cfg.AnalyticsQueue = envInt("ATTUNE_ANALYTICS_QUEUE", cfg.AnalyticsQueue)

	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(cfg.DataDir, "cache")
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
