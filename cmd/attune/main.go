package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/satindergrewal/attune/internal/analytics"
	"github.com/satindergrewal/attune/internal/api"
	"github.com/satindergrewal/attune/internal/assets"
	"github.com/satindergrewal/attune/internal/audio"
	"github.com/satindergrewal/attune/internal/config"
	"github.com/satindergrewal/attune/internal/harmonizer"
	"github.com/satindergrewal/attune/internal/store"
	"github.com/satindergrewal/attune/internal/stream"
	"github.com/satindergrewal/attune/internal/visual"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("attune starting up...")

	// Broadcaster: fan-out PCM frames to every output
	broadcaster := stream.NewBroadcaster()

	// Local speaker (optional). While the device is not ready the audio
	// context stays suspended.
	var gate audio.Gate
	var speaker *stream.Speaker
	if cfg.Speaker {
		speaker, err = stream.NewSpeaker(broadcaster)
		if err != nil {
			log.Printf("Speaker unavailable, streaming only: %v", err)
		} else {
			gate = speaker
		}
	}

	actx := audio.NewContext(audio.SampleRate, audio.Channels, gate)
	go actx.Run(ctx)
	go broadcaster.Run(ctx, actx.Frames())
	if speaker != nil {
		go func() {
			if err := speaker.Start(); err != nil {
				log.Printf("Speaker: %v", err)
			}
		}()
		defer speaker.Close()
	}

	engine := audio.NewEngine(audio.Options{
		NewContext: func() (*audio.Context, error) { return actx, nil },
		Loader: audio.FileLoader{
			Resolver: assets.NewResolver(cfg.AssetDir, cfg.CacheDir),
			FFmpeg:   cfg.FFmpeg,
		},
		Features: audio.Features{
			Ambient:  cfg.Ambient,
			Monaural: cfg.Monaural,
		},
		ResumeInterval: cfg.ResumeInterval,
	})
	if err := engine.Init(); err != nil {
		log.Printf("Audio init: %v", err)
	}

	raster := visual.NewRaster(cfg.FrameWidth, cfg.FrameHeight)
	renderer := visual.NewRenderer(raster)
	renderer.Resize(float64(cfg.FrameWidth), float64(cfg.FrameHeight), cfg.PixelRatio)

	kv, err := store.NewFileKV(cfg.DataDir)
	if err != nil {
		log.Fatalf("Data dir: %v", err)
	}

	var sink analytics.Sink = analytics.NopSink{}
	var httpSink *analytics.HTTPSink
	if cfg.AnalyticsURL != "" {
		httpSink = analytics.NewHTTPSink(cfg.AnalyticsURL, cfg.AnalyticsKey, cfg.AnalyticsQueue)
		go httpSink.Run(ctx)
		sink = httpSink
		log.Printf("Analytics enabled: %s", cfg.AnalyticsURL)
	}

	ctrl := harmonizer.New(harmonizer.Options{
		Engine:           engine,
		Renderer:         renderer,
		Store:            store.New(kv),
		Sink:             sink,
		NativeFullscreen: cfg.NativeFullscreen,
	})
	defer ctrl.Close()
	go ctrl.Run(ctx, cfg.FPS)

	webrtcHandler := stream.NewWebRTCHandler(broadcaster, cfg.OpusBitrate, cfg.STUNURLs)
	defer webrtcHandler.Close()

	// HTTP routes
	mux := http.NewServeMux()
	mux.Handle("/api/", api.New(ctrl))
	mux.Handle("/stream", stream.NewHTTPHandler(broadcaster, cfg.FFmpeg, cfg.MP3Bitrate))
	mux.Handle("/offer", webrtcHandler)

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		st := map[string]any{
			"http_listeners":   broadcaster.ListenerCount(),
			"webrtc_listeners": webrtcHandler.PeerCount(),
			"frames":           broadcaster.Frames(),
			"speaker":          speaker != nil,
			"audio_state":      actx.State().String(),
			"audio_time":       actx.CurrentTime(),
		}
		if httpSink != nil {
			sent, dropped, failed := httpSink.Stats()
			st["analytics"] = map[string]int64{"sent": sent, "dropped": dropped, "failed": failed}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		json.NewEncoder(w).Encode(st)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		server.Close()
	}()

	log.Printf("attune live on %s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
}
