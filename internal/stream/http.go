package stream

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/exec"

	"github.com/satindergrewal/attune/internal/audio"
)

// HTTPHandler serves the live output as a chunked HTTP stream: MP3 through an
// ffmpeg process per connection, or raw WAV with ?format=wav where no
// encoder is installed.
type HTTPHandler struct {
	broadcaster *Broadcaster
	ffmpeg      string
	bitrate     int // kbps
}

// NewHTTPHandler creates an HTTP stream handler. ffmpeg is the encoder
// binary; bitrate is the MP3 bitrate in kbps.
func NewHTTPHandler(b *Broadcaster, ffmpeg string, bitrate int) *HTTPHandler {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if bitrate <= 0 {
		bitrate = 192
	}
	return &HTTPHandler{broadcaster: b, ffmpeg: ffmpeg, bitrate: bitrate}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", "attune")

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)
	log.Printf("HTTP listener connected (total: %d)", h.broadcaster.ListenerCount())
	defer log.Printf("HTTP listener disconnected")

	if r.URL.Query().Get("format") == "wav" {
		w.Header().Set("Content-Type", "audio/wav")
		h.serveWAV(r.Context(), w, flusher, listener)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	h.serveMP3(r.Context(), w, flusher, listener)
}

// pump writes every frame the listener receives to dst until ctx ends, the
// listener is dropped or a write fails.
func pump(ctx context.Context, dst io.Writer, l *Listener, flush func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case frame, ok := <-l.C:
			if !ok {
				return
			}
			if _, err := dst.Write(audio.SamplesToBytes(frame)); err != nil {
				return
			}
			if flush != nil {
				flush()
			}
		}
	}
}

func (h *HTTPHandler) serveWAV(ctx context.Context, w io.Writer, flusher http.Flusher, l *Listener) {
	if _, err := w.Write(streamingWAVHeader()); err != nil {
		return
	}
	flusher.Flush()
	pump(ctx, w, l, flusher.Flush)
}

func (h *HTTPHandler) serveMP3(ctx context.Context, w io.Writer, flusher http.Flusher, l *Listener) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// PCM stdin -> MP3 stdout
	cmd := exec.CommandContext(ctx, h.ffmpeg,
		"-f", "s16le",
		"-ar", fmt.Sprint(audio.SampleRate),
		"-ac", fmt.Sprint(audio.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", fmt.Sprintf("%dk", h.bitrate),
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"-loglevel", "error",
		"pipe:1",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		log.Printf("HTTP stream: stdin pipe error: %v", err)
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.Printf("HTTP stream: stdout pipe error: %v", err)
		return
	}
	if err := cmd.Start(); err != nil {
		log.Printf("HTTP stream: ffmpeg start error: %v", err)
		return
	}

	go func() {
		defer stdin.Close()
		pump(ctx, stdin, l, nil)
	}()

	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				break
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("HTTP stream: ffmpeg read error: %v", err)
			}
			break
		}
	}
	cancel()
	cmd.Wait()
}

// streamingWAVHeader is a 16-bit PCM RIFF header whose sizes are set to the
// maximum, which players treat as an unbounded stream.
func streamingWAVHeader() []byte {
	const unbounded = 0xFFFFFFFF
	h := make([]byte, 44)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], unbounded)
	copy(h[8:], "WAVEfmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:], audio.Channels)
	binary.LittleEndian.PutUint32(h[24:], audio.SampleRate)
	binary.LittleEndian.PutUint32(h[28:], audio.SampleRate*audio.Channels*audio.BitDepth/8)
	binary.LittleEndian.PutUint16(h[32:], audio.Channels*audio.BitDepth/8)
	binary.LittleEndian.PutUint16(h[34:], audio.BitDepth)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], unbounded)
	return h
}
