package stream

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/hajimehoshi/oto/v2"
	"github.com/satindergrewal/attune/internal/audio"
)

// speakerBuffer keeps local output about 200ms behind the engine.
const speakerBuffer = 10

// Speaker plays the broadcast on the local output device. It doubles as the
// audio context's gate: playback is blocked until the device is ready.
type Speaker struct {
	ctx   *oto.Context
	ready chan struct{}
	b     *Broadcaster

	mu     sync.Mutex
	l      *Listener
	player oto.Player
	closed bool
}

// NewSpeaker opens the default output device for 48kHz stereo int16.
func NewSpeaker(b *Broadcaster) (*Speaker, error) {
	ctx, ready, err := oto.NewContext(audio.SampleRate, audio.Channels, oto.FormatSignedInt16LE)
	if err != nil {
		return nil, fmt.Errorf("open output device: %w", err)
	}
	return &Speaker{ctx: ctx, ready: ready, b: b}, nil
}

// Ready implements audio.Gate.
func (s *Speaker) Ready() error {
	select {
	case <-s.ready:
	default:
		return audio.ErrSuspended
	}
	if err := s.ctx.Err(); err != nil {
		return err
	}
	return nil
}

// Start subscribes to the broadcast and starts the device player.
func (s *Speaker) Start() error {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSpeakerClosed
	}
	if s.player != nil {
		return nil
	}
	s.l = s.b.SubscribeBuffered(speakerBuffer)
	s.player = s.ctx.NewPlayer(&frameReader{l: s.l})
	s.player.Play()
	log.Println("Speaker output started")
	return nil
}

// Close stops local playback.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.player == nil {
		return nil
	}
	s.b.Unsubscribe(s.l)
	err := s.player.Close()
	s.player = nil
	return err
}

// frameReader turns a listener's frames into the little-endian byte stream
// the device player pulls. It blocks until a frame arrives and reports EOF
// once the listener is unsubscribed.
type frameReader struct {
	l   *Listener
	buf []byte
}

var (
	errListenerClosed = errors.New("listener closed")
	errSpeakerClosed  = errors.New("speaker closed")
)

func (r *frameReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		if err := r.next(); err != nil {
			return 0, io.EOF
		}
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *frameReader) next() error {
	select {
	case <-r.l.done:
		return errListenerClosed
	case frame, ok := <-r.l.C:
		if !ok {
			return errListenerClosed
		}
		r.buf = audio.SamplesToBytes(frame)
		return nil
	}
}
