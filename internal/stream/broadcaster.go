package stream

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the per-listener queue for network clients: ~3 seconds of
// 20ms frames.
const DefaultBuffer = 150

// Broadcaster fans the engine's PCM frames out to every output: browsers
// over HTTP and WebRTC, and the local speaker.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
	frames    atomic.Int64
}

// Listener receives PCM frames from the broadcaster.
type Listener struct {
	C       chan []int16 // buffered channel of 20ms interleaved stereo frames
	done    chan struct{}
	dropped atomic.Int64
}

// Done is closed when the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} { return l.done }

// Dropped is how many frames this listener missed by not keeping up.
func (l *Listener) Dropped() int64 { return l.dropped.Load() }

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a listener with the default buffer.
func (b *Broadcaster) Subscribe() *Listener {
	return b.SubscribeBuffered(DefaultBuffer)
}

// SubscribeBuffered registers a listener queueing at most n frames. Local
// outputs use a short queue to keep latency low.
func (b *Broadcaster) SubscribeBuffered(n int) *Listener {
	if n < 1 {
		n = 1
	}
	l := &Listener{
		C:    make(chan []int16, n),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop. Safe to call twice.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	_, ok := b.listeners[l]
	delete(b.listeners, l)
	b.mu.Unlock()
	if ok {
		close(l.done)
	}
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Frames is how many frames have been broadcast.
func (b *Broadcaster) Frames() int64 { return b.frames.Load() }

// Run reads frames from source and fans out to all listeners until ctx is
// cancelled or source closes. A listener whose queue is full misses the
// frame; the broadcast never waits.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.frames.Add(1)
			b.mu.RLock()
			for l := range b.listeners {
				select {
				case l.C <- frame:
				default:
					l.dropped.Add(1)
				}
			}
			b.mu.RUnlock()
		}
	}
}
