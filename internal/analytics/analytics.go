package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Categories used by the controller.
const (
	CategoryAudio   = "audio"
	CategoryVisual  = "visual"
	CategoryPreset  = "preset"
	CategoryTimer   = "timer"
	CategoryDisplay = "display"
)

// Event is one user action.
type Event struct {
	Category string   `json:"category"`
	Action   string   `json:"action"`
	Label    string   `json:"label,omitempty"`
	Value    *float64 `json:"value,omitempty"`
}

// Value wraps v for Event.Value.
func Value(v float64) *float64 { return &v }

// Sink receives events. Emit must never block and never fail the caller.
type Sink interface {
	Emit(e Event)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of what was emitted.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Actions returns "category/action" for every event, in order.
func (r *Recorder) Actions() []string {
	var out []string
	for _, e := range r.Events() {
		out = append(out, e.Category+"/"+e.Action)
	}
	return out
}

// HTTPSink posts events as JSON to a collector from a bounded queue. When the
// queue is full new events are dropped.
type HTTPSink struct {
	url    string
	apiKey string
	http   *http.Client
	queue  chan Event

	sent    atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewHTTPSink creates a sink posting to url with room for queueSize pending
// events. Nothing is sent until Run.
func NewHTTPSink(url, apiKey string, queueSize int) *HTTPSink {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &HTTPSink{
		url:    url,
		apiKey: apiKey,
		http:   &http.Client{Timeout: 5 * time.Second},
		queue:  make(chan Event, queueSize),
	}
}

func (s *HTTPSink) Emit(e Event) {
	select {
	case s.queue <- e:
	default:
		s.dropped.Add(1)
	}
}

// Stats reports sent, dropped and failed counts.
func (s *HTTPSink) Stats() (sent, dropped, failed int64) {
	return s.sent.Load(), s.dropped.Load(), s.failed.Load()
}

// Run delivers queued events until ctx is cancelled.
func (s *HTTPSink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-s.queue:
			if err := s.post(ctx, e); err != nil {
				s.failed.Add(1)
				log.Printf("Analytics: %v", err)
				continue
			}
			s.sent.Add(1)
		}
	}
}

func (s *HTTPSink) post(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned %d", resp.StatusCode)
	}
	return nil
}
