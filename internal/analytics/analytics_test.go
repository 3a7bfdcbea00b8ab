package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPSinkDelivers(t *testing.T) {
	got := make(chan Event, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer k" {
			t.Errorf("Authorization = %q, want Bearer k", auth)
		}
		var e Event
		json.NewDecoder(r.Body).Decode(&e)
		got <- e
	}))
	defer srv.Close()

	s := NewHTTPSink(srv.URL, "k", 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Emit(Event{Category: CategoryAudio, Action: "volume", Value: Value(0.4)})
	select {
	case e := <-got:
		if e.Action != "volume" || e.Value == nil || *e.Value != 0.4 {
			t.Errorf("event = %+v, want volume 0.4", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestHTTPSinkDropsWhenFull(t *testing.T) {
	s := NewHTTPSink("http://127.0.0.1:0", "", 2)
	for i := 0; i < 5; i++ {
		s.Emit(Event{Category: CategoryAudio, Action: "play"})
	}
	if _, dropped, _ := s.Stats(); dropped != 3 {
		t.Errorf("dropped = %d, want 3", dropped)
	}
}

func TestHTTPSinkSurvivesCollectorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewHTTPSink(srv.URL, "", 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Emit(Event{Category: CategoryTimer, Action: "start"})
	s.Emit(Event{Category: CategoryTimer, Action: "stop"})
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, _, failed := s.Stats(); failed == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("failures not counted")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRecorderActions(t *testing.T) {
	var r Recorder
	r.Emit(Event{Category: CategoryAudio, Action: "play"})
	r.Emit(Event{Category: CategoryPreset, Action: "save", Label: "Calm"})
	got := r.Actions()
	if len(got) != 2 || got[0] != "audio/play" || got[1] != "preset/save" {
		t.Errorf("Actions() = %v", got)
	}
}
