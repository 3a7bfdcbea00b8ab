package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

var (
	ErrInvalidDuration = errors.New("session duration must be positive")
	ErrNotPlaying      = errors.New("session requires active playback")
)

const (
	// FadeWindow is how long before expiry the output starts fading.
	FadeWindow = 10 * time.Second
	// restoreTime is the ramp back to full level when a fading session is cancelled.
	restoreTime = 100 * time.Millisecond
)

// Player is the part of the audio engine a session drives.
type Player interface {
	Playing() bool
	FadeTo(target float64, d time.Duration) error
	Stop() error
}

// State is a snapshot of the countdown. Durations are whole seconds.
type State struct {
	Active        bool `json:"active"`
	Duration      int  `json:"duration"`
	Remaining     int  `json:"remaining"`
	FadeTriggered bool `json:"fade_triggered"`
}

// Timer counts a session down once per second against a Clock. At FadeWindow
// remaining it fades the player out; at zero it stops the player and fires
// the completion hook.
type Timer struct {
	player Player
	clock  Clock

	mu         sync.Mutex
	state      State
	started    time.Time
	onComplete func(elapsed time.Duration)
}

// NewTimer creates an idle timer. A nil clock means RealClock.
func NewTimer(player Player, clock Clock) *Timer {
	if clock == nil {
		clock = RealClock{}
	}
	return &Timer{player: player, clock: clock}
}

// OnComplete sets the hook run when a session reaches zero.
func (t *Timer) OnComplete(fn func(elapsed time.Duration)) {
	t.mu.Lock()
	t.onComplete = fn
	t.mu.Unlock()
}

// State returns a copy of the countdown state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Active reports whether a session is counting down.
func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Active
}

// Start begins a countdown of minutes. A running session is replaced.
func (t *Timer) Start(minutes int) error {
	if minutes <= 0 {
		return ErrInvalidDuration
	}
	if !t.player.Playing() {
		return ErrNotPlaying
	}
	secs := minutes * 60

	t.mu.Lock()
	t.state = State{Active: true, Duration: secs, Remaining: secs}
	t.started = t.clock.Now()
	t.mu.Unlock()

	log.Printf("Session timer started: %d min", minutes)
	return nil
}

// Cancel abandons the session without completing it. It reports whether a
// session was active; the caller decides whether that counts as history.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	was := t.state
	t.state = State{Duration: was.Duration, Remaining: was.Duration}
	t.mu.Unlock()

	if !was.Active {
		return false
	}
	if was.FadeTriggered && t.player.Playing() {
		if err := t.player.FadeTo(1, restoreTime); err != nil {
			log.Printf("Session cancel: restore level: %v", err)
		}
	}
	log.Println("Session timer cancelled")
	return true
}

// Elapsed is how long the current session has been counting.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.Active {
		return 0
	}
	return time.Duration(t.state.Duration-t.state.Remaining) * time.Second
}

// Poll applies every whole second that has passed on the clock since the
// last poll. Player calls happen outside the timer lock.
func (t *Timer) Poll() {
	t.mu.Lock()
	if !t.state.Active {
		t.mu.Unlock()
		return
	}
	elapsed := int(t.clock.Now().Sub(t.started) / time.Second)
	target := max(t.state.Duration-elapsed, 0)

	fade, done := false, false
	for t.state.Remaining > target {
		t.state.Remaining--
		if t.state.Remaining == int(FadeWindow/time.Second) && !t.state.FadeTriggered {
			t.state.FadeTriggered = true
			fade = true
		}
		if t.state.Remaining == 0 {
			done = true
			break
		}
	}
	duration := time.Duration(t.state.Duration) * time.Second
	if done {
		t.state = State{Duration: t.state.Duration, Remaining: t.state.Duration}
	}
	hook := t.onComplete
	t.mu.Unlock()

	if fade && !done {
		if err := t.player.FadeTo(0, FadeWindow); err != nil {
			log.Printf("Session fade: %v", err)
		}
	}
	if done {
		log.Println("Session complete")
		if err := t.player.Stop(); err != nil {
			log.Printf("Session stop: %v", err)
		}
		if hook != nil {
			hook(duration)
		}
	}
}

// Run polls every tick until ctx is cancelled.
func (t *Timer) Run(ctx context.Context, tick time.Duration) {
	if tick <= 0 {
		tick = time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Poll()
		}
	}
}
