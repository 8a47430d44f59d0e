package player

import (
	"errors"
	"testing"
	"time"

	"github.com/vitorvargasdev/streamfluency/internal/apperr"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestStoreNotLoadedDefaults(t *testing.T) {
	s := NewStore(nil)

	if got := s.CurrentTime(); got != 0 {
		t.Errorf("CurrentTime() = %v, want 0", got)
	}
	if !s.IsPaused() {
		t.Error("IsPaused() should be true when not loaded")
	}

	ops := map[string]func() error{
		"seek":  func() error { return s.SeekTo(1) },
		"play":  s.Play,
		"pause": s.Pause,
		"rate":  func() error { return s.SetPlaybackRate(1) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			if !errors.Is(err, ErrNotLoaded) {
				t.Errorf("expected ErrNotLoaded, got %v", err)
			}
			if !apperr.IsCode(err, apperr.NotFound) {
				t.Errorf("expected NotFound code, got %q", apperr.CodeOf(err))
			}
		})
	}
}

func TestStoreSeekValidation(t *testing.T) {
	clock := newClock()
	sim := NewSimulated(WithClock(clock.Now), WithDuration(100))
	s := NewStore(nil)
	s.Load(sim)

	if err := s.SeekTo(10); err != nil {
		t.Fatalf("SeekTo(10) error: %v", err)
	}

	tests := []struct {
		name string
		time float64
	}{
		{name: "negative", time: -1},
		{name: "beyond duration", time: 101},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.SeekTo(tt.time)
			if !errors.Is(err, ErrInvalidTime) {
				t.Fatalf("expected ErrInvalidTime, got %v", err)
			}
			if got := s.CurrentTime(); got != 10 {
				t.Errorf("position changed to %v after rejected seek", got)
			}
		})
	}
}

func TestStoreRateValidation(t *testing.T) {
	s := NewStore(nil)
	s.Load(NewSimulated())

	if err := s.SetPlaybackRate(0); !errors.Is(err, ErrInvalidRate) {
		t.Errorf("expected ErrInvalidRate for 0, got %v", err)
	}
	if err := s.SetPlaybackRate(17); !errors.Is(err, ErrInvalidRate) {
		t.Errorf("expected ErrInvalidRate for 17, got %v", err)
	}
	if err := s.SetPlaybackRate(1.5); err != nil {
		t.Fatalf("SetPlaybackRate(1.5) error: %v", err)
	}
	if rate, _ := s.PlaybackRate(); rate != 1.5 {
		t.Errorf("PlaybackRate() = %v, want 1.5", rate)
	}
}

func TestSimulatedClock(t *testing.T) {
	clock := newClock()
	p := NewSimulated(WithClock(clock.Now), WithDuration(10))

	if !p.IsPaused() {
		t.Fatal("simulated player should start paused")
	}
	clock.Advance(time.Second)
	if got := p.CurrentTime(); got != 0 {
		t.Errorf("paused player advanced to %v", got)
	}

	_ = p.Play()
	clock.Advance(2 * time.Second)
	if got := p.CurrentTime(); got != 2 {
		t.Errorf("CurrentTime() = %v, want 2", got)
	}

	_ = p.SetPlaybackRate(2)
	clock.Advance(time.Second)
	if got := p.CurrentTime(); got != 4 {
		t.Errorf("CurrentTime() after rate change = %v, want 4", got)
	}

	_ = p.Pause()
	clock.Advance(5 * time.Second)
	if got := p.CurrentTime(); got != 4 {
		t.Errorf("CurrentTime() after pause = %v, want 4", got)
	}

	_ = p.SeekTo(9)
	_ = p.Play()
	clock.Advance(5 * time.Second)
	if got := p.CurrentTime(); got != 10 {
		t.Errorf("CurrentTime() should clamp at duration, got %v", got)
	}
	if !p.IsPaused() {
		t.Error("player should report paused at end of media")
	}
}
