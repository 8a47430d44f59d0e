package player

import (
	"sync"
	"time"
)

// clock-driven player used by the CLI and the API when no real player is attached
type Simulated struct {
	mu       sync.Mutex
	now      func() time.Time
	position float64
	anchor   time.Time
	paused   bool
	rate     float64
	duration float64
}

type SimulatedOption func(*Simulated)

// overrides the wall clock
func WithClock(now func() time.Time) SimulatedOption {
	return func(p *Simulated) {
		p.now = now
	}
}

// stops the clock at the end of the media
func WithDuration(seconds float64) SimulatedOption {
	return func(p *Simulated) {
		p.duration = seconds
	}
}

// starts paused at 0
func NewSimulated(opts ...SimulatedOption) *Simulated {
	p := &Simulated{
		now:    time.Now,
		paused: true,
		rate:   1,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.anchor = p.now()
	return p
}

// position not yet clamped, caller holds mu
func (p *Simulated) positionLocked() float64 {
	pos := p.position
	if !p.paused {
		pos += p.now().Sub(p.anchor).Seconds() * p.rate
	}
	if p.duration > 0 && pos > p.duration {
		pos = p.duration
	}
	return pos
}

// re-anchors the clock at the current position
func (p *Simulated) settleLocked() {
	p.position = p.positionLocked()
	p.anchor = p.now()
}

func (p *Simulated) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *Simulated) SeekTo(t float64) error {
	if t < 0 {
		return ErrInvalidTime
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = t
	p.anchor = p.now()
	return nil
}

func (p *Simulated) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.duration > 0 && p.positionLocked() >= p.duration {
		return true
	}
	return p.paused
}

func (p *Simulated) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return nil
	}
	p.anchor = p.now()
	p.paused = false
	return nil
}

func (p *Simulated) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return nil
	}
	p.settleLocked()
	p.paused = true
	return nil
}

func (p *Simulated) PlaybackRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

func (p *Simulated) SetPlaybackRate(rate float64) error {
	if rate <= 0 {
		return ErrInvalidRate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settleLocked()
	p.rate = rate
	return nil
}

func (p *Simulated) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}
