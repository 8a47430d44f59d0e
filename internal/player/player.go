package player

import (
	"fmt"
	"math"
	"sync"

	"github.com/vitorvargasdev/streamfluency/internal/apperr"
	"github.com/vitorvargasdev/streamfluency/internal/logging"
)

var (
	ErrNotLoaded      = apperr.New(apperr.NotFound, "", "player service not loaded")
	ErrInvalidTime    = apperr.New(apperr.InvalidInput, "", "invalid time")
	ErrInvalidRate    = apperr.New(apperr.InvalidInput, "", "invalid playback rate")
	ErrPlaybackFailed = apperr.New(apperr.Internal, "", "playback failed")
)

const (
	MinPlaybackRate = 0.0625
	MaxPlaybackRate = 16
)

// platform player controls
type Control interface {
	CurrentTime() float64
	SeekTo(t float64) error
	IsPaused() bool
	Play() error
	Pause() error
}

// optional playback rate support
type RateControl interface {
	PlaybackRate() float64
	SetPlaybackRate(rate float64) error
}

// optional media duration support
type DurationReporter interface {
	Duration() float64
}

// holds the attached player and validates every call against it
type Store struct {
	mu     sync.RWMutex
	ctrl   Control
	logger *logging.Logger
}

func NewStore(logger *logging.Logger) *Store {
	return &Store{logger: logging.OrNop(logger)}
}

// attaches a live player
func (s *Store) Load(ctrl Control) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl = ctrl
}

// detaches the player
func (s *Store) Unload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl = nil
}

func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctrl != nil
}

func (s *Store) control() (Control, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ctrl == nil {
		return nil, ErrNotLoaded
	}
	return s.ctrl, nil
}

// current position in seconds, 0 when no player is attached
func (s *Store) CurrentTime() float64 {
	ctrl, err := s.control()
	if err != nil {
		return 0
	}
	return ctrl.CurrentTime()
}

// paused state, true when no player is attached
func (s *Store) IsPaused() bool {
	ctrl, err := s.control()
	if err != nil {
		return true
	}
	return ctrl.IsPaused()
}

func (s *Store) SeekTo(t float64) error {
	ctrl, err := s.control()
	if err != nil {
		return err
	}
	if t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		s.logger.Warnw("Cannot seek to invalid time", "time", t)
		return fmt.Errorf("seek to %v: %w", t, ErrInvalidTime)
	}
	if d, ok := ctrl.(DurationReporter); ok {
		if total := d.Duration(); total > 0 && t > total {
			return fmt.Errorf("seek to %v beyond duration %v: %w", t, total, ErrInvalidTime)
		}
	}
	if err := ctrl.SeekTo(t); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	return nil
}

func (s *Store) Play() error {
	ctrl, err := s.control()
	if err != nil {
		return err
	}
	if err := ctrl.Play(); err != nil {
		return fmt.Errorf("failed to play: %w: %w", ErrPlaybackFailed, err)
	}
	return nil
}

func (s *Store) Pause() error {
	ctrl, err := s.control()
	if err != nil {
		return err
	}
	if err := ctrl.Pause(); err != nil {
		return fmt.Errorf("failed to pause: %w: %w", ErrPlaybackFailed, err)
	}
	return nil
}

func (s *Store) PlaybackRate() (float64, error) {
	ctrl, err := s.control()
	if err != nil {
		return 0, err
	}
	rc, ok := ctrl.(RateControl)
	if !ok {
		return 1, nil
	}
	return rc.PlaybackRate(), nil
}

func (s *Store) SetPlaybackRate(rate float64) error {
	ctrl, err := s.control()
	if err != nil {
		return err
	}
	if rate < MinPlaybackRate || rate > MaxPlaybackRate || math.IsNaN(rate) {
		return fmt.Errorf("rate %v: %w", rate, ErrInvalidRate)
	}
	rc, ok := ctrl.(RateControl)
	if !ok {
		return fmt.Errorf("player does not support rate changes: %w", ErrInvalidRate)
	}
	return rc.SetPlaybackRate(rate)
}
