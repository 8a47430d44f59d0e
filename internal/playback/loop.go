package playback

import (
	"fmt"

	"github.com/vitorvargasdev/streamfluency/internal/player"
	"github.com/vitorvargasdev/streamfluency/internal/subtitle"
)

// Idle when Looping is false, Looping(Segment) otherwise
type LoopState struct {
	Looping bool              `json:"looping"`
	Segment *subtitle.Segment `json:"segment"`
}

func (s *Store) Loop() LoopState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop
}

// Idle -> Looping(displayed cue at current time), or stays Idle when no cue is active.
// Looping -> Idle.
func (s *Store) ToggleLoop() (LoopState, error) {
	if !s.player.Loaded() {
		return LoopState{}, fmt.Errorf("failed to toggle loop: %w", player.ErrNotLoaded)
	}
	now := s.player.CurrentTime()

	s.mu.Lock()
	if s.loop.Looping {
		s.stopLoopLocked()
		state, snap := s.loop, s.snapshotLocked()
		s.mu.Unlock()
		s.logger.Infow("Loop stopped")
		s.notify(snap)
		return state, nil
	}

	track := s.tracks.Active()
	seg, ok := subtitle.CurrentSegment(track, now)
	if !ok || s.closed {
		state := s.loop
		s.mu.Unlock()
		return state, nil
	}

	s.loop = LoopState{Looping: true, Segment: &seg}
	stop := make(chan struct{})
	s.loopStop = stop
	s.runTicker(s.opts.LoopInterval, stop, func() { s.LoopTick() })
	state, snap := s.loop, s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Infow("Loop started", "begin", seg.Begin, "end", seg.End)
	s.notify(snap)
	return state, nil
}

func (s *Store) stopLoopLocked() {
	if s.loopStop != nil {
		close(s.loopStop)
		s.loopStop = nil
	}
	s.loop = LoopState{}
}

// one loop check: seeks back to the loop start when the player left the
// segment. Returns whether a seek was issued.
func (s *Store) LoopTick() bool {
	s.mu.Lock()
	state := s.loop
	s.mu.Unlock()

	if !state.Looping || state.Segment == nil {
		return false
	}

	seg := *state.Segment
	if seg.Contains(s.player.CurrentTime()) {
		return false
	}

	if err := s.player.SeekTo(seg.Begin); err != nil {
		s.logger.Warnw("Failed to restart loop", "begin", seg.Begin, "error", err)
		return false
	}
	return true
}
