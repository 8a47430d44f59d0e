package playback

import (
	"fmt"

	"github.com/vitorvargasdev/streamfluency/internal/player"
	"github.com/vitorvargasdev/streamfluency/internal/subtitle"
)

// outcome of a navigation call
type Move struct {
	Seeked bool    `json:"seeked"`
	Target float64 `json:"target"`
}

type targetFunc func(subtitle.Track, float64) (float64, bool)

// seeks to the previous cue of the active track
func (s *Store) GoToPrevious() (Move, error) {
	return s.navigate("previous", subtitle.PreviousTarget)
}

// seeks to the next cue of the active track
func (s *Store) GoToNext() (Move, error) {
	return s.navigate("next", subtitle.NextTarget)
}

// seeks to the start of the active cue, or of the cue before the current gap
func (s *Store) ReplayCurrent() (Move, error) {
	return s.navigate("replay", subtitle.ReplayTarget)
}

// resolves a target on the active track and performs a single seek. Playback
// state is left as is.
func (s *Store) navigate(op string, target targetFunc) (Move, error) {
	if !s.player.Loaded() {
		return Move{}, fmt.Errorf("failed to go to %s subtitle: %w", op, player.ErrNotLoaded)
	}

	track := s.ActiveTrack()
	if len(track) == 0 {
		s.logger.Debugw("No subtitles available", "op", op)
		return Move{}, nil
	}

	now := s.player.CurrentTime()
	t, ok := target(track, now)
	if !ok {
		s.logger.Debugw("Navigation has no target", "op", op, "time", now)
		return Move{}, nil
	}

	if err := s.player.SeekTo(t); err != nil {
		return Move{}, fmt.Errorf("failed to go to %s subtitle: %w", op, err)
	}
	s.Resolve()

	return Move{Seeked: true, Target: t}, nil
}
