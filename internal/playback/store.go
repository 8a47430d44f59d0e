package playback

import (
	"context"
	"sync"
	"time"

	"github.com/vitorvargasdev/streamfluency/internal/logging"
	"github.com/vitorvargasdev/streamfluency/internal/subtitle"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultLoopInterval = 100 * time.Millisecond
)

// player operations the store needs
type Player interface {
	Loaded() bool
	CurrentTime() float64
	IsPaused() bool
	SeekTo(t float64) error
}

// loads both tracks for a language pair
type TrackFetcher interface {
	FetchTracks(ctx context.Context, nativeTag, learningTag string) subtitle.Tracks
}

type Options struct {
	PollInterval time.Duration
	LoopInterval time.Duration
}

// point-in-time view of the store
type Snapshot struct {
	Tracks      subtitle.Tracks   `json:"-"`
	Native      *subtitle.Segment `json:"native"`
	Learning    *subtitle.Segment `json:"learning"`
	Time        float64           `json:"time"`
	SubtitlesOn bool              `json:"subtitlesOn"`
	Loop        LoopState         `json:"loop"`
}

// tracks, resolved current cues and loop state for one player
type Store struct {
	mu       sync.Mutex
	player   Player
	fetcher  TrackFetcher
	opts     Options
	logger   *logging.Logger
	native   string
	learning string

	tracks          subtitle.Tracks
	currentNative   *subtitle.Segment
	currentLearning *subtitle.Segment
	loop            LoopState

	pollStop chan struct{}
	loopStop chan struct{}
	wg       sync.WaitGroup

	listeners map[int]func(Snapshot)
	nextID    int
	closed    bool
}

func NewStore(player Player, fetcher TrackFetcher, opts Options, logger *logging.Logger) *Store {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.LoopInterval <= 0 {
		opts.LoopInterval = DefaultLoopInterval
	}
	return &Store{
		player:    player,
		fetcher:   fetcher,
		opts:      opts,
		logger:    logging.OrNop(logger),
		tracks:    subtitle.Tracks{Native: subtitle.Track{}, Learning: subtitle.Track{}},
		listeners: make(map[int]func(Snapshot)),
	}
}

// sets the language pair used by Refresh
func (s *Store) SetLanguages(native, learning string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.native = native
	s.learning = learning
}

func (s *Store) Languages() (native, learning string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.native, s.learning
}

// refetches both tracks for the current languages and replaces them
func (s *Store) Refresh(ctx context.Context) subtitle.Tracks {
	native, learning := s.Languages()
	s.logger.Infow("Fetching subtitles", "learning", learning, "native", native)

	tracks := s.fetcher.FetchTracks(ctx, native, learning)
	s.SetTracks(tracks)

	s.logger.Infow("Subtitles loaded",
		"learning_segments", len(tracks.Learning),
		"native_segments", len(tracks.Native),
	)
	return tracks
}

// replaces both tracks wholesale; an active loop is cancelled since its
// segment belongs to the old track
func (s *Store) SetTracks(tracks subtitle.Tracks) {
	if tracks.Native == nil {
		tracks.Native = subtitle.Track{}
	}
	if tracks.Learning == nil {
		tracks.Learning = subtitle.Track{}
	}

	s.mu.Lock()
	s.tracks = tracks
	if s.loop.Looping {
		s.logger.Infow("Track replaced while looping, loop cancelled")
		s.stopLoopLocked()
	}
	s.resolveLocked(s.player.CurrentTime())
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Store) Tracks() subtitle.Tracks {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracks
}

// learning track when non-empty, else native
func (s *Store) ActiveTrack() subtitle.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracks.Active()
}

// starts the subtitle polling timer; a running timer is replaced
func (s *Store) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stopPollLocked()

	stop := make(chan struct{})
	s.pollStop = stop
	s.runTicker(s.opts.PollInterval, stop, s.Tick)
	s.logger.Debugw("Subtitle polling started", "interval", s.opts.PollInterval)
}

// stops the subtitle polling timer
func (s *Store) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopPollLocked()
}

func (s *Store) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollStop != nil
}

func (s *Store) stopPollLocked() {
	if s.pollStop != nil {
		close(s.pollStop)
		s.pollStop = nil
	}
}

// runs fn every interval until stop is closed, caller holds mu
func (s *Store) runTicker(interval time.Duration, stop chan struct{}, fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				select {
				case <-stop:
					return
				default:
				}
				fn()
			}
		}
	}()
}

// one polling step: re-resolves current cues unless the player is paused
func (s *Store) Tick() {
	if s.player.IsPaused() {
		return
	}
	s.Resolve()
}

// re-resolves current cues against the player clock
func (s *Store) Resolve() {
	now := s.player.CurrentTime()

	s.mu.Lock()
	changed := s.resolveLocked(now)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if changed {
		s.notify(snap)
	}
}

func (s *Store) resolveLocked(now float64) bool {
	native := findCurrent(s.tracks.Native, now)
	learning := findCurrent(s.tracks.Learning, now)
	changed := !sameSegment(native, s.currentNative) || !sameSegment(learning, s.currentLearning)
	s.currentNative = native
	s.currentLearning = learning
	return changed
}

func findCurrent(track subtitle.Track, now float64) *subtitle.Segment {
	seg, ok := subtitle.CurrentSegment(track, now)
	if !ok {
		return nil
	}
	return &seg
}

func sameSegment(a, b *subtitle.Segment) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// current native and learning cues
func (s *Store) Current() (native, learning *subtitle.Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentNative, s.currentLearning
}

// merged rows for display at the player's current time
func (s *Store) CombinedRows() []subtitle.CombinedRow {
	now := s.player.CurrentTime()
	tracks := s.Tracks()
	return subtitle.BuildCombinedRows(tracks.Native, tracks.Learning, now)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Tracks:      s.tracks,
		Native:      s.currentNative,
		Learning:    s.currentLearning,
		Time:        s.player.CurrentTime(),
		SubtitlesOn: s.pollStop != nil,
		Loop:        s.loop,
	}
}

// registers a change listener and returns its unsubscribe func
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify(snap Snapshot) {
	s.mu.Lock()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// stops every timer and waits for them to exit
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.stopPollLocked()
	s.stopLoopLocked()
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}
