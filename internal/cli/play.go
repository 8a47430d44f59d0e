package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitorvargasdev/streamfluency/internal/app"
	"github.com/vitorvargasdev/streamfluency/internal/playback"
	"github.com/vitorvargasdev/streamfluency/internal/selection"
	"github.com/vitorvargasdev/streamfluency/internal/subtitle"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play the configured captions on a simulated clock",
	Long: `Fetch the native and learning tracks and play them in real time.

Commands are read from stdin, one per line:
  n        next subtitle         p        previous subtitle
  r        replay current        l        toggle loop
  space    play / pause          s <sec>  seek
  w <text> look up a selection   save     save the looked-up selection
  q        quit

Examples:
  streamfluency play
  streamfluency play --from 90 --rate 0.75`,
	Args: cobra.NoArgs,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().
		Float64("from", 0, "Start position in seconds")
	playCmd.Flags().
		Float64("rate", 1, "Playback rate")
}

func runPlay(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetFloat64("from")
	rate, _ := cmd.Flags().GetFloat64("rate")

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		a.Refresh(ctx)
		tracks := a.Playback.Tracks()
		if len(tracks.Active()) == 0 {
			langs := a.Settings.Languages()
			return fmt.Errorf("no subtitles found for %s / %s", langs.Native, langs.Learning)
		}
		logger.Infow("Tracks loaded",
			"native", len(tracks.Native),
			"learning", len(tracks.Learning),
		)

		if err := a.Player.SeekTo(from); err != nil {
			return err
		}
		if err := a.Player.SetPlaybackRate(rate); err != nil {
			return err
		}

		s := &session{app: a, out: cmd.OutOrStdout()}
		unsubscribe := a.Playback.Subscribe(s.onSnapshot)
		defer unsubscribe()
		unwatch := a.Popup.Subscribe(s.onPopup)
		defer unwatch()

		if err := a.Player.Play(); err != nil {
			return err
		}
		a.Playback.Start()
		defer a.Playback.Stop()

		return s.run(ctx, cmd.InOrStdin(), lastEnd(tracks.Active()))
	})
}

// one interactive playback session
type session struct {
	app *app.App
	out io.Writer

	// guards out and the fields below, callbacks arrive from other goroutines
	mu           sync.Mutex
	lastLearning string
	lastNative   string
	lastLookup   string
}

func (s *session) onSnapshot(snap playback.Snapshot) {
	learning, native := segmentText(snap.Learning), segmentText(snap.Native)
	s.mu.Lock()
	defer s.mu.Unlock()
	if learning == s.lastLearning && native == s.lastNative {
		return
	}
	s.lastLearning, s.lastNative = learning, native
	if learning == "" && native == "" {
		return
	}
	fmt.Fprintf(s.out, "[%s] %s\n", subtitle.FormatTime(snap.Time), learning)
	if native != "" {
		fmt.Fprintf(s.out, "        %s\n", native)
	}
}

func (s *session) onPopup(state selection.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case state.Saved:
		fmt.Fprintf(s.out, "saved %q\n", state.Selection.Text)
	case state.Result != nil && state.Result.Text != s.lastLookup:
		s.lastLookup = state.Result.Text
		printLookup(s.out, *state.Result)
	}
}

func segmentText(seg *subtitle.Segment) string {
	if seg == nil {
		return ""
	}
	return seg.Text
}

func lastEnd(track subtitle.Track) float64 {
	if len(track) == 0 {
		return 0
	}
	return track[len(track)-1].End
}

func (s *session) run(ctx context.Context, in io.Reader, end float64) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !s.app.Player.IsPaused() && s.app.Player.CurrentTime() >= end {
				s.mu.Lock()
				fmt.Fprintln(s.out, "end of subtitles")
				s.mu.Unlock()
				return nil
			}
		case line, ok := <-lines:
			if !ok {
				// stdin closed, keep playing until the end
				lines = nil
				continue
			}
			quit, err := s.handle(ctx, parseCommand(line))
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

type command struct {
	name string
	arg  string
}

func parseCommand(line string) command {
	if strings.TrimSpace(line) == "" {
		if line != "" {
			return command{name: "toggle"}
		}
		return command{}
	}
	name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}
}

func (s *session) handle(ctx context.Context, c command) (bool, error) {
	a := s.app
	switch c.name {
	case "":
		return false, nil
	case "q", "quit":
		return true, nil
	case "n", "next":
		_, err := a.Playback.GoToNext()
		return false, err
	case "p", "prev", "previous":
		_, err := a.Playback.GoToPrevious()
		return false, err
	case "r", "replay":
		_, err := a.Playback.ReplayCurrent()
		return false, err
	case "l", "loop":
		state, err := a.Playback.ToggleLoop()
		if err == nil {
			s.mu.Lock()
			fmt.Fprintf(s.out, "loop %v\n", state.Looping)
			s.mu.Unlock()
		}
		return false, err
	case "toggle":
		if a.Player.IsPaused() {
			return false, a.Player.Play()
		}
		return false, a.Player.Pause()
	case "s", "seek":
		var t float64
		if _, err := fmt.Sscan(c.arg, &t); err != nil {
			return false, fmt.Errorf("seek needs a time in seconds")
		}
		if err := a.Player.SeekTo(t); err != nil {
			return false, err
		}
		a.Playback.Resolve()
		return false, nil
	case "w", "word":
		if c.arg == "" {
			return false, fmt.Errorf("nothing selected")
		}
		s.mu.Lock()
		line := s.lastLearning
		s.mu.Unlock()
		a.Popup.Show(selection.Selection{Text: c.arg, Context: line})
		return false, nil
	case "save":
		return false, a.Popup.Save(ctx)
	default:
		return false, fmt.Errorf("unknown command %q", c.name)
	}
}
