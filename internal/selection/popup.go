package selection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vitorvargasdev/streamfluency/internal/logging"
	"github.com/vitorvargasdev/streamfluency/internal/translate"
)

var ErrAlreadyListening = errors.New("a selection listener is already attached")

type Options struct {
	// translation and definition for the selected text
	Lookup func(ctx context.Context, text string) translate.Lookup
	// whether the selection is already in the vocabulary
	Exists func(Selection) bool
	Save   func(ctx context.Context, sel Selection) error
	// pauses the video when the popup opens, failures are only logged
	Pause func() error

	SelectionDelay time.Duration
	ShowDelay      time.Duration
	RecheckDelay   time.Duration
	HideDelay      time.Duration
}

// what the popup currently shows
type State struct {
	Visible    bool              `json:"visible"`
	Selection  Selection         `json:"selection"`
	SingleWord bool              `json:"singleWord"`
	Loading    bool              `json:"loading"`
	Result     *translate.Lookup `json:"result,omitempty"`
	Saving     bool              `json:"saving"`
	Saved      bool              `json:"saved"`
}

// Popup is the one selection popup of a process. It is created at the
// composition root and only one Debouncer may feed it at a time.
type Popup struct {
	opts   Options
	logger *logging.Logger

	mu        sync.Mutex
	state     State
	gen       uint64 // bumps on every show and hide, stale lookups compare against it
	showSeq   uint64
	showTimer *time.Timer
	hideTimer *time.Timer
	listening bool
	subs      map[int]func(State)
	nextSub   int
	closed    bool
}

func NewPopup(opts Options, logger *logging.Logger) *Popup {
	if opts.ShowDelay <= 0 {
		opts.ShowDelay = DefaultShowDelay
	}
	if opts.RecheckDelay <= 0 {
		opts.RecheckDelay = DefaultRecheckDelay
	}
	if opts.HideDelay <= 0 {
		opts.HideDelay = DefaultHideDelay
	}
	return &Popup{opts: opts, logger: logging.OrNop(logger), subs: make(map[int]func(State))}
}

// Listen attaches the selection source. Only one listener may be attached;
// closing the returned Debouncer detaches it.
func (p *Popup) Listen(read ReadFunc) (*Debouncer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.listening {
		return nil, ErrAlreadyListening
	}
	p.listening = true

	release := func() {
		p.mu.Lock()
		p.listening = false
		p.mu.Unlock()
	}
	return newDebouncer(read, p.opts.SelectionDelay, func(sel Selection) { p.Show(sel) }, release), nil
}

func (p *Popup) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Show opens the popup for sel after the show delay. Showing the text that is
// already visible is a no-op, different text hides the current popup first.
func (p *Popup) Show(sel Selection) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	stopTimer(&p.showTimer)
	p.showSeq++
	seq := p.showSeq

	if p.state.Visible && p.state.Selection.Text == sel.Text {
		p.mu.Unlock()
		return
	}
	var hidden bool
	if p.state.Visible {
		p.hideLocked()
		hidden = true
	}

	p.showTimer = time.AfterFunc(p.opts.ShowDelay, func() { p.open(seq, sel) })
	state := p.state
	p.mu.Unlock()

	if hidden {
		p.notify(state)
	}

	if p.opts.Pause != nil {
		if err := p.opts.Pause(); err != nil {
			p.logger.Debugw("Could not pause video", "error", err)
		}
	}
}

func (p *Popup) open(seq uint64, sel Selection) {
	p.mu.Lock()
	if p.closed || p.showSeq != seq {
		p.mu.Unlock()
		return
	}
	p.showTimer = nil
	p.gen++
	gen := p.gen
	p.state = State{
		Visible:    true,
		Selection:  sel,
		SingleWord: translate.IsSingleWord(sel.Text),
		Loading:    p.opts.Lookup != nil,
		Saved:      p.opts.Exists != nil && p.opts.Exists(sel),
	}
	state := p.state
	p.mu.Unlock()

	p.notify(state)

	if p.opts.Lookup != nil {
		go p.lookup(gen, sel.Text)
	}
}

// lookups are never cancelled, a result for a dismissed popup is dropped
func (p *Popup) lookup(gen uint64, text string) {
	result := p.opts.Lookup(context.Background(), text)

	p.mu.Lock()
	if p.gen != gen || !p.state.Visible {
		p.mu.Unlock()
		return
	}
	p.state.Loading = false
	p.state.Result = &result
	state := p.state
	p.mu.Unlock()

	p.notify(state)
}

func (p *Popup) Hide() {
	p.mu.Lock()
	stopTimer(&p.showTimer)
	p.showSeq++
	if !p.state.Visible {
		p.mu.Unlock()
		return
	}
	p.hideLocked()
	state := p.state
	p.mu.Unlock()

	p.notify(state)
}

func (p *Popup) hideLocked() {
	stopTimer(&p.hideTimer)
	p.gen++
	p.state = State{}
}

// ClickOutside dismisses the popup unless a new selection exists after the
// recheck delay, so a click that starts a selection keeps it open.
func (p *Popup) ClickOutside(read ReadFunc) {
	time.AfterFunc(p.opts.RecheckDelay, func() {
		if sel, ok := read(); ok && sel.Text != "" {
			return
		}
		p.Hide()
	})
}

// Save stores the visible selection and hides the popup after the hide delay.
// Saving an already saved selection is a no-op.
func (p *Popup) Save(ctx context.Context) error {
	p.mu.Lock()
	if !p.state.Visible || p.state.Saved || p.state.Saving || p.opts.Save == nil {
		p.mu.Unlock()
		return nil
	}
	p.state.Saving = true
	gen := p.gen
	sel := p.state.Selection
	state := p.state
	p.mu.Unlock()

	p.notify(state)

	err := p.opts.Save(ctx, sel)

	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return err
	}
	p.state.Saving = false
	if err == nil {
		p.state.Saved = true
		stopTimer(&p.hideTimer)
		p.hideTimer = time.AfterFunc(p.opts.HideDelay, p.Hide)
	}
	state = p.state
	p.mu.Unlock()

	p.notify(state)

	if err != nil {
		p.logger.Warnw("Failed to save vocabulary item", "text", sel.Text, "error", err)
	}
	return err
}

// fn runs on every state change, returns an unsubscribe func
func (p *Popup) Subscribe(fn func(State)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *Popup) notify(state State) {
	p.mu.Lock()
	fns := make([]func(State), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// stops every pending timer
func (p *Popup) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	stopTimer(&p.showTimer)
	stopTimer(&p.hideTimer)
	p.showSeq++
	p.gen++
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
