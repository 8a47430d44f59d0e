package selection

import (
	"strings"
	"sync"
	"time"
)

const (
	DefaultSelectionDelay = 300 * time.Millisecond
	DefaultShowDelay      = 100 * time.Millisecond
	DefaultRecheckDelay   = 10 * time.Millisecond
	DefaultHideDelay      = time.Second
)

// selected text and the subtitle line it came from
type Selection struct {
	Text    string `json:"text"`
	Context string `json:"context"`
}

// current selection, false when nothing is selected
type ReadFunc func() (Selection, bool)

// Debouncer reports a selection once it has been stable for Delay.
// A new change before then resets the timer.
type Debouncer struct {
	read     ReadFunc
	onStable func(Selection)
	delay    time.Duration
	release  func()

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

func newDebouncer(read ReadFunc, delay time.Duration, onStable func(Selection), release func()) *Debouncer {
	if delay <= 0 {
		delay = DefaultSelectionDelay
	}
	return &Debouncer{read: read, onStable: onStable, delay: delay, release: release}
}

// call on every selection change event
func (d *Debouncer) Changed() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	sel, ok := d.current()
	if !ok {
		return
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()

		now, ok := d.current()
		if !ok || now.Text != sel.Text {
			return
		}
		d.onStable(now)
	})
}

func (d *Debouncer) current() (Selection, bool) {
	sel, ok := d.read()
	if !ok {
		return Selection{}, false
	}
	sel.Text = strings.TrimSpace(sel.Text)
	sel.Context = strings.Join(strings.Fields(sel.Context), " ")
	if sel.Text == "" {
		return Selection{}, false
	}
	return sel, true
}

// stops the pending timer and gives up the popup
func (d *Debouncer) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	if d.release != nil {
		d.release()
	}
}
