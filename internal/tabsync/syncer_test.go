package tabsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type note struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type noteReplica struct {
	mu    sync.Mutex
	notes []note
}

func (r *noteReplica) index(id string) int {
	for i, n := range r.notes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func (r *noteReplica) AddIfAbsent(n note) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index(n.ID) >= 0 {
		return false
	}
	r.notes = append(r.notes, n)
	return true
}

func (r *noteReplica) ReplaceIfPresent(n note) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(n.ID)
	if i < 0 {
		return false
	}
	r.notes[i] = n
	return true
}

func (r *noteReplica) RemoveIfPresent(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return false
	}
	r.notes = append(r.notes[:i], r.notes[i+1:]...)
	return true
}

func (r *noteReplica) RemoveAll() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := len(r.notes) > 0
	r.notes = nil
	return changed
}

func (r *noteReplica) snapshot() []note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]note(nil), r.notes...)
}

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func message(t *testing.T, action Action, data any, at time.Time) Message {
	t.Helper()
	msg, err := NewMessage(action, data, at)
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}
	return msg
}

func TestHandleDispatch(t *testing.T) {
	hello := note{ID: "1", Text: "hello"}

	tests := []struct {
		name    string
		initial []note
		msg     func(t *testing.T) Message
		want    []note
		wantErr error
	}{
		{
			name: "add appends",
			msg:  func(t *testing.T) Message { return message(t, ActionAdd, hello, epoch) },
			want: []note{hello},
		},
		{
			name:    "add ignores existing id",
			initial: []note{{ID: "1", Text: "local"}},
			msg:     func(t *testing.T) Message { return message(t, ActionAdd, hello, epoch) },
			want:    []note{{ID: "1", Text: "local"}},
		},
		{
			name:    "update replaces wholesale",
			initial: []note{{ID: "1", Text: "old"}},
			msg:     func(t *testing.T) Message { return message(t, ActionUpdate, hello, epoch) },
			want:    []note{hello},
		},
		{
			name: "update of unknown id is ignored",
			msg:  func(t *testing.T) Message { return message(t, ActionUpdate, hello, epoch) },
		},
		{
			name:    "delete removes",
			initial: []note{hello, {ID: "2", Text: "x"}},
			msg:     func(t *testing.T) Message { return message(t, ActionDelete, "1", epoch) },
			want:    []note{{ID: "2", Text: "x"}},
		},
		{
			name:    "clear empties",
			initial: []note{hello},
			msg:     func(t *testing.T) Message { return message(t, ActionClear, nil, epoch) },
		},
		{
			name:    "stale add is dropped",
			msg:     func(t *testing.T) Message { return message(t, ActionAdd, hello, epoch.Add(-6*time.Second)) },
			wantErr: ErrStaleMessage,
		},
		{
			name:    "stale clear is dropped",
			initial: []note{hello},
			msg:     func(t *testing.T) Message { return message(t, ActionClear, nil, epoch.Add(-6*time.Second)) },
			want:    []note{hello},
			wantErr: ErrStaleMessage,
		},
		{
			name:    "message at the expiry bound is applied",
			initial: []note{hello},
			msg:     func(t *testing.T) Message { return message(t, ActionClear, nil, epoch.Add(-5*time.Second)) },
		},
		{
			name:    "unknown action",
			msg:     func(t *testing.T) Message { return Message{Action: "merge", Timestamp: epoch.UnixMilli()} },
			wantErr: ErrMalformedMessage,
		},
		{
			name:    "delete without id",
			initial: []note{hello},
			msg:     func(t *testing.T) Message { return message(t, ActionDelete, nil, epoch) },
			want:    []note{hello},
			wantErr: ErrMalformedMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replica := &noteReplica{notes: append([]note(nil), tt.initial...)}
			s := NewSyncer[note](NewBus().Join(), replica, SyncerOptions{Now: func() time.Time { return epoch }}, nil)

			err := s.Handle(tt.msg(t))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Handle() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Handle() unexpected error = %v", err)
			}

			got := replica.snapshot()
			if len(got) != len(tt.want) {
				t.Fatalf("replica = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("replica[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSyncerOverBus(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	replicaA, replicaB := &noteReplica{}, &noteReplica{}
	a := NewSyncer[note](bus.Join(), replicaA, SyncerOptions{}, nil)
	b := NewSyncer[note](bus.Join(), replicaB, SyncerOptions{}, nil)
	for _, s := range []*Syncer[note]{a, b} {
		if err := s.Start(ctx); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		defer s.Close()
	}

	if err := a.Broadcast(ctx, ActionAdd, note{ID: "x", Text: "word"}); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}
	waitFor(t, func() bool { return len(replicaB.snapshot()) == 1 })

	if got := replicaB.snapshot()[0]; got.ID != "x" || got.Text != "word" {
		t.Errorf("replica B = %+v", got)
	}
	// bus does not echo to the sender
	time.Sleep(20 * time.Millisecond)
	if n := len(replicaA.snapshot()); n != 0 {
		t.Errorf("sender replica received its own message, len = %d", n)
	}
}

func TestSyncerStartIsIdempotent(t *testing.T) {
	s := NewSyncer[note](NewBus().Join(), &noteReplica{}, SyncerOptions{}, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
