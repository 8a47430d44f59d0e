package tabsync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/vitorvargasdev/streamfluency/internal/apperr"
	"github.com/vitorvargasdev/streamfluency/internal/logging"
)

var (
	ErrStaleMessage     = apperr.New(apperr.StaleMessage, "", "sync message expired")
	ErrMalformedMessage = apperr.New(apperr.InvalidInput, "", "malformed sync message")
	ErrTransportClosed  = apperr.New(apperr.Internal, "", "sync transport closed")
)

// local copy of the shared collection, each method applies one remote rule
// atomically and reports whether the replica changed
type Replica[T any] interface {
	AddIfAbsent(item T) bool
	ReplaceIfPresent(item T) bool
	RemoveIfPresent(id string) bool
	RemoveAll() bool
}

type SyncerOptions struct {
	Expiry time.Duration
	Now    func() time.Time
}

// broadcasts local mutations and applies remote ones to a replica
type Syncer[T any] struct {
	transport Transport
	replica   Replica[T]
	expiry    time.Duration
	now       func() time.Time
	logger    *logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSyncer[T any](transport Transport, replica Replica[T], opts SyncerOptions, logger *logging.Logger) *Syncer[T] {
	if opts.Expiry <= 0 {
		opts.Expiry = DefaultExpiry
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Syncer[T]{
		transport: transport,
		replica:   replica,
		expiry:    opts.Expiry,
		now:       opts.Now,
		logger:    logging.OrNop(logger),
	}
}

// subscribes and applies incoming messages until Close or ctx is done
func (s *Syncer[T]) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	incoming, err := s.transport.Subscribe(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to sync transport: %w", err)
	}

	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		for {
			select {
			case <-runCtx.Done():
				return
			case msg, ok := <-incoming:
				if !ok {
					return
				}
				if err := s.Handle(msg); err != nil {
					s.logger.Debugw("Dropped sync message", "action", msg.Action, "error", err)
				}
			}
		}
	}()
	return nil
}

// publishes a mutation stamped with the current time
func (s *Syncer[T]) Broadcast(ctx context.Context, action Action, data any) error {
	msg, err := NewMessage(action, data, s.now())
	if err != nil {
		return err
	}
	if err := s.transport.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to broadcast %s: %w", action, err)
	}
	return nil
}

// applies msg to the replica, stale and malformed messages are rejected untouched
func (s *Syncer[T]) Handle(msg Message) error {
	if msg.Age(s.now()) > s.expiry {
		return ErrStaleMessage
	}

	var changed bool
	switch msg.Action {
	case ActionAdd, ActionUpdate:
		var item T
		if len(msg.Data) == 0 {
			return ErrMalformedMessage
		}
		if err := json.Unmarshal(msg.Data, &item); err != nil {
			return apperr.Wrap(apperr.InvalidInput, "tabsync.Handle", err)
		}
		if msg.Action == ActionAdd {
			changed = s.replica.AddIfAbsent(item)
		} else {
			changed = s.replica.ReplaceIfPresent(item)
		}
	case ActionDelete:
		var id string
		if err := json.Unmarshal(msg.Data, &id); err != nil || id == "" {
			return ErrMalformedMessage
		}
		changed = s.replica.RemoveIfPresent(id)
	case ActionClear:
		changed = s.replica.RemoveAll()
	default:
		return ErrMalformedMessage
	}

	s.logger.Debugw("Applied sync message", "action", msg.Action, "changed", changed)
	return nil
}

func (s *Syncer[T]) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
