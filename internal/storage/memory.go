package storage

import (
	"context"
	"sync"
	"time"

	"github.com/vitorvargasdev/streamfluency/internal/logging"
)

const watchBuffer = 16

type logEntry struct {
	seq   int64
	value []byte
	at    time.Time
}

// in-memory key/value store with optional byte quota
type MemoryStore struct {
	mu       sync.RWMutex
	items    map[string][]byte
	watchers map[string]map[chan Change]struct{}
	quota    int
	closed   bool
	done     chan struct{}
	logger   *logging.Logger

	logs    map[string][]logEntry
	logSeq  int64
	logWake map[string]chan struct{}
}

type MemoryOption func(*MemoryStore)

// logger for dropped watch notifications
func WithLogger(logger *logging.Logger) MemoryOption {
	return func(ms *MemoryStore) {
		ms.logger = logging.OrNop(logger)
	}
}

// quota <= 0 means unlimited
func NewMemoryStore(quota int, opts ...MemoryOption) *MemoryStore {
	ms := &MemoryStore{
		items:    make(map[string][]byte),
		watchers: make(map[string]map[chan Change]struct{}),
		quota:    quota,
		done:     make(chan struct{}),
		logger:   logging.Nop(),
		logs:     make(map[string][]logEntry),
		logWake:  make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms
}

func (ms *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if ms.closed {
		return nil, false, ErrClosed
	}
	value, exists := ms.items[key]
	if !exists {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (ms *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return ErrClosed
	}
	if ms.quota > 0 {
		used := len(key) + len(value)
		for k, v := range ms.items {
			if k != key {
				used += len(k) + len(v)
			}
		}
		if used > ms.quota {
			return ErrQuotaExceeded
		}
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	ms.items[key] = stored
	ms.broadcastLocked(Change{Key: key, Value: stored})
	return nil
}

func (ms *MemoryStore) Remove(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return ErrClosed
	}
	if _, exists := ms.items[key]; !exists {
		return nil
	}
	delete(ms.items, key)
	ms.broadcastLocked(Change{Key: key, Removed: true})
	return nil
}

func (ms *MemoryStore) Watch(ctx context.Context, key string) (<-chan Change, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return nil, ErrClosed
	}
	ch := make(chan Change, watchBuffer)
	if ms.watchers[key] == nil {
		ms.watchers[key] = make(map[chan Change]struct{})
	}
	ms.watchers[key][ch] = struct{}{}

	go func() {
		<-ctx.Done()
		ms.mu.Lock()
		defer ms.mu.Unlock()
		if _, ok := ms.watchers[key][ch]; ok {
			delete(ms.watchers[key], ch)
			close(ch)
		}
	}()
	return ch, nil
}

// slow watchers drop changes rather than block writers
func (ms *MemoryStore) broadcastLocked(change Change) {
	for ch := range ms.watchers[change.Key] {
		select {
		case ch <- change:
		default:
			ms.logger.Debugw("Dropped change for slow watcher", "key", change.Key, "removed", change.Removed)
		}
	}
}

func (ms *MemoryStore) Append(ctx context.Context, topic string, value []byte) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return ErrClosed
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	ms.logSeq++
	ms.logs[topic] = append(ms.logs[topic], logEntry{seq: ms.logSeq, value: stored, at: time.Now()})

	// wake every tail waiting on this topic
	if wake, ok := ms.logWake[topic]; ok {
		close(wake)
		delete(ms.logWake, topic)
	}
	return nil
}

// tails keep their own cursor, so a slow reader never loses entries
func (ms *MemoryStore) Tail(ctx context.Context, topic string) (<-chan []byte, error) {
	ms.mu.Lock()
	if ms.closed {
		ms.mu.Unlock()
		return nil, ErrClosed
	}
	last := ms.logSeq
	ms.mu.Unlock()

	ch := make(chan []byte, watchBuffer)
	go func() {
		defer close(ch)
		for {
			pending, wake, ok := ms.pending(topic, last)
			if !ok {
				return
			}
			for _, entry := range pending {
				select {
				case ch <- entry.value:
					last = entry.seq
				case <-ctx.Done():
					return
				case <-ms.done:
					return
				}
			}
			if len(pending) > 0 {
				continue
			}
			select {
			case <-wake:
			case <-ctx.Done():
				return
			case <-ms.done:
				return
			}
		}
	}()
	return ch, nil
}

// entries of topic after seq, or a channel closed on the next append
func (ms *MemoryStore) pending(topic string, after int64) ([]logEntry, <-chan struct{}, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return nil, nil, false
	}
	var out []logEntry
	for _, entry := range ms.logs[topic] {
		if entry.seq > after {
			out = append(out, entry)
		}
	}
	if len(out) > 0 {
		return out, nil, true
	}
	wake, ok := ms.logWake[topic]
	if !ok {
		wake = make(chan struct{})
		ms.logWake[topic] = wake
	}
	return nil, wake, true
}

func (ms *MemoryStore) Trim(ctx context.Context, topic string, olderThan time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return ErrClosed
	}
	cutoff := time.Now().Add(-olderThan)
	entries := ms.logs[topic]
	keep := entries[:0]
	for _, entry := range entries {
		if !entry.at.Before(cutoff) {
			keep = append(keep, entry)
		}
	}
	if len(keep) == 0 {
		delete(ms.logs, topic)
		return nil
	}
	ms.logs[topic] = keep
	return nil
}

func (ms *MemoryStore) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return nil
	}
	ms.closed = true
	close(ms.done)
	for key, set := range ms.watchers {
		for ch := range set {
			close(ch)
		}
		delete(ms.watchers, key)
	}
	return nil
}
