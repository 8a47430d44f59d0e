package tabsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitorvargasdev/streamfluency/internal/logging"
	"github.com/vitorvargasdev/streamfluency/internal/storage"
)

type StorageOptions struct {
	Key       string
	Retention time.Duration
}

// fallback transport over the shared storage log. Every publish appends its
// own entry under Key, so a burst between two polls is delivered in full and
// a repeated message still produces a new entry. Entries older than
// Retention are trimmed on publish.
type StorageTransport struct {
	log       storage.Log
	key       string
	retention time.Duration
	origin    string
	logger    *logging.Logger

	mu     sync.Mutex
	closed bool
}

func NewStorageTransport(log storage.Log, opts StorageOptions, logger *logging.Logger) *StorageTransport {
	if opts.Key == "" {
		opts.Key = DefaultFallbackKey
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	return &StorageTransport{
		log:       log,
		key:       opts.Key,
		retention: opts.Retention,
		origin:    uuid.New().String(),
		logger:    logging.OrNop(logger),
	}
}

func (t *StorageTransport) Origin() string {
	return t.origin
}

func (t *StorageTransport) Publish(ctx context.Context, msg Message) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	t.mu.Unlock()

	payload, err := encodeEnvelope(t.origin, msg)
	if err != nil {
		return fmt.Errorf("failed to encode sync message: %w", err)
	}
	if err := t.log.Append(ctx, t.key, payload); err != nil {
		return fmt.Errorf("failed to append sync message: %w", err)
	}
	if err := t.log.Trim(ctx, t.key, t.retention); err != nil {
		t.logger.Debugw("Failed to trim sync log", "key", t.key, "error", err)
	}
	return nil
}

func (t *StorageTransport) Subscribe(ctx context.Context) (<-chan Message, error) {
	entries, err := t.log.Tail(ctx, t.key)
	if err != nil {
		return nil, fmt.Errorf("failed to tail sync log: %w", err)
	}

	out := make(chan Message, subscriberBuffer)
	go func() {
		defer close(out)
		for value := range entries {
			env, err := decodeEnvelope(value)
			if err != nil {
				t.logger.Debugw("Ignoring malformed sync entry", "key", t.key, "error", err)
				continue
			}
			if env.Origin == t.origin {
				continue
			}
			select {
			case out <- env.Message:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (t *StorageTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	return nil
}
