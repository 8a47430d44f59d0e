package storage

import (
	"context"
	"time"

	"github.com/vitorvargasdev/streamfluency/internal/apperr"
)

var (
	ErrQuotaExceeded = apperr.New(apperr.StorageQuotaExceeded, "", "storage quota exceeded")
	ErrClosed        = apperr.New(apperr.Internal, "", "storage closed")
)

// change notification for a watched key
type Change struct {
	Key     string
	Value   []byte
	Removed bool
}

// flat key/value store shared by every instance on the machine
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	// delivers changes to key until ctx is done
	Watch(ctx context.Context, key string) (<-chan Change, error)
	Close() error
}

// append-only message log shared by every instance on the machine
type Log interface {
	Append(ctx context.Context, topic string, value []byte) error
	// delivers, in order, every entry appended to topic after the call
	// until ctx is done
	Tail(ctx context.Context, topic string) (<-chan []byte, error)
	// drops entries of topic older than the given age
	Trim(ctx context.Context, topic string, olderThan time.Duration) error
}

// both stores implement this
type Backend interface {
	KV
	Log
}
