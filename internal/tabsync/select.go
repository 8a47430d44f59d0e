package tabsync

import (
	"context"
	"fmt"

	"github.com/vitorvargasdev/streamfluency/internal/logging"
	"github.com/vitorvargasdev/streamfluency/internal/storage"
)

type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeRedis   Mode = "redis"
	ModeStorage Mode = "storage"
)

type SelectOptions struct {
	Mode    Mode
	Redis   RedisOptions
	Storage StorageOptions
	// backing log for the fallback transport
	Log storage.Log
}

// prefers the redis channel, falling back to the shared storage log in auto mode
func Select(ctx context.Context, opts SelectOptions, logger *logging.Logger) (Transport, error) {
	logger = logging.OrNop(logger)
	if opts.Mode == "" {
		opts.Mode = ModeAuto
	}

	switch opts.Mode {
	case ModeRedis:
		return NewRedisTransport(ctx, opts.Redis, logger)
	case ModeStorage:
		return newFallback(opts, logger)
	case ModeAuto:
		if opts.Redis.Addr != "" {
			t, err := NewRedisTransport(ctx, opts.Redis, logger)
			if err == nil {
				return t, nil
			}
			logger.Warnw("Redis unavailable, using storage sync fallback", "addr", opts.Redis.Addr, "error", err)
		}
		return newFallback(opts, logger)
	default:
		return nil, fmt.Errorf("unsupported sync transport: %s", opts.Mode)
	}
}

func newFallback(opts SelectOptions, logger *logging.Logger) (Transport, error) {
	if opts.Log == nil {
		return nil, fmt.Errorf("storage sync transport requires a storage log")
	}
	logger.Infow("Connected sync transport", "transport", "storage", "key", opts.Storage.Key)
	return NewStorageTransport(opts.Log, opts.Storage, logger), nil
}
