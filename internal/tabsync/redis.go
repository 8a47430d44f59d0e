package tabsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vitorvargasdev/streamfluency/internal/logging"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Channel  string
	// total time spent retrying the initial ping
	ConnectTimeout time.Duration
}

// pub/sub transport over a Redis channel
type RedisTransport struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *logging.Logger

	mu     sync.Mutex
	subs   []*redis.PubSub
	closed bool
}

// connects and pings with exponential backoff before returning
func NewRedisTransport(ctx context.Context, opts RedisOptions, logger *logging.Logger) (*RedisTransport, error) {
	logger = logging.OrNop(logger)
	if opts.Channel == "" {
		opts.Channel = DefaultChannel
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 3 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = opts.ConnectTimeout

	attempt := 0
	ping := func() error {
		attempt++
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Debugw("Redis ping failed", "addr", opts.Addr, "attempt", attempt, "error", err)
			return err
		}
		return nil
	}
	if err := backoff.Retry(ping, backoff.WithContext(bo, ctx)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	logger.Infow("Connected sync transport", "transport", "redis", "addr", opts.Addr, "channel", opts.Channel)
	return &RedisTransport{
		client:  client,
		channel: opts.Channel,
		origin:  uuid.New().String(),
		logger:  logger,
	}, nil
}

func (t *RedisTransport) Origin() string {
	return t.origin
}

func (t *RedisTransport) Publish(ctx context.Context, msg Message) error {
	payload, err := encodeEnvelope(t.origin, msg)
	if err != nil {
		return fmt.Errorf("failed to encode sync message: %w", err)
	}
	if err := t.client.Publish(ctx, t.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish sync message: %w", err)
	}
	return nil
}

func (t *RedisTransport) Subscribe(ctx context.Context) (<-chan Message, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	ps := t.client.Subscribe(ctx, t.channel)
	t.subs = append(t.subs, ps)
	t.mu.Unlock()

	// wait for the subscription confirmation so no publish is missed after return
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", t.channel, err)
	}

	out := make(chan Message, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()

		incoming := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-incoming:
				if !ok {
					return
				}
				env, err := decodeEnvelope([]byte(raw.Payload))
				if err != nil {
					t.logger.Debugw("Ignoring malformed sync payload", "error", err)
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
		}
	}()
	return out, nil
}

func (t *RedisTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	for _, ps := range t.subs {
		_ = ps.Close()
	}
	t.subs = nil
	return t.client.Close()
}
