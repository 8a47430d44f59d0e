package tabsync

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/vitorvargasdev/streamfluency/internal/logging"
)

// broadcast channel between instances, never echoes to its own sender
type Transport interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(ctx context.Context) (<-chan Message, error)
	Close() error
}

const subscriberBuffer = 32

// in-process hub connecting several transports
type Bus struct {
	mu      sync.Mutex
	members map[string]map[chan Message]struct{}
	logger  *logging.Logger
}

type BusOption func(*Bus)

// logger for messages dropped on full subscribers
func BusLogger(logger *logging.Logger) BusOption {
	return func(b *Bus) {
		b.logger = logging.OrNop(logger)
	}
}

func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		members: make(map[string]map[chan Message]struct{}),
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// returns a transport attached to the bus with its own origin
func (b *Bus) Join() *BusTransport {
	return &BusTransport{bus: b, origin: uuid.New().String()}
}

func (b *Bus) deliver(origin string, msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for member, subs := range b.members {
		if member == origin {
			continue
		}
		for ch := range subs {
			select {
			case ch <- msg:
			default:
				b.logger.Debugw("Dropped sync message for slow subscriber", "member", member, "action", msg.Action)
			}
		}
	}
}

func (b *Bus) add(origin string, ch chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.members[origin] == nil {
		b.members[origin] = make(map[chan Message]struct{})
	}
	b.members[origin][ch] = struct{}{}
}

func (b *Bus) remove(origin string, ch chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.members[origin][ch]; !ok {
		return
	}
	delete(b.members[origin], ch)
	if len(b.members[origin]) == 0 {
		delete(b.members, origin)
	}
	close(ch)
}

type BusTransport struct {
	bus    *Bus
	origin string

	mu     sync.Mutex
	subs   []chan Message
	closed bool
}

func (t *BusTransport) Origin() string {
	return t.origin
}

func (t *BusTransport) Publish(ctx context.Context, msg Message) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}
	t.bus.deliver(t.origin, msg)
	return nil
}

func (t *BusTransport) Subscribe(ctx context.Context) (<-chan Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTransportClosed
	}
	ch := make(chan Message, subscriberBuffer)
	t.subs = append(t.subs, ch)
	t.bus.add(t.origin, ch)

	go func() {
		<-ctx.Done()
		t.bus.remove(t.origin, ch)
	}()
	return ch, nil
}

func (t *BusTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	for _, ch := range t.subs {
		t.bus.remove(t.origin, ch)
	}
	t.subs = nil
	return nil
}
