package tabsync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vitorvargasdev/streamfluency/internal/logging"
	"github.com/vitorvargasdev/streamfluency/internal/storage"
)

func TestStorageTransport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv := storage.NewMemoryStore(0)
	defer kv.Close()

	sender := NewStorageTransport(kv, StorageOptions{}, nil)
	receiver := NewStorageTransport(kv, StorageOptions{}, nil)

	own, err := sender.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	incoming, err := receiver.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	msg := message(t, ActionDelete, "abc", time.Now())
	if err := sender.Publish(ctx, msg); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-incoming:
		if got.Action != ActionDelete || string(got.Data) != `"abc"` {
			t.Errorf("received %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("receiver got no message")
	}

	select {
	case got := <-own:
		t.Errorf("sender received its own message %+v", got)
	case <-time.After(30 * time.Millisecond):
	}

	// same payload again is a new entry
	if err := sender.Publish(ctx, msg); err != nil {
		t.Fatalf("second Publish() error = %v", err)
	}
	select {
	case <-incoming:
	case <-time.After(time.Second):
		t.Fatal("receiver missed repeated message")
	}
}

func TestStorageTransportDeliversBurst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.db")
	open := func() *storage.SQLiteStore {
		// a poll interval far above the publish spacing puts the whole burst in one window
		lite, err := storage.NewSQLite(path, storage.SQLiteOptions{WatchInterval: 100 * time.Millisecond})
		if err != nil {
			t.Fatalf("NewSQLite() error = %v", err)
		}
		t.Cleanup(func() { _ = lite.Close() })
		return lite
	}

	tests := []struct {
		name string
		a, b storage.Log
	}{
		{name: "memory", a: storage.NewMemoryStore(0)},
		{name: "sqlite", a: open(), b: open()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if tt.b == nil {
				tt.b = tt.a
			}
			sender := NewStorageTransport(tt.a, StorageOptions{}, nil)
			receiver := NewStorageTransport(tt.b, StorageOptions{}, nil)
			incoming, err := receiver.Subscribe(ctx)
			if err != nil {
				t.Fatalf("Subscribe() error = %v", err)
			}

			burst := []Message{message(t, ActionClear, nil, time.Now())}
			for _, id := range []string{"a", "b", "c", "d"} {
				burst = append(burst, message(t, ActionDelete, id, time.Now()))
			}
			for _, msg := range burst {
				if err := sender.Publish(ctx, msg); err != nil {
					t.Fatalf("Publish() error = %v", err)
				}
			}

			for i, want := range burst {
				select {
				case got := <-incoming:
					if got.Action != want.Action || string(got.Data) != string(want.Data) {
						t.Errorf("message %d = %s %s, want %s %s", i, got.Action, got.Data, want.Action, want.Data)
					}
				case <-time.After(2 * time.Second):
					t.Fatalf("received %d of %d messages", i, len(burst))
				}
			}
		})
	}
}

func TestBusLogsDropsForFullSubscriber(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	bus := NewBus(BusLogger(&logging.Logger{SugaredLogger: zap.New(core).Sugar()}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender, receiver := bus.Join(), bus.Join()
	if _, err := receiver.Subscribe(ctx); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	for i := 0; i < subscriberBuffer+3; i++ {
		if err := sender.Publish(ctx, message(t, ActionClear, nil, time.Now())); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	if n := observed.FilterMessage("Dropped sync message for slow subscriber").Len(); n != 3 {
		t.Errorf("logged %d drops, want 3", n)
	}
}

func TestSelectFallsBackToStorage(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	defer kv.Close()

	tr, err := Select(context.Background(), SelectOptions{
		Mode:  ModeAuto,
		Redis: RedisOptions{Addr: "127.0.0.1:1", ConnectTimeout: 50 * time.Millisecond},
		Log:   kv,
	}, nil)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	defer tr.Close()

	if _, ok := tr.(*StorageTransport); !ok {
		t.Errorf("Select() = %T, want *StorageTransport", tr)
	}
}

func TestSelectRejectsUnknownMode(t *testing.T) {
	if _, err := Select(context.Background(), SelectOptions{Mode: "carrier-pigeon"}, nil); err == nil {
		t.Error("Select() with unknown mode succeeded")
	}
}

func TestRedisTransportIntegration(t *testing.T) {
	addr := os.Getenv("STREAMFLUENCY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STREAMFLUENCY_TEST_REDIS_ADDR not set; skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := RedisOptions{Addr: addr, Channel: "streamfluency-test-" + time.Now().Format("150405.000")}
	a, err := NewRedisTransport(ctx, opts, nil)
	if err != nil {
		t.Fatalf("NewRedisTransport() error = %v", err)
	}
	defer a.Close()
	b, err := NewRedisTransport(ctx, opts, nil)
	if err != nil {
		t.Fatalf("NewRedisTransport() error = %v", err)
	}
	defer b.Close()

	own, err := a.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	incoming, err := b.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := a.Publish(ctx, message(t, ActionClear, nil, time.Now())); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-incoming:
		if got.Action != ActionClear {
			t.Errorf("received %+v", got)
		}
	case <-ctx.Done():
		t.Fatal("no message received")
	}

	select {
	case got := <-own:
		t.Errorf("publisher received its own message %+v", got)
	case <-time.After(200 * time.Millisecond):
	}
}
