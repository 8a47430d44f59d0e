package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vitorvargasdev/streamfluency/internal/logging"
)

func stores(t *testing.T) map[string]Backend {
	t.Helper()

	lite, err := NewSQLite(filepath.Join(t.TempDir(), "kv.db"), SQLiteOptions{WatchInterval: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = lite.Close() })

	mem := NewMemoryStore(0)
	t.Cleanup(func() { _ = mem.Close() })

	return map[string]Backend{"memory": mem, "sqlite": lite}
}

func TestKVRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, kv := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
				t.Fatalf("Get(missing) = ok %v err %v, want absent", ok, err)
			}

			if err := kv.Set(ctx, "a", []byte("one")); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := kv.Set(ctx, "a", []byte("two")); err != nil {
				t.Fatalf("Set() overwrite error = %v", err)
			}

			got, ok, err := kv.Get(ctx, "a")
			if err != nil || !ok || string(got) != "two" {
				t.Fatalf("Get(a) = %q %v %v, want two", got, ok, err)
			}

			if err := kv.Remove(ctx, "a"); err != nil {
				t.Fatalf("Remove() error = %v", err)
			}
			if _, ok, _ := kv.Get(ctx, "a"); ok {
				t.Error("key still present after Remove()")
			}
			if err := kv.Remove(ctx, "a"); err != nil {
				t.Errorf("Remove() of absent key error = %v", err)
			}
		})
	}
}

func TestKVWatch(t *testing.T) {
	for name, kv := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			changes, err := kv.Watch(ctx, "sync")
			if err != nil {
				t.Fatalf("Watch() error = %v", err)
			}

			if err := kv.Set(ctx, "sync", []byte("payload")); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			change := receive(t, changes)
			if change.Removed || string(change.Value) != "payload" {
				t.Errorf("change = %+v, want payload", change)
			}

			if err := kv.Remove(ctx, "sync"); err != nil {
				t.Fatalf("Remove() error = %v", err)
			}
			change = receive(t, changes)
			if !change.Removed {
				t.Errorf("change = %+v, want removal", change)
			}
		})
	}
}

func receive(t *testing.T, changes <-chan Change) Change {
	t.Helper()
	select {
	case c, ok := <-changes:
		if !ok {
			t.Fatal("watch channel closed")
		}
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
	return Change{}
}

func TestQuota(t *testing.T) {
	ctx := context.Background()

	lite, err := NewSQLite(filepath.Join(t.TempDir(), "kv.db"), SQLiteOptions{Quota: 16})
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer lite.Close()

	for name, kv := range map[string]KV{"memory": NewMemoryStore(16), "sqlite": lite} {
		t.Run(name, func(t *testing.T) {
			if err := kv.Set(ctx, "k", []byte("small")); err != nil {
				t.Fatalf("Set() small error = %v", err)
			}
			err := kv.Set(ctx, "k2", []byte("this value is far too large"))
			if !errors.Is(err, ErrQuotaExceeded) {
				t.Fatalf("Set() error = %v, want ErrQuotaExceeded", err)
			}
			got, _, _ := kv.Get(ctx, "k")
			if string(got) != "small" {
				t.Errorf("existing value changed to %q", got)
			}
			// overwriting the same key only counts the new value
			if err := kv.Set(ctx, "k", []byte("replaced")); err != nil {
				t.Errorf("Set() overwrite error = %v", err)
			}
		})
	}
}

func TestSQLiteSharedBetweenHandles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	first, err := NewSQLite(path, SQLiteOptions{WatchInterval: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer first.Close()
	second, err := NewSQLite(path, SQLiteOptions{WatchInterval: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewSQLite() second error = %v", err)
	}
	defer second.Close()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	changes, err := second.Watch(watchCtx, "shared")
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := first.Set(ctx, "shared", []byte("hello")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if change := receive(t, changes); string(change.Value) != "hello" {
		t.Errorf("second handle saw %+v", change)
	}
}

func TestClosedMemoryStore(t *testing.T) {
	ms := NewMemoryStore(0)
	_ = ms.Close()
	if err := ms.Set(context.Background(), "k", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Set() after Close() error = %v, want ErrClosed", err)
	}
}

func receiveEntry(t *testing.T, entries <-chan []byte) string {
	t.Helper()
	select {
	case e, ok := <-entries:
		if !ok {
			t.Fatal("tail channel closed")
		}
		return string(e)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for log entry")
	}
	return ""
}

func logLen(t *testing.T, b Backend, topic string) int {
	t.Helper()
	switch store := b.(type) {
	case *MemoryStore:
		store.mu.RLock()
		defer store.mu.RUnlock()
		return len(store.logs[topic])
	case *SQLiteStore:
		var n int
		if err := store.db.QueryRow("SELECT COUNT(*) FROM log WHERE topic = ?", topic).Scan(&n); err != nil {
			t.Fatalf("count log rows: %v", err)
		}
		return n
	}
	t.Fatalf("unexpected backend %T", b)
	return 0
}

func TestLogTailDeliversEveryEntry(t *testing.T) {
	for name, b := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if err := b.Append(ctx, "sync", []byte("before")); err != nil {
				t.Fatalf("Append() error = %v", err)
			}
			entries, err := b.Tail(ctx, "sync")
			if err != nil {
				t.Fatalf("Tail() error = %v", err)
			}

			for i := 0; i < 5; i++ {
				if err := b.Append(ctx, "sync", []byte(fmt.Sprintf("m%d", i))); err != nil {
					t.Fatalf("Append() error = %v", err)
				}
				if err := b.Append(ctx, "other", []byte("noise")); err != nil {
					t.Fatalf("Append() error = %v", err)
				}
			}
			for i := 0; i < 5; i++ {
				if got, want := receiveEntry(t, entries), fmt.Sprintf("m%d", i); got != want {
					t.Errorf("entry %d = %q, want %q", i, got, want)
				}
			}
		})
	}
}

func TestLogTrim(t *testing.T) {
	ctx := context.Background()
	for name, b := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := b.Append(ctx, "sync", []byte("old")); err != nil {
				t.Fatalf("Append() error = %v", err)
			}
			time.Sleep(30 * time.Millisecond)
			if err := b.Append(ctx, "sync", []byte("new")); err != nil {
				t.Fatalf("Append() error = %v", err)
			}

			if err := b.Trim(ctx, "sync", 15*time.Millisecond); err != nil {
				t.Fatalf("Trim() error = %v", err)
			}
			if n := logLen(t, b, "sync"); n != 1 {
				t.Errorf("log holds %d entries after trim, want 1", n)
			}
		})
	}
}

func TestSQLiteLogSharedBetweenHandles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	path := filepath.Join(t.TempDir(), "kv.db")

	first, err := NewSQLite(path, SQLiteOptions{WatchInterval: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer first.Close()
	second, err := NewSQLite(path, SQLiteOptions{WatchInterval: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewSQLite() second error = %v", err)
	}
	defer second.Close()

	entries, err := second.Tail(ctx, "sync")
	if err != nil {
		t.Fatalf("Tail() error = %v", err)
	}
	// all three land inside one poll of the second handle
	for _, v := range []string{"clear", "add-a", "add-b"} {
		if err := first.Append(ctx, "sync", []byte(v)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	for _, want := range []string{"clear", "add-a", "add-b"} {
		if got := receiveEntry(t, entries); got != want {
			t.Errorf("second handle saw %q, want %q", got, want)
		}
	}
}

func TestMemoryWatchLogsDroppedChanges(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	ms := NewMemoryStore(0, WithLogger(&logging.Logger{SugaredLogger: zap.New(core).Sugar()}))
	defer ms.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := ms.Watch(ctx, "k"); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	// nobody reads the watch channel; writers must not block
	for i := 0; i < watchBuffer+2; i++ {
		if err := ms.Set(ctx, "k", []byte{byte(i)}); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	if n := observed.FilterMessage("Dropped change for slow watcher").Len(); n != 2 {
		t.Errorf("logged %d dropped changes, want 2", n)
	}
}
