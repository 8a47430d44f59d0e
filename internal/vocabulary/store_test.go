package vocabulary

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vitorvargasdev/streamfluency/internal/apperr"
	"github.com/vitorvargasdev/streamfluency/internal/storage"
	"github.com/vitorvargasdev/streamfluency/internal/tabsync"
)

var now = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

type countingKV struct {
	*storage.MemoryStore
	mu   sync.Mutex
	sets int
}

func (c *countingKV) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
	return c.MemoryStore.Set(ctx, key, value)
}

func (c *countingKV) writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

type countingTransport struct {
	tabsync.Transport
	mu        sync.Mutex
	published []tabsync.Message
}

func (c *countingTransport) Publish(ctx context.Context, msg tabsync.Message) error {
	c.mu.Lock()
	c.published = append(c.published, msg)
	c.mu.Unlock()
	return c.Transport.Publish(ctx, msg)
}

func (c *countingTransport) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestStore(t *testing.T, kv storage.KV, transport tabsync.Transport) *Store {
	t.Helper()
	s := NewStore(Options{
		Storage:   kv,
		Transport: transport,
		Now:       func() time.Time { return now },
		NewID:     sequentialIDs(),
	}, nil)
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strptr(s string) *string { return &s }

func TestAddItemAssignsIdentity(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryStore(0), nil)

	item, err := s.AddItem(context.Background(), Draft{Text: "hello", Context: strptr("Hi there")})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if item.ID != "id-1" {
		t.Errorf("ID = %q, want id-1", item.ID)
	}
	if item.Timestamp != now.UnixMilli() {
		t.Errorf("Timestamp = %d, want %d", item.Timestamp, now.UnixMilli())
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestAddItemRejectsEmptyText(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryStore(0), nil)

	_, err := s.AddItem(context.Background(), Draft{Text: ""})
	if !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("AddItem() error = %v, want ErrInvalidItem", err)
	}
	if apperr.CodeOf(err) != apperr.InvalidInput {
		t.Errorf("CodeOf() = %s", apperr.CodeOf(err))
	}
}

func TestCheckIfExists(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryStore(0), nil)
	ctx := context.Background()

	if _, err := s.AddItem(ctx, Draft{Text: "hello", Context: strptr("Hi there")}); err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if _, err := s.AddItem(ctx, Draft{Text: "bare"}); err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}

	tests := []struct {
		name    string
		text    string
		context *string
		want    bool
	}{
		{"case and space insensitive", "Hello", strptr(" hi there "), true},
		{"different context", "hello", strptr("bye"), false},
		{"missing context does not match present context", "hello", nil, false},
		{"missing context matches missing context", " BARE", nil, true},
		{"present context does not match missing context", "bare", strptr(""), false},
		{"unknown text", "nope", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.CheckIfExists(tt.text, tt.context); got != tt.want {
				t.Errorf("CheckIfExists(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestUpdateItem(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryStore(0), nil)
	ctx := context.Background()

	item, _ := s.AddItem(ctx, Draft{Text: "casa", Translation: "house"})

	updated, err := s.UpdateItem(ctx, item.ID, Patch{Notes: strptr("feminine")})
	if err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	if updated.ID != item.ID || updated.Translation != "house" || updated.Notes != "feminine" {
		t.Errorf("UpdateItem() = %+v", updated)
	}

	if _, err := s.UpdateItem(ctx, "missing", Patch{Notes: strptr("x")}); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("UpdateItem(missing) error = %v, want ErrItemNotFound", err)
	}
}

func TestDeleteAndClear(t *testing.T) {
	kv := &countingKV{MemoryStore: storage.NewMemoryStore(0)}
	transport := &countingTransport{Transport: tabsync.NewBus().Join()}
	s := newTestStore(t, kv, transport)
	ctx := context.Background()

	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll() on empty store error = %v", err)
	}
	if kv.writes() != 0 || transport.count() != 0 {
		t.Fatalf("empty ClearAll() wrote %d times and broadcast %d times", kv.writes(), transport.count())
	}

	if err := s.DeleteItem(ctx, "missing"); err != nil {
		t.Fatalf("DeleteItem(missing) error = %v", err)
	}
	if kv.writes() != 0 {
		t.Errorf("DeleteItem(missing) wrote to storage")
	}

	a, _ := s.AddItem(ctx, Draft{Text: "a"})
	_, _ = s.AddItem(ctx, Draft{Text: "b"})
	if err := s.DeleteItem(ctx, a.ID); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	if _, ok := s.Get(a.ID); ok {
		t.Error("item still present after DeleteItem()")
	}

	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d after ClearAll()", s.Len())
	}
	if got := transport.count(); got != 4 {
		t.Errorf("broadcasts = %d, want 4", got)
	}
}

func TestPersistedAcrossInit(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	ctx := context.Background()

	first := newTestStore(t, kv, nil)
	want, _ := first.AddItem(ctx, Draft{Text: "persisted", Language: "en"})

	second := newTestStore(t, kv, nil)
	got, ok := second.Get(want.ID)
	if !ok || got.Text != "persisted" || got.Language != "en" {
		t.Errorf("reloaded item = %+v, %v", got, ok)
	}
}

func TestInitMigratesLegacyKey(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	ctx := context.Background()
	legacy := `[{"id":"old-1","text":"saudade","timestamp":1700000000000}]`
	if err := kv.Set(ctx, LegacyStorageKey, []byte(legacy)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	s := newTestStore(t, kv, nil)
	if _, ok := s.Get("old-1"); !ok {
		t.Fatal("legacy item not loaded")
	}
	if _, ok, _ := kv.Get(ctx, LegacyStorageKey); ok {
		t.Error("legacy key still present")
	}
	if data, ok, _ := kv.Get(ctx, StorageKey); !ok || string(data) != legacy {
		t.Errorf("current key = %q, %v", data, ok)
	}
}

func TestInitDropsMalformedItems(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	ctx := context.Background()
	stored := `[
		{"id":"ok","text":"fine","timestamp":1},
		{"id":7,"text":"bad id","timestamp":1},
		{"id":"no-text","timestamp":1},
		{"id":"bad-ts","text":"x","timestamp":"yesterday"},
		{"text":"no id","timestamp":1}
	]`
	_ = kv.Set(ctx, StorageKey, []byte(stored))

	s := newTestStore(t, kv, nil)
	items := s.Items()
	if len(items) != 1 || items[0].ID != "ok" {
		t.Errorf("Items() = %+v, want only the well-formed item", items)
	}
}

func TestInitWithCorruptBlob(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	_ = kv.Set(context.Background(), StorageKey, []byte("{not json"))

	s := newTestStore(t, kv, nil)
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
	if s.LastError() == "" {
		t.Error("LastError() empty after corrupt load")
	}
}

func TestQuotaExceeded(t *testing.T) {
	kv := storage.NewMemoryStore(200)
	transport := &countingTransport{Transport: tabsync.NewBus().Join()}
	s := newTestStore(t, kv, transport)
	ctx := context.Background()

	_, err := s.AddItem(ctx, Draft{Text: strings.Repeat("palavra ", 40)})
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("AddItem() error = %v, want ErrQuotaExceeded", err)
	}
	if !errors.Is(err, storage.ErrQuotaExceeded) {
		t.Errorf("error does not wrap storage.ErrQuotaExceeded")
	}
	if s.LastError() == "" {
		t.Error("LastError() not recorded")
	}
	if s.Len() != 0 {
		t.Errorf("failed write left %d items in memory", s.Len())
	}
	if transport.count() != 0 {
		t.Errorf("failed write was broadcast")
	}

	if _, err := s.AddItem(ctx, Draft{Text: "ok"}); err != nil {
		t.Fatalf("AddItem() small error = %v", err)
	}
	if s.LastError() != "" {
		t.Errorf("LastError() = %q after successful write", s.LastError())
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

func TestReplicasConverge(t *testing.T) {
	bus := tabsync.NewBus()
	kv := storage.NewMemoryStore(0)
	ctx := context.Background()

	a := newTestStore(t, kv, bus.Join())
	b := NewStore(Options{Storage: kv, Transport: bus.Join(), Now: func() time.Time { return now }}, nil)
	if err := b.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer b.Close()

	x, err := a.AddItem(ctx, Draft{Text: "olá"})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	waitFor(t, func() bool {
		got, ok := b.Get(x.ID)
		return ok && got.Text == x.Text
	})

	if _, err := a.UpdateItem(ctx, x.ID, Patch{Translation: strptr("hello")}); err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	waitFor(t, func() bool {
		got, _ := b.Get(x.ID)
		return got.Translation == "hello"
	})

	if err := a.DeleteItem(ctx, x.ID); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	waitFor(t, func() bool { return b.Len() == 0 })
}

func TestDuplicateAddSuppressed(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryStore(0), nil)
	item, _ := s.AddItem(context.Background(), Draft{Text: "eco"})

	replica := remoteReplica{s}
	if replica.AddIfAbsent(item) {
		t.Error("AddIfAbsent() reported change for existing id")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestSubscribeReceivesRemoteEvents(t *testing.T) {
	bus := tabsync.NewBus()
	kv := storage.NewMemoryStore(0)
	a := newTestStore(t, kv, bus.Join())
	b := newTestStore(t, kv, bus.Join())

	events := make(chan Event, 4)
	unsubscribe := b.Subscribe(func(ev Event) { events <- ev })
	defer unsubscribe()

	if _, err := a.AddItem(context.Background(), Draft{Text: "remote"}); err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	select {
	case ev := <-events:
		if ev.Action != tabsync.ActionAdd || !ev.Remote {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestReplaceBroadcastsClearThenAdds(t *testing.T) {
	transport := &countingTransport{Transport: tabsync.NewBus().Join()}
	s := newTestStore(t, storage.NewMemoryStore(0), transport)

	items := []Item{
		{ID: "a", Text: "one", Timestamp: 1},
		{ID: "b", Text: "two", Timestamp: 2},
	}
	if err := s.Replace(context.Background(), items); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}

	transport.mu.Lock()
	defer transport.mu.Unlock()
	if len(transport.published) != 3 || transport.published[0].Action != tabsync.ActionClear {
		t.Errorf("published = %+v", transport.published)
	}
}

func TestReplaceAcceptsStoredShapes(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryStore(0), nil)

	offset := -1.5
	items := []Item{
		{ID: "a", Text: "one", Timestamp: 0},
		{ID: "b", Text: "two", Timestamp: 2, VideoURL: "not a url"},
		{ID: "c", Text: "three", Timestamp: -5, VideoTimestamp: &offset},
	}
	if err := s.Replace(context.Background(), items); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}

func sqliteReplica(t *testing.T, path string) *Store {
	t.Helper()
	// a slow poll puts several mutations inside one window
	lite, err := storage.NewSQLite(path, storage.SQLiteOptions{WatchInterval: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = lite.Close() })
	return newTestStore(t, lite, tabsync.NewStorageTransport(lite, tabsync.StorageOptions{}, nil))
}

func TestReplicasConvergeOverStorageLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	a := sqliteReplica(t, path)
	b := sqliteReplica(t, path)
	ctx := context.Background()

	for _, text := range []string{"um", "dois", "três"} {
		if _, err := a.AddItem(ctx, Draft{Text: text}); err != nil {
			t.Fatalf("AddItem(%s) error = %v", text, err)
		}
	}
	waitFor(t, func() bool { return b.Len() == 3 })

	imported := []Item{
		{ID: "x", Text: "quatro", Timestamp: 4},
		{ID: "y", Text: "cinco", Timestamp: 5},
	}
	if err := a.Replace(ctx, imported); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	waitFor(t, func() bool {
		_, hasX := b.Get("x")
		_, hasY := b.Get("y")
		return b.Len() == 2 && hasX && hasY
	})
}
