package vocabulary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vitorvargasdev/streamfluency/internal/apperr"
	"github.com/vitorvargasdev/streamfluency/internal/logging"
	"github.com/vitorvargasdev/streamfluency/internal/storage"
	"github.com/vitorvargasdev/streamfluency/internal/tabsync"
)

const (
	StorageKey       = "streamfluency_vocabulary"
	LegacyStorageKey = "openfluency_vocabulary"
)

var (
	ErrItemNotFound  = apperr.New(apperr.NotFound, "", "vocabulary item not found")
	ErrQuotaExceeded = apperr.New(apperr.StorageQuotaExceeded, "", "vocabulary storage quota exceeded")
	ErrInvalidItem   = apperr.New(apperr.InvalidInput, "", "invalid vocabulary item")
)

// user-facing messages recorded after a failed operation
const (
	msgLoadFailed   = "Failed to load vocabulary"
	msgAddFailed    = "Failed to add item"
	msgUpdateFailed = "Failed to update item"
	msgDeleteFailed = "Failed to delete item"
	msgClearFailed  = "Failed to clear vocabulary"
	msgImportFailed = "Failed to import vocabulary"
	msgQuota        = "Storage is full, remove some words or export a backup"
)

type Options struct {
	Storage storage.KV
	// nil disables cross-instance sync
	Transport tabsync.Transport
	Expiry    time.Duration
	Now       func() time.Time
	NewID     func() string
}

// emitted after every local or remote change
type Event struct {
	Action tabsync.Action
	ID     string
	Remote bool
}

// canonical vocabulary list of one instance, kept convergent with others over a transport
type Store struct {
	kv        storage.KV
	transport tabsync.Transport
	expiry    time.Duration
	now       func() time.Time
	newID     func() string
	validate  *validator.Validate
	logger    *logging.Logger

	mu      sync.RWMutex
	items   []Item
	lastErr string

	syncOnce sync.Once
	syncer   *tabsync.Syncer[Item]
	syncErr  error

	subsMu  sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

func NewStore(opts Options, logger *logging.Logger) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	return &Store{
		kv:        opts.Storage,
		transport: opts.Transport,
		expiry:    opts.Expiry,
		now:       opts.Now,
		newID:     opts.NewID,
		validate:  validator.New(),
		logger:    logging.OrNop(logger).Named("vocabulary"),
		subs:      make(map[int]func(Event)),
	}
}

// loads persisted items and starts the sync subscriber on first call
func (s *Store) Init(ctx context.Context) error {
	data, err := s.loadRaw(ctx)
	if err != nil {
		s.setError(msgLoadFailed)
		return fmt.Errorf("failed to load vocabulary: %w", err)
	}

	items := []Item{}
	if len(data) > 0 {
		decoded, dropped, err := decodeItems(data)
		if err != nil {
			s.setError(msgLoadFailed)
			s.logger.Warnw("Failed to decode stored vocabulary", "error", err)
		} else {
			items = decoded
			if dropped > 0 {
				s.logger.Warnw("Dropped malformed vocabulary items", "dropped", dropped)
			}
		}
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	s.logger.Debugw("Loaded vocabulary", "items", len(items))

	s.syncOnce.Do(func() {
		if s.transport == nil {
			return
		}
		s.syncer = tabsync.NewSyncer[Item](s.transport, remoteReplica{s}, tabsync.SyncerOptions{
			Expiry: s.expiry,
			Now:    s.now,
		}, s.logger)
		s.syncErr = s.syncer.Start(context.WithoutCancel(ctx))
	})
	if s.syncErr != nil {
		return fmt.Errorf("failed to start vocabulary sync: %w", s.syncErr)
	}
	return nil
}

// reads the current key, migrating the legacy key when the current one is empty
func (s *Store) loadRaw(ctx context.Context) ([]byte, error) {
	data, ok, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		return nil, err
	}
	if ok && len(data) > 0 {
		return data, nil
	}

	legacy, ok, err := s.kv.Get(ctx, LegacyStorageKey)
	if err != nil || !ok || len(legacy) == 0 {
		return nil, err
	}
	if err := s.kv.Set(ctx, StorageKey, legacy); err != nil {
		return nil, fmt.Errorf("failed to migrate legacy vocabulary: %w", err)
	}
	if err := s.kv.Remove(ctx, LegacyStorageKey); err != nil {
		return nil, fmt.Errorf("failed to remove legacy vocabulary: %w", err)
	}
	s.logger.Infow("Migrated legacy vocabulary key", "from", LegacyStorageKey, "to", StorageKey)
	return legacy, nil
}

func (s *Store) AddItem(ctx context.Context, draft Draft) (Item, error) {
	item := Item{
		ID:             s.newID(),
		Text:           draft.Text,
		Context:        draft.Context,
		Translation:    draft.Translation,
		Notes:          draft.Notes,
		Timestamp:      s.now().UnixMilli(),
		VideoURL:       draft.VideoURL,
		VideoTitle:     draft.VideoTitle,
		VideoTimestamp: draft.VideoTimestamp,
		Language:       draft.Language,
	}
	if err := s.check(item); err != nil {
		return Item{}, err
	}

	s.mu.Lock()
	next := append(cloneItems(s.items), item)
	if err := s.persistLocked(ctx, next, msgAddFailed); err != nil {
		s.mu.Unlock()
		return Item{}, err
	}
	s.items = next
	s.mu.Unlock()

	s.broadcast(ctx, tabsync.ActionAdd, item)
	s.emit(Event{Action: tabsync.ActionAdd, ID: item.ID})
	return item, nil
}

// merges patch into the item, the id never changes
func (s *Store) UpdateItem(ctx context.Context, id string, patch Patch) (Item, error) {
	s.mu.Lock()
	index := indexOf(s.items, id)
	if index < 0 {
		s.mu.Unlock()
		return Item{}, fmt.Errorf("failed to update %s: %w", id, ErrItemNotFound)
	}

	updated := patch.apply(s.items[index])
	if err := s.check(updated); err != nil {
		s.mu.Unlock()
		return Item{}, err
	}

	next := cloneItems(s.items)
	next[index] = updated
	if err := s.persistLocked(ctx, next, msgUpdateFailed); err != nil {
		s.mu.Unlock()
		return Item{}, err
	}
	s.items = next
	s.mu.Unlock()

	s.broadcast(ctx, tabsync.ActionUpdate, updated)
	s.emit(Event{Action: tabsync.ActionUpdate, ID: id})
	return updated, nil
}

// absent ids are not an error
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	index := indexOf(s.items, id)
	if index < 0 {
		s.mu.Unlock()
		return nil
	}

	next := append(cloneItems(s.items[:index]), s.items[index+1:]...)
	if err := s.persistLocked(ctx, next, msgDeleteFailed); err != nil {
		s.mu.Unlock()
		return err
	}
	s.items = next
	s.mu.Unlock()

	s.broadcast(ctx, tabsync.ActionDelete, id)
	s.emit(Event{Action: tabsync.ActionDelete, ID: id})
	return nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	if len(s.items) == 0 {
		s.mu.Unlock()
		return nil
	}
	if err := s.persistLocked(ctx, []Item{}, msgClearFailed); err != nil {
		s.mu.Unlock()
		return err
	}
	s.items = []Item{}
	s.mu.Unlock()

	s.broadcast(ctx, tabsync.ActionClear, nil)
	s.emit(Event{Action: tabsync.ActionClear})
	return nil
}

// swaps the whole list, used by backup import
func (s *Store) Replace(ctx context.Context, items []Item) error {
	for _, item := range items {
		if err := s.check(item); err != nil {
			return err
		}
	}
	next := cloneItems(items)

	s.mu.Lock()
	if err := s.persistLocked(ctx, next, msgImportFailed); err != nil {
		s.mu.Unlock()
		return err
	}
	s.items = next
	s.mu.Unlock()

	s.broadcast(ctx, tabsync.ActionClear, nil)
	for _, item := range next {
		s.broadcast(ctx, tabsync.ActionAdd, item)
	}
	s.emit(Event{Action: tabsync.ActionClear})
	return nil
}

// true when an item has the same normalized text and context, nil context only matches nil
func (s *Store) CheckIfExists(text string, itemContext *string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if item.matches(text, itemContext) {
			return true
		}
	}
	return false
}

func (s *Store) check(item Item) error {
	if err := s.validate.Struct(item); err != nil {
		return &apperr.Error{Code: apperr.InvalidInput, Op: "vocabulary.validate", Msg: ErrInvalidItem.Msg, Err: err}
	}
	return nil
}

func (s *Store) persistLocked(ctx context.Context, items []Item, failure string) error {
	data, err := json.Marshal(items)
	if err != nil {
		s.lastErr = failure
		return fmt.Errorf("failed to encode vocabulary: %w", err)
	}

	if err := s.kv.Set(ctx, StorageKey, data); err != nil {
		if errors.Is(err, storage.ErrQuotaExceeded) {
			s.lastErr = msgQuota
			s.logger.Warnw("Vocabulary storage quota exceeded", "items", len(items), "bytes", len(data))
			return &apperr.Error{Code: apperr.StorageQuotaExceeded, Op: "vocabulary.save", Msg: ErrQuotaExceeded.Msg, Err: err}
		}
		s.lastErr = failure
		s.logger.Errorw("Failed to save vocabulary", "error", err)
		return fmt.Errorf("failed to save vocabulary: %w", err)
	}
	s.lastErr = ""
	return nil
}

// runs only after a successful persist, failures never undo the local write
func (s *Store) broadcast(ctx context.Context, action tabsync.Action, data any) {
	if s.syncer == nil {
		return
	}
	if err := s.syncer.Broadcast(ctx, action, data); err != nil {
		s.logger.Warnw("Failed to broadcast vocabulary change", "action", action, "error", err)
	}
}

// last user-facing error, empty after a successful write
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Store) ClearError() {
	s.setError("")
}

func (s *Store) setError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

// registers fn for change events, returns the unsubscribe func
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) emit(ev Event) {
	s.subsMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// stops the sync subscriber, the transport is owned by the caller
func (s *Store) Close() error {
	if s.syncer == nil {
		return nil
	}
	return s.syncer.Close()
}

func indexOf(items []Item, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
