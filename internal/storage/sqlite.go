package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const DefaultWatchInterval = 50 * time.Millisecond

// key/value store in a SQLite file, shared by every process that opens it.
// Removals are tombstones so pollers in other processes observe them.
type SQLiteStore struct {
	db            *sql.DB
	quota         int64
	watchInterval time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	stop   chan struct{}
}

type SQLiteOptions struct {
	Quota         int64
	WatchInterval time.Duration
}

func NewSQLite(path string, opts SQLiteOptions) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	if opts.WatchInterval <= 0 {
		opts.WatchInterval = DefaultWatchInterval
	}

	s := &SQLiteStore{
		db:            sqlDB,
		quota:         opts.Quota,
		watchInterval: opts.WatchInterval,
		stop:          make(chan struct{}),
	}
	if err := s.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate sqlite store: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		topic TEXT NOT NULL,
		value BLOB NOT NULL,
		created_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_log_topic_seq ON log(topic, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM kv WHERE key = ? AND value IS NOT NULL",
		key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.quota > 0 {
		var used int64
		err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(SUM(LENGTH(key) + LENGTH(value)), 0) FROM kv WHERE key != ? AND value IS NOT NULL",
			key,
		).Scan(&used)
		if err != nil {
			return fmt.Errorf("failed to compute usage: %w", err)
		}
		if used+int64(len(key)+len(value)) > s.quota {
			return ErrQuotaExceeded
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO kv (key, value, version, updated_at) VALUES (?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, version = kv.version + 1, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE kv SET value = NULL, version = version + 1, updated_at = CURRENT_TIMESTAMP WHERE key = ? AND value IS NOT NULL",
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) version(ctx context.Context, key string) (int64, []byte, bool, error) {
	var (
		version int64
		value   []byte
	)
	err := s.db.QueryRowContext(ctx, "SELECT version, value FROM kv WHERE key = ?", key).Scan(&version, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, err
	}
	return version, value, true, nil
}

// polls the key's version; changes between two polls coalesce into the latest one
func (s *SQLiteStore) Watch(ctx context.Context, key string) (<-chan Change, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.wg.Add(1)
	s.mu.Unlock()

	last, _, _, err := s.version(ctx, key)
	if err != nil {
		s.wg.Done()
		return nil, fmt.Errorf("failed to watch %s: %w", key, err)
	}

	ch := make(chan Change, watchBuffer)
	go func() {
		defer s.wg.Done()
		defer close(ch)

		ticker := time.NewTicker(s.watchInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
			}

			version, value, ok, err := s.version(ctx, key)
			if err != nil || !ok || version == last {
				continue
			}
			last = version

			change := Change{Key: key, Value: value, Removed: value == nil}
			select {
			case ch <- change:
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		}
	}()
	return ch, nil
}

func (s *SQLiteStore) Append(ctx context.Context, topic string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO log (topic, value, created_ms) VALUES (?, ?, ?)",
		topic, value, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", topic, err)
	}
	return nil
}

func (s *SQLiteStore) Trim(ctx context.Context, topic string, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	_, err := s.db.ExecContext(ctx, "DELETE FROM log WHERE topic = ? AND created_ms < ?", topic, cutoff)
	if err != nil {
		return fmt.Errorf("failed to trim %s: %w", topic, err)
	}
	return nil
}

type logRow struct {
	seq   int64
	value []byte
}

func (s *SQLiteStore) entriesAfter(ctx context.Context, topic string, after int64) ([]logRow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, value FROM log WHERE topic = ? AND seq > ? ORDER BY seq",
		topic, after,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []logRow
	for rows.Next() {
		var row logRow
		if err := rows.Scan(&row.seq, &row.value); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// polls for rows past the last delivered seq; every entry is delivered once, in order
func (s *SQLiteStore) Tail(ctx context.Context, topic string) (<-chan []byte, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.wg.Add(1)
	s.mu.Unlock()

	var last int64
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM log WHERE topic = ?", topic).Scan(&last)
	if err != nil {
		s.wg.Done()
		return nil, fmt.Errorf("failed to tail %s: %w", topic, err)
	}

	ch := make(chan []byte, watchBuffer)
	go func() {
		defer s.wg.Done()
		defer close(ch)

		ticker := time.NewTicker(s.watchInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
			}

			rows, err := s.entriesAfter(ctx, topic, last)
			if err != nil {
				continue
			}
			for _, row := range rows {
				select {
				case ch <- row.value:
					last = row.seq
				case <-ctx.Done():
					return
				case <-s.stop:
					return
				}
			}
		}
	}()
	return ch, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	return s.db.Close()
}
