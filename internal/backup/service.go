package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vitorvargasdev/streamfluency/internal/logging"
	"github.com/vitorvargasdev/streamfluency/internal/settings"
	"github.com/vitorvargasdev/streamfluency/internal/storage"
	"github.com/vitorvargasdev/streamfluency/internal/vocabulary"
)

type VocabularyStore interface {
	Items() []vocabulary.Item
	Replace(ctx context.Context, items []vocabulary.Item) error
}

type SettingsStore interface {
	Get() settings.Settings
	Replace(ctx context.Context, s settings.Settings) error
}

// outcome of a successful import
type Report struct {
	Items    int      `json:"items"`
	Warnings []string `json:"warnings,omitempty"`
}

type Options struct {
	Vocabulary VocabularyStore
	Settings   SettingsStore
	// holds the auto-backup config
	Storage storage.KV
	Sink    Sink
	Now     func() time.Time
	// nil uses time.NewTicker
	NewTicker func(d time.Duration) (<-chan time.Time, func())
}

type Service struct {
	vocab     VocabularyStore
	settings  SettingsStore
	kv        storage.KV
	sink      Sink
	now       func() time.Time
	newTicker func(d time.Duration) (<-chan time.Time, func())
	logger    *logging.Logger

	scheduler
}

func NewService(opts Options, logger *logging.Logger) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewTicker == nil {
		opts.NewTicker = func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		}
	}
	return &Service{
		vocab:     opts.Vocabulary,
		settings:  opts.Settings,
		kv:        opts.Storage,
		sink:      opts.Sink,
		now:       opts.Now,
		newTicker: opts.NewTicker,
		logger:    logging.OrNop(logger).Named("backup"),
	}
}

// snapshot of the current stores
func (s *Service) Export() Backup {
	b := Backup{
		Version:   Version,
		Timestamp: s.now().UnixMilli(),
		Data: Data{
			Vocabulary: s.vocab.Items(),
			Settings:   s.settings.Get(),
		},
	}
	s.logger.Debugw("Backup exported", "vocabularyCount", len(b.Data.Vocabulary), "timestamp", time.UnixMilli(b.Timestamp).UTC().Format(time.RFC3339))
	return b
}

// writes a backup to the sink and returns its location
func (s *Service) Save(ctx context.Context, auto bool) (string, error) {
	if s.sink == nil {
		return "", fmt.Errorf("no backup sink configured")
	}
	b := s.Export()
	data, err := b.Encode()
	if err != nil {
		return "", fmt.Errorf("failed to encode backup: %w", err)
	}

	name := Filename(time.UnixMilli(b.Timestamp))
	location, err := s.sink.Save(ctx, name, data, auto)
	if err != nil {
		return "", err
	}
	s.logger.Infow("Backup saved", "location", location, "auto", auto, "items", len(b.Data.Vocabulary))
	return location, nil
}

func (s *Service) WriteTo(w io.Writer) error {
	data, err := s.Export().Encode()
	if err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// validates the whole document before either store is touched
func (s *Service) Import(ctx context.Context, r io.Reader) (Report, error) {
	content, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return Report{}, fmt.Errorf("failed to read backup: %w", err)
	}
	if len(content) > MaxFileSize {
		return Report{}, ErrFileTooLarge
	}

	b, warnings, err := Validate(content, s.settings.Get(), s.now())
	if err != nil {
		return Report{}, err
	}
	for _, w := range warnings {
		s.logger.Warnw("Backup timestamp seems invalid", "detail", w)
	}
	b = Sanitize(b)

	if err := s.vocab.Replace(ctx, b.Data.Vocabulary); err != nil {
		return Report{}, fmt.Errorf("failed to import vocabulary: %w", err)
	}
	if err := s.settings.Replace(ctx, b.Data.Settings); err != nil {
		return Report{}, fmt.Errorf("failed to import settings: %w", err)
	}

	s.logger.Infow("Backup imported", "items", len(b.Data.Vocabulary), "version", b.Version)
	return Report{Items: len(b.Data.Vocabulary), Warnings: warnings}, nil
}

func (s *Service) ImportFile(ctx context.Context, path string) (Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Report{}, fmt.Errorf("failed to read backup file: %w", err)
	}
	if info.Size() > MaxFileSize {
		return Report{}, ErrFileTooLarge
	}

	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("failed to open backup file: %w", err)
	}
	defer f.Close()
	return s.Import(ctx, f)
}

// removes the oldest automatic backups beyond limit
func (s *Service) Prune(ctx context.Context, limit int) (int, error) {
	if s.sink == nil || limit < MinBackups {
		return 0, nil
	}
	backups, err := s.sink.List(ctx, true)
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := limit; i < len(backups); i++ {
		if err := s.sink.Delete(ctx, backups[i].Path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (s *Service) AutoConfig(ctx context.Context) AutoConfig {
	cfg := DefaultAutoConfig()
	if s.kv == nil {
		return cfg
	}
	data, ok, err := s.kv.Get(ctx, ConfigKey)
	if err != nil || !ok {
		return cfg
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		s.logger.Warnw("Failed to load auto-backup config", "error", err)
		return DefaultAutoConfig()
	}
	return cfg
}
