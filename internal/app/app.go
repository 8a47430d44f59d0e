package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/vitorvargasdev/streamfluency/internal/backup"
	"github.com/vitorvargasdev/streamfluency/internal/captions"
	"github.com/vitorvargasdev/streamfluency/internal/config"
	"github.com/vitorvargasdev/streamfluency/internal/ffmpeg"
	"github.com/vitorvargasdev/streamfluency/internal/logging"
	"github.com/vitorvargasdev/streamfluency/internal/playback"
	"github.com/vitorvargasdev/streamfluency/internal/player"
	"github.com/vitorvargasdev/streamfluency/internal/selection"
	"github.com/vitorvargasdev/streamfluency/internal/settings"
	"github.com/vitorvargasdev/streamfluency/internal/storage"
	"github.com/vitorvargasdev/streamfluency/internal/tabsync"
	"github.com/vitorvargasdev/streamfluency/internal/translate"
	"github.com/vitorvargasdev/streamfluency/internal/vocabulary"
)

// every long-lived service of one process, built once
type App struct {
	Config *config.Config
	Logger *logging.Logger

	Storage    storage.Backend
	Settings   *settings.Store
	Transport  tabsync.Transport
	Vocabulary *vocabulary.Store
	Backup     *backup.Service
	Translate  *translate.Service
	// nil when no LLM key is configured
	TrackTranslator translate.BatchTranslator
	Captions        *captions.Fetcher
	Player          *player.Store
	Simulated       *player.Simulated
	Playback        *playback.Store
	Popup           *selection.Popup

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	a := &App{Config: cfg, Logger: logger}

	if err := a.build(ctx); err != nil {
		if cerr := a.Close(); cerr != nil {
			logger.Warnw("Failed to close partially built app", "error", cerr)
		}
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	kv, err := openStorage(cfg.Storage, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	a.Storage = kv
	a.onClose(kv.Close)

	a.Settings = settings.NewStore(kv, a.Logger)
	found, err := a.Settings.Load(ctx)
	if err != nil {
		return err
	}
	if !found && a.Settings.Languages() != (settings.Languages{Native: cfg.Languages.Native, Learning: cfg.Languages.Learning}) {
		if err := a.Settings.SetLanguages(ctx, cfg.Languages.Native, cfg.Languages.Learning); err != nil {
			return fmt.Errorf("failed to apply configured languages: %w", err)
		}
	}

	a.Transport, err = tabsync.Select(ctx, tabsync.SelectOptions{
		Mode: tabsync.Mode(cfg.Sync.Transport),
		Redis: tabsync.RedisOptions{
			Addr:           cfg.Sync.Redis.Addr,
			Password:       cfg.Sync.Redis.Password,
			DB:             cfg.Sync.Redis.DB,
			Channel:        cfg.Sync.Channel,
			ConnectTimeout: cfg.Sync.Redis.ConnectTimeout,
		},
		Storage: tabsync.StorageOptions{
			Key:       cfg.Sync.FallbackKey,
			Retention: cfg.Sync.Retention,
		},
		Log: kv,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to select sync transport: %w", err)
	}
	a.onClose(a.Transport.Close)

	a.Vocabulary = vocabulary.NewStore(vocabulary.Options{
		Storage:   kv,
		Transport: a.Transport,
		Expiry:    cfg.Sync.Expiry,
	}, a.Logger)
	a.onClose(a.Vocabulary.Close)
	if err := a.Vocabulary.Init(ctx); err != nil {
		return err
	}

	sink, err := openSink(ctx, cfg.Backup)
	if err != nil {
		return fmt.Errorf("failed to open backup sink: %w", err)
	}
	a.Backup = backup.NewService(backup.Options{
		Vocabulary: a.Vocabulary,
		Settings:   a.Settings,
		Storage:    kv,
		Sink:       sink,
	}, a.Logger)
	a.onClose(a.Backup.Close)
	if err := a.Backup.InitAuto(ctx); err != nil {
		a.Logger.Warnw("Failed to start auto backup", "error", err)
	}

	if err := a.buildTranslation(ctx); err != nil {
		return err
	}

	source, err := openSource(cfg.Captions, a.Logger)
	if err != nil {
		return err
	}
	a.Captions = captions.NewFetcher(source, captions.DefaultLanguages(), captions.RetryPolicy{
		InitialInterval: cfg.Captions.RetryInitial,
		MaxElapsedTime:  cfg.Captions.RetryMaxElapsed,
		MaxRetries:      cfg.Captions.RetryMax,
	}, a.Logger)

	var simOpts []player.SimulatedOption
	if cfg.Player.Duration > 0 {
		simOpts = append(simOpts, player.WithDuration(cfg.Player.Duration))
	}
	a.Simulated = player.NewSimulated(simOpts...)
	a.Player = player.NewStore(a.Logger)
	a.Player.Load(a.Simulated)

	a.Playback = playback.NewStore(a.Player, a.Captions, playback.Options{
		PollInterval: cfg.Player.PollInterval,
		LoopInterval: cfg.Player.LoopInterval,
	}, a.Logger)
	a.onClose(a.Playback.Close)
	langs := a.Settings.Languages()
	a.Playback.SetLanguages(langs.Native, langs.Learning)
	a.Settings.OnLanguageChange(func(ctx context.Context, l settings.Languages) error {
		a.Playback.SetLanguages(l.Native, l.Learning)
		a.Refresh(ctx)
		return nil
	})

	a.Popup = selection.NewPopup(selection.Options{
		Lookup: a.Lookup,
		Exists: func(sel selection.Selection) bool {
			line := sel.Context
			return a.Vocabulary.CheckIfExists(sel.Text, &line)
		},
		Save:  a.saveSelection,
		Pause: a.Player.Pause,
	}, a.Logger)
	a.onClose(func() error {
		a.Popup.Close()
		return nil
	})

	return nil
}

// registers an LLM adapter for every configured API key
func (a *App) buildTranslation(ctx context.Context) error {
	cfg := a.Config.Translation
	registry := translate.NewRegistry()
	target := a.Settings.Get().Providers.TargetLanguage

	providers := []translate.Provider{
		translate.Provider(cfg.Provider),
		translate.ProviderGemini,
		translate.ProviderOpenAI,
		translate.ProviderAnthropic,
	}
	for _, p := range providers {
		if _, ok := registry.Translator(p); ok {
			continue
		}
		key := cfg.APIKey(string(p))
		if key == "" {
			continue
		}
		opts := translate.Options{
			TargetLanguage: target,
			BatchSize:      cfg.BatchSize,
		}
		if string(p) == cfg.Provider {
			opts.Model = cfg.Model
		}
		llm, err := translate.Factory(ctx, p, key, opts)
		if err != nil {
			return fmt.Errorf("failed to create %s translator: %w", p, err)
		}
		registry.RegisterTranslator(p, llm)
		registry.RegisterDictionary(p, llm)
		if a.TrackTranslator == nil {
			a.TrackTranslator = llm
		}
	}

	if len(registry.TranslatorIDs()) == 0 {
		a.Logger.Warnw("No translation provider configured, lookups will return no translation")
	}
	a.Translate = translate.NewService(registry, a.Logger)
	return nil
}

// translation and definition using the current settings
func (a *App) Lookup(ctx context.Context, text string) translate.Lookup {
	s := a.Settings.Get()
	return a.Translate.Lookup(ctx, text, translate.LookupOptions{
		SourceLang:  s.Languages.Learning,
		TargetLang:  s.Providers.TargetLanguage,
		Translation: translate.Provider(s.Providers.Translation),
		Dictionary:  translate.Provider(s.Providers.Dictionary),
	})
}

func (a *App) saveSelection(ctx context.Context, sel selection.Selection) error {
	line := sel.Context
	at := a.Player.CurrentTime()
	_, err := a.Vocabulary.AddItem(ctx, vocabulary.Draft{
		Text:           sel.Text,
		Context:        &line,
		VideoURL:       a.Config.Captions.Media,
		VideoTitle:     a.Config.Captions.Base,
		VideoTimestamp: &at,
		Language:       a.Settings.Languages().Learning,
	})
	return err
}

// Refresh refetches both tracks. A missing native track is synthesized from
// the learning track when a track translator is available.
func (a *App) Refresh(ctx context.Context) {
	tracks := a.Playback.Refresh(ctx)
	if len(tracks.Native) > 0 || len(tracks.Learning) == 0 || a.TrackTranslator == nil {
		return
	}

	a.Logger.Infow("Native track missing, translating learning track",
		"segments", len(tracks.Learning),
	)
	native, err := translate.TranslateTrack(ctx, a.TrackTranslator, tracks.Learning, a.Config.Translation.Concurrency)
	if err != nil {
		a.Logger.Warnw("Failed to translate learning track", "error", err)
		return
	}
	tracks.Native = native
	a.Playback.SetTracks(tracks)
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// closes everything in reverse construction order
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openStorage(cfg config.StorageConfig, logger *logging.Logger) (storage.Backend, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return storage.NewMemoryStore(int(cfg.Quota), storage.WithLogger(logger.Named("storage"))), nil
	case config.DriverSQLite:
		return storage.NewSQLite(cfg.Path, storage.SQLiteOptions{
			Quota:         cfg.Quota,
			WatchInterval: cfg.WatchInterval,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func openSink(ctx context.Context, cfg config.BackupConfig) (backup.Sink, error) {
	switch cfg.Sink {
	case config.SinkFile:
		return backup.NewFileSink(cfg.Dir), nil
	case config.SinkMinio:
		return backup.NewMinioSink(ctx, backup.MinioOptions{
			Endpoint:        cfg.Minio.Endpoint,
			AccessKeyID:     cfg.Minio.AccessKey,
			SecretAccessKey: cfg.Minio.SecretKey,
			Bucket:          cfg.Minio.Bucket,
			UseSSL:          cfg.Minio.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown backup sink %q", cfg.Sink)
	}
}

func openSource(cfg config.CaptionsConfig, logger *logging.Logger) (captions.Source, error) {
	switch cfg.Source {
	case config.CaptionsDir:
		return captions.NewDirSource(cfg.Dir, cfg.Base), nil
	case config.CaptionsYouTube:
		return captions.NewYouTubeSource(cfg.Dir, cfg.VideoID, cfg.HTML), nil
	case config.CaptionsFFmpeg:
		paths, err := ffmpeg.Resolve(ffmpeg.BinaryPaths{
			FFmpeg:  cfg.FFmpegPath,
			FFprobe: cfg.FFprobePath,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to locate ffmpeg: %w", err)
		}
		return captions.NewFFmpegSource(cfg.Media, paths, "", logger), nil
	default:
		return nil, fmt.Errorf("unknown captions source %q", cfg.Source)
	}
}
