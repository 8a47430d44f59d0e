package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/vitorvargasdev/streamfluency/internal/apperr"
	"github.com/vitorvargasdev/streamfluency/internal/logging"
	"github.com/vitorvargasdev/streamfluency/internal/storage"
)

const StorageKey = "openfluency_settings"

type ViewMode string

const (
	ViewUnified ViewMode = "unified"
	ViewTabs    ViewMode = "tabs"
)

var (
	ErrInvalidLanguage = apperr.New(apperr.InvalidInput, "", "language tag must not be empty")
	ErrUnknownToggle   = apperr.New(apperr.InvalidInput, "", "unknown setting")
)

type Languages struct {
	Native   string `json:"native"`
	Learning string `json:"learning"`
}

type Providers struct {
	Translation    string `json:"translation"`
	Dictionary     string `json:"dictionary"`
	TargetLanguage string `json:"targetLanguage"`
}

// user preferences persisted as one JSON object
type Settings struct {
	Languages                Languages `json:"languages"`
	BlurNativeSubtitle       bool      `json:"blurNativeSubtitle"`
	ShowNativeSubtitle       bool      `json:"showNativeSubtitle"`
	ShowLearningSubtitle     bool      `json:"showLearningSubtitle"`
	IsEnabled                bool      `json:"isEnabled"`
	SubtitleViewMode         ViewMode  `json:"subtitleViewMode"`
	Providers                Providers `json:"providers"`
	EnableArrowKeyNavigation bool      `json:"enableArrowKeyNavigation"`
}

func Defaults() Settings {
	return Settings{
		Languages:            Languages{Native: "pt-BR", Learning: "en"},
		BlurNativeSubtitle:   true,
		ShowNativeSubtitle:   true,
		ShowLearningSubtitle: true,
		IsEnabled:            true,
		SubtitleViewMode:     ViewUnified,
		Providers: Providers{
			Translation:    "mymemory",
			Dictionary:     "freedictionary",
			TargetLanguage: "pt",
		},
		EnableArrowKeyNavigation: false,
	}
}

// stored form, absent fields keep their defaults
type stored struct {
	Languages                *Languages `json:"languages"`
	BlurNativeSubtitle       *bool      `json:"blurNativeSubtitle"`
	ShowNativeSubtitle       *bool      `json:"showNativeSubtitle"`
	ShowLearningSubtitle     *bool      `json:"showLearningSubtitle"`
	IsEnabled                *bool      `json:"isEnabled"`
	SubtitleViewMode         *ViewMode  `json:"subtitleViewMode"`
	Providers                *Providers `json:"providers"`
	EnableArrowKeyNavigation *bool      `json:"enableArrowKeyNavigation"`
}

// overlays a stored blob on the defaults
func Decode(data []byte) (Settings, error) {
	return Overlay(Defaults(), data)
}

// overlays the fields present in data on base
func Overlay(base Settings, data []byte) (Settings, error) {
	var raw stored
	if err := json.Unmarshal(data, &raw); err != nil {
		return base, apperr.Wrap(apperr.ParseFailed, "settings.Overlay", err)
	}

	s := base
	if raw.Languages != nil && raw.Languages.Native != "" && raw.Languages.Learning != "" {
		s.Languages = *raw.Languages
	}
	if raw.BlurNativeSubtitle != nil {
		s.BlurNativeSubtitle = *raw.BlurNativeSubtitle
	}
	if raw.ShowNativeSubtitle != nil {
		s.ShowNativeSubtitle = *raw.ShowNativeSubtitle
	}
	if raw.ShowLearningSubtitle != nil {
		s.ShowLearningSubtitle = *raw.ShowLearningSubtitle
	}
	if raw.IsEnabled != nil {
		s.IsEnabled = *raw.IsEnabled
	}
	if raw.SubtitleViewMode != nil {
		s.SubtitleViewMode = *raw.SubtitleViewMode
	}
	if raw.EnableArrowKeyNavigation != nil {
		s.EnableArrowKeyNavigation = *raw.EnableArrowKeyNavigation
	}
	if raw.Providers != nil {
		if raw.Providers.Translation != "" {
			s.Providers.Translation = raw.Providers.Translation
		}
		if raw.Providers.Dictionary != "" {
			s.Providers.Dictionary = raw.Providers.Dictionary
		}
		if raw.Providers.TargetLanguage != "" {
			s.Providers.TargetLanguage = raw.Providers.TargetLanguage
		}
	}
	return s.normalize(), nil
}

func (s Settings) normalize() Settings {
	if s.SubtitleViewMode != ViewUnified && s.SubtitleViewMode != ViewTabs {
		s.SubtitleViewMode = ViewUnified
	}
	return s
}

// boolean or two-state setting flipped by Toggle
type Toggle string

const (
	ToggleNativeBlur      Toggle = "blur"
	ToggleNativeVisible   Toggle = "native"
	ToggleLearningVisible Toggle = "learning"
	ToggleEnabled         Toggle = "enabled"
	ToggleViewMode        Toggle = "view-mode"
	ToggleArrowNavigation Toggle = "arrow-keys"
)

func Toggles() []Toggle {
	return []Toggle{ToggleNativeBlur, ToggleNativeVisible, ToggleLearningVisible, ToggleEnabled, ToggleViewMode, ToggleArrowNavigation}
}

// called after the languages actually changed
type LanguageChangeFunc func(ctx context.Context, languages Languages) error

type Store struct {
	kv     storage.KV
	logger *logging.Logger

	mu               sync.RWMutex
	current          Settings
	firstTime        bool
	onLanguageChange LanguageChangeFunc
}

func NewStore(kv storage.KV, logger *logging.Logger) *Store {
	return &Store{
		kv:        kv,
		logger:    logging.OrNop(logger).Named("settings"),
		current:   Defaults(),
		firstTime: true,
	}
}

func (s *Store) OnLanguageChange(fn LanguageChangeFunc) {
	s.mu.Lock()
	s.onLanguageChange = fn
	s.mu.Unlock()
}

// reads stored settings, returns false when nothing usable was stored
func (s *Store) Load(ctx context.Context) (bool, error) {
	data, ok, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		return false, fmt.Errorf("failed to read settings: %w", err)
	}
	if !ok || len(data) == 0 {
		return false, nil
	}

	loaded, err := Decode(data)
	if err != nil {
		s.logger.Warnw("Failed to decode stored settings, using defaults", "error", err)
		return false, nil
	}

	s.mu.Lock()
	s.current = loaded
	s.firstTime = false
	s.mu.Unlock()
	return true, nil
}

func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) Languages() Languages {
	return s.Get().Languages
}

func (s *Store) IsFirstTimeUser() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.firstTime
}

// persists the pair and fires the change callback only when a tag differs
func (s *Store) SetLanguages(ctx context.Context, native, learning string) error {
	native, learning = strings.TrimSpace(native), strings.TrimSpace(learning)
	if native == "" || learning == "" {
		return ErrInvalidLanguage
	}

	s.mu.Lock()
	prev := s.current
	next := prev
	next.Languages = Languages{Native: native, Learning: learning}
	if err := s.saveLocked(ctx, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.current = next
	s.firstTime = false
	callback := s.onLanguageChange
	s.mu.Unlock()

	if prev.Languages == next.Languages || callback == nil {
		return nil
	}
	s.logger.Infow("Languages changed", "native", native, "learning", learning)
	if err := callback(ctx, next.Languages); err != nil {
		return fmt.Errorf("failed to apply language change: %w", err)
	}
	return nil
}

func (s *Store) Toggle(ctx context.Context, t Toggle) (Settings, error) {
	return s.update(ctx, func(next *Settings) error {
		switch t {
		case ToggleNativeBlur:
			next.BlurNativeSubtitle = !next.BlurNativeSubtitle
		case ToggleNativeVisible:
			next.ShowNativeSubtitle = !next.ShowNativeSubtitle
		case ToggleLearningVisible:
			next.ShowLearningSubtitle = !next.ShowLearningSubtitle
		case ToggleEnabled:
			next.IsEnabled = !next.IsEnabled
		case ToggleViewMode:
			if next.SubtitleViewMode == ViewUnified {
				next.SubtitleViewMode = ViewTabs
			} else {
				next.SubtitleViewMode = ViewUnified
			}
		case ToggleArrowNavigation:
			next.EnableArrowKeyNavigation = !next.EnableArrowKeyNavigation
		default:
			return fmt.Errorf("%w: %s", ErrUnknownToggle, t)
		}
		return nil
	})
}

func (s *Store) SetTranslationProvider(ctx context.Context, provider string) (Settings, error) {
	return s.update(ctx, func(next *Settings) error {
		next.Providers.Translation = provider
		return nil
	})
}

func (s *Store) SetDictionaryProvider(ctx context.Context, provider string) (Settings, error) {
	return s.update(ctx, func(next *Settings) error {
		next.Providers.Dictionary = provider
		return nil
	})
}

func (s *Store) SetTargetLanguage(ctx context.Context, language string) (Settings, error) {
	return s.update(ctx, func(next *Settings) error {
		next.Providers.TargetLanguage = language
		return nil
	})
}

// overwrites every field, used by backup import
func (s *Store) Replace(ctx context.Context, settings Settings) error {
	_, err := s.update(ctx, func(next *Settings) error {
		*next = settings.normalize()
		return nil
	})
	return err
}

func (s *Store) update(ctx context.Context, mutate func(*Settings) error) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	if err := mutate(&next); err != nil {
		return s.current, err
	}
	if err := s.saveLocked(ctx, next); err != nil {
		return s.current, err
	}
	s.current = next
	return next, nil
}

func (s *Store) saveLocked(ctx context.Context, next Settings) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := s.kv.Set(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
