package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vitorvargasdev/streamfluency/internal/apperr"
)

const (
	ConfigKey   = "streamfluency_auto_backup_config"
	MinBackups  = 1
	MaxBackups  = 30
	MinInterval = time.Minute
)

var ErrIntervalTooShort = apperr.New(apperr.InvalidInput, "", "backup interval too short")

type Frequency string

const (
	Hourly Frequency = "hourly"
	Daily  Frequency = "daily"
	Weekly Frequency = "weekly"
)

// unknown frequencies fall back to daily
func (f Frequency) Interval() time.Duration {
	switch f {
	case Hourly:
		return time.Hour
	case Weekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

type AutoConfig struct {
	Enabled      bool      `json:"enabled"`
	Frequency    Frequency `json:"frequency" validate:"oneof=hourly daily weekly"`
	MaxBackups   int       `json:"maxBackups" validate:"min=1,max=30"`
	AutoDownload bool      `json:"autoDownload"`
}

func DefaultAutoConfig() AutoConfig {
	return AutoConfig{Enabled: false, Frequency: Daily, MaxBackups: 7, AutoDownload: false}
}

func (c AutoConfig) active() bool {
	return c.Enabled && c.AutoDownload
}

var validate = validator.New()

type scheduler struct {
	// serializes re-arming
	armMu sync.Mutex

	mu          sync.Mutex
	initialized bool
	stop        func()
	done        chan struct{}
	interval    time.Duration
}

// persists cfg and re-arms the schedule, backing up immediately only when just enabled
func (s *Service) SetAutoConfig(ctx context.Context, cfg AutoConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return apperr.Wrap(apperr.InvalidInput, "backup.SetAutoConfig", err)
	}
	prev := s.AutoConfig(ctx)

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode auto-backup config: %w", err)
	}
	if s.kv != nil {
		if err := s.kv.Set(ctx, ConfigKey, data); err != nil {
			return fmt.Errorf("failed to save auto-backup config: %w", err)
		}
	}

	if !cfg.active() {
		s.Cancel()
		return nil
	}
	return s.schedule(cfg, !prev.active())
}

// arms the stored schedule once per process without an immediate backup
func (s *Service) InitAuto(ctx context.Context) error {
	s.scheduler.mu.Lock()
	if s.initialized {
		s.scheduler.mu.Unlock()
		return nil
	}
	s.initialized = true
	s.scheduler.mu.Unlock()

	cfg := s.AutoConfig(ctx)
	if !cfg.active() {
		return nil
	}
	return s.schedule(cfg, false)
}

func (s *Service) schedule(cfg AutoConfig, immediate bool) error {
	return s.scheduleEvery(cfg.Frequency.Interval(), cfg.MaxBackups, immediate)
}

func (s *Service) scheduleEvery(interval time.Duration, maxBackups int, immediate bool) error {
	if interval < MinInterval {
		return fmt.Errorf("%w: %s", ErrIntervalTooShort, interval)
	}

	s.armMu.Lock()
	defer s.armMu.Unlock()
	s.Cancel()

	s.scheduler.mu.Lock()
	defer s.scheduler.mu.Unlock()

	ticks, stopTicker := s.newTicker(interval)
	quit := make(chan struct{})
	done := make(chan struct{})
	var once sync.Once
	s.stop = func() {
		once.Do(func() {
			stopTicker()
			close(quit)
		})
	}
	s.done = done
	s.interval = interval

	s.logger.Infow("Scheduling auto-backup", "interval", interval, "immediate", immediate)

	go func() {
		defer close(done)
		if immediate {
			s.performAuto(maxBackups)
		}
		for {
			select {
			case <-quit:
				return
			case <-ticks:
				s.performAuto(maxBackups)
			}
		}
	}()
	return nil
}

func (s *Service) performAuto(maxBackups int) {
	ctx := context.Background()
	if _, err := s.Save(ctx, true); err != nil {
		s.logger.Errorw("Auto-backup failed", "error", err)
		return
	}
	if removed, err := s.Prune(ctx, maxBackups); err != nil {
		s.logger.Warnw("Failed to prune auto-backups", "error", err)
	} else if removed > 0 {
		s.logger.Debugw("Pruned auto-backups", "removed", removed)
	}
}

// stops the schedule and waits for a running backup to finish
func (s *Service) Cancel() {
	s.scheduler.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done, s.interval = nil, nil, 0
	s.scheduler.mu.Unlock()

	if stop == nil {
		return
	}
	stop()
	<-done
	s.logger.Debugw("Auto-backup cancelled")
}

// current schedule interval, zero when not armed
func (s *Service) Scheduled() time.Duration {
	s.scheduler.mu.Lock()
	defer s.scheduler.mu.Unlock()
	return s.interval
}

func (s *Service) Close() error {
	s.Cancel()
	return nil
}
