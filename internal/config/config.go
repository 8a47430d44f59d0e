package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix     = "STREAMFLUENCY"
	EnvConfigPath = "STREAMFLUENCY_CONFIG"
)

type Config struct {
	Languages   LanguagesConfig   `yaml:"languages" split_words:"true"`
	Player      PlayerConfig      `yaml:"player" split_words:"true"`
	Captions    CaptionsConfig    `yaml:"captions" split_words:"true"`
	Storage     StorageConfig     `yaml:"storage" split_words:"true"`
	Sync        SyncConfig        `yaml:"sync" split_words:"true"`
	Backup      BackupConfig      `yaml:"backup" split_words:"true"`
	Translation TranslationConfig `yaml:"translation" split_words:"true"`
	Server      ServerConfig      `yaml:"server" split_words:"true"`
	Log         LogConfig         `yaml:"log" split_words:"true"`
}

// language pair used until the user picks one
type LanguagesConfig struct {
	Native   string `yaml:"native" split_words:"true"`
	Learning string `yaml:"learning" split_words:"true"`
}

type PlayerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" split_words:"true"`
	LoopInterval time.Duration `yaml:"loop_interval" split_words:"true"`
	// simulated media length in seconds, 0 for unbounded
	Duration float64 `yaml:"duration" split_words:"true"`
}

const (
	CaptionsDir     = "dir"
	CaptionsFFmpeg  = "ffmpeg"
	CaptionsYouTube = "youtube"
)

type CaptionsConfig struct {
	Source string `yaml:"source" split_words:"true"`
	// dir: files named <base>.<lang>.<ext>; youtube: cached json3 payloads
	Dir     string `yaml:"dir" split_words:"true"`
	Base    string `yaml:"base" split_words:"true"`
	VideoID string `yaml:"video_id" split_words:"true"`
	HTML    bool   `yaml:"html" split_words:"true"`
	// ffmpeg: media file with embedded subtitle streams
	Media       string `yaml:"media" split_words:"true"`
	FFmpegPath  string `yaml:"ffmpeg_path" envconfig:"FFMPEG_PATH"`
	FFprobePath string `yaml:"ffprobe_path" envconfig:"FFPROBE_PATH"`

	RetryInitial    time.Duration `yaml:"retry_initial" split_words:"true"`
	RetryMaxElapsed time.Duration `yaml:"retry_max_elapsed" split_words:"true"`
	RetryMax        uint64        `yaml:"retry_max" split_words:"true"`
}

const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

type StorageConfig struct {
	Driver        string        `yaml:"driver" split_words:"true"`
	Path          string        `yaml:"path" split_words:"true"`
	Quota         int64         `yaml:"quota" split_words:"true"`
	WatchInterval time.Duration `yaml:"watch_interval" split_words:"true"`
}

const (
	TransportAuto    = "auto"
	TransportRedis   = "redis"
	TransportStorage = "storage"
)

type SyncConfig struct {
	Transport   string        `yaml:"transport" split_words:"true"`
	Channel     string        `yaml:"channel" split_words:"true"`
	FallbackKey string        `yaml:"fallback_key" split_words:"true"`
	Expiry      time.Duration `yaml:"expiry" split_words:"true"`
	Retention   time.Duration `yaml:"retention" split_words:"true"`
	Redis       RedisConfig   `yaml:"redis" split_words:"true"`
}

type RedisConfig struct {
	Addr           string        `yaml:"addr" split_words:"true"`
	Password       string        `yaml:"password" split_words:"true"`
	DB             int           `yaml:"db" split_words:"true"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" split_words:"true"`
}

const (
	SinkFile  = "file"
	SinkMinio = "minio"
)

type BackupConfig struct {
	Sink  string      `yaml:"sink" split_words:"true"`
	Dir   string      `yaml:"dir" split_words:"true"`
	Minio MinioConfig `yaml:"minio" split_words:"true"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint" split_words:"true"`
	AccessKey string `yaml:"access_key" split_words:"true"`
	SecretKey string `yaml:"secret_key" split_words:"true"`
	Bucket    string `yaml:"bucket" split_words:"true"`
	UseSSL    bool   `yaml:"use_ssl" split_words:"true"`
}

type TranslationConfig struct {
	// LLM used for track translation, the others are registered as fallbacks
	Provider    string `yaml:"provider" split_words:"true"`
	Model       string `yaml:"model" split_words:"true"`
	Concurrency int    `yaml:"concurrency" split_words:"true"`
	BatchSize   int    `yaml:"batch_size" split_words:"true"`

	// also read unprefixed, e.g. GEMINI_API_KEY
	GeminiAPIKey    string `yaml:"gemini_api_key" envconfig:"GEMINI_API_KEY"`
	OpenAIAPIKey    string `yaml:"openai_api_key" envconfig:"OPENAI_API_KEY"`
	AnthropicAPIKey string `yaml:"anthropic_api_key" envconfig:"ANTHROPIC_API_KEY"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr" split_words:"true"`
	AllowedOrigins []string `yaml:"allowed_origins" split_words:"true"`
}

type LogConfig struct {
	Verbose bool `yaml:"verbose" split_words:"true"`
}

func Default() *Config {
	return &Config{
		Languages: LanguagesConfig{
			Native:   "pt-BR",
			Learning: "en",
		},
		Player: PlayerConfig{
			PollInterval: 500 * time.Millisecond,
			LoopInterval: 100 * time.Millisecond,
		},
		Captions: CaptionsConfig{
			Source:          CaptionsDir,
			Dir:             ".",
			RetryInitial:    250 * time.Millisecond,
			RetryMaxElapsed: 5 * time.Second,
			RetryMax:        3,
		},
		Storage: StorageConfig{
			Driver:        DriverSQLite,
			Path:          "streamfluency.db",
			Quota:         5 << 20,
			WatchInterval: 50 * time.Millisecond,
		},
		Sync: SyncConfig{
			Transport:   TransportAuto,
			Channel:     "streamfluency-vocabulary",
			FallbackKey: "streamfluency_vocabulary_sync",
			Expiry:      5000 * time.Millisecond,
			Retention:   10 * time.Second,
			Redis: RedisConfig{
				ConnectTimeout: 3 * time.Second,
			},
		},
		Backup: BackupConfig{
			Sink: SinkFile,
			Dir:  ".",
			Minio: MinioConfig{
				Bucket: "streamfluency",
			},
		},
		Translation: TranslationConfig{
			Provider:    "gemini",
			Concurrency: 3,
			BatchSize:   50,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
	}
}

// Load layers defaults, the YAML file at path (or $STREAMFLUENCY_CONFIG),
// .env and STREAMFLUENCY_* environment variables, in that order of precedence.
// A missing .env is ignored, a missing YAML file is not.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// fields present in the file override the current values
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Languages.Native) == "" || strings.TrimSpace(c.Languages.Learning) == "" {
		problems = append(problems, "languages.native and languages.learning are required")
	}

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"player.poll_interval", c.Player.PollInterval},
		{"player.loop_interval", c.Player.LoopInterval},
		{"captions.retry_initial", c.Captions.RetryInitial},
		{"storage.watch_interval", c.Storage.WatchInterval},
		{"sync.expiry", c.Sync.Expiry},
		{"sync.retention", c.Sync.Retention},
		{"sync.redis.connect_timeout", c.Sync.Redis.ConnectTimeout},
	}
	for _, p := range positive {
		if p.value <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive", p.name))
		}
	}

	switch c.Captions.Source {
	case CaptionsDir, CaptionsYouTube:
	case CaptionsFFmpeg:
		if c.Captions.Media == "" {
			problems = append(problems, "captions.media is required for the ffmpeg source")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown captions source %q", c.Captions.Source))
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.Path == "" {
			problems = append(problems, "storage.path is required for sqlite")
		}
	case DriverMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.Storage.Quota < 0 {
		problems = append(problems, "storage.quota cannot be negative")
	}

	if c.Sync.Retention > 0 && c.Sync.Retention < c.Sync.Expiry {
		problems = append(problems, "sync.retention must be at least sync.expiry")
	}

	switch c.Sync.Transport {
	case TransportAuto, TransportStorage:
	case TransportRedis:
		if c.Sync.Redis.Addr == "" {
			problems = append(problems, "sync.redis.addr is required for the redis transport")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown sync transport %q", c.Sync.Transport))
	}

	switch c.Backup.Sink {
	case SinkFile:
	case SinkMinio:
		if c.Backup.Minio.Endpoint == "" || c.Backup.Minio.Bucket == "" {
			problems = append(problems, "backup.minio.endpoint and backup.minio.bucket are required")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown backup sink %q", c.Backup.Sink))
	}

	switch c.Translation.Provider {
	case "gemini", "openai", "anthropic":
	default:
		problems = append(problems, fmt.Sprintf("unknown translation provider %q", c.Translation.Provider))
	}
	if c.Translation.Concurrency <= 0 || c.Translation.BatchSize <= 0 {
		problems = append(problems, "translation.concurrency and translation.batch_size must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// API key configured for provider
func (t TranslationConfig) APIKey(provider string) string {
	switch provider {
	case "gemini":
		return t.GeminiAPIKey
	case "openai":
		return t.OpenAIAPIKey
	case "anthropic":
		return t.AnthropicAPIKey
	}
	return ""
}
