// Package config loads Basil's TOML configuration and environment secrets.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/hammamikhairi/basil/internal/logger"
)

//go:embed sample_config.toml
var sampleConfig string

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "BASIL_CONFIG"

// DefaultPath is used when neither a flag nor EnvConfigPath names a file.
const DefaultPath = "basil.toml"

// Environment variables holding provider credentials.
const (
	EnvGeminiKey         = "GEMINI_API_KEY"
	EnvOpenAIKey         = "OPENAI_API_KEY"
	EnvAzureSpeechKey    = "AZURE_SPEECH_KEY"
	EnvAzureSpeechRegion = "AZURE_SPEECH_REGION"
	EnvGPTChatKey        = "GPT_CHAT_KEY"
	EnvGPTChatEndpoint   = "GPT_CHAT_ENDPOINT"
)

// Providers.
const (
	ProviderAzure  = "azure"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Speech configures narration.
type Speech struct {
	Enabled      bool   `toml:"enabled"`
	Provider     string `toml:"provider"`
	Voice        string `toml:"voice"`
	NarrateSteps bool   `toml:"narrate_steps"`
	DiskCache    bool   `toml:"disk_cache"`
}

// Images configures step and finishing images.
type Images struct {
	Enabled        bool   `toml:"enabled"`
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	ArchiveDir     string `toml:"archive_dir"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Lookahead      int    `toml:"lookahead"`
}

// Tips configures the "how to eat" tips fetched on completion.
type Tips struct {
	Enabled        bool   `toml:"enabled"`
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timer configures the countdown and the nudge watcher.
type Timer struct {
	TickMillis           int `toml:"tick_millis"`
	WatchIntervalSeconds int `toml:"watch_interval_seconds"`
	PauseNudgeSeconds    int `toml:"pause_nudge_seconds"`
	IdleNudgeSeconds     int `toml:"idle_nudge_seconds"`
	AlmostDoneSeconds    int `toml:"almost_done_seconds"`
}

// Voice configures whisper voice input.
type Voice struct {
	Enabled       bool   `toml:"enabled"`
	WhisperBin    string `toml:"whisper_bin"`
	Model         string `toml:"model"`
	RecordSeconds int    `toml:"record_seconds"`
}

// Storage configures the key-value store behind history and the audio cache.
type Storage struct {
	DataDir  string `toml:"data_dir"`
	InMemory bool   `toml:"in_memory"`
}

// Recipes configures where extra YAML recipes are read from.
type Recipes struct {
	Dir string `toml:"dir"`
}

// Metrics configures the Prometheus endpoint. Empty Addr disables it.
type Metrics struct {
	Addr string `toml:"addr"`
}

// Logging configures the log level and destination.
type Logging struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Keys are provider credentials. They only come from the environment.
type Keys struct {
	Gemini      string
	OpenAI      string
	AzureKey    string
	AzureRegion string
	GPTKey      string
	GPTEndpoint string
}

// Config is the full application configuration.
type Config struct {
	Speech  Speech  `toml:"speech"`
	Images  Images  `toml:"images"`
	Tips    Tips    `toml:"tips"`
	Timer   Timer   `toml:"timer"`
	Voice   Voice   `toml:"voice"`
	Storage Storage `toml:"storage"`
	Recipes Recipes `toml:"recipes"`
	Metrics Metrics `toml:"metrics"`
	Logging Logging `toml:"logging"`

	Keys Keys `toml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Speech: Speech{
			Enabled:      true,
			Provider:     ProviderAzure,
			NarrateSteps: true,
			DiskCache:    true,
		},
		Images: Images{
			Enabled:        true,
			Provider:       ProviderGemini,
			ArchiveDir:     ".basil-images",
			TimeoutSeconds: 90,
		},
		Tips: Tips{
			Enabled:        true,
			Provider:       ProviderGemini,
			TimeoutSeconds: 45,
		},
		Timer: Timer{
			TickMillis:           1000,
			WatchIntervalSeconds: 5,
			PauseNudgeSeconds:    120,
			IdleNudgeSeconds:     180,
			AlmostDoneSeconds:    30,
		},
		Voice: Voice{
			WhisperBin:    "whisper-cli",
			Model:         "bin/ggml-small.bin",
			RecordSeconds: 2,
		},
		Storage: Storage{DataDir: ".basil-data"},
		Recipes: Recipes{Dir: "recipes"},
		Logging: Logging{Level: "normal", File: ".basil-logs/basil.log"},
	}
}

// Load locates, parses, and validates the configuration. It returns the
// resolved path and whether the file existed; a missing file yields the
// defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolvePath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	cfg.normalize()
	cfg.Keys = KeysFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func resolvePath(path string) (string, bool, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = DefaultPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false, fmt.Errorf("resolve config path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return abs, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", abs)
	}
	return abs, true, nil
}

// KeysFromEnv reads provider credentials from the environment.
func KeysFromEnv() Keys {
	return Keys{
		Gemini:      strings.TrimSpace(os.Getenv(EnvGeminiKey)),
		OpenAI:      strings.TrimSpace(os.Getenv(EnvOpenAIKey)),
		AzureKey:    strings.TrimSpace(os.Getenv(EnvAzureSpeechKey)),
		AzureRegion: strings.TrimSpace(os.Getenv(EnvAzureSpeechRegion)),
		GPTKey:      strings.TrimSpace(os.Getenv(EnvGPTChatKey)),
		GPTEndpoint: strings.TrimSpace(os.Getenv(EnvGPTChatEndpoint)),
	}
}

func (c *Config) normalize() {
	c.Speech.Provider = strings.ToLower(strings.TrimSpace(c.Speech.Provider))
	c.Images.Provider = strings.ToLower(strings.TrimSpace(c.Images.Provider))
	c.Tips.Provider = strings.ToLower(strings.TrimSpace(c.Tips.Provider))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Metrics.Addr = strings.TrimSpace(c.Metrics.Addr)
}

// Validate rejects unknown providers and non-positive intervals.
func (c *Config) Validate() error {
	var errs []error

	check := func(section, provider string, allowed ...string) {
		for _, a := range allowed {
			if provider == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s.provider: unknown provider %q (want one of %s)",
			section, provider, strings.Join(allowed, ", ")))
	}
	check("speech", c.Speech.Provider, ProviderAzure, ProviderGemini, ProviderOpenAI)
	check("images", c.Images.Provider, ProviderGemini, ProviderOpenAI)
	check("tips", c.Tips.Provider, ProviderGemini, ProviderOpenAI)

	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	positive("images.timeout_seconds", c.Images.TimeoutSeconds)
	positive("tips.timeout_seconds", c.Tips.TimeoutSeconds)
	positive("timer.tick_millis", c.Timer.TickMillis)
	positive("timer.watch_interval_seconds", c.Timer.WatchIntervalSeconds)
	positive("voice.record_seconds", c.Voice.RecordSeconds)

	nonNegative := func(name string, v int) {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", name, v))
		}
	}
	nonNegative("images.lookahead", c.Images.Lookahead)
	nonNegative("timer.pause_nudge_seconds", c.Timer.PauseNudgeSeconds)
	nonNegative("timer.idle_nudge_seconds", c.Timer.IdleNudgeSeconds)
	nonNegative("timer.almost_done_seconds", c.Timer.AlmostDoneSeconds)

	if _, ok := logger.ParseLevel(c.Logging.Level); !ok {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	if !c.Storage.InMemory && strings.TrimSpace(c.Storage.DataDir) == "" {
		errs = append(errs, errors.New("storage.data_dir is required unless storage.in_memory is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// LogLevel returns the parsed logging level.
func (c *Config) LogLevel() logger.Level {
	lvl, _ := logger.ParseLevel(c.Logging.Level)
	return lvl
}

// TickInterval is the countdown tick period.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Timer.TickMillis) * time.Millisecond
}

// ImageTimeout bounds one image request.
func (c *Config) ImageTimeout() time.Duration {
	return time.Duration(c.Images.TimeoutSeconds) * time.Second
}

// TipsTimeout bounds the tips request.
func (c *Config) TipsTimeout() time.Duration {
	return time.Duration(c.Tips.TimeoutSeconds) * time.Second
}

// StoreDir is where the persistent key-value store lives.
func (c *Config) StoreDir() string {
	return filepath.Join(c.Storage.DataDir, "kv")
}

// CreateSample writes the sample configuration to path. It refuses to
// overwrite an existing file.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create sample config: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(sampleConfig); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
