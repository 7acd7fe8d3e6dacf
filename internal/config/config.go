package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	newsURLEnv = "PULSE_NEWS_URL"
	topicEnv   = "PULSE_TOPIC"
	audioEnv   = "PULSE_AUDIO_ROOT"
)

// Config holds the user preferences shared by the CLI and the web server.
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Articles ArticlesConfig `yaml:"articles" json:"articles"`
	Audio    AudioConfig    `yaml:"audio" json:"audio"`
	Voice    VoiceConfig    `yaml:"voice" json:"voice"`
}

// ServerConfig is the web UI bind address.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// ArticlesConfig says where article batches come from. A non-empty File
// takes precedence over BaseURL.
type ArticlesConfig struct {
	BaseURL string        `yaml:"baseUrl" json:"baseUrl"`
	File    string        `yaml:"file,omitempty" json:"file,omitempty"`
	Topic   string        `yaml:"topic" json:"topic"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// RefreshInterval reloads the current topic periodically; zero disables it.
	RefreshInterval time.Duration `yaml:"refreshInterval" json:"refreshInterval"`
}

// AudioConfig describes the narration files.
type AudioConfig struct {
	Root             string        `yaml:"root" json:"root"`
	FallbackDuration time.Duration `yaml:"fallbackDuration" json:"fallbackDuration"`
}

// VoiceConfig controls the hands-free listening feature.
type VoiceConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	SessionTimeout time.Duration `yaml:"sessionTimeout" json:"sessionTimeout"`
}

var (
	// DefaultTopic is used when none is configured.
	DefaultTopic = "technology"
	// DefaultSessionTimeout mirrors a browser recognizer giving up on silence.
	DefaultSessionTimeout = 8 * time.Second
	// DefaultFallbackDuration is assumed for clips whose length cannot be read.
	DefaultFallbackDuration = 15 * time.Second
)

// DefaultConfig returns the initial configuration.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{Addr: "127.0.0.1:7070"},
		Articles: ArticlesConfig{
			BaseURL: "http://127.0.0.1:5000",
			Topic:   DefaultTopic,
			Timeout: 10 * time.Second,
		},
		Audio: AudioConfig{
			Root:             ".",
			FallbackDuration: DefaultFallbackDuration,
		},
		Voice: VoiceConfig{
			Enabled:        false,
			SessionTimeout: DefaultSessionTimeout,
		},
	}
}

// Normalize fills defaults and rejects invalid values.
func Normalize(cfg Config) (Config, error) {
	def := DefaultConfig()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Articles.Topic == "" {
		cfg.Articles.Topic = def.Articles.Topic
	}
	if cfg.Articles.BaseURL == "" && cfg.Articles.File == "" {
		cfg.Articles.BaseURL = def.Articles.BaseURL
	}
	if cfg.Articles.Timeout == 0 {
		cfg.Articles.Timeout = def.Articles.Timeout
	}
	if cfg.Audio.Root == "" {
		cfg.Audio.Root = def.Audio.Root
	}
	if cfg.Audio.FallbackDuration == 0 {
		cfg.Audio.FallbackDuration = def.Audio.FallbackDuration
	}
	if cfg.Voice.SessionTimeout == 0 {
		cfg.Voice.SessionTimeout = def.Voice.SessionTimeout
	}

	if cfg.Articles.Timeout < time.Second {
		return cfg, fmt.Errorf("articles.timeout must be >=1s")
	}
	if cfg.Articles.RefreshInterval < 0 || (cfg.Articles.RefreshInterval > 0 && cfg.Articles.RefreshInterval < time.Minute) {
		return cfg, fmt.Errorf("articles.refreshInterval must be 0 or >=1m")
	}
	if cfg.Audio.FallbackDuration < 0 {
		return cfg, fmt.Errorf("audio.fallbackDuration must not be negative")
	}
	if cfg.Voice.SessionTimeout < time.Second {
		return cfg, fmt.Errorf("voice.sessionTimeout must be >=1s")
	}
	return cfg, nil
}

// ApplyEnv overrides file values from the environment.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv(newsURLEnv); v != "" {
		cfg.Articles.BaseURL = v
	}
	if v := os.Getenv(topicEnv); v != "" {
		cfg.Articles.Topic = v
	}
	if v := os.Getenv(audioEnv); v != "" {
		cfg.Audio.Root = v
	}
	return cfg
}

// Store persists configuration so the CLI and the web server share it.
type Store interface {
	Load() (Config, error)
	Save(Config) error
}

// FileStore implements Store using a YAML file on an afero filesystem.
type FileStore struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store under the supplied path. Parent directories are created automatically.
func NewFileStore(fs afero.Fs, path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("path is required")
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	return &FileStore{fs: fs, path: path}, nil
}

// Path returns the file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the configuration file or returns defaults if it does not exist.
func (s *FileStore) Load() (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return Normalize(cfg)
}

// Save writes the configuration to disk atomically.
func (s *FileStore) Save(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename tmp: %w", err)
	}
	return nil
}

// DefaultPath returns ~/.config/pulse-voice/config.yaml (or a cwd fallback).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".config", "pulse-voice", "config.yaml")
	}
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, "pulse-voice-config.yaml")
}
