package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Library  LibraryConfig  `yaml:"library"`
	Database DatabaseConfig `yaml:"database"`
	Prefs    PrefsConfig    `yaml:"prefs"`
	Remote   RemoteConfig   `yaml:"remote"`
	Content  ContentConfig  `yaml:"content"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig is the workspace API served by "shotboard serve".
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StoreConfig is the remote tag/playlist service run by "shotboard store".
type StoreConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type LibraryConfig struct {
	Path            string        `yaml:"path"`
	Watch           bool          `yaml:"watch"`
	Debounce        time.Duration `yaml:"debounce"`
	ScanConcurrency int           `yaml:"scan_concurrency"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type PrefsConfig struct {
	Dir string `yaml:"dir"`
}

// RemoteConfig points the workspace at a store. An empty URL opens the
// database in-process instead.
type RemoteConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type ContentConfig struct {
	CacheCapacity int   `yaml:"cache_capacity"`
	CacheMaxSize  int64 `yaml:"cache_max_size"` // bytes
	MaxItemSize   int64 `yaml:"max_item_size"`  // bytes
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         6550,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0,
		},
		Store: StoreConfig{
			Host:         "0.0.0.0",
			Port:         6551,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Library: LibraryConfig{
			Path:            "",
			Watch:           false,
			Debounce:        750 * time.Millisecond,
			ScanConcurrency: 8,
		},
		Database: DatabaseConfig{
			Path: "data/shotboard.db",
		},
		Prefs: PrefsConfig{
			Dir: "data/prefs",
		},
		Remote: RemoteConfig{
			URL:     "",
			Timeout: 15 * time.Second,
		},
		Content: ContentConfig{
			CacheCapacity: 256,
			CacheMaxSize:  128 * 1024 * 1024, // 128 MB
			MaxItemSize:   4 * 1024 * 1024,   // 4 MB
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
