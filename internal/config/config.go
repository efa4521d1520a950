// Package config resolves storymap's runtime configuration.
//
// Resolution order: built-in defaults, then an optional YAML file
// ($STORYMAP_CONFIG, else <data_dir>/config.yaml), then STORYMAP_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// ConfigFile is the default config filename inside the data directory.
const ConfigFile = "config.yaml"

var validStorage = map[string]bool{
	StorageFile:   true,
	StorageSQLite: true,
	StorageRedis:  true,
	StorageMemory: true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Config holds every tunable of the storymap server.
type Config struct {
	DataDir         string        `yaml:"data_dir"`
	Storage         string        `yaml:"storage"`
	SessionFile     string        `yaml:"session_file"`
	SQLitePath      string        `yaml:"sqlite_path"`
	SQLiteKey       string        `yaml:"sqlite_key"`
	RedisURL        string        `yaml:"redis_url"`
	RedisKey        string        `yaml:"redis_key"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	Environment     string        `yaml:"environment"`
	LogLevel        string        `yaml:"log_level"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	ExportDir       string        `yaml:"export_dir"`
	ReconcileOnLoad bool          `yaml:"reconcile_on_load"`
}

// Default returns the built-in configuration rooted at ~/.storymap.
func Default() Config {
	home, _ := os.UserHomeDir()
	return DefaultIn(filepath.Join(home, ".storymap"))
}

// DefaultIn returns the built-in configuration rooted at dataDir.
func DefaultIn(dataDir string) Config {
	return Config{
		DataDir:      dataDir,
		Storage:      StorageFile,
		SessionFile:  filepath.Join(dataDir, "session.json"),
		SQLitePath:   filepath.Join(dataDir, "storymap.db"),
		SQLiteKey:    "default",
		RedisURL:     "redis://localhost:6379/0",
		RedisKey:     "storymap:session",
		WriteTimeout: 5 * time.Second,
		Environment:  "development",
		LogLevel:     "info",
		ExportDir:    dataDir,
	}
}

// Load resolves the configuration from defaults, file and environment.
func Load() (Config, error) {
	cfg := Default()
	if dir := os.Getenv("STORYMAP_DATA_DIR"); dir != "" {
		cfg = DefaultIn(dir)
	}

	path := os.Getenv("STORYMAP_CONFIG")
	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.DataDir, ConfigFile)
	}
	if err := cfg.mergeFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeFile overlays the YAML file at path onto cfg. Keys absent from the
// file keep their current value.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Storage = getenv("STORYMAP_STORAGE", c.Storage)
	c.SessionFile = getenv("STORYMAP_SESSION_FILE", c.SessionFile)
	c.SQLitePath = getenv("STORYMAP_SQLITE_PATH", c.SQLitePath)
	c.SQLiteKey = getenv("STORYMAP_SQLITE_KEY", c.SQLiteKey)
	c.RedisURL = getenv("STORYMAP_REDIS_URL", c.RedisURL)
	c.RedisKey = getenv("STORYMAP_REDIS_KEY", c.RedisKey)
	c.Environment = getenv("STORYMAP_ENV", c.Environment)
	c.LogLevel = getenv("STORYMAP_LOG_LEVEL", c.LogLevel)
	c.MetricsAddr = getenv("STORYMAP_METRICS_ADDR", c.MetricsAddr)
	c.ExportDir = getenv("STORYMAP_EXPORT_DIR", c.ExportDir)
	c.WriteTimeout = time.Duration(getenvInt("STORYMAP_WRITE_TIMEOUT_MS", int(c.WriteTimeout/time.Millisecond))) * time.Millisecond
	c.ReconcileOnLoad = getenvBool("STORYMAP_RECONCILE_ON_LOAD", c.ReconcileOnLoad)
}

// Validate rejects unknown backends and log levels.
func (c Config) Validate() error {
	if !validStorage[c.Storage] {
		return fmt.Errorf("invalid storage %q: must be one of: file, sqlite, redis, memory", c.Storage)
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level %q: must be one of: debug, info, warn, error", c.LogLevel)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("invalid write timeout %s: must not be negative", c.WriteTimeout)
	}
	return nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
