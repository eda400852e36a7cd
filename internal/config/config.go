package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/loykin/updatewatch/internal/logger"
)

// Default status file locations. Both can be replaced at link time with
// -ldflags "-X github.com/loykin/updatewatch/internal/config.DefaultWatchPath=...".
var (
	DefaultWatchPath     = "/var/lib/update_tracker/current_update_step.json"
	DefaultSimulatorPath = "current_update_step.json"
)

const (
	DefaultInterval          = 2 * time.Second
	DefaultSimulatorInterval = 3 * time.Second
	DefaultServerBasePath    = "/api"
	DefaultDisplayWidth      = 40

	envPrefix = "UPDATEWATCH"
)

// Config represents the top-level TOML structure.
type Config struct {
	Watch     WatchConfig     `toml:"watch" mapstructure:"watch"`
	Simulator SimulatorConfig `toml:"simulator" mapstructure:"simulator"`
	Log       LogConfig       `toml:"log" mapstructure:"log"`
	Server    ServerConfig    `toml:"server" mapstructure:"server"`
	Metrics   MetricsConfig   `toml:"metrics" mapstructure:"metrics"`
	History   HistoryConfig   `toml:"history" mapstructure:"history"`
	Display   DisplayConfig   `toml:"display" mapstructure:"display"`
}

type WatchConfig struct {
	Path      string        `toml:"path" mapstructure:"path"`
	Interval  time.Duration `toml:"interval" mapstructure:"interval"`
	Bootstrap bool          `toml:"bootstrap" mapstructure:"bootstrap"`
}

type SimulatorConfig struct {
	Enabled  bool          `toml:"enabled" mapstructure:"enabled"`
	Interval time.Duration `toml:"interval" mapstructure:"interval"`
}

type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	Format     string `toml:"format" mapstructure:"format"`
	Color      bool   `toml:"color" mapstructure:"color"`
	File       string `toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// ServerConfig enables the HTTP control surface when Listen is set.
type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"`
}

// HistoryConfig enables status change history when DSN is set.
type HistoryConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type DisplayConfig struct {
	Terminal bool `toml:"terminal" mapstructure:"terminal"`
	Width    int  `toml:"width" mapstructure:"width"`
}

// Logger converts the log section to a logger.Config.
func (l LogConfig) Logger() logger.Config {
	return logger.Config{
		Level:      l.Level,
		Format:     l.Format,
		Color:      l.Color,
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("watch.path", "")
	v.SetDefault("watch.interval", DefaultInterval)
	v.SetDefault("watch.bootstrap", true)
	v.SetDefault("simulator.enabled", false)
	v.SetDefault("simulator.interval", DefaultSimulatorInterval)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.color", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)
	v.SetDefault("server.listen", "")
	v.SetDefault("server.base_path", DefaultServerBasePath)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9090")
	v.SetDefault("history.dsn", "")
	v.SetDefault("display.terminal", false)
	v.SetDefault("display.width", DefaultDisplayWidth)
}

// Overrides maps dotted keys (e.g. "watch.interval") to values that take
// precedence over the file and the environment. CLI flags use it.
type Overrides map[string]any

func newViper(path string, set Overrides) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	for k, val := range set {
		v.Set(k, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if c.Watch.Path == "" {
		c.Watch.Path = DefaultPath(c.Simulator.Enabled)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// DefaultPath returns the status file location used when none is configured.
func DefaultPath(simulator bool) string {
	if simulator {
		return DefaultSimulatorPath
	}
	return DefaultWatchPath
}

// Load reads the TOML file at path (optional) and applies UPDATEWATCH_*
// environment variables and then set on top of the defaults.
func Load(path string, set Overrides) (*Config, error) {
	v, err := newViper(path, set)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be > 0, got %s", c.Watch.Interval)
	}
	if c.Simulator.Interval <= 0 {
		return fmt.Errorf("simulator.interval must be > 0, got %s", c.Simulator.Interval)
	}
	if c.Display.Width < 0 {
		return fmt.Errorf("display.width must not be negative, got %d", c.Display.Width)
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return errors.New("metrics.listen is required when metrics are enabled")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Watch loads path like Load and calls fn with every later valid revision
// of the file. Invalid revisions are logged and skipped.
func Watch(path string, set Overrides, fn func(*Config)) (*Config, error) {
	if path == "" {
		return nil, errors.New("config watch requires a file path")
	}
	v, err := newViper(path, set)
	if err != nil {
		return nil, err
	}
	c, err := decode(v)
	if err != nil {
		return nil, err
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		next, err := decode(v)
		if err != nil {
			slog.Warn("Ignoring invalid config change", "file", e.Name, "error", err)
			return
		}
		slog.Info("Config reloaded", "file", e.Name)
		fn(next)
	})
	v.WatchConfig()
	return c, nil
}
