// Package config loads datememo settings from config.yaml or config.toml in the
// home directory and from DM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/datememo/datememo/internal/reconcile"
	"github.com/datememo/datememo/internal/remote"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "DM"

// Store backends.
const (
	BackendBadger = "badger"
	BackendFile   = "file"
)

// Config is the full set of settings.
type Config struct {
	// Home holds the config file, the session token and the local data.
	Home string `mapstructure:"-"`

	Remote struct {
		URL string `mapstructure:"url"`
		Key string `mapstructure:"key"`
	} `mapstructure:"remote"`

	Auth struct {
		JWTSecret string `mapstructure:"jwt_secret"`
		UserID    string `mapstructure:"user_id"`
		TokenFile string `mapstructure:"token_file"`
	} `mapstructure:"auth"`

	Store struct {
		Backend string `mapstructure:"backend"`
		Dir     string `mapstructure:"dir"`
	} `mapstructure:"store"`

	Sync struct {
		RefreshInterval  time.Duration `mapstructure:"refresh_interval"`
		DebounceInterval time.Duration `mapstructure:"debounce_interval"`
		Strategy         string        `mapstructure:"strategy"`
	} `mapstructure:"sync"`

	Log struct {
		File       string `mapstructure:"file"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAgeDays int    `mapstructure:"max_age_days"`
	} `mapstructure:"log"`

	Dashboard struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"dashboard"`
}

// DefaultHome returns $DM_HOME, or ~/.datememo.
func DefaultHome() string {
	if h := os.Getenv(EnvPrefix + "_HOME"); h != "" {
		return h
	}
	if u, err := os.UserHomeDir(); err == nil {
		return filepath.Join(u, ".datememo")
	}
	return ".datememo"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.key", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.user_id", "")
	v.SetDefault("auth.token_file", "session.jwt")
	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.dir", "data")
	v.SetDefault("sync.refresh_interval", 5*time.Minute)
	v.SetDefault("sync.debounce_interval", 500*time.Millisecond)
	v.SetDefault("sync.strategy", string(reconcile.StrategyReplace))
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("dashboard.port", 8787)
}

// Load reads settings for home. A missing config file is fine; environment
// variables and defaults still apply.
func Load(home string) (*Config, error) {
	if home == "" {
		home = DefaultHome()
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(home)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config in %s: %w", home, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Short names for the settings people export most.
	_ = v.BindEnv("auth.jwt_secret", EnvPrefix+"_JWT_SECRET", EnvPrefix+"_AUTH_JWT_SECRET")
	_ = v.BindEnv("auth.user_id", EnvPrefix+"_USER_ID", EnvPrefix+"_AUTH_USER_ID")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	cfg.Home = home

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerations and intervals.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendBadger, BackendFile:
	default:
		return fmt.Errorf("invalid store.backend %q (want %s or %s)", c.Store.Backend, BackendBadger, BackendFile)
	}
	if _, err := reconcile.ParseStrategy(c.Sync.Strategy); err != nil {
		return fmt.Errorf("invalid sync.strategy: %w", err)
	}
	if c.Sync.RefreshInterval <= 0 {
		return fmt.Errorf("sync.refresh_interval must be positive, got %s", c.Sync.RefreshInterval)
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("invalid dashboard.port %d", c.Dashboard.Port)
	}
	return nil
}

// Strategy returns the parsed sync strategy. Validate has already checked it.
func (c *Config) Strategy() reconcile.Strategy {
	s, _ := reconcile.ParseStrategy(c.Sync.Strategy)
	return s
}

// RemoteConfig returns the remote store settings.
func (c *Config) RemoteConfig(logger *log.Logger) remote.Config {
	return remote.Config{URL: c.Remote.URL, Key: c.Remote.Key, Logger: logger}
}

// StoreDir returns the local data directory, resolved against Home.
func (c *Config) StoreDir() string { return c.resolve(c.Store.Dir) }

// TokenPath returns the session token file, resolved against Home.
func (c *Config) TokenPath() string { return c.resolve(c.Auth.TokenFile) }

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Home, p)
}

// LogWriter returns where logs go: a rotating file when log.file is set, else stderr.
// The caller closes it.
func (c *Config) LogWriter() io.WriteCloser {
	if c.Log.File == "" {
		return nopCloser{os.Stderr}
	}
	return &lumberjack.Logger{
		Filename:   c.resolve(c.Log.File),
		MaxSize:    c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAgeDays,
		Compress:   true,
	}
}

// NewLogger returns a logger for component writing to w.
func NewLogger(w io.Writer, component string) *log.Logger {
	return log.New(w, "["+component+"] ", log.LstdFlags)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
