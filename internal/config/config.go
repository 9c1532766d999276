// Package config loads launcher account service settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every setting of the account service.
type Config struct {
	DataDir      string `yaml:"data_dir"`
	AccountsFile string `yaml:"accounts_file"` // default <data_dir>/accounts.json
	EventsDB     string `yaml:"events_db"`     // default <data_dir>/events.db
	ProfileAPI   string `yaml:"profile_api"`   // empty uses the public services API

	Server ServerConfig `yaml:"server"`
	OAuth  OAuthConfig  `yaml:"oauth"`
	Tokens TokenConfig  `yaml:"tokens"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	AdminPassword string `yaml:"admin_password"`
}

type OAuthConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	TokenURL     string   `yaml:"token_url"`
	Scopes       []string `yaml:"scopes"`
}

type TokenConfig struct {
	Skew             time.Duration `yaml:"skew"`
	RefreshTimeout   time.Duration `yaml:"refresh_timeout"`
	RefreshInterval  time.Duration `yaml:"refresh_interval"` // 0 disables the background loop
	RefreshLookahead time.Duration `yaml:"refresh_lookahead"`
	EventRetention   time.Duration `yaml:"event_retention"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8087,
		},
		Tokens: TokenConfig{
			Skew:             60 * time.Second,
			RefreshTimeout:   30 * time.Second,
			RefreshInterval:  15 * time.Minute,
			RefreshLookahead: 20 * time.Minute,
			EventRetention:   30 * 24 * time.Hour,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, a .env file in the working directory and LAUNCHER_* variables, in
// that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	// Existing environment variables win over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.AccountsFile == "" {
		cfg.AccountsFile = filepath.Join(cfg.DataDir, "accounts.json")
	}
	if cfg.EventsDB == "" {
		cfg.EventsDB = filepath.Join(cfg.DataDir, "events.db")
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Tokens.Skew < 0 {
		return fmt.Errorf("token skew must not be negative")
	}
	if c.Tokens.RefreshTimeout <= 0 {
		return fmt.Errorf("refresh timeout must be positive")
	}
	if c.Tokens.RefreshInterval < 0 {
		return fmt.Errorf("refresh interval must not be negative")
	}
	return nil
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

func (c *Config) applyEnv() error {
	setString(&c.DataDir, "LAUNCHER_DATA_DIR")
	setString(&c.AccountsFile, "LAUNCHER_ACCOUNTS_FILE")
	setString(&c.EventsDB, "LAUNCHER_EVENTS_DB")
	setString(&c.ProfileAPI, "LAUNCHER_PROFILE_API")
	setString(&c.Server.Host, "HOST")
	setString(&c.Server.Host, "LAUNCHER_HOST")
	setString(&c.Server.AdminPassword, "LAUNCHER_ADMIN_PASSWORD")
	setString(&c.OAuth.ClientID, "LAUNCHER_OAUTH_CLIENT_ID")
	setString(&c.OAuth.ClientSecret, "LAUNCHER_OAUTH_CLIENT_SECRET")
	setString(&c.OAuth.TokenURL, "LAUNCHER_OAUTH_TOKEN_URL")
	setString(&c.Log.Level, "LAUNCHER_LOG_LEVEL")
	setString(&c.Log.Format, "LAUNCHER_LOG_FORMAT")

	if v := os.Getenv("LAUNCHER_OAUTH_SCOPES"); v != "" {
		c.OAuth.Scopes = strings.Fields(strings.ReplaceAll(v, ",", " "))
	}
	for _, key := range []string{"PORT", "LAUNCHER_PORT"} {
		if v := os.Getenv(key); v != "" {
			port, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			c.Server.Port = port
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"LAUNCHER_TOKEN_SKEW", &c.Tokens.Skew},
		{"LAUNCHER_REFRESH_TIMEOUT", &c.Tokens.RefreshTimeout},
		{"LAUNCHER_REFRESH_INTERVAL", &c.Tokens.RefreshInterval},
		{"LAUNCHER_REFRESH_LOOKAHEAD", &c.Tokens.RefreshLookahead},
		{"LAUNCHER_EVENT_RETENTION", &c.Tokens.EventRetention},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.key, v, err)
		}
		*d.dst = parsed
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "launcher")
	}
	return ".launcher"
}
