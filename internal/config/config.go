// Package config loads the console's configuration.
//
// Values come from a YAML file when one exists, with environment variables
// layered on top. Every field has a default, so the console starts with no
// file at all as long as BLANKO_API_URL points at a backend.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the complete console configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Session SessionConfig `yaml:"session"`
	Editor  EditorConfig  `yaml:"editor"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Host         string        `yaml:"host" env:"BLANKO_HOST" env-default:"127.0.0.1"`
	Port         int           `yaml:"port" env:"PORT" env-default:"3000"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env-default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env-default:"15s"`
}

// APIConfig points at the Blanko backend. BaseURL is the server root; the
// client appends /api itself.
type APIConfig struct {
	BaseURL string        `yaml:"base_url" env:"BLANKO_API_URL" env-default:"http://localhost:8080"`
	Timeout time.Duration `yaml:"timeout" env:"BLANKO_API_TIMEOUT" env-default:"30s"`
}

type StorageConfig struct {
	Path string `yaml:"path" env:"BLANKO_STORAGE_PATH" env-default:"data/console.db"`
}

// SessionConfig.Secret seals the stored API token. Empty stores it as-is.
type SessionConfig struct {
	Secret string `yaml:"secret" env:"BLANKO_SESSION_SECRET"`
}

// EditorConfig.IdleTimeout closes editor sessions whose page stopped
// talking to the console, e.g. after a crashed tab. Zero keeps them open.
type EditorConfig struct {
	AutosaveInterval time.Duration `yaml:"autosave_interval" env:"BLANKO_AUTOSAVE_INTERVAL" env-default:"60s"`
	IdleTimeout      time.Duration `yaml:"idle_timeout" env:"BLANKO_EDITOR_IDLE_TIMEOUT" env-default:"2h"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// Addr is the listen address of the console.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Load reads path when it exists and the environment otherwise.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
			return &cfg, cfg.Validate()
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: checking %s: %w", path, err)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}
	return &cfg, cfg.Validate()
}

// Validate rejects values the console cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("config: api.base_url is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	if c.Editor.AutosaveInterval <= 0 {
		return fmt.Errorf("config: editor.autosave_interval must be positive, got %s", c.Editor.AutosaveInterval)
	}
	if c.Editor.IdleTimeout < 0 {
		return fmt.Errorf("config: editor.idle_timeout must not be negative, got %s", c.Editor.IdleTimeout)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("config: api.timeout must be positive, got %s", c.API.Timeout)
	}
	return nil
}

// SlogLevel maps the configured level name to a slog.Level, defaulting to
// Info for anything unrecognised.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Path returns the config file path from the -config flag, falling back to
// CONFIG_PATH and then to ./config/console.yaml.
func Path() string {
	var res string

	flag.StringVar(&res, "config", "", "config path")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}
	if res == "" {
		res = "./config/console.yaml"
	}

	return res
}
