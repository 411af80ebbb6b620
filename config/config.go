// Package config handles configuration loading and saving.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/linanwx/nagopanel/logger"
)

const (
	configDirName  = ".nagopanel"
	configFileName = "config.yaml"

	// EnvHostURL overrides Host.URL when set.
	EnvHostURL = "NAGOPANEL_HOST_URL"
)

// Host transports.
const (
	TransportStdio     = "stdio"
	TransportWebSocket = "websocket"
)

var configDirOverride string

// SetConfigDir overrides the config directory for the current process.
// Empty value clears the override.
func SetConfigDir(dir string) {
	configDirOverride = strings.TrimSpace(dir)
}

// Config is the root configuration structure.
type Config struct {
	Host    HostConfig    `json:"host" yaml:"host"`
	Web     WebConfig     `json:"web" yaml:"web"`
	Render  RenderConfig  `json:"render" yaml:"render"`
	Logging LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// HostConfig selects how the panel reaches the host process.
type HostConfig struct {
	Transport        string `json:"transport" yaml:"transport"`                                   // stdio or websocket
	URL              string `json:"url,omitempty" yaml:"url,omitempty"`                           // ws:// URL for the websocket transport
	ReconnectSeconds int    `json:"reconnectSeconds,omitempty" yaml:"reconnectSeconds,omitempty"` // initial redial delay, defaults to 1
}

// WebConfig configures the browser shell server.
type WebConfig struct {
	Addr           string   `json:"addr,omitempty" yaml:"addr,omitempty"` // default: 127.0.0.1:8080
	Title          string   `json:"title,omitempty" yaml:"title,omitempty"`
	OriginPatterns []string `json:"originPatterns,omitempty" yaml:"originPatterns,omitempty"`
}

// RenderConfig configures the render pipeline.
type RenderConfig struct {
	HighlightStyle string `json:"highlightStyle,omitempty" yaml:"highlightStyle,omitempty"` // chroma style name
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Level   string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info, warn, error
	Format  string `json:"format,omitempty" yaml:"format,omitempty"` // text or json
	File    string `json:"file,omitempty" yaml:"file,omitempty"`     // log file path, relative to the config dir
}

// LoggerConfig converts the section for logger.Init.
func (l LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Enabled: l.Enabled == nil || *l.Enabled,
		Level:   l.Level,
		Format:  l.Format,
		File:    l.File,
	}
}

// ConfigDir returns the directory holding the config file.
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// ConfigPath returns the config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads the config file. A missing file yields the defaults.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config file, creating its directory.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Validate checks the host section.
func (c *Config) Validate() error {
	switch c.Host.Transport {
	case TransportStdio:
	case TransportWebSocket:
		if c.Host.URL == "" {
			return fmt.Errorf("host.url is required for the %s transport", TransportWebSocket)
		}
		if !strings.HasPrefix(c.Host.URL, "ws://") && !strings.HasPrefix(c.Host.URL, "wss://") {
			return fmt.Errorf("host.url must be a ws:// or wss:// URL, got %q", c.Host.URL)
		}
	default:
		return fmt.Errorf("unknown host.transport %q", c.Host.Transport)
	}
	return nil
}

func (c *Config) applyEnv() {
	if url := strings.TrimSpace(os.Getenv(EnvHostURL)); url != "" {
		c.Host.URL = url
		c.Host.Transport = TransportWebSocket
	}
}
