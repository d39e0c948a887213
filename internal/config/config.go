// Package config loads and validates the site configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ismaelpamplona/isma.codes/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigParse    = errors.New("failed to parse config")
	ErrInvalidPort    = errors.New("invalid server port")
	ErrInvalidLevel   = errors.New("invalid log level")
	ErrInvalidPair    = errors.New("invalid trading pair")
	ErrInvalidTimeout = errors.New("invalid pdf timeout")
)

// Config holds all configuration for the site backend.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Content   ContentConfig   `yaml:"content"`
	PDF       PDFConfig       `yaml:"pdf"`
	Assistant AssistantConfig `yaml:"assistant"`
	Ticker    TickerConfig    `yaml:"ticker"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig defines the HTTP listener settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`            // empty = all interfaces
	Port            int           `yaml:"port"`            // default 8080
	ReadTimeout     time.Duration `yaml:"readTimeout"`     // default 15s
	WriteTimeout    time.Duration `yaml:"writeTimeout"`    // default 0: the SSE stream must stay open
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"` // default 10s
	AllowedOrigins  []string      `yaml:"allowedOrigins"`  // empty = same-origin only
}

// ContentConfig defines where the markdown content lives.
type ContentConfig struct {
	Dir string `yaml:"dir"` // default "content/blog"
}

// PDFConfig defines PDF export settings.
type PDFConfig struct {
	StylesheetURL string        `yaml:"stylesheetURL"` // injected into exported documents
	Timeout       time.Duration `yaml:"timeout"`       // default 30s
}

// AssistantConfig defines the chat assistant settings. The API key is
// never stored in the file; it comes from the OPENAI_API_KEY variable.
type AssistantConfig struct {
	Model            string `yaml:"model"`            // empty = provider default
	InstructionsPath string `yaml:"instructionsPath"` // default "data/chat-gpt-instructions.yml"
	PersonalPath     string `yaml:"personalPath"`     // default "data/me.yml"
	LinksPath        string `yaml:"linksPath"`        // default "data/links.yml"
}

// TickerConfig defines the live price feed settings.
type TickerConfig struct {
	Pairs     []string `yaml:"pairs"`     // default ["BTCUSDT", "ETHUSDT"]
	StreamURL string   `yaml:"streamURL"` // empty = production stream
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level       string `yaml:"level"`       // debug, info, warn, error (default info)
	Development bool   `yaml:"development"` // console encoder instead of JSON
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Content: ContentConfig{Dir: "content/blog"},
		PDF:     PDFConfig{Timeout: 30 * time.Second},
		Assistant: AssistantConfig{
			InstructionsPath: "data/chat-gpt-instructions.yml",
			PersonalPath:     "data/me.yml",
			LinksPath:        "data/links.yml",
		},
		Ticker: TickerConfig{Pairs: []string{"BTCUSDT", "ETHUSDT"}},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads configuration from path, layered over the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yamlutil.DecodeStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Addr returns the listener address in host:port form.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks ranges and enumerations. Called automatically by Load,
// but available for consumers who construct Config manually.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q (must be debug, info, warn, or error)", ErrInvalidLevel, c.Log.Level)
	}

	for _, pair := range c.Ticker.Pairs {
		if pair == "" || strings.ContainsAny(pair, " /") {
			return fmt.Errorf("%w: %q", ErrInvalidPair, pair)
		}
	}

	if c.PDF.Timeout <= 0 {
		return fmt.Errorf("%w: %s (must be positive)", ErrInvalidTimeout, c.PDF.Timeout)
	}

	if c.Content.Dir == "" {
		return errors.New("content.dir: cannot be empty")
	}
	return nil
}
