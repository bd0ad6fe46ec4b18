// ABOUTME: Configuration loading and parsing for lantern
// ABOUTME: Supports YAML files with environment variable expansion and sane defaults

package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config represents the complete lantern configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Session  SessionConfig  `yaml:"session"`
	Provider ProviderConfig `yaml:"provider"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the dashboard API listen address
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// StoreConfig holds conversation store configuration
type StoreConfig struct {
	// Path is the JSON chat history file, rewritten in full on every append
	Path string `yaml:"path"`
}

// SessionConfig holds provider session configuration
type SessionConfig struct {
	// Dir is where provider credentials live; removed by clear_session
	Dir string `yaml:"dir"`
	// ResponderRules is an optional TOML file with auto-reply rules
	ResponderRules string `yaml:"responder_rules"`
}

// ProviderConfig selects and configures the messaging provider
type ProviderConfig struct {
	Kind        string `yaml:"kind"` // "matrix" or "none"
	Homeserver  string `yaml:"homeserver"`
	UserID      string `yaml:"user_id"`
	AccessToken string `yaml:"access_token"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default values applied when the config file omits a field.
const (
	DefaultHTTPAddr  = "127.0.0.1:3000"
	DefaultStorePath = "data/chats.json"
	DefaultSessionDir = "data/session"
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse parses raw YAML configuration bytes, expanding environment variables
// and applying defaults.
func Parse(data []byte) (*Config, error) {
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied, equivalent to
// loading an empty file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Store.Path == "" {
		c.Store.Path = DefaultStorePath
	}
	if c.Session.Dir == "" {
		c.Session.Dir = DefaultSessionDir
	}
	if c.Provider.Kind == "" {
		c.Provider.Kind = "none"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that the configuration is internally consistent.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Provider.Kind {
	case "none":
	case "matrix":
		if c.Provider.Homeserver == "" {
			return fmt.Errorf("provider.homeserver is required for the matrix provider")
		}
		if c.Provider.UserID == "" {
			return fmt.Errorf("provider.user_id is required for the matrix provider")
		}
	default:
		return fmt.Errorf("unknown provider.kind %q (expected \"matrix\" or \"none\")", c.Provider.Kind)
	}

	return nil
}
