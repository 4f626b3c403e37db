// Package config loads asksql settings from asksql.yaml, ASKSQL_* environment
// variables and built-in defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override, e.g. ASKSQL_LLM_PROVIDER.
const EnvPrefix = "ASKSQL"

// Config is the top-level asksql configuration.
type Config struct {
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Executor ExecutorConfig `yaml:"executor" mapstructure:"executor"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Session  SessionConfig  `yaml:"session" mapstructure:"session"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
}

// LLMConfig selects the chat model.
type LLMConfig struct {
	Provider        string `yaml:"provider" mapstructure:"provider"`
	Model           string `yaml:"model" mapstructure:"model"` // empty picks the provider default
	APIKey          string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL         string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	MaxOutputTokens int64  `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
	MaxRounds       int    `yaml:"max_rounds" mapstructure:"max_rounds"`
}

// DatabaseConfig locates the company database.
type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ExecutorConfig controls optional execution limits. Both are off by default.
type ExecutorConfig struct {
	ReadOnly bool `yaml:"read_only" mapstructure:"read_only"`
	MaxRows  int  `yaml:"max_rows" mapstructure:"max_rows"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host" mapstructure:"host"`
	Port            int        `yaml:"port" mapstructure:"port"`
	ReadTimeout     string     `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    string     `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout string     `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	MaxBodySize     int64      `yaml:"max_body_size" mapstructure:"max_body_size"`
	RateLimit       int        `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS            CORSConfig `yaml:"cors" mapstructure:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins" mapstructure:"origins"`
}

// SessionConfig controls chat session lifetime.
type SessionConfig struct {
	TTL         string `yaml:"ttl" mapstructure:"ttl"`
	MaxSessions uint64 `yaml:"max_sessions" mapstructure:"max_sessions"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Default returns a Config pre-filled with sensible defaults.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:        "gemini",
			MaxOutputTokens: 4096,
			MaxRounds:       10,
		},
		Database: DatabaseConfig{Path: "company.db"},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     "30s",
			WriteTimeout:    "120s",
			ShutdownTimeout: "30s",
			MaxBodySize:     1 << 20,
			RateLimit:       60,
			CORS:            CORSConfig{Origins: []string{"*"}},
		},
		Session: SessionConfig{TTL: "30m", MaxSessions: 1000},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// NewViper prepares a viper instance: defaults, ASKSQL_* environment
// overrides and, when present, the config file. An explicit path must
// exist; otherwise asksql.yaml is searched in . and $HOME/.asksql.
// ${VAR} references in the file are expanded.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("asksql")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.asksql")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	data, err := os.ReadFile(v.ConfigFileUsed())
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader([]byte(os.ExpandEnv(string(data))))); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return v, nil
}

// setDefaults registers every key so environment overrides apply to keys
// absent from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.max_output_tokens", d.LLM.MaxOutputTokens)
	v.SetDefault("llm.max_rounds", d.LLM.MaxRounds)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("executor.read_only", d.Executor.ReadOnly)
	v.SetDefault("executor.max_rows", d.Executor.MaxRows)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_body_size", d.Server.MaxBodySize)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.cors.origins", d.Server.CORS.Origins)
	v.SetDefault("session.ttl", d.Session.TTL)
	v.SetDefault("session.max_sessions", d.Session.MaxSessions)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values asksql cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.LLM.Provider) {
	case "gemini", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("llm.provider: unsupported provider %q", c.LLM.Provider))
	}
	if c.LLM.MaxRounds < 0 {
		errs = append(errs, errors.New("llm.max_rounds: must not be negative"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path: required"))
	}
	if c.Executor.MaxRows < 0 {
		errs = append(errs, errors.New("executor.max_rows: must not be negative"))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", c.Server.Port))
	}
	for key, val := range map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"session.ttl":             c.Session.TTL,
	} {
		if _, err := time.ParseDuration(val); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case "text", "json", "pretty":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unsupported format %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// ParseDuration parses a validated duration field, falling back to def.
func ParseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.LLM.APIKey != "" {
		out.LLM.APIKey = "********"
	}
	return &out
}

// YAML renders the configuration as a YAML document.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	data, err := Default().YAML()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
