package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestNewViperWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	v, err := NewViper("")
	if err != nil {
		t.Fatalf("NewViper: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "company.db" {
		t.Errorf("Database.Path = %q, want company.db", cfg.Database.Path)
	}
	if cfg.LLM.Provider != "gemini" || cfg.LLM.Model != "" {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
}

func TestNewViperFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "asksql.yaml")
	content := `
llm:
  provider: anthropic
  api_key: ${ASKSQL_TEST_KEY}
database:
  path: /data/company.db
executor:
  read_only: true
server:
  port: 9090
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ASKSQL_TEST_KEY", "sk-test")
	t.Setenv("ASKSQL_EXECUTOR_MAX_ROWS", "50")
	t.Setenv("ASKSQL_SERVER_PORT", "9191")

	v, err := NewViper(path)
	if err != nil {
		t.Fatalf("NewViper: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("Provider = %q", cfg.LLM.Provider)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("APIKey = %q, want expanded env value", cfg.LLM.APIKey)
	}
	if cfg.Database.Path != "/data/company.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if !cfg.Executor.ReadOnly || cfg.Executor.MaxRows != 50 {
		t.Errorf("Executor = %+v", cfg.Executor)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want env override 9191", cfg.Server.Port)
	}
	if cfg.Session.TTL != "30m" {
		t.Errorf("Session.TTL = %q, want default", cfg.Session.TTL)
	}
}

func TestNewViperExplicitMissingFile(t *testing.T) {
	if _, err := NewViper(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"provider", func(c *Config) { c.LLM.Provider = "openai" }, "llm.provider"},
		{"path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"max rows", func(c *Config) { c.Executor.MaxRows = -1 }, "executor.max_rows"},
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"ttl", func(c *Config) { c.Session.TTL = "soon" }, "session.ttl"},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	if got := ParseDuration("45s", time.Minute); got != 45*time.Second {
		t.Errorf("ParseDuration = %v", got)
	}
	if got := ParseDuration("bad", time.Minute); got != time.Minute {
		t.Errorf("ParseDuration fallback = %v", got)
	}
}

func TestRedactedAndWriteDefault(t *testing.T) {
	cfg := Default()
	cfg.LLM.APIKey = "secret"
	if got := cfg.Redacted().LLM.APIKey; got == "secret" {
		t.Error("Redacted() leaked the API key")
	}
	if cfg.LLM.APIKey != "secret" {
		t.Error("Redacted() modified the original")
	}

	path := filepath.Join(t.TempDir(), "asksql.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "path: company.db") {
		t.Errorf("default config missing database path:\n%s", data)
	}
	if err := WriteDefault(path); err == nil {
		t.Error("WriteDefault overwrote an existing file")
	}
}
