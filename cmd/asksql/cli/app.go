package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/asksql/asksql/internal/agent"
	"github.com/asksql/asksql/internal/config"
	"github.com/asksql/asksql/internal/executor"
	"github.com/asksql/asksql/internal/keychain"
	"github.com/asksql/asksql/internal/llm"
	"github.com/asksql/asksql/internal/logging"
	"github.com/asksql/asksql/internal/schema"
	"github.com/asksql/asksql/internal/session"
	"github.com/asksql/asksql/internal/synth"
	"github.com/asksql/asksql/internal/tools"
)

// errNoAPIKey is returned when no key is configured or stored for the
// selected provider.
var errNoAPIKey = errors.New("no API key configured")

// app holds the components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	executor *executor.Executor
	provider llm.Provider
	toolset  *tools.Toolset
}

// loadConfig reads the configuration selected by --config. It also returns
// the config file used, empty when running on defaults and environment.
func loadConfig() (*config.Config, string, error) {
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, "", fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, v.ConfigFileUsed(), nil
}

// newBaseApp loads configuration and builds the logger and executor. It
// never talks to a language model.
func newBaseApp(logOut io.Writer) (*app, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logOut, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	exec := executor.New(executor.Config{
		Path:     cfg.Database.Path,
		ReadOnly: cfg.Executor.ReadOnly,
		MaxRows:  cfg.Executor.MaxRows,
	}, logger)
	return &app{cfg: cfg, logger: logger, executor: exec}, nil
}

// newApp builds the full component graph, including the LLM provider and
// the toolset.
func newApp(ctx context.Context, logOut io.Writer) (*app, error) {
	a, err := newBaseApp(logOut)
	if err != nil {
		return nil, err
	}

	var ring *keychain.Manager
	if a.cfg.LLM.APIKey == "" {
		ring = openKeychain(a.logger)
	}
	apiKey, err := resolveAPIKey(a.cfg, ring)
	if err != nil {
		return nil, err
	}
	provider, err := llm.New(ctx, llm.Config{
		Provider:        a.cfg.LLM.Provider,
		Model:           a.cfg.LLM.Model,
		APIKey:          apiKey,
		BaseURL:         a.cfg.LLM.BaseURL,
		MaxOutputTokens: a.cfg.LLM.MaxOutputTokens,
	}, a.logger)
	if err != nil {
		return nil, err
	}

	a.provider = provider
	a.toolset = tools.New(synth.New(provider, a.logger), a.executor, a.logger)
	return a, nil
}

// sdkKeyEnv lists the variables each provider SDK reads when no key is
// passed to it.
var sdkKeyEnv = map[string][]string{
	llm.ProviderGemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	llm.ProviderAnthropic: {"ANTHROPIC_API_KEY"},
}

// openKeychain opens the OS keychain. A keychain that cannot be opened only
// matters when no key is configured, so failures yield nil.
func openKeychain(logger *slog.Logger) *keychain.Manager {
	ring, err := keychain.Open()
	if err != nil {
		logger.Debug("keychain unavailable", "error", err)
		return nil
	}
	return ring
}

// resolveAPIKey returns the configured key, then the key stored in ring.
// When neither exists but the provider SDK's own variable is set, it
// returns an empty key so the SDK picks that variable up.
func resolveAPIKey(cfg *config.Config, ring *keychain.Manager) (string, error) {
	provider := strings.ToLower(cfg.LLM.Provider)
	key, err := keychain.Resolve(ring, provider, cfg.LLM.APIKey)
	if err != nil {
		return "", fmt.Errorf("read API key from keychain: %w", err)
	}
	if key != "" {
		return key, nil
	}
	for _, name := range sdkKeyEnv[provider] {
		if os.Getenv(name) != "" {
			return "", nil
		}
	}
	return "", fmt.Errorf("%w for provider %q: set %s_LLM_API_KEY, %s or run 'asksql key set %s'",
		errNoAPIKey, provider, config.EnvPrefix, strings.Join(sdkKeyEnv[provider], ", "), provider)
}

// newSession creates a chat session over the app's provider and tools.
func (a *app) newSession() (*agent.Session, error) {
	return agent.NewSession(&agent.Config{
		Logger:    a.logger,
		LLM:       a.provider,
		Tools:     a.toolset,
		System:    schema.SystemInstruction(),
		MaxRounds: a.cfg.LLM.MaxRounds,
	})
}

// newSessionManager holds one session per conversation with idle expiry.
func (a *app) newSessionManager() *session.Manager {
	ttl := config.ParseDuration(a.cfg.Session.TTL, 30*time.Minute)
	return session.NewManager(ttl, a.cfg.Session.MaxSessions, a.newSession, a.logger)
}

// checkDatabase logs whether the configured database matches the schema
// description. Problems are warnings: the executor reports them per query.
func (a *app) checkDatabase(ctx context.Context) {
	report, err := schema.VerifyFile(ctx, a.cfg.Database.Path)
	if err != nil {
		a.logger.Warn("database check failed", "path", a.cfg.Database.Path, "error", err)
		return
	}
	if !report.OK() {
		a.logger.Warn("database does not match the schema description",
			"path", a.cfg.Database.Path, "problems", report.Problems())
		return
	}
	a.logger.Info("database verified", "path", a.cfg.Database.Path, "tables", len(schema.Tables))
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
