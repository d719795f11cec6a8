package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "SCRAPP_CONFIG"
	apiBaseURLEnv     = "SCRAPP_API_BASE_URL"
	serviceBaseURLEnv = "SCRAPP_SERVICE_BASE_URL"
	databaseURLEnv    = "SCRAPP_DATABASE_URL"
	logLevelEnv       = "LOG_LEVEL"
	maxPagesEnv       = "SCRAPP_MAX_PAGES"
	timeoutEnv        = "SCRAPP_REQUEST_TIMEOUT_SECONDS"
	chatBackendEnv    = "SCRAPP_CHAT_BACKEND"
	geminiAPIKeyEnv   = "GEMINI_API_KEY"

	ChatBackendHTTP   = "http"
	ChatBackendGemini = "gemini"
)

type Config struct {
	APIBaseURL            string     `yaml:"api_base_url"`
	ServiceBaseURL        string     `yaml:"service_base_url"`
	DatabaseURL           string     `yaml:"database_url"`
	CredentialKey         string     `yaml:"credential_key"`
	LogLevel              string     `yaml:"log_level"`
	MaxPages              int        `yaml:"max_pages"`
	RequestTimeoutSeconds int        `yaml:"request_timeout_seconds"`
	Chat                  ChatConfig `yaml:"chat"`
}

// ChatConfig selects who answers disposal chat turns.
type ChatConfig struct {
	Backend      string `yaml:"backend"`
	GeminiAPIKey string `yaml:"gemini_api_key"`
	GeminiModel  string `yaml:"gemini_model"`
}

// RequestTimeout is zero when the transport default should be used.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Default returns the settings used for a local development backend.
func Default() Config {
	return Config{
		APIBaseURL:     "http://127.0.0.1:8000/api/",
		ServiceBaseURL: "http://127.0.0.1:8000",
		DatabaseURL:    "scrapp_client.db",
		CredentialKey:  "authToken",
		LogLevel:       "INFO",
		MaxPages:       1000,
		Chat: ChatConfig{
			Backend:     ChatBackendHTTP,
			GeminiModel: "gemini-1.5-flash",
		},
	}
}

// Load builds the configuration from defaults, an optional .env file, an
// optional YAML file (path, or $SCRAPP_CONFIG when path is empty) and finally
// environment variables.
func Load(path string) (Config, error) {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg = merge(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.APIBaseURL = getEnv(apiBaseURLEnv, c.APIBaseURL)
	c.ServiceBaseURL = getEnv(serviceBaseURLEnv, c.ServiceBaseURL)
	c.DatabaseURL = getEnv(databaseURLEnv, c.DatabaseURL)
	c.LogLevel = getEnv(logLevelEnv, c.LogLevel)
	c.MaxPages = getEnvAsInt(maxPagesEnv, c.MaxPages)
	c.RequestTimeoutSeconds = getEnvAsInt(timeoutEnv, c.RequestTimeoutSeconds)
	c.Chat.Backend = getEnv(chatBackendEnv, c.Chat.Backend)
	c.Chat.GeminiAPIKey = getEnv(geminiAPIKeyEnv, c.Chat.GeminiAPIKey)
}

func merge(base, override Config) Config {
	if override.APIBaseURL != "" {
		base.APIBaseURL = override.APIBaseURL
	}
	if override.ServiceBaseURL != "" {
		base.ServiceBaseURL = override.ServiceBaseURL
	}
	if override.DatabaseURL != "" {
		base.DatabaseURL = override.DatabaseURL
	}
	if override.CredentialKey != "" {
		base.CredentialKey = override.CredentialKey
	}
	if override.LogLevel != "" {
		base.LogLevel = override.LogLevel
	}
	if override.MaxPages != 0 {
		base.MaxPages = override.MaxPages
	}
	if override.RequestTimeoutSeconds != 0 {
		base.RequestTimeoutSeconds = override.RequestTimeoutSeconds
	}
	if override.Chat.Backend != "" {
		base.Chat.Backend = override.Chat.Backend
	}
	if override.Chat.GeminiAPIKey != "" {
		base.Chat.GeminiAPIKey = override.Chat.GeminiAPIKey
	}
	if override.Chat.GeminiModel != "" {
		base.Chat.GeminiModel = override.Chat.GeminiModel
	}
	return base
}

func (c Config) Validate() error {
	var errs []error
	if err := checkURL("api_base_url", c.APIBaseURL); err != nil {
		errs = append(errs, err)
	}
	if err := checkURL("service_base_url", c.ServiceBaseURL); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.CredentialKey) == "" {
		errs = append(errs, errors.New("credential_key must not be empty"))
	}
	if c.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("max_pages must be at least 1, got %d", c.MaxPages))
	}
	if c.RequestTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("request_timeout_seconds must not be negative, got %d", c.RequestTimeoutSeconds))
	}
	switch c.Chat.Backend {
	case ChatBackendHTTP:
	case ChatBackendGemini:
		if c.Chat.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini chat backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown chat backend %q", c.Chat.Backend))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func checkURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", field, raw)
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
