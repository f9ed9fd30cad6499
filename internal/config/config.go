// Package config loads gateway settings from an optional JSON file layered
// under environment variables. A missing file is not an error; every field
// has a working default except the upstream API key.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/joho/godotenv"
)

const (
	DefaultConfigFilename = "config.json"
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 8082

	// DefaultModel is the only model the upstream deployment serves;
	// inbound model names are accepted and ignored.
	DefaultModel = "moonshotai/kimi-k2.5"

	DefaultRateLimit  = 40
	DefaultRateWindow = 60
	DefaultMaxTokens  = 81920
)

// Config is the full runtime configuration. JSON keys match the config
// file; the corresponding environment variables override file values.
type Config struct {
	Host        string `json:"host,omitempty"`
	Port        int    `json:"port,omitempty"`
	APIKey      string `json:"nvidia_nim_api_key,omitempty"`
	ProxyAPIKey string `json:"proxy_api_key,omitempty"`
	BaseURL     string `json:"base_url,omitempty"`
	Model       string `json:"model,omitempty"`

	RateLimit  int `json:"rate_limit,omitempty"`
	RateWindow int `json:"rate_window,omitempty"`
	MaxTokens  int `json:"max_tokens,omitempty"`

	SkipQuotaCheck         bool `json:"skip_quota_check"`
	SkipTitleGeneration    bool `json:"skip_title_generation"`
	SkipSuggestionMode     bool `json:"skip_suggestion_mode"`
	SkipFilepathExtraction bool `json:"skip_filepath_extraction"`
	FastPrefixDetection    bool `json:"fast_prefix_detection"`
}

// DefaultConfig returns the built-in defaults. The interception flags all
// default on.
func DefaultConfig() *Config {
	return &Config{
		Host:                   DefaultHost,
		Port:                   DefaultPort,
		Model:                  DefaultModel,
		RateLimit:              DefaultRateLimit,
		RateWindow:             DefaultRateWindow,
		MaxTokens:              DefaultMaxTokens,
		SkipQuotaCheck:         true,
		SkipTitleGeneration:    true,
		SkipSuggestionMode:     true,
		SkipFilepathExtraction: true,
		FastPrefixDetection:    true,
	}
}

// Manager owns the config file path and caches the loaded configuration.
type Manager struct {
	configPath  string
	configValue atomic.Value
}

// NewManager builds a manager over baseDir/config.json.
func NewManager(baseDir string) *Manager {
	return &Manager{
		configPath: filepath.Join(baseDir, DefaultConfigFilename),
	}
}

// Load reads the config file, applies environment overrides and caches the
// result. A missing file yields defaults plus environment.
func (m *Manager) Load() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(m.configPath)
	switch {
	case err == nil:
		// Decoding into the populated default keeps true-default flags
		// true when the file omits them.
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	applyEnv(cfg)

	m.configValue.Store(cfg)

	return cfg, nil
}

// Get returns the cached config, loading it on first use. Load failures
// fall back to defaults plus environment.
func (m *Manager) Get() *Config {
	if v := m.configValue.Load(); v != nil {
		return v.(*Config)
	}

	cfg, err := m.Load()
	if err != nil {
		cfg = DefaultConfig()
		applyEnv(cfg)
	}

	return cfg
}

// Save writes the config file and replaces the cached value.
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	m.configValue.Store(cfg)

	return nil
}

// GetPath returns the config file path.
func (m *Manager) GetPath() string {
	return m.configPath
}

// Exists reports whether the config file is present on disk.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.configPath)

	return err == nil
}

// applyEnv overlays environment variables, loading a .env file from the
// working directory first. Real environment variables win over .env.
func applyEnv(cfg *Config) {
	_ = godotenv.Load()

	setString(&cfg.Host, "HOST")
	setInt(&cfg.Port, "PORT")
	setString(&cfg.APIKey, "NVIDIA_NIM_API_KEY")
	setString(&cfg.ProxyAPIKey, "PROXY_API_KEY")
	setString(&cfg.BaseURL, "NIM_BASE_URL")
	setString(&cfg.Model, "MODEL")
	setInt(&cfg.RateLimit, "RATE_LIMIT")
	setInt(&cfg.RateWindow, "RATE_WINDOW")
	setInt(&cfg.MaxTokens, "MAX_TOKENS")
	setBool(&cfg.SkipQuotaCheck, "SKIP_QUOTA_CHECK")
	setBool(&cfg.SkipTitleGeneration, "SKIP_TITLE_GENERATION")
	setBool(&cfg.SkipSuggestionMode, "SKIP_SUGGESTION_MODE")
	setBool(&cfg.SkipFilepathExtraction, "SKIP_FILEPATH_EXTRACTION")
	setBool(&cfg.FastPrefixDetection, "FAST_PREFIX_DETECTION")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
