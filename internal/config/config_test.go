package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimit)
	assert.Equal(t, DefaultRateWindow, cfg.RateWindow)
	assert.Equal(t, DefaultMaxTokens, cfg.MaxTokens)

	assert.True(t, cfg.SkipQuotaCheck)
	assert.True(t, cfg.SkipTitleGeneration)
	assert.True(t, cfg.SkipSuggestionMode)
	assert.True(t, cfg.SkipFilepathExtraction)
	assert.True(t, cfg.FastPrefixDetection)

	assert.Empty(t, cfg.APIKey)
	assert.Empty(t, cfg.BaseURL)
}

func TestManager_LoadMissingFileYieldsDefaults(t *testing.T) {
	m := NewManager(t.TempDir())

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.True(t, cfg.SkipQuotaCheck)
}

func TestManager_LoadFileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `{"port": 9000, "nvidia_nim_api_key": "nvapi-test", "skip_quota_check": false}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFilename), []byte(content), 0o644))

	m := NewManager(dir)

	cfg, err := m.Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "nvapi-test", cfg.APIKey)
	assert.False(t, cfg.SkipQuotaCheck)

	// Fields the file omits keep their defaults, including flags that
	// default to true.
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.True(t, cfg.SkipTitleGeneration)
	assert.True(t, cfg.FastPrefixDetection)
}

func TestManager_LoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFilename), []byte("{not json"), 0o644))

	_, err := NewManager(dir).Load()
	assert.Error(t, err)
}

func TestManager_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	content := `{"port": 9000, "model": "file-model"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFilename), []byte(content), 0o644))

	t.Setenv("PORT", "9100")
	t.Setenv("MODEL", "env-model")
	t.Setenv("NVIDIA_NIM_API_KEY", "nvapi-env")
	t.Setenv("SKIP_TITLE_GENERATION", "false")

	cfg, err := NewManager(dir).Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "env-model", cfg.Model)
	assert.Equal(t, "nvapi-env", cfg.APIKey)
	assert.False(t, cfg.SkipTitleGeneration)
}

func TestManager_EnvIgnoresEmptyAndMalformedValues(t *testing.T) {
	t.Setenv("MODEL", "")
	t.Setenv("PORT", "not-a-number")

	cfg, err := NewManager(t.TempDir()).Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestManager_SaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	assert.False(t, m.Exists())

	cfg := DefaultConfig()
	cfg.APIKey = "nvapi-saved"
	cfg.Port = 9200
	require.NoError(t, m.Save(cfg))
	assert.True(t, m.Exists())

	loaded, err := NewManager(dir).Load()
	require.NoError(t, err)
	assert.Equal(t, "nvapi-saved", loaded.APIKey)
	assert.Equal(t, 9200, loaded.Port)
}

func TestManager_GetCachesLoadedConfig(t *testing.T) {
	m := NewManager(t.TempDir())

	first := m.Get()
	second := m.Get()
	assert.Same(t, first, second)
}

func TestManager_GetPath(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	assert.Equal(t, filepath.Join(dir, DefaultConfigFilename), m.GetPath())
}
