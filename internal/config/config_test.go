package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	// Point the config file lookup at an empty directory so only
	// defaults apply.
	t.Setenv("SHEETCHAT_CONFIG", filepath.Join(t.TempDir(), "config.json"))
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8742, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Empty(t, cfg.LLM.APIKey)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 100000, cfg.Loader.MaxRows)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SHEETCHAT_CONFIG", filepath.Join(t.TempDir(), "config.json"))
	t.Setenv("SHEETCHAT_PORT", "9001")
	t.Setenv("SHEETCHAT_LLM_PROVIDER", "openai")
	t.Setenv("SHEETCHAT_LLM_API_KEY", "sk-test")
	t.Setenv("SHEETCHAT_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigGeminiKeyFallback(t *testing.T) {
	t.Setenv("SHEETCHAT_CONFIG", filepath.Join(t.TempDir(), "config.json"))
	t.Setenv("SHEETCHAT_LLM_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gm-secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "gm-secret", cfg.LLM.APIKey)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")

	fileConfig := map[string]interface{}{
		"server": map[string]interface{}{"port": 8181},
		"llm":    map[string]interface{}{"model": "gemini-2.5-pro"},
	}
	data, err := json.Marshal(fileConfig)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configPath, data, 0600))

	t.Setenv("SHEETCHAT_CONFIG", configPath)
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
	// Fields absent from the file keep defaults
	assert.Equal(t, "gemini", cfg.LLM.Provider)
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	t.Setenv("SHEETCHAT_CONFIG", filepath.Join(t.TempDir(), "config.json"))
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := LoadConfigWithOverrides(map[string]interface{}{
		"port":      3000,
		"log-level": "warn",
		"provider":  "anthropic",
	})
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "invalid provider",
			mutate:  func(c *Config) { c.LLM.Provider = "cohere" },
			wantErr: "invalid LLM provider",
		},
		{
			name:    "invalid timeout",
			mutate:  func(c *Config) { c.LLM.Timeout = "soon" },
			wantErr: "invalid LLM timeout",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "port out of range",
		},
		{
			name:    "zero max rows",
			mutate:  func(c *Config) { c.Loader.MaxRows = 0 },
			wantErr: "max rows must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SHEETCHAT_CONFIG", filepath.Join(t.TempDir(), "config.json"))

			cfg, err := LoadConfig()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = validateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("SHEETCHAT_CONFIG", path)

	cfg := DefaultConfig()
	cfg.Server.Port = 9100

	written, err := SaveConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, path, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded Config
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, 9100, loaded.Server.Port)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "x"), ExpandPath("~/x"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, "/abs/path", ExpandPath("/abs/path"))
}
