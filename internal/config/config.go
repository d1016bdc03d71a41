package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `json:"server"`
	LLM     LLMConfig     `json:"llm"`
	Loader  LoaderConfig  `json:"loader"`
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig represents the web server configuration
type ServerConfig struct {
	Host          string `json:"host"            env:"HOST"            envDefault:"127.0.0.1"`
	Port          int    `json:"port"            env:"PORT"            envDefault:"8742"`
	SessionSecret string `json:"session_secret"  env:"SESSION_SECRET"`
	SessionTTL    string `json:"session_ttl"     env:"SESSION_TTL"     envDefault:"2h"`
	MaxUploadMB   int    `json:"max_upload_mb"   env:"MAX_UPLOAD_MB"   envDefault:"20"`
}

// LLMConfig represents the hosted language-model client configuration.
// An empty APIKey is valid: every query is answered by the rule-based
// fallback instead of the hosted model.
type LLMConfig struct {
	Provider      string `json:"provider"       env:"LLM_PROVIDER"       envDefault:"gemini"`
	Model         string `json:"model"          env:"LLM_MODEL"          envDefault:"gemini-2.0-flash"`
	APIKey        string `json:"api_key,omitempty" env:"LLM_API_KEY"`
	BaseURL       string `json:"base_url,omitempty" env:"LLM_BASE_URL"`
	Timeout       string `json:"timeout"        env:"LLM_TIMEOUT"        envDefault:"30s"`
	RetryAttempts int    `json:"retry_attempts" env:"LLM_RETRY_ATTEMPTS" envDefault:"1"`
	RetryDelay    string `json:"retry_delay"    env:"LLM_RETRY_DELAY"    envDefault:"2s"`
}

// LoaderConfig bounds spreadsheet ingestion
type LoaderConfig struct {
	MaxRows    int `json:"max_rows"    env:"LOADER_MAX_ROWS"    envDefault:"100000"`
	MaxColumns int `json:"max_columns" env:"LOADER_MAX_COLUMNS" envDefault:"256"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level     string `json:"level"      env:"LOG_LEVEL"      envDefault:"info"`   // debug, info, warn, error
	Format    string `json:"format"     env:"LOG_FORMAT"     envDefault:"text"`   // text, json
	Output    string `json:"output"     env:"LOG_OUTPUT"     envDefault:"stderr"` // stdout, stderr, file
	File      string `json:"file"       env:"LOG_FILE"       envDefault:"~/.config/sheetchat/logs/app.log"`
	AddSource bool   `json:"add_source" env:"LOG_ADD_SOURCE" envDefault:"false"`
}

// DefaultConfig returns a configuration with every field at its default,
// ignoring config files and the environment.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        8742,
			SessionTTL:  "2h",
			MaxUploadMB: 20,
		},
		LLM: LLMConfig{
			Provider:      "gemini",
			Model:         "gemini-2.0-flash",
			Timeout:       "30s",
			RetryAttempts: 1,
			RetryDelay:    "2s",
		},
		Loader: LoaderConfig{
			MaxRows:    100000,
			MaxColumns: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
			File:   "~/.config/sheetchat/logs/app.log",
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	return LoadConfigWithOverrides(nil)
}

// LoadConfigWithOverrides loads configuration with optional command-line flag overrides
func LoadConfigWithOverrides(flagOverrides map[string]interface{}) (*Config, error) {
	config := &Config{}

	// Load from config file if it exists
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		if err := loadConfigFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Apply environment variable overrides using env library (also sets defaults)
	if err := env.ParseWithOptions(config, env.Options{
		Prefix: "SHEETCHAT_",
	}); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	// GEMINI_API_KEY is honored as a secondary source for the secret
	if config.LLM.APIKey == "" {
		config.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if flagOverrides != nil {
		if err := applyFlagOverrides(config, flagOverrides); err != nil {
			return nil, fmt.Errorf("failed to apply flag overrides: %w", err)
		}
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadConfigFromFile loads configuration from a JSON file
func loadConfigFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	mergeConfigs(config, &fileConfig)

	return nil
}

// applyFlagOverrides applies command-line flag overrides to configuration
func applyFlagOverrides(config *Config, overrides map[string]interface{}) error {
	for key, value := range overrides {
		switch key {
		case "port":
			if p, ok := value.(int); ok && p > 0 {
				config.Server.Port = p
			}
		case "host":
			if str, ok := value.(string); ok && str != "" {
				config.Server.Host = str
			}
		case "log-level":
			if str, ok := value.(string); ok && str != "" {
				config.Logging.Level = str
			}
		case "provider":
			if str, ok := value.(string); ok && str != "" {
				config.LLM.Provider = str
			}
		case "model":
			if str, ok := value.(string); ok && str != "" {
				config.LLM.Model = str
			}
		}
	}

	return nil
}

// mergeConfigs merges source configuration into target configuration
func mergeConfigs(target, source *Config) {
	var mergeValues func(t, s reflect.Value)
	mergeValues = func(t, s reflect.Value) {
		if t.Kind() != s.Kind() {
			return
		}

		if t.Kind() == reflect.Struct {
			for i := range s.NumField() {
				mergeValues(t.Field(i), s.Field(i))
			}
		} else if s.Kind() == reflect.Bool {
			t.Set(s)
		} else if !s.IsZero() {
			t.Set(s)
		}
	}

	mergeValues(reflect.ValueOf(target).Elem(), reflect.ValueOf(source).Elem())
}

// validateConfig validates the configuration for common errors
func validateConfig(config *Config) error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf(
			"invalid log level: %s (must be debug, info, warn, or error)",
			config.Logging.Level,
		)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[strings.ToLower(config.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", config.Logging.Format)
	}

	validLogOutputs := map[string]bool{
		"stdout": true, "stderr": true, "file": true,
	}
	if !validLogOutputs[strings.ToLower(config.Logging.Output)] {
		return fmt.Errorf(
			"invalid log output: %s (must be stdout, stderr, or file)",
			config.Logging.Output,
		)
	}

	validProviders := map[string]bool{
		"gemini": true, "openai": true, "anthropic": true,
	}
	if !validProviders[strings.ToLower(config.LLM.Provider)] {
		return fmt.Errorf(
			"invalid LLM provider: %s (must be gemini, openai, or anthropic)",
			config.LLM.Provider,
		)
	}

	if _, err := time.ParseDuration(config.LLM.Timeout); err != nil {
		return fmt.Errorf("invalid LLM timeout: %s", config.LLM.Timeout)
	}

	if _, err := time.ParseDuration(config.LLM.RetryDelay); err != nil {
		return fmt.Errorf("invalid LLM retry delay: %s", config.LLM.RetryDelay)
	}

	if _, err := time.ParseDuration(config.Server.SessionTTL); err != nil {
		return fmt.Errorf("invalid session TTL: %s", config.Server.SessionTTL)
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", config.Server.Port)
	}

	if config.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive: %d", config.Server.MaxUploadMB)
	}

	if config.Loader.MaxRows <= 0 {
		return fmt.Errorf("loader max rows must be positive: %d", config.Loader.MaxRows)
	}

	return nil
}

// LLMTimeout returns the parsed LLM call timeout
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 30 * time.Second
	}

	return d
}

// LLMRetryDelay returns the parsed delay between LLM retries
func (c *Config) LLMRetryDelay() time.Duration {
	d, err := time.ParseDuration(c.LLM.RetryDelay)
	if err != nil {
		return 2 * time.Second
	}

	return d
}

// SessionTTL returns the parsed idle session lifetime
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.Server.SessionTTL)
	if err != nil {
		return 2 * time.Hour
	}

	return d
}

// SaveConfig writes the configuration as JSON to the active config path
// and returns that path.
func SaveConfig(config *Config) (string, error) {
	configPath := getConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return configPath, nil
}

// getConfigPath returns the path to the configuration file
func getConfigPath() string {
	if configPath := os.Getenv("SHEETCHAT_CONFIG"); configPath != "" {
		return ExpandPath(configPath)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}

	return filepath.Join(homeDir, ".config", "sheetchat", "config.json")
}

// ExpandPath expands ~ to home directory in file paths
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}

	return path
}
