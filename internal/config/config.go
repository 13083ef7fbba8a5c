package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/notekit/notekit/internal/constants"
)

type Config struct {
	DataDirectory string `json:"data_directory,omitempty"`
	DatabasePath  string `json:"database_path,omitempty"`

	// APIKey is the static shared secret checked on every API request.
	APIKey string `json:"api_key"`

	Host string `json:"host"`
	Port int    `json:"port"`

	// Creation rate limiting
	RateLimit              int `json:"rate_limit"`
	RateLimitWindowSeconds int `json:"rate_limit_window_seconds"`

	// Search cache entry bound. Zero or omitted falls back to the default;
	// a negative value disables the bound.
	CacheMaxEntries int `json:"cache_max_entries"`

	Debug bool `json:"debug"`
}

// getDefaultConfig returns a fresh copy of the default configuration
func getDefaultConfig() Config {
	return Config{
		DataDirectory:          "", // Will be set to ~/.local/share/notekit
		DatabasePath:           "", // Will be set to DataDirectory/notes.db
		APIKey:                 "", // Generated by 'notekit init'
		Host:                   "localhost",
		Port:                   8080,
		RateLimit:              constants.DefaultRateLimit,
		RateLimitWindowSeconds: int(constants.DefaultRateLimitWindow / time.Second),
		CacheMaxEntries:        constants.DefaultCacheMaxEntries,
		Debug:                  false,
	}
}

func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(configDir, "notekit", "config.json"), nil
}

func GetDefaultDataDirectory() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", ".notekit")
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "notekit")
}

func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	// Return default config if file doesn't exist
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		applyDefaults(&cfg)
		return &cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills zero-valued fields so older config files keep working.
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.DataDirectory == "" {
		cfg.DataDirectory = GetDefaultDataDirectory()
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDirectory, "notes.db")
	}
	if cfg.Host == "" {
		cfg.Host = defaults.Host
	}
	if cfg.Port == 0 {
		cfg.Port = defaults.Port
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaults.RateLimit
	}
	if cfg.RateLimitWindowSeconds == 0 {
		cfg.RateLimitWindowSeconds = defaults.RateLimitWindowSeconds
	}
	if cfg.CacheMaxEntries == 0 {
		cfg.CacheMaxEntries = defaults.CacheMaxEntries
	}
}

func Save(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if cfg.DataDirectory != "" {
		if err := os.MkdirAll(cfg.DataDirectory, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The config holds the API key, so keep it owner-readable only.
	if err := os.WriteFile(configPath, data, constants.ConfigFileMode); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// InitializeConfig creates and saves a fresh configuration. An empty apiKey
// generates a random one.
func InitializeConfig(dataDir, apiKey string) (*Config, error) {
	cfg := getDefaultConfig()

	if dataDir != "" {
		cfg.DataDirectory = dataDir
	} else {
		cfg.DataDirectory = GetDefaultDataDirectory()
	}
	cfg.DatabasePath = filepath.Join(cfg.DataDirectory, "notes.db")

	if apiKey != "" {
		cfg.APIKey = apiKey
	} else {
		generated, err := GenerateAPIKey()
		if err != nil {
			return nil, err
		}
		cfg.APIKey = generated
	}

	if err := Save(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func GenerateAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (c *Config) GetDatabasePath() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return filepath.Join(c.DataDirectory, "notes.db")
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}
