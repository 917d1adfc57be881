// Package cli holds the placement command's configuration file and output
// formatting.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration
type Config struct {
	DefaultEnv   string               `yaml:"default_env"`
	Environments map[string]EnvConfig `yaml:"environments"`
}

// EnvConfig is the connection to one placement server.
type EnvConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key,omitempty"`
}

// Names returns the configured environment names, sorted.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Environments))
	for n := range c.Environments {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GetConfigPath returns the path to the config file.
// PLACEMENT_CONFIG overrides the default ~/.placement/config.yaml.
func GetConfigPath() (string, error) {
	if p := os.Getenv("PLACEMENT_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".placement", "config.yaml"), nil
}

// LoadConfig loads the configuration from file
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{
				DefaultEnv:   "local",
				Environments: make(map[string]EnvConfig),
			}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Environments == nil {
		cfg.Environments = make(map[string]EnvConfig)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to file
func SaveConfig(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// UseEnv makes name the default environment and saves the file.
func UseEnv(name string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if _, ok := cfg.Environments[name]; !ok {
		return fmt.Errorf("environment '%s' not found in config", name)
	}
	cfg.DefaultEnv = name
	return SaveConfig(cfg)
}

// GetEnvConfig returns the connection to use.
// Priority: command flags > environment variables > config file.
// The API key is optional; only admin commands need it.
func GetEnvConfig(envName, baseURLFlag, apiKeyFlag string) (*EnvConfig, error) {
	envBaseURL := os.Getenv("PLACEMENT_BASE_URL")
	envAPIKey := os.Getenv("PLACEMENT_API_KEY")

	var envCfg EnvConfig
	if baseURLFlag == "" && envBaseURL == "" {
		cfg, err := LoadConfig()
		if err != nil {
			return nil, err
		}
		if envName == "" {
			envName = cfg.DefaultEnv
		}
		var ok bool
		envCfg, ok = cfg.Environments[envName]
		if !ok {
			return nil, fmt.Errorf("environment '%s' not found in config (run 'placement config init' or pass --base-url)", envName)
		}
	}

	if baseURLFlag != "" {
		envCfg.BaseURL = baseURLFlag
	} else if envBaseURL != "" {
		envCfg.BaseURL = envBaseURL
	}
	if apiKeyFlag != "" {
		envCfg.APIKey = apiKeyFlag
	} else if envAPIKey != "" {
		envCfg.APIKey = envAPIKey
	}

	if envCfg.BaseURL == "" {
		return nil, fmt.Errorf("base_url must be configured for environment '%s'", envName)
	}
	return &envCfg, nil
}

// InitConfig creates a default config file
func InitConfig() error {
	cfg := &Config{
		DefaultEnv: "local",
		Environments: map[string]EnvConfig{
			"local": {
				BaseURL: "http://localhost:8080",
				APIKey:  "admin-123",
			},
			"prod": {
				BaseURL: "https://placement.example.com",
			},
		},
	}

	return SaveConfig(cfg)
}
