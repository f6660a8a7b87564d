package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	apperrors "github.com/stewardbot/steward/errors"
)

var globalConfig *Config

// Load loads the configuration file. An empty path falls back to
// ~/.steward/config.json and then the working directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		configDir := filepath.Join(home, ".steward")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("json")
	}

	v.SetEnvPrefix("STEWARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file missing: defaults and environment variables apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("agent.name", "community-agent")
	v.SetDefault("agent.path", "agent")
	v.SetDefault("agent.model", "claude-opus-4-5")
	v.SetDefault("agent.max_process_tokens", 20000)
	v.SetDefault("agent.max_restart_attempts", 3)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// Validate checks the configuration for values the process manager cannot
// work with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "configuration is nil")
	}
	if cfg.Agent.Path == "" {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "agent.path is required")
	}
	if cfg.Agent.MaxProcessTokens < 0 {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "agent.max_process_tokens must not be negative")
	}
	if cfg.Agent.MaxRestartAttempts < 0 {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "agent.max_restart_attempts must not be negative")
	}
	return nil
}

// Save saves the configuration to a file
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".steward", "config.json"), nil
}
