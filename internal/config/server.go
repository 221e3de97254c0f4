// Package config loads process configuration from environment variables
// using viper, mirroring the bind-then-read shape of a
// viper.AutomaticEnv loader but without a backing YAML file: every key
// this module reads has a documented default and an env var override.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds every environment-variable-driven setting the
// control server reads at startup.
type ServerConfig struct {
	Port                int
	DBPath              string
	CommandTimeout      time.Duration
	StaleCheckInterval  time.Duration
	LogLevel            string
	LogFormat           string
	LogOutput           string
	LogFilePath         string
}

// LoadServerConfig binds the server's environment variables and returns
// a populated, validated ServerConfig.
func LoadServerConfig() (*ServerConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	v.SetDefault("PORT", 3000)
	v.SetDefault("DB_PATH", "./data/commands.db")
	v.SetDefault("COMMAND_TIMEOUT", 60000)
	v.SetDefault("STALE_CHECK_INTERVAL", 10000)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_OUTPUT", "stdout")
	v.SetDefault("LOG_FILE_PATH", "./data/server.log")

	for _, key := range []string{
		"PORT", "DB_PATH", "COMMAND_TIMEOUT", "STALE_CHECK_INTERVAL",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT", "LOG_FILE_PATH",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	cfg := &ServerConfig{
		Port:               v.GetInt("PORT"),
		DBPath:             v.GetString("DB_PATH"),
		CommandTimeout:     time.Duration(v.GetInt64("COMMAND_TIMEOUT")) * time.Millisecond,
		StaleCheckInterval: time.Duration(v.GetInt64("STALE_CHECK_INTERVAL")) * time.Millisecond,
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
		LogOutput:          v.GetString("LOG_OUTPUT"),
		LogFilePath:        v.GetString("LOG_FILE_PATH"),
	}

	if err := validateServerConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func validateServerConfig(cfg *ServerConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", cfg.Port)
	}
	if cfg.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if cfg.CommandTimeout <= 0 {
		return fmt.Errorf("COMMAND_TIMEOUT must be positive")
	}
	if cfg.StaleCheckInterval <= 0 {
		return fmt.Errorf("STALE_CHECK_INTERVAL must be positive")
	}
	if !contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid LOG_LEVEL: %s", cfg.LogLevel)
	}
	if !contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid LOG_FORMAT: %s", cfg.LogFormat)
	}
	if !contains([]string{"stdout", "file", "both"}, cfg.LogOutput) {
		return fmt.Errorf("invalid LOG_OUTPUT: %s", cfg.LogOutput)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
