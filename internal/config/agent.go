package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// AgentConfig holds every environment-variable-driven setting the agent
// process reads at startup.
type AgentConfig struct {
	ServerURL      string
	PollInterval   time.Duration
	AgentDataPath  string
	KillAfter      int // 0 means "never exit"; test hook only.
	RandomFailures bool
	LogLevel       string
	LogFormat      string
}

// LoadAgentConfig binds the agent's environment variables and returns a
// populated, validated AgentConfig.
func LoadAgentConfig() (*AgentConfig, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)

	v.SetDefault("SERVER_URL", "http://localhost:3000")
	v.SetDefault("POLL_INTERVAL", 1000)
	v.SetDefault("AGENT_DATA_PATH", "./data")
	v.SetDefault("KILL_AFTER", 0)
	v.SetDefault("RANDOM_FAILURES", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	for _, key := range []string{
		"SERVER_URL", "POLL_INTERVAL", "AGENT_DATA_PATH", "KILL_AFTER",
		"RANDOM_FAILURES", "LOG_LEVEL", "LOG_FORMAT",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	cfg := &AgentConfig{
		ServerURL:      v.GetString("SERVER_URL"),
		PollInterval:   time.Duration(v.GetInt64("POLL_INTERVAL")) * time.Millisecond,
		AgentDataPath:  v.GetString("AGENT_DATA_PATH"),
		KillAfter:      v.GetInt("KILL_AFTER"),
		RandomFailures: v.GetBool("RANDOM_FAILURES"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		LogFormat:      v.GetString("LOG_FORMAT"),
	}

	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("SERVER_URL is required")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if cfg.AgentDataPath == "" {
		return nil, fmt.Errorf("AGENT_DATA_PATH is required")
	}
	return cfg, nil
}
