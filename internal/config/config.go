package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the portal server.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Avatar   AvatarConfig   `mapstructure:"avatar"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
	Debug   bool   `mapstructure:"debug"`
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LLMConfig contains the persona language-model provider settings.
type LLMConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	Token            string `mapstructure:"token"`
	Model            string `mapstructure:"model"`
	MaxContextTokens int    `mapstructure:"max_context_tokens"`
}

// AvatarConfig contains the remote rendering service settings and the
// polling policy for tracking its jobs. PollInterval and MaxAttempts
// bound the worst-case wait for any single job.
type AvatarConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	VoiceID      string        `mapstructure:"voice_id"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

// Load reads configuration from the given file (optional) and from
// PORTAL_* environment variables, applying defaults for anything unset.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", ":8100")
	v.SetDefault("server.debug", false)
	v.SetDefault("database.path", "portal.db")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.token", "")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.max_context_tokens", 2000)
	v.SetDefault("avatar.base_url", "https://api.d-id.com")
	v.SetDefault("avatar.api_key", "")
	v.SetDefault("avatar.voice_id", "en-US-JennyNeural")
	v.SetDefault("avatar.poll_interval", 2*time.Second)
	v.SetDefault("avatar.max_attempts", 30)

	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Avatar.MaxAttempts <= 0 {
		return nil, fmt.Errorf("avatar.max_attempts must be positive, got %d", cfg.Avatar.MaxAttempts)
	}
	if cfg.Avatar.PollInterval <= 0 {
		return nil, fmt.Errorf("avatar.poll_interval must be positive, got %s", cfg.Avatar.PollInterval)
	}
	return &cfg, nil
}
