package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes process environment overrides, e.g. COMPARITY_MAX_CHAIN_LENGTH.
const EnvPrefix = "COMPARITY"

// RuntimeEnvPrefix prefixes Nakama runtime env overrides, e.g. comparity_max_chain_length.
const RuntimeEnvPrefix = "comparity_"

type GameConfig struct {
	ChallengeWindowMs int `mapstructure:"challenge_window_ms"`
	MaxChainLength    int `mapstructure:"max_chain_length"`
	SessionTTLSeconds int `mapstructure:"session_ttl_seconds"`
	KeepAliveSeconds  int `mapstructure:"keepalive_seconds"`
	// DrawBatchSize limits each draw to the first N undrawn cards; 0 draws from all of them.
	DrawBatchSize    int    `mapstructure:"draw_batch_size"`
	MaxWriteRetries  int    `mapstructure:"max_write_retries"`
	InviteSecret     string `mapstructure:"invite_secret"`
	InviteTTLSeconds int    `mapstructure:"invite_ttl_seconds"`
	SubscriberBuffer int    `mapstructure:"subscriber_buffer"`
	// ViewerIdleSeconds ends a viewer match after this long without presences.
	ViewerIdleSeconds int `mapstructure:"viewer_idle_seconds"`
}

var defaults = map[string]interface{}{
	"challenge_window_ms": 30000,
	"max_chain_length":    10,
	"session_ttl_seconds": 3600,
	"keepalive_seconds":   25,
	"draw_batch_size":     20,
	"max_write_retries":   5,
	"invite_secret":       "",
	"invite_ttl_seconds":  86400,
	"subscriber_buffer":   64,
	"viewer_idle_seconds": 300,
}

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration at path, layered over defaults and environment overrides.
// An empty path yields defaults and environment overrides only.
func Load(path string) (*GameConfig, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read game config: %w", err)
		}
	}

	var c GameConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadGameConfig loads the global game configuration once.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		cfg, loadErr = Load(path)
	})
	return loadErr
}

// GetGameConfig returns the global game configuration, or defaults if none was loaded.
func GetGameConfig() *GameConfig {
	if cfg == nil {
		return Default()
	}
	return cfg
}

// Default returns the built-in configuration.
func Default() *GameConfig {
	c, err := Load("")
	if err != nil {
		// Defaults are always valid; only a bad environment override gets here.
		return &GameConfig{
			ChallengeWindowMs: 30000,
			MaxChainLength:    10,
			SessionTTLSeconds: 3600,
			KeepAliveSeconds:  25,
			DrawBatchSize:     20,
			MaxWriteRetries:   5,
			InviteTTLSeconds:  86400,
			SubscriberBuffer:  64,
			ViewerIdleSeconds: 300,
		}
	}
	return c
}

func (c *GameConfig) Validate() error {
	switch {
	case c.ChallengeWindowMs <= 0:
		return fmt.Errorf("challenge_window_ms must be positive, got %d", c.ChallengeWindowMs)
	case c.MaxChainLength < 2:
		return fmt.Errorf("max_chain_length must be at least 2, got %d", c.MaxChainLength)
	case c.SessionTTLSeconds <= 0:
		return fmt.Errorf("session_ttl_seconds must be positive, got %d", c.SessionTTLSeconds)
	case c.DrawBatchSize < 0:
		return fmt.Errorf("draw_batch_size must not be negative, got %d", c.DrawBatchSize)
	case c.MaxWriteRetries <= 0:
		return fmt.Errorf("max_write_retries must be positive, got %d", c.MaxWriteRetries)
	case c.SubscriberBuffer < 2:
		return fmt.Errorf("subscriber_buffer must be at least 2, got %d", c.SubscriberBuffer)
	}
	return nil
}

// ApplyEnv overrides fields from the Nakama runtime env. Unknown keys are ignored.
func (c *GameConfig) ApplyEnv(env map[string]string) error {
	ints := map[string]*int{
		"challenge_window_ms": &c.ChallengeWindowMs,
		"max_chain_length":    &c.MaxChainLength,
		"session_ttl_seconds": &c.SessionTTLSeconds,
		"keepalive_seconds":   &c.KeepAliveSeconds,
		"draw_batch_size":     &c.DrawBatchSize,
		"max_write_retries":   &c.MaxWriteRetries,
		"invite_ttl_seconds":  &c.InviteTTLSeconds,
		"subscriber_buffer":   &c.SubscriberBuffer,
		"viewer_idle_seconds": &c.ViewerIdleSeconds,
	}
	for key, target := range ints {
		raw, ok := env[RuntimeEnvPrefix+key]
		if !ok || raw == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", RuntimeEnvPrefix, key, err)
		}
		*target = n
	}
	if secret, ok := env[RuntimeEnvPrefix+"invite_secret"]; ok && secret != "" {
		c.InviteSecret = secret
	}
	return c.Validate()
}

func (c *GameConfig) ChallengeWindow() time.Duration {
	return time.Duration(c.ChallengeWindowMs) * time.Millisecond
}

func (c *GameConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func (c *GameConfig) KeepAlive() time.Duration {
	return time.Duration(c.KeepAliveSeconds) * time.Second
}

func (c *GameConfig) InviteTTL() time.Duration {
	return time.Duration(c.InviteTTLSeconds) * time.Second
}

func (c *GameConfig) ViewerIdle() time.Duration {
	return time.Duration(c.ViewerIdleSeconds) * time.Second
}
