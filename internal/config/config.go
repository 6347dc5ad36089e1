// Package config provides Viper-based configuration loading for the presence
// relay and its headless client.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds relay listener settings.
type ServerConfig struct {
	// Host is the bind address for the WebSocket listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the WebSocket listener.
	Port int `mapstructure:"port"`
	// AllowAnyOrigin disables the browser origin check on upgrade. Leave
	// false behind a reverse proxy that sets Origin correctly.
	AllowAnyOrigin bool `mapstructure:"allow_any_origin"`
}

// Addr returns the "host:port" listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RateLimitConfig holds the per-connection inbound frame limit.
type RateLimitConfig struct {
	// Enabled determines if rate limiting is active.
	Enabled bool `mapstructure:"enabled"`
	// MessagesPerSecond is the sustained inbound frame rate per client.
	MessagesPerSecond float64 `mapstructure:"messages_per_second"`
	// Burst is the token bucket capacity.
	Burst int `mapstructure:"burst"`
}

// ClientConfig holds headless client settings.
type ClientConfig struct {
	// URL is the relay endpoint, e.g. "ws://localhost:8080/ws".
	URL string `mapstructure:"url"`
	// ReconnectDelay is the fixed pause before redialing a dropped
	// connection.
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	// SpeechBubbleTTL bounds how long a speech bubble stays armed.
	SpeechBubbleTTL time.Duration `mapstructure:"speech_bubble_ttl"`
	// TypingIdle is the keystroke idle window that ends a typing burst.
	TypingIdle time.Duration `mapstructure:"typing_idle"`
	// PositionInterval is the minimum spacing between outbound movement
	// frames.
	PositionInterval time.Duration `mapstructure:"position_interval"`
	// ChatLogCap bounds the retained chat history.
	ChatLogCap int `mapstructure:"chat_log_cap"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// File is an optional rotating log file path; empty logs to stderr
	// only.
	File string `mapstructure:"file"`
	// MaxSizeMB is the rotation threshold for the log file.
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files to retain.
	MaxBackups int `mapstructure:"max_backups"`
	// MaxAgeDays is the retention age for rotated files.
	MaxAgeDays int `mapstructure:"max_age_days"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Client    ClientConfig    `mapstructure:"client"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRateLimit(c.RateLimit); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateClient(c.Client); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", s.Port)
	}
	return nil
}

func validateRateLimit(r RateLimitConfig) error {
	if !r.Enabled {
		return nil
	}
	var errs []string
	if r.MessagesPerSecond <= 0 {
		errs = append(errs, fmt.Sprintf("ratelimit.messages_per_second must be > 0, got %g", r.MessagesPerSecond))
	}
	if r.Burst < 1 {
		errs = append(errs, fmt.Sprintf("ratelimit.burst must be >= 1, got %d", r.Burst))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateClient(c ClientConfig) error {
	var errs []string
	if c.URL != "" && !strings.HasPrefix(c.URL, "ws://") && !strings.HasPrefix(c.URL, "wss://") {
		errs = append(errs, fmt.Sprintf("client.url must use ws:// or wss://, got %q", c.URL))
	}
	if c.ReconnectDelay < 0 {
		errs = append(errs, "client.reconnect_delay must not be negative")
	}
	if c.SpeechBubbleTTL < 0 {
		errs = append(errs, "client.speech_bubble_ttl must not be negative")
	}
	if c.TypingIdle < 0 {
		errs = append(errs, "client.typing_idle must not be negative")
	}
	if c.PositionInterval < 0 {
		errs = append(errs, "client.position_interval must not be negative")
	}
	if c.ChatLogCap < 1 {
		errs = append(errs, fmt.Sprintf("client.chat_log_cap must be >= 1, got %d", c.ChatLogCap))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	if l.File != "" {
		if l.MaxSizeMB < 1 {
			return fmt.Errorf("logging.max_size_mb must be >= 1 when logging.file is set, got %d", l.MaxSizeMB)
		}
	}
	return nil
}

// Load reads configuration from the given file path, applies environment
// variable overrides with the PRESENCE_ prefix, and validates the result.
// An empty path skips the file and uses defaults plus environment only.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetEnvPrefix("PRESENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allow_any_origin", true)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.messages_per_second", 40)
	v.SetDefault("ratelimit.burst", 80)

	v.SetDefault("client.url", "ws://localhost:8080/ws")
	v.SetDefault("client.reconnect_delay", "3s")
	v.SetDefault("client.speech_bubble_ttl", "4s")
	v.SetDefault("client.typing_idle", "1500ms")
	v.SetDefault("client.position_interval", "50ms")
	v.SetDefault("client.chat_log_cap", 50)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
}
