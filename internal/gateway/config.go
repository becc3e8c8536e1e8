package gateway

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Config holds HTTP gateway configuration.
type Config struct {
	Bind            string          `yaml:"bind"`
	Auth            AuthConfig      `yaml:"auth"`
	CORS            CORSConfig      `yaml:"cors"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	WebSocket       WebSocketConfig `yaml:"websocket"`
	MaxBodyBytes    int64           `yaml:"max_body_bytes"`
	ReadTimeout     time.Duration   `yaml:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
}

// defaults fills zero values with sensible defaults. WriteTimeout must stay
// above the chat generation timeout or slow answers are cut off.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "0.0.0.0:8000"
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if c.RateLimit.AuthPerMinute == 0 {
		c.RateLimit.AuthPerMinute = 30
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 90 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

func (c *Config) validate() error {
	var errs []error
	if _, err := net.ResolveTCPAddr("tcp", c.Bind); err != nil {
		errs = append(errs, fmt.Errorf("gateway: invalid bind address %q: %w", c.Bind, err))
	}
	if c.RateLimit.ChatPerMinute < 0 {
		errs = append(errs, errors.New("gateway: rate_limit.chat_per_minute must not be negative"))
	}
	if c.Auth.BasicUser != "" && c.Auth.BasicPass == "" {
		errs = append(errs, errors.New("gateway: auth.basic_pass is required with auth.basic_user"))
	}
	return errors.Join(errs...)
}

// AuthConfig configures authentication for the conversation-management
// endpoints. With nothing set those endpoints are public.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured returns true if any auth method is configured.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}

// CORSConfig lists the origins browsers may call from. "*" allows any.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RateLimitConfig bounds requests per client IP per minute.
type RateLimitConfig struct {
	// ChatPerMinute limits /chat and websocket messages. Zero disables it.
	ChatPerMinute int `yaml:"chat_per_minute"`

	// AuthPerMinute limits attempts on authenticated endpoints. Defaults
	// to 30; a negative value disables it.
	AuthPerMinute int `yaml:"auth_per_minute"`
}

// WebSocketConfig controls the /ws/chat endpoint.
type WebSocketConfig struct {
	Disabled bool `yaml:"disabled"`

	// OriginPatterns are host patterns accepted for cross-origin upgrades.
	OriginPatterns []string `yaml:"origin_patterns"`
}
