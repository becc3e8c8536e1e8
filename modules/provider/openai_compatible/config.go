package openaicompat

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/serhrag/ragchat/internal/provider"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultContextWindow = 4096
)

// Config is the provider.openai_compatible module block.
type Config struct {
	BaseURL       string            `yaml:"base_url"`
	APIKey        string            `yaml:"api_key"`
	APIKeyEnv     string            `yaml:"api_key_env"`
	Model         string            `yaml:"model"`
	Role          string            `yaml:"role"`
	ContextWindow int               `yaml:"context_window"`
	MaxTokens     int               `yaml:"max_tokens"`
	Headers       map[string]string `yaml:"headers"`

	// Timeout bounds the wait for response headers, not the whole call.
	Timeout time.Duration `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.ContextWindow == 0 {
		c.ContextWindow = defaultContextWindow
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.APIKey == "" && c.APIKeyEnv != "" {
		c.APIKey = os.Getenv(c.APIKeyEnv)
	}
}

func (c *Config) validate() error {
	var errs []error
	switch u, err := url.Parse(c.BaseURL); {
	case c.BaseURL == "":
		errs = append(errs, errors.New("base_url is required"))
	case err != nil:
		errs = append(errs, fmt.Errorf("base_url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("base_url scheme must be http or https, got %q", u.Scheme))
	}
	if c.APIKey == "" && c.APIKeyEnv == "" {
		errs = append(errs, errors.New("api_key or api_key_env is required"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if _, ok := provider.ParseRole(c.Role); !ok {
		errs = append(errs, fmt.Errorf("unknown role %q", c.Role))
	}
	if c.ContextWindow < 0 || c.MaxTokens < 0 {
		errs = append(errs, errors.New("context_window and max_tokens must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("provider.openai_compatible: %w", err)
	}
	return nil
}
