// Package config provides configuration loading and management for
// Habitix.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/habitix/habitix/llm"
)

// Config represents the complete Habitix configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	NATS      NATSConfig      `yaml:"nats"`
	LLM       LLMConfig       `yaml:"llm"`
	Generator GeneratorConfig `yaml:"generator"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Addr is the listen address (default: ":8080")
	Addr string `yaml:"addr"`
	// APIPrefix is the path segment API routes are registered under
	APIPrefix string `yaml:"api_prefix"`
	// AuthHeader carries the authenticated user ID set by the gateway
	AuthHeader string `yaml:"auth_header"`
}

// NATSConfig configures the NATS connection.
type NATSConfig struct {
	// URL is the NATS server URL
	URL string `yaml:"url"`
}

// LLMConfig configures model endpoints and routing.
type LLMConfig struct {
	// Timeout is the maximum time to wait for model responses
	Timeout time.Duration `yaml:"timeout"`
	// Endpoints maps model names to endpoint definitions
	Endpoints map[string]llm.EndpointConfig `yaml:"endpoints"`
	// Capabilities maps capability names to preferred/fallback models
	Capabilities map[string]llm.CapabilityConfig `yaml:"capabilities"`
	// Health configures the endpoint circuit breaker
	Health llm.HealthConfig `yaml:"health"`
	// Retry configures per-endpoint attempts and backoff
	Retry llm.RetryConfig `yaml:"retry"`
}

// GeneratorConfig configures roadmap generation.
type GeneratorConfig struct {
	// Temperature controls randomness (0.0-1.0)
	Temperature float64 `yaml:"temperature"`
	// MaxTokens limits roadmap completion length
	MaxTokens int `yaml:"max_tokens"`
	// ScheduleDates assigns calendar dates to generated days
	ScheduleDates bool `yaml:"schedule_dates"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:       ":8080",
			APIPrefix:  "api",
			AuthHeader: "X-User-ID",
		},
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		LLM: LLMConfig{
			Timeout: 120 * time.Second,
			Health: llm.HealthConfig{
				FailureThreshold: 3,
				RecoveryTimeout:  60 * time.Second,
			},
			Retry: llm.DefaultRetryConfig(),
		},
		Generator: GeneratorConfig{
			Temperature: 0.7,
			MaxTokens:   4096,
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if c.Generator.Temperature < 0 || c.Generator.Temperature > 1 {
		return fmt.Errorf("generator.temperature must be between 0 and 1")
	}
	if c.LLM.Retry.MaxAttempts < 1 {
		return fmt.Errorf("llm.retry.max_attempts must be at least 1")
	}
	for name, endpoint := range c.LLM.Endpoints {
		if endpoint.Provider == "" {
			return fmt.Errorf("llm.endpoints.%s: provider is required", name)
		}
		if endpoint.Model == "" {
			return fmt.Errorf("llm.endpoints.%s: model is required", name)
		}
	}
	for name, capConfig := range c.LLM.Capabilities {
		if llm.ParseCapability(name) == "" {
			return fmt.Errorf("llm.capabilities: unknown capability %q", name)
		}
		if len(capConfig.Preferred) == 0 {
			return fmt.Errorf("llm.capabilities.%s: preferred is required", name)
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file, layered over the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overlays environment variable overrides.
func (c *Config) ApplyEnv() {
	if url := os.Getenv("HABITIX_NATS_URL"); url != "" {
		c.NATS.URL = url
	}
	if addr := os.Getenv("HABITIX_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
}

// Load loads configuration with layered precedence: defaults, then the
// given file when it exists, then environment variables.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			// LoadFromFile wraps the read error, so unwrap-aware
			// matching is required here.
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		} else {
			config = loaded
		}
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// BuildRegistry constructs the model registry from the configured
// endpoints and capability routes, starting from the built-in defaults.
func (c *Config) BuildRegistry() (*llm.Registry, error) {
	registry := llm.NewDefaultRegistry()
	if err := c.applyToRegistry(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// applyToRegistry overlays the configured endpoints and capabilities
// onto an existing registry.
func (c *Config) applyToRegistry(registry *llm.Registry) error {
	registry.SetHealthConfig(c.LLM.Health)

	for name, endpoint := range c.LLM.Endpoints {
		registry.SetEndpoint(name, &endpoint)
	}
	for name, capConfig := range c.LLM.Capabilities {
		capability := llm.ParseCapability(name)
		if capability == "" {
			return fmt.Errorf("unknown capability %q", name)
		}
		registry.SetCapability(capability, &capConfig)
	}
	return nil
}
