package llm

import (
	"sync"
	"time"
)

// Capability is a semantic request class the registry can resolve to a
// model fallback chain.
type Capability string

const (
	// CapabilityRoadmap is used for roadmap generation from a goal
	// questionnaire. Needs structured-output discipline over speed.
	CapabilityRoadmap Capability = "roadmap"

	// CapabilityChat is used for persona coach conversations.
	CapabilityChat Capability = "chat"
)

// ParseCapability converts a string to a known Capability, or "".
func ParseCapability(s string) Capability {
	switch Capability(s) {
	case CapabilityRoadmap, CapabilityChat:
		return Capability(s)
	}
	return ""
}

// CapabilityConfig defines model preferences for a capability.
type CapabilityConfig struct {
	// Preferred lists models in order of preference.
	Preferred []string `json:"preferred" yaml:"preferred"`

	// Fallback lists backup models if all preferred fail.
	Fallback []string `json:"fallback" yaml:"fallback"`
}

// EndpointConfig defines an available model endpoint.
type EndpointConfig struct {
	// Provider is the model provider (gemini, openai, anthropic, ollama).
	Provider string `json:"provider" yaml:"provider"`

	// URL is the API base URL. Empty uses the provider default.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Model is the model identifier to send to the provider.
	Model string `json:"model" yaml:"model"`

	// MaxTokens is the context window size, informational.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// HealthConfig configures endpoint failure tracking.
type HealthConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens.
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`

	// RecoveryTimeout is how long to wait before allowing a test request
	// to a tripped endpoint.
	RecoveryTimeout time.Duration `json:"recovery_timeout" yaml:"recovery_timeout"`
}

// DefaultHealthConfig returns sensible defaults for health tracking.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	}
}

// endpointHealth tracks consecutive failures for one endpoint.
type endpointHealth struct {
	failureCount    int
	circuitOpen     bool
	circuitOpenedAt time.Time
	lastSuccess     time.Time
	lastFailure     time.Time
}

// Registry maps capabilities to model fallback chains and tracks
// per-endpoint health so the client can skip tripped endpoints.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[Capability]*CapabilityConfig
	endpoints    map[string]*EndpointConfig
	healthCfg    HealthConfig
	health       map[string]*endpointHealth
}

// NewRegistry creates a registry with the given configuration.
func NewRegistry(caps map[Capability]*CapabilityConfig, endpoints map[string]*EndpointConfig) *Registry {
	return &Registry{
		capabilities: caps,
		endpoints:    endpoints,
		healthCfg:    DefaultHealthConfig(),
		health:       make(map[string]*endpointHealth),
	}
}

// NewDefaultRegistry creates a registry matching the hosted product
// defaults: Gemini for both capabilities, with a local Ollama fallback.
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		map[Capability]*CapabilityConfig{
			CapabilityRoadmap: {
				Preferred: []string{"gemini-flash"},
				Fallback:  []string{"llama3.2"},
			},
			CapabilityChat: {
				Preferred: []string{"gemini-flash-2"},
				Fallback:  []string{"llama3.2"},
			},
		},
		map[string]*EndpointConfig{
			"gemini-flash": {
				Provider:  "gemini",
				Model:     "gemini-1.5-flash",
				MaxTokens: 1000000,
			},
			"gemini-flash-2": {
				Provider:  "gemini",
				Model:     "gemini-2.0-flash",
				MaxTokens: 1000000,
			},
			"llama3.2": {
				Provider:  "ollama",
				URL:       "http://localhost:11434/v1",
				Model:     "llama3.2",
				MaxTokens: 128000,
			},
		},
	)
}

// FallbackChain returns all models for a capability in order of preference.
func (r *Registry) FallbackChain(cap Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.capabilities[cap]
	if !ok {
		return nil
	}
	chain := make([]string, 0, len(cfg.Preferred)+len(cfg.Fallback))
	chain = append(chain, cfg.Preferred...)
	chain = append(chain, cfg.Fallback...)
	return chain
}

// AvailableFallbackChain returns the fallback chain filtered to endpoints
// whose circuit is closed (or due a half-open test request). If every
// endpoint is unavailable the full chain is returned; better to try
// something than nothing.
func (r *Registry) AvailableFallbackChain(cap Capability) []string {
	chain := r.FallbackChain(cap)
	available := make([]string, 0, len(chain))
	for _, name := range chain {
		if r.IsEndpointAvailable(name) {
			available = append(available, name)
		}
	}
	if len(available) == 0 {
		return chain
	}
	return available
}

// Endpoint returns the endpoint configuration for a model name, or nil.
func (r *Registry) Endpoint(name string) *EndpointConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endpoints[name]
}

// SetCapability updates or adds a capability configuration.
func (r *Registry) SetCapability(cap Capability, cfg *CapabilityConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.capabilities == nil {
		r.capabilities = make(map[Capability]*CapabilityConfig)
	}
	r.capabilities[cap] = cfg
}

// SetEndpoint updates or adds an endpoint configuration.
func (r *Registry) SetEndpoint(name string, cfg *EndpointConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.endpoints == nil {
		r.endpoints = make(map[string]*EndpointConfig)
	}
	r.endpoints[name] = cfg
}

// SetHealthConfig updates the health tracking configuration.
func (r *Registry) SetHealthConfig(cfg HealthConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.healthCfg = cfg
}

// MarkEndpointSuccess records a successful request and closes the circuit.
func (r *Registry) MarkEndpointSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.healthLocked(name)
	h.lastSuccess = time.Now()
	h.failureCount = 0
	h.circuitOpen = false
}

// MarkEndpointFailure records a failed request, opening the circuit once
// the failure threshold is reached.
func (r *Registry) MarkEndpointFailure(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.healthLocked(name)
	h.lastFailure = time.Now()
	h.failureCount++
	if h.failureCount >= r.healthCfg.FailureThreshold {
		h.circuitOpen = true
		h.circuitOpenedAt = time.Now()
	}
}

// IsEndpointAvailable reports whether an endpoint should receive requests.
// A tripped endpoint becomes available again after the recovery timeout
// (half-open: one test request decides).
func (r *Registry) IsEndpointAvailable(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.health[name]
	if !ok || !h.circuitOpen {
		return true
	}
	return time.Since(h.circuitOpenedAt) > r.healthCfg.RecoveryTimeout
}

// healthLocked returns the health record for an endpoint, creating it if
// needed. Caller must hold r.mu.
func (r *Registry) healthLocked(name string) *endpointHealth {
	if r.health == nil {
		r.health = make(map[string]*endpointHealth)
	}
	h, ok := r.health[name]
	if !ok {
		h = &endpointHealth{}
		r.health[name] = h
	}
	return h
}
