package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitix/habitix/llm"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestLoadFromFileLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "habitix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
llm:
  endpoints:
    fast-model:
      provider: ollama
      url: http://localhost:11434/v1
      model: llama3.2
  capabilities:
    roadmap:
      preferred: [fast-model]
  retry:
    max_attempts: 5
generator:
  temperature: 0.3
`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.Server.Addr)
	// Untouched sections keep their defaults.
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "api", cfg.Server.APIPrefix)
	assert.Equal(t, 0.3, cfg.Generator.Temperature)

	endpoint, ok := cfg.LLM.Endpoints["fast-model"]
	require.True(t, ok)
	assert.Equal(t, "ollama", endpoint.Provider)

	assert.Equal(t, 5, cfg.LLM.Retry.MaxAttempts)
	// Retry knobs not set in the file keep their defaults.
	assert.Equal(t, llm.DefaultRetryConfig().BackoffBase, cfg.LLM.Retry.BackoffBase)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Generator.Temperature = 1.5
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.LLM.Endpoints = map[string]llm.EndpointConfig{
		"broken": {Model: "x"},
	}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.LLM.Capabilities = map[string]llm.CapabilityConfig{
		"juggling": {Preferred: []string{"m"}},
	}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.LLM.Retry.MaxAttempts = 0
	assert.Error(t, cfg.Validate())
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("HABITIX_NATS_URL", "nats://elsewhere:4222")
	t.Setenv("HABITIX_ADDR", ":7070")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, "nats://elsewhere:4222", cfg.NATS.URL)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestBuildRegistryAppliesOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Endpoints = map[string]llm.EndpointConfig{
		"my-model": {Provider: "ollama", URL: "http://localhost:11434/v1", Model: "llama3.2"},
	}
	cfg.LLM.Capabilities = map[string]llm.CapabilityConfig{
		"roadmap": {Preferred: []string{"my-model"}},
	}

	registry, err := cfg.BuildRegistry()
	require.NoError(t, err)

	chain := registry.FallbackChain(llm.CapabilityRoadmap)
	require.NotEmpty(t, chain)
	assert.Equal(t, "my-model", chain[0])

	endpoint := registry.Endpoint("my-model")
	require.NotNil(t, endpoint)
	assert.Equal(t, "ollama", endpoint.Provider)

	// Default chat routing stays intact.
	assert.NotEmpty(t, registry.FallbackChain(llm.CapabilityChat))
}

func TestSaveAndReloadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "habitix.yaml")

	cfg := DefaultConfig()
	cfg.Server.Addr = ":9999"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", loaded.Server.Addr)
}

func TestWatcherAppliesUpdatedRouting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "habitix.yaml")
	require.NoError(t, DefaultConfig().SaveToFile(path))

	registry := llm.NewDefaultRegistry()
	watcher, err := NewWatcher(path, registry, nil)
	require.NoError(t, err)
	watcher.debounce = 50 * time.Millisecond

	reloaded := make(chan *Config, 1)
	watcher.OnReload = func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))
	defer watcher.Stop()

	updated := DefaultConfig()
	updated.LLM.Endpoints = map[string]llm.EndpointConfig{
		"hot-model": {Provider: "ollama", URL: "http://localhost:11434/v1", Model: "llama3.2"},
	}
	updated.LLM.Capabilities = map[string]llm.CapabilityConfig{
		"chat": {Preferred: []string{"hot-model"}},
	}
	require.NoError(t, updated.SaveToFile(path))

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("config reload did not fire")
	}

	chain := registry.FallbackChain(llm.CapabilityChat)
	require.NotEmpty(t, chain)
	assert.Equal(t, "hot-model", chain[0])
}

func TestWatcherKeepsRoutingOnBrokenConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "habitix.yaml")
	require.NoError(t, DefaultConfig().SaveToFile(path))

	registry := llm.NewDefaultRegistry()
	before := registry.FallbackChain(llm.CapabilityRoadmap)

	watcher, err := NewWatcher(path, registry, nil)
	require.NoError(t, err)
	watcher.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))
	defer watcher.Stop()

	require.NoError(t, os.WriteFile(path, []byte("generator:\n  temperature: 9.0\n"), 0644))
	time.Sleep(300 * time.Millisecond)

	assert.Equal(t, before, registry.FallbackChain(llm.CapabilityRoadmap))
}
