// Package testutil provides test utilities and helpers for apimprobe tests.
//
// This package contains shared test infrastructure including configuration
// builders, a capturing logger and environment helpers.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/systmms/apimprobe/internal/config"
	"gopkg.in/yaml.v3"
)

// TestConfigBuilder provides a fluent API for building test configurations.
//
// Example usage:
//
//	cfg := NewTestConfig(t).
//	    WithGateway(srv.URL).
//	    WithTenant("wlrs", config.TenantConfig{}).
//	    WithEnv("WLRS_SUBSCRIPTION_KEY", "K1").
//	    Config()
//	require.NoError(t, cfg.Load())
type TestConfigBuilder struct {
	def     *config.Definition
	env     map[string]string
	tempDir string
	t       *testing.T
}

// NewTestConfig creates a builder starting from an empty version 1 file.
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	return &TestConfigBuilder{
		def: &config.Definition{
			Version: 1,
			Tenants: make(map[string]config.TenantConfig),
		},
		env:     make(map[string]string),
		tempDir: t.TempDir(),
		t:       t,
	}
}

// WithGateway sets gateway.base_url.
func (b *TestConfigBuilder) WithGateway(baseURL string) *TestConfigBuilder {
	b.def.Gateway.BaseURL = baseURL
	return b
}

// WithHeader sets gateway.header.
func (b *TestConfigBuilder) WithHeader(header string) *TestConfigBuilder {
	b.def.Gateway.Header = header
	return b
}

// WithTenant adds a tenant.
func (b *TestConfigBuilder) WithTenant(name string, tc config.TenantConfig) *TestConfigBuilder {
	b.def.Tenants[name] = tc
	return b
}

// WithRetry sets the retry bound and delay.
func (b *TestConfigBuilder) WithRetry(maxRetries int, delay time.Duration) *TestConfigBuilder {
	b.def.Retry.MaxRetries = &maxRetries
	b.def.Retry.Delay = delay
	return b
}

// WithPoll sets the poll interval and maximum wait.
func (b *TestConfigBuilder) WithPoll(interval, maxWait time.Duration) *TestConfigBuilder {
	b.def.Poll.Interval = interval
	b.def.Poll.MaxWait = maxWait
	return b
}

// WithRotation sets the rotation section.
func (b *TestConfigBuilder) WithRotation(rc config.RotationConfig) *TestConfigBuilder {
	b.def.Rotation = rc
	return b
}

// WithEnv sets a variable visible to Config.LookupEnv. The process
// environment is never consulted.
func (b *TestConfigBuilder) WithEnv(key, value string) *TestConfigBuilder {
	b.env[key] = value
	return b
}

// Build returns the definition as written to disk.
func (b *TestConfigBuilder) Build() *config.Definition {
	return b.def
}

// Write writes apimprobe.yaml to the temp directory and returns its path.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	path := filepath.Join(b.tempDir, "apimprobe.yaml")
	data, err := yaml.Marshal(b.def)
	if err != nil {
		b.t.Fatalf("Failed to marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		b.t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

// Config writes the file and returns an unloaded Config pointing at it,
// with a discarding logger and the builder's environment.
func (b *TestConfigBuilder) Config() *config.Config {
	b.t.Helper()

	return &config.Config{
		Path:      b.Write(),
		Logger:    NewTestLogger(b.t).Logger,
		LookupEnv: EnvLookup(b.env),
	}
}

// WriteTestConfig writes raw YAML to a temp file and returns its path.
func WriteTestConfig(t *testing.T, yamlContent string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "apimprobe.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}
