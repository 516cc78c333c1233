package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"disabled skips validation", func(c *Config) {
			c.Enabled = false
			c.Endpoint = ""
		}, false},
		{"enabled requires endpoint", func(c *Config) {
			c.Enabled = true
			c.Endpoint = ""
		}, true},
		{"enabled requires service name", func(c *Config) {
			c.Enabled = true
			c.ServiceName = ""
		}, true},
		{"insecure remote rejected", func(c *Config) {
			c.Enabled = true
			c.Endpoint = "collector.example.com:4317"
			c.Insecure = true
		}, true},
		{"secure remote allowed", func(c *Config) {
			c.Enabled = true
			c.Endpoint = "collector.example.com:4317"
			c.Insecure = false
		}, false},
		{"insecure localhost allowed", func(c *Config) {
			c.Enabled = true
			c.Endpoint = "localhost:4317"
			c.Insecure = true
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDisabledTelemetryIsNoop(t *testing.T) {
	cfg := NewDefaultConfig()
	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)

	assert.False(t, tel.Degraded())
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNilTelemetryIsSafe(t *testing.T) {
	var tel *Telemetry
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestIsLocalEndpoint(t *testing.T) {
	assert.True(t, isLocalEndpoint("localhost:4317"))
	assert.True(t, isLocalEndpoint("127.0.0.1:4317"))
	assert.False(t, isLocalEndpoint("collector.example.com:4317"))
	assert.False(t, isLocalEndpoint("10.0.0.5:4317"))
}
