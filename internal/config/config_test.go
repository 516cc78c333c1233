package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadWithFileDefaults(t *testing.T) {
	cfg, err := LoadWithFile(writeConfigFile(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "offline", cfg.Agent.Mode)
	assert.Equal(t, 1000, cfg.Store.MaxExperiences)
	assert.Equal(t, int64(1<<20), cfg.Assets.MinSizeBytes)
	assert.Equal(t, "agentd", cfg.Observability.ServiceName)
}

func TestLoadWithFileYAML(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 8181
agent:
  mode: cloud
  provider: anthropic
  model: claude-sonnet-4-5
  request_timeout: 30s
store:
  max_experiences: 50
`)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "cloud", cfg.Agent.Mode)
	assert.Equal(t, "anthropic", cfg.Agent.Provider)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Agent.Model)
	assert.Equal(t, 30*time.Second, cfg.Agent.RequestTimeout.Duration())
	assert.Equal(t, 50, cfg.Store.MaxExperiences)
}

func TestLoadWithFileEnvOverride(t *testing.T) {
	t.Setenv("AGENTD_SERVER_PORT", "7070")
	t.Setenv("AGENTD_AGENT_MODE", "cloud")
	t.Setenv("AGENTD_AGENT_PROVIDER", "openai")

	cfg, err := LoadWithFile(writeConfigFile(t, "server:\n  port: 8181\n"))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "cloud", cfg.Agent.Mode)
	assert.Equal(t, "openai", cfg.Agent.Provider)
}

func TestLoadWithFileRejectsInsecurePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8181\n"), 0644))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server port",
		},
		{
			name:    "bad mode",
			mutate:  func(c *Config) { c.Agent.Mode = "hybrid" },
			wantErr: "agent mode",
		},
		{
			name: "cloud without provider",
			mutate: func(c *Config) {
				c.Agent.Mode = "cloud"
				c.Agent.Provider = ""
			},
			wantErr: "agent provider",
		},
		{
			name:    "zero max experiences",
			mutate:  func(c *Config) { c.Store.MaxExperiences = 0 },
			wantErr: "max_experiences",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			applyDefaults(cfg)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("sk-very-secret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "sk-very-secret", s.Value())
	assert.True(t, s.IsSet())

	out, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(out))

	var empty Secret
	assert.False(t, empty.IsSet())
	assert.Equal(t, "", empty.String())
}
