// Package config provides configuration loading for agentd.
//
// Configuration is loaded from a YAML file (~/.config/agentd/config.yaml)
// and overridden by environment variables (AGENTD_SECTION_FIELD).
package config

import (
	"fmt"
	"time"
)

// Config holds the complete agentd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
	Agent         AgentConfig         `koanf:"agent"`
	Store         StoreConfig         `koanf:"store"`
	Assets        AssetsConfig        `koanf:"assets"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds the subset of logging settings exposed via config.
// The logging package owns encoder and redaction detail.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	OTLPEndpoint    string `koanf:"otlp_endpoint"`
}

// AgentConfig holds task orchestration settings.
type AgentConfig struct {
	// Mode selects the execution strategy: "offline" or "cloud".
	Mode string `koanf:"mode"`

	// Provider selects the remote back-end when Mode is "cloud":
	// "openai", "anthropic", or "gemini".
	Provider string `koanf:"provider"`

	// Model is the model label sent to the provider and recorded on
	// experiences.
	Model string `koanf:"model"`

	// RequestTimeout bounds a single remote completion call.
	RequestTimeout Duration `koanf:"request_timeout"`

	// Providers holds per-provider endpoint overrides, keyed by provider
	// name. Empty base URLs fall back to each provider's public endpoint.
	Providers map[string]ProviderConfig `koanf:"providers"`
}

// ProviderConfig holds per-provider settings.
type ProviderConfig struct {
	BaseURL   string `koanf:"base_url"`
	MaxTokens int    `koanf:"max_tokens"`
}

// StoreConfig holds experience store configuration.
type StoreConfig struct {
	// Path is the SQLite database file. Empty selects
	// ~/.config/agentd/agentd.db.
	Path string `koanf:"path"`

	// MaxExperiences caps stored records; at capacity the oldest 20% are
	// evicted before a new record is appended.
	MaxExperiences int `koanf:"max_experiences"`
}

// AssetsConfig holds model/asset download configuration.
type AssetsConfig struct {
	// Dir is the directory downloaded model files are written to.
	Dir string `koanf:"dir"`

	// MinSizeBytes is the integrity floor; smaller downloads are rejected
	// and removed.
	MinSizeBytes int64 `koanf:"min_size_bytes"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 1-65535, got %d", c.Server.Port)
	}
	switch c.Agent.Mode {
	case "offline", "cloud":
	default:
		return fmt.Errorf("agent mode must be 'offline' or 'cloud', got %q", c.Agent.Mode)
	}
	if c.Agent.Mode == "cloud" {
		switch c.Agent.Provider {
		case "openai", "anthropic", "gemini":
		default:
			return fmt.Errorf("agent provider must be 'openai', 'anthropic', or 'gemini', got %q", c.Agent.Provider)
		}
	}
	if c.Store.MaxExperiences < 1 {
		return fmt.Errorf("store max_experiences must be >= 1, got %d", c.Store.MaxExperiences)
	}
	if c.Assets.MinSizeBytes < 0 {
		return fmt.Errorf("assets min_size_bytes cannot be negative")
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "agentd"
	}

	if cfg.Agent.Mode == "" {
		cfg.Agent.Mode = "offline"
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = "local-stub"
	}
	if cfg.Agent.RequestTimeout == 0 {
		cfg.Agent.RequestTimeout = Duration(60 * time.Second)
	}

	if cfg.Store.MaxExperiences == 0 {
		cfg.Store.MaxExperiences = 1000
	}

	if cfg.Assets.MinSizeBytes == 0 {
		cfg.Assets.MinSizeBytes = 1 << 20 // 1MB integrity floor
	}
}
