package orchestrator

import (
	"strings"
	"time"

	"github.com/fyrsmithlabs/agentd/internal/experience"
	"github.com/fyrsmithlabs/agentd/pkg/providers"
)

// TaskRequest describes one task to execute.
type TaskRequest struct {
	// Description is the task text. Required.
	Description string `json:"description"`

	// Input is optional supporting material passed to the execution
	// strategy alongside the description.
	Input string `json:"input,omitempty"`

	// Mode overrides the executor's configured mode when set.
	Mode experience.Mode `json:"mode,omitempty"`

	// Model overrides the executor's configured model label when set.
	Model string `json:"model,omitempty"`
}

// Config holds executor settings. Zero values fall back to offline mode
// with a stub model label.
type Config struct {
	// Mode is the default execution strategy for requests that leave
	// Mode unset.
	Mode experience.Mode

	// Provider selects the remote back-end used in cloud mode.
	Provider string

	// Model is the default model label.
	Model string

	// RequestTimeout bounds one remote completion call. Zero selects the
	// provider client's default.
	RequestTimeout time.Duration

	// Providers holds per-provider client options keyed by provider
	// name, mainly endpoint overrides for tests and proxies.
	Providers map[string]providers.Options
}

func (c Config) mode(req TaskRequest) experience.Mode {
	if req.Mode != "" {
		return req.Mode
	}
	if c.Mode != "" {
		return c.Mode
	}
	return experience.ModeOffline
}

func (c Config) model(req TaskRequest) string {
	if req.Model != "" {
		return req.Model
	}
	if c.Model != "" {
		return c.Model
	}
	return "local-stub"
}

func (c Config) providerOptions(name string) providers.Options {
	opts := c.Providers[name]
	if opts.Timeout == 0 {
		opts.Timeout = c.RequestTimeout
	}
	return opts
}

// CredentialSource supplies per-provider API keys. *vault.Vault satisfies
// this.
type CredentialSource interface {
	Get(provider string) (string, bool)
}

// SuccessPolicy decides whether an execute-phase output counts as a
// successful task. Injected so callers can replace the default heuristic
// with real validation.
type SuccessPolicy func(output string) bool

// DefaultSuccessPolicy marks a task failed when its execute output contains
// the literal substring "error" (case-sensitive). This is a heuristic, not
// semantic validation: output that legitimately mentions the word is
// misclassified.
func DefaultSuccessPolicy(output string) bool {
	return !strings.Contains(output, "error")
}
