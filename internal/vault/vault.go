// Package vault stores per-provider API credentials.
//
// Credentials live in a JSON file with 0600 permissions under the agentd
// config directory, guarded by a mutex and rewritten atomically on every
// change. Absence of a credential is an absence, not an error; callers that
// require one (remote execution) translate absence into
// ErrMissingCredential.
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentd/internal/logging"
	"github.com/fyrsmithlabs/agentd/pkg/providers"
)

// ErrMissingCredential signals that remote execution was requested with no
// stored secret for the selected provider.
var ErrMissingCredential = errors.New("no credential stored for provider")

// credentialFileMode keeps secrets owner-readable only.
const credentialFileMode = 0600

// Vault holds provider credentials backed by a JSON file.
type Vault struct {
	mu     sync.RWMutex
	path   string
	values map[string]string
	logger *zap.Logger

	// verifyOpts configures the provider clients built by Verify.
	verifyOpts providers.Options
}

// New creates a vault backed by the file at path, loading any existing
// credentials. A missing file is an empty vault, not an error.
func New(path string, logger *zap.Logger) (*Vault, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := &Vault{
		path:   path,
		values: make(map[string]string),
		logger: logger,
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// First run.
	case err != nil:
		return nil, fmt.Errorf("reading credential file: %w", err)
	default:
		if err := json.Unmarshal(data, &v.values); err != nil {
			return nil, fmt.Errorf("decoding credential file: %w", err)
		}
	}

	return v, nil
}

// SetVerifyOptions configures the provider clients Verify builds.
// Primarily used by tests to point at a stub endpoint.
func (v *Vault) SetVerifyOptions(opts providers.Options) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.verifyOpts = opts
}

// Store saves the secret for a provider and persists the file.
func (v *Vault) Store(provider, secret string) error {
	if provider == "" {
		return fmt.Errorf("provider cannot be empty")
	}
	if secret == "" {
		return fmt.Errorf("secret cannot be empty")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.values[provider] = secret
	if err := v.persistLocked(); err != nil {
		delete(v.values, provider)
		return err
	}

	v.logger.Info("credential stored",
		zap.String("provider", provider),
		logging.RedactedString("secret", secret))
	return nil
}

// Get returns the secret for a provider. The second return is false when
// no credential is stored.
func (v *Vault) Get(provider string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	secret, ok := v.values[provider]
	return secret, ok
}

// Delete removes a provider's credential. Missing providers are a no-op.
func (v *Vault) Delete(provider string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.values[provider]; !ok {
		return nil
	}
	delete(v.values, provider)
	return v.persistLocked()
}

// Providers returns the names with stored credentials.
func (v *Vault) Providers() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, 0, len(v.values))
	for name := range v.values {
		out = append(out, name)
	}
	return out
}

// Verify checks a credential by issuing the provider's lightweight
// authenticated model-listing GET and reporting whether it succeeded.
// An explicit secret overrides the stored one, so a key can be checked
// before being saved.
func (v *Vault) Verify(ctx context.Context, provider, secret string) (bool, error) {
	if secret == "" {
		stored, ok := v.Get(provider)
		if !ok {
			return false, ErrMissingCredential
		}
		secret = stored
	}

	v.mu.RLock()
	opts := v.verifyOpts
	v.mu.RUnlock()

	client, err := providers.New(provider, secret, opts)
	if err != nil {
		return false, err
	}

	if err := client.ListModels(ctx); err != nil {
		v.logger.Debug("credential verification failed",
			zap.String("provider", provider),
			zap.Error(err))
		return false, nil
	}
	return true, nil
}

// persistLocked writes the credential file atomically with 0600 perms.
func (v *Vault) persistLocked() error {
	data, err := json.MarshalIndent(v.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	dir := filepath.Dir(v.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating credential directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("creating temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(credentialFileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("setting credential file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing credential file: %w", err)
	}

	if err := os.Rename(tmpName, v.path); err != nil {
		return fmt.Errorf("replacing credential file: %w", err)
	}
	return nil
}
