package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider names.
const (
	NameOpenAI    = "openai"
	NameAnthropic = "anthropic"
	NameGemini    = "gemini"
)

// Names returns all supported provider names.
func Names() []string {
	return []string{NameOpenAI, NameAnthropic, NameGemini}
}

// CompletionRequest is a single-turn completion call.
type CompletionRequest struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Provider is a remote completion back-end.
type Provider interface {
	// Name returns the provider identifier ("openai", "anthropic", "gemini").
	Name() string

	// Complete issues one chat/completion request and returns the first
	// completion's text.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// ListModels issues the provider's lightweight authenticated
	// model-listing GET. Used to verify a credential.
	ListModels(ctx context.Context) error
}

// RemoteCallError wraps a failed provider call with the provider name and
// the underlying cause.
type RemoteCallError struct {
	Provider string
	Err      error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("remote call to %s failed: %v", e.Provider, e.Err)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

// remoteErr builds a RemoteCallError.
func remoteErr(provider string, format string, args ...any) error {
	return &RemoteCallError{Provider: provider, Err: fmt.Errorf(format, args...)}
}

// Options configures a provider client.
type Options struct {
	// BaseURL overrides the provider's public endpoint. Used for tests
	// and proxies.
	BaseURL string

	// MaxTokens is the default completion budget when the request leaves
	// it unset.
	MaxTokens int

	// Timeout bounds each HTTP call. Zero selects 60s.
	Timeout time.Duration

	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client
}

const (
	defaultTimeout   = 60 * time.Second
	defaultMaxTokens = 1024
)

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (o Options) maxTokens(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if o.MaxTokens > 0 {
		return o.MaxTokens
	}
	return defaultMaxTokens
}

// New creates the named provider client with the given API key.
func New(name, apiKey string, opts Options) (Provider, error) {
	switch name {
	case NameOpenAI:
		return NewOpenAI(apiKey, opts), nil
	case NameAnthropic:
		return NewAnthropic(apiKey, opts), nil
	case NameGemini:
		return NewGemini(apiKey, opts), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// doRequest issues one HTTP call and returns the body for 2xx responses.
// Any other outcome is a RemoteCallError.
func doRequest(ctx context.Context, client *http.Client, provider, method, url string, headers map[string]string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, remoteErr(provider, "create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, remoteErr(provider, "http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, remoteErr(provider, "read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, remoteErr(provider, "API error %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
