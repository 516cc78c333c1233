package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, name := range Names() {
		p, err := New(name, "key", Options{})
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}

	_, err := New("cohere", "key", Options{})
	assert.Error(t, err)
}

func TestOpenAIComplete(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello from gpt"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", Options{BaseURL: srv.URL})
	out, err := p.Complete(context.Background(), CompletionRequest{
		Model: "gpt-4o", Prompt: "hi", MaxTokens: 64, Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello from gpt", out)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o", gotBody["model"])
	assert.Equal(t, float64(64), gotBody["max_tokens"])

	msgs, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	msg := msgs[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "hi", msg["content"])
}

func TestAnthropicComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		require.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"hello from claude"}]}`))
	}))
	defer srv.Close()

	p := NewAnthropic("sk-ant", Options{BaseURL: srv.URL})
	out, err := p.Complete(context.Background(), CompletionRequest{Model: "claude-sonnet-4-5", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello from claude", out)
}

func TestGeminiComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/models/gemini-pro:generateContent", r.URL.Path)
		require.Equal(t, "g-key", r.URL.Query().Get("key"))

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hello from gemini"}]}}]}`))
	}))
	defer srv.Close()

	p := NewGemini("g-key", Options{BaseURL: srv.URL})
	out, err := p.Complete(context.Background(), CompletionRequest{Model: "gemini-pro", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello from gemini", out)
}

func TestCompleteNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			p, err := New(name, "key", Options{BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = p.Complete(context.Background(), CompletionRequest{Model: "m", Prompt: "hi"})
			require.Error(t, err)

			var rce *RemoteCallError
			require.ErrorAs(t, err, &rce)
			assert.Equal(t, name, rce.Provider)
			assert.Contains(t, rce.Error(), "429")
		})
	}
}

func TestCompleteMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected": true}`))
	}))
	defer srv.Close()

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			p, err := New(name, "key", Options{BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = p.Complete(context.Background(), CompletionRequest{Model: "m", Prompt: "hi"})
			var rce *RemoteCallError
			require.ErrorAs(t, err, &rce)
		})
	}
}

func TestCompleteTransportFailure(t *testing.T) {
	// Point at a server that is already closed.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	p := NewOpenAI("key", Options{BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), CompletionRequest{Model: "m", Prompt: "hi"})

	var rce *RemoteCallError
	require.ErrorAs(t, err, &rce)
	assert.Equal(t, NameOpenAI, rce.Provider)
	assert.NotNil(t, errors.Unwrap(rce))
}

func TestListModels(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			p, err := New(name, "key", Options{BaseURL: srv.URL})
			require.NoError(t, err)
			require.NoError(t, p.ListModels(context.Background()))
			assert.Equal(t, "/v1/models", gotPath)
		})
	}
}

func TestDefaultMaxTokens(t *testing.T) {
	opts := Options{}
	assert.Equal(t, defaultMaxTokens, opts.maxTokens(CompletionRequest{}))
	assert.Equal(t, 42, opts.maxTokens(CompletionRequest{MaxTokens: 42}))

	opts.MaxTokens = 512
	assert.Equal(t, 512, opts.maxTokens(CompletionRequest{}))
}
