package providers

import (
	"context"
	"encoding/json"
	"net/http"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
)

// Anthropic talks to an Anthropic-style messages API.
type Anthropic struct {
	apiKey string
	base   string
	opts   Options
	client *http.Client
}

// NewAnthropic creates an Anthropic-style client.
func NewAnthropic(apiKey string, opts Options) *Anthropic {
	base := opts.BaseURL
	if base == "" {
		base = anthropicDefaultBaseURL
	}
	return &Anthropic{
		apiKey: apiKey,
		base:   base,
		opts:   opts,
		client: opts.httpClient(),
	}
}

// Name returns "anthropic".
func (p *Anthropic) Name() string { return NameAnthropic }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// Complete issues POST /v1/messages and returns content[0].text.
func (p *Anthropic) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     req.Model,
		MaxTokens: p.opts.maxTokens(req),
		Messages:  []anthropicMessage{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return "", remoteErr(NameAnthropic, "marshal request: %w", err)
	}

	data, err := doRequest(ctx, p.client, NameAnthropic, http.MethodPost,
		p.base+"/v1/messages", p.headers(), body)
	if err != nil {
		return "", err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", remoteErr(NameAnthropic, "unmarshal response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", remoteErr(NameAnthropic, "response contained no content blocks")
	}
	return resp.Content[0].Text, nil
}

// ListModels issues GET /v1/models.
func (p *Anthropic) ListModels(ctx context.Context) error {
	_, err := doRequest(ctx, p.client, NameAnthropic, http.MethodGet,
		p.base+"/v1/models", p.headers(), nil)
	return err
}

func (p *Anthropic) headers() map[string]string {
	return map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}
}
