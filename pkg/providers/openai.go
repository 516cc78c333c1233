package providers

import (
	"context"
	"encoding/json"
	"net/http"
)

const openAIDefaultBaseURL = "https://api.openai.com"

// OpenAI talks to an OpenAI-style chat completions API.
type OpenAI struct {
	apiKey string
	base   string
	opts   Options
	client *http.Client
}

// NewOpenAI creates an OpenAI-style client.
func NewOpenAI(apiKey string, opts Options) *OpenAI {
	base := opts.BaseURL
	if base == "" {
		base = openAIDefaultBaseURL
	}
	return &OpenAI{
		apiKey: apiKey,
		base:   base,
		opts:   opts,
		client: opts.httpClient(),
	}
}

// Name returns "openai".
func (p *OpenAI) Name() string { return NameOpenAI }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete issues POST /v1/chat/completions and returns
// choices[0].message.content.
func (p *OpenAI) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	body, err := json.Marshal(openAIRequest{
		Model:       req.Model,
		Messages:    []openAIMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		MaxTokens:   p.opts.maxTokens(req),
	})
	if err != nil {
		return "", remoteErr(NameOpenAI, "marshal request: %w", err)
	}

	data, err := doRequest(ctx, p.client, NameOpenAI, http.MethodPost,
		p.base+"/v1/chat/completions", p.headers(), body)
	if err != nil {
		return "", err
	}

	var resp openAIResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", remoteErr(NameOpenAI, "unmarshal response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", remoteErr(NameOpenAI, "response contained no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// ListModels issues GET /v1/models.
func (p *OpenAI) ListModels(ctx context.Context) error {
	_, err := doRequest(ctx, p.client, NameOpenAI, http.MethodGet,
		p.base+"/v1/models", p.headers(), nil)
	return err
}

func (p *OpenAI) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + p.apiKey,
	}
}
