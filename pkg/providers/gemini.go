package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com"

// Gemini talks to a Gemini-style generateContent API. The credential rides
// in a query parameter rather than a header.
type Gemini struct {
	apiKey string
	base   string
	opts   Options
	client *http.Client
}

// NewGemini creates a Gemini-style client.
func NewGemini(apiKey string, opts Options) *Gemini {
	base := opts.BaseURL
	if base == "" {
		base = geminiDefaultBaseURL
	}
	return &Gemini{
		apiKey: apiKey,
		base:   base,
		opts:   opts,
		client: opts.httpClient(),
	}
}

// Name returns "gemini".
func (p *Gemini) Name() string { return NameGemini }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Complete issues POST /v1/models/{model}:generateContent and returns
// candidates[0].content.parts[0].text.
func (p *Gemini) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: req.Prompt}}}},
	})
	if err != nil {
		return "", remoteErr(NameGemini, "marshal request: %w", err)
	}

	endpoint := p.base + "/v1/models/" + url.PathEscape(req.Model) +
		":generateContent?key=" + url.QueryEscape(p.apiKey)

	data, err := doRequest(ctx, p.client, NameGemini, http.MethodPost, endpoint, nil, body)
	if err != nil {
		return "", err
	}

	var resp geminiResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", remoteErr(NameGemini, "unmarshal response: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", remoteErr(NameGemini, "response contained no candidates")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// ListModels issues GET /v1/models?key=...
func (p *Gemini) ListModels(ctx context.Context) error {
	endpoint := p.base + "/v1/models?key=" + url.QueryEscape(p.apiKey)
	_, err := doRequest(ctx, p.client, NameGemini, http.MethodGet, endpoint, nil, nil)
	return err
}
