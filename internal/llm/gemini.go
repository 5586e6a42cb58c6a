package llm

import (
	"context"
	"strings"

	genai "google.golang.org/genai"
)

func init() {
	RegisterProvider(ProviderGemini, func(ctx context.Context, cfg Config) (Client, error) {
		return NewGeminiClient(ctx, cfg.GeminiKey, cfg.GeminiModel)
	})
}

// GeminiClient is a thin wrapper around the official genai client.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }

// Complete sends the prompt at temperature 0 and returns the first candidate text.
func (g *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	var zero float32
	cfg := &genai.GenerateContentConfig{Temperature: &zero}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}}},
		cfg,
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	txt := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)
	if txt == "" {
		return "", ErrEmptyResponse
	}
	return txt, nil
}
