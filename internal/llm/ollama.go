package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Format   string                 `json:"format,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// OllamaProvider calls the native Ollama chat API.
type OllamaProvider struct {
	client  *resty.Client
	baseURL string
}

// NewOllamaProvider creates a provider on top of a configured resty client.
func NewOllamaProvider(client *resty.Client, baseURL string) *OllamaProvider {
	return &OllamaProvider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Complete implements Provider.
func (p *OllamaProvider) Complete(ctx context.Context, req Request) (string, error) {
	body := ollamaChatRequest{
		Model:    req.Model,
		Messages: []ollamaMessage{{Role: "user", Content: req.Prompt}},
		Options:  map[string]interface{}{"temperature": req.Temperature},
	}
	if req.JSON {
		body.Format = "json"
	}

	var result, apiErr ollamaChatResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post(p.baseURL + "/api/chat")
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("ollama returned %s: %s", resp.Status(), apiErr.Error)
	}
	return result.Message.Content, nil
}
