// Package llm talks to the language model that reviews code chunks.
package llm

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/logicscan/pkg/shared/config"
	"github.com/scan-io-git/logicscan/pkg/shared/errors"
	"github.com/scan-io-git/logicscan/pkg/shared/httpclient"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	DefaultProvider  = ProviderOllama
	DefaultOllamaURL = "http://localhost:11434"
	DefaultModel     = "llama3"
)

// Request is a single completion request.
type Request struct {
	Model       string
	Prompt      string
	Temperature float32
	// JSON asks the provider to constrain the answer to a JSON object.
	JSON bool
}

// Provider is a text completion backend.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// NewProvider builds the provider selected by the llm section of cfg.
func NewProvider(cfg *config.Config, logger hclog.Logger) (Provider, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	llmCfg := cfg.LLM
	switch name := config.SetThen(llmCfg.Provider, DefaultProvider); name {
	case ProviderOpenAI:
		apiKey := config.EnvOr("LOGICSCAN_LLM_API_KEY", llmCfg.APIKey)
		return NewOpenAIProvider(apiKey, llmCfg.BaseURL), nil
	case ProviderOllama:
		// The dispatcher is the only retry layer for model calls.
		client := httpclient.InitializeRestyClient(logger.Named("ollama"), cfg).SetRetryCount(0)
		return NewOllamaProvider(client, config.SetThen(llmCfg.BaseURL, DefaultOllamaURL)), nil
	default:
		return nil, errors.NewNotImplementedError("Complete", name)
	}
}
