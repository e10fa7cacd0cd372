package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/logicscan/pkg/shared/config"
)

func TestOpenAIProviderComplete(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"analysis\": []}"}, "finish_reason": "stop"}]
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("secret", srv.URL+"/v1/")
	text, err := p.Complete(context.Background(), Request{Model: "gpt-4o-mini", Prompt: "review", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"analysis": []}`, text)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	format, ok := got["response_format"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestOpenAIProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIProvider("k", srv.URL).Complete(context.Background(), Request{Model: "m", Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestOllamaProviderComplete(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model": "llama3", "message": {"role": "assistant", "content": "{\"analysis\": []}"}, "done": true}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(resty.New(), srv.URL+"/")
	text, err := p.Complete(context.Background(), Request{Model: "llama3", Prompt: "review", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"analysis": []}`, text)

	assert.Equal(t, "llama3", got.Model)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "review", got.Messages[0].Content)
}

func TestOllamaProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "model \"nope\" not found"}`))
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(resty.New(), srv.URL).Complete(context.Background(), Request{Model: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `model "nope" not found`)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(&config.Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OllamaProvider{}, p)

	p, err = NewProvider(&config.Config{LLM: config.LLM{Provider: ProviderOpenAI, BaseURL: "http://localhost:11434/v1"}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, p)

	_, err = NewProvider(&config.Config{LLM: config.LLM{Provider: "bard"}}, nil)
	assert.Error(t, err)
}

func TestOllamaProviderLeavesRetriesToDispatcher(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		hj, ok := w.(http.Hijacker)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if conn, _, err := hj.Hijack(); err == nil {
			_ = conn.Close()
		}
	}))
	defer srv.Close()

	cfg := &config.Config{LLM: config.LLM{BaseURL: srv.URL}}
	cfg.HTTPClient.RetryCount = 3
	p, err := NewProvider(cfg, nil)
	require.NoError(t, err)

	d := NewDispatcher(p, Options{MaxAttempts: 3, RetryDelay: time.Millisecond, Concurrency: 1}, nil, nil)
	outcomes, err := d.Dispatch(context.Background(), []Job{{File: "auth/login.py", Total: 1, Snippet: "def login(): pass"}})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	_, failed := outcomes[0].Result.(Failed)
	assert.True(t, failed)
	assert.Equal(t, 3, outcomes[0].Attempts)
	assert.Equal(t, int32(3), requests.Load())
}
