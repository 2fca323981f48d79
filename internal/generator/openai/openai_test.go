package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatCall struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newFakeServer(t *testing.T, reply string) (*httptest.Server, func() []chatCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []chatCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var call chatCall
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		mu.Lock()
		calls = append(calls, call)
		mu.Unlock()

		choices := []map[string]any{}
		if reply != "" {
			choices = append(choices, map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   call.Model,
			"choices": choices,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, func() []chatCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]chatCall(nil), calls...)
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(Config{APIKey: "k"})
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, c.Model())
	assert.Equal(t, DefaultMaxTokens, c.maxTokens)
}

func TestComplete_SendsPromptAsUserMessage(t *testing.T) {
	srv, calls := newFakeServer(t, "The hardness is 62 HRC.")
	c, err := NewClient(Config{BaseURL: srv.URL + "/v1", APIKey: "test-key", Model: "local-model", MaxTokens: 256})
	require.NoError(t, err)

	got, err := c.Complete(context.Background(), "PROMPT")

	require.NoError(t, err)
	assert.Equal(t, "The hardness is 62 HRC.", got)
	recorded := calls()
	require.Len(t, recorded, 1)
	assert.Equal(t, "local-model", recorded[0].Model)
	assert.Equal(t, 256, recorded[0].MaxTokens)
	require.Len(t, recorded[0].Messages, 1)
	assert.Equal(t, "user", recorded[0].Messages[0].Role)
	assert.Equal(t, "PROMPT", recorded[0].Messages[0].Content)
}

func TestComplete_NoChoices(t *testing.T) {
	srv, _ := newFakeServer(t, "")
	c, err := NewClient(Config{BaseURL: srv.URL + "/v1", APIKey: "test-key"})
	require.NoError(t, err)

	got, err := c.Complete(context.Background(), "PROMPT")

	require.NoError(t, err)
	assert.Equal(t, EmptyCompletion, got)
}

func TestComplete_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()
	c, err := NewClient(Config{BaseURL: srv.URL + "/v1", APIKey: "test-key"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "PROMPT")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}
