package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClient_Chat(t *testing.T) {
	var gotReq ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		resp := ollamaChatResponse{
			Message: Message{Role: "assistant", Content: "ACTION_LEFT"},
			Done:    true,
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()
	t.Setenv("OLLAMA_BASE_URL", srv.URL)

	client, err := NewOllamaClient("qwen3:8b")
	require.NoError(t, err)

	temp := float32(0.7)
	maxTokens := 64
	out, err := client.Chat(context.Background(), []Message{
		{Role: "system", Content: "You play arcade games."},
		{Role: "user", Content: "Tick 4."},
	}, GenerationParams{Temperature: &temp, MaxTokens: &maxTokens})
	require.NoError(t, err)
	assert.Equal(t, "ACTION_LEFT", out)

	assert.Equal(t, "qwen3:8b", gotReq.Model)
	assert.False(t, gotReq.Stream)
	assert.Len(t, gotReq.Messages, 2)
	assert.InDelta(t, 0.7, gotReq.Options["temperature"], 0.001)
	assert.EqualValues(t, 64, gotReq.Options["num_predict"])
}

func TestOllamaClient_Chat_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()
	t.Setenv("OLLAMA_BASE_URL", srv.URL)

	client, err := NewOllamaClient("llama3")
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, GenerationParams{})
	assert.Error(t, err)
}

func TestNewOllamaClient_EmptyModel(t *testing.T) {
	_, err := NewOllamaClient("")
	assert.Error(t, err)
}
