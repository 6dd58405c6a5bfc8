package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req["model"])
		assert.Equal(t, "hello", req["prompt"])
		assert.Equal(t, false, req["stream"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"response": "hi",
			"done":     true,
		})
	}))
	defer server.Close()

	b := NewOllama(server.URL, "llama3")
	got, err := b.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
	assert.Equal(t, "ollama:llama3", b.Name())
}

func TestOllamaCompleteServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	b := NewOllama(server.URL, "llama3")
	_, err := b.Complete(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestOllamaCompleteContextCancel(t *testing.T) {
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer server.Close()
	defer close(blocked)

	b := NewOllama(server.URL, "llama3")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Complete(ctx, "hello")
	assert.Error(t, err)
}
