package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds remote inference calls.
const DefaultTimeout = 10 * time.Second

// Ollama is a remote backend speaking the Ollama generate wire format:
// POST {endpoint}/api/generate with {"model","prompt","stream":false},
// response text in the "response" field of the JSON reply.
type Ollama struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

// NewOllama creates an Ollama backend. The endpoint has already been
// structurally validated by the agent definition.
func NewOllama(endpoint, model string) *Ollama {
	return &Ollama{
		endpoint: endpoint,
		model:    model,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

func (o *Ollama) Name() string { return "ollama:" + o.model }

func (o *Ollama) Complete(ctx context.Context, input string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":  o.model,
		"prompt": input,
		"stream": false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(msg))
	}

	var reply struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return reply.Response, nil
}
