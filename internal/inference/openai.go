package inference

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI is a remote backend speaking the OpenAI-compatible chat
// completions format, for model servers (vLLM, llama.cpp, LM Studio) that
// expose {endpoint}/v1 instead of the Ollama API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI-format backend against a custom endpoint.
func NewOpenAI(endpoint, model string) *OpenAI {
	cfg := openai.DefaultConfig("")
	cfg.BaseURL = endpoint + "/v1"
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (o *OpenAI) Name() string { return "openai:" + o.model }

func (o *OpenAI) Complete(ctx context.Context, input string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
