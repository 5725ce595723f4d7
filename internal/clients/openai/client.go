package openai

import (
	"context"
	"fmt"

	"outreach-server/internal/observability"

	"github.com/openai/openai-go"
	openaiOption "github.com/openai/openai-go/option"
)

// Client is a thin chat-completion wrapper used for lead reply triage
type Client struct {
	apiKey string
	model  openai.ChatModel
	logger *observability.Logger
}

// NewClient creates an OpenAI client. An empty API key yields a nil client;
// callers treat nil as triage disabled.
func NewClient(apiKey string, logger *observability.Logger) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey: apiKey,
		model:  openai.ChatModelGPT4oMini,
		logger: logger,
	}
}

// Complete sends one system+user prompt pair and returns the assistant text
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	options := []openaiOption.RequestOption{
		openaiOption.WithAPIKey(c.apiKey),
	}
	client := openai.NewClient(options...)

	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return completion.Choices[0].Message.Content, nil
}
