package comicbot

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// DefaultModel is used when no model override is configured.
const DefaultModel = string(anthropic.ModelClaude3_5SonnetLatest)

// ClaudeClient is a Client backed by Anthropic's Messages API.
type ClaudeClient struct {
	client *anthropic.Client
	model  string
}

// NewClaudeClient builds a client for the Anthropic Messages API. The SDK
// retries transient failures itself, up to maxRetries times.
func NewClaudeClient(apiKey, model string, maxRetries int) *ClaudeClient {
	if model == "" {
		model = DefaultModel
	}
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(maxRetries),
	)
	return &ClaudeClient{
		client: client,
		model:  model,
	}
}

// SendMessage sends prompt as a single user message.
func (c *ClaudeClient) SendMessage(ctx context.Context, prompt string, maxTokens int64) (Content, error) {
	logger.Debug("sending message", zap.String("model", c.model), zap.Int64("max_tokens", maxTokens))

	message, err := c.client.Messages.New(
		ctx,
		anthropic.MessageNewParams{
			Model:     anthropic.F(anthropic.Model(c.model)),
			MaxTokens: anthropic.F(maxTokens),
			Messages: anthropic.F([]anthropic.MessageParam{
				anthropic.NewUserMessage(
					anthropic.NewTextBlock(prompt),
				),
			}),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		return nil, fmt.Errorf("empty response from claude")
	}

	content := make(Content, 0, len(message.Content))
	for _, block := range message.Content {
		content = append(content, ContentBlock{
			Type: string(block.Type),
			Text: block.Text,
		})
	}
	return content, nil
}
