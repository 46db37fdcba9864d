// Package genai wraps the Anthropic API behind a narrow completion
// interface so extraction code can be tested without network access.
package genai

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// Client is the single model operation the extraction pipeline needs.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config controls the SDK-backed client.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
}

// SDKClient implements Client using the official anthropic-sdk-go.
type SDKClient struct {
	client    sdk.Client
	model     string
	maxTokens int64
	logger    *zap.Logger
}

// New creates an Anthropic-backed client.
func New(cfg Config, logger *zap.Logger) (*SDKClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SDKClient{
		client:    sdk.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}, nil
}

// Complete sends one system+user exchange and returns the concatenated text
// blocks of the reply.
func (c *SDKClient) Complete(ctx context.Context, system, user string) (string, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: create message: %w", err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}

	c.logger.Debug("model completion",
		zap.String("model", string(msg.Model)),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
		zap.String("stop_reason", string(msg.StopReason)),
	)
	return out.String(), nil
}
