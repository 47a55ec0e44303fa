// Package genai provides the optional OpenAI-backed industry classifier.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.ChatModelGPT4oMini

// Errors returned by the client.
var (
	ErrNoAPIKey           = errors.New("OpenAI API key not set")
	ErrNoChoicesReturned  = errors.New("no choices returned")
	ErrUnrecognizedOption = errors.New("model reply is not one of the options")
)

// chatService is the subset of the OpenAI chat completions service the client uses.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completions service.
type Client struct {
	chat  chatService
	model openai.ChatModel
}

// NewClient creates a GenAI client. An API key is required.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	model := openai.ChatModel(DefaultModel)
	if cfg.Model != "" {
		model = openai.ChatModel(cfg.Model)
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("GenAI client created", "model", model)
	return &Client{chat: &cli.Chat.Completions, model: model}, nil
}

// GenerateText returns the model's reply to a system and user prompt.
func (c *Client) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		slog.Error("Client.GenerateText: completion failed", "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

const classifySystemPrompt = `You sort a company's self-description into exactly one category.
Reply with the category name only, spelled exactly as listed. If nothing fits, reply "Other" when it is listed.
Categories:
%s`

// ClassifyIndustry maps a free-text description to one of options.
func (c *Client) ClassifyIndustry(ctx context.Context, text string, options []string) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("no options to classify into")
	}
	system := fmt.Sprintf(classifySystemPrompt, "- "+strings.Join(options, "\n- "))
	reply, err := c.GenerateText(ctx, system, text)
	if err != nil {
		return "", err
	}

	cleaned := strings.Trim(strings.TrimSpace(reply), `."'`)
	for _, opt := range options {
		if strings.EqualFold(opt, cleaned) {
			slog.Debug("Client.ClassifyIndustry: classified", "option", opt)
			return opt, nil
		}
	}
	slog.Warn("Client.ClassifyIndustry: reply not in options", "reply", reply)
	return "", fmt.Errorf("%w: %q", ErrUnrecognizedOption, reply)
}
