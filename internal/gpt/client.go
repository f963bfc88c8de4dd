// Package gpt provides the chat-model agent Basil uses for sensory eating
// tips, free-form cooking questions, and classifying input the keyword
// parser does not recognise.
package gpt

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hammamikhairi/basil/internal/logger"
)

// Role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role string
	Text string
}

// TextMessage is a convenience constructor for a plain-text message.
func TextMessage(role, text string) Message {
	return Message{Role: role, Text: text}
}

// Chatter sends a conversation and returns the assistant's reply.
type Chatter interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// DefaultModel is used when none is configured.
const DefaultModel = openai.ChatModelGPT4oMini

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithModel overrides the default model name.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) ClientOption {
	return func(c *Client) { c.temperature = t }
}

// WithMaxTokens sets the response token limit.
func WithMaxTokens(n int) ClientOption {
	return func(c *Client) { c.maxTokens = n }
}

var _ Chatter = (*Client)(nil)

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	api         *openai.Client
	model       string
	temperature float64
	topP        float64
	maxTokens   int
	log         *logger.Logger
}

// NewClient wraps an openai-go client.
func NewClient(api *openai.Client, log *logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		api:         api,
		model:       DefaultModel,
		temperature: 0.7,
		topP:        0.95,
		maxTokens:   800,
		log:         log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Dial builds a client for an OpenAI-compatible endpoint. An empty
// endpoint targets api.openai.com. The key is sent both as a bearer token
// and as the "api-key" header so Azure deployments work unchanged.
func Dial(endpoint, apiKey string, log *logger.Logger, opts ...ClientOption) *Client {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHeader("api-key", apiKey),
	}
	if endpoint != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(endpoint))
	}
	api := openai.NewClient(reqOpts...)
	return NewClient(&api, log, opts...)
}

// Chat sends a chat-completion request and returns the assistant's reply.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    toParams(messages),
		Temperature: openai.Float(c.temperature),
		TopP:        openai.Float(c.topP),
		MaxTokens:   openai.Int(int64(c.maxTokens)),
	}

	c.log.Debug("gpt: chat model=%s messages=%d", c.model, len(messages))

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("gpt: request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("gpt: empty response (no choices)")
	}

	reply := resp.Choices[0].Message.Content
	c.log.Debug("gpt: reply (%d chars, %d tokens): %s", len(reply), resp.Usage.CompletionTokens, truncate(reply, 120))
	return reply, nil
}

func toParams(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Text))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Text))
		default:
			out = append(out, openai.UserMessage(m.Text))
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
