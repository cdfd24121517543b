// Package genai provides the text-generation oracle client used by all flows.
//
// The oracle is a black box: prompt in, text out. Callers must sanitize and
// validate whatever comes back before trusting it. Every call carries an
// explicit timeout; expiry is reported as a call failure, never a hang.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultTimeout bounds a single oracle call when no timeout is configured.
const DefaultTimeout = 60 * time.Second

// ClientInterface defines the oracle operations flows depend on. It exists so
// tests can substitute a deterministic fake; the oracle is always an injected
// dependency, never a package-level singleton.
type ClientInterface interface {
	// GeneratePrompt generates a completion from a system and user prompt pair.
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// GenerateWithMessages generates a completion from a full message list.
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key, overriding the environment.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model used for completions.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTimeout sets the per-call timeout for oracle invocations.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewClient initializes a new GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable when not supplied via options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		slog.Error("GenAI NewClient: API key not set")
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	model := cfg.Model
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	slog.Debug("GenAI NewClient: client configured", "model", model, "timeout", timeout)
	return &Client{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		timeout: timeout,
	}, nil
}

// GeneratePrompt generates a response based on the provided system and user prompts.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	}
	return c.GenerateWithMessages(ctx, messages)
}

// GenerateWithMessages generates a response from a full message list.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		slog.Error("GenAI GenerateWithMessages: completion failed", "error", err, "model", c.model)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("GenAI GenerateWithMessages: no choices returned", "model", c.model)
		return "", fmt.Errorf("no choices returned")
	}
	slog.Debug("GenAI GenerateWithMessages: completion succeeded", "model", c.model, "responseLength", len(resp.Choices[0].Message.Content))
	return resp.Choices[0].Message.Content, nil
}
