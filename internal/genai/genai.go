// Package genai provides the generation client used to author outgoing
// messages, wrapping the OpenAI chat completion API.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default generation parameters. These are configuration, not logic; they are
// passed through to the backend unchanged.
const (
	// DefaultModel is the chat model used when none is configured.
	DefaultModel = "gpt-4"
	// DefaultMaxTokens caps the length of generated output.
	DefaultMaxTokens = 1000
	// DefaultTemperature is the sampling temperature for generation.
	DefaultTemperature = 0.7
)

// ErrNoChoicesReturned indicates the backend returned an empty choice list.
var ErrNoChoicesReturned = errors.New("no choices returned")

// GenerationError wraps any failure to obtain text from the generation
// backend. Callers do not distinguish failure subtypes; every generation
// failure selects the same fallback policy.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsGenerationError reports whether err is (or wraps) a GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration options for the generation client.
type Opts struct {
	APIKey      string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Option defines a configuration option for the generation client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model identifier.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithMaxTokens sets the maximum number of output tokens.
func WithMaxTokens(n int64) Option {
	return func(o *Opts) { o.MaxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// Client wraps the OpenAI chat completion service for message generation.
type Client struct {
	chat        chatService
	model       string
	maxTokens   int64
	temperature float64
}

// NewClient initializes a new generation client. The API key falls back to
// the OPENAI_API_KEY environment variable when not provided via options.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:       DefaultModel,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	slog.Debug("genai.NewClient: configured", "model", cfg.Model, "max_tokens", cfg.MaxTokens, "temperature", cfg.Temperature)

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{
		chat:        &cli.Chat.Completions,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Generate produces text from the given system and user prompts. Any failure
// (transport, quota, malformed response) is returned as a GenerationError.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		MaxTokens:   openai.Int(c.maxTokens),
		Temperature: openai.Float(c.temperature),
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		slog.Error("genai.Generate: backend call failed", "error", err, "model", c.model)
		return "", &GenerationError{Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 {
		slog.Error("genai.Generate: backend returned no choices", "model", c.model)
		return "", &GenerationError{Err: ErrNoChoicesReturned}
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("genai.Generate: completed", "model", c.model, "output_length", len(out))
	return out, nil
}
