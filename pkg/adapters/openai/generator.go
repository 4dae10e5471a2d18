// Package openai proposes story continuations through any OpenAI-compatible
// chat completion endpoint.
package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/branchtale/internal/logging"
	openaigo "github.com/sashabaranov/go-openai"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.9
	DefaultTopP        = 0.95
	DefaultMaxTokens   = 40

	systemPrompt = "You continue interactive stories. Reply with exactly one short sentence " +
		"describing what the reader could do next. No numbering, no quotes."
)

// Generator implements ports.ChoiceGenerator with chat completions.
type Generator struct {
	client      *openaigo.Client
	model       string
	temperature float32
	topP        float32
	maxTokens   int
	logger      *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithModel sets the model name sent with every request.
func WithModel(model string) Option {
	return func(g *Generator) {
		if model != "" {
			g.model = model
		}
	}
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float32) Option {
	return func(g *Generator) {
		g.temperature = t
	}
}

// WithMaxTokens bounds the length of each completion.
func WithMaxTokens(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// New creates a Generator. An empty baseURL targets the public OpenAI API;
// set it to point at a local or third-party compatible server.
func New(apiKey, baseURL string, opts ...Option) *Generator {
	cfg := openaigo.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewFromClient(openaigo.NewClientWithConfig(cfg), opts...)
}

// NewFromClient wraps an existing client.
func NewFromClient(client *openaigo.Client, opts ...Option) *Generator {
	g := &Generator{
		client:      client,
		model:       DefaultModel,
		temperature: DefaultTemperature,
		topP:        DefaultTopP,
		maxTokens:   DefaultMaxTokens,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Propose requests count completions in one call and returns the first
// sentence of each. Servers that ignore N simply yield fewer candidates.
func (g *Generator) Propose(ctx context.Context, narrativePrefix string, count int) ([]string, error) {
	if count <= 0 {
		return nil, nil
	}
	resp, err := g.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model: g.model,
		Messages: []openaigo.ChatCompletionMessage{
			{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openaigo.ChatMessageRoleUser, Content: narrativePrefix},
		},
		Temperature: g.temperature,
		TopP:        g.topP,
		MaxTokens:   g.maxTokens,
		N:           count,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	out := make([]string, 0, len(resp.Choices))
	for _, c := range resp.Choices {
		if s := FirstSentence(c.Message.Content); s != "" {
			out = append(out, s)
		}
	}
	g.logger.Debug("generator proposed candidates",
		"model", g.model,
		"requested", count,
		"received", len(resp.Choices),
		"kept", len(out),
	)
	return out, nil
}

// FirstSentence keeps the text before the first period, trimmed.
func FirstSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "."); i >= 0 {
		text = text[:i]
	}
	return strings.Trim(strings.TrimSpace(text), `"'`)
}
