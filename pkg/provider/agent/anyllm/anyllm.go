// Package anyllm provides an agent collaborator backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and more.
//
// Usage:
//
//	c, err := anyllm.New("openai", "gpt-4o", anyllmlib.WithAPIKey("sk-..."))
//	c, err := anyllm.NewOllama("llama3.2")
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/jperram92/JamesConvoBot/pkg/provider/agent"
)

// defaultSystemPrompt frames the model as a meeting assistant whose answers
// are spoken aloud, so they must stay short and free of markup.
const defaultSystemPrompt = "You are a helpful meeting assistant. " +
	"Your answers are read aloud to meeting participants, so keep them brief, " +
	"conversational, and free of lists, markdown, or code."

// Collaborator implements agent.Collaborator by wrapping any-llm-go.
type Collaborator struct {
	backend      anyllmlib.Provider
	model        string
	systemPrompt string
}

var _ agent.Collaborator = (*Collaborator)(nil)

// Option is a functional option for configuring a Collaborator.
type Option func(*Collaborator)

// WithSystemPrompt replaces the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(c *Collaborator) { c.systemPrompt = prompt }
}

// New creates a new Collaborator backed by the given LLM provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "deepseek", "mistral", "groq", "llamacpp", "llamafile".
//
// model is the specific model to use (e.g., "gpt-4o",
// "claude-3-5-sonnet-latest"). libOpts are any-llm-go configuration options
// (e.g., anyllmlib.WithAPIKey, anyllmlib.WithBaseURL); without an API key
// option the provider falls back to the relevant environment variable.
func New(providerName, model string, opts []Option, libOpts ...anyllmlib.Option) (*Collaborator, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, libOpts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}

	c := &Collaborator{
		backend:      backend,
		model:        model,
		systemPrompt: defaultSystemPrompt,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// NewOpenAI creates a Collaborator backed by OpenAI.
// Without options, it reads the OPENAI_API_KEY environment variable.
func NewOpenAI(model string, libOpts ...anyllmlib.Option) (*Collaborator, error) {
	return New("openai", model, nil, libOpts...)
}

// NewAnthropic creates a Collaborator backed by Anthropic.
// Without options, it reads the ANTHROPIC_API_KEY environment variable.
func NewAnthropic(model string, libOpts ...anyllmlib.Option) (*Collaborator, error) {
	return New("anthropic", model, nil, libOpts...)
}

// NewOllama creates a Collaborator backed by Ollama (local inference).
// Without options, it connects to http://localhost:11434.
func NewOllama(model string, libOpts ...anyllmlib.Option) (*Collaborator, error) {
	return New("ollama", model, nil, libOpts...)
}

// createBackend creates the underlying any-llm-go provider for the given name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", providerName)
	}
}

// Ask implements agent.Collaborator.
func (c *Collaborator) Ask(ctx context.Context, q agent.Query) (string, error) {
	if strings.TrimSpace(q.Text) == "" {
		return "", fmt.Errorf("anyllm: query text must not be empty")
	}

	messages := []anyllmlib.Message{
		{Role: anyllmlib.RoleSystem, Content: c.systemPrompt},
	}
	if len(q.Context) > 0 {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: "Recent meeting transcript:\n" + strings.Join(q.Context, "\n"),
		})
	}
	messages = append(messages, anyllmlib.Message{
		Role:    anyllmlib.RoleUser,
		Content: q.Text,
	})

	resp, err := c.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("anyllm: empty choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.ContentString()), nil
}
