package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"

	"github.com/kalambet/rosterbot/internal/engine"
	"github.com/kalambet/rosterbot/internal/proxy"
)

// Supported generation providers.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOllama     = "ollama"
)

const defaultAnthropicMaxTokens = 1024

// OpenRouterCompleter completes prompts through the OpenRouter proxy client.
type OpenRouterCompleter struct {
	client *proxy.Client
	model  string
}

// NewOpenRouterCompleter wraps client with a fixed model.
func NewOpenRouterCompleter(client *proxy.Client, model string) *OpenRouterCompleter {
	return &OpenRouterCompleter{client: client, model: model}
}

func (c *OpenRouterCompleter) Name() string { return ProviderOpenRouter }

func (c *OpenRouterCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return c.client.Complete(ctx, c.model, prompt)
}

// OpenAICompleter completes prompts with the OpenAI chat completions API.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter creates a completer. An empty baseURL keeps the
// library default.
func NewOpenAICompleter(apiKey, baseURL, model string) *OpenAICompleter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICompleter{client: openai.NewClientWithConfig(cfg), model: model}
}

func (c *OpenAICompleter) Name() string { return ProviderOpenAI }

func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai completion: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// anthropicMessages is the slice of the Anthropic SDK used here, so tests
// can substitute it.
type anthropicMessages interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicCompleter completes prompts with the Anthropic messages API.
type AnthropicCompleter struct {
	messages  anthropicMessages
	model     string
	maxTokens int64
}

// NewAnthropicCompleter creates a completer authenticated with apiKey.
func NewAnthropicCompleter(apiKey, model string) *AnthropicCompleter {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicCompleter{messages: &client.Messages, model: model, maxTokens: defaultAnthropicMaxTokens}
}

func (c *AnthropicCompleter) Name() string { return ProviderAnthropic }

func (c *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := c.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// EngineCompleter completes prompts with a local inference engine.
type EngineCompleter struct {
	engine engine.Engine
	model  string
}

// NewEngineCompleter wraps e with a fixed chat model.
func NewEngineCompleter(e engine.Engine, model string) *EngineCompleter {
	return &EngineCompleter{engine: e, model: model}
}

func (c *EngineCompleter) Name() string { return ProviderOllama }

func (c *EngineCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return c.engine.Chat(ctx, c.model, []engine.Message{{Role: engine.RoleUser, Content: prompt}})
}

// Options selects and configures a completer.
type Options struct {
	Provider string
	Model    string
	APIKey   string
	// BaseURL overrides the provider endpoint for openrouter and openai.
	BaseURL string
	// Engine serves the ollama provider.
	Engine engine.Engine
}

// NewCompleter builds the completer named by opts.Provider.
func NewCompleter(opts Options) (Completer, error) {
	if opts.Model == "" {
		return nil, errors.New("generation: model is required")
	}
	switch opts.Provider {
	case ProviderOpenRouter:
		client := proxy.NewClient(opts.APIKey)
		if opts.BaseURL != "" {
			client = proxy.NewClientWithBaseURL(opts.APIKey, opts.BaseURL)
		}
		return NewOpenRouterCompleter(client, opts.Model), nil
	case ProviderOpenAI:
		return NewOpenAICompleter(opts.APIKey, opts.BaseURL, opts.Model), nil
	case ProviderAnthropic:
		return NewAnthropicCompleter(opts.APIKey, opts.Model), nil
	case ProviderOllama:
		if opts.Engine == nil {
			return nil, errors.New("generation: ollama provider needs an engine")
		}
		return NewEngineCompleter(opts.Engine, opts.Model), nil
	default:
		return nil, fmt.Errorf("generation: unknown provider %q", opts.Provider)
	}
}
