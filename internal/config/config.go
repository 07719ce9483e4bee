package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Provider names accepted by embedding.provider and generation.provider.
const (
	ProviderOllama     = "ollama"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
)

type Config struct {
	Server     ServerConfig
	Roster     RosterConfig
	Retrieval  RetrievalConfig
	Embedding  EmbeddingConfig
	Generation GenerationConfig
	Ollama     OllamaConfig
	OpenAI     OpenAIConfig
	OpenRouter OpenRouterConfig
	Anthropic  AnthropicConfig
	Storage    StorageConfig
	Client     ClientConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	// RateLimit is the sustained /chat request rate per second.
	RateLimit float64
	RateBurst int
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type RosterConfig struct {
	Path string
}

type RetrievalConfig struct {
	TopK int
}

type EmbeddingConfig struct {
	Provider string
	Model    string
}

type GenerationConfig struct {
	Provider string
	Model    string
}

type OllamaConfig struct {
	BaseURL string
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

type OpenRouterConfig struct {
	APIKey string
}

type AnthropicConfig struct {
	APIKey string
}

type StorageConfig struct {
	DataDir string
}

type ClientConfig struct {
	BackendURL string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8000,
			AllowedOrigins: []string{"http://localhost:*"},
			RateLimit:      5,
			RateBurst:      10,
		},
		Roster:     RosterConfig{Path: "employees.json"},
		Retrieval:  RetrievalConfig{TopK: 4},
		Embedding:  EmbeddingConfig{Provider: ProviderOllama, Model: "nomic-embed-text"},
		Generation: GenerationConfig{Provider: ProviderOpenRouter, Model: "google/gemini-flash-1.5"},
		Ollama:     OllamaConfig{BaseURL: "http://localhost:11434"},
		Storage:    StorageConfig{DataDir: defaultDataDir()},
		Client:     ClientConfig{BackendURL: "http://127.0.0.1:8000"},
		Log:        LogConfig{Level: "info"},
	}
}

// Load reads configuration from the TOML file at ConfigFilePath, a .env
// file in the working directory, and ROSTERBOT_* environment variables, in
// increasing order of precedence. Variables already present in the process
// environment win over the .env file. API keys are only read from the
// environment.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return loadWith(newPlatformBackend())
}

// LoadClient is Load without provider validation, for commands that only
// talk to a running server.
func LoadClient() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	cfg := defaults()
	if err := applyBackend(&cfg, newPlatformBackend()); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("reading %s: %w", path, err)
}

func loadFromPath(path string) (Config, error) {
	return loadWith(newFileBackend(path))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Embedding.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("invalid config: embedding.provider %q (want ollama or openai)", c.Embedding.Provider)
	}
	switch c.Generation.Provider {
	case ProviderOpenRouter, ProviderOpenAI, ProviderAnthropic, ProviderOllama:
	default:
		return fmt.Errorf("invalid config: generation.provider %q (want openrouter, openai, anthropic or ollama)", c.Generation.Provider)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("invalid config: retrieval.top_k must be at least 1, got %d", c.Retrieval.TopK)
	}
	if c.Server.RateLimit <= 0 || c.Server.RateBurst < 1 {
		return fmt.Errorf("invalid config: server.rate_limit and server.rate_burst must be positive")
	}

	if c.Embedding.Provider == ProviderOpenAI && c.OpenAI.APIKey == "" {
		return missingKey("OpenAI API key", "ROSTERBOT_OPENAI_API_KEY")
	}
	if c.GenerationAPIKey() == "" && c.Generation.Provider != ProviderOllama {
		return missingKey(providerLabel(c.Generation.Provider)+" API key", secretEnv(c.Generation.Provider))
	}
	return nil
}

// GenerationAPIKey returns the credential for the configured generation
// provider. The ollama provider needs none.
func (c Config) GenerationAPIKey() string {
	switch c.Generation.Provider {
	case ProviderOpenRouter:
		return c.OpenRouter.APIKey
	case ProviderOpenAI:
		return c.OpenAI.APIKey
	case ProviderAnthropic:
		return c.Anthropic.APIKey
	}
	return ""
}

// GenerationBaseURL returns the endpoint override for the generation
// provider, if any.
func (c Config) GenerationBaseURL() string {
	if c.Generation.Provider == ProviderOpenAI {
		return c.OpenAI.BaseURL
	}
	return ""
}

func missingKey(what, env string) error {
	return fmt.Errorf("missing required config: %s. Set it via environment variable %s or a .env file", what, env)
}

func providerLabel(p string) string {
	switch p {
	case ProviderOpenRouter:
		return "OpenRouter"
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderAnthropic:
		return "Anthropic"
	}
	return p
}

func secretEnv(provider string) string {
	return "ROSTERBOT_" + strings.ToUpper(provider) + "_API_KEY"
}
