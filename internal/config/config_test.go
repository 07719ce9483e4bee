package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// clearEnv blanks every ROSTERBOT_* variable the loader reads so the host
// environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied when loading an empty config file.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROSTERBOT_OPENROUTER_API_KEY", "test-key")

	cfg, err := loadFromPath(writeTempConfig(t, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 8000 {
		t.Errorf("Server = %s:%d, want 127.0.0.1:8000", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Server.Addr() != "127.0.0.1:8000" {
		t.Errorf("Addr() = %q", cfg.Server.Addr())
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "http://localhost:*" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Server.RateLimit != 5 || cfg.Server.RateBurst != 10 {
		t.Errorf("rate = %v/%d, want 5/10", cfg.Server.RateLimit, cfg.Server.RateBurst)
	}
	if cfg.Roster.Path != "employees.json" {
		t.Errorf("Roster.Path = %q", cfg.Roster.Path)
	}
	if cfg.Retrieval.TopK != 4 {
		t.Errorf("Retrieval.TopK = %d, want 4", cfg.Retrieval.TopK)
	}
	if cfg.Embedding.Provider != "ollama" || cfg.Embedding.Model != "nomic-embed-text" {
		t.Errorf("Embedding = %+v", cfg.Embedding)
	}
	if cfg.Generation.Provider != "openrouter" || cfg.Generation.Model != "google/gemini-flash-1.5" {
		t.Errorf("Generation = %+v", cfg.Generation)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Client.BackendURL != "http://127.0.0.1:8000" {
		t.Errorf("Client.BackendURL = %q", cfg.Client.BackendURL)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.GenerationAPIKey() != "test-key" {
		t.Errorf("GenerationAPIKey() = %q", cfg.GenerationAPIKey())
	}
}

func TestTOMLParsing(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROSTERBOT_ANTHROPIC_API_KEY", "sk-ant")

	path := writeTempConfig(t, `
[server]
port = 9100
allowed_origins = ["http://localhost:8501", "https://hr.example.com"]
rate_limit = 2.5

[retrieval]
top_k = 6

[generation]
provider = "anthropic"
model = "claude-haiku"

[roster]
path = "/srv/roster.json"
`)

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if got := strings.Join(cfg.Server.AllowedOrigins, " "); got != "http://localhost:8501 https://hr.example.com" {
		t.Errorf("AllowedOrigins = %q", got)
	}
	if cfg.Server.RateLimit != 2.5 {
		t.Errorf("RateLimit = %v, want 2.5", cfg.Server.RateLimit)
	}
	if cfg.Retrieval.TopK != 6 {
		t.Errorf("TopK = %d, want 6", cfg.Retrieval.TopK)
	}
	if cfg.Generation.Provider != "anthropic" || cfg.Generation.Model != "claude-haiku" {
		t.Errorf("Generation = %+v", cfg.Generation)
	}
	if cfg.Roster.Path != "/srv/roster.json" {
		t.Errorf("Roster.Path = %q", cfg.Roster.Path)
	}
	if cfg.GenerationAPIKey() != "sk-ant" {
		t.Errorf("GenerationAPIKey() = %q", cfg.GenerationAPIKey())
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROSTERBOT_OPENROUTER_API_KEY", "env-key")
	t.Setenv("ROSTERBOT_SERVER_PORT", "7000")
	t.Setenv("ROSTERBOT_SERVER_ALLOWED_ORIGINS", "http://a, http://b")

	path := writeTempConfig(t, "[server]\nport = 9100\n")
	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
}

func TestInvalidEnvValueKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROSTERBOT_OPENROUTER_API_KEY", "k")
	t.Setenv("ROSTERBOT_RETRIEVAL_TOP_K", "many")

	cfg, err := loadFromPath(writeTempConfig(t, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retrieval.TopK != 4 {
		t.Errorf("TopK = %d, want default 4", cfg.Retrieval.TopK)
	}
}

func TestMissingRequiredKey(t *testing.T) {
	tests := []struct {
		name string
		toml string
		env  string
	}{
		{"openrouter", "", "ROSTERBOT_OPENROUTER_API_KEY"},
		{"anthropic", "[generation]\nprovider = \"anthropic\"\n", "ROSTERBOT_ANTHROPIC_API_KEY"},
		{"openai embeddings", "[embedding]\nprovider = \"openai\"\n[generation]\nprovider = \"ollama\"\n", "ROSTERBOT_OPENAI_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := loadFromPath(writeTempConfig(t, tt.toml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), "missing required config") || !strings.Contains(err.Error(), tt.env) {
				t.Errorf("error = %q", err)
			}
		})
	}
}

func TestOllamaGenerationNeedsNoKey(t *testing.T) {
	clearEnv(t)
	cfg, err := loadFromPath(writeTempConfig(t, "[generation]\nprovider = \"ollama\"\nmodel = \"llama3.2\"\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GenerationAPIKey() != "" {
		t.Errorf("GenerationAPIKey() = %q, want empty", cfg.GenerationAPIKey())
	}
}

func TestUnknownProviderRejected(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROSTERBOT_OPENROUTER_API_KEY", "k")

	for _, body := range []string{
		"[generation]\nprovider = \"gemini\"\n",
		"[embedding]\nprovider = \"cohere\"\n",
	} {
		if _, err := loadFromPath(writeTempConfig(t, body)); err == nil || !strings.Contains(err.Error(), "provider") {
			t.Errorf("body %q: err = %v", body, err)
		}
	}
}

func TestInvalidTopKRejected(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROSTERBOT_OPENROUTER_API_KEY", "k")
	t.Setenv("ROSTERBOT_RETRIEVAL_TOP_K", "0")

	if _, err := loadFromPath(writeTempConfig(t, "")); err == nil {
		t.Fatal("expected error for top_k = 0")
	}
}

func TestMalformedTOMLFallsBackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROSTERBOT_OPENROUTER_API_KEY", "k")

	cfg, err := loadFromPath(writeTempConfig(t, "[server\nport = "))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROSTERBOT_GENERATION_MODEL", "from-env")

	path := filepath.Join(t.TempDir(), ".env")
	content := "ROSTERBOT_GENERATION_MODEL=from-file\nROSTERBOT_TEST_DOTENV_ONLY=loaded\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("ROSTERBOT_TEST_DOTENV_ONLY") })

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}
	if got := os.Getenv("ROSTERBOT_GENERATION_MODEL"); got != "from-env" {
		t.Errorf("ROSTERBOT_GENERATION_MODEL = %q, want from-env", got)
	}
	if got := os.Getenv("ROSTERBOT_TEST_DOTENV_ONLY"); got != "loaded" {
		t.Errorf("ROSTERBOT_TEST_DOTENV_ONLY = %q, want loaded", got)
	}
}

func TestDotEnvMissingFileIsFine(t *testing.T) {
	if err := loadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("loadDotEnv(missing) = %v, want nil", err)
	}
}

func TestSetKeyRoundTrip(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROSTERBOT_OPENROUTER_API_KEY", "k")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	b := newFileBackend(path)
	if err := setKey(b, "server.port", "9200"); err != nil {
		t.Fatalf("setKey(server.port): %v", err)
	}
	if err := setKey(b, "server.rate_limit", "1.5"); err != nil {
		t.Fatalf("setKey(server.rate_limit): %v", err)
	}
	if err := setKey(b, "generation.model", "openai/gpt-4o-mini"); err != nil {
		t.Fatalf("setKey(generation.model): %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading written config: %v", err)
	}
	if !strings.Contains(string(data), "[server]") {
		t.Errorf("written config is not nested by table:\n%s", data)
	}

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("loadFromPath: %v", err)
	}
	if cfg.Server.Port != 9200 || cfg.Server.RateLimit != 1.5 || cfg.Generation.Model != "openai/gpt-4o-mini" {
		t.Errorf("cfg = %+v / %+v", cfg.Server, cfg.Generation)
	}
}

func TestSetKeyErrors(t *testing.T) {
	b := newFileBackend(filepath.Join(t.TempDir(), "config.toml"))

	if err := setKey(b, "openrouter.api_key", "x"); err == nil || !strings.Contains(err.Error(), "ROSTERBOT_OPENROUTER_API_KEY") {
		t.Errorf("secret key: err = %v", err)
	}
	if err := setKey(b, "server.port", "eighty"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKey(b, "no.such.key", "1"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.OpenRouter.APIKey = "sk-secret"

	for _, ki := range ShowAll(cfg) {
		if strings.Contains(ki.Key, "api_key") || ki.Value == "sk-secret" {
			t.Errorf("secret leaked: %+v", ki)
		}
	}
	keys := ValidKeys()
	if len(keys) != len(ShowAll(cfg)) {
		t.Errorf("ValidKeys has %d entries, ShowAll %d", len(keys), len(ShowAll(cfg)))
	}
}
