// Package generation turns a query and retrieved employees into a
// natural-language recommendation. Failures never reach the caller: they
// are logged and replaced by Apology.
package generation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/rosterbot/internal/composer"
	"github.com/kalambet/rosterbot/internal/roster"
)

// Apology is returned in place of a recommendation whenever generation fails.
const Apology = "I'm sorry, I encountered an error while generating a response. Please check the API key and configuration."

// ErrEmptyCompletion is reported when a provider answers with no text.
var ErrEmptyCompletion = errors.New("generation: empty completion")

// Completer sends a finished prompt to a language model.
type Completer interface {
	// Name identifies the provider in logs.
	Name() string
	// Complete returns the model's reply to prompt.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Generator builds prompts and degrades to Apology on any failure.
// Safe for concurrent use if the Completer is.
type Generator struct {
	completer Completer
	logger    *slog.Logger
}

// New creates a Generator. A nil logger uses slog.Default().
func New(c Completer, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{completer: c, logger: logger}
}

// Generate returns the model's recommendation for query given employees, or
// Apology when anything fails.
func (g *Generator) Generate(ctx context.Context, query string, employees []roster.Employee) string {
	text, _ := g.GenerateWithStatus(ctx, query, employees)
	return text
}

// GenerateWithStatus is Generate that also reports whether the Apology was
// substituted.
func (g *Generator) GenerateWithStatus(ctx context.Context, query string, employees []roster.Employee) (text string, degraded bool) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("generation panicked", "provider", g.completer.Name(), "panic", r)
			text, degraded = Apology, true
		}
	}()

	prompt, err := composer.BuildPrompt(query, employees)
	if err != nil {
		g.logger.Error("building prompt", "error", err)
		return Apology, true
	}

	start := time.Now()
	text, err = g.completer.Complete(ctx, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyCompletion
	}
	if err != nil {
		g.logger.Error("generation failed",
			"provider", g.completer.Name(),
			"candidates", len(employees),
			"error", err,
		)
		return Apology, true
	}

	g.logger.Debug("generation complete",
		"provider", g.completer.Name(),
		"candidates", len(employees),
		"prompt_tokens_est", composer.EstimateTokens(prompt),
		"duration", time.Since(start),
	)
	return text, false
}
