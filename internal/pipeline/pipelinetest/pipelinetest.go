// Package pipelinetest provides deterministic fakes for exercising a
// pipeline.Pipeline without a real embedding model or LLM.
package pipelinetest

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/kalambet/rosterbot/internal/engine"
	"github.com/kalambet/rosterbot/internal/generation"
	"github.com/kalambet/rosterbot/internal/pipeline"
	"github.com/kalambet/rosterbot/internal/retrieval"
	"github.com/kalambet/rosterbot/internal/roster"
)

// DefaultVocabulary is the feature set used by KeywordEngine when none is given.
var DefaultVocabulary = []string{"python", "java", "react", "aws", "ml", "developer", "design", "go"}

// KeywordEngine embeds text as term counts over a fixed vocabulary. Equal
// inputs always produce equal vectors.
type KeywordEngine struct {
	Vocabulary []string
	// EmbedErr, when set, is returned from every Embed call.
	EmbedErr error
	// FailOn makes Embed fail for texts containing this substring.
	FailOn string

	mu    sync.Mutex
	calls int
}

// Calls reports how many times Embed ran.
func (e *KeywordEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *KeywordEngine) vocabulary() []string {
	if len(e.Vocabulary) == 0 {
		return DefaultVocabulary
	}
	return e.Vocabulary
}

func (e *KeywordEngine) Embed(_ context.Context, _ string, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.EmbedErr != nil {
		return nil, e.EmbedErr
	}
	if e.FailOn != "" && strings.Contains(text, e.FailOn) {
		return nil, io.ErrUnexpectedEOF
	}

	vocab := e.vocabulary()
	vec := make([]float32, len(vocab))
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		for i, term := range vocab {
			if w == term {
				vec[i]++
			}
		}
	}
	return vec, nil
}

func (e *KeywordEngine) Chat(_ context.Context, _ string, _ []engine.Message) (string, error) {
	return "", engine.ErrPullUnsupported
}
func (e *KeywordEngine) IsRunning(_ context.Context) bool               { return true }
func (e *KeywordEngine) ListModels(_ context.Context) ([]string, error) { return []string{"keyword"}, nil }
func (e *KeywordEngine) HasModel(_ context.Context, _ string) bool      { return true }
func (e *KeywordEngine) PullModel(_ context.Context, _ string, _ func(engine.PullProgress)) error {
	return nil
}

// Completer is a function-backed generation.Completer.
type Completer struct {
	Fn func(ctx context.Context, prompt string) (string, error)
}

func (c *Completer) Name() string { return "fake" }

func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	if c.Fn == nil {
		return "recommendation", nil
	}
	return c.Fn(ctx, prompt)
}

// Roster returns a three-person roster: Alice (Python, 5y), Bob (Java, 2y,
// on_project) and Carol (Python, 6y).
func Roster() []roster.Employee {
	return []roster.Employee{
		{ID: 1, Name: "Alice", Skills: []string{"Python", "ML"}, ExperienceYears: 5, Projects: []string{"Fraud model"}, Availability: roster.Available},
		{ID: 2, Name: "Bob", Skills: []string{"Java"}, ExperienceYears: 2, Projects: []string{"Storefront"}, Availability: roster.OnProject},
		{ID: 3, Name: "Carol", Skills: []string{"Python", "AWS"}, ExperienceYears: 6, Projects: []string{"Data lake"}, Availability: roster.Available},
	}
}

// New builds a pipeline over employees with a KeywordEngine and completer c.
// A nil c answers with a fixed recommendation.
func New(t testing.TB, employees []roster.Employee, c generation.Completer) *pipeline.Pipeline {
	t.Helper()
	if c == nil {
		c = &Completer{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := pipeline.New(context.Background(), employees,
		retrieval.NewEmbedder(&KeywordEngine{}, "keyword"),
		generation.New(c, logger),
		pipeline.Options{Logger: logger},
	)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return p
}
