// Package pipeline wires formatting, embedding, indexing, retrieval and
// generation into the single object the API and CLI talk to.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/rosterbot/internal/generation"
	"github.com/kalambet/rosterbot/internal/index"
	"github.com/kalambet/rosterbot/internal/retrieval"
	"github.com/kalambet/rosterbot/internal/roster"
)

// DefaultTopK is the number of records retrieved per chat query.
const DefaultTopK = 4

// Options tunes a Pipeline.
type Options struct {
	// TopK is the default retrieval depth for Chat. Values <= 0 use DefaultTopK.
	TopK int
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Answer is the result of one Chat call.
type Answer struct {
	Response   string
	Candidates []retrieval.Match
	// Degraded is true when Response is generation.Apology.
	Degraded bool
	Duration time.Duration
}

// Pipeline owns the roster and the vector index built from it. Everything it
// holds is read-only after New, so methods may be called concurrently.
type Pipeline struct {
	employees []roster.Employee
	retriever *retrieval.Retriever
	generator *generation.Generator
	topK      int
	dim       int
	logger    *slog.Logger
}

// New formats every employee, embeds the documents in one batch, builds the
// index and the position-to-employee map. Any failure aborts construction;
// an empty roster fails with index.ErrEmptyIndex.
func New(ctx context.Context, employees []roster.Employee, embedder *retrieval.Embedder, generator *generation.Generator, opts Options) (*Pipeline, error) {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	start := time.Now()
	docs, err := roster.FormatAll(employees)
	if err != nil {
		return nil, err
	}

	vectors, err := embedder.EmbedBatch(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("embedding roster: %w", err)
	}

	idx, err := index.Build(vectors)
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}

	owned := roster.CloneAll(employees)
	retriever, err := retrieval.NewRetriever(embedder, idx, owned)
	if err != nil {
		return nil, err
	}

	opts.Logger.Info("index built",
		"employees", idx.Len(),
		"dimension", idx.Dim(),
		"model", embedder.Model(),
		"duration", time.Since(start),
	)

	return &Pipeline{
		employees: owned,
		retriever: retriever,
		generator: generator,
		topK:      opts.TopK,
		dim:       idx.Dim(),
		logger:    opts.Logger,
	}, nil
}

// Retrieve returns up to k employees nearest to query.
func (p *Pipeline) Retrieve(ctx context.Context, query string, k int) ([]roster.Employee, error) {
	return p.retriever.Retrieve(ctx, query, k)
}

// Search is Retrieve with distances.
func (p *Pipeline) Search(ctx context.Context, query string, k int) ([]retrieval.Match, error) {
	return p.retriever.Search(ctx, query, k)
}

// Generate produces a recommendation for query from records. It never fails;
// see generation.Apology.
func (p *Pipeline) Generate(ctx context.Context, query string, records []roster.Employee) string {
	return p.generator.Generate(ctx, query, records)
}

// Chat retrieves TopK candidates for query and generates a recommendation.
// Only retrieval failures are returned as errors.
func (p *Pipeline) Chat(ctx context.Context, query string) (Answer, error) {
	start := time.Now()

	matches, err := p.retriever.Search(ctx, query, p.topK)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieving candidates: %w", err)
	}

	records := make([]roster.Employee, len(matches))
	for i, m := range matches {
		records[i] = m.Employee
	}

	text, degraded := p.generator.GenerateWithStatus(ctx, query, records)
	ans := Answer{
		Response:   text,
		Candidates: matches,
		Degraded:   degraded,
		Duration:   time.Since(start),
	}
	p.logger.Debug("chat answered", "candidates", len(matches), "degraded", degraded, "duration", ans.Duration)
	return ans, nil
}

// Employees returns a deep copy of the roster in load order.
func (p *Pipeline) Employees() []roster.Employee {
	return roster.CloneAll(p.employees)
}

// SearchEmployees applies a keyword filter to the roster.
func (p *Pipeline) SearchEmployees(f roster.Filter) []roster.Employee {
	return f.Apply(p.employees)
}

// TopK returns the default retrieval depth.
func (p *Pipeline) TopK() int { return p.topK }

// Len returns the number of indexed employees.
func (p *Pipeline) Len() int { return len(p.employees) }

// Dim returns the embedding dimension.
func (p *Pipeline) Dim() int { return p.dim }
