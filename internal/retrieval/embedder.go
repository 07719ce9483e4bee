package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/kalambet/rosterbot/internal/engine"
	"golang.org/x/sync/errgroup"
)

// ErrEmbedding wraps every failure to produce a usable embedding.
var ErrEmbedding = errors.New("embedding failed")

// Embedder wraps an Engine to generate text embeddings with a fixed model.
type Embedder struct {
	engine engine.Engine
	model  string
}

// NewEmbedder creates an Embedder using the given Engine and model name.
func NewEmbedder(e engine.Engine, model string) *Embedder {
	return &Embedder{engine: e, model: model}
}

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.engine.Embed(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: model %s returned an empty vector", ErrEmbedding, e.model)
	}
	if i := nonFinite(vec); i >= 0 {
		return nil, fmt.Errorf("%w: model %s returned a non-finite value at component %d", ErrEmbedding, e.model, i)
	}
	return vec, nil
}

// nonFinite returns the index of the first NaN or infinite component, or -1.
// Such values would make distance ordering inconsistent.
func nonFinite(vec []float32) int {
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return i
		}
	}
	return -1
}

// EmbedBatch returns one vector per text, in input order. Engines that
// implement engine.BatchEmbedder are called once; others are fanned out with
// bounded concurrency. All vectors must share one length.
// Returns nil (not error) for empty/nil input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var (
		results [][]float32
		err     error
	)
	if be, ok := e.engine.(engine.BatchEmbedder); ok {
		results, err = be.EmbedBatch(ctx, e.model, texts)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
		}
		if len(results) != len(texts) {
			return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbedding, len(results), len(texts))
		}
	} else {
		results, err = e.embedEach(ctx, texts)
		if err != nil {
			return nil, err
		}
	}

	dim := len(results[0])
	for i, vec := range results {
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: text %d produced an empty vector", ErrEmbedding, i)
		}
		if len(vec) != dim {
			return nil, fmt.Errorf("%w: text %d has dimension %d, want %d", ErrEmbedding, i, len(vec), dim)
		}
		if j := nonFinite(vec); j >= 0 {
			return nil, fmt.Errorf("%w: text %d has a non-finite value at component %d", ErrEmbedding, i, j)
		}
	}
	return results, nil
}

func (e *Embedder) embedEach(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the engine.

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.engine.Embed(gCtx, e.model, text)
			if err != nil {
				return fmt.Errorf("%w: text %d: %v", ErrEmbedding, i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
