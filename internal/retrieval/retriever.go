package retrieval

import (
	"context"
	"fmt"

	"github.com/kalambet/rosterbot/internal/index"
	"github.com/kalambet/rosterbot/internal/roster"
)

// Match is a retrieved employee with its squared L2 distance to the query.
type Match struct {
	Employee roster.Employee
	Distance float32
}

// Retriever combines query embedding and index search. docs[i] is the
// employee whose vector sits at index position i.
type Retriever struct {
	embedder *Embedder
	index    *index.Flat
	docs     []roster.Employee
}

// NewRetriever creates a Retriever. docs must be aligned with the positions
// of idx.
func NewRetriever(embedder *Embedder, idx *index.Flat, docs []roster.Employee) (*Retriever, error) {
	if idx == nil {
		return nil, fmt.Errorf("retriever: nil index")
	}
	if len(docs) != idx.Len() {
		return nil, fmt.Errorf("retriever: %d documents for %d index positions", len(docs), idx.Len())
	}
	return &Retriever{
		embedder: embedder,
		index:    idx,
		docs:     roster.CloneAll(docs),
	}, nil
}

// Search embeds query and returns up to k matches, nearest first.
// Embedding failures wrap ErrEmbedding; a query vector of the wrong length
// wraps index.ErrDimensionMismatch.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]Match, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := r.index.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	matches := make([]Match, len(hits))
	for i, h := range hits {
		matches[i] = Match{Employee: r.docs[h.Position].Clone(), Distance: h.Distance}
	}
	return matches, nil
}

// Retrieve is Search without distances.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]roster.Employee, error) {
	matches, err := r.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	employees := make([]roster.Employee, len(matches))
	for i, m := range matches {
		employees[i] = m.Employee
	}
	return employees, nil
}
