//go:build integration

package retrieval

import (
	"context"
	"testing"

	"github.com/kalambet/rosterbot/internal/engine"
	"github.com/kalambet/rosterbot/internal/index"
	"github.com/kalambet/rosterbot/internal/roster"
)

// TestRetrieve_RealEmbeddings ranks a small roster with a running Ollama
// instance. It skips when Ollama or the embedding model is unavailable.
func TestRetrieve_RealEmbeddings(t *testing.T) {
	ctx := context.Background()
	eng := engine.NewOllamaEngine("http://localhost:11434")
	if !eng.IsRunning(ctx) {
		t.Skip("Ollama is not running, skipping integration test")
	}
	if !eng.HasModel(ctx, "nomic-embed-text") {
		t.Skip("nomic-embed-text is not installed, skipping integration test")
	}

	employees := []roster.Employee{
		{ID: 1, Name: "Alice", Skills: []string{"Python", "Machine Learning"}, ExperienceYears: 6, Projects: []string{"Churn model"}, Availability: roster.Available},
		{ID: 2, Name: "Bob", Skills: []string{"Figma", "Illustration"}, ExperienceYears: 3, Projects: []string{"Brand refresh"}, Availability: roster.Available},
		{ID: 3, Name: "Carol", Skills: []string{"Python", "Django"}, ExperienceYears: 9, Projects: []string{"Billing API"}, Availability: roster.OnProject},
	}
	docs, err := roster.FormatAll(employees)
	if err != nil {
		t.Fatalf("FormatAll: %v", err)
	}

	embedder := NewEmbedder(eng, "nomic-embed-text")
	vecs, err := embedder.EmbedBatch(ctx, docs)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	idx, err := index.Build(vecs)
	if err != nil {
		t.Fatalf("index.Build: %v", err)
	}
	r, err := NewRetriever(embedder, idx, employees)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	got, err := r.Retrieve(ctx, "experienced Python developer", 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	for _, e := range got {
		if e.Name == "Bob" {
			t.Errorf("designer ranked in top 2 for a Python query: %v", names(got))
		}
	}
}
