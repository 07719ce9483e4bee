package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newOpenAITestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding embeddings request: %v", err)
		}
		if req.Model != "text-embedding-3-small" {
			t.Errorf("model = %q", req.Model)
		}
		data := make([]map[string]any, len(req.Input))
		// Answer in reverse order to exercise index realignment.
		for i := range req.Input {
			j := len(req.Input) - 1 - i
			data[i] = map[string]any{"object": "embedding", "index": j, "embedding": []float32{float32(j), 0.5}}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Alice."}, "finish_reason": "stop"},
			},
		})
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"id": "text-embedding-3-small"}, {"id": "gpt-4o-mini"}},
		})
	})
	return httptest.NewServer(mux)
}

func TestOpenAIEngine_Embed(t *testing.T) {
	srv := newOpenAITestServer(t)
	defer srv.Close()

	e := NewOpenAIEngine("sk-test", srv.URL+"/v1")
	vec, err := e.Embed(context.Background(), "text-embedding-3-small", "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("got %d floats, want 2", len(vec))
	}
}

func TestOpenAIEngine_EmbedBatchRealigns(t *testing.T) {
	srv := newOpenAITestServer(t)
	defer srv.Close()

	e := NewOpenAIEngine("sk-test", srv.URL+"/v1")
	vecs, err := e.EmbedBatch(context.Background(), "text-embedding-3-small", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	for i, v := range vecs {
		if v[0] != float32(i) {
			t.Errorf("vecs[%d][0] = %f, want %d", i, v[0], i)
		}
	}
}

func TestOpenAIEngine_Chat(t *testing.T) {
	srv := newOpenAITestServer(t)
	defer srv.Close()

	e := NewOpenAIEngine("sk-test", srv.URL+"/v1")
	got, err := e.Chat(context.Background(), "gpt-4o-mini", []Message{{Role: RoleUser, Content: "who?"}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "Alice." {
		t.Errorf("Chat = %q", got)
	}
}

func TestOpenAIEngine_Models(t *testing.T) {
	srv := newOpenAITestServer(t)
	defer srv.Close()

	e := NewOpenAIEngine("sk-test", srv.URL+"/v1")
	if !e.IsRunning(context.Background()) {
		t.Error("IsRunning() = false, want true")
	}
	if !e.HasModel(context.Background(), "text-embedding-3-small") {
		t.Error("HasModel(text-embedding-3-small) = false, want true")
	}
	if e.HasModel(context.Background(), "nomic-embed-text") {
		t.Error("HasModel(nomic-embed-text) = true, want false")
	}
}

func TestOpenAIEngine_PullUnsupported(t *testing.T) {
	e := NewOpenAIEngine("sk-test", "http://127.0.0.1:0/v1")
	err := e.PullModel(context.Background(), "gpt-4o-mini", nil)
	if !errors.Is(err, ErrPullUnsupported) {
		t.Errorf("err = %v, want ErrPullUnsupported", err)
	}
}
