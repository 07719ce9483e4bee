package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kalambet/rosterbot/internal/pipeline"
	"github.com/kalambet/rosterbot/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// RootMessage is returned by GET /.
const RootMessage = "HR Chatbot API is running. POST a query to /chat to get candidate recommendations."

// Deps holds everything the HTTP handlers need. Pipeline is required; Store
// enables the interaction log and its endpoints.
type Deps struct {
	Pipeline *pipeline.Pipeline
	Store    *storage.Store

	// Provider and Model are recorded with each logged interaction.
	Provider string
	Model    string

	AllowedOrigins []string
	// RateLimit is the sustained /chat rate per second. Zero disables limiting.
	RateLimit float64
	RateBurst int

	Logger *slog.Logger
}

// NewRouter returns the query API handler.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusNotFound, "not_found", "no route for %s %s", r.Method, r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method %s not allowed on %s", r.Method, r.URL.Path)
	})

	r.Get("/", handleRoot)
	r.Get("/health", handleHealth(deps))

	r.With(rateLimit(deps.RateLimit, deps.RateBurst)).Post("/chat", handleChat(deps))

	r.Get("/employees", handleListEmployees(deps))
	r.Get("/employees/search", handleSearchEmployees(deps))

	if deps.Store != nil {
		r.Get("/interactions", handleListInteractions(deps))
		r.Get("/interactions/{id}", handleGetInteraction(deps))
	}

	return r
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": RootMessage})
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"employees": deps.Pipeline.Len(),
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
