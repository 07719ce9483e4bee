package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kalambet/rosterbot/internal/pipeline"
	"github.com/kalambet/rosterbot/internal/storage"
)

var validate = validator.New()

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Query string `json:"query" validate:"required,max=2000"`
}

// ChatResponse is the body returned by POST /chat.
type ChatResponse struct {
	Response string `json:"response"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		req.Query = strings.TrimSpace(req.Query)
		if err := validate.Struct(req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", describeValidation(err))
			return
		}

		ans, err := deps.Pipeline.Chat(r.Context(), req.Query)
		if err != nil {
			deps.Logger.Error("chat failed", "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "could not process query: %v", err)
			return
		}

		deps.interactionLog().record(req.Query, ans)

		writeJSON(w, http.StatusOK, ChatResponse{Response: ans.Response})
	}
}

// interactionLog records answered queries. A nil store makes record a no-op.
type interactionLog struct {
	store    *storage.Store
	provider string
	model    string
	logger   *slog.Logger
}

func (d Deps) interactionLog() interactionLog {
	return interactionLog{store: d.Store, provider: d.Provider, model: d.Model, logger: d.Logger}
}

func (l interactionLog) record(query string, ans pipeline.Answer) {
	if l.store == nil {
		return
	}
	ids := make([]int, len(ans.Candidates))
	for i, m := range ans.Candidates {
		ids[i] = m.Employee.ID
	}
	err := l.store.SaveInteraction(storage.Interaction{
		ID:           uuid.New().String(),
		CreatedAt:    time.Now().UTC(),
		Query:        query,
		Response:     ans.Response,
		Provider:     l.provider,
		Model:        l.model,
		CandidateIDs: ids,
		Degraded:     ans.Degraded,
		DurationMs:   ans.Duration.Milliseconds(),
	})
	if err != nil {
		l.logger.Warn("could not record interaction", "error", err)
	}
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return "query is required and must not be empty"
	case "max":
		return "query must be at most " + fe.Param() + " characters"
	}
	return err.Error()
}

// rateLimit rejects requests beyond the configured token bucket with 429.
// All callers share one bucket.
func rateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	if perSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.Allow() {
				w.Header().Set("Retry-After", "1")
				httpError(w, http.StatusTooManyRequests, "rate_limit_error", "too many requests, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
