package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Interaction is one answered chat query, kept as an operator audit trail.
// It is never fed back into generation.
type Interaction struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Query        string    `json:"query"`
	Response     string    `json:"response"`
	Provider     string    `json:"provider,omitempty"`
	Model        string    `json:"model,omitempty"`
	CandidateIDs []int     `json:"candidate_ids"`
	Degraded     bool      `json:"degraded"`
	DurationMs   int64     `json:"duration_ms"`
}
