// Package memory stores agent observations and session summaries in a
// transactional SQL store with a full-text mirror. Observations are created
// by services and never mutated in place.
package memory

import (
	"time"
)

// ObservationType classifies an observation.
type ObservationType string

const (
	ObservationCode      ObservationType = "code"
	ObservationDecision  ObservationType = "decision"
	ObservationContext   ObservationType = "context"
	ObservationError     ObservationType = "error"
	ObservationSummary   ObservationType = "summary"
	ObservationExecution ObservationType = "execution"
)

// ValidObservationType reports whether t is a known observation type.
func ValidObservationType(t ObservationType) bool {
	switch t {
	case ObservationCode, ObservationDecision, ObservationContext,
		ObservationError, ObservationSummary, ObservationExecution:
		return true
	}
	return false
}

// Metadata carries the typed context an observation was recorded in.
type Metadata struct {
	SessionID string            `json:"session_id,omitempty"`
	Branch    string            `json:"branch,omitempty"`
	Commit    string            `json:"commit,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Observation is a free-text note with typed metadata.
type Observation struct {
	ID          string
	ProjectID   string
	Content     string
	ContentHash string
	Tags        []string
	Type        ObservationType
	Metadata    Metadata
	CreatedAt   time.Time
	EmbeddingID *string
}

// SessionSummary condenses one agent session for future resumption.
type SessionSummary struct {
	ID            string
	ProjectID     string
	SessionID     string
	Topics        []string
	Decisions     []string
	NextSteps     []string
	KeyFiles      []string
	OriginContext map[string]any
	CreatedAt     time.Time
}

// Filter narrows observation queries. Zero-valued fields are ignored.
type Filter struct {
	SessionID string
	Branch    string
	Commit    string
	Type      ObservationType
	Tags      []string
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.SessionID == "" && f.Branch == "" && f.Commit == "" &&
		f.Type == "" && len(f.Tags) == 0
}

// ScoredObservation is an observation with its full-text relevance score.
// Higher is better.
type ScoredObservation struct {
	Observation Observation
	Score       float64
}
