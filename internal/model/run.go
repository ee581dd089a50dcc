package model

import (
	"encoding/json"
	"time"
)

// Run status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
		StatusFailed:  true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Terminal reports whether status is final.
func Terminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// LogLine is one persisted engine diagnostic line.
type LogLine struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Seq       int       `json:"seq"`
	Line      string    `json:"line"`
	CreatedAt time.Time `json:"created_at"`
}

// Run is a persisted solver invocation submitted through the async API.
type Run struct {
	ID         string               `json:"id"`
	Status     string               `json:"status"`
	Request    json.RawMessage      `json:"-"`
	TimeoutS   *int                 `json:"timeout_s,omitempty"`
	Result     json.RawMessage      `json:"result,omitempty"`
	ErrorKind  Kind                 `json:"error_kind,omitempty"`
	Error      *ClassifiedError     `json:"error,omitempty"`
	Warnings   []FeasibilityWarning `json:"warnings,omitempty"`
	DurationMS *int                 `json:"duration_ms,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	StartedAt  *time.Time           `json:"started_at,omitempty"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`

	// RawDiagnostic is kept for operators and never returned by the API.
	RawDiagnostic string `json:"-"`
}
