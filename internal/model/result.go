package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies a failed invocation.
type Kind string

// Failure kinds.
const (
	KindSpawn      Kind = "spawn_error"
	KindTimeout    Kind = "timeout"
	KindValidation Kind = "validation_error"
	KindParse      Kind = "parse_error"
	KindRuntime    Kind = "runtime_error"
	KindUnknown    Kind = "unknown"
)

// Retryable reports whether the user may simply try the same request again.
func (k Kind) Retryable() bool {
	return k == KindTimeout
}

// Suggested configuration steps the UI routes the user back to.
const (
	StepTeachers = "teachers"
	StepClasses  = "classes"
	StepSubjects = "subjects"
	StepRooms    = "rooms"
	StepPeriods  = "periods"
)

var stepByEntity = map[string]string{
	EntityTeacher: StepTeachers,
	EntityClass:   StepClasses,
	EntitySubject: StepSubjects,
	EntityRoom:    StepRooms,
	EntityPeriod:  StepPeriods,
}

// StepFor returns the configuration step that owns the given entity type,
// or "" when the entity type is unknown.
func StepFor(entityType string) string {
	return stepByEntity[entityType]
}

// ClassifiedError is a typed failure derived from engine diagnostics.
// RawDiagnostic is for operator logs only and is never serialized.
type ClassifiedError struct {
	Kind          Kind   `json:"kind"`
	EntityType    string `json:"entityType,omitempty"`
	EntityID      string `json:"entityId,omitempty"`
	Field         string `json:"field,omitempty"`
	Day           string `json:"day,omitempty"`
	Expected      *int   `json:"expected,omitempty"`
	Actual        *int   `json:"actual,omitempty"`
	Details       string `json:"details"`
	SuggestedStep string `json:"suggestedStep,omitempty"`

	RawDiagnostic string `json:"-"`
}

// NewClassifiedError returns an error of the given kind. An empty kind becomes KindUnknown.
func NewClassifiedError(kind Kind, details, raw string) *ClassifiedError {
	if kind == "" {
		kind = KindUnknown
	}
	return &ClassifiedError{Kind: kind, Details: details, RawDiagnostic: raw}
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Details)
}

// Is matches another *ClassifiedError by kind, so errors.Is(err, &ClassifiedError{Kind: KindTimeout}) works.
func (e *ClassifiedError) Is(target error) bool {
	var t *ClassifiedError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Severity of a feasibility finding.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// EntityRef names one entity in the request.
type EntityRef struct {
	Type string `json:"type"`
	ID   int    `json:"id"`
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s %d", r.Type, r.ID)
}

// FeasibilityWarning is one finding of the pre-check. Error severity blocks invocation.
type FeasibilityWarning struct {
	Severity         Severity    `json:"severity"`
	Rule             string      `json:"rule"`
	Message          string      `json:"message"`
	AffectedEntities []EntityRef `json:"affectedEntities"`
}

// Result is the tagged outcome of an invocation: exactly one of Payload and
// Error is set. Build it with Success or Failure.
type Result struct {
	Payload  json.RawMessage      `json:"payload,omitempty"`
	Error    *ClassifiedError     `json:"error,omitempty"`
	Warnings []FeasibilityWarning `json:"warnings,omitempty"`
}

// Success wraps a decoded engine answer. A nil payload is stored as JSON null.
func Success(payload json.RawMessage, warnings []FeasibilityWarning) Result {
	if payload == nil {
		payload = json.RawMessage("null")
	}
	return Result{Payload: payload, Warnings: warnings}
}

// Failure wraps a classified error. A nil error is replaced by an unknown failure.
func Failure(err *ClassifiedError, warnings []FeasibilityWarning) Result {
	if err == nil {
		err = NewClassifiedError(KindUnknown, "unknown failure", "")
	}
	if err.Kind == "" {
		err.Kind = KindUnknown
	}
	return Result{Error: err, Warnings: warnings}
}

// OK reports whether the result is a success.
func (r Result) OK() bool {
	return r.Error == nil
}

// Lessons decodes a success payload into scheduled lessons. Both a bare array
// and an object with a "lessons" array are accepted.
func (r Result) Lessons() ([]Lesson, error) {
	if !r.OK() {
		return nil, r.Error
	}
	var lessons []Lesson
	if err := json.Unmarshal(r.Payload, &lessons); err == nil {
		return lessons, nil
	}
	var wrapped struct {
		Lessons []Lesson `json:"lessons"`
	}
	if err := json.Unmarshal(r.Payload, &wrapped); err != nil {
		return nil, fmt.Errorf("decode lessons: %w", err)
	}
	return wrapped.Lessons, nil
}
