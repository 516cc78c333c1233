package experience

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors for experience operations.
var (
	ErrNotFound         = errors.New("experience not found")
	ErrStore            = errors.New("experience store failure")
	ErrInvalidRecord    = errors.New("invalid experience")
	ErrEmptyTask        = errors.New("task description cannot be empty")
	ErrInvalidMode      = errors.New("mode must be 'offline' or 'cloud'")
)

// Mode is the operating strategy a task was executed under.
type Mode string

const (
	// ModeOffline executes with local resources only.
	ModeOffline Mode = "offline"

	// ModeCloud executes via a remote completion provider.
	ModeCloud Mode = "cloud"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeOffline || m == ModeCloud
}

// PhaseType identifies one step of a reasoning trace.
type PhaseType string

const (
	PhasePlan    PhaseType = "plan"
	PhaseExecute PhaseType = "execute"
	PhaseReflect PhaseType = "reflect"
)

// ReasoningPhase is one step in a trace.
type ReasoningPhase struct {
	// Type is the phase kind: plan, execute, or reflect.
	Type PhaseType `json:"type"`

	// Timestamp is when the phase began.
	Timestamp time.Time `json:"timestamp"`

	// Content is the free-text description or result of the phase.
	Content string `json:"content"`

	// Details carries optional scalar metadata for display.
	Details map[string]any `json:"details,omitempty"`
}

// ThoughtStream is the ordered plan/execute/reflect trace produced during
// one task execution. Phases appear in execution order; a failed execution
// may carry fewer than three.
type ThoughtStream struct {
	ID     string `json:"id"`
	TaskID string `json:"task_id"`

	Phases []ReasoningPhase `json:"phases"`

	// StartTime is set once at trace creation. EndTime is set once when
	// the trace is finalized, nil while in progress.
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// NewThoughtStream creates an empty trace for the given task.
func NewThoughtStream(taskID string) *ThoughtStream {
	return &ThoughtStream{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		Phases:    []ReasoningPhase{},
		StartTime: time.Now(),
	}
}

// Append adds a phase to the trace.
func (t *ThoughtStream) Append(phase ReasoningPhase) {
	t.Phases = append(t.Phases, phase)
}

// Finalize stamps the end time. Subsequent calls are no-ops.
func (t *ThoughtStream) Finalize() {
	if t.EndTime == nil {
		now := time.Now()
		t.EndTime = &now
	}
}

// Experience is the durable record of one completed (or failed) task.
// Once persisted it is immutable except for deletion.
type Experience struct {
	ID string `json:"id"`

	TaskDescription string `json:"task_description"`
	Input           string `json:"input"`
	Output          string `json:"output"`

	Mode  Mode   `json:"mode"`
	Model string `json:"model"`

	// Reasoning is the trace produced for this execution (embedded, not
	// referenced).
	Reasoning ThoughtStream `json:"reasoning"`

	Success bool `json:"success"`

	// ErrorMessage is present only when Success is false due to a
	// propagated failure.
	ErrorMessage string `json:"error_message,omitempty"`

	// Timestamp is creation time; it is the primary ordering key for
	// eviction and recency queries.
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks required fields.
func (e *Experience) Validate() error {
	if e == nil {
		return ErrInvalidRecord
	}
	if e.TaskDescription == "" {
		return ErrEmptyTask
	}
	if !e.Mode.Valid() {
		return ErrInvalidMode
	}
	return nil
}

// Stats is the advisory aggregate record maintained by the store. It is
// derived state and can always be recomputed from the full record set.
type Stats struct {
	TotalExperiences int       `json:"total_experiences"`
	TotalMemorySize  int64     `json:"total_memory_size"`
	LastCleanup      time.Time `json:"last_cleanup,omitzero"`
}
