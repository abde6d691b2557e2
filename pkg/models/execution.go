package models

import "time"

// Execution statuses. A log is created in "pending", advances to "running"
// and reaches exactly one terminal state.
const (
	ExecutionStatusPending = "pending"
	ExecutionStatusRunning = "running"
	ExecutionStatusSuccess = "success"
	ExecutionStatusFailed  = "failed"

	// ExecutionStatusSuccessDegraded marks a run whose critical steps were
	// skipped (missing credential or payload field) rather than failed. The
	// run did no harm but also did not do its main job.
	ExecutionStatusSuccessDegraded = "success_degraded"
)

// Step statuses
const (
	StepStatusSuccess = "success"
	StepStatusFailed  = "failed"
	StepStatusSkipped = "skipped"
)

// ExecutionLog records one run of a workflow
type ExecutionLog struct {
	// ID of the execution
	ID string `json:"id"`

	// WorkflowID is the ID of the workflow that ran
	WorkflowID string `json:"workflow_id"`

	// OwnerID is the ID of the account that owns the workflow
	OwnerID string `json:"owner_id"`

	// Status of the execution
	Status string `json:"status"`

	// TriggerKind is how the run was invoked
	TriggerKind string `json:"trigger_kind"`

	// Input is the inbound payload snapshot
	Input map[string]interface{} `json:"input,omitempty"`

	// Output is the accumulated step output snapshot
	Output map[string]interface{} `json:"output,omitempty"`

	// Error message if the run failed
	Error string `json:"error,omitempty"`

	// Steps is the ordered list of step logs; order is execution order
	Steps []StepLog `json:"steps"`

	// StartedAt is when the run started
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run reached a terminal state
	CompletedAt time.Time `json:"completed_at,omitempty"`

	// DurationMs is the total run duration in milliseconds
	DurationMs int64 `json:"duration_ms"`
}

// Terminal reports whether the execution reached a terminal state
func (e ExecutionLog) Terminal() bool {
	switch e.Status {
	case ExecutionStatusSuccess, ExecutionStatusSuccessDegraded, ExecutionStatusFailed:
		return true
	}
	return false
}

// StepLog records one attempt of one step within a run
type StepLog struct {
	// Name of the step (human-readable)
	Name string `json:"name"`

	// Status of the step ("success", "failed", "skipped")
	Status string `json:"status"`

	// Input snapshot for the step
	Input map[string]interface{} `json:"input,omitempty"`

	// Output snapshot produced by the step
	Output map[string]interface{} `json:"output,omitempty"`

	// Error message if the step failed, or the skip reason
	Error string `json:"error,omitempty"`

	// DurationMs is the step duration in milliseconds
	DurationMs int64 `json:"duration_ms"`

	// Timestamp is when the step completed
	Timestamp time.Time `json:"timestamp"`
}
