// Package models defines the persistent data types shared across the system.
package models

import "time"

// Trigger kinds supported by workflows
const (
	TriggerWebhook   = "webhook"
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// Workflow lifecycle statuses
const (
	WorkflowStatusDraft  = "draft"
	WorkflowStatusActive = "active"
	WorkflowStatusPaused = "paused"
	WorkflowStatusError  = "error"
)

// Workflow kinds determine the fixed step sequence run by the engine
const (
	WorkflowKindScheduling  = "scheduling"
	WorkflowKindCRMStatus   = "crm_status"
	WorkflowKindLeadCapture = "lead_capture"
)

// Workflow represents a configured automation owned by an account
type Workflow struct {
	// ID of the workflow
	ID string `json:"id"`

	// OwnerID is the ID of the account that owns the workflow
	OwnerID string `json:"owner_id"`

	// Name of the workflow
	Name string `json:"name"`

	// Kind selects the fixed step sequence ("scheduling", "crm_status", "lead_capture")
	Kind string `json:"kind"`

	// TriggerKind is how the workflow is invoked ("webhook", "manual", "scheduled")
	TriggerKind string `json:"trigger_kind"`

	// Trigger holds trigger-specific configuration
	Trigger TriggerConfig `json:"trigger"`

	// Enabled indicates whether the workflow may execute
	Enabled bool `json:"enabled"`

	// Status of the workflow lifecycle
	Status string `json:"status"`

	// RequiredIntegrations lists the services the step sequence uses
	RequiredIntegrations []string `json:"required_integrations"`

	// TotalExecutions is the cumulative number of terminal runs
	TotalExecutions int64 `json:"total_executions"`

	// SuccessfulExecutions is the cumulative number of successful runs
	SuccessfulExecutions int64 `json:"successful_executions"`

	// FailedExecutions is the cumulative number of failed runs
	FailedExecutions int64 `json:"failed_executions"`

	// LastExecutedAt is when the workflow last completed a run
	LastExecutedAt *time.Time `json:"last_executed_at,omitempty"`

	// CreatedAt is when the workflow was created
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the workflow was last updated
	UpdatedAt time.Time `json:"updated_at"`
}

// TriggerConfig contains trigger configuration for a workflow
type TriggerConfig struct {
	// Provider is the inbound event source ("calendly", "attio", "webform")
	Provider string `json:"provider"`

	// WebhookPath is the unique path token the webhook endpoint is mounted on
	WebhookPath string `json:"webhook_path,omitempty"`

	// Secret is the shared secret the dispatch layer verifies
	Secret string `json:"secret,omitempty"`

	// Events lists the recognized event names; empty means all
	Events []string `json:"events,omitempty"`

	// ListID is the marketing list new contacts are subscribed to
	ListID string `json:"list_id,omitempty"`
}

// AcceptsEvent reports whether the trigger recognizes the given event name
func (t TriggerConfig) AcceptsEvent(event string) bool {
	if len(t.Events) == 0 {
		return true
	}
	for _, e := range t.Events {
		if e == event {
			return true
		}
	}
	return false
}
