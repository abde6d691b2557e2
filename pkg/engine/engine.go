// Package engine executes workflow runs. A run walks the fixed step sequence
// for the workflow's kind, records a step log per step, and classifies the
// run from the outcomes: a failed critical step fails the run, a skipped
// critical step degrades it, and anything else succeeds. Missing credentials
// and failed non-critical steps never abort a run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/robbyautoki/attio-hub/pkg/integrations"
	"github.com/robbyautoki/attio-hub/pkg/logging"
	"github.com/robbyautoki/attio-hub/pkg/models"
	"github.com/robbyautoki/attio-hub/pkg/storage"
	"github.com/robbyautoki/attio-hub/pkg/templates"
	"github.com/robbyautoki/attio-hub/pkg/vault"
)

// ClientFactory builds integration clients from decrypted credentials
type ClientFactory interface {
	CRM(apiKey string) integrations.CRMClient
	Marketing(apiKey string) integrations.MarketingClient
	Email(secret string) integrations.EmailSender
	Chat(secret string) integrations.ChatNotifier
}

// Publisher receives live run and step events, e.g. for an SSE stream.
// Publishing is best effort; the engine ignores what happens downstream.
type Publisher interface {
	PublishRun(execution models.ExecutionLog)
	PublishStep(execution models.ExecutionLog, step models.StepLog)
}

// Config wires an Engine's dependencies
type Config struct {
	Workflows  storage.WorkflowStore
	Executions storage.ExecutionStore
	Bookings   storage.BookingStore
	Vault      *vault.Service
	Clients    ClientFactory
	Templates  *templates.Registry
	Logger     logging.Logger
	Publisher  Publisher
}

// Engine runs workflows
type Engine struct {
	workflows  storage.WorkflowStore
	executions storage.ExecutionStore
	bookings   storage.BookingStore
	vault      *vault.Service
	clients    ClientFactory
	templates  *templates.Registry
	logger     logging.Logger
	publisher  Publisher
	now        func() time.Time
}

// New creates an execution engine
func New(cfg Config) *Engine {
	if cfg.Templates == nil {
		cfg.Templates = templates.Defaults()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger{}
	}

	return &Engine{
		workflows:  cfg.Workflows,
		executions: cfg.Executions,
		bookings:   cfg.Bookings,
		vault:      cfg.Vault,
		clients:    cfg.Clients,
		templates:  cfg.Templates,
		logger:     cfg.Logger,
		publisher:  cfg.Publisher,
		now:        time.Now,
	}
}

// Execute runs a workflow against a webhook payload and returns the finished
// execution log. The returned error is reserved for persistence failures;
// step failures are reported through the log's status instead.
func (e *Engine) Execute(ctx context.Context, workflow models.Workflow, triggerKind string, payload map[string]interface{}) (models.ExecutionLog, error) {
	started := e.now()
	execution := models.ExecutionLog{
		ID:          uuid.New().String(),
		WorkflowID:  workflow.ID,
		OwnerID:     workflow.OwnerID,
		Status:      models.ExecutionStatusPending,
		TriggerKind: triggerKind,
		Input:       payload,
		Steps:       []models.StepLog{},
		StartedAt:   started,
	}

	if err := e.executions.SaveExecution(execution); err != nil {
		return execution, fmt.Errorf("failed to persist execution log: %w", err)
	}

	execution.Status = models.ExecutionStatusRunning
	if err := e.executions.SaveExecution(execution); err != nil {
		return execution, fmt.Errorf("failed to persist execution log: %w", err)
	}

	e.logger.LogRunEvent(workflow.ID, execution.ID, "started", map[string]interface{}{
		"workflow_kind": workflow.Kind,
		"trigger_kind":  triggerKind,
	})
	e.publishRun(execution)

	steps := stepsFor(workflow.Kind)
	rc := &runContext{
		engine:   e,
		workflow: workflow,
		payload:  payload,
		outputs:  make(map[string]map[string]interface{}),
		statuses: make(map[string]string),
	}

	var criticalFailed bool
	var criticalSkipped bool
	var firstError string

	if steps == nil {
		criticalFailed = true
		firstError = fmt.Sprintf("unknown workflow kind: %s", workflow.Kind)
	}

	for _, def := range steps {
		stepLog := e.runStep(ctx, rc, def)
		execution.Steps = append(execution.Steps, stepLog)
		rc.statuses[def.Name] = stepLog.Status

		switch stepLog.Status {
		case models.StepStatusFailed:
			if def.Critical {
				criticalFailed = true
				if firstError == "" {
					firstError = stepLog.Error
				}
			}
		case models.StepStatusSkipped:
			if def.Critical {
				criticalSkipped = true
			}
		}

		e.logger.LogStepEvent(workflow.ID, execution.ID, def.Name, stepLog.Status, map[string]interface{}{
			"duration_ms": stepLog.DurationMs,
		})
		e.publishStep(execution, stepLog)
	}

	completed := e.now()
	execution.CompletedAt = completed
	execution.DurationMs = completed.Sub(started).Milliseconds()
	execution.Output = rc.summary()

	switch {
	case criticalFailed:
		execution.Status = models.ExecutionStatusFailed
		execution.Error = firstError
	case criticalSkipped:
		execution.Status = models.ExecutionStatusSuccessDegraded
	default:
		execution.Status = models.ExecutionStatusSuccess
	}

	if err := e.executions.SaveExecution(execution); err != nil {
		return execution, fmt.Errorf("failed to persist execution log: %w", err)
	}

	// Counter updates are not worth failing a finished run over
	succeeded := execution.Status != models.ExecutionStatusFailed
	if err := e.workflows.RecordExecution(workflow.ID, succeeded, completed); err != nil {
		e.logger.Error("failed to record execution counters",
			logging.F("workflow_id", workflow.ID),
			logging.F("error", err.Error()))
	}

	e.logger.LogRunEvent(workflow.ID, execution.ID, "completed", map[string]interface{}{
		"status":      execution.Status,
		"duration_ms": execution.DurationMs,
	})
	e.publishRun(execution)

	return execution, nil
}

// runStep executes one step and turns its outcome into a step log
func (e *Engine) runStep(ctx context.Context, rc *runContext, def stepDef) models.StepLog {
	stepStart := e.now()
	stepLog := models.StepLog{
		Name:      def.Name,
		Timestamp: stepStart,
	}

	if reason := rc.unmetDependency(def); reason != "" {
		stepLog.Status = models.StepStatusSkipped
		stepLog.Error = reason
		return stepLog
	}

	output, err := def.Run(ctx, rc)
	stepLog.DurationMs = e.now().Sub(stepStart).Milliseconds()
	stepLog.Output = output

	var skip *skipError
	switch {
	case err == nil:
		stepLog.Status = models.StepStatusSuccess
		rc.outputs[def.Name] = output
	case errors.As(err, &skip):
		stepLog.Status = models.StepStatusSkipped
		stepLog.Error = skip.reason
	default:
		stepLog.Status = models.StepStatusFailed
		stepLog.Error = err.Error()
	}

	return stepLog
}

func (e *Engine) publishRun(execution models.ExecutionLog) {
	if e.publisher != nil {
		e.publisher.PublishRun(execution)
	}
}

func (e *Engine) publishStep(execution models.ExecutionLog, step models.StepLog) {
	if e.publisher != nil {
		e.publisher.PublishStep(execution, step)
	}
}

// skipError marks a step outcome as skipped rather than failed
type skipError struct {
	reason string
}

func (e *skipError) Error() string {
	return e.reason
}

// runContext carries per-run state between steps
type runContext struct {
	engine   *Engine
	workflow models.Workflow
	payload  map[string]interface{}

	event     *NormalizedEvent
	bookingID string

	outputs  map[string]map[string]interface{}
	statuses map[string]string
}

// unmetDependency returns a skip reason when a required prior step did not
// produce output
func (rc *runContext) unmetDependency(def stepDef) string {
	for _, required := range def.Requires {
		if rc.statuses[required] != models.StepStatusSuccess {
			return fmt.Sprintf("depends on step %s which did not succeed", required)
		}
	}
	return ""
}

// requireContactEmail skips the calling step when the parsed payload carried
// no contact email. The parse step itself still succeeds in that case.
func (rc *runContext) requireContactEmail() error {
	if rc.event == nil || rc.event.Contact.Email == "" {
		return &skipError{reason: "no email in payload"}
	}
	return nil
}

// secret resolves the decrypted credential for a service. A missing
// credential and an undecryptable one both become a skip: the credential is
// unusable either way, and an unusable credential never aborts the run.
func (rc *runContext) secret(service string) (string, error) {
	value, err := rc.engine.vault.RevealForService(rc.workflow.OwnerID, service)
	if err != nil {
		if errors.Is(err, storage.ErrCredentialNotFound) {
			return "", &skipError{reason: fmt.Sprintf("no %s credential configured", service)}
		}
		if errors.Is(err, vault.ErrDecryption) {
			return "", &skipError{reason: fmt.Sprintf("%s credential could not be decrypted", service)}
		}
		return "", fmt.Errorf("failed to resolve %s credential: %w", service, err)
	}
	return value, nil
}

// summary builds the run-level output from the step outputs
func (rc *runContext) summary() map[string]interface{} {
	summary := make(map[string]interface{})
	if rc.event != nil {
		summary["provider"] = rc.event.Provider
		summary["event"] = rc.event.Event
		summary["contact_email"] = rc.event.Contact.Email
	}
	if rc.bookingID != "" {
		summary["booking_id"] = rc.bookingID
	}
	return summary
}
