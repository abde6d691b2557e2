package engine

import (
	"encoding/json"
	"net/http"

	"github.com/r3labs/sse/v2"

	"github.com/robbyautoki/attio-hub/pkg/models"
)

// ExecutionStreamID is the SSE stream carrying run and step events
const ExecutionStreamID = "executions"

// StreamPublisher broadcasts run and step events to SSE subscribers.
// Subscribers see events for runs that complete while they are connected;
// there is no replay.
type StreamPublisher struct {
	server *sse.Server
}

// NewStreamPublisher creates an SSE publisher with the executions stream
func NewStreamPublisher() *StreamPublisher {
	server := sse.New()
	server.AutoReplay = false
	server.CreateStream(ExecutionStreamID)

	return &StreamPublisher{server: server}
}

type runEvent struct {
	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	Status      string `json:"status"`
	DurationMs  int64  `json:"duration_ms,omitempty"`
}

type stepEvent struct {
	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	Step        string `json:"step"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
}

// PublishRun broadcasts a run lifecycle event
func (p *StreamPublisher) PublishRun(execution models.ExecutionLog) {
	p.publish("run", runEvent{
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		Status:      execution.Status,
		DurationMs:  execution.DurationMs,
	})
}

// PublishStep broadcasts a finished step
func (p *StreamPublisher) PublishStep(execution models.ExecutionLog, step models.StepLog) {
	p.publish("step", stepEvent{
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		Step:        step.Name,
		Status:      step.Status,
		Error:       step.Error,
		DurationMs:  step.DurationMs,
	})
}

func (p *StreamPublisher) publish(eventName string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	p.server.Publish(ExecutionStreamID, &sse.Event{
		Event: []byte(eventName),
		Data:  data,
	})
}

// Handler returns the HTTP handler subscribers connect to
func (p *StreamPublisher) Handler() http.Handler {
	return p.server
}

// Close shuts down the SSE server and disconnects subscribers
func (p *StreamPublisher) Close() {
	p.server.Close()
}
