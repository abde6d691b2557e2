package engine

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/r3labs/sse/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robbyautoki/attio-hub/pkg/models"
)

func TestStreamDeliversStepsInAppendOrder(t *testing.T) {
	pub := NewStreamPublisher()
	defer pub.Close()

	ts := httptest.NewServer(pub.Handler())
	defer ts.Close()

	events := make(chan *sse.Event, 32)
	client := sse.NewClient(ts.URL)
	require.NoError(t, client.SubscribeChan(ExecutionStreamID, events))
	defer client.Unsubscribe(events)

	h := newTestHarness(t, models.ServiceCRM, models.ServiceEmail, models.ServiceChat)
	eng := New(Config{
		Workflows:  h.provider.GetWorkflowStore(),
		Executions: h.provider.GetExecutionStore(),
		Bookings:   h.provider.GetBookingStore(),
		Vault:      h.vault,
		Clients:    h.factory,
		Publisher:  pub,
	})
	workflow := h.saveWorkflow(t, models.WorkflowKindScheduling, "calendly")

	execution, err := eng.Execute(context.Background(), workflow, models.TriggerWebhook, calendlyPayload(time.Now().Add(48*time.Hour)))
	require.NoError(t, err)
	require.Len(t, execution.Steps, 5)

	var gotSteps []string
	var gotRuns []string
	deadline := time.After(5 * time.Second)
	for len(gotRuns) < 2 {
		select {
		case msg := <-events:
			switch string(msg.Event) {
			case "step":
				var ev struct {
					ExecutionID string `json:"execution_id"`
					Step        string `json:"step"`
					Status      string `json:"status"`
				}
				require.NoError(t, json.Unmarshal(msg.Data, &ev))
				assert.Equal(t, execution.ID, ev.ExecutionID)
				assert.Equal(t, models.StepStatusSuccess, ev.Status)
				gotSteps = append(gotSteps, ev.Step)
			case "run":
				var ev struct {
					ExecutionID string `json:"execution_id"`
					Status      string `json:"status"`
				}
				require.NoError(t, json.Unmarshal(msg.Data, &ev))
				assert.Equal(t, execution.ID, ev.ExecutionID)
				gotRuns = append(gotRuns, ev.Status)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for stream events, got steps %v runs %v", gotSteps, gotRuns)
		}
	}

	wantSteps := make([]string, 0, len(execution.Steps))
	for _, step := range execution.Steps {
		wantSteps = append(wantSteps, step.Name)
	}
	assert.Equal(t, wantSteps, gotSteps)
	assert.Equal(t, []string{models.ExecutionStatusRunning, models.ExecutionStatusSuccess}, gotRuns)
}
