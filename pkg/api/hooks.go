package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/robbyautoki/attio-hub/pkg/logging"
	"github.com/robbyautoki/attio-hub/pkg/models"
	"github.com/robbyautoki/attio-hub/pkg/storage"
)

// webhookEventName pulls the event name out of a raw payload so the trigger's
// event filter can run before the engine does. Webform payloads carry no event
// field and always count as a form submission.
func webhookEventName(provider string, payload map[string]interface{}) string {
	if provider == "webform" {
		return "form.submitted"
	}
	event, _ := payload["event"].(string)
	return event
}

// handleWebhook receives an inbound provider webhook, resolves the workflow by
// its path token and runs it synchronously. Providers see a 2xx once the run
// reached a terminal state, whatever that state is; only persistence failures
// surface as 5xx so the provider retries delivery.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]

	workflow, err := s.workflows.GetWorkflowByWebhookPath(path)
	if err != nil {
		if errors.Is(err, storage.ErrWorkflowNotFound) {
			http.Error(w, "Unknown webhook", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to resolve webhook", http.StatusInternalServerError)
		return
	}

	if workflow.Trigger.Secret != "" {
		provided := r.Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(workflow.Trigger.Secret)) != 1 {
			http.Error(w, "Invalid webhook secret", http.StatusUnauthorized)
			return
		}
	}

	if !workflow.Enabled {
		respondJSON(w, http.StatusAccepted, map[string]string{
			"status": "ignored",
			"reason": "workflow disabled",
		})
		return
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	event := webhookEventName(workflow.Trigger.Provider, payload)
	if !workflow.Trigger.AcceptsEvent(event) {
		respondJSON(w, http.StatusAccepted, map[string]string{
			"status": "ignored",
			"reason": "event not subscribed",
			"event":  event,
		})
		return
	}

	execution, err := s.engine.Execute(r.Context(), workflow, models.TriggerWebhook, payload)
	if err != nil {
		s.logger.Error("webhook execution could not be persisted",
			logging.F("workflow_id", workflow.ID), logging.F("error", err.Error()))
		http.Error(w, "Failed to record execution", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"execution_id": execution.ID,
		"status":       execution.Status,
	})
}
