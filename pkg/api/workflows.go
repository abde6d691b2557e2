package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/robbyautoki/attio-hub/pkg/middleware"
	"github.com/robbyautoki/attio-hub/pkg/models"
	"github.com/robbyautoki/attio-hub/pkg/storage"
)

// workflowRequest is the request body for creating or updating a workflow
type workflowRequest struct {
	Name        string               `json:"name"`
	Kind        string               `json:"kind"`
	TriggerKind string               `json:"trigger_kind"`
	Trigger     models.TriggerConfig `json:"trigger"`
	Enabled     *bool                `json:"enabled,omitempty"`
}

func validWorkflowKind(kind string) bool {
	switch kind {
	case models.WorkflowKindScheduling, models.WorkflowKindCRMStatus, models.WorkflowKindLeadCapture:
		return true
	}
	return false
}

// handleListWorkflows handles listing the account's workflows
func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	workflows, err := s.workflows.ListWorkflows(accountID)
	if err != nil {
		http.Error(w, "Failed to list workflows", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, workflows)
}

// handleCreateWorkflow handles creating a new workflow
func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req workflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Workflow name is required", http.StatusBadRequest)
		return
	}
	if !validWorkflowKind(req.Kind) {
		http.Error(w, "Unknown workflow kind", http.StatusBadRequest)
		return
	}
	if req.TriggerKind == "" {
		req.TriggerKind = models.TriggerWebhook
	}

	now := time.Now()
	workflow := models.Workflow{
		ID:                   uuid.New().String(),
		OwnerID:              accountID,
		Name:                 req.Name,
		Kind:                 req.Kind,
		TriggerKind:          req.TriggerKind,
		Trigger:              req.Trigger,
		Enabled:              true,
		Status:               models.WorkflowStatusActive,
		RequiredIntegrations: requiredIntegrations(req.Kind),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if req.Enabled != nil {
		workflow.Enabled = *req.Enabled
	}
	if workflow.TriggerKind == models.TriggerWebhook && workflow.Trigger.WebhookPath == "" {
		workflow.Trigger.WebhookPath = uuid.New().String()
	}

	if err := s.workflows.SaveWorkflow(workflow); err != nil {
		http.Error(w, "Failed to save workflow", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, workflow)
}

// handleGetWorkflow handles retrieving a single workflow
func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	workflow, err := s.workflows.GetWorkflow(accountID, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, storage.ErrWorkflowNotFound) {
			http.Error(w, "Workflow not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to retrieve workflow", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, workflow)
}

// handleUpdateWorkflow handles updating a workflow's configuration. Execution
// counters and timestamps are owned by the engine and cannot be overwritten.
func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	workflow, err := s.workflows.GetWorkflow(accountID, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, storage.ErrWorkflowNotFound) {
			http.Error(w, "Workflow not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to retrieve workflow", http.StatusInternalServerError)
		return
	}

	var req workflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name != "" {
		workflow.Name = req.Name
	}
	if req.Kind != "" {
		if !validWorkflowKind(req.Kind) {
			http.Error(w, "Unknown workflow kind", http.StatusBadRequest)
			return
		}
		workflow.Kind = req.Kind
		workflow.RequiredIntegrations = requiredIntegrations(req.Kind)
	}
	if req.TriggerKind != "" {
		workflow.TriggerKind = req.TriggerKind
	}
	if req.Trigger.Provider != "" || req.Trigger.WebhookPath != "" || len(req.Trigger.Events) > 0 {
		// Preserve the existing path unless the caller rotates it explicitly
		if req.Trigger.WebhookPath == "" {
			req.Trigger.WebhookPath = workflow.Trigger.WebhookPath
		}
		workflow.Trigger = req.Trigger
	}
	if req.Enabled != nil {
		workflow.Enabled = *req.Enabled
	}
	workflow.UpdatedAt = time.Now()

	if err := s.workflows.SaveWorkflow(workflow); err != nil {
		http.Error(w, "Failed to save workflow", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, workflow)
}

// handleDeleteWorkflow handles deleting a workflow
func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	if err := s.workflows.DeleteWorkflow(accountID, mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, storage.ErrWorkflowNotFound) {
			http.Error(w, "Workflow not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to delete workflow", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleToggleWorkflow flips a workflow between enabled and disabled
func (s *Server) handleToggleWorkflow(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	workflow, err := s.workflows.GetWorkflow(accountID, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, storage.ErrWorkflowNotFound) {
			http.Error(w, "Workflow not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to retrieve workflow", http.StatusInternalServerError)
		return
	}

	workflow.Enabled = !workflow.Enabled
	if workflow.Enabled {
		workflow.Status = models.WorkflowStatusActive
	} else {
		workflow.Status = models.WorkflowStatusPaused
	}
	workflow.UpdatedAt = time.Now()

	if err := s.workflows.SaveWorkflow(workflow); err != nil {
		http.Error(w, "Failed to save workflow", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, workflow)
}

// handleRunWorkflow triggers a workflow manually with the request body as the
// payload. The run is synchronous; the finished execution log is returned.
func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	workflow, err := s.workflows.GetWorkflow(accountID, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, storage.ErrWorkflowNotFound) {
			http.Error(w, "Workflow not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to retrieve workflow", http.StatusInternalServerError)
		return
	}
	if !workflow.Enabled {
		http.Error(w, "Workflow is disabled", http.StatusConflict)
		return
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	execution, err := s.engine.Execute(r.Context(), workflow, models.TriggerManual, payload)
	if err != nil {
		http.Error(w, "Failed to record execution", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, execution)
}

// requiredIntegrations returns the services a workflow kind's steps touch
func requiredIntegrations(kind string) []string {
	switch kind {
	case models.WorkflowKindScheduling:
		return []string{models.ServiceCRM, models.ServiceEmail, models.ServiceChat}
	case models.WorkflowKindCRMStatus:
		return []string{models.ServiceCRM, models.ServiceMarketing, models.ServiceChat}
	case models.WorkflowKindLeadCapture:
		return []string{models.ServiceCRM, models.ServiceMarketing, models.ServiceEmail, models.ServiceChat}
	}
	return nil
}
