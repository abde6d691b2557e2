package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/robbyautoki/attio-hub/pkg/integrations"
	"github.com/robbyautoki/attio-hub/pkg/middleware"
	"github.com/robbyautoki/attio-hub/pkg/models"
	"github.com/robbyautoki/attio-hub/pkg/storage"
)

// connectionTestTimeout bounds the outbound probe when testing a credential
const connectionTestTimeout = 15 * time.Second

// handleListCredentials lists the account's credentials. Responses only ever
// carry the masked key hint, never key material.
func (s *Server) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	credentials, err := s.vault.List(accountID)
	if err != nil {
		http.Error(w, "Failed to list credentials", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, credentials)
}

// handleStoreCredential encrypts and stores an API key for a service. Storing
// a second key for the same service replaces the first.
func (s *Server) handleStoreCredential(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		Service string `json:"service"`
		APIKey  string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	credential, err := s.vault.Store(accountID, req.Service, req.APIKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	respondJSON(w, http.StatusCreated, credential)
}

// handleGetCredential retrieves a credential's metadata
func (s *Server) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	credential, err := s.vault.Get(accountID, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, storage.ErrCredentialNotFound) {
			http.Error(w, "Credential not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to retrieve credential", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, credential)
}

// handleDeleteCredential deletes a credential
func (s *Server) handleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	if err := s.vault.Delete(accountID, mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, storage.ErrCredentialNotFound) {
			http.Error(w, "Credential not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to delete credential", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleTestCredential decrypts a credential, probes the service it belongs
// to and records the outcome. The decrypted key lives only for the probe.
func (s *Server) handleTestCredential(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	credentialID := mux.Vars(r)["id"]

	credential, err := s.vault.Get(accountID, credentialID)
	if err != nil {
		if errors.Is(err, storage.ErrCredentialNotFound) {
			http.Error(w, "Credential not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to retrieve credential", http.StatusInternalServerError)
		return
	}

	apiKey, err := s.vault.Reveal(accountID, credentialID)
	if err != nil {
		http.Error(w, "Failed to decrypt credential", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), connectionTestTimeout)
	defer cancel()

	status := s.testService(ctx, credential.Service, apiKey)

	updated, err := s.vault.RecordTest(accountID, credentialID, status.OK, time.Now())
	if err != nil {
		http.Error(w, "Failed to record test result", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":         status.OK,
		"detail":     status.Detail,
		"credential": updated,
	})
}

func (s *Server) testService(ctx context.Context, service, apiKey string) integrations.ConnectionStatus {
	switch service {
	case models.ServiceCRM:
		return s.clients.CRM(apiKey).TestConnection(ctx)
	case models.ServiceMarketing:
		return s.clients.Marketing(apiKey).TestConnection(ctx)
	case models.ServiceEmail:
		return s.clients.Email(apiKey).TestConnection(ctx)
	case models.ServiceChat:
		return s.clients.Chat(apiKey).TestConnection(ctx)
	}
	return integrations.ConnectionStatus{OK: false, Detail: "unknown service"}
}
