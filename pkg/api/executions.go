package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/robbyautoki/attio-hub/pkg/middleware"
	"github.com/robbyautoki/attio-hub/pkg/storage"
)

// handleListExecutions lists recent executions across the account's workflows
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	executions, err := s.executions.ListExecutionsForOwner(accountID)
	if err != nil {
		http.Error(w, "Failed to list executions", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, executions)
}

// handleGetExecution retrieves a single execution log with its step logs
func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	execution, err := s.executions.GetExecution(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, storage.ErrExecutionNotFound) {
			http.Error(w, "Execution not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to retrieve execution", http.StatusInternalServerError)
		return
	}
	if execution.OwnerID != accountID {
		http.Error(w, "Execution not found", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, execution)
}

// handleListWorkflowExecutions lists the executions of one workflow
func (s *Server) handleListWorkflowExecutions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	// Ownership check before touching the execution store
	workflow, err := s.workflows.GetWorkflow(accountID, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, storage.ErrWorkflowNotFound) {
			http.Error(w, "Workflow not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to retrieve workflow", http.StatusInternalServerError)
		return
	}

	executions, err := s.executions.ListExecutions(workflow.ID)
	if err != nil {
		http.Error(w, "Failed to list executions", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, executions)
}

// handleListBookings lists the account's bookings
func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	bookings, err := s.bookings.ListBookings(accountID)
	if err != nil {
		http.Error(w, "Failed to list bookings", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, bookings)
}

// handleGetBooking retrieves a single booking
func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	booking, err := s.bookings.GetBooking(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, storage.ErrBookingNotFound) {
			http.Error(w, "Booking not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to retrieve booking", http.StatusInternalServerError)
		return
	}
	if booking.OwnerID != accountID {
		http.Error(w, "Booking not found", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, booking)
}
