// Package storage provides interfaces for persistent storage.
package storage

import (
	"time"

	"github.com/robbyautoki/attio-hub/pkg/models"
)

// StorageProvider defines the interface for persistence backends
type StorageProvider interface {
	// Initialize sets up the storage backend
	Initialize() error

	// Close cleans up resources
	Close() error

	// GetWorkflowStore returns a store for workflow records
	GetWorkflowStore() WorkflowStore

	// GetExecutionStore returns a store for execution logs
	GetExecutionStore() ExecutionStore

	// GetBookingStore returns a store for bookings
	GetBookingStore() BookingStore

	// GetCredentialStore returns a store for encrypted credentials
	GetCredentialStore() CredentialStore

	// GetAccountStore returns a store for account data
	GetAccountStore() AccountStore
}

// WorkflowStore manages workflow persistence
type WorkflowStore interface {
	// SaveWorkflow persists a workflow
	SaveWorkflow(workflow models.Workflow) error

	// GetWorkflow retrieves a workflow scoped to its owner
	GetWorkflow(ownerID, workflowID string) (models.Workflow, error)

	// GetWorkflowByWebhookPath retrieves a workflow by its webhook path token
	GetWorkflowByWebhookPath(path string) (models.Workflow, error)

	// ListWorkflows returns all workflows for an owner
	ListWorkflows(ownerID string) ([]models.Workflow, error)

	// DeleteWorkflow removes a workflow
	DeleteWorkflow(ownerID, workflowID string) error

	// RecordExecution atomically increments the workflow counters for one
	// terminal run and stamps the last-executed time. Implementations must
	// not lose updates under concurrent runs for the same workflow.
	RecordExecution(workflowID string, succeeded bool, at time.Time) error
}

// ExecutionStore manages execution log persistence
type ExecutionStore interface {
	// SaveExecution persists an execution log (insert or update)
	SaveExecution(execution models.ExecutionLog) error

	// GetExecution retrieves an execution log with its step logs
	GetExecution(executionID string) (models.ExecutionLog, error)

	// ListExecutions returns all execution logs for a workflow
	ListExecutions(workflowID string) ([]models.ExecutionLog, error)

	// ListExecutionsForOwner returns all execution logs for an owner
	ListExecutionsForOwner(ownerID string) ([]models.ExecutionLog, error)
}

// BookingStore manages booking persistence
type BookingStore interface {
	// SaveBooking persists a booking
	SaveBooking(booking models.Booking) error

	// GetBooking retrieves a booking
	GetBooking(bookingID string) (models.Booking, error)

	// ListBookings returns all bookings for an owner
	ListBookings(ownerID string) ([]models.Booking, error)

	// ListDueReminders returns confirmed bookings whose start time falls in
	// [windowStart, windowEnd) and whose sent timestamp for the given kind
	// is still null
	ListDueReminders(kind models.ReminderKind, windowStart, windowEnd time.Time) ([]models.Booking, error)

	// MarkReminderSent sets the sent timestamp for the given kind only if it
	// is currently null. It returns false when another invocation already
	// claimed the reminder; a false claim means the send must be skipped.
	MarkReminderSent(bookingID string, kind models.ReminderKind, at time.Time) (bool, error)

	// UpdateBookingStatus transitions a booking's status
	UpdateBookingStatus(bookingID string, status string) error
}

// CredentialStore manages encrypted credential persistence
type CredentialStore interface {
	// SaveCredential persists a credential
	SaveCredential(credential models.Credential) error

	// GetCredential retrieves a credential scoped to its owner
	GetCredential(ownerID, credentialID string) (models.Credential, error)

	// GetCredentialByService retrieves the credential for an owner and service
	GetCredentialByService(ownerID, service string) (models.Credential, error)

	// ListCredentials returns all credentials for an owner
	ListCredentials(ownerID string) ([]models.Credential, error)

	// DeleteCredential removes a credential
	DeleteCredential(ownerID, credentialID string) error
}

// AccountStore manages account persistence
type AccountStore interface {
	// SaveAccount persists an account
	SaveAccount(account models.Account) error

	// GetAccount retrieves an account
	GetAccount(accountID string) (models.Account, error)

	// GetAccountByUsername retrieves an account by username
	GetAccountByUsername(username string) (models.Account, error)

	// GetAccountByToken retrieves an account by API token
	GetAccountByToken(token string) (models.Account, error)

	// ListAccounts returns all accounts
	ListAccounts() ([]models.Account, error)

	// DeleteAccount removes an account
	DeleteAccount(accountID string) error
}
